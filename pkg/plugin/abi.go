package plugin

import (
	"errors"
	"fmt"

	"github.com/Masterminds/semver/v3"
	"github.com/samber/oops"
)

// BuiltinPath is reported as the path of plugins that are linked into
// the host binary
const BuiltinPath = "<built-in>"

// Library is a mapped shared library. It is owned by exactly one loaded
// plugin and closed only after that plugin has been torn down.
type Library interface {
	// Path returns the path the library has been opened from
	Path() string

	// Lookup searches for an exported symbol
	Lookup(symbol string) (interface{}, error)

	// Close releases the library. Nothing that came from the library
	// may be used after Close has been called
	Close() error
}

// Opener maps shared libraries into the process
type Opener interface {
	// Open opens the library at path
	Open(path string) (Library, error)
}

// OpenerFunc adapts a function to the Opener interface
type OpenerFunc func(path string) (Library, error)

// Open implements Opener
func (fn OpenerFunc) Open(path string) (Library, error) {
	return fn(path)
}

// openLibrary maps the library at path using opener
func openLibrary(opener Opener, path string) (Library, error) {
	lib, err := opener.Open(path)
	if err != nil {
		return nil, errLibraryNotFound(path, err)
	}
	if lib == nil {
		return nil, errLibraryNotFound(path, errors.New("opener returned no library"))
	}

	return lib, nil
}

// instantiate resolves SymbolName in lib and calls it to create the plugin
// instance. The caller owns lib and must close it if instantiate fails.
func instantiate(lib Library) (Plugin, error) {
	path := lib.Path()

	sym, err := lib.Lookup(SymbolName)
	if err != nil {
		return nil, errSymbolMissing(path, err)
	}

	var create Constructor
	switch v := sym.(type) {
	case func() Plugin:
		create = v
	case *func() Plugin:
		if v != nil {
			create = *v
		}
	default:
		return nil, errInvalidPlugin(path, fmt.Sprintf("symbol %s has type %T", SymbolName, sym))
	}

	if create == nil {
		return nil, errInvalidPlugin(path, fmt.Sprintf("symbol %s is nil", SymbolName))
	}

	var p Plugin
	if err := oops.Recover(func() {
		p = create()
	}); err != nil {
		return nil, errInvalidPlugin(path, fmt.Sprintf("%s panicked: %s", SymbolName, err))
	}

	if p == nil {
		return nil, errInvalidPlugin(path, fmt.Sprintf("%s returned nil", SymbolName))
	}

	if p.Name() == "" {
		return nil, errInvalidPlugin(path, "plugin name is empty")
	}

	if err := checkAPI(p); err != nil {
		return nil, errInvalidPlugin(path, err.Error())
	}

	return p, nil
}

// checkAPI verifies the API constraint of plugins implementing APIRequirer
func checkAPI(p Plugin) error {
	req, ok := p.(APIRequirer)
	if !ok || req.RequiresAPI() == "" {
		return nil
	}

	constraint, err := semver.NewConstraint(req.RequiresAPI())
	if err != nil {
		return fmt.Errorf("invalid API constraint %q: %w", req.RequiresAPI(), err)
	}

	if !constraint.Check(semver.MustParse(APIVersion)) {
		return fmt.Errorf("plugin requires API %s but host provides %s", req.RequiresAPI(), APIVersion)
	}

	return nil
}

// builtinLibrary is the library of a plugin linked into the host. It
// exports the plugin's constructor and has nothing to release.
type builtinLibrary struct {
	create Constructor
}

func (lib *builtinLibrary) Path() string {
	return BuiltinPath
}

func (lib *builtinLibrary) Lookup(symbol string) (interface{}, error) {
	if symbol != SymbolName {
		return nil, fmt.Errorf("built-in plugins only export %s", SymbolName)
	}
	return lib.create, nil
}

func (lib *builtinLibrary) Close() error {
	return nil
}

// compile time checks
var _ Library = &builtinLibrary{}
var _ Opener = OpenerFunc(nil)
