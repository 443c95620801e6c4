package plugin

import (
	"github.com/ppacher/luaplug/pkg/engine"
)

// Info describes a loaded plugin
type Info struct {
	// Name is the name of the plugin
	Name string

	// Path is the path of the library the plugin has been loaded from
	// or BuiltinPath
	Path string

	// Environments is the number of environments the plugin is registered in
	Environments int
}

// Builtin returns true if the plugin is linked into the host binary
func (i Info) Builtin() bool {
	return i.Path == BuiltinPath
}

// record couples a library with the plugin instance it produced.
// The instance must be dropped before the library is closed.
type record struct {
	name     string
	path     string
	lib      Library
	plugin   Plugin
	installs map[engine.Env]*installation
}

func newRecord(lib Library, p Plugin) *record {
	return &record{
		name:     p.Name(),
		path:     lib.Path(),
		lib:      lib,
		plugin:   p,
		installs: make(map[engine.Env]*installation),
	}
}

func (r *record) registeredIn(env engine.Env) bool {
	_, ok := r.installs[env]
	return ok
}

func (r *record) info() Info {
	return Info{
		Name:         r.name,
		Path:         r.path,
		Environments: len(r.installs),
	}
}

// release drops the plugin instance and then closes the library. It
// must only be called once every installation has been removed.
func (r *record) release() error {
	r.plugin = nil

	lib := r.lib
	r.lib = nil

	return lib.Close()
}
