package plugin

import (
	"github.com/sirupsen/logrus"
	lua "github.com/yuin/gopher-lua"
	luar "layeh.com/gopher-luar"
)

// Option defines the type of function that serves as a plugin option
type Option func(p *pluginImpl)

// WithOnLoad configures the function to call when the plugin is loaded
func WithOnLoad(fn func() error) Option {
	return func(p *pluginImpl) {
		p.onLoad = fn
	}
}

// WithOnUnload configures the function to call when the plugin is unloaded
func WithOnUnload(fn func() error) Option {
	return func(p *pluginImpl) {
		p.onUnload = fn
	}
}

// WithFunctions adds native Lua functions to the plugin. Functions
// added later replace earlier ones with the same name
func WithFunctions(fns map[string]lua.LGFunction) Option {
	return func(p *pluginImpl) {
		for name, fn := range fns {
			p.native[name] = fn
		}
	}
}

// WithFunction adds a single native Lua function to the plugin.
// This is a singular alias for WithFunctions
func WithFunction(name string, fn lua.LGFunction) Option {
	return WithFunctions(map[string]lua.LGFunction{name: fn})
}

// WithGoFunctions adds plain Go functions to the plugin. They are
// converted using gopher-luar so arguments and return values are
// translated automatically
func WithGoFunctions(fns map[string]interface{}) Option {
	return func(p *pluginImpl) {
		for name, fn := range fns {
			p.reflected[name] = fn
		}
	}
}

// WithRequiresAPI sets the semver constraint the host API must satisfy
func WithRequiresAPI(constraint string) Option {
	return func(p *pluginImpl) {
		p.requires = constraint
	}
}

// New creates a new plugin
func New(name string, opts ...Option) Plugin {
	p := &pluginImpl{
		name:      name,
		native:    make(map[string]lua.LGFunction),
		reflected: make(map[string]interface{}),
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// pluginImpl is immutable once New returns
type pluginImpl struct {
	name      string
	requires  string
	onLoad    func() error
	onUnload  func() error
	native    map[string]lua.LGFunction
	reflected map[string]interface{}
}

// Name implements Plugin.Name
func (p *pluginImpl) Name() string {
	return p.name
}

// OnLoad implements Plugin.OnLoad
func (p *pluginImpl) OnLoad() error {
	if p.onLoad != nil {
		return p.onLoad()
	}

	return nil
}

// OnUnload implements Plugin.OnUnload
func (p *pluginImpl) OnUnload() error {
	if p.onUnload != nil {
		return p.onUnload()
	}

	return nil
}

// RequiresAPI implements APIRequirer
func (p *pluginImpl) RequiresAPI() string {
	return p.requires
}

// ExportedFunctions implements Plugin.ExportedFunctions
func (p *pluginImpl) ExportedFunctions(L *lua.LState) map[string]*lua.LFunction {
	fns := make(map[string]*lua.LFunction, len(p.native)+len(p.reflected))

	for name, fn := range p.native {
		fns[name] = L.NewFunction(fn)
	}

	for name, fn := range p.reflected {
		if _, ok := p.native[name]; ok {
			continue
		}

		lfn, ok := luar.New(L, fn).(*lua.LFunction)
		if !ok {
			logrus.WithFields(logrus.Fields{
				"plugin":   p.name,
				"function": name,
			}).Warnf("skipping export: %T is not a function", fn)
			continue
		}

		fns[name] = lfn
	}

	return fns
}

// compile time checks
var _ Plugin = &pluginImpl{}
var _ APIRequirer = &pluginImpl{}
