package plugin

import lua "github.com/yuin/gopher-lua"

// SymbolName defines the name of the symbol that must be exported by all
// plugin libraries. It must be a function of type Constructor
const SymbolName = "CreatePlugin"

// APIVersion is the version of the plugin API implemented by this host.
// Plugins implementing APIRequirer are checked against it
const APIVersion = "1.0.0"

// Constructor is the signature of the function exported as SymbolName. It
// must return a new instance that is owned by the caller from then on
type Constructor = func() Plugin

// Plugin describes a plugin that provides native functions for Lua.
// Implementations must be safe for concurrent use.
type Plugin interface {
	// Name returns the name of the plugin. It must not change during the
	// lifetime of the plugin and must be unique within a Manager
	Name() string

	// OnLoad is called exactly once when the plugin is loaded. If it fails
	// the plugin is discarded and must not leave any side effects behind
	OnLoad() error

	// OnUnload is called exactly once when the plugin is unloaded, after all
	// functions of the plugin have been removed from every Lua state
	OnUnload() error

	// ExportedFunctions returns the functions the plugin provides, keyed by
	// the name they should be callable as. It is called once for each Lua
	// state the plugin is registered in and must return functions with the
	// same names and behavior each time. Functions must be created on L and
	// must not be shared between states
	ExportedFunctions(L *lua.LState) map[string]*lua.LFunction
}

// APIRequirer may be implemented by plugins that depend on a specific
// version range of the host API. RequiresAPI returns a semver constraint
// like ">= 1.0, < 2" or an empty string for no constraint
type APIRequirer interface {
	RequiresAPI() string
}
