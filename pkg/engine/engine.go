// Package engine describes the part of the Lua runtime that plugins are
// installed into.
package engine

import (
	"errors"
	"fmt"

	lua "github.com/yuin/gopher-lua"
)

// ErrNameTaken is returned by Namespace.Install if the name already
// resolves to a value
var ErrNameTaken = errors.New("name already taken")

// ErrNotATable is returned by Table if the global is bound to a value
// that is not a table
var ErrNotATable = errors.New("global is not a table")

// Namespace is a table of callable names inside a single Lua state
type Namespace interface {
	// State returns the Lua state that owns the namespace. Functions
	// installed into the namespace must be created on this state
	State() *lua.LState

	// Resolve returns the value bound to name, if any
	Resolve(name string) (lua.LValue, bool)

	// Install binds fn to name. It fails with ErrNameTaken if name
	// is already bound
	Install(name string, fn *lua.LFunction) error

	// Remove unbinds name
	Remove(name string)
}

// Env is an execution environment functions can be installed into.
// A Lua state must not be used concurrently so all access to the
// namespace goes through Run.
type Env interface {
	// Run executes fn with exclusive access to the environment's namespace
	// and returns whatever fn returned
	Run(fn func(Namespace) error) error
}

type namespace struct {
	L     *lua.LState
	table *lua.LTable
}

// NewNamespace returns a namespace backed by table. If table is nil
// the global table of L is used
func NewNamespace(L *lua.LState, table *lua.LTable) Namespace {
	if table == nil {
		table = L.G.Global
	}

	return &namespace{
		L:     L,
		table: table,
	}
}

func (ns *namespace) State() *lua.LState {
	return ns.L
}

func (ns *namespace) Resolve(name string) (lua.LValue, bool) {
	v := ns.table.RawGetString(name)
	return v, v != lua.LNil
}

func (ns *namespace) Install(name string, fn *lua.LFunction) error {
	if _, ok := ns.Resolve(name); ok {
		return ErrNameTaken
	}

	ns.table.RawSetString(name, fn)
	return nil
}

func (ns *namespace) Remove(name string) {
	ns.table.RawSetString(name, lua.LNil)
}

// Table returns the global table called name, creating it if it does not
// exist yet. An empty name selects the global table itself. Existing
// globals of other types are never replaced
func Table(L *lua.LState, name string) (*lua.LTable, error) {
	if name == "" {
		return L.G.Global, nil
	}

	switch v := L.G.Global.RawGetString(name).(type) {
	case *lua.LTable:
		return v, nil
	case *lua.LNilType:
	default:
		return nil, fmt.Errorf("%w: %s is a %s", ErrNotATable, name, v.Type())
	}

	t := L.NewTable()
	L.G.Global.RawSetString(name, t)

	return t, nil
}

type direct struct {
	ns Namespace
}

// Direct returns an Env that runs callbacks synchronously on the calling
// goroutine. The caller is responsible for not using the underlying Lua
// state concurrently.
func Direct(ns Namespace) Env {
	return &direct{ns: ns}
}

func (d *direct) Run(fn func(Namespace) error) error {
	return fn(d.ns)
}

// compile time checks
var _ Namespace = &namespace{}
var _ Env = &direct{}
