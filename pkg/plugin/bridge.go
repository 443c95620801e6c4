package plugin

import (
	"errors"
	"sort"
	"sync"

	"github.com/ppacher/luaplug/pkg/engine"
	"github.com/samber/oops"
	"github.com/sirupsen/logrus"
	lua "github.com/yuin/gopher-lua"
)

// installation tracks the functions a single plugin installed into a
// single environment.
//
// The namespace never holds the plugin's functions directly. Every name is
// bound to a host owned trampoline that forwards to the plugin function.
// Revoking the installation drops the references to the plugin functions,
// so a trampoline a script kept in a local variable raises an error instead
// of calling into a released library.
type installation struct {
	plugin string
	names  []string

	lock        sync.RWMutex
	targets     map[string]*lua.LFunction
	trampolines map[string]*lua.LFunction
}

// collectExports calls ExportedFunctions and drops invalid entries
func collectExports(p Plugin, L *lua.LState) (map[string]*lua.LFunction, error) {
	var exports map[string]*lua.LFunction

	if err := oops.Recover(func() {
		exports = p.ExportedFunctions(L)
	}); err != nil {
		return nil, errExportFailed(p.Name(), err)
	}

	// the plugin owns the returned map, so invalid entries are filtered
	// into a copy
	valid := make(map[string]*lua.LFunction, len(exports))
	for name, fn := range exports {
		if name == "" || fn == nil {
			logrus.WithFields(logrus.Fields{
				"plugin":   p.Name(),
				"function": name,
			}).Warn("skipping invalid export")
			continue
		}
		valid[name] = fn
	}

	return valid, nil
}

// install binds every export to ns. On failure all names bound so far are
// removed again.
func install(ns engine.Namespace, plugin string, exports map[string]*lua.LFunction) (*installation, error) {
	inst := &installation{
		plugin:      plugin,
		names:       sortedNames(exports),
		targets:     make(map[string]*lua.LFunction, len(exports)),
		trampolines: make(map[string]*lua.LFunction, len(exports)),
	}

	for _, name := range inst.names {
		inst.targets[name] = exports[name]
		inst.trampolines[name] = inst.trampoline(ns.State(), name)
	}

	for i, name := range inst.names {
		if err := ns.Install(name, inst.trampolines[name]); err != nil {
			for _, installed := range inst.names[:i] {
				ns.Remove(installed)
			}
			if errors.Is(err, engine.ErrNameTaken) {
				return nil, errNameCollision(&CollisionError{Name: name, Plugin: plugin, Owner: "unknown"})
			}
			return nil, err
		}
	}

	return inst, nil
}

// Names returns the names installed, sorted
func (inst *installation) Names() []string {
	return append([]string(nil), inst.names...)
}

// remove revokes the installation and unbinds every name that is still
// bound to one of its trampolines. Values a script assigned to the same
// name in the meantime are left alone.
func (inst *installation) remove(ns engine.Namespace) {
	trampolines := inst.revoke()

	for _, name := range inst.names {
		if v, ok := ns.Resolve(name); ok && v == trampolines[name] {
			ns.Remove(name)
		}
	}
}

// revoke drops all references to the plugin's functions
func (inst *installation) revoke() map[string]*lua.LFunction {
	inst.lock.Lock()
	defer inst.lock.Unlock()

	inst.targets = nil
	return inst.trampolines
}

func (inst *installation) target(name string) *lua.LFunction {
	inst.lock.RLock()
	defer inst.lock.RUnlock()

	return inst.targets[name]
}

func (inst *installation) trampoline(L *lua.LState, name string) *lua.LFunction {
	return L.NewFunction(func(L *lua.LState) int {
		fn := inst.target(name)
		if fn == nil {
			L.RaiseError("%s: plugin %s has been unloaded", name, inst.plugin)
			return 0
		}

		n := L.GetTop()
		args := make([]lua.LValue, n)
		for i := range args {
			args[i] = L.Get(i + 1)
		}

		L.Push(fn)
		for _, arg := range args {
			L.Push(arg)
		}
		L.Call(n, lua.MultRet)

		return L.GetTop() - n
	})
}

func sortedNames(fns map[string]*lua.LFunction) []string {
	names := make([]string, 0, len(fns))
	for name := range fns {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}
