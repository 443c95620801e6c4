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

// EventKind describes a step in the lifecycle of a plugin
type EventKind int

// Lifecycle events in the order they happen for a single plugin
const (
	EventLoaded EventKind = iota
	EventRegistered
	EventFunctionsRemoved
	EventUnloaded
)

func (k EventKind) String() string {
	switch k {
	case EventLoaded:
		return "loaded"
	case EventRegistered:
		return "registered"
	case EventFunctionsRemoved:
		return "functions-removed"
	case EventUnloaded:
		return "unloaded"
	}
	return "unknown"
}

// Event is passed to the observer configured with WithObserver
type Event struct {
	Kind      EventKind
	Plugin    string
	Functions []string
}

// ManagerOption configures a Manager
type ManagerOption func(m *Manager)

// WithOpener sets the opener used to map plugin libraries.
// Defaults to DefaultOpener
func WithOpener(o Opener) ManagerOption {
	return func(m *Manager) {
		m.opener = o
	}
}

// WithObserver registers a function that is called for every lifecycle
// event. It is called while the manager is locked and must not call back
// into the manager
func WithObserver(fn func(Event)) ManagerOption {
	return func(m *Manager) {
		m.observer = fn
	}
}

// WithLogger sets the logger used by the manager
func WithLogger(log logrus.FieldLogger) ManagerOption {
	return func(m *Manager) {
		m.log = log
	}
}

// Manager keeps track of loaded plugins and the environments their
// functions are installed in.
//
// A function installed by a plugin is never reachable from any environment
// once the plugin has been unloaded: all installed functions are removed
// before the plugin's OnUnload hook runs and before its library is closed.
type Manager struct {
	opener   Opener
	observer func(Event)
	log      logrus.FieldLogger

	lock    sync.RWMutex
	records map[string]*record
}

// NewManager creates a new plugin manager. A host should create exactly
// one manager and call Close when shutting down
func NewManager(opts ...ManagerOption) *Manager {
	m := &Manager{
		opener:  DefaultOpener,
		log:     logrus.StandardLogger(),
		records: make(map[string]*record),
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Load loads the plugin library at path and initializes the plugin. If any
// step fails the library is closed again and the manager is left unchanged
func (m *Manager) Load(path string) error {
	_, err := m.load(path)
	return err
}

func (m *Manager) load(path string) (name string, err error) {
	m.lock.Lock()
	defer m.lock.Unlock()

	defer func() {
		loadsTotal.WithLabelValues(resultLabel(err)).Inc()
	}()

	lib, err := openLibrary(m.opener, path)
	if err != nil {
		return "", err
	}

	return m.adopt(lib)
}

// LoadInstance loads a plugin that is linked into the host binary
func (m *Manager) LoadInstance(p Plugin) error {
	_, err := m.loadConstructor(func() Plugin { return p })
	return err
}

// adopt creates the plugin instance from lib and stores it. lib is
// closed on failure. The caller must hold the write lock
func (m *Manager) adopt(lib Library) (string, error) {
	p, err := instantiate(lib)
	if err != nil {
		m.closeLibrary(lib)
		return "", err
	}

	name := p.Name()
	log := m.log.WithFields(logrus.Fields{
		"plugin": name,
		"path":   lib.Path(),
	})

	if _, ok := m.records[name]; ok {
		m.closeLibrary(lib)
		return "", errDuplicateName(lib.Path(), name)
	}

	if err := callHook(p.OnLoad); err != nil {
		m.closeLibrary(lib)
		return "", errInitFailed(name, err)
	}

	m.records[name] = newRecord(lib, p)
	pluginsLoaded.Inc()

	log.Info("plugin loaded")
	m.notify(Event{Kind: EventLoaded, Plugin: name})

	return name, nil
}

// RegisterAll installs the functions of every plugin that is not yet
// registered in env.
//
// Registration is all-or-nothing: if a function name is already bound in
// env, or is exported by two plugins, an error wrapping a *CollisionError
// is returned and no function is installed.
func (m *Manager) RegisterAll(env engine.Env) error {
	m.lock.Lock()
	defer m.lock.Unlock()

	var pending []*record
	for _, name := range m.sortedNames() {
		if r := m.records[name]; !r.registeredIn(env) {
			pending = append(pending, r)
		}
	}

	if len(pending) == 0 {
		return nil
	}

	installed := make([]*installation, len(pending))

	err := env.Run(func(ns engine.Namespace) error {
		exports := make([]map[string]*lua.LFunction, len(pending))
		claimed := make(map[string]string)

		for i, r := range pending {
			fns, err := collectExports(r.plugin, ns.State())
			if err != nil {
				return err
			}

			for _, fn := range sortedNames(fns) {
				if owner, ok := claimed[fn]; ok {
					return errNameCollision(&CollisionError{Name: fn, Plugin: r.name, Owner: owner})
				}

				if _, ok := ns.Resolve(fn); ok {
					return errNameCollision(&CollisionError{Name: fn, Plugin: r.name, Owner: m.ownerOf(env, fn)})
				}

				claimed[fn] = r.name
			}

			exports[i] = fns
		}

		for i, r := range pending {
			inst, err := install(ns, r.name, exports[i])
			if err != nil {
				for _, done := range installed[:i] {
					done.remove(ns)
				}
				return err
			}
			installed[i] = inst
		}

		return nil
	})

	if err != nil {
		m.log.WithFields(errorFields(err)).Warn("failed to register plugin functions")
		return err
	}

	for i, r := range pending {
		inst := installed[i]
		r.installs[env] = inst
		functionsRegistered.Add(float64(len(inst.names)))

		m.log.WithFields(logrus.Fields{
			"plugin":    r.name,
			"functions": inst.names,
		}).Debug("plugin functions registered")
		m.notify(Event{Kind: EventRegistered, Plugin: r.name, Functions: inst.Names()})
	}

	return nil
}

// ownerOf returns the plugin that installed fn into env or "host"
func (m *Manager) ownerOf(env engine.Env, fn string) string {
	for _, r := range m.records {
		if inst, ok := r.installs[env]; ok {
			if _, ok := inst.trampolines[fn]; ok {
				return r.name
			}
		}
	}
	return "host"
}

// Unload unloads the plugin called name. Its functions are removed from
// every environment first, then OnUnload is called, the plugin is dropped
// and its library closed.
//
// A failing OnUnload does not stop the unload. In that case the plugin is
// gone when Unload returns an error wrapping ErrCleanupFailed.
// Unload cannot be cancelled.
func (m *Manager) Unload(name string) (err error) {
	m.lock.Lock()
	defer m.lock.Unlock()

	defer func() {
		unloadsTotal.WithLabelValues(resultLabel(err)).Inc()
	}()

	r, ok := m.records[name]
	if !ok {
		return errNotFound(name)
	}

	return m.unload(r)
}

// unload tears down r. The caller must hold the write lock
func (m *Manager) unload(r *record) error {
	log := m.log.WithFields(logrus.Fields{
		"plugin": r.name,
		"path":   r.path,
	})

	// nothing has been destroyed yet, so a failure here leaves the plugin
	// loaded and registered in the remaining environments
	for env, inst := range r.installs {
		if err := env.Run(func(ns engine.Namespace) error {
			inst.remove(ns)
			return nil
		}); err != nil {
			return errRemoveFailed(r.name, err)
		}

		delete(r.installs, env)
		functionsRegistered.Sub(float64(len(inst.names)))
	}
	m.notify(Event{Kind: EventFunctionsRemoved, Plugin: r.name})

	var cleanupErr error
	if err := callHook(r.plugin.OnUnload); err != nil {
		cleanupErr = errCleanupFailed(r.name, err)
		log.WithFields(errorFields(cleanupErr)).Warn("plugin cleanup failed, unloading anyway")
	}

	if err := r.release(); err != nil {
		log.WithError(err).Warn("failed to close plugin library")
	}

	delete(m.records, r.name)
	pluginsLoaded.Dec()

	log.Info("plugin unloaded")
	m.notify(Event{Kind: EventUnloaded, Plugin: r.name})

	return cleanupErr
}

// Forget drops everything the manager knows about env. It must be called
// when the Lua state behind env is closed. Functions installed into env
// are revoked but not removed from its namespace
func (m *Manager) Forget(env engine.Env) {
	m.lock.Lock()
	defer m.lock.Unlock()

	for _, r := range m.records {
		if inst, ok := r.installs[env]; ok {
			inst.revoke()
			delete(r.installs, env)
			functionsRegistered.Sub(float64(len(inst.names)))
		}
	}
}

// List returns the names of all loaded plugins, sorted
func (m *Manager) List() []string {
	m.lock.RLock()
	defer m.lock.RUnlock()

	return m.sortedNames()
}

// Plugins returns information about all loaded plugins, sorted by name
func (m *Manager) Plugins() []Info {
	m.lock.RLock()
	defer m.lock.RUnlock()

	infos := make([]Info, 0, len(m.records))
	for _, name := range m.sortedNames() {
		infos = append(infos, m.records[name].info())
	}

	return infos
}

// Get returns the loaded plugin called name
func (m *Manager) Get(name string) (Plugin, bool) {
	m.lock.RLock()
	defer m.lock.RUnlock()

	r, ok := m.records[name]
	if !ok {
		return nil, false
	}

	return r.plugin, true
}

// Close unloads every plugin. Errors of individual plugins are joined
func (m *Manager) Close() error {
	m.lock.Lock()
	defer m.lock.Unlock()

	var errs []error
	for _, name := range m.sortedNames() {
		err := m.unload(m.records[name])
		unloadsTotal.WithLabelValues(resultLabel(err)).Inc()

		if err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func (m *Manager) sortedNames() []string {
	names := make([]string, 0, len(m.records))
	for name := range m.records {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}

func (m *Manager) closeLibrary(lib Library) {
	if err := lib.Close(); err != nil {
		m.log.WithError(err).WithField("path", lib.Path()).Warn("failed to close plugin library")
	}
}

func (m *Manager) notify(ev Event) {
	if m.observer != nil {
		m.observer(ev)
	}
}

// callHook calls a lifecycle hook and turns panics into errors
func callHook(hook func() error) error {
	var err error
	if recovered := oops.Recover(func() {
		err = hook()
	}); recovered != nil {
		return recovered
	}

	return err
}
