package plugin

import "sync"

var (
	builtinLock    sync.Mutex
	builtinPlugins []Constructor
)

// Register registers the constructor of a plugin that is linked into the
// host binary. It is meant to be called from init functions. Plugins are
// only created once LoadBuiltin is called on a Manager
func Register(create Constructor) {
	builtinLock.Lock()
	defer builtinLock.Unlock()

	builtinPlugins = append(builtinPlugins, create)
}

// Builtin returns the constructors of all built-in plugins in
// registration order
func Builtin() []Constructor {
	builtinLock.Lock()
	defer builtinLock.Unlock()

	return append([]Constructor(nil), builtinPlugins...)
}

// LoadBuiltin loads every registered built-in plugin. Plugins that fail to
// load are logged and skipped. It returns the names of all plugins loaded
func (m *Manager) LoadBuiltin() []string {
	var loaded []string

	for _, create := range Builtin() {
		name, err := m.loadConstructor(create)
		if err != nil {
			m.log.WithFields(errorFields(err)).Warn("failed to load built-in plugin")
			continue
		}

		loaded = append(loaded, name)
	}

	return loaded
}

func (m *Manager) loadConstructor(create Constructor) (name string, err error) {
	m.lock.Lock()
	defer m.lock.Unlock()

	defer func() {
		loadsTotal.WithLabelValues(resultLabel(err)).Inc()
	}()

	return m.adopt(&builtinLibrary{create: create})
}
