package main

import (
	"context"
	"sync"

	"github.com/ppacher/luaplug/pkg/config"
	"github.com/ppacher/luaplug/pkg/loop"
	"github.com/ppacher/luaplug/pkg/plugin"
	"github.com/samber/oops"
	"github.com/sirupsen/logrus"
	lua "github.com/yuin/gopher-lua"
)

// host wires the plugin manager to a single event loop
type host struct {
	cfg     *config.Config
	log     logrus.FieldLogger
	manager *plugin.Manager
	loop    loop.Loop

	// lock serializes reloads and console commands
	lock sync.Mutex
}

func newHost(cfg *config.Config, log logrus.FieldLogger, opts ...plugin.ManagerOption) (*host, error) {
	l, err := loop.New(&loop.Options{
		Name:      "main",
		Namespace: cfg.Namespace,
		LuaPaths:  cfg.LuaPaths,
		Log:       log,
	})
	if err != nil {
		return nil, err
	}

	opts = append([]plugin.ManagerOption{plugin.WithLogger(log)}, opts...)

	return &host{
		cfg:     cfg,
		log:     log,
		manager: plugin.NewManager(opts...),
		loop:    l,
	}, nil
}

// start loads all plugins, starts the loop and registers plugin functions
func (h *host) start(ctx context.Context) error {
	builtin := h.manager.LoadBuiltin()
	h.log.Debugf("built-in plugins: %v", builtin)

	h.loadExternal()

	if err := h.loop.Start(ctx); err != nil {
		return err
	}

	return h.manager.RegisterAll(h.loop)
}

// loadExternal loads the plugins of all configured paths. Failures are
// logged
func (h *host) loadExternal() {
	for _, path := range h.cfg.PluginPaths {
		loaded, err := h.manager.LoadDirectory(path)
		if err != nil {
			h.log.WithError(err).Errorf("failed to load plugins from %s", path)
			continue
		}

		h.log.Debugf("found %d plugins in %s", len(loaded), path)
	}
}

// reload unloads all external plugins, loads them again from the
// configured paths and registers them
func (h *host) reload() error {
	h.lock.Lock()
	defer h.lock.Unlock()

	for _, info := range h.manager.Plugins() {
		if info.Builtin() {
			continue
		}

		if err := h.manager.Unload(info.Name); err != nil {
			h.log.WithError(err).Warnf("failed to unload plugin %s", info.Name)
		}
	}

	h.loadExternal()

	return h.manager.RegisterAll(h.loop)
}

// runFile executes the script at path on the loop
func (h *host) runFile(path string) error {
	return h.run(func(L *lua.LState) error {
		return L.DoFile(path)
	})
}

// runString executes chunk on the loop
func (h *host) runString(chunk string) error {
	return h.run(func(L *lua.LState) error {
		return L.DoString(chunk)
	})
}

func (h *host) run(fn func(L *lua.LState) error) error {
	var err error
	h.loop.ScheduleAndWait(func(L *lua.LState) {
		err = fn(L)
	})

	if err != nil {
		return oops.In("script").Wrap(err)
	}
	return nil
}

// shutdown unloads all plugins while the loop is still running, then
// stops the loop
func (h *host) shutdown() {
	h.lock.Lock()
	defer h.lock.Unlock()

	if err := h.manager.Close(); err != nil {
		h.log.WithError(err).Warn("failed to unload plugins")
	}

	h.loop.Stop()
	h.loop.Wait()
	h.manager.Forget(h.loop)
	h.loop.Close()
}
