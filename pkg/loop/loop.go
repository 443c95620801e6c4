package loop

import (
	"context"
	"path/filepath"
	"strings"
	"sync"

	"github.com/ppacher/luaplug/pkg/engine"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/oops"
	"github.com/sirupsen/logrus"
	lua "github.com/yuin/gopher-lua"
)

// Task is a task that should be executed inside the loop
type Task func(*lua.LState)

// Loop is an event loop owning a single Lua state. Every access to the
// state happens on the loop's goroutine, which makes a Loop usable as an
// engine.Env for plugins.
type Loop interface {
	engine.Env

	// Start starts the loop
	Start(context.Context) error

	// Schedule a new task to be executed inside the loop
	Schedule(Task)

	// ScheduleAndWait schedules a task on the loop and waits for it to
	// finish. If the loop has already stopped the task is executed on
	// the calling goroutine instead. It must not be called from within
	// a task
	ScheduleAndWait(Task)

	// Stop asks the loop to stop once all tasks scheduled before have
	// been executed
	Stop()

	// Wait for the loop to finish
	Wait()

	// Close releases the Lua state. The loop must have stopped
	Close()
}

// Options used when creating a new event loop
type Options struct {
	// Name is used to label metrics and log messages. Defaults to "default"
	Name string

	// Namespace is the global table plugin functions are installed into.
	// An empty namespace installs them as globals
	Namespace string

	// LuaPaths are prepended to package.path so scripts can require
	// modules from them
	LuaPaths []string

	// InitVM is called with the new lua State before the event loop is initialized
	InitVM func(*lua.LState) error

	// Log is the logger used by the loop
	Log logrus.FieldLogger
}

// loop is the actual implementation of the Loop interface
type loop struct {
	name string
	vm   *lua.LState
	ns   engine.Namespace
	log  logrus.FieldLogger

	queue    *Queue
	duration prometheus.Observer

	wg      sync.WaitGroup
	started bool
	running bool
	done    chan struct{}

	// fallback serializes tasks executed after the loop has stopped
	fallback sync.Mutex
}

// New returns a new event loop
func New(opts *Options) (Loop, error) {
	if opts == nil {
		opts = &Options{}
	}

	name := opts.Name
	if name == "" {
		name = "default"
	}

	log := opts.Log
	if log == nil {
		log = logrus.StandardLogger()
	}

	vm := lua.NewState()

	l := &loop{
		name:     name,
		vm:       vm,
		log:      log.WithField("loop", name),
		queue:    NewQueue(name, "tasks"),
		duration: taskExecDuration.With(prometheus.Labels{"loop": name}),
		done:     make(chan struct{}),
	}

	vm.SetGlobal("__schedule", vm.NewFunction(l.scheduleLua))

	if err := addLuaPaths(vm, opts.LuaPaths); err != nil {
		vm.Close()
		return nil, err
	}

	if opts.InitVM != nil {
		if err := opts.InitVM(vm); err != nil {
			vm.Close()
			return nil, oops.In("loop").With("loop", name).Wrapf(err, "failed to initialize lua state")
		}
	}

	table, err := engine.Table(vm, opts.Namespace)
	if err != nil {
		vm.Close()
		return nil, oops.In("loop").With("loop", name).With("namespace", opts.Namespace).Wrapf(err, "invalid plugin namespace")
	}

	l.ns = engine.NewNamespace(vm, table)

	return l, nil
}

// addLuaPaths prepends a search pattern for each directory to package.path
func addLuaPaths(vm *lua.LState, dirs []string) error {
	if len(dirs) == 0 {
		return nil
	}

	pkg, ok := vm.GetGlobal("package").(*lua.LTable)
	if !ok {
		return oops.In("loop").Errorf("lua package library not loaded")
	}

	var patterns []string
	for _, dir := range dirs {
		patterns = append(patterns,
			filepath.Join(dir, "?.lua"),
			filepath.Join(dir, "?", "init.lua"),
		)
	}

	if current := lua.LVAsString(pkg.RawGetString("path")); current != "" {
		patterns = append(patterns, current)
	}

	pkg.RawSetString("path", lua.LString(strings.Join(patterns, ";")))
	return nil
}

// Start starts the loop and implements Loop.Start
func (l *loop) Start(ctx context.Context) error {
	if l.started {
		return oops.In("loop").With("loop", l.name).Errorf("loop already started")
	}
	l.started = true

	l.wg.Add(1)
	go l.run(ctx)

	return nil
}

func (l *loop) scheduleLua(state *lua.LState) int {
	fn := state.CheckFunction(1)

	l.Schedule(func(state *lua.LState) {
		if err := state.CallByParam(lua.P{
			Fn:      fn,
			NRet:    0,
			Protect: true,
		}); err != nil {
			l.log.WithError(err).Warn("scheduled function failed")
		}
	})

	return 0
}

// Schedule schedules a task to be executed on the loop
func (l *loop) Schedule(task Task) {
	select {
	case <-l.done:
		l.log.Warn("loop stopped, dropping task")
		return
	default:
	}

	l.queue.Push(task)
}

// ScheduleAndWait schedules a task and waits for it to be executed
func (l *loop) ScheduleAndWait(task Task) {
	var once sync.Once
	finished := make(chan struct{})

	exec := func(L *lua.LState) {
		once.Do(func() {
			defer close(finished)
			task(L)
		})
	}

	l.queue.Push(exec)

	select {
	case <-finished:
	case <-l.done:
		// the task was either executed before the loop exited or
		// will never be
		l.fallback.Lock()
		l.runTask(exec)
		l.fallback.Unlock()

		<-finished
	}
}

// Run implements engine.Env
func (l *loop) Run(fn func(engine.Namespace) error) error {
	var err error

	l.ScheduleAndWait(func(*lua.LState) {
		if recovered := oops.Recover(func() {
			err = fn(l.ns)
		}); recovered != nil {
			err = recovered
		}
	})

	return err
}

// Stop asks the loop to stop
func (l *loop) Stop() {
	l.Schedule(func(_ *lua.LState) {
		l.running = false
	})
}

// Wait waits for the loop to stop
func (l *loop) Wait() {
	l.wg.Wait()
}

// Close closes the Lua state
func (l *loop) Close() {
	l.fallback.Lock()
	defer l.fallback.Unlock()

	l.vm.Close()
}

func (l *loop) run(ctx context.Context) {
	defer l.wg.Done()
	defer close(l.done)

	l.log.Debug("event loop started")
	defer l.log.Debug("event loop stopped")

	l.running = true

	for l.running {
		task := l.queue.PopWait(ctx)
		if ctx.Err() != nil {
			l.running = false
			break
		}

		l.runTask(task)
	}
}

func (l *loop) runTask(task Task) {
	timer := prometheus.NewTimer(l.duration)
	defer timer.ObserveDuration()

	if err := oops.Recover(func() {
		task(l.vm)
	}); err != nil {
		l.log.WithError(err).Error("task panicked")
	}
}
