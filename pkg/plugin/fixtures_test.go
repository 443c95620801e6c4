package plugin

import (
	"fmt"
	"os"
	"sync"
	"testing"

	"github.com/ppacher/luaplug/pkg/engine"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
	lua "github.com/yuin/gopher-lua"
)

// journal records lifecycle steps in the order they happen
type journal struct {
	lock    sync.Mutex
	entries []string
}

func (j *journal) add(format string, args ...interface{}) {
	j.lock.Lock()
	defer j.lock.Unlock()

	j.entries = append(j.entries, fmt.Sprintf(format, args...))
}

func (j *journal) list() []string {
	j.lock.Lock()
	defer j.lock.Unlock()

	return append([]string(nil), j.entries...)
}

// memLibrary is a Library whose symbols live in memory
type memLibrary struct {
	path    string
	symbols map[string]interface{}
	journal *journal

	closed bool
}

func (lib *memLibrary) Path() string { return lib.path }

func (lib *memLibrary) Lookup(symbol string) (interface{}, error) {
	if lib.closed {
		return nil, fmt.Errorf("%s is closed", lib.path)
	}

	sym, ok := lib.symbols[symbol]
	if !ok {
		return nil, fmt.Errorf("symbol %s not found in %s", symbol, lib.path)
	}
	return sym, nil
}

func (lib *memLibrary) Close() error {
	if lib.closed {
		return fmt.Errorf("%s closed twice", lib.path)
	}
	lib.closed = true

	if lib.journal != nil {
		lib.journal.add("close %s", lib.path)
	}
	return nil
}

// memOpener opens memLibraries by path
type memOpener struct {
	journal *journal

	lock   sync.Mutex
	libs   map[string]map[string]interface{}
	opened []*memLibrary
}

func newMemOpener(j *journal) *memOpener {
	return &memOpener{
		journal: j,
		libs:    make(map[string]map[string]interface{}),
	}
}

// add makes a library at path available that exports create as SymbolName
func (o *memOpener) add(path string, create Constructor) {
	o.addSymbols(path, map[string]interface{}{SymbolName: create})
}

func (o *memOpener) addSymbols(path string, symbols map[string]interface{}) {
	o.lock.Lock()
	defer o.lock.Unlock()

	o.libs[path] = symbols
}

func (o *memOpener) Open(path string) (Library, error) {
	o.lock.Lock()
	defer o.lock.Unlock()

	symbols, ok := o.libs[path]
	if !ok {
		return nil, &os.PathError{Op: "open", Path: path, Err: os.ErrNotExist}
	}

	lib := &memLibrary{
		path:    path,
		symbols: symbols,
		journal: o.journal,
	}
	o.opened = append(o.opened, lib)

	if o.journal != nil {
		o.journal.add("open %s", path)
	}

	return lib, nil
}

// open returns the number of libraries that are still open
func (o *memOpener) open() int {
	o.lock.Lock()
	defer o.lock.Unlock()

	n := 0
	for _, lib := range o.opened {
		if !lib.closed {
			n++
		}
	}
	return n
}

// testPlugin is a configurable Plugin implementation
type testPlugin struct {
	name     string
	fns      map[string]lua.LGFunction
	onLoad   func() error
	onUnload func() error

	lock    sync.Mutex
	exports int
	loads   int
	unloads int
}

func (p *testPlugin) Name() string { return p.name }

func (p *testPlugin) OnLoad() error {
	p.lock.Lock()
	p.loads++
	p.lock.Unlock()

	if p.onLoad != nil {
		return p.onLoad()
	}
	return nil
}

func (p *testPlugin) OnUnload() error {
	p.lock.Lock()
	p.unloads++
	p.lock.Unlock()

	if p.onUnload != nil {
		return p.onUnload()
	}
	return nil
}

func (p *testPlugin) ExportedFunctions(L *lua.LState) map[string]*lua.LFunction {
	p.lock.Lock()
	p.exports++
	p.lock.Unlock()

	res := make(map[string]*lua.LFunction, len(p.fns))
	for name, fn := range p.fns {
		res[name] = L.NewFunction(fn)
	}
	return res
}

func (p *testPlugin) counts() (loads, exports, unloads int) {
	p.lock.Lock()
	defer p.lock.Unlock()

	return p.loads, p.exports, p.unloads
}

func luaDouble(L *lua.LState) int {
	n := L.CheckNumber(1)
	L.Push(n * 2)
	return 1
}

func luaTriple(L *lua.LState) int {
	n := L.CheckNumber(1)
	L.Push(n * 3)
	return 1
}

func newDoublePlugin() *testPlugin {
	return &testPlugin{
		name: "double",
		fns: map[string]lua.LGFunction{
			"double": luaDouble,
		},
	}
}

func constructorFor(p Plugin) Constructor {
	return func() Plugin { return p }
}

// newTestEnv returns a fresh Lua state and a synchronous environment on it
func newTestEnv(t *testing.T) (*lua.LState, engine.Namespace, engine.Env) {
	L := lua.NewState()
	t.Cleanup(L.Close)

	ns := engine.NewNamespace(L, nil)
	return L, ns, engine.Direct(ns)
}

// newTestManager returns a manager using opener and a logger capturing
// all entries
func newTestManager(opener Opener, opts ...ManagerOption) (*Manager, *test.Hook) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	opts = append([]ManagerOption{WithOpener(opener), WithLogger(logger)}, opts...)
	return NewManager(opts...), hook
}

// eval runs chunk and returns its first result
func eval(t *testing.T, L *lua.LState, chunk string) lua.LValue {
	t.Helper()

	top := L.GetTop()
	require.NoError(t, L.DoString(chunk))

	if L.GetTop() == top {
		return lua.LNil
	}

	res := L.Get(top + 1)
	L.SetTop(top)
	return res
}

func resolvable(ns engine.Namespace, name string) bool {
	_, ok := ns.Resolve(name)
	return ok
}
