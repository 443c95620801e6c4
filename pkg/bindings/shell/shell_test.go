package shell

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	lua "github.com/yuin/gopher-lua"
)

func newState(t *testing.T) *lua.LState {
	L := lua.NewState()
	t.Cleanup(L.Close)

	for name, fn := range New().ExportedFunctions(L) {
		L.SetGlobal(name, fn)
	}

	return L
}

func Test_SplitJoin(t *testing.T) {
	L := newState(t)

	require.NoError(t, L.DoString(`
		local args = shell_split([[echo "hello world" it\'s]])
		count = #args
		second = args[2]
		third = args[3]

		joined = shell_join({"rm", "my file"})
		broken, splitErr = shell_split([[echo "unterminated]])
	`))

	assert.Equal(t, lua.LNumber(3), L.GetGlobal("count"))
	assert.Equal(t, lua.LString("hello world"), L.GetGlobal("second"))
	assert.Equal(t, lua.LString("it's"), L.GetGlobal("third"))
	assert.Equal(t, lua.LString(`rm 'my file'`), L.GetGlobal("joined"))
	assert.Equal(t, lua.LNil, L.GetGlobal("broken"))
	assert.NotEqual(t, lua.LNil, L.GetGlobal("splitErr"))
}

func Test_Exec(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}

	L := newState(t)

	require.NoError(t, L.DoString(`
		output, reason, code = shell_exec("echo hello")
		_, failReason, failCode = shell_exec("exit 3", true)
		_, sigReason, sigCode = shell_exec("kill -9 $$", true)
	`))

	assert.Equal(t, lua.LString("hello\n"), L.GetGlobal("output"))
	assert.Equal(t, lua.LString("exit"), L.GetGlobal("reason"))
	assert.Equal(t, lua.LNumber(0), L.GetGlobal("code"))

	assert.Equal(t, lua.LString("exit"), L.GetGlobal("failReason"))
	assert.Equal(t, lua.LNumber(3), L.GetGlobal("failCode"))

	assert.Equal(t, lua.LString("signal"), L.GetGlobal("sigReason"))
	assert.Equal(t, lua.LNumber(9), L.GetGlobal("sigCode"))

	assert.Error(t, L.DoString(`shell_exec("")`))
	assert.Error(t, L.DoString(`shell_exec("/does/not/exist")`))
}
