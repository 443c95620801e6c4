package loop

import (
	"testing"

	"github.com/ppacher/luaplug/pkg/plugin"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	lua "github.com/yuin/gopher-lua"
)

func Test_LoopAsPluginEnv(t *testing.T) {
	logger, _ := test.NewNullLogger()

	loop := newStartedLoop(t, &Options{Log: logger})
	m := plugin.NewManager(plugin.WithLogger(logger))

	require.NoError(t, m.LoadInstance(plugin.New("double",
		plugin.WithFunction("double", func(L *lua.LState) int {
			L.Push(L.CheckNumber(1) * 2)
			return 1
		}),
	)))
	require.NoError(t, m.RegisterAll(loop))

	eval := func(chunk string) (lua.LValue, error) {
		var (
			res lua.LValue
			err error
		)
		loop.ScheduleAndWait(func(L *lua.LState) {
			if err = L.DoString(chunk); err == nil {
				res = L.GetGlobal("result")
			}
		})
		return res, err
	}

	res, err := eval(`result = double(21)`)
	require.NoError(t, err)
	assert.Equal(t, lua.LNumber(42), res)

	require.NoError(t, m.Unload("double"))

	_, err = eval(`result = double(21)`)
	assert.Error(t, err)

	// unloading after the loop stopped still removes functions
	require.NoError(t, m.LoadInstance(plugin.New("double",
		plugin.WithFunction("double", func(L *lua.LState) int { return 0 }),
	)))
	require.NoError(t, m.RegisterAll(loop))

	loop.Stop()
	loop.Wait()

	require.NoError(t, m.Close())
	assert.Empty(t, m.List())

	res, err = eval(`result = double`)
	require.NoError(t, err)
	assert.Equal(t, lua.LNil, res)
}
