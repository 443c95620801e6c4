package main

import (
	"testing"

	"github.com/ppacher/luaplug/pkg/engine"
	"github.com/ppacher/luaplug/pkg/plugin"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	lua "github.com/yuin/gopher-lua"
)

func Test_Double(t *testing.T) {
	logger, _ := test.NewNullLogger()
	m := plugin.NewManager(plugin.WithLogger(logger))

	require.NoError(t, m.LoadInstance(CreatePlugin()))

	L := lua.NewState()
	defer L.Close()

	env := engine.Direct(engine.NewNamespace(L, nil))
	require.NoError(t, m.RegisterAll(env))

	require.NoError(t, L.DoString(`result = double(2)`))
	assert.Equal(t, lua.LNumber(4), L.GetGlobal("result"))

	require.NoError(t, m.Close())
}
