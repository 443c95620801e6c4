package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/samber/oops"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Parse(t *testing.T) {
	cfg, err := Parse([]byte(`
plugins:
  - /usr/lib/luaplug
  - ./double.so
lua_paths:
  - ./lib
namespace: native
log_level: debug
metrics_address: ":9090"
`))
	require.NoError(t, err)

	assert.Equal(t, &Config{
		PluginPaths:    []string{"/usr/lib/luaplug", "./double.so"},
		LuaPaths:       []string{"./lib"},
		Namespace:      "native",
		LogLevel:       "debug",
		MetricsAddress: ":9090",
	}, cfg)

	lvl, err := cfg.Level()
	require.NoError(t, err)
	assert.Equal(t, logrus.DebugLevel, lvl)
}

func Test_ParseDefaults(t *testing.T) {
	cfg, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func Test_ParseInvalid(t *testing.T) {
	cases := map[string]string{
		"syntax":    "plugins: [",
		"namespace": "namespace: 1st-table",
		"log level": "log_level: loud",
		"type":      "plugins: 42",
	}

	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			require.Error(t, err)

			oopsErr, ok := oops.AsOops(err)
			require.True(t, ok)
			assert.Equal(t, CodeInvalid, oopsErr.Code())
		})
	}
}

func Test_Load(t *testing.T) {
	path := filepath.Join(t.TempDir(), "luaplug.yaml")
	require.NoError(t, os.WriteFile(path, []byte("namespace: native\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "native", cfg.Namespace)
	assert.Equal(t, "info", cfg.LogLevel)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func Test_Merge(t *testing.T) {
	cfg := &Config{
		PluginPaths: []string{"a"},
		Namespace:   "native",
		LogLevel:    "info",
	}

	cfg.Merge(Config{
		PluginPaths:    []string{"b"},
		LuaPaths:       []string{"lib"},
		LogLevel:       "debug",
		MetricsAddress: ":9090",
	})

	assert.Equal(t, &Config{
		PluginPaths:    []string{"a", "b"},
		LuaPaths:       []string{"lib"},
		Namespace:      "native",
		LogLevel:       "debug",
		MetricsAddress: ":9090",
	}, cfg)
}
