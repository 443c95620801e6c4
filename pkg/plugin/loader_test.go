package plugin

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	lua "github.com/yuin/gopher-lua"
)

func Test_LoadDirectory(t *testing.T) {
	dir := t.TempDir()

	for _, name := range []string{"a.so", "b.dylib", "c.txt", "broken.so"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o600))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.so"), 0o700))

	opener := newMemOpener(nil)
	opener.add(filepath.Join(dir, "a.so"), constructorFor(newDoublePlugin()))
	opener.add(filepath.Join(dir, "b.dylib"), constructorFor(&testPlugin{
		name: "triple",
		fns:  map[string]lua.LGFunction{"triple": luaTriple},
	}))
	opener.add(filepath.Join(dir, "c.txt"), constructorFor(&testPlugin{name: "text"}))
	opener.addSymbols(filepath.Join(dir, "broken.so"), map[string]interface{}{})

	m, hook := newTestManager(opener)

	loaded, err := m.LoadDirectory(dir)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"double", "triple"}, loaded)
	assert.Equal(t, []string{"double", "triple"}, m.List())

	// broken.so is skipped with a warning
	require.NotNil(t, hook.LastEntry())
	var warned bool
	for _, entry := range hook.AllEntries() {
		if entry.Data["code"] == CodeSymbolMissing {
			warned = true
		}
	}
	assert.True(t, warned)
}

func Test_LoadDirectoryFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "double.so")
	require.NoError(t, os.WriteFile(path, nil, 0o600))

	opener := newMemOpener(nil)
	opener.add(path, constructorFor(newDoublePlugin()))

	m, _ := newTestManager(opener)

	loaded, err := m.LoadDirectory(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"double"}, loaded)

	// loading a single file reports errors
	_, err = m.LoadDirectory(path)
	assert.True(t, errors.Is(err, ErrDuplicateName))
}

func Test_LoadDirectoryMissing(t *testing.T) {
	m, _ := newTestManager(newMemOpener(nil))

	_, err := m.LoadDirectory(filepath.Join(t.TempDir(), "does-not-exist"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
	assert.Empty(t, m.List())
}

func Test_LibraryPattern(t *testing.T) {
	for name, match := range map[string]bool{
		"plugin.so":    true,
		"plugin.dylib": true,
		"plugin.dll":   true,
		"plugin.go":    false,
		"plugin.so.1":  false,
		"README":       false,
	} {
		assert.Equal(t, match, libraryPattern.Match(name), name)
	}
}
