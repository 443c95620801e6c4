package plugin

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_DefaultOpenerMissingFile(t *testing.T) {
	m, _ := newTestManager(DefaultOpener)

	err := m.Load(filepath.Join(t.TempDir(), "missing.so"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrLibraryNotFound))
	assert.Empty(t, m.List())
}

func Test_DefaultOpenerNotAPlugin(t *testing.T) {
	path := filepath.Join(t.TempDir(), "garbage.so")
	require.NoError(t, os.WriteFile(path, []byte("definitely not an ELF file"), 0o600))

	m, _ := newTestManager(DefaultOpener)

	err := m.Load(path)
	assert.True(t, errors.Is(err, ErrLibraryNotFound))
	assert.Equal(t, CodeLibraryNotFound, ErrorCode(err))
}

func Test_OpenerReturnsNothing(t *testing.T) {
	m, _ := newTestManager(OpenerFunc(func(string) (Library, error) {
		return nil, nil
	}))

	assert.True(t, errors.Is(m.Load("/plugins/nothing.so"), ErrLibraryNotFound))
}

func Test_BuiltinLibrary(t *testing.T) {
	create := constructorFor(newDoublePlugin())
	lib := &builtinLibrary{create: create}

	assert.Equal(t, BuiltinPath, lib.Path())

	_, err := lib.Lookup("Other")
	assert.Error(t, err)

	p, err := instantiate(lib)
	require.NoError(t, err)
	assert.Equal(t, "double", p.Name())
	assert.NoError(t, lib.Close())
}

func Test_CheckAPI(t *testing.T) {
	for constraint, ok := range map[string]bool{
		"":         true,
		"1.0.0":    true,
		"^1":       true,
		">= 1, <2": true,
		"< 1.0.0":  false,
		"2.x":      false,
		"garbage!": false,
	} {
		p := &constrained{testPlugin: newDoublePlugin(), constraint: constraint}
		assert.Equal(t, ok, checkAPI(p) == nil, constraint)
	}
}

func Test_ErrorCode(t *testing.T) {
	assert.Equal(t, "", ErrorCode(nil))
	assert.Equal(t, "", ErrorCode(errors.New("plain")))
	assert.Equal(t, CodeNotFound, ErrorCode(errNotFound("x")))

	assert.Equal(t, "success", resultLabel(nil))
	assert.Equal(t, "not_found", resultLabel(errNotFound("x")))
	assert.Equal(t, "error", resultLabel(errors.New("plain")))

	fields := errorFields(errNotFound("x"))
	assert.Equal(t, CodeNotFound, fields["code"])
	assert.Equal(t, "x", fields["plugin"])
}
