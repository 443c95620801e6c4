//go:build linux || darwin || freebsd

package plugin

import (
	"errors"
	"os"
	goplugin "plugin"
	"sync"
)

// sharedLibrary is a Go plugin opened with the standard library.
//
// The Go runtime never unmaps a plugin once it has been opened, so Close
// only drops the handle. Lookups after Close fail.
type sharedLibrary struct {
	path string

	lock   sync.Mutex
	handle *goplugin.Plugin
}

func (lib *sharedLibrary) Path() string {
	return lib.path
}

func (lib *sharedLibrary) Lookup(symbol string) (interface{}, error) {
	lib.lock.Lock()
	defer lib.lock.Unlock()

	if lib.handle == nil {
		return nil, errors.New("library has been closed")
	}

	return lib.handle.Lookup(symbol)
}

func (lib *sharedLibrary) Close() error {
	lib.lock.Lock()
	defer lib.lock.Unlock()

	if lib.handle == nil {
		return errors.New("library already closed")
	}

	lib.handle = nil
	return nil
}

type defaultOpener struct{}

// DefaultOpener opens Go plugins built with -buildmode=plugin. The file
// extension is not inspected; .so, .dylib and .dll are accepted alike
var DefaultOpener Opener = defaultOpener{}

func (defaultOpener) Open(path string) (Library, error) {
	// plugin.Open does not return a typed error for missing files
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}

	handle, err := goplugin.Open(path)
	if err != nil {
		return nil, err
	}

	return &sharedLibrary{
		path:   path,
		handle: handle,
	}, nil
}

// compile time checks
var _ Library = &sharedLibrary{}
