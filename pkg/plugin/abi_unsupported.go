//go:build !(linux || darwin || freebsd)

package plugin

type defaultOpener struct{}

// DefaultOpener fails on platforms without support for Go plugins
var DefaultOpener Opener = defaultOpener{}

func (defaultOpener) Open(path string) (Library, error) {
	return nil, ErrPluginsUnsupported
}
