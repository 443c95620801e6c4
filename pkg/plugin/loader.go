package plugin

import (
	"os"
	"path/filepath"

	"github.com/gobwas/glob"
	"github.com/samber/oops"
)

// libraryPattern matches the file names LoadDirectory considers
var libraryPattern = glob.MustCompile("*.{so,dylib,dll}")

// LoadDirectory loads all plugins from the given directory and returns
// their names. Plugins that fail to load are logged and skipped.
// If the specified path is a file, it is loaded directly and any error is
// returned
func (m *Manager) LoadDirectory(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, oops.In("plugin").With("path", path).Wrapf(err, "failed to read plugin directory")
	}

	if !info.IsDir() {
		name, err := m.load(path)
		if err != nil {
			return nil, err
		}
		return []string{name}, nil
	}

	content, err := os.ReadDir(path)
	if err != nil {
		return nil, oops.In("plugin").With("path", path).Wrapf(err, "failed to read plugin directory")
	}

	var loaded []string

	for _, entry := range content {
		// we skip any sub-directories
		if entry.IsDir() || !libraryPattern.Match(entry.Name()) {
			continue
		}

		name, err := m.load(filepath.Join(path, entry.Name()))
		if err != nil {
			// skip the plugin
			m.log.WithFields(errorFields(err)).Warnf("failed to load plugin %s", entry.Name())
			continue
		}

		loaded = append(loaded, name)
	}

	return loaded, nil
}
