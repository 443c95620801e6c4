package plugin

import (
	"errors"
	"fmt"

	"github.com/samber/oops"
	"github.com/sirupsen/logrus"
)

// Error codes attached to all errors returned by this package. Use
// oops.AsOops(err).Code() to read them
const (
	CodeLibraryNotFound = "LIBRARY_NOT_FOUND"
	CodeSymbolMissing   = "SYMBOL_MISSING"
	CodeInvalidPlugin   = "INVALID_PLUGIN"
	CodeDuplicateName   = "DUPLICATE_NAME"
	CodeInitFailed      = "INIT_FAILED"
	CodeNameCollision   = "NAME_COLLISION"
	CodeExportFailed    = "EXPORT_FAILED"
	CodeNotFound        = "NOT_FOUND"
	CodeCleanupFailed   = "CLEANUP_FAILED"
	CodeRemoveFailed    = "REMOVE_FAILED"
)

// Sentinel errors for errors.Is checks.
var (
	// ErrLibraryNotFound is returned if a shared library cannot be mapped
	ErrLibraryNotFound = errors.New("library not found")
	// ErrSymbolMissing is returned if the library does not export SymbolName
	ErrSymbolMissing = errors.New("plugin symbol missing")
	// ErrInvalidPlugin is returned if the exported symbol did not produce a usable plugin
	ErrInvalidPlugin = errors.New("invalid plugin")
	// ErrDuplicateName is returned when loading a plugin whose name is already loaded
	ErrDuplicateName = errors.New("plugin already loaded")
	// ErrInitFailed is returned if OnLoad failed. The cause is wrapped as well
	ErrInitFailed = errors.New("plugin initialization failed")
	// ErrNameCollision is returned if a function name is claimed twice
	ErrNameCollision = errors.New("function name collision")
	// ErrExportFailed is returned if ExportedFunctions panicked
	ErrExportFailed = errors.New("plugin failed to export functions")
	// ErrNotFound is returned when unloading a plugin that is not loaded
	ErrNotFound = errors.New("plugin not loaded")
	// ErrCleanupFailed is returned if OnUnload failed. The plugin is unloaded nevertheless
	ErrCleanupFailed = errors.New("plugin cleanup failed")
	// ErrPluginsUnsupported is returned by the default opener on platforms
	// without support for Go plugins
	ErrPluginsUnsupported = errors.New("plugins are not supported on this platform")
)

// CollisionError describes a function name that is claimed by more than
// one owner. Owner is either the name of another plugin or "host" for
// values that were not installed by a plugin.
type CollisionError struct {
	Name   string
	Plugin string
	Owner  string
}

func (e *CollisionError) Error() string {
	return fmt.Sprintf("%s: %q of plugin %s is already provided by %s", ErrNameCollision, e.Name, e.Plugin, e.Owner)
}

// Is makes errors.Is(err, ErrNameCollision) work
func (e *CollisionError) Is(target error) bool {
	return target == ErrNameCollision
}

func errorf(code string) oops.OopsErrorBuilder {
	return oops.In("plugin").Code(code)
}

func wrap(sentinel, cause error) error {
	if cause == nil {
		return sentinel
	}
	return fmt.Errorf("%w: %w", sentinel, cause)
}

func errLibraryNotFound(path string, cause error) error {
	return errorf(CodeLibraryNotFound).With("path", path).Wrap(wrap(ErrLibraryNotFound, cause))
}

func errSymbolMissing(path string, cause error) error {
	return errorf(CodeSymbolMissing).
		With("path", path).
		With("symbol", SymbolName).
		Wrap(wrap(ErrSymbolMissing, cause))
}

func errInvalidPlugin(path string, reason string) error {
	return errorf(CodeInvalidPlugin).
		With("path", path).
		With("reason", reason).
		Wrap(fmt.Errorf("%w: %s", ErrInvalidPlugin, reason))
}

func errDuplicateName(path, name string) error {
	return errorf(CodeDuplicateName).
		With("path", path).
		With("plugin", name).
		Wrap(fmt.Errorf("%w: %s", ErrDuplicateName, name))
}

func errInitFailed(name string, cause error) error {
	return errorf(CodeInitFailed).With("plugin", name).Wrap(wrap(ErrInitFailed, cause))
}

func errNameCollision(c *CollisionError) error {
	return errorf(CodeNameCollision).
		With("plugin", c.Plugin).
		With("function", c.Name).
		With("owner", c.Owner).
		Wrap(c)
}

func errExportFailed(name string, cause error) error {
	return errorf(CodeExportFailed).With("plugin", name).Wrap(wrap(ErrExportFailed, cause))
}

func errNotFound(name string) error {
	return errorf(CodeNotFound).With("plugin", name).Wrap(fmt.Errorf("%w: %s", ErrNotFound, name))
}

func errCleanupFailed(name string, cause error) error {
	return errorf(CodeCleanupFailed).With("plugin", name).Wrap(wrap(ErrCleanupFailed, cause))
}

func errRemoveFailed(name string, cause error) error {
	return errorf(CodeRemoveFailed).With("plugin", name).Wrapf(cause, "failed to remove functions of %s", name)
}

// ErrorCode returns the error code attached to err or an empty string
func ErrorCode(err error) string {
	if oopsErr, ok := oops.AsOops(err); ok {
		code, _ := any(oopsErr.Code()).(string)
		return code
	}
	return ""
}

// errorFields returns logrus fields for err, including the code and
// context of oops errors
func errorFields(err error) logrus.Fields {
	fields := logrus.Fields{
		logrus.ErrorKey: err,
	}

	if oopsErr, ok := oops.AsOops(err); ok {
		if code := ErrorCode(err); code != "" {
			fields["code"] = code
		}
		for k, v := range oopsErr.Context() {
			fields[k] = v
		}
	}

	return fields
}
