package manifest

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a path has no entry in the store.
	ErrNotFound = errors.New("manifest: path not found")
)

// HashingError wraps the I/O failure behind a file fingerprint attempt.
// Callers must treat it as fatal to the enclosing build; a file that cannot
// be read must never be recorded with a placeholder fingerprint.
type HashingError struct {
	Path string
	Err  error
}

func (e *HashingError) Error() string {
	return fmt.Sprintf("manifest: hash %q: %v", e.Path, e.Err)
}

func (e *HashingError) Unwrap() error { return e.Err }

// PathResolutionError is returned when a file's absolute path does not
// contain the project root's directory name, so no manifest-relative path
// can be derived. Symlinks and mounts can produce such paths.
type PathResolutionError struct {
	Root string
	Path string
}

func (e *PathResolutionError) Error() string {
	return fmt.Sprintf("manifest: root segment %q not found in %q", e.Root, e.Path)
}

// BuildError wraps any failure during a manifest build. No partial store is
// left behind when a build fails.
type BuildError struct {
	Dir string
	Err error
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("manifest: build %q: %v", e.Dir, e.Err)
}

func (e *BuildError) Unwrap() error { return e.Err }
