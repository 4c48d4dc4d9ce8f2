package update

import (
	"errors"
	"fmt"
)

var (
	// ErrNoUpdate is returned when a plan under required_only has nothing to
	// merge and nothing to delete: a version bump with no file changes.
	// Publishing with required_only=false forces past it.
	ErrNoUpdate = errors.New("update: no files to update")

	// ErrUpdateInProgress means another process holds the update lock.
	ErrUpdateInProgress = errors.New("update: another update is in progress")
)

// LoadActionError means the serialized action descriptor could not be read
// or decoded. Unrecoverable: a corrupt descriptor offers no safe partial
// apply.
type LoadActionError struct {
	Path string
	Err  error
}

func (e *LoadActionError) Error() string {
	return fmt.Sprintf("update: load action %q: %v", e.Path, e.Err)
}

func (e *LoadActionError) Unwrap() error { return e.Err }

// MergeError is a failure copying one staged file into the install. Paths
// merged before the failure stay merged; there is no rollback.
type MergeError struct {
	Path string
	Err  error
}

func (e *MergeError) Error() string {
	return fmt.Sprintf("update: merge %q: %v", e.Path, e.Err)
}

func (e *MergeError) Unwrap() error { return e.Err }

// DeleteError is a failure removing a file the remote no longer ships.
type DeleteError struct {
	Path string
	Err  error
}

func (e *DeleteError) Error() string {
	return fmt.Sprintf("update: delete %q: %v", e.Path, e.Err)
}

func (e *DeleteError) Unwrap() error { return e.Err }

// ConfigOverwriteError is a failure replacing the local release descriptor
// with the staged remote copy.
type ConfigOverwriteError struct {
	Err error
}

func (e *ConfigOverwriteError) Error() string {
	return fmt.Sprintf("update: overwrite release config: %v", e.Err)
}

func (e *ConfigOverwriteError) Unwrap() error { return e.Err }

// DBOverwriteError is a failure replacing the local manifest with the staged
// remote copy.
type DBOverwriteError struct {
	Err error
}

func (e *DBOverwriteError) Error() string {
	return fmt.Sprintf("update: overwrite manifest db: %v", e.Err)
}

func (e *DBOverwriteError) Unwrap() error { return e.Err }

// RestartError is a failure transferring control to the application's
// startup target. Requires operator intervention.
type RestartError struct {
	StartupPath string
	Err         error
}

func (e *RestartError) Error() string {
	return fmt.Sprintf("update: restart %q: %v", e.StartupPath, e.Err)
}

func (e *RestartError) Unwrap() error { return e.Err }
