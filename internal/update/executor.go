package update

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/upgradekit/upgradekit/internal/release"
	"github.com/upgradekit/upgradekit/internal/utils"
)

// Executor applies one action descriptor to the live install. It runs as the
// replacement process image, after the application that owned these files
// has already exited. Steps are not retried; merge and delete are idempotent,
// so a failed apply is corrected by the next successful cycle.
type Executor struct {
	action     *Action
	releaseDir string
}

func NewExecutor(action *Action) *Executor {
	return &Executor{
		action:     action,
		releaseDir: filepath.Join(action.ProjectRoot, release.DirName),
	}
}

// Apply runs the file mutation steps in order: merge, delete, descriptor
// overwrite, manifest overwrite, optional staging cleanup. Restart is a
// separate call so the caller can log completion first.
func (e *Executor) Apply() error {
	if err := e.merge(); err != nil {
		return err
	}
	if err := e.delete(); err != nil {
		return err
	}
	if err := e.overwriteConfig(); err != nil {
		return err
	}
	if err := e.overwriteManifest(); err != nil {
		return err
	}
	return e.cleanup()
}

// merge copies every staged file over its destination. Previously merged
// paths stay merged on failure; there is no rollback.
func (e *Executor) merge() error {
	slog.Info("merging files", "count", len(e.action.Merge))
	for _, rel := range e.action.Merge {
		src := filepath.Join(e.action.StagingDir, filepath.FromSlash(rel))
		dst := filepath.Join(e.action.ProjectRoot, filepath.FromSlash(rel))
		if err := utils.ReplaceFile(src, dst); err != nil {
			return &MergeError{Path: rel, Err: err}
		}
		slog.Debug("merged", "path", rel)
	}
	return nil
}

// delete removes files the remote no longer ships, then their parent
// directories when empty, so directories do not accumulate across version
// bumps.
func (e *Executor) delete() error {
	slog.Info("deleting files", "count", len(e.action.Delete))
	for _, rel := range e.action.Delete {
		dst := filepath.Join(e.action.ProjectRoot, filepath.FromSlash(rel))
		if utils.FileExists(dst) {
			if err := os.Remove(dst); err != nil {
				return &DeleteError{Path: rel, Err: err}
			}
			slog.Debug("deleted", "path", rel)
		}

		dir := filepath.Dir(dst)
		if dir == e.action.ProjectRoot {
			continue
		}
		entries, err := os.ReadDir(dir)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return &DeleteError{Path: rel, Err: err}
		}
		if len(entries) == 0 {
			if err := os.Remove(dir); err != nil {
				return &DeleteError{Path: rel, Err: err}
			}
			slog.Debug("removed empty dir", "dir", dir)
		}
	}
	return nil
}

// overwriteConfig replaces the local release descriptor with the staged
// remote copy.
func (e *Executor) overwriteConfig() error {
	src := e.action.RemoteConfigPath
	if !utils.FileExists(src) {
		return &ConfigOverwriteError{Err: fmt.Errorf("staged config %q: %w", src, os.ErrNotExist)}
	}
	dst := filepath.Join(e.releaseDir, filepath.Base(src))
	if err := utils.ReplaceFile(src, dst); err != nil {
		return &ConfigOverwriteError{Err: err}
	}
	return nil
}

// overwriteManifest replaces the local manifest with the staged remote copy.
// This is what makes the next check/plan cycle diff against the new baseline.
func (e *Executor) overwriteManifest() error {
	src := e.action.RemoteManifestPath
	if !utils.FileExists(src) {
		return &DBOverwriteError{Err: fmt.Errorf("staged manifest %q: %w", src, os.ErrNotExist)}
	}
	dst := filepath.Join(e.releaseDir, filepath.Base(src))
	if err := utils.ReplaceFile(src, dst); err != nil {
		return &DBOverwriteError{Err: err}
	}
	return nil
}

func (e *Executor) cleanup() error {
	if !e.action.Cleanup {
		return nil
	}
	slog.Info("cleaning staging dir", "dir", e.action.StagingDir)
	if err := os.RemoveAll(e.action.StagingDir); err != nil {
		return fmt.Errorf("update: cleanup staging %q: %w", e.action.StagingDir, err)
	}
	return nil
}

// Restart replaces this process image with the application's startup target,
// so the application resumes under the same process tree entry with no
// intermediate process left behind.
func (e *Executor) Restart() error {
	startup := e.action.StartupPath
	if !utils.FileExists(startup) {
		return &RestartError{StartupPath: startup, Err: os.ErrNotExist}
	}

	slog.Info("restarting application", "startup", startup)
	if err := replaceProcess(startup, []string{startup}); err != nil {
		return &RestartError{StartupPath: startup, Err: err}
	}
	return nil
}
