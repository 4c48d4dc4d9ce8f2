// Package update implements the update pipeline: version check, plan
// construction from a manifest diff, staging of downloads, and the
// cross-process hand-off to the apply step.
package update

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"github.com/upgradekit/upgradekit/internal/release"
	"github.com/upgradekit/upgradekit/internal/utils"
)

const (
	logsDirName = "logs"
	lockName    = "update.lock"
)

// Project is the local install: a project root with a release directory
// holding the descriptor and manifest the next update will diff against.
type Project struct {
	Root       string
	ReleaseDir string
	ConfigPath string

	lock *flock.Flock
}

// OpenProject resolves and validates the local install layout. The root, the
// release directory and the descriptor must all exist before any network or
// diff work starts.
func OpenProject(root string) (*Project, error) {
	resolved, err := utils.ResolvePath(root)
	if err != nil {
		return nil, fmt.Errorf("project root %q: %w", root, err)
	}
	if !utils.DirExists(resolved) {
		return nil, fmt.Errorf("project root %q: %w", resolved, os.ErrNotExist)
	}

	releaseDir := filepath.Join(resolved, release.DirName)
	if !utils.DirExists(releaseDir) {
		return nil, fmt.Errorf("release dir %q: %w", releaseDir, os.ErrNotExist)
	}

	configPath := filepath.Join(releaseDir, release.ConfigFileName)
	if !utils.FileExists(configPath) {
		return nil, fmt.Errorf("release config %q: %w", configPath, os.ErrNotExist)
	}

	return &Project{
		Root:       resolved,
		ReleaseDir: releaseDir,
		ConfigPath: configPath,
		lock:       flock.New(filepath.Join(releaseDir, lockName)),
	}, nil
}

// Config loads and validates the local release descriptor.
func (p *Project) Config() (*release.Config, error) {
	return release.Load(p.ConfigPath)
}

// ManifestPath is where the local manifest named by the descriptor lives.
func (p *Project) ManifestPath(cfg *release.Config) string {
	return filepath.Join(p.ReleaseDir, cfg.HashDB)
}

// LogsDir is where apply failures leave their crash records.
func (p *Project) LogsDir() string {
	return filepath.Join(p.ReleaseDir, logsDirName)
}

// TryLock takes the cross-process update lock. It is held from plan through
// dispatch so two update attempts cannot interleave against one install.
func (p *Project) TryLock() error {
	locked, err := p.lock.TryLock()
	if err != nil {
		return fmt.Errorf("update lock: %w", err)
	}
	if !locked {
		return ErrUpdateInProgress
	}
	return nil
}

func (p *Project) Unlock() error {
	return p.lock.Unlock()
}
