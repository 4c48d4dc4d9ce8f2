// Package build turns a plain directory tree into an updatable project:
// a release directory containing a default descriptor and a freshly built
// manifest. The output is what gets mirrored to the remote host.
package build

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"

	"github.com/upgradekit/upgradekit/internal/manifest"
	"github.com/upgradekit/upgradekit/internal/release"
	"github.com/upgradekit/upgradekit/internal/utils"
)

// PathError reports an invalid builder input path.
type PathError struct {
	Path string
	Err  error
}

func (e *PathError) Error() string {
	return fmt.Sprintf("build: path %q: %v", e.Path, e.Err)
}

func (e *PathError) Unwrap() error { return e.Err }

// ConfigError reports a failure writing or validating the default descriptor.
type ConfigError struct {
	Err error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("build: release config: %v", e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// Builder creates the release directory for a project.
type Builder struct {
	ProjectPath     string
	ExcludeHidden   bool
	ExcludePaths    []string
	ExcludePatterns []string
}

// Build creates `<project>/.upgradekit/` with a default config.yaml and a
// manifest of the project tree. An existing release directory is replaced.
// The descriptor still needs hand-editing (version, startup_path) before
// publishing.
func (b *Builder) Build(ctx context.Context) error {
	root, err := utils.ResolvePath(b.ProjectPath)
	if err != nil {
		return &PathError{Path: b.ProjectPath, Err: err}
	}
	if !utils.DirExists(root) {
		return &PathError{Path: root, Err: os.ErrNotExist}
	}
	for _, p := range b.ExcludePaths {
		if utils.NormalizePath(p) == utils.NormalizePath(root) {
			return &PathError{Path: p, Err: fmt.Errorf("project root cannot be excluded")}
		}
	}

	releaseDir := filepath.Join(root, release.DirName)
	if utils.DirExists(releaseDir) {
		slog.Warn("replacing existing release dir", "dir", releaseDir)
		if err := os.RemoveAll(releaseDir); err != nil {
			return &PathError{Path: releaseDir, Err: err}
		}
	}
	if err := os.Mkdir(releaseDir, 0o755); err != nil {
		return &PathError{Path: releaseDir, Err: err}
	}

	configPath := filepath.Join(releaseDir, release.ConfigFileName)
	cfg := release.Default()
	if err := release.Write(configPath, cfg); err != nil {
		return &ConfigError{Err: err}
	}
	if _, err := release.Load(configPath); err != nil {
		return &ConfigError{Err: err}
	}

	store, err := manifest.Build(ctx, root, filepath.Join(releaseDir, cfg.HashDB), &manifest.BuildOptions{
		ExcludePaths:    append([]string{releaseDir}, b.ExcludePaths...),
		ExcludePatterns: b.patterns(),
	})
	if err != nil {
		return err
	}
	defer store.Close()

	count, err := store.Count()
	if err != nil {
		return err
	}
	slog.Info("project built", "dir", releaseDir, "files", count)
	slog.Info("edit the release config before publishing", "path", configPath)
	return nil
}

func (b *Builder) patterns() []string {
	patterns := append([]string{}, b.ExcludePatterns...)

	// The VCS dir never belongs in a shipped manifest.
	patterns = append(patterns, `/\.git(/|$)`)

	if b.ExcludeHidden {
		patterns = append(patterns, `.*/\..*`)
	}
	return patterns
}

// ValidatePatterns pre-checks user-supplied exclusion patterns so a bad
// regex fails fast, before any walking or hashing starts.
func ValidatePatterns(patterns []string) error {
	for _, p := range patterns {
		if _, err := regexp.Compile(p); err != nil {
			return &PathError{Path: p, Err: err}
		}
	}
	return nil
}
