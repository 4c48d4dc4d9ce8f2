// Package release models the small YAML descriptor that declares a release:
// its version, entry point and update policy flags. One descriptor exists on
// each side (local install, remote host) under the release directory.
package release

import (
	"fmt"
	"os"

	"github.com/Masterminds/semver/v3"
	"gopkg.in/yaml.v3"

	"github.com/upgradekit/upgradekit/internal/utils"
)

const (
	// DirName is the release directory, a fixed subpath beneath the project
	// root and mirrored verbatim on the remote host.
	DirName = ".upgradekit"

	// ConfigFileName is the descriptor file inside the release directory.
	ConfigFileName = "config.yaml"

	// DefaultManifestName is the default manifest db filename.
	DefaultManifestName = "hashes.db"
)

// Config is the release descriptor. All six fields are required; a document
// missing any of them fails validation at load time, before any network or
// diff work begins.
type Config struct {
	Version      string `yaml:"version"`
	Description  string `yaml:"description"`
	StartupPath  string `yaml:"startup_path"`
	RequiredOnly bool   `yaml:"required_only"`
	Cleanup      bool   `yaml:"cleanup"`
	HashDB       string `yaml:"hash_db"`
}

// MissingFieldError reports a required descriptor key that is absent.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("release config: missing %q attribute", e.Field)
}

var requiredFields = []string{
	"version",
	"description",
	"startup_path",
	"required_only",
	"cleanup",
	"hash_db",
}

// Default returns the descriptor written by a fresh project build.
func Default() *Config {
	return &Config{
		Version:      "0.1.0",
		Description:  "Built with UpgradeKit",
		StartupPath:  "",
		RequiredOnly: true,
		Cleanup:      true,
		HashDB:       DefaultManifestName,
	}
}

// Parse decodes and validates a descriptor document. Presence of every key
// is checked against the raw document, since absent booleans are otherwise
// indistinguishable from false.
func Parse(data []byte) (*Config, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("release config: %w", err)
	}
	for _, field := range requiredFields {
		if _, ok := raw[field]; !ok {
			return nil, &MissingFieldError{Field: field}
		}
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("release config: %w", err)
	}

	if _, err := semver.NewVersion(cfg.Version); err != nil {
		return nil, fmt.Errorf("release config: version %q: %w", cfg.Version, err)
	}

	return &cfg, nil
}

// Load reads and validates the descriptor at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("release config: read %q: %w", path, err)
	}
	return Parse(data)
}

// Write serializes the descriptor to path, creating parent directories.
func Write(path string, cfg *Config) error {
	if err := utils.EnsureParent(path); err != nil {
		return fmt.Errorf("release config: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("release config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// Semver returns the parsed version. Config instances produced by Parse or
// Load always carry a valid semver string.
func (c *Config) Semver() (*semver.Version, error) {
	return semver.NewVersion(c.Version)
}
