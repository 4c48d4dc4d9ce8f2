package release

import (
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validDoc = `version: 1.2.3
description: nightly build
startup_path: app/main.py
required_only: true
cleanup: false
hash_db: hashes.db
`

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte(validDoc))
	require.NoError(t, err)

	assert.Equal(t, "1.2.3", cfg.Version)
	assert.Equal(t, "nightly build", cfg.Description)
	assert.Equal(t, "app/main.py", cfg.StartupPath)
	assert.True(t, cfg.RequiredOnly)
	assert.False(t, cfg.Cleanup)
	assert.Equal(t, "hashes.db", cfg.HashDB)

	v, err := cfg.Semver()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), v.Major())
}

func TestParse_MissingField(t *testing.T) {
	for _, field := range requiredFields {
		t.Run(field, func(t *testing.T) {
			var doc strings.Builder
			for _, line := range strings.Split(strings.TrimSpace(validDoc), "\n") {
				if strings.HasPrefix(line, field+":") {
					continue
				}
				fmt.Fprintln(&doc, line)
			}

			_, err := Parse([]byte(doc.String()))
			var missing *MissingFieldError
			require.ErrorAs(t, err, &missing)
			assert.Equal(t, field, missing.Field)
		})
	}
}

// A boolean explicitly set to false must not trip the presence check.
func TestParse_FalseIsPresent(t *testing.T) {
	doc := strings.ReplaceAll(validDoc, "required_only: true", "required_only: false")

	cfg, err := Parse([]byte(doc))
	require.NoError(t, err)
	assert.False(t, cfg.RequiredOnly)
}

func TestParse_InvalidVersion(t *testing.T) {
	doc := strings.ReplaceAll(validDoc, "1.2.3", "not-a-version")

	_, err := Parse([]byte(doc))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not-a-version")
}

func TestParse_Malformed(t *testing.T) {
	_, err := Parse([]byte("version: [unclosed"))
	assert.Error(t, err)
}

func TestWriteLoad_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), DirName, ConfigFileName)

	want := Default()
	want.Version = "2.0.0"
	want.StartupPath = "run.py"
	require.NoError(t, Write(path, want))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestDefault(t *testing.T) {
	cfg := Default()

	_, err := cfg.Semver()
	require.NoError(t, err)
	assert.True(t, cfg.RequiredOnly)
	assert.True(t, cfg.Cleanup)
	assert.Equal(t, DefaultManifestName, cfg.HashDB)

	// Default descriptors survive their own validation.
	data := fmt.Sprintf(
		"version: %s\ndescription: %s\nstartup_path: %q\nrequired_only: %t\ncleanup: %t\nhash_db: %s\n",
		cfg.Version, cfg.Description, cfg.StartupPath, cfg.RequiredOnly, cfg.Cleanup, cfg.HashDB,
	)
	_, err = Parse([]byte(data))
	assert.NoError(t, err)
}
