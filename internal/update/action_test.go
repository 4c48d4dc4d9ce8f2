package update

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAction_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), SettingsDirName, ActionFileName)

	want := &Action{
		Merge:              []string{"app/main.py", "app/new.py"},
		Delete:             []string{"app/legacy.py"},
		ProjectRoot:        "/opt/proj",
		StagingDir:         "/tmp/upgradekit-stage-123",
		StartupPath:        "/opt/proj/app/main.py",
		RemoteConfigPath:   "/tmp/upgradekit-stage-123/.settings/config.yaml",
		RemoteManifestPath: "/tmp/upgradekit-stage-123/.settings/hashes.db",
		Cleanup:            true,
	}
	require.NoError(t, WriteAction(path, want))

	got, err := LoadAction(path)
	require.NoError(t, err)
	assert.Equal(t, ActionSchemaVersion, got.SchemaVersion)
	assert.Equal(t, want, got)
}

func TestLoadAction_Missing(t *testing.T) {
	_, err := LoadAction(filepath.Join(t.TempDir(), "nope.json"))
	var loadErr *LoadActionError
	require.ErrorAs(t, err, &loadErr)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadAction_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), ActionFileName)
	require.NoError(t, os.WriteFile(path, []byte("{truncated"), 0o644))

	_, err := LoadAction(path)
	var loadErr *LoadActionError
	assert.ErrorAs(t, err, &loadErr)
}

func TestLoadAction_SchemaMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), ActionFileName)
	require.NoError(t, os.WriteFile(path, []byte(`{"schema_version": 99}`), 0o644))

	_, err := LoadAction(path)
	var loadErr *LoadActionError
	require.ErrorAs(t, err, &loadErr)
	assert.Contains(t, err.Error(), "schema version 99")
}

func TestWriteCrashRecord(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")

	path, err := WriteCrashRecord(dir, assert.AnError)
	require.NoError(t, err)
	assert.Contains(t, filepath.Base(path), "crash_")

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), assert.AnError.Error())
}
