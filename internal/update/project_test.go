package update

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/upgradekit/upgradekit/internal/release"
)

func TestOpenProject(t *testing.T) {
	root := publishTree(t, map[string]string{"main.py": "print('hi')\n"}, releaseConfig("1.0.0"))

	p, err := OpenProject(root)
	require.NoError(t, err)

	assert.Equal(t, root, p.Root)
	assert.Equal(t, filepath.Join(root, release.DirName), p.ReleaseDir)
	assert.Equal(t, filepath.Join(p.ReleaseDir, release.ConfigFileName), p.ConfigPath)
	assert.Equal(t, filepath.Join(p.ReleaseDir, "hashes.db"), p.ManifestPath(&release.Config{HashDB: "hashes.db"}))
	assert.Equal(t, filepath.Join(p.ReleaseDir, "logs"), p.LogsDir())

	cfg, err := p.Config()
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", cfg.Version)
}

func TestOpenProject_MissingRoot(t *testing.T) {
	_, err := OpenProject(filepath.Join(t.TempDir(), "nope"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestOpenProject_MissingReleaseDir(t *testing.T) {
	root := t.TempDir()

	_, err := OpenProject(root)
	require.ErrorIs(t, err, os.ErrNotExist)
	assert.Contains(t, err.Error(), release.DirName)
}

func TestOpenProject_MissingConfig(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, release.DirName), 0o755))

	_, err := OpenProject(root)
	require.ErrorIs(t, err, os.ErrNotExist)
	assert.Contains(t, err.Error(), release.ConfigFileName)
}

func TestProject_TryLock(t *testing.T) {
	root := publishTree(t, map[string]string{"main.py": "x"}, releaseConfig("1.0.0"))

	first, err := OpenProject(root)
	require.NoError(t, err)
	second, err := OpenProject(root)
	require.NoError(t, err)

	require.NoError(t, first.TryLock())
	assert.ErrorIs(t, second.TryLock(), ErrUpdateInProgress)

	require.NoError(t, first.Unlock())
	require.NoError(t, second.TryLock())
	require.NoError(t, second.Unlock())
}
