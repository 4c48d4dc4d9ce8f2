package update

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/upgradekit/upgradekit/internal/release"
)

// applyFixture is a live install plus a fully staged update for it.
type applyFixture struct {
	root    string
	staging string
	action  *Action
}

func newApplyFixture(t *testing.T) *applyFixture {
	t.Helper()

	root := filepath.Join(t.TempDir(), "proj")
	writeFiles(t, root, map[string]string{
		"app/main.py":        "print('v1')\n",
		"app/legacy.py":      "old\n",
		"obsolete/helper.py": "old helper\n",
	})
	releaseDir := filepath.Join(root, release.DirName)
	require.NoError(t, os.MkdirAll(releaseDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(releaseDir, "hashes.db"), []byte("old manifest"), 0o644))
	require.NoError(t, release.Write(filepath.Join(releaseDir, release.ConfigFileName), release.Default()))

	staging := filepath.Join(t.TempDir(), "stage")
	writeFiles(t, staging, map[string]string{
		"app/main.py": "print('v2')\n",
		"app/new.py":  "new module\n",
	})
	settings := filepath.Join(staging, SettingsDirName)
	writeFiles(t, settings, map[string]string{
		release.ConfigFileName: "version: 2.0.0\ndescription: v2\nstartup_path: app/main.py\nrequired_only: true\ncleanup: true\nhash_db: hashes.db\n",
		"hashes.db":            "new manifest",
	})

	return &applyFixture{
		root:    root,
		staging: staging,
		action: &Action{
			SchemaVersion:      ActionSchemaVersion,
			Merge:              []string{"app/main.py", "app/new.py"},
			Delete:             []string{"app/legacy.py", "obsolete/helper.py"},
			ProjectRoot:        root,
			StagingDir:         staging,
			StartupPath:        filepath.Join(root, "app", "main.py"),
			RemoteConfigPath:   filepath.Join(settings, release.ConfigFileName),
			RemoteManifestPath: filepath.Join(settings, "hashes.db"),
			Cleanup:            false,
		},
	}
}

func writeFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(content)
}

func TestExecutor_Apply(t *testing.T) {
	fx := newApplyFixture(t)

	require.NoError(t, NewExecutor(fx.action).Apply())

	assert.Equal(t, "print('v2')\n", readFile(t, filepath.Join(fx.root, "app", "main.py")))
	assert.Equal(t, "new module\n", readFile(t, filepath.Join(fx.root, "app", "new.py")))
	assert.NoFileExists(t, filepath.Join(fx.root, "app", "legacy.py"))
	assert.NoFileExists(t, filepath.Join(fx.root, "obsolete", "helper.py"))

	// The parent of the last file in a directory goes with it.
	assert.NoDirExists(t, filepath.Join(fx.root, "obsolete"))
	// app/ still holds main.py and new.py.
	assert.DirExists(t, filepath.Join(fx.root, "app"))

	releaseDir := filepath.Join(fx.root, release.DirName)
	cfg, err := release.Load(filepath.Join(releaseDir, release.ConfigFileName))
	require.NoError(t, err)
	assert.Equal(t, "2.0.0", cfg.Version)
	assert.Equal(t, "new manifest", readFile(t, filepath.Join(releaseDir, "hashes.db")))

	// Cleanup=false keeps the staging dir for inspection.
	assert.DirExists(t, fx.staging)
}

// A second apply of the same action must succeed and converge to the same
// state: replace is replace, and delete tolerates already-gone paths.
func TestExecutor_Apply_Idempotent(t *testing.T) {
	fx := newApplyFixture(t)
	ex := NewExecutor(fx.action)

	require.NoError(t, ex.Apply())
	require.NoError(t, ex.Apply())

	assert.Equal(t, "print('v2')\n", readFile(t, filepath.Join(fx.root, "app", "main.py")))
	assert.NoDirExists(t, filepath.Join(fx.root, "obsolete"))
}

func TestExecutor_Apply_Cleanup(t *testing.T) {
	fx := newApplyFixture(t)
	fx.action.Cleanup = true

	require.NoError(t, NewExecutor(fx.action).Apply())
	assert.NoDirExists(t, fx.staging)
}

func TestExecutor_Apply_MissingStagedFile(t *testing.T) {
	fx := newApplyFixture(t)
	fx.action.Merge = append(fx.action.Merge, "app/phantom.py")

	err := NewExecutor(fx.action).Apply()
	var mergeErr *MergeError
	require.ErrorAs(t, err, &mergeErr)
	assert.Equal(t, "app/phantom.py", mergeErr.Path)
}

func TestExecutor_Apply_MissingStagedConfig(t *testing.T) {
	fx := newApplyFixture(t)
	require.NoError(t, os.Remove(fx.action.RemoteConfigPath))

	err := NewExecutor(fx.action).Apply()
	var cfgErr *ConfigOverwriteError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestExecutor_Apply_MissingStagedManifest(t *testing.T) {
	fx := newApplyFixture(t)
	require.NoError(t, os.Remove(fx.action.RemoteManifestPath))

	err := NewExecutor(fx.action).Apply()
	var dbErr *DBOverwriteError
	assert.ErrorAs(t, err, &dbErr)
}

// Deleting a path directly under the project root must never remove the root
// itself, even if the root ends up empty.
func TestExecutor_Delete_NeverRemovesRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "proj")
	writeFiles(t, root, map[string]string{"only.py": "x"})

	ex := NewExecutor(&Action{
		ProjectRoot: root,
		Delete:      []string{"only.py"},
	})
	require.NoError(t, ex.delete())

	assert.NoFileExists(t, filepath.Join(root, "only.py"))
	assert.DirExists(t, root)
}

func TestExecutor_Restart_MissingStartup(t *testing.T) {
	fx := newApplyFixture(t)
	fx.action.StartupPath = filepath.Join(fx.root, "gone.py")

	err := NewExecutor(fx.action).Restart()
	var restartErr *RestartError
	require.ErrorAs(t, err, &restartErr)
	assert.ErrorIs(t, err, os.ErrNotExist)
}
