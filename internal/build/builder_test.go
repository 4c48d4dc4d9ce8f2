package build

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/upgradekit/upgradekit/internal/manifest"
	"github.com/upgradekit/upgradekit/internal/release"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

func manifestPaths(t *testing.T, root string) []string {
	t.Helper()
	store, err := manifest.OpenStore(filepath.Join(root, release.DirName, release.DefaultManifestName))
	require.NoError(t, err)
	defer store.Close()

	paths, err := store.Paths()
	require.NoError(t, err)
	return paths
}

func TestBuild(t *testing.T) {
	root := filepath.Join(t.TempDir(), "proj")
	writeTree(t, root, map[string]string{
		"main.py":           "print('hi')\n",
		"lib/helper.py":     "pass\n",
		".git/objects/blob": "binary",
	})

	b := &Builder{ProjectPath: root}
	require.NoError(t, b.Build(context.Background()))

	cfg, err := release.Load(filepath.Join(root, release.DirName, release.ConfigFileName))
	require.NoError(t, err)
	assert.Equal(t, release.Default(), cfg)

	assert.ElementsMatch(t, []string{"main.py", "lib/helper.py"}, manifestPaths(t, root))
}

func TestBuild_ExcludeHidden(t *testing.T) {
	root := filepath.Join(t.TempDir(), "proj")
	writeTree(t, root, map[string]string{
		"main.py":        "print('hi')\n",
		".env":           "SECRET=1\n",
		".cache/state":   "x",
		"lib/.hidden.py": "pass\n",
		"lib/visible.py": "pass\n",
	})

	b := &Builder{ProjectPath: root, ExcludeHidden: true}
	require.NoError(t, b.Build(context.Background()))

	assert.ElementsMatch(t, []string{"main.py", "lib/visible.py"}, manifestPaths(t, root))
}

func TestBuild_ExcludePathsAndPatterns(t *testing.T) {
	root := filepath.Join(t.TempDir(), "proj")
	writeTree(t, root, map[string]string{
		"main.py":        "print('hi')\n",
		"main_test.py":   "test\n",
		"docs/readme.md": "docs\n",
		"lib/helper.py":  "pass\n",
	})

	b := &Builder{
		ProjectPath:     root,
		ExcludePaths:    []string{filepath.Join(root, "docs")},
		ExcludePatterns: []string{`_test\.py$`},
	}
	require.NoError(t, b.Build(context.Background()))

	assert.ElementsMatch(t, []string{"main.py", "lib/helper.py"}, manifestPaths(t, root))
}

func TestBuild_ReplacesExistingReleaseDir(t *testing.T) {
	root := filepath.Join(t.TempDir(), "proj")
	writeTree(t, root, map[string]string{"main.py": "print('v1')\n"})

	b := &Builder{ProjectPath: root}
	require.NoError(t, b.Build(context.Background()))

	stale := filepath.Join(root, release.DirName, "stale.txt")
	require.NoError(t, os.WriteFile(stale, []byte("stale"), 0o644))

	require.NoError(t, b.Build(context.Background()))
	assert.NoFileExists(t, stale)
	assert.ElementsMatch(t, []string{"main.py"}, manifestPaths(t, root))
}

func TestBuild_MissingProject(t *testing.T) {
	b := &Builder{ProjectPath: filepath.Join(t.TempDir(), "nope")}

	err := b.Build(context.Background())
	var pathErr *PathError
	require.ErrorAs(t, err, &pathErr)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestBuild_RootExcluded(t *testing.T) {
	root := filepath.Join(t.TempDir(), "proj")
	writeTree(t, root, map[string]string{"main.py": "x"})

	b := &Builder{ProjectPath: root, ExcludePaths: []string{root}}

	err := b.Build(context.Background())
	var pathErr *PathError
	require.ErrorAs(t, err, &pathErr)
	assert.Contains(t, err.Error(), "cannot be excluded")
}

func TestValidatePatterns(t *testing.T) {
	assert.NoError(t, ValidatePatterns(nil))
	assert.NoError(t, ValidatePatterns([]string{`_test\.py$`, `/cache(/|$)`}))

	err := ValidatePatterns([]string{`[unclosed`})
	var pathErr *PathError
	assert.ErrorAs(t, err, &pathErr)
}
