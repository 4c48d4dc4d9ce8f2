package manifest

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"

	"github.com/upgradekit/upgradekit/internal/utils"
)

const (
	defaultFlushInterval = 3 * time.Second
)

// BuildOptions tune a manifest build. The zero value is usable.
type BuildOptions struct {
	// ExcludePaths are absolute paths to skip. Directory paths prune the
	// whole subtree before it is descended; file paths skip single files.
	ExcludePaths []string

	// ExcludePatterns are regular expressions matched (unanchored) against
	// normalized paths of both directories and files.
	ExcludePatterns []string

	// Workers bounds the hashing pool. Defaults to the core count, since
	// hashing is CPU-bound and files are independent.
	Workers int

	// FlushInterval caps how long hashed entries sit in memory before they
	// are committed in one transaction. Defaults to 3s.
	FlushInterval time.Duration
}

// Build walks rootDir, fingerprints every file that survives exclusion, and
// persists the result as a fresh store at destPath. Any pre-existing store at
// destPath is replaced. The store is built at a temp path and renamed into
// place, so a failed build never leaves a partial manifest behind.
func Build(ctx context.Context, rootDir, destPath string, opts *BuildOptions) (*Store, error) {
	if opts == nil {
		opts = &BuildOptions{}
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	flushInterval := opts.FlushInterval
	if flushInterval <= 0 {
		flushInterval = defaultFlushInterval
	}

	root, err := utils.ResolvePath(rootDir)
	if err != nil {
		return nil, &BuildError{Dir: rootDir, Err: err}
	}
	if !utils.DirExists(root) {
		return nil, &BuildError{Dir: root, Err: os.ErrNotExist}
	}

	patterns, err := compilePatterns(opts.ExcludePatterns)
	if err != nil {
		return nil, &BuildError{Dir: root, Err: err}
	}
	excludeFiles, excludeDirs := splitExcludePaths(opts.ExcludePaths)

	// Fresh store, never an incremental patch of the old one.
	tmpPath := destPath + ".building"
	for _, stale := range []string{destPath, tmpPath} {
		if err := removeStoreFiles(stale); err != nil {
			return nil, &BuildError{Dir: root, Err: err}
		}
	}

	store, err := OpenStore(tmpPath)
	if err != nil {
		return nil, &BuildError{Dir: root, Err: err}
	}

	start := time.Now()
	count, err := runBuild(ctx, store, root, workers, flushInterval, excludeFiles, excludeDirs, patterns)
	if err != nil {
		store.Close()
		removeStoreFiles(tmpPath)
		return nil, &BuildError{Dir: root, Err: err}
	}

	if err := store.Close(); err != nil {
		removeStoreFiles(tmpPath)
		return nil, &BuildError{Dir: root, Err: err}
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		removeStoreFiles(tmpPath)
		return nil, &BuildError{Dir: root, Err: err}
	}

	slog.Info("manifest built", "dir", root, "files", count, "took", time.Since(start).Round(time.Millisecond))
	return OpenStore(destPath)
}

// runBuild fans file hashing out to a bounded worker pool and feeds the
// results back to a single writer that flushes batched transactions.
func runBuild(
	ctx context.Context,
	store *Store,
	root string,
	workers int,
	flushInterval time.Duration,
	excludeFiles map[string]struct{},
	excludeDirs []string,
	patterns []*regexp.Regexp,
) (int, error) {
	hasher := NewHasher(root)

	g, gctx := errgroup.WithContext(ctx)
	paths := make(chan string, workers*2)
	results := make(chan Entry, workers*2)

	g.Go(func() error {
		defer close(paths)
		return walkTree(gctx, root, excludeFiles, excludeDirs, patterns, paths)
	})

	var workerWG sync.WaitGroup
	workerWG.Add(workers)
	for i := 0; i < workers; i++ {
		g.Go(func() error {
			defer workerWG.Done()
			for path := range paths {
				entry, err := hasher.Entry(path)
				if err != nil {
					return err
				}
				select {
				case results <- entry:
				case <-gctx.Done():
					return gctx.Err()
				}
			}
			return nil
		})
	}

	go func() {
		workerWG.Wait()
		close(results)
	}()

	// Single writer. Workers only produce (path, fingerprint) pairs, so the
	// store itself needs no locking during a build.
	count := 0
	var batch []Entry
	var writeErr error
	lastFlush := time.Now()
	for entry := range results {
		if writeErr != nil {
			// Keep draining so the workers can finish and exit.
			continue
		}
		batch = append(batch, entry)
		count++
		if time.Since(lastFlush) >= flushInterval {
			if writeErr = store.putBatch(batch); writeErr != nil {
				continue
			}
			slog.Debug("manifest batch flushed", "entries", len(batch), "total", humanize.Comma(int64(count)))
			batch = batch[:0]
			lastFlush = time.Now()
		}
	}

	if err := g.Wait(); err != nil {
		return 0, err
	}
	if writeErr != nil {
		return 0, writeErr
	}

	if err := store.putBatch(batch); err != nil {
		return 0, err
	}
	return count, nil
}

// walkTree enumerates files under root, pruning excluded directories before
// descending so excluded subtrees are never opened or hashed.
func walkTree(
	ctx context.Context,
	root string,
	excludeFiles map[string]struct{},
	excludeDirs []string,
	patterns []*regexp.Regexp,
	out chan<- string,
) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		norm := utils.NormalizePath(path)

		if d.IsDir() {
			if path != root && shouldExcludeDir(norm, excludeDirs, patterns) {
				slog.Debug("manifest skipping subtree", "dir", norm)
				return fs.SkipDir
			}
			return nil
		}

		if !d.Type().IsRegular() {
			return nil
		}
		if _, excluded := excludeFiles[norm]; excluded {
			return nil
		}
		if matchesAny(norm, patterns) {
			return nil
		}

		select {
		case out <- path:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
}

func shouldExcludeDir(normDir string, excludeDirs []string, patterns []*regexp.Regexp) bool {
	for _, ex := range excludeDirs {
		if strings.Contains(normDir, ex) {
			return true
		}
	}
	return matchesAny(normDir, patterns)
}

func matchesAny(path string, patterns []*regexp.Regexp) bool {
	for _, p := range patterns {
		if p.MatchString(path) {
			return true
		}
	}
	return false
}

func compilePatterns(exprs []string) ([]*regexp.Regexp, error) {
	patterns := make([]*regexp.Regexp, 0, len(exprs))
	for _, expr := range exprs {
		p, err := regexp.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("exclude pattern %q: %w", expr, err)
		}
		patterns = append(patterns, p)
	}
	return patterns, nil
}

// splitExcludePaths separates exclusion rules into file-level matches and
// directory prefixes, mirroring how they are checked during the walk.
func splitExcludePaths(paths []string) (map[string]struct{}, []string) {
	files := make(map[string]struct{})
	var dirs []string
	for _, p := range utils.NormalizePaths(paths) {
		if utils.DirExists(p) {
			dirs = append(dirs, p)
		} else {
			files[p] = struct{}{}
		}
	}
	return files, dirs
}

// removeStoreFiles removes a store file along with its WAL sidecars.
func removeStoreFiles(path string) error {
	for _, p := range []string{path, path + "-wal", path + "-shm"} {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}
