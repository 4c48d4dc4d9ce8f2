package manifest

import (
	"sort"

	mapset "github.com/deckarep/golang-set/v2"
)

// MatchedFile is a path present on both sides with the same fingerprint.
type MatchedFile struct {
	Path        string
	Fingerprint string
}

// ChangedFile is a path present on both sides with different fingerprints.
type ChangedFile struct {
	Path              string
	LocalFingerprint  string
	RemoteFingerprint string
}

// DiffResult is the four-way partition of two manifests keyed by relative
// path. The four parts are pairwise disjoint and together cover the union of
// both manifests' keys.
type DiffResult struct {
	LocalOnly  mapset.Set[string]
	RemoteOnly mapset.Set[string]
	Matching   []MatchedFile
	Mismatched []ChangedFile
}

// MismatchedPaths returns the paths of all entries whose fingerprints differ.
func (d *DiffResult) MismatchedPaths() []string {
	paths := make([]string, 0, len(d.Mismatched))
	for _, c := range d.Mismatched {
		paths = append(paths, c.Path)
	}
	return paths
}

// Empty reports whether both manifests describe identical trees.
func (d *DiffResult) Empty() bool {
	return d.LocalOnly.Cardinality() == 0 &&
		d.RemoteOnly.Cardinality() == 0 &&
		len(d.Mismatched) == 0
}

// Compare loads both stores and partitions their union of paths into
// local-only, remote-only, matching and mismatched. Pure with respect to its
// inputs: the same two manifests always produce the same result.
func Compare(local, remote *Store) (*DiffResult, error) {
	localAll, err := local.All()
	if err != nil {
		return nil, err
	}
	remoteAll, err := remote.All()
	if err != nil {
		return nil, err
	}
	return compareMaps(localAll, remoteAll), nil
}

func compareMaps(localAll, remoteAll map[string]string) *DiffResult {
	localKeys := mapset.NewThreadUnsafeSet[string]()
	for path := range localAll {
		localKeys.Add(path)
	}
	remoteKeys := mapset.NewThreadUnsafeSet[string]()
	for path := range remoteAll {
		remoteKeys.Add(path)
	}

	common := localKeys.Intersect(remoteKeys).ToSlice()
	sort.Strings(common)

	result := &DiffResult{
		LocalOnly:  localKeys.Difference(remoteKeys),
		RemoteOnly: remoteKeys.Difference(localKeys),
	}

	for _, path := range common {
		localFp := localAll[path]
		remoteFp := remoteAll[path]
		if localFp == remoteFp {
			result.Matching = append(result.Matching, MatchedFile{Path: path, Fingerprint: localFp})
		} else {
			result.Mismatched = append(result.Mismatched, ChangedFile{
				Path:              path,
				LocalFingerprint:  localFp,
				RemoteFingerprint: remoteFp,
			})
		}
	}

	return result
}
