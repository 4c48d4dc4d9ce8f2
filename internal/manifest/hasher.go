package manifest

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/upgradekit/upgradekit/internal/utils"
)

const (
	defaultChunkSize = 4 * 1024
	largeChunkSize   = 8 * 1024

	// Files at or above this size are read with the larger chunk size.
	// Throughput tuning only, the digest is identical either way.
	largeFileBytes = 1 << 30
)

// Hasher produces content fingerprints and manifest-relative paths for files
// under a single project root.
type Hasher struct {
	rootName string
}

func NewHasher(rootDir string) *Hasher {
	return &Hasher{rootName: filepath.Base(utils.NormalizePath(rootDir))}
}

// HashFile streams the file through SHA-256 and returns the lowercase hex
// digest. Any read failure surfaces as a HashingError.
func (h *Hasher) HashFile(path string) (string, error) {
	stat, err := os.Stat(path)
	if err != nil {
		return "", &HashingError{Path: path, Err: err}
	}

	chunkSize := defaultChunkSize
	if stat.Size() >= largeFileBytes {
		chunkSize = largeChunkSize
	}

	file, err := os.Open(path)
	if err != nil {
		return "", &HashingError{Path: path, Err: err}
	}
	defer file.Close()

	digest := sha256.New()
	buf := make([]byte, chunkSize)
	for {
		n, err := file.Read(buf)
		if n > 0 {
			digest.Write(buf[:n])
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", &HashingError{Path: path, Err: err}
		}
	}

	return hex.EncodeToString(digest.Sum(nil)), nil
}

// RelativePath strips everything up to and including the project root's
// directory name and returns the remainder with forward slashes.
func (h *Hasher) RelativePath(path string) (string, error) {
	norm := utils.NormalizePath(path)
	marker := h.rootName + "/"

	idx := strings.LastIndex(norm, marker)
	if idx < 0 {
		return "", &PathResolutionError{Root: h.rootName, Path: path}
	}

	return norm[idx+len(marker):], nil
}

// Entry hashes the file and resolves its manifest-relative path in one step.
func (h *Hasher) Entry(path string) (Entry, error) {
	rel, err := h.RelativePath(path)
	if err != nil {
		return Entry{}, err
	}

	sum, err := h.HashFile(path)
	if err != nil {
		return Entry{}, err
	}

	return Entry{Path: rel, Fingerprint: sum}, nil
}
