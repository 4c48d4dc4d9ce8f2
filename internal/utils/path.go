package utils

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

func ResolvePath(path string) (string, error) {
	if path == "" {
		return "", errors.New("path cannot be empty")
	}

	// Expand `~` to the user's home directory
	if strings.HasPrefix(path, "~") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", errors.New("failed to retrieve home directory")
		}
		path = strings.Replace(path, "~", homeDir, 1)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}

	return filepath.Clean(absPath), nil
}

// NormalizePath converts path separators to forward slashes and strips any
// trailing slash. Manifest keys and exclusion rules are always compared in
// this form regardless of platform.
func NormalizePath(path string) string {
	norm := strings.ReplaceAll(path, "\\", "/")
	if norm == "/" {
		return norm
	}
	return strings.TrimSuffix(norm, "/")
}

func NormalizePaths(paths []string) []string {
	normed := make([]string, len(paths))
	for i, p := range paths {
		normed[i] = NormalizePath(p)
	}
	return normed
}

func EnsureParent(path string) error {
	dir := filepath.Dir(path)
	return EnsureDir(dir)
}

func EnsureDir(path string) error {
	// already exists
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	return os.MkdirAll(path, 0o755)
}

func DirExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}

func FileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
