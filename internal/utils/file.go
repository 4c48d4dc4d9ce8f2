package utils

import (
	"io"
	"os"
	"path/filepath"
)

// CopyFile copies a file from src to dst, creating parent directories as
// needed. An existing file at dst is truncated.
func CopyFile(src, dst string) error {
	if err := EnsureDir(filepath.Dir(dst)); err != nil {
		return err
	}

	srcFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer srcFile.Close()

	dstFile, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer dstFile.Close()

	_, err = io.Copy(dstFile, srcFile)
	return err
}

// ReplaceFile copies src over dst, removing any existing file at dst first.
// Safe to repeat: a destination already holding the new content is simply
// overwritten again.
func ReplaceFile(src, dst string) error {
	if FileExists(dst) {
		if err := os.Remove(dst); err != nil {
			return err
		}
	}
	return CopyFile(src, dst)
}
