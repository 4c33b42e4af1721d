package vfs

import (
	"io"
	"os"
	"path/filepath"
)

// WriteWhole writes content to destPath atomically: the data lands in a
// sibling temp file first and is renamed into place only once fully
// written. A partially written file is never visible under the final name.
// Fails with ItemExists if destPath already exists; no silent overwrite.
func WriteWhole(destPath string, content io.Reader) (int64, error) {
	if _, err := os.Stat(destPath); err == nil {
		return 0, newError(KindItemExists, filepath.Base(destPath), nil)
	}

	dir := filepath.Dir(destPath)
	tmp, err := os.CreateTemp(dir, ReservedPrefix+"*.tmp")
	if err != nil {
		return 0, newError(KindAccessDenied, destPath, err)
	}
	tmpName := tmp.Name()

	n, err := io.Copy(tmp, content)
	if err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return 0, newError(KindAccessDenied, destPath, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return 0, newError(KindAccessDenied, destPath, err)
	}

	if err := os.Rename(tmpName, destPath); err != nil {
		os.Remove(tmpName)
		return 0, newError(KindAccessDenied, destPath, err)
	}
	return n, nil
}
