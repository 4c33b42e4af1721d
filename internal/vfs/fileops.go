package vfs

import (
	"io"
	"os"
	"path/filepath"
	"strings"
)

// validName rejects item names that would step outside the directory they
// are addressed in, plus names reserved for scratch space.
func validName(name string) error {
	switch {
	case name == "" || name == "." || name == "..":
		return newError(KindAccessDenied, name, nil)
	case strings.ContainsAny(name, "/\\"):
		return newError(KindAccessDenied, name, nil)
	case IsReservedName(name):
		return newError(KindAccessDenied, name, nil)
	}
	return nil
}

// Rename renames dir/oldName to dir/newName. The source must exist; the
// destination must not.
func Rename(root, dir, oldName, newName string) error {
	if err := validName(oldName); err != nil {
		return err
	}
	if err := validName(newName); err != nil {
		return err
	}
	dirPath, err := ResolveDir(root, dir)
	if err != nil {
		return err
	}
	oldPath := filepath.Join(dirPath, oldName)
	if _, err := os.Stat(oldPath); err != nil {
		return newError(KindPathNotFound, oldName, nil)
	}
	newPath := filepath.Join(dirPath, newName)
	if _, err := os.Stat(newPath); err == nil {
		return newError(KindItemExists, newName, nil)
	}
	if err := os.Rename(oldPath, newPath); err != nil {
		return newError(KindInternal, oldName, err)
	}
	return nil
}

// Delete removes dir/name: files are unlinked, directories removed
// recursively. Deleting an item that is already gone succeeds, so retried
// deletes are harmless.
func Delete(root, dir, name string) error {
	if err := validName(name); err != nil {
		return err
	}
	dirPath, err := ResolveDir(root, dir)
	if err != nil {
		return err
	}
	itemPath := filepath.Join(dirPath, name)
	info, err := os.Stat(itemPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return newError(KindInternal, name, err)
	}
	if info.IsDir() {
		err = os.RemoveAll(itemPath)
	} else {
		err = os.Remove(itemPath)
	}
	if err != nil {
		return newError(KindInternal, name, err)
	}
	return nil
}

// Move relocates srcDir/name into dstDir. Rename is tried first; when the
// destination is on a different device the item is copied and the source
// removed afterwards.
func Move(root, srcDir, name, dstDir string) error {
	if err := validName(name); err != nil {
		return err
	}
	srcPath, err := ResolveDir(root, srcDir)
	if err != nil {
		return err
	}
	dstPath, err := ResolveDir(root, dstDir)
	if err != nil {
		return err
	}
	src := filepath.Join(srcPath, name)
	if _, err := os.Stat(src); err != nil {
		return newError(KindPathNotFound, name, nil)
	}
	dst := filepath.Join(dstPath, name)
	if _, err := os.Stat(dst); err == nil {
		return newError(KindItemExists, name, nil)
	}
	if err := moveItem(src, dst); err != nil {
		return newError(KindInternal, name, err)
	}
	return nil
}

func moveItem(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	// Cross-device move: copy then delete.
	if err := copyAny(src, dst); err != nil {
		os.RemoveAll(dst)
		return err
	}
	return os.RemoveAll(src)
}

func copyAny(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return copyFile(src, dst, info.Mode())
	}
	if err := os.MkdirAll(dst, info.Mode()); err != nil {
		return err
	}
	entries, err := os.ReadDir(src)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if err := copyAny(filepath.Join(src, entry.Name()), filepath.Join(dst, entry.Name())); err != nil {
			return err
		}
	}
	return nil
}

func copyFile(src, dst string, mode os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, mode)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	return out.Close()
}

// MoveFailure records one item a batch move could not relocate.
type MoveFailure struct {
	Name  string `json:"name"`
	Error string `json:"error"`
}

// BatchResult aggregates a best-effort batch move.
type BatchResult struct {
	Moved  []string      `json:"success"`
	Failed []MoveFailure `json:"failed"`
}

// MoveMany moves each named item from srcDir into dstDir independently.
// One item failing never aborts the rest; the result carries both lists.
func MoveMany(root, srcDir string, names []string, dstDir string) BatchResult {
	result := BatchResult{Moved: []string{}, Failed: []MoveFailure{}}
	for _, name := range names {
		if err := Move(root, srcDir, name, dstDir); err != nil {
			result.Failed = append(result.Failed, MoveFailure{Name: name, Error: err.Error()})
			continue
		}
		result.Moved = append(result.Moved, name)
	}
	return result
}

// CreateFolder makes a new folder in dir under an allocated collision-free
// name and returns that name.
func CreateFolder(root, dir string) (string, error) {
	dirPath, err := ResolveDir(root, dir)
	if err != nil {
		return "", err
	}
	name := AllocateFolderName(dirPath)
	if err := os.Mkdir(filepath.Join(dirPath, name), 0o755); err != nil {
		return "", newError(KindInternal, name, err)
	}
	return name, nil
}
