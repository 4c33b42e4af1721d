package vfs

import (
	"fmt"
	"os"
	"path/filepath"
)

// DefaultFolderBase is the label new folders start from.
const DefaultFolderBase = "Untitled Folder"

// AllocateFolderName returns the first free name in the sequence
// "Untitled Folder", "Untitled Folder 1", "Untitled Folder 2", … for dir.
// This is a check-then-act probe: another process can still claim the name
// between allocation and creation. os.Mkdir reports that collision.
func AllocateFolderName(dir string) string {
	name := DefaultFolderBase
	for counter := 1; Exists(dir, name); counter++ {
		name = fmt.Sprintf("%s %d", DefaultFolderBase, counter)
	}
	return name
}

// Exists reports whether dir/name exists.
func Exists(dir, name string) bool {
	_, err := os.Stat(filepath.Join(dir, name))
	return err == nil
}
