// Package vfs implements the file-manager core: path containment, chunked
// uploads with atomic reassembly, atomic whole-file writes, file operations,
// and directory listing/search over a single volume root.
package vfs

import (
	"path/filepath"
	"sync"
)

// Volume holds the root directory that bounds all operations. The root can
// be swapped at runtime; callers capture it once per request via Root, so
// requests in flight keep operating on the root they started with.
type Volume struct {
	mu   sync.RWMutex
	root string
}

// NewVolume creates a volume bound to root. The path is made absolute but
// not required to exist yet; operations fail with VolumeNotMounted until it
// does.
func NewVolume(root string) (*Volume, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, newError(KindInternal, root, err)
	}
	return &Volume{root: abs}, nil
}

// Root returns a snapshot of the current volume root.
func (v *Volume) Root() string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.root
}

// ChangeRoot swaps the volume root. The new path must be an existing
// directory. In-flight operations that already captured the old root are
// unaffected.
func (v *Volume) ChangeRoot(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", newError(KindInternal, path, err)
	}
	if _, err := ResolveDir(abs, "."); err != nil {
		return "", newError(KindVolumeNotMounted, path, nil)
	}
	v.mu.Lock()
	v.root = abs
	v.mu.Unlock()
	return abs, nil
}
