package vfs

import (
	"os"
	"path/filepath"
	"strings"
)

// ReservedPrefix marks names the file manager owns: chunk scratch
// directories and in-flight temp files. Reserved names never appear in
// listings and cannot be addressed through the API.
const ReservedPrefix = ".volkit-"

// IsReservedName reports whether a base name belongs to the file manager.
func IsReservedName(name string) bool {
	return strings.HasPrefix(name, ReservedPrefix)
}

// resolveFlags control which existence checks Resolve performs.
type resolveFlags int

const (
	mustExist resolveFlags = 1 << iota
	wantDir
)

// resolve joins rel onto root and validates the result. Checks run in a
// fixed order so error precedence is deterministic: volume mounted, target
// exists (when required), containment, directory-ness (when required).
func resolve(root, rel string, flags resolveFlags) (string, error) {
	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		return "", newError(KindVolumeNotMounted, root, nil)
	}

	target := filepath.Join(root, filepath.FromSlash(rel))

	if flags&mustExist != 0 {
		if _, err := os.Stat(target); err != nil {
			return "", newError(KindPathNotFound, rel, nil)
		}
	}

	if !contained(root, target) {
		return "", newError(KindAccessDenied, rel, nil)
	}
	if hasReservedComponent(rel) {
		return "", newError(KindAccessDenied, rel, nil)
	}

	if flags&wantDir != 0 {
		info, err := os.Stat(target)
		if err != nil || !info.IsDir() {
			return "", newError(KindDirectoryNotFound, rel, nil)
		}
	}

	return target, nil
}

// hasReservedComponent reports whether any path segment of rel carries the
// reserved prefix. Scratch state is never reachable through the API, even
// when a client knows its exact name.
func hasReservedComponent(rel string) bool {
	for _, part := range strings.Split(filepath.ToSlash(filepath.Clean(rel)), "/") {
		if IsReservedName(part) {
			return true
		}
	}
	return false
}

// contained reports whether target lies inside root after path
// canonicalization. Component-wise comparison via filepath.Rel avoids the
// sibling false-positive of a plain string prefix check (/a/b vs /a/b-evil).
func contained(root, target string) bool {
	rel, err := filepath.Rel(filepath.Clean(root), filepath.Clean(target))
	if err != nil {
		return false
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return false
	}
	return !filepath.IsAbs(rel)
}

// ResolveDir validates rel as an existing directory inside root.
func ResolveDir(root, rel string) (string, error) {
	return resolve(root, rel, mustExist|wantDir)
}

// ResolveExisting validates rel as an existing file or directory inside root.
func ResolveExisting(root, rel string) (string, error) {
	return resolve(root, rel, mustExist)
}

// ResolveTarget validates rel inside root without requiring existence.
// Used for paths about to be created.
func ResolveTarget(root, rel string) (string, error) {
	return resolve(root, rel, 0)
}
