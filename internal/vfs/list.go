package vfs

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/volkit/volkit/internal/logging"
)

// Entry is one item in a directory listing.
type Entry struct {
	Name      string `json:"name"`
	Size      int64  `json:"size"`
	FileCount int    `json:"fileCount,omitempty"`
	IsDir     bool   `json:"isDir"`
	ModTime   int64  `json:"modified"`
}

// Listing is the one-level contents of a directory.
type Listing struct {
	Files     []Entry  `json:"files"`
	Folders   []Entry  `json:"folders"`
	PathParts []string `json:"pathParts"`
	TotalSize int64    `json:"totalSize"`
}

// ListOptions select how much work the Lister does per folder entry.
type ListOptions struct {
	// FolderSizes walks each subtree to report a recursive size.
	FolderSizes bool
	// FileCounts reports the number of immediate child files instead.
	FileCounts bool
}

// ListDirectory enumerates the immediate contents of root/rel. Reserved
// scratch and temp names are never included. Entries the process cannot
// stat are skipped rather than failing the listing.
func ListDirectory(root, rel string, opts ListOptions) (*Listing, error) {
	dirPath, err := ResolveDir(root, rel)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(dirPath)
	if err != nil {
		return nil, newError(KindAccessDenied, rel, err)
	}

	listing := &Listing{Files: []Entry{}, Folders: []Entry{}, PathParts: pathParts(rel)}
	for _, entry := range entries {
		if IsReservedName(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if entry.IsDir() {
			folder := Entry{Name: entry.Name(), IsDir: true, ModTime: info.ModTime().Unix()}
			sub := filepath.Join(dirPath, entry.Name())
			if opts.FolderSizes {
				folder.Size = DirSize(sub)
			}
			if opts.FileCounts {
				folder.FileCount = childFileCount(sub)
			}
			listing.Folders = append(listing.Folders, folder)
			continue
		}
		listing.Files = append(listing.Files, Entry{
			Name:    entry.Name(),
			Size:    info.Size(),
			ModTime: info.ModTime().Unix(),
		})
		listing.TotalSize += info.Size()
	}

	sortEntries(listing.Files)
	sortEntries(listing.Folders)
	return listing, nil
}

func sortEntries(entries []Entry) {
	sort.Slice(entries, func(i, j int) bool {
		return strings.ToLower(entries[i].Name) < strings.ToLower(entries[j].Name)
	})
}

func pathParts(rel string) []string {
	rel = strings.Trim(filepath.ToSlash(filepath.Clean(rel)), "/")
	if rel == "" || rel == "." {
		return []string{}
	}
	return strings.Split(rel, "/")
}

// DirSize computes the recursive byte size of a subtree. Unreadable
// children are skipped without failing the walk.
func DirSize(path string) int64 {
	var total int64
	filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			logging.Debug("size walk skipped entry", zap.String("path", p), zap.Error(err))
			return nil
		}
		if d.IsDir() || IsReservedName(d.Name()) {
			return nil
		}
		if info, err := d.Info(); err == nil {
			total += info.Size()
		}
		return nil
	})
	return total
}

func childFileCount(path string) int {
	entries, err := os.ReadDir(path)
	if err != nil {
		return 0
	}
	count := 0
	for _, entry := range entries {
		if !entry.IsDir() && !IsReservedName(entry.Name()) {
			count++
		}
	}
	return count
}

// Match is one search hit; Path is relative to the volume root.
type Match struct {
	Name  string `json:"name"`
	Path  string `json:"path"`
	IsDir bool   `json:"isDir"`
	Size  int64  `json:"size,omitempty"`
}

// SearchResult groups search hits by kind.
type SearchResult struct {
	Files   []Match `json:"files"`
	Folders []Match `json:"folders"`
}

// Search walks the whole volume collecting entries whose name contains
// query, case-insensitively. Subtrees the process cannot read are logged
// and skipped; descent continues into their siblings.
func Search(root, query string, foldersOnly bool) (*SearchResult, error) {
	base, err := ResolveDir(root, ".")
	if err != nil {
		return nil, err
	}

	needle := strings.ToLower(query)
	result := &SearchResult{Files: []Match{}, Folders: []Match{}}

	filepath.WalkDir(base, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			logging.Debug("search skipped unreadable subtree", zap.String("path", p), zap.Error(err))
			return nil
		}
		if p == base {
			return nil
		}
		if IsReservedName(d.Name()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.Contains(strings.ToLower(d.Name()), needle) {
			return nil
		}
		relPath, relErr := filepath.Rel(base, p)
		if relErr != nil {
			return nil
		}
		match := Match{Name: d.Name(), Path: filepath.ToSlash(relPath), IsDir: d.IsDir()}
		if d.IsDir() {
			result.Folders = append(result.Folders, match)
			return nil
		}
		if foldersOnly {
			return nil
		}
		if info, err := d.Info(); err == nil {
			match.Size = info.Size()
		}
		result.Files = append(result.Files, match)
		return nil
	})

	return result, nil
}
