// Package workspace lists a chosen directory and reads the files in it.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileEntry is one item in a listed directory.
type FileEntry struct {
	Path   string `json:"path"`
	Name   string `json:"name"`
	Hidden bool   `json:"hidden"` // name begins with "."
	IsDir  bool   `json:"is_dir"`
}

// Lister enumerates a directory.
type Lister func(dir string) ([]FileEntry, error)

// List returns the entries of dir in the directory's own enumeration order,
// with dot-prefixed entries moved after the rest. The order is deliberately
// not sorted by name.
func List(dir string) ([]FileEntry, error) {
	f, err := os.Open(dir)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", dir, err)
	}
	defer f.Close()

	names, err := f.Readdirnames(-1)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", dir, err)
	}

	entries := make([]FileEntry, 0, len(names))
	for _, name := range names {
		path := filepath.Join(dir, name)
		e := FileEntry{
			Path:   path,
			Name:   name,
			Hidden: strings.HasPrefix(name, "."),
		}
		// Lstat so a dangling symlink is still listed.
		if info, err := os.Lstat(path); err == nil {
			e.IsDir = info.IsDir()
		}
		entries = append(entries, e)
	}
	return Partition(entries), nil
}

// Partition performs a stable partition of entries: visible entries first,
// hidden ones after, relative order kept within each group. The input slice
// is not modified.
func Partition(entries []FileEntry) []FileEntry {
	out := make([]FileEntry, 0, len(entries))
	for _, e := range entries {
		if !e.Hidden {
			out = append(out, e)
		}
	}
	for _, e := range entries {
		if e.Hidden {
			out = append(out, e)
		}
	}
	return out
}

// Contains reports whether path is one of entries.
func Contains(entries []FileEntry, path string) bool {
	for _, e := range entries {
		if e.Path == path {
			return true
		}
	}
	return false
}
