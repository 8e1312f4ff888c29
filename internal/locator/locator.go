// Package locator walks the filesystem relative to an index directory
// marker, answering the three questions the indexer and searcher need
// before touching a store: is there a governing parent index above this
// path, are there subordinate indexes beneath it, and where is the
// nearest index walking upward from an arbitrary starting point.
package locator

import (
	"os"
	"path/filepath"
)

// MarkerName is the directory name that marks an index root.
const MarkerName = ".semcode"

// IsIndexRoot reports whether dir directly contains the marker directory.
func IsIndexRoot(dir string) bool {
	info, err := os.Stat(filepath.Join(dir, MarkerName))
	return err == nil && info.IsDir()
}

// FindParent walks strictly upward from path (not including path itself)
// looking for a directory that is an index root. Used by build to refuse
// creating a nested index under a governing parent.
func FindParent(path string) (root string, found bool, err error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", false, err
	}
	dir := filepath.Dir(abs)
	for {
		if IsIndexRoot(dir) {
			return dir, true, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false, nil
		}
		dir = parent
	}
}

// LocateUpward walks upward from path, including path itself, looking for
// the nearest index root. Used by the searcher to resolve a root_path to
// its governing index.
func LocateUpward(path string) (root string, found bool, err error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", false, err
	}
	dir := abs
	for {
		if IsIndexRoot(dir) {
			return dir, true, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false, nil
		}
		dir = parent
	}
}

// FindSubordinates walks the tree beneath root (excluding root itself)
// looking for nested index roots. Used by build to discover indexes that
// should be merged into a new, wider one rather than left orphaned.
func FindSubordinates(root string) ([]string, error) {
	var subordinates []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if path == root {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if d.Name() == MarkerName {
			return filepath.SkipDir
		}
		if IsIndexRoot(path) {
			subordinates = append(subordinates, path)
			return filepath.SkipDir
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return subordinates, nil
}

// List enumerates every index root at or beneath path, including path
// itself if it is one — used by the `list` CLI command.
func List(path string) ([]string, error) {
	var roots []string
	if IsIndexRoot(path) {
		roots = append(roots, path)
	}
	sub, err := FindSubordinates(path)
	if err != nil {
		return nil, err
	}
	roots = append(roots, sub...)
	return roots, nil
}
