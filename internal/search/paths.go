package search

import "path/filepath"

func joinPath(a, b string) string {
	return filepath.Join(a, b)
}

// toRelative resolves a path the caller supplied — either absolute, or
// already relative to the index root, as manifest keys are — to POSIX
// form relative to root.
func toRelative(root, path string) (string, error) {
	if filepath.IsAbs(path) {
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return "", err
		}
		return filepath.ToSlash(rel), nil
	}
	return filepath.ToSlash(filepath.Clean(path)), nil
}
