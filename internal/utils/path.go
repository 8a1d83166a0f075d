package utils

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// ResolvePath expands a leading `~` and returns a clean absolute path.
func ResolvePath(path string) (string, error) {
	if path == "" {
		return "", errors.New("path cannot be empty")
	}

	if strings.HasPrefix(path, "~") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", errors.New("failed to retrieve home directory")
		}
		path = strings.Replace(path, "~", homeDir, 1)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}

	return filepath.Clean(absPath), nil
}

// NormPath cleans a relative path and converts it to forward slashes with no leading slash.
// Paths stored in generation metadata always use this form.
func NormPath(path string) string {
	path = filepath.Clean(path)
	path = strings.ReplaceAll(path, "\\", "/")
	path = strings.TrimLeft(path, "/")
	return path
}

// RelPath returns the normalized path of target relative to root.
func RelPath(root, target string) (string, error) {
	rel, err := filepath.Rel(root, target)
	if err != nil {
		return "", err
	}
	return NormPath(rel), nil
}

// JoinRel joins a normalized relative path onto a native root.
func JoinRel(root, rel string) string {
	return filepath.Join(root, filepath.FromSlash(rel))
}

func EnsureParent(path string) error {
	dir := filepath.Dir(path)
	return EnsureDir(dir)
}

// EnsureDir creates path and its parents. A non-directory at path is an error.
func EnsureDir(path string) error {
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return nil
	}

	return os.MkdirAll(path, 0o755)
}

// ClearPath makes room under root for rel as a file (dir false) or a folder.
// Files sitting where a parent folder of rel belongs are removed, as is
// whatever occupies rel itself with the other type. It reports whether
// anything was removed.
func ClearPath(root, rel string, dir bool) (bool, error) {
	parts := strings.Split(rel, "/")
	cur := root
	for i, part := range parts {
		cur = filepath.Join(cur, part)
		info, err := os.Lstat(cur)
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		if err != nil {
			return false, err
		}

		last := i == len(parts)-1
		switch {
		case !last && !info.IsDir():
			if err := os.Remove(cur); err != nil {
				return false, err
			}
			return true, nil
		case last && dir && !info.IsDir():
			return true, os.Remove(cur)
		case last && !dir && info.IsDir():
			return true, os.RemoveAll(cur)
		}
	}
	return false, nil
}

func DirExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}

func FileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
