// Package pathutil holds path-segment aware helpers shared by the cache,
// the traversal engine and the filter pipeline. All comparisons are on
// cleaned absolute paths; "/a/b" is never considered inside "/a/bb".
package pathutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Canonical returns the absolute, cleaned form of path.
func Canonical(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("empty path")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve path %s: %w", path, err)
	}
	return filepath.Clean(abs), nil
}

// withSep returns dir with exactly one trailing separator.
func withSep(dir string) string {
	if strings.HasSuffix(dir, string(os.PathSeparator)) {
		return dir
	}
	return dir + string(os.PathSeparator)
}

// IsWithin reports whether path equals dir or lies beneath it.
func IsWithin(dir, path string) bool {
	dir = filepath.Clean(dir)
	path = filepath.Clean(path)
	if path == dir {
		return true
	}
	return strings.HasPrefix(path, withSep(dir))
}

// IsStrictDescendant reports whether path lies beneath dir and is not dir.
func IsStrictDescendant(dir, path string) bool {
	dir = filepath.Clean(dir)
	path = filepath.Clean(path)
	return path != dir && strings.HasPrefix(path, withSep(dir))
}

// Depth counts the path segments of an absolute path. The root has depth 0.
func Depth(path string) int {
	path = filepath.Clean(path)
	vol := filepath.VolumeName(path)
	rest := strings.Trim(path[len(vol):], string(os.PathSeparator))
	if rest == "" {
		return 0
	}
	return strings.Count(rest, string(os.PathSeparator)) + 1
}

// RelDepth returns how many segments path lies below dir, or -1 when path is
// not within dir.
func RelDepth(dir, path string) int {
	if !IsWithin(dir, path) {
		return -1
	}
	return Depth(path) - Depth(dir)
}

// AnyWithin reports whether any of dirs equals root or lies beneath it.
func AnyWithin(root string, dirs []string) bool {
	for _, d := range dirs {
		if IsWithin(root, d) {
			return true
		}
	}
	return false
}

// ContainedBy returns the first dir in dirs that contains path.
func ContainedBy(path string, dirs []string) (string, bool) {
	for _, d := range dirs {
		if IsWithin(d, path) {
			return d, true
		}
	}
	return "", false
}

// HasWildcard reports whether pattern uses glob syntax.
func HasWildcard(pattern string) bool {
	return strings.ContainsAny(pattern, "*?[")
}

// ValidateGlobPattern validates that a glob pattern compiles.
func ValidateGlobPattern(pattern string) error {
	if strings.ContainsRune(pattern, os.PathSeparator) {
		return fmt.Errorf("glob pattern must match a file name, not a path: %s", pattern)
	}

	if _, err := filepath.Match(pattern, "test"); err != nil {
		return fmt.Errorf("invalid glob pattern: %w", err)
	}

	return nil
}
