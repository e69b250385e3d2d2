// Package testutil provides test helpers and fixtures for filesearch tests.
// All file operations use t.TempDir() for safe, isolated testing.
package testutil

import (
	"crypto/rand"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"testing"
	"time"
)

// TestFixture holds a temporary search tree.
type TestFixture struct {
	T       *testing.T
	RootDir string // Root temp directory (auto-cleaned, symlinks resolved)
}

// NewFixture creates an empty fixture.
func NewFixture(t *testing.T) *TestFixture {
	t.Helper()

	root := t.TempDir()
	// macOS temp dirs live behind /var -> /private/var
	if resolved, err := filepath.EvalSymlinks(root); err == nil {
		root = resolved
	}

	return &TestFixture{T: t, RootDir: root}
}

// =============================================================================
// File Creation Helpers
// =============================================================================

// CreateFile creates a file with specified content and returns its path
func (f *TestFixture) CreateFile(relPath string, content []byte) string {
	f.T.Helper()

	fullPath := filepath.Join(f.RootDir, relPath)
	dir := filepath.Dir(fullPath)

	if err := os.MkdirAll(dir, 0755); err != nil {
		f.T.Fatalf("failed to create directory %s: %v", dir, err)
	}

	if err := os.WriteFile(fullPath, content, 0644); err != nil {
		f.T.Fatalf("failed to create file %s: %v", fullPath, err)
	}

	return fullPath
}

// CreateSizedFile creates a file of size bytes filled with fill.
func (f *TestFixture) CreateSizedFile(relPath string, size int, fill byte) string {
	f.T.Helper()
	content := make([]byte, size)
	for i := range content {
		content[i] = fill
	}
	return f.CreateFile(relPath, content)
}

// CreateFileWithAge creates a file and sets its modification time to the past
func (f *TestFixture) CreateFileWithAge(relPath string, content []byte, age time.Duration) string {
	f.T.Helper()
	return f.CreateFileWithTime(relPath, content, time.Now().Add(-age))
}

// CreateFileWithTime creates a file whose access and modification times are mtime.
func (f *TestFixture) CreateFileWithTime(relPath string, content []byte, mtime time.Time) string {
	f.T.Helper()

	fullPath := f.CreateFile(relPath, content)
	if err := os.Chtimes(fullPath, mtime, mtime); err != nil {
		f.T.Fatalf("failed to set file time for %s: %v", fullPath, err)
	}

	return fullPath
}

// CreateRandomFile creates a file with random content
func (f *TestFixture) CreateRandomFile(relPath string, size int) string {
	f.T.Helper()
	content := make([]byte, size)
	rand.Read(content)
	return f.CreateFile(relPath, content)
}

// =============================================================================
// Directory Helpers
// =============================================================================

// CreateDir creates a directory and returns its path
func (f *TestFixture) CreateDir(relPath string) string {
	f.T.Helper()

	fullPath := filepath.Join(f.RootDir, relPath)
	if err := os.MkdirAll(fullPath, 0755); err != nil {
		f.T.Fatalf("failed to create directory %s: %v", fullPath, err)
	}

	return fullPath
}

// CreateUnreadableDir creates a directory holding one file and then removes
// all permissions from it. Permissions are restored on cleanup.
func (f *TestFixture) CreateUnreadableDir(relPath string) string {
	f.T.Helper()

	dirPath := f.CreateDir(relPath)
	f.CreateFile(filepath.Join(relPath, "hidden.txt"), []byte("hidden"))
	if err := os.Chmod(dirPath, 0000); err != nil {
		f.T.Fatalf("failed to chmod directory %s: %v", dirPath, err)
	}

	f.T.Cleanup(func() {
		os.Chmod(dirPath, 0755)
	})

	return dirPath
}

// =============================================================================
// Symlink Helpers
// =============================================================================

// CreateSymlink creates a symbolic link
func (f *TestFixture) CreateSymlink(target, linkPath string) string {
	f.T.Helper()

	fullLinkPath := filepath.Join(f.RootDir, linkPath)
	dir := filepath.Dir(fullLinkPath)

	if err := os.MkdirAll(dir, 0755); err != nil {
		f.T.Fatalf("failed to create directory %s: %v", dir, err)
	}

	if err := os.Symlink(target, fullLinkPath); err != nil {
		f.T.Fatalf("failed to create symlink %s -> %s: %v", fullLinkPath, target, err)
	}

	return fullLinkPath
}

// CreateBrokenSymlink creates a symlink pointing to a non-existent target
func (f *TestFixture) CreateBrokenSymlink(linkPath string) string {
	f.T.Helper()
	return f.CreateSymlink("/nonexistent/target/"+randomString(8), linkPath)
}

// =============================================================================
// Search Tree Helpers
// =============================================================================

// PopulateSearchTree creates a small mixed tree:
//
//	docs/report.pdf, docs/notes.txt, docs/old/draft.txt
//	photos/beach.jpg, photos/Beach.JPG.bak, photos/.DS_Store
//	src/main.go, src/util.go
//	empty/
func (f *TestFixture) PopulateSearchTree() {
	f.T.Helper()

	f.CreateFile("docs/report.pdf", []byte("%PDF-1.4 report"))
	f.CreateFile("docs/notes.txt", []byte("first line\nTODO: buy milk\nlast line\n"))
	f.CreateFile("docs/old/draft.txt", []byte("draft"))
	f.CreateSizedFile("photos/beach.jpg", 2048, 'j')
	f.CreateSizedFile("photos/Beach.JPG.bak", 2048, 'j')
	f.CreateFile("photos/.DS_Store", []byte{0, 0, 0, 1})
	f.CreateFile("src/main.go", []byte("package main\n\nfunc main() {}\n"))
	f.CreateFile("src/util.go", []byte("package main\n"))
	f.CreateDir("empty")
}

// =============================================================================
// Path Helpers
// =============================================================================

// Path returns the full path for a relative path within the fixture
func (f *TestFixture) Path(relPath string) string {
	return filepath.Join(f.RootDir, relPath)
}

// Paths returns full paths for every relative path, sorted.
func (f *TestFixture) Paths(relPaths ...string) []string {
	out := make([]string, len(relPaths))
	for i, p := range relPaths {
		out[i] = f.Path(p)
	}
	sort.Strings(out)
	return out
}

// RelPath returns the relative path from the fixture root
func (f *TestFixture) RelPath(fullPath string) string {
	rel, _ := filepath.Rel(f.RootDir, fullPath)
	return rel
}

// RelPaths maps full paths to sorted fixture-relative paths.
func (f *TestFixture) RelPaths(fullPaths []string) []string {
	out := make([]string, len(fullPaths))
	for i, p := range fullPaths {
		out[i] = filepath.ToSlash(f.RelPath(p))
	}
	sort.Strings(out)
	return out
}

// =============================================================================
// Assertion Helpers
// =============================================================================

// FileExists checks if a file exists
func (f *TestFixture) FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// AssertFileExists fails the test if the file doesn't exist
func (f *TestFixture) AssertFileExists(path string) {
	f.T.Helper()
	if !f.FileExists(path) {
		f.T.Errorf("expected file to exist: %s", path)
	}
}

// AssertFileNotExists fails the test if the file exists
func (f *TestFixture) AssertFileNotExists(path string) {
	f.T.Helper()
	if f.FileExists(path) {
		f.T.Errorf("expected file to not exist: %s", path)
	}
}

// =============================================================================
// Utility Functions
// =============================================================================

// IsRoot returns true if running as root/admin
func IsRoot() bool {
	return os.Geteuid() == 0
}

// SkipIfRoot skips the test if running as root
func SkipIfRoot(t *testing.T) {
	t.Helper()
	if IsRoot() {
		t.Skip("skipping test when running as root")
	}
}

// SkipOnWindows skips tests that rely on POSIX permissions or symlinks.
func SkipOnWindows(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("skipping test on windows")
	}
}

// IsMacOS returns true if running on macOS
func IsMacOS() bool {
	return runtime.GOOS == "darwin"
}

// IsLinux returns true if running on Linux
func IsLinux() bool {
	return runtime.GOOS == "linux"
}

// randomString generates a random string of specified length
func randomString(length int) string {
	b := make([]byte, length)
	rand.Read(b)
	return fmt.Sprintf("%x", b)[:length]
}
