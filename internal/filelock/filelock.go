// Package filelock provides advisory file locking and atomic writes so
// concurrent searches in one or several processes never observe a torn
// cache file.
package filelock

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"
)

// FileLock pairs a process-local mutex with a flock on disk. flock alone is
// not enough inside one process: on some platforms a second Lock from the
// same process succeeds immediately.
type FileLock struct {
	flock *flock.Flock
	local *sync.Mutex
	path  string
}

var (
	localMu    sync.Mutex
	localLocks = make(map[string]*sync.Mutex)
)

func localFor(path string) *sync.Mutex {
	localMu.Lock()
	defer localMu.Unlock()

	m, ok := localLocks[path]
	if !ok {
		m = &sync.Mutex{}
		localLocks[path] = m
	}
	return m
}

// New creates a lock backed by the file at path. The parent directory is
// created on Lock.
func New(path string) *FileLock {
	path = filepath.Clean(path)
	return &FileLock{
		flock: flock.New(path),
		local: localFor(path),
		path:  path,
	}
}

// Lock acquires the lock, blocking until it is available.
func (fl *FileLock) Lock() error {
	if err := os.MkdirAll(filepath.Dir(fl.path), 0755); err != nil {
		return fmt.Errorf("failed to create lock directory: %w", err)
	}

	fl.local.Lock()
	if err := fl.flock.Lock(); err != nil {
		fl.local.Unlock()
		return fmt.Errorf("failed to acquire lock on %s: %w", fl.path, err)
	}
	return nil
}

// Unlock releases the lock.
func (fl *FileLock) Unlock() error {
	defer fl.local.Unlock()
	if err := fl.flock.Unlock(); err != nil {
		return fmt.Errorf("failed to release lock on %s: %w", fl.path, err)
	}
	return nil
}

// Path returns the lock file path.
func (fl *FileLock) Path() string {
	return fl.path
}

// AtomicWrite writes data to path through a temp file in the same directory
// followed by a rename, so readers see either the old or the new content.
func AtomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	tempFile, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tempPath := tempFile.Name()

	defer func() {
		if tempFile != nil {
			tempFile.Close()
			os.Remove(tempPath)
		}
	}()

	if _, err := tempFile.Write(data); err != nil {
		return fmt.Errorf("failed to write to temp file: %w", err)
	}
	if err := tempFile.Sync(); err != nil {
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tempPath, 0644); err != nil {
		return fmt.Errorf("failed to set permissions: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		return fmt.Errorf("failed to rename temp file to %s: %w", path, err)
	}

	tempFile = nil
	return nil
}

// WithLock runs fn while holding the lock at lockPath.
func WithLock(lockPath string, fn func() error) error {
	lock := New(lockPath)
	if err := lock.Lock(); err != nil {
		return err
	}
	defer lock.Unlock()

	return fn()
}
