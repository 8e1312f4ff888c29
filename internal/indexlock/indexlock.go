// Package indexlock provides advisory cross-process locking over an index
// directory, so concurrent writers (two builds, or a build racing an
// incremental update) serialize instead of corrupting the store.
package indexlock

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// Lock guards the index directory for the duration of a write. Readers
// never take this lock; they tolerate the store's append-style writes.
type Lock struct {
	path   string
	fl     *flock.Flock
	locked bool
}

// New builds a Lock backed by a file at <indexDir>/.write.lock.
func New(indexDir string) *Lock {
	path := filepath.Join(indexDir, ".write.lock")
	return &Lock{path: path, fl: flock.New(path)}
}

// Lock blocks until the exclusive lock is acquired, creating the index
// directory if it doesn't exist yet.
func (l *Lock) Lock() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("indexlock: creating index directory: %w", err)
	}
	if err := l.fl.Lock(); err != nil {
		return fmt.Errorf("indexlock: acquiring lock: %w", err)
	}
	l.locked = true
	return nil
}

// TryLock attempts to acquire the lock without blocking. A false result
// with a nil error means another process holds it — callers surface this
// as errors.CodeIndexLocked, which is retryable.
func (l *Lock) TryLock() (bool, error) {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return false, fmt.Errorf("indexlock: creating index directory: %w", err)
	}
	ok, err := l.fl.TryLock()
	if err != nil {
		return false, fmt.Errorf("indexlock: acquiring lock: %w", err)
	}
	l.locked = ok
	return ok, nil
}

// Unlock releases the lock. Safe to call on an already-unlocked Lock.
func (l *Lock) Unlock() error {
	if !l.locked {
		return nil
	}
	if err := l.fl.Unlock(); err != nil {
		return fmt.Errorf("indexlock: releasing lock: %w", err)
	}
	l.locked = false
	return nil
}

// Path returns the lock file's path.
func (l *Lock) Path() string { return l.path }

// IsLocked reports whether this Lock currently holds the lock.
func (l *Lock) IsLocked() bool { return l.locked }
