package registry

import (
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	gkgerrors "github.com/gkg/knowledgegraph/internal/errors"
)

// FileLock provides cross-process exclusive locking for the workspace
// manifest, using gofrs/flock so a CLI invocation and a running daemon
// never interleave writes to gkg_manifest.json.
type FileLock struct {
	path   string
	flock  *flock.Flock
	locked bool
}

// NewFileLock creates a lock backed by a file at path (e.g. gkg.lock under
// the data home).
func NewFileLock(path string) *FileLock {
	return &FileLock{path: path, flock: flock.New(path)}
}

// Lock acquires the exclusive lock, blocking until available.
func (l *FileLock) Lock() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return gkgerrors.New(gkgerrors.ErrCodeDiskFull, "failed to create lock directory", err)
	}
	if err := l.flock.Lock(); err != nil {
		return gkgerrors.New(gkgerrors.ErrCodeLockTimeout, "failed to acquire manifest lock", err)
	}
	l.locked = true
	return nil
}

// TryLock attempts to acquire the lock without blocking.
func (l *FileLock) TryLock() (bool, error) {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return false, gkgerrors.New(gkgerrors.ErrCodeDiskFull, "failed to create lock directory", err)
	}
	acquired, err := l.flock.TryLock()
	if err != nil {
		return false, gkgerrors.New(gkgerrors.ErrCodeLockTimeout, "failed to acquire manifest lock", err)
	}
	if acquired {
		l.locked = true
	}
	return acquired, nil
}

// Unlock releases the lock. Safe to call multiple times.
func (l *FileLock) Unlock() error {
	if !l.locked {
		return nil
	}
	if err := l.flock.Unlock(); err != nil {
		l.locked = false
		return gkgerrors.New(gkgerrors.ErrCodeInternal, "failed to release manifest lock", err)
	}
	l.locked = false
	return nil
}

// IsLocked reports whether this handle currently holds the lock.
func (l *FileLock) IsLocked() bool { return l.locked }
