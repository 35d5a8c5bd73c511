package state

import (
	"fmt"

	"github.com/gofrs/flock"

	"github.com/hugo-lorenzo-mato/diligent/internal/core"
)

// RunLock guards a workspace so two processes cannot drive the same run
// directory at once.
type RunLock struct {
	flock *flock.Flock
	path  string
}

// NewRunLock creates a lock at the given path.
func NewRunLock(path string) *RunLock {
	return &RunLock{
		flock: flock.New(path),
		path:  path,
	}
}

// TryLock attempts to acquire the lock without blocking.
func (l *RunLock) TryLock() error {
	acquired, err := l.flock.TryLock()
	if err != nil {
		return fmt.Errorf("acquiring lock on %s: %w", l.path, err)
	}
	if !acquired {
		return core.ErrState("LOCK_HELD",
			fmt.Sprintf("another process holds the workspace lock %s", l.path))
	}
	return nil
}

// Unlock releases the lock.
func (l *RunLock) Unlock() error {
	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("releasing lock on %s: %w", l.path, err)
	}
	return nil
}
