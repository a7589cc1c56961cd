// Package locking provides a cross-process run lock so that an ad-hoc run and
// a scheduled daemon run on the same host cannot publish concurrently.
package locking

import (
	"errors"
	"fmt"

	"github.com/gofrs/flock"
)

// ErrLockHeld is returned when another process already holds the run lock.
var ErrLockHeld = errors.New("run lock held by another process")

// RunLock wraps an advisory file lock.
type RunLock struct {
	fl *flock.Flock
}

// New creates a lock backed by the given file. The file is created on demand.
func New(path string) *RunLock {
	return &RunLock{fl: flock.New(path)}
}

// Acquire attempts to take the lock without blocking.
func (l *RunLock) Acquire() error {
	ok, err := l.fl.TryLock()
	if err != nil {
		return fmt.Errorf("acquire run lock %s: %w", l.fl.Path(), err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrLockHeld, l.fl.Path())
	}
	return nil
}

// Release drops the lock. Safe to call when not held.
func (l *RunLock) Release() error {
	return l.fl.Unlock()
}
