// Package lock serializes work on a named registry, within one process or across processes.
package lock

import (
	"context"
	"errors"
)

var (
	// ErrNotAcquired is returned when a lock could not be taken before the context ended.
	ErrNotAcquired = errors.New("lock not acquired")
	// ErrLockUnavailable is returned when the lock backend cannot be reached.
	ErrLockUnavailable = errors.New("lock backend unavailable")
)

// Locker grants exclusive access per key. The returned unlock function must be called exactly
// once; it never blocks.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}
