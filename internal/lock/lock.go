package lock

import (
	"context"
	"errors"
)

// ErrNotAcquired means the lock was still held by someone else when the
// bounded wait ran out. Callers treat it as a retryable busy condition.
var ErrNotAcquired = errors.New("lock not acquired")

// Locker guards a critical section keyed by an arbitrary string,
// one holder per key at a time.
type Locker interface {
	WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error
}
