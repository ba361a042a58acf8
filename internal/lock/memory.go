package lock

import (
	"context"
	"sync"
	"time"
)

type memoryLocker struct {
	mu   sync.Mutex
	sems map[string]chan struct{}
	wait time.Duration
}

// NewMemoryLocker creates an in-process keyed lock table. It gives the
// same contract as the Redis locker for single-node deployments and tests.
func NewMemoryLocker(wait time.Duration) Locker {
	return &memoryLocker{
		sems: make(map[string]chan struct{}),
		wait: wait,
	}
}

func (l *memoryLocker) sem(key string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.sems[key]
	if !ok {
		s = make(chan struct{}, 1)
		l.sems[key] = s
	}
	return s
}

func (l *memoryLocker) WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	sem := l.sem(key)

	timer := time.NewTimer(l.wait)
	defer timer.Stop()

	select {
	case sem <- struct{}{}:
	case <-timer.C:
		return ErrNotAcquired
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-sem }()

	return fn(ctx)
}
