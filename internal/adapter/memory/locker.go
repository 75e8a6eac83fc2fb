package memory

import (
	"context"
	"sync"
)

// Locker implements port/locker.AdvisoryLocker for a single process. Each key
// gets its own lock; waiting respects ctx.
type Locker struct {
	mu    sync.Mutex
	locks map[int64]chan struct{}
}

func NewLocker() *Locker {
	return &Locker{locks: make(map[int64]chan struct{})}
}

func (l *Locker) WithLock(ctx context.Context, key int64, fn func(ctx context.Context) error) error {
	ch := l.lockFor(key)
	select {
	case ch <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-ch }()
	return fn(ctx)
}

func (l *Locker) lockFor(key int64) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	ch, ok := l.locks[key]
	if !ok {
		ch = make(chan struct{}, 1)
		l.locks[key] = ch
	}
	return ch
}
