package guard

import (
	"context"
	"errors"
	"sync"
	"time"
)

// MemoryLocker is a per-key mutex for single-process deployments and tests.
type MemoryLocker struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{slots: make(map[string]chan struct{})}
}

func (l *MemoryLocker) slot(key string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	ch, ok := l.slots[key]
	if !ok {
		ch = make(chan struct{}, 1)
		l.slots[key] = ch
	}
	return ch
}

func (l *MemoryLocker) Acquire(ctx context.Context, key string, _ time.Duration) (Lease, error) {
	ch := l.slot(key)
	select {
	case ch <- struct{}{}:
		return &memoryLease{key: key, ch: ch}, nil
	case <-ctx.Done():
		return nil, errors.Join(ErrNotAcquired, ctx.Err())
	}
}

type memoryLease struct {
	key  string
	ch   chan struct{}
	once sync.Once
}

func (l *memoryLease) Key() string { return l.key }

func (l *memoryLease) Release(context.Context) error {
	l.once.Do(func() { <-l.ch })
	return nil
}
