package guard

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"propbook/pkg/db/local"
	apperrors "propbook/pkg/errors"
	"propbook/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGuard(locker Locker, opts ...Option) *Guard {
	return New(locker, local.NewTransactionManager(), logger.Discard(), opts...)
}

func TestExecute_SerializesSameScope(t *testing.T) {
	g := newTestGuard(NewMemoryLocker())
	scope := PropertyScope("landlord-1", "property-1")

	var inside, maxInside atomic.Int32
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := g.Execute(context.Background(), scope, func(ctx context.Context) error {
				n := inside.Add(1)
				for {
					m := maxInside.Load()
					if n <= m || maxInside.CompareAndSwap(m, n) {
						break
					}
				}
				time.Sleep(2 * time.Millisecond)
				inside.Add(-1)
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInside.Load())
}

func TestExecute_DifferentScopesRunConcurrently(t *testing.T) {
	g := newTestGuard(NewMemoryLocker())

	entered := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_ = g.Execute(context.Background(), PropertyScope("l", "a"), func(context.Context) error {
			close(entered)
			<-release
			return nil
		})
	}()
	<-entered

	err := g.Execute(context.Background(), PropertyScope("l", "b"), func(context.Context) error { return nil })
	close(release)
	assert.NoError(t, err)
}

func TestExecute_TimeoutIsConflictAndSkipsFn(t *testing.T) {
	locker := NewMemoryLocker()
	g := newTestGuard(locker, WithTimeout(20*time.Millisecond))
	scope := PropertyScope("landlord-1", "property-1")

	held, err := locker.Acquire(context.Background(), scope, time.Minute)
	require.NoError(t, err)
	defer held.Release(context.Background())

	called := false
	err = g.Execute(context.Background(), scope, func(context.Context) error {
		called = true
		return nil
	})

	require.Error(t, err)
	assert.True(t, apperrors.IsConflict(err))
	assert.False(t, called)
}

func TestExecute_ReleasesOnError(t *testing.T) {
	g := newTestGuard(NewMemoryLocker(), WithTimeout(50*time.Millisecond))
	scope := PropertyScope("landlord-1", "property-1")
	boom := errors.New("validation failed")

	err := g.Execute(context.Background(), scope, func(context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)

	err = g.Execute(context.Background(), scope, func(context.Context) error { return nil })
	assert.NoError(t, err)
}

func TestExecute_RunsInsideTransaction(t *testing.T) {
	g := newTestGuard(NewMemoryLocker())

	err := g.Execute(context.Background(), SlotScope("p"), func(ctx context.Context) error {
		assert.True(t, local.InTransaction(ctx))
		return nil
	})
	assert.NoError(t, err)
}

func TestMemoryLease_DoubleReleaseIsSafe(t *testing.T) {
	locker := NewMemoryLocker()
	lease, err := locker.Acquire(context.Background(), "k", time.Second)
	require.NoError(t, err)

	require.NoError(t, lease.Release(context.Background()))
	require.NoError(t, lease.Release(context.Background()))

	again, err := locker.Acquire(context.Background(), "k", time.Second)
	require.NoError(t, err)
	assert.Equal(t, "k", again.Key())
}

func TestNew_TTLNeverShorterThanTimeout(t *testing.T) {
	g := newTestGuard(NewMemoryLocker(), WithTimeout(time.Minute), WithTTL(time.Second))
	assert.Equal(t, time.Minute, g.ttl)
}

func TestExecute_WorkIsBoundedByLease(t *testing.T) {
	g := newTestGuard(NewMemoryLocker(), WithTimeout(20*time.Millisecond), WithTTL(50*time.Millisecond))
	scope := PropertyScope("landlord-1", "property-1")

	start := time.Now()
	err := g.Execute(context.Background(), scope, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	require.Error(t, err)
	assert.True(t, apperrors.IsConflict(err))
	assert.Less(t, time.Since(start), time.Second)

	// The scope is free again once the aborted work has returned.
	err = g.Execute(context.Background(), scope, func(context.Context) error { return nil })
	assert.NoError(t, err)
}
