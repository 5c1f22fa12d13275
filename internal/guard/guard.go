package guard

import (
	"context"
	"errors"
	dbmongo "propbook/pkg/db/mongo"
	apperrors "propbook/pkg/errors"
	"propbook/pkg/logger"
	"time"
)

const (
	DefaultTimeout = 30 * time.Second
	DefaultTTL     = 45 * time.Second

	releaseTimeout = 5 * time.Second
	workShare      = 0.9
)

// Guard runs a unit of work while holding the lock for its scope.
type Guard struct {
	locker  Locker
	tx      dbmongo.TransactionManager
	log     *logger.Logger
	timeout time.Duration
	ttl     time.Duration
}

type Option func(*Guard)

// WithTimeout bounds how long Execute waits for the lock.
func WithTimeout(d time.Duration) Option {
	return func(g *Guard) {
		if d > 0 {
			g.timeout = d
		}
	}
}

// WithTTL sets how long a lock survives a holder that never releases it.
func WithTTL(d time.Duration) Option {
	return func(g *Guard) {
		if d > 0 {
			g.ttl = d
		}
	}
}

func New(locker Locker, tx dbmongo.TransactionManager, log *logger.Logger, opts ...Option) *Guard {
	g := &Guard{
		locker:  locker,
		tx:      tx,
		log:     log,
		timeout: DefaultTimeout,
		ttl:     DefaultTTL,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.ttl < g.timeout {
		g.ttl = g.timeout
	}
	return g
}

// Execute acquires scope, runs fn in its own transaction, and releases scope
// after that transaction has committed or rolled back. The transaction is
// independent of any carried by ctx, so the lock is never released before
// fn's writes are durable. A lock wait that times out fails closed with a
// Conflict and fn never runs.
//
// fn must finish inside the lease: its context expires at workShare of the
// TTL, counted from the moment the lock was granted, so the transaction is
// aborted before another writer could take the scope over.
func (g *Guard) Execute(ctx context.Context, scope string, fn dbmongo.TransactionFunc) error {
	acquireCtx, cancel := context.WithTimeout(ctx, g.timeout)
	lease, err := g.locker.Acquire(acquireCtx, scope, g.ttl)
	cancel()
	if err != nil {
		if errors.Is(err, ErrNotAcquired) {
			g.log.Warn("Lock wait timed out", "scope", scope, "timeout", g.timeout)
			return apperrors.Conflict("Another request is updating this property, please retry").
				WithDetails(map[string]any{"scope": scope})
		}
		return apperrors.Internal("Failed to acquire lock", err)
	}

	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
		defer cancel()
		if err := lease.Release(releaseCtx); err != nil {
			g.log.Warn("Failed to release lock", "scope", scope, "error", err)
		}
	}()

	workCtx, cancelWork := context.WithTimeout(ctx, g.workBudget())
	defer cancelWork()

	err = g.tx.ExecuteIndependentTransaction(workCtx, fn)
	if err != nil && ctx.Err() == nil && errors.Is(workCtx.Err(), context.DeadlineExceeded) {
		g.log.Warn("Unit of work outlived its lock", "scope", scope, "ttl", g.ttl)
		return apperrors.Conflict("The update took too long and was rolled back, please retry").
			WithDetails(map[string]any{"scope": scope})
	}
	return err
}

func (g *Guard) workBudget() time.Duration {
	return time.Duration(float64(g.ttl) * workShare)
}
