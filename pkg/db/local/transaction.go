// Package local provides a unit of work for in-memory repositories.
package local

import (
	"context"
	"sync"

	dbmongo "propbook/pkg/db/mongo"
)

type txKey struct{}

// undoLog collects compensations registered by repositories while a unit of
// work runs. They are applied newest first when the unit of work fails.
type undoLog struct {
	mu  sync.Mutex
	fns []func()
}

func (l *undoLog) add(fn func()) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.fns = append(l.fns, fn)
}

func (l *undoLog) rollback() {
	l.mu.Lock()
	fns := l.fns
	l.fns = nil
	l.mu.Unlock()

	for i := len(fns) - 1; i >= 0; i-- {
		fns[i]()
	}
}

// TransactionManager runs fn against in-memory repositories. Writes made
// through repositories that call OnRollback are undone when fn fails, so a
// failed unit of work leaves no partial state behind.
type TransactionManager struct{}

func NewTransactionManager() *TransactionManager {
	return &TransactionManager{}
}

var _ dbmongo.TransactionManager = (*TransactionManager)(nil)

func (m *TransactionManager) ExecuteTransaction(ctx context.Context, fn dbmongo.TransactionFunc) error {
	if InTransaction(ctx) {
		return fn(ctx)
	}
	return m.run(ctx, fn)
}

func (m *TransactionManager) ExecuteIndependentTransaction(ctx context.Context, fn dbmongo.TransactionFunc) error {
	return m.run(ctx, fn)
}

func (m *TransactionManager) run(ctx context.Context, fn dbmongo.TransactionFunc) error {
	log := &undoLog{}
	if err := fn(context.WithValue(ctx, txKey{}, log)); err != nil {
		log.rollback()
		return err
	}
	return nil
}

// InTransaction reports whether ctx was produced by this manager.
func InTransaction(ctx context.Context) bool {
	_, ok := ctx.Value(txKey{}).(*undoLog)
	return ok
}

// OnRollback registers undo to run if the unit of work carried by ctx fails.
// Outside a unit of work the write is final and undo is dropped.
func OnRollback(ctx context.Context, undo func()) {
	if log, ok := ctx.Value(txKey{}).(*undoLog); ok {
		log.add(undo)
	}
}
