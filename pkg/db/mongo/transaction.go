package mongo

import (
	"context"
	"fmt"
	apperrors "propbook/pkg/errors"

	"go.mongodb.org/mongo-driver/mongo"
)

// TransactionFunc runs inside a unit of work. ctx carries the session, so
// repository calls made with it join the transaction.
type TransactionFunc func(ctx context.Context) error

type TransactionManager interface {
	// ExecuteTransaction joins the transaction already carried by ctx, or
	// starts a new one when there is none.
	ExecuteTransaction(ctx context.Context, fn TransactionFunc) error
	// ExecuteIndependentTransaction always opens a fresh session that commits
	// on its own, regardless of any transaction in ctx.
	ExecuteIndependentTransaction(ctx context.Context, fn TransactionFunc) error
}

type mongoTransactionManager struct {
	client *mongo.Client
}

func NewTransactionManager(client *mongo.Client) TransactionManager {
	return &mongoTransactionManager{
		client: client,
	}
}

func (m *mongoTransactionManager) ExecuteTransaction(ctx context.Context, fn TransactionFunc) error {
	if mongo.SessionFromContext(ctx) != nil {
		return fn(ctx)
	}
	return m.run(ctx, fn)
}

func (m *mongoTransactionManager) ExecuteIndependentTransaction(ctx context.Context, fn TransactionFunc) error {
	return m.run(ctx, fn)
}

func (m *mongoTransactionManager) run(ctx context.Context, fn TransactionFunc) error {
	session, err := m.client.StartSession()
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	defer session.EndSession(context.WithoutCancel(ctx))

	_, err = session.WithTransaction(ctx, func(sessCtx mongo.SessionContext) (any, error) {
		return nil, fn(sessCtx)
	})

	if err != nil {
		if apperrors.IsAppError(err) {
			return err
		}
		return fmt.Errorf("transaction failed: %w", err)
	}

	return nil
}
