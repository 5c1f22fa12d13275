package guard

import (
	"context"
	"errors"
	"fmt"
	"propbook/pkg/clock"
	dbmongo "propbook/pkg/db/mongo"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const LocksCollection = "Locks"

var errHeld = errors.New("lock held")

// MongoLocker keeps one document per held key. The key is the document _id,
// so a second holder's insert fails with a duplicate key until the first
// releases or its expires_at passes.
type MongoLocker struct {
	collection *mongo.Collection
	tx         dbmongo.TransactionManager
	clock      clock.Clock
	poll       time.Duration
}

func NewMongoLocker(db *mongo.Database, tx dbmongo.TransactionManager, clk clock.Clock, poll time.Duration) *MongoLocker {
	if poll <= 0 {
		poll = 50 * time.Millisecond
	}
	return &MongoLocker{
		collection: db.Collection(LocksCollection),
		tx:         tx,
		clock:      clk,
		poll:       poll,
	}
}

func (l *MongoLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (Lease, error) {
	owner := uuid.NewString()
	for {
		err := l.tryAcquire(ctx, key, owner, ttl)
		if err == nil {
			return &mongoLease{key: key, owner: owner, locker: l}, nil
		}
		if !errors.Is(err, errHeld) {
			if ctx.Err() != nil {
				return nil, errors.Join(ErrNotAcquired, ctx.Err())
			}
			return nil, err
		}
		if err := waitOrDone(ctx, l.poll); err != nil {
			return nil, err
		}
	}
}

// tryAcquire upserts the lock document when it is missing or expired. A live
// lock makes the upsert collide on _id.
func (l *MongoLocker) tryAcquire(ctx context.Context, key, owner string, ttl time.Duration) error {
	now := l.clock.Now()
	filter := bson.M{
		"_id":        key,
		"expires_at": bson.M{"$lte": now},
	}
	update := bson.M{
		"$set": bson.M{
			"owner":      owner,
			"expires_at": now.Add(ttl),
			"created_at": now,
		},
	}

	return l.tx.ExecuteIndependentTransaction(ctx, func(txCtx context.Context) error {
		_, err := l.collection.UpdateOne(txCtx, filter, update, options.Update().SetUpsert(true))
		if err != nil {
			if mongo.IsDuplicateKeyError(err) {
				return errHeld
			}
			return fmt.Errorf("failed to acquire lock %s: %w", key, err)
		}
		return nil
	})
}

type mongoLease struct {
	key    string
	owner  string
	locker *MongoLocker
}

func (l *mongoLease) Key() string { return l.key }

// Release deletes the lock only if this lease still owns it.
func (l *mongoLease) Release(ctx context.Context) error {
	return l.locker.tx.ExecuteIndependentTransaction(ctx, func(txCtx context.Context) error {
		_, err := l.locker.collection.DeleteOne(txCtx, bson.M{"_id": l.key, "owner": l.owner})
		if err != nil {
			return fmt.Errorf("failed to release lock %s: %w", l.key, err)
		}
		return nil
	})
}
