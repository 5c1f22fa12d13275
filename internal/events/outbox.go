package events

import (
	"context"
	"fmt"
	"propbook/pkg/config"
	"propbook/pkg/db/local"
	dbmongo "propbook/pkg/db/mongo"
	"propbook/pkg/kafka"
	"propbook/pkg/model"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	OutboxCollectionName = "Event_outbox"
)

type OutboxRepository interface {
	Insert(ctx context.Context, batch *model.OutboxBatch) error
	// FindPending returns up to limit unpublished batches, oldest first.
	FindPending(ctx context.Context, limit int) ([]*model.OutboxBatch, error)
	MarkPublished(ctx context.Context, id string, at time.Time) error
	RecordFailure(ctx context.Context, id string, reason string) error
}

type mongoOutboxRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoOutboxRepository(cfg *config.Config) OutboxRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoOutboxRepository{
		cfg:        cfg,
		collection: db.Collection(OutboxCollectionName),
	}
}

func (r *mongoOutboxRepository) Insert(ctx context.Context, batch *model.OutboxBatch) error {
	ctx, cancel := dbmongo.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	if _, err := r.collection.InsertOne(ctx, batch); err != nil {
		return fmt.Errorf("failed to stage outbox batch: %w", err)
	}
	return nil
}

func (r *mongoOutboxRepository) FindPending(ctx context.Context, limit int) ([]*model.OutboxBatch, error) {
	ctx, cancel := dbmongo.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}).
		SetLimit(int64(limit))

	cursor, err := r.collection.Find(ctx, bson.M{"status": model.OutboxPending}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find pending outbox batches: %w", err)
	}
	defer cursor.Close(ctx)

	var batches []*model.OutboxBatch
	if err = cursor.All(ctx, &batches); err != nil {
		return nil, fmt.Errorf("failed to decode outbox batches: %w", err)
	}
	return batches, nil
}

func (r *mongoOutboxRepository) MarkPublished(ctx context.Context, id string, at time.Time) error {
	ctx, cancel := dbmongo.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	update := bson.M{
		"$set": bson.M{"status": model.OutboxPublished, "published_at": at},
		"$inc": bson.M{"attempts": 1},
	}
	if _, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, update); err != nil {
		return fmt.Errorf("failed to mark outbox batch published: %w", err)
	}
	return nil
}

func (r *mongoOutboxRepository) RecordFailure(ctx context.Context, id string, reason string) error {
	ctx, cancel := dbmongo.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	update := bson.M{
		"$set": bson.M{"last_error": reason},
		"$inc": bson.M{"attempts": 1},
	}
	if _, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, update); err != nil {
		return fmt.Errorf("failed to record outbox failure: %w", err)
	}
	return nil
}

type MemoryOutboxRepository struct {
	mu      sync.Mutex
	batches map[string]*model.OutboxBatch
	seq     map[string]int
	next    int
}

func NewMemoryOutboxRepository() *MemoryOutboxRepository {
	return &MemoryOutboxRepository{
		batches: make(map[string]*model.OutboxBatch),
		seq:     make(map[string]int),
	}
}

func (r *MemoryOutboxRepository) Insert(ctx context.Context, batch *model.OutboxBatch) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *batch
	r.batches[batch.ID] = &cp
	r.seq[batch.ID] = r.next
	r.next++
	local.OnRollback(ctx, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.batches, batch.ID)
		delete(r.seq, batch.ID)
	})
	return nil
}

func (r *MemoryOutboxRepository) FindPending(_ context.Context, limit int) ([]*model.OutboxBatch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.OutboxBatch
	for _, b := range r.batches {
		if b.Status == model.OutboxPending {
			cp := *b
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return r.seq[out[i].ID] < r.seq[out[j].ID] })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryOutboxRepository) MarkPublished(_ context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.batches[id]; ok {
		b.Status = model.OutboxPublished
		b.PublishedAt = &at
		b.Attempts++
	}
	return nil
}

func (r *MemoryOutboxRepository) RecordFailure(_ context.Context, id string, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.batches[id]; ok {
		b.LastError = reason
		b.Attempts++
	}
	return nil
}

// All returns every staged batch in insertion order.
func (r *MemoryOutboxRepository) All() []*model.OutboxBatch {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*model.OutboxBatch, 0, len(r.batches))
	for _, b := range r.batches {
		cp := *b
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return r.seq[out[i].ID] < r.seq[out[j].ID] })
	return out
}

func toOutboxMessages(msgs []kafka.Message) []model.OutboxMessage {
	out := make([]model.OutboxMessage, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, model.OutboxMessage{
			EventID:   m.GetEventID(),
			EventType: m.GetEventType(),
			Key:       m.Key,
			Value:     m.Value,
			Headers:   m.Headers,
			Timestamp: m.Timestamp,
		})
	}
	return out
}

func fromOutboxMessages(msgs []model.OutboxMessage) []kafka.Message {
	out := make([]kafka.Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, kafka.Message{
			Key:       m.Key,
			Value:     m.Value,
			Headers:   m.Headers,
			Timestamp: m.Timestamp,
		})
	}
	return out
}
