package repository

import (
	"context"
	"errors"
	"fmt"
	visitserrors "propbook/internal/visits/errors"
	"propbook/pkg/config"
	dbmongo "propbook/pkg/db/mongo"
	"propbook/pkg/model"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionName = "Visits"

	FlagFeedbackNotified = "feedback_notified"
	FlagReminderSent     = "reminder_sent"
)

type VisitRepository interface {
	Create(ctx context.Context, visit *model.Visit) error
	FindByID(ctx context.Context, id string) (*model.Visit, error)
	FindByProperty(ctx context.Context, propertyID string, statuses []model.VisitStatus) ([]*model.Visit, error)
	// FindScheduledBefore returns visits in one of statuses with scheduled_at < before.
	FindScheduledBefore(ctx context.Context, statuses []model.VisitStatus, before time.Time) ([]*model.Visit, error)
	// FindReminderDue returns visits in status scheduled in [from, to] that
	// have not been reminded yet.
	FindReminderDue(ctx context.Context, status model.VisitStatus, from, to time.Time) ([]*model.Visit, error)
	// Replace stores visit if the stored copy is still in expected status.
	Replace(ctx context.Context, visit *model.Visit, expected model.VisitStatus) error
	// Claim sets a once-only boolean flag. It returns ErrAlreadyClaimed when
	// another caller set it first.
	Claim(ctx context.Context, id, flag string, at time.Time) error
}

type mongoVisitRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoVisitRepository(cfg *config.Config) VisitRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoVisitRepository{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
	}
}

func (r *mongoVisitRepository) Create(ctx context.Context, visit *model.Visit) error {
	ctx, cancel := dbmongo.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	if _, err := r.collection.InsertOne(ctx, visit); err != nil {
		return fmt.Errorf("failed to create visit: %w", err)
	}
	return nil
}

func (r *mongoVisitRepository) FindByID(ctx context.Context, id string) (*model.Visit, error) {
	ctx, cancel := dbmongo.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var visit model.Visit
	if err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&visit); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, visitserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find visit: %w", err)
	}
	return &visit, nil
}

func (r *mongoVisitRepository) FindByProperty(ctx context.Context, propertyID string, statuses []model.VisitStatus) ([]*model.Visit, error) {
	filter := bson.M{"property_id": propertyID}
	if len(statuses) > 0 {
		filter["status"] = bson.M{"$in": statuses}
	}
	return r.find(ctx, filter)
}

func (r *mongoVisitRepository) FindScheduledBefore(ctx context.Context, statuses []model.VisitStatus, before time.Time) ([]*model.Visit, error) {
	return r.find(ctx, bson.M{
		"status":       bson.M{"$in": statuses},
		"scheduled_at": bson.M{"$lt": before},
	})
}

func (r *mongoVisitRepository) FindReminderDue(ctx context.Context, status model.VisitStatus, from, to time.Time) ([]*model.Visit, error) {
	return r.find(ctx, bson.M{
		"status":        status,
		"reminder_sent": false,
		"scheduled_at":  bson.M{"$gte": from, "$lte": to},
	})
}

func (r *mongoVisitRepository) Replace(ctx context.Context, visit *model.Visit, expected model.VisitStatus) error {
	ctx, cancel := dbmongo.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	result, err := r.collection.ReplaceOne(ctx, bson.M{"_id": visit.ID, "status": expected}, visit)
	if err != nil {
		return fmt.Errorf("failed to update visit: %w", err)
	}
	if result.MatchedCount == 0 {
		if _, err := r.FindByID(ctx, visit.ID); err != nil {
			return err
		}
		return visitserrors.ErrStatusChanged
	}
	return nil
}

func (r *mongoVisitRepository) Claim(ctx context.Context, id, flag string, at time.Time) error {
	ctx, cancel := dbmongo.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	filter := bson.M{"_id": id, flag: bson.M{"$ne": true}}
	update := bson.M{"$set": bson.M{flag: true, "updated_at": at}}
	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to set %s: %w", flag, err)
	}
	if result.MatchedCount == 0 {
		if _, err := r.FindByID(ctx, id); err != nil {
			return err
		}
		return visitserrors.ErrAlreadyClaimed
	}
	return nil
}

func (r *mongoVisitRepository) find(ctx context.Context, filter bson.M) ([]*model.Visit, error) {
	ctx, cancel := dbmongo.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "scheduled_at", Value: 1}})
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find visits: %w", err)
	}
	defer cursor.Close(ctx)

	var visits []*model.Visit
	if err = cursor.All(ctx, &visits); err != nil {
		return nil, fmt.Errorf("failed to decode visits: %w", err)
	}
	return visits, nil
}
