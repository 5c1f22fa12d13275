package repository

import (
	"context"
	"errors"
	"fmt"
	availabilityerrors "propbook/internal/availability/errors"
	"propbook/pkg/config"
	dbmongo "propbook/pkg/db/mongo"
	"propbook/pkg/model"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionName = "Shortlet_availability"
)

type AvailabilityRepository interface {
	Create(ctx context.Context, a *model.ShortletAvailability) error
	FindByID(ctx context.Context, id string) (*model.ShortletAvailability, error)
	// FindByPair lists every range for (landlordID, propertyID) ordered by start date.
	FindByPair(ctx context.Context, landlordID, propertyID string) ([]*model.ShortletAvailability, error)
	// FindCovering returns one range with start <= start && end >= end.
	FindCovering(ctx context.Context, landlordID, propertyID string, start, end time.Time) (*model.ShortletAvailability, error)
	Delete(ctx context.Context, id string) error
}

type mongoAvailabilityRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoAvailabilityRepository(cfg *config.Config) AvailabilityRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoAvailabilityRepository{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
	}
}

func (r *mongoAvailabilityRepository) Create(ctx context.Context, a *model.ShortletAvailability) error {
	ctx, cancel := dbmongo.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	if _, err := r.collection.InsertOne(ctx, a); err != nil {
		return fmt.Errorf("failed to create availability range: %w", err)
	}
	return nil
}

func (r *mongoAvailabilityRepository) FindByID(ctx context.Context, id string) (*model.ShortletAvailability, error) {
	ctx, cancel := dbmongo.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var a model.ShortletAvailability
	if err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&a); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, availabilityerrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find availability range: %w", err)
	}
	return &a, nil
}

func (r *mongoAvailabilityRepository) FindByPair(ctx context.Context, landlordID, propertyID string) ([]*model.ShortletAvailability, error) {
	ctx, cancel := dbmongo.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{"landlord_id": landlordID, "property_id": propertyID}
	opts := options.Find().SetSort(bson.D{{Key: "start_date", Value: 1}})

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find availability ranges: %w", err)
	}
	defer cursor.Close(ctx)

	var ranges []*model.ShortletAvailability
	if err = cursor.All(ctx, &ranges); err != nil {
		return nil, fmt.Errorf("failed to decode availability ranges: %w", err)
	}
	return ranges, nil
}

func (r *mongoAvailabilityRepository) FindCovering(ctx context.Context, landlordID, propertyID string, start, end time.Time) (*model.ShortletAvailability, error) {
	ctx, cancel := dbmongo.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{
		"landlord_id": landlordID,
		"property_id": propertyID,
		"start_date":  bson.M{"$lte": model.DateOf(start)},
		"end_date":    bson.M{"$gte": model.DateOf(end)},
	}

	var a model.ShortletAvailability
	if err := r.collection.FindOne(ctx, filter).Decode(&a); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, availabilityerrors.ErrNoCoveringRange
		}
		return nil, fmt.Errorf("failed to find covering range: %w", err)
	}
	return &a, nil
}

func (r *mongoAvailabilityRepository) Delete(ctx context.Context, id string) error {
	ctx, cancel := dbmongo.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete availability range: %w", err)
	}
	if result.DeletedCount == 0 {
		return availabilityerrors.ErrNotFound
	}
	return nil
}
