package repository

import (
	"context"
	"errors"
	"fmt"
	slotserrors "propbook/internal/slots/errors"
	"propbook/pkg/config"
	dbmongo "propbook/pkg/db/mongo"
	"propbook/pkg/model"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionName = "Availability_slots"
)

type SlotRepository interface {
	Create(ctx context.Context, slot *model.AvailabilitySlot) error
	FindByID(ctx context.Context, id string) (*model.AvailabilitySlot, error)
	// FindOverlapping returns slots on propertyID with start < end && end > start.
	FindOverlapping(ctx context.Context, propertyID string, start, end time.Time) ([]*model.AvailabilitySlot, error)
	// FindAvailable returns unbooked slots starting after the given instant.
	// An empty landlordID matches every landlord.
	FindAvailable(ctx context.Context, propertyID, landlordID string, after time.Time) ([]*model.AvailabilitySlot, error)
	// FindCovering returns an unbooked slot spanning [start, end], if any.
	FindCovering(ctx context.Context, propertyID string, start, end time.Time) (*model.AvailabilitySlot, error)
	// SetBooked flips booked from !booked to booked. It returns ErrNotFound for
	// a missing slot, ErrAlreadyBooked or ErrNotBooked when the flag already
	// holds the target value.
	SetBooked(ctx context.Context, id string, booked bool, at time.Time) error
	Delete(ctx context.Context, id string) error
}

type mongoSlotRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoSlotRepository(cfg *config.Config) SlotRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoSlotRepository{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
	}
}

func (r *mongoSlotRepository) Create(ctx context.Context, slot *model.AvailabilitySlot) error {
	ctx, cancel := dbmongo.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	if _, err := r.collection.InsertOne(ctx, slot); err != nil {
		return fmt.Errorf("failed to create slot: %w", err)
	}
	return nil
}

func (r *mongoSlotRepository) FindByID(ctx context.Context, id string) (*model.AvailabilitySlot, error) {
	ctx, cancel := dbmongo.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var slot model.AvailabilitySlot
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&slot)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, slotserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find slot: %w", err)
	}
	return &slot, nil
}

func (r *mongoSlotRepository) FindOverlapping(ctx context.Context, propertyID string, start, end time.Time) ([]*model.AvailabilitySlot, error) {
	filter := bson.M{
		"property_id": propertyID,
		"start_time":  bson.M{"$lt": end},
		"end_time":    bson.M{"$gt": start},
	}
	return r.find(ctx, filter)
}

func (r *mongoSlotRepository) FindAvailable(ctx context.Context, propertyID, landlordID string, after time.Time) ([]*model.AvailabilitySlot, error) {
	filter := bson.M{
		"property_id": propertyID,
		"booked":      false,
		"start_time":  bson.M{"$gt": after},
	}
	if landlordID != "" {
		filter["landlord_id"] = landlordID
	}
	return r.find(ctx, filter)
}

func (r *mongoSlotRepository) FindCovering(ctx context.Context, propertyID string, start, end time.Time) (*model.AvailabilitySlot, error) {
	ctx, cancel := dbmongo.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{
		"property_id": propertyID,
		"booked":      false,
		"start_time":  bson.M{"$lte": start},
		"end_time":    bson.M{"$gte": end},
	}

	var slot model.AvailabilitySlot
	err := r.collection.FindOne(ctx, filter).Decode(&slot)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, slotserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find covering slot: %w", err)
	}
	return &slot, nil
}

func (r *mongoSlotRepository) SetBooked(ctx context.Context, id string, booked bool, at time.Time) error {
	ctx, cancel := dbmongo.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	filter := bson.M{"_id": id, "booked": !booked}
	update := bson.M{"$set": bson.M{"booked": booked, "updated_at": at}}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to update slot: %w", err)
	}
	if result.MatchedCount == 1 {
		return nil
	}

	count, err := r.collection.CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to check slot existence: %w", err)
	}
	if count == 0 {
		return slotserrors.ErrNotFound
	}
	if booked {
		return slotserrors.ErrAlreadyBooked
	}
	return slotserrors.ErrNotBooked
}

func (r *mongoSlotRepository) Delete(ctx context.Context, id string) error {
	ctx, cancel := dbmongo.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": id, "booked": false})
	if err != nil {
		return fmt.Errorf("failed to delete slot: %w", err)
	}
	if result.DeletedCount == 0 {
		if _, err := r.FindByID(ctx, id); err != nil {
			return err
		}
		return slotserrors.ErrAlreadyBooked
	}
	return nil
}

func (r *mongoSlotRepository) find(ctx context.Context, filter bson.M) ([]*model.AvailabilitySlot, error) {
	ctx, cancel := dbmongo.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "start_time", Value: 1}})
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find slots: %w", err)
	}
	defer cursor.Close(ctx)

	var slots []*model.AvailabilitySlot
	if err = cursor.All(ctx, &slots); err != nil {
		return nil, fmt.Errorf("failed to decode slots: %w", err)
	}
	return slots, nil
}
