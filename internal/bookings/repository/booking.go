package repository

import (
	"context"
	"errors"
	"fmt"
	bookingserrors "propbook/internal/bookings/errors"
	"propbook/pkg/config"
	dbmongo "propbook/pkg/db/mongo"
	"propbook/pkg/model"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionName = "Shortlet_bookings"
)

type BookingRepository interface {
	Create(ctx context.Context, booking *model.ShortletBooking) error
	FindByID(ctx context.Context, id string) (*model.ShortletBooking, error)
	// FindPendingDuplicate returns the PENDING booking with the same tenant,
	// property and dates, or ErrNotFound.
	FindPendingDuplicate(ctx context.Context, tenantID, propertyID string, start, end time.Time) (*model.ShortletBooking, error)
	// FindOverlapping returns bookings in one of statuses whose closed date
	// interval touches [start, end]. Callers narrow the result with their
	// overlap policy.
	FindOverlapping(ctx context.Context, propertyID string, statuses []model.BookingStatus, start, end time.Time) ([]*model.ShortletBooking, error)
	FindByProperty(ctx context.Context, propertyID string, statuses []model.BookingStatus) ([]*model.ShortletBooking, error)
	// FindStartingBefore returns bookings in one of statuses with start_date < before.
	FindStartingBefore(ctx context.Context, statuses []model.BookingStatus, before time.Time) ([]*model.ShortletBooking, error)
	// FindReminderDue returns bookings in status starting in [from, to] that
	// have not been reminded yet.
	FindReminderDue(ctx context.Context, status model.BookingStatus, from, to time.Time) ([]*model.ShortletBooking, error)
	// Replace stores booking if the stored copy is still in expected status.
	Replace(ctx context.Context, booking *model.ShortletBooking, expected model.BookingStatus) error
	MarkReminderSent(ctx context.Context, id string, at time.Time) error
}

type mongoBookingRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoBookingRepository(cfg *config.Config) BookingRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoBookingRepository{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
	}
}

func (r *mongoBookingRepository) Create(ctx context.Context, booking *model.ShortletBooking) error {
	ctx, cancel := dbmongo.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	if _, err := r.collection.InsertOne(ctx, booking); err != nil {
		return fmt.Errorf("failed to create booking: %w", err)
	}
	return nil
}

func (r *mongoBookingRepository) FindByID(ctx context.Context, id string) (*model.ShortletBooking, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *mongoBookingRepository) FindPendingDuplicate(ctx context.Context, tenantID, propertyID string, start, end time.Time) (*model.ShortletBooking, error) {
	return r.findOne(ctx, bson.M{
		"tenant_id":   tenantID,
		"property_id": propertyID,
		"start_date":  model.DateOf(start),
		"end_date":    model.DateOf(end),
		"status":      model.BookingPending,
	})
}

func (r *mongoBookingRepository) FindOverlapping(ctx context.Context, propertyID string, statuses []model.BookingStatus, start, end time.Time) ([]*model.ShortletBooking, error) {
	return r.find(ctx, bson.M{
		"property_id": propertyID,
		"status":      bson.M{"$in": statuses},
		"start_date":  bson.M{"$lte": model.DateOf(end)},
		"end_date":    bson.M{"$gte": model.DateOf(start)},
	})
}

func (r *mongoBookingRepository) FindByProperty(ctx context.Context, propertyID string, statuses []model.BookingStatus) ([]*model.ShortletBooking, error) {
	filter := bson.M{"property_id": propertyID}
	if len(statuses) > 0 {
		filter["status"] = bson.M{"$in": statuses}
	}
	return r.find(ctx, filter)
}

func (r *mongoBookingRepository) FindStartingBefore(ctx context.Context, statuses []model.BookingStatus, before time.Time) ([]*model.ShortletBooking, error) {
	return r.find(ctx, bson.M{
		"status":     bson.M{"$in": statuses},
		"start_date": bson.M{"$lt": before},
	})
}

func (r *mongoBookingRepository) FindReminderDue(ctx context.Context, status model.BookingStatus, from, to time.Time) ([]*model.ShortletBooking, error) {
	return r.find(ctx, bson.M{
		"status":        status,
		"reminder_sent": false,
		"start_date":    bson.M{"$gte": from, "$lte": to},
	})
}

func (r *mongoBookingRepository) Replace(ctx context.Context, booking *model.ShortletBooking, expected model.BookingStatus) error {
	ctx, cancel := dbmongo.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	result, err := r.collection.ReplaceOne(ctx, bson.M{"_id": booking.ID, "status": expected}, booking)
	if err != nil {
		return fmt.Errorf("failed to update booking: %w", err)
	}
	if result.MatchedCount == 0 {
		if _, err := r.FindByID(ctx, booking.ID); err != nil {
			return err
		}
		return bookingserrors.ErrStatusChanged
	}
	return nil
}

func (r *mongoBookingRepository) MarkReminderSent(ctx context.Context, id string, at time.Time) error {
	ctx, cancel := dbmongo.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	update := bson.M{"$set": bson.M{"reminder_sent": true, "updated_at": at}}
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return fmt.Errorf("failed to mark reminder sent: %w", err)
	}
	if result.MatchedCount == 0 {
		return bookingserrors.ErrNotFound
	}
	return nil
}

func (r *mongoBookingRepository) findOne(ctx context.Context, filter bson.M) (*model.ShortletBooking, error) {
	ctx, cancel := dbmongo.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var booking model.ShortletBooking
	if err := r.collection.FindOne(ctx, filter).Decode(&booking); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, bookingserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find booking: %w", err)
	}
	return &booking, nil
}

func (r *mongoBookingRepository) find(ctx context.Context, filter bson.M) ([]*model.ShortletBooking, error) {
	ctx, cancel := dbmongo.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "start_date", Value: 1}, {Key: "created_at", Value: 1}})
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find bookings: %w", err)
	}
	defer cursor.Close(ctx)

	var bookings []*model.ShortletBooking
	if err = cursor.All(ctx, &bookings); err != nil {
		return nil, fmt.Errorf("failed to decode bookings: %w", err)
	}
	return bookings, nil
}
