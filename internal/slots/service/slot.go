package service

import (
	"context"
	"errors"
	"fmt"
	"propbook/internal/guard"
	slotserrors "propbook/internal/slots/errors"
	"propbook/internal/slots/repository"
	"propbook/pkg/clock"
	"propbook/pkg/config"
	apperrors "propbook/pkg/errors"
	"propbook/pkg/model"
	"propbook/pkg/validation"
	"time"

	"github.com/google/uuid"
)

type SlotService interface {
	CreateSlot(ctx context.Context, slot *model.AvailabilitySlot) error
	GetSlot(ctx context.Context, id string) (*model.AvailabilitySlot, error)
	GetAvailableSlots(ctx context.Context, propertyID, landlordID string) ([]*model.AvailabilitySlot, error)
	IsSlotAvailable(ctx context.Context, propertyID string, start, end time.Time) (bool, error)
	Book(ctx context.Context, id string) (*model.AvailabilitySlot, error)
	Release(ctx context.Context, id string) error
	DeleteSlot(ctx context.Context, id string) error
}

type slotService struct {
	repo      repository.SlotRepository
	guard     *guard.Guard
	validator *validation.Validator
	clock     clock.Clock
	cfg       *config.Config
}

func NewSlotService(
	repo repository.SlotRepository,
	g *guard.Guard,
	validator *validation.Validator,
	clk clock.Clock,
	cfg *config.Config,
) SlotService {
	return &slotService{
		repo:      repo,
		guard:     g,
		validator: validator,
		clock:     clk,
		cfg:       cfg,
	}
}

// CreateSlot rejects slots that do not start in the future or that overlap
// any existing slot on the same property, whoever its landlord is.
func (s *slotService) CreateSlot(ctx context.Context, slot *model.AvailabilitySlot) error {
	slot.StartTime = slot.StartTime.UTC()
	slot.EndTime = slot.EndTime.UTC()
	if err := s.validator.Struct(slot); err != nil {
		return validationError("Slot validation failed", err)
	}

	now := s.clock.Now()
	if !slot.StartTime.After(now) {
		return apperrors.Validation("Slot must start in the future", map[string]any{"start_time": slot.StartTime})
	}

	err := s.guard.Execute(ctx, guard.SlotScope(slot.PropertyID), func(txCtx context.Context) error {
		overlapping, err := s.repo.FindOverlapping(txCtx, slot.PropertyID, slot.StartTime, slot.EndTime)
		if err != nil {
			return apperrors.Internal("Failed to check overlapping slots", err)
		}
		if len(overlapping) > 0 {
			o := overlapping[0]
			return apperrors.Conflict(fmt.Sprintf(
				"Slot overlaps with existing slot (%s - %s)",
				o.StartTime.Format(time.RFC3339),
				o.EndTime.Format(time.RFC3339),
			)).WithDetails(map[string]any{"slot_id": o.ID})
		}

		slot.ID = uuid.NewString()
		slot.Booked = false
		slot.CreatedAt = now
		slot.UpdatedAt = now
		if err := s.repo.Create(txCtx, slot); err != nil {
			return apperrors.Internal("Failed to create slot", err)
		}
		return nil
	})
	if err != nil {
		s.cfg.Log.Warn("Failed to create slot", "property_id", slot.PropertyID, "error", err)
		return err
	}

	s.cfg.Log.Info("Slot created successfully",
		"id", slot.ID,
		"property_id", slot.PropertyID,
		"start_time", slot.StartTime,
		"end_time", slot.EndTime,
	)
	return nil
}

func (s *slotService) GetSlot(ctx context.Context, id string) (*model.AvailabilitySlot, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Slot ID cannot be empty")
	}
	slot, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, mapError(err, id, "Failed to retrieve slot")
	}
	return slot, nil
}

func (s *slotService) GetAvailableSlots(ctx context.Context, propertyID, landlordID string) ([]*model.AvailabilitySlot, error) {
	if propertyID == "" {
		return nil, apperrors.InvalidInput("Property ID cannot be empty")
	}
	slots, err := s.repo.FindAvailable(ctx, propertyID, landlordID, s.clock.Now())
	if err != nil {
		s.cfg.Log.Error("Failed to list available slots", "property_id", propertyID, "error", err)
		return nil, apperrors.Internal("Failed to retrieve slots", err)
	}
	return slots, nil
}

func (s *slotService) IsSlotAvailable(ctx context.Context, propertyID string, start, end time.Time) (bool, error) {
	_, err := s.repo.FindCovering(ctx, propertyID, start.UTC(), end.UTC())
	if err != nil {
		if errors.Is(err, slotserrors.ErrNotFound) {
			return false, nil
		}
		return false, apperrors.Internal("Failed to check slot availability", err)
	}
	return true, nil
}

// Book marks the slot taken. Concurrent callers race on a conditional update,
// so exactly one wins and the rest get a Conflict.
func (s *slotService) Book(ctx context.Context, id string) (*model.AvailabilitySlot, error) {
	if err := s.repo.SetBooked(ctx, id, true, s.clock.Now()); err != nil {
		return nil, mapError(err, id, "Failed to book slot")
	}
	slot, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, mapError(err, id, "Failed to reload slot")
	}
	s.cfg.Log.Debug("Slot booked", "id", id)
	return slot, nil
}

// Release is idempotent: an unbooked or missing slot is not an error.
func (s *slotService) Release(ctx context.Context, id string) error {
	err := s.repo.SetBooked(ctx, id, false, s.clock.Now())
	if err == nil {
		s.cfg.Log.Debug("Slot released", "id", id)
		return nil
	}
	if errors.Is(err, slotserrors.ErrNotBooked) || errors.Is(err, slotserrors.ErrNotFound) {
		return nil
	}
	return apperrors.Internal("Failed to release slot", err)
}

func (s *slotService) DeleteSlot(ctx context.Context, id string) error {
	if id == "" {
		return apperrors.InvalidInput("Slot ID cannot be empty")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, slotserrors.ErrAlreadyBooked) {
			return apperrors.Conflict("Cannot delete a booked slot").WithDetails(map[string]any{"slot_id": id})
		}
		return mapError(err, id, "Failed to delete slot")
	}
	s.cfg.Log.Info("Slot deleted successfully", "id", id)
	return nil
}

func mapError(err error, id, internalMsg string) error {
	switch {
	case errors.Is(err, slotserrors.ErrNotFound):
		return apperrors.NotFoundWithID("Slot", id)
	case errors.Is(err, slotserrors.ErrAlreadyBooked):
		return apperrors.Conflict("Slot is already booked").WithDetails(map[string]any{"slot_id": id})
	default:
		return apperrors.Internal(internalMsg, err)
	}
}

func validationError(msg string, err error) error {
	var verrs validation.ValidationErrors
	if errors.As(err, &verrs) {
		return apperrors.Validation(msg, verrs.Details())
	}
	return apperrors.Validation(msg, map[string]any{"error": err.Error()})
}
