package service

import (
	"context"
	"errors"
	"fmt"
	availabilityerrors "propbook/internal/availability/errors"
	"propbook/internal/availability/repository"
	"propbook/internal/guard"
	"propbook/pkg/clock"
	"propbook/pkg/config"
	apperrors "propbook/pkg/errors"
	"propbook/pkg/model"
	"propbook/pkg/validation"
	"time"

	"github.com/google/uuid"
)

type AvailabilityService interface {
	SetAvailability(ctx context.Context, a *model.ShortletAvailability) error
	IsAvailable(ctx context.Context, landlordID, propertyID string, start, end time.Time) (bool, error)
	ListAvailability(ctx context.Context, landlordID, propertyID string) ([]*model.ShortletAvailability, error)
	DeleteAvailability(ctx context.Context, id string) error
	// Consume removes [start, end] from the single range that covers it and
	// stores the residuals. The caller must already hold the property scope
	// and pass its transaction context.
	Consume(txCtx context.Context, landlordID, propertyID string, start, end time.Time) ([]*model.ShortletAvailability, error)
}

type availabilityService struct {
	repo      repository.AvailabilityRepository
	guard     *guard.Guard
	validator *validation.Validator
	clock     clock.Clock
	cfg       *config.Config
}

func NewAvailabilityService(
	repo repository.AvailabilityRepository,
	g *guard.Guard,
	validator *validation.Validator,
	clk clock.Clock,
	cfg *config.Config,
) AvailabilityService {
	return &availabilityService{
		repo:      repo,
		guard:     g,
		validator: validator,
		clock:     clk,
		cfg:       cfg,
	}
}

func (s *availabilityService) SetAvailability(ctx context.Context, a *model.ShortletAvailability) error {
	a.StartDate = model.DateOf(a.StartDate)
	a.EndDate = model.DateOf(a.EndDate)

	if err := s.validator.Struct(a); err != nil {
		var verrs validation.ValidationErrors
		if errors.As(err, &verrs) {
			return apperrors.Validation("Availability validation failed", verrs.Details())
		}
		return apperrors.Validation("Availability validation failed", map[string]any{"error": err.Error()})
	}
	if !a.StartDate.Before(a.EndDate) {
		return apperrors.Validation("Start date must be before end date", map[string]any{
			"start_date": a.StartDate.Format(model.DateLayout),
			"end_date":   a.EndDate.Format(model.DateLayout),
		})
	}

	err := s.guard.Execute(ctx, guard.PropertyScope(a.LandlordID, a.PropertyID), func(txCtx context.Context) error {
		existing, err := s.repo.FindByPair(txCtx, a.LandlordID, a.PropertyID)
		if err != nil {
			return apperrors.Internal("Failed to load availability", err)
		}
		for _, e := range existing {
			if e.Touches(a.StartDate, a.EndDate) {
				return apperrors.Conflict(fmt.Sprintf(
					"Availability overlaps with existing range %s to %s",
					e.StartDate.Format(model.DateLayout),
					e.EndDate.Format(model.DateLayout),
				)).WithDetails(map[string]any{"availability_id": e.ID})
			}
		}

		a.ID = uuid.NewString()
		a.CreatedAt = s.clock.Now()
		if err := s.repo.Create(txCtx, a); err != nil {
			return apperrors.Internal("Failed to create availability", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.cfg.Log.Info("Availability range created",
		"id", a.ID,
		"landlord_id", a.LandlordID,
		"property_id", a.PropertyID,
		"start_date", a.StartDate.Format(model.DateLayout),
		"end_date", a.EndDate.Format(model.DateLayout),
	)
	return nil
}

// IsAvailable requires one stored range to contain the whole window. Adjacent
// ranges are never stitched together.
func (s *availabilityService) IsAvailable(ctx context.Context, landlordID, propertyID string, start, end time.Time) (bool, error) {
	_, err := s.repo.FindCovering(ctx, landlordID, propertyID, start, end)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, availabilityerrors.ErrNoCoveringRange) {
		return false, nil
	}
	return false, apperrors.Internal("Failed to check availability", err)
}

func (s *availabilityService) ListAvailability(ctx context.Context, landlordID, propertyID string) ([]*model.ShortletAvailability, error) {
	ranges, err := s.repo.FindByPair(ctx, landlordID, propertyID)
	if err != nil {
		s.cfg.Log.Error("Failed to list availability", "property_id", propertyID, "error", err)
		return nil, apperrors.Internal("Failed to list availability", err)
	}
	return ranges, nil
}

func (s *availabilityService) DeleteAvailability(ctx context.Context, id string) error {
	if id == "" {
		return apperrors.InvalidInput("Availability ID cannot be empty")
	}
	current, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, availabilityerrors.ErrNotFound) {
			return apperrors.NotFoundWithID("Availability", id)
		}
		return apperrors.Internal("Failed to load availability", err)
	}

	err = s.guard.Execute(ctx, guard.PropertyScope(current.LandlordID, current.PropertyID), func(txCtx context.Context) error {
		if err := s.repo.Delete(txCtx, id); err != nil {
			if errors.Is(err, availabilityerrors.ErrNotFound) {
				return apperrors.NotFoundWithID("Availability", id)
			}
			return apperrors.Internal("Failed to delete availability", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.cfg.Log.Info("Availability range deleted", "id", id, "property_id", current.PropertyID)
	return nil
}

func (s *availabilityService) Consume(txCtx context.Context, landlordID, propertyID string, start, end time.Time) ([]*model.ShortletAvailability, error) {
	covering, err := s.repo.FindCovering(txCtx, landlordID, propertyID, start, end)
	if err != nil {
		if errors.Is(err, availabilityerrors.ErrNoCoveringRange) {
			return nil, apperrors.Conflict("No single availability range covers the requested dates").
				WithDetails(map[string]any{
					"start_date": model.DateOf(start).Format(model.DateLayout),
					"end_date":   model.DateOf(end).Format(model.DateLayout),
				})
		}
		return nil, apperrors.Internal("Failed to find covering availability", err)
	}

	if err := s.repo.Delete(txCtx, covering.ID); err != nil {
		return nil, apperrors.Internal("Failed to consume availability", err)
	}

	now := s.clock.Now()
	residuals := SplitRange(covering, start, end)
	for _, r := range residuals {
		r.ID = uuid.NewString()
		r.CreatedAt = now
		if err := s.repo.Create(txCtx, r); err != nil {
			return nil, apperrors.Internal("Failed to store residual availability", err)
		}
	}

	s.cfg.Log.Debug("Availability consumed",
		"availability_id", covering.ID,
		"property_id", propertyID,
		"residuals", len(residuals),
	)
	return residuals, nil
}
