package service

import (
	"context"
	"errors"
	"propbook/internal/directory"
	"propbook/internal/events"
	"propbook/internal/guard"
	"propbook/internal/notify"
	slots "propbook/internal/slots/service"
	visitserrors "propbook/internal/visits/errors"
	"propbook/internal/visits/repository"
	"propbook/pkg/clock"
	"propbook/pkg/config"
	apperrors "propbook/pkg/errors"
	"propbook/pkg/model"
	"propbook/pkg/sanitizer"
	"propbook/pkg/validation"
	"time"

	"github.com/google/uuid"
)

const ReasonExpired = "expired"

type VisitService interface {
	RequestVisit(ctx context.Context, visit *model.Visit) (*model.Visit, error)
	ApproveVisit(ctx context.Context, id string) (*model.Visit, error)
	RejectVisit(ctx context.Context, id, reason string) (*model.Visit, error)
	CancelVisit(ctx context.Context, id, reason string) (*model.Visit, error)
	RescheduleVisit(ctx context.Context, id, newSlotID string) (*model.Visit, error)
	CompleteVisit(ctx context.Context, id string) (*model.Visit, error)
	ExpireVisit(ctx context.Context, id string) (*model.Visit, error)
	SendReminder(ctx context.Context, id string) error
	GetVisit(ctx context.Context, id string) (*model.Visit, error)
	ListVisits(ctx context.Context, propertyID string, statuses []model.VisitStatus) ([]*model.Visit, error)
	FindExpired(ctx context.Context, now time.Time) ([]*model.Visit, error)
	FindReminderDue(ctx context.Context, from, to time.Time) ([]*model.Visit, error)
	FindCompletable(ctx context.Context, now time.Time) ([]*model.Visit, error)
}

type visitService struct {
	repo       repository.VisitRepository
	slots      slots.SlotService
	guard      *guard.Guard
	validator  *validation.Validator
	properties directory.PropertyDirectory
	users      directory.UserDirectory
	emitter    events.Emitter
	builder    *events.Builder
	notifier   notify.Notifier
	clock      clock.Clock
	cfg        *config.Config
}

func NewVisitService(
	repo repository.VisitRepository,
	slotService slots.SlotService,
	g *guard.Guard,
	validator *validation.Validator,
	properties directory.PropertyDirectory,
	users directory.UserDirectory,
	emitter events.Emitter,
	notifier notify.Notifier,
	clk clock.Clock,
	cfg *config.Config,
) VisitService {
	return &visitService{
		repo:       repo,
		slots:      slotService,
		guard:      g,
		validator:  validator,
		properties: properties,
		users:      users,
		emitter:    emitter,
		builder:    events.NewBuilder(clk),
		notifier:   notifier,
		clock:      clk,
		cfg:        cfg,
	}
}

// RequestVisit binds the visit to its slot and stores it PENDING. The
// schedule always comes from the slot, never from the caller.
func (s *visitService) RequestVisit(ctx context.Context, visit *model.Visit) (*model.Visit, error) {
	if visit.SlotID == "" {
		return nil, apperrors.Validation("Visit requires a slot", map[string]any{"SlotID": "SlotID is required"})
	}
	visit.Notes = sanitizer.TrimAndNormalize(visit.Notes)

	if _, err := directory.RequireOwnership(ctx, s.properties, visit.LandlordID, visit.PropertyID); err != nil {
		return nil, err
	}
	if _, err := directory.RequireUser(ctx, s.users, visit.VisitorID); err != nil {
		return nil, err
	}

	var ev model.LifecycleEvent
	err := s.guard.Execute(ctx, guard.SlotScope(visit.PropertyID), func(txCtx context.Context) error {
		slot, err := s.slots.GetSlot(txCtx, visit.SlotID)
		if err != nil {
			return err
		}
		if slot.PropertyID != visit.PropertyID {
			return apperrors.Validation("Slot belongs to another property", map[string]any{
				"slot_id":     slot.ID,
				"property_id": visit.PropertyID,
			})
		}

		now := s.clock.Now()
		visit.ScheduledAt = slot.StartTime
		visit.DurationMinutes = slot.DurationMinutes()
		visit.Status = model.VisitPending
		visit.FeedbackNotified = false
		visit.ReminderSent = false
		visit.PreviousScheduledAt = nil
		if err := s.validator.Struct(visit); err != nil {
			return validationError("Visit validation failed", err)
		}
		if !visit.ScheduledAt.After(now) {
			return apperrors.Validation("Visit must be scheduled in the future", map[string]any{"scheduled_at": visit.ScheduledAt})
		}

		if _, err := s.slots.Book(txCtx, slot.ID); err != nil {
			return err
		}

		visit.ID = uuid.NewString()
		visit.CreatedAt = now
		visit.UpdatedAt = now
		if err := s.repo.Create(txCtx, visit); err != nil {
			return apperrors.Internal("Failed to create visit", err)
		}

		ev = s.builder.Visit(txCtx, model.EventVisitRequested, visit, nil)
		return s.emitter.Stage(txCtx, ev)
	})
	if err != nil {
		s.cfg.Log.Warn("Failed to request visit", "property_id", visit.PropertyID, "slot_id", visit.SlotID, "error", err)
		return nil, err
	}

	s.cfg.Log.Info("Visit requested successfully",
		"id", visit.ID,
		"property_id", visit.PropertyID,
		"slot_id", visit.SlotID,
		"scheduled_at", visit.ScheduledAt,
	)
	deliverErr := s.emitter.Deliver(ctx, ev)
	s.notify(ctx, model.NotifyVisitRequested, visit.LandlordID, visit)
	return visit, deliverErr
}

// ApproveVisit re-checks ownership with the property directory before the
// status changes.
func (s *visitService) ApproveVisit(ctx context.Context, id string) (*model.Visit, error) {
	current, err := s.GetVisit(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := checkTransition(current.Status, model.VisitApproved); err != nil {
		return nil, err
	}
	if _, err := directory.RequireOwnership(ctx, s.properties, current.LandlordID, current.PropertyID); err != nil {
		return nil, err
	}
	return s.transition(ctx, id, model.VisitApproved, model.EventVisitApproved, "", nil)
}

func (s *visitService) RejectVisit(ctx context.Context, id, reason string) (*model.Visit, error) {
	return s.transition(ctx, id, model.VisitRejected, model.EventVisitRejected, reason, s.releaseSlot)
}

func (s *visitService) CancelVisit(ctx context.Context, id, reason string) (*model.Visit, error) {
	return s.transition(ctx, id, model.VisitCancelled, model.EventVisitCancelled, reason, s.releaseSlot)
}

// ExpireVisit cancels a pending or rescheduled visit whose time has passed
// without approval and frees its slot.
func (s *visitService) ExpireVisit(ctx context.Context, id string) (*model.Visit, error) {
	return s.transition(ctx, id, model.VisitCancelled, model.EventVisitExpired, ReasonExpired, func(txCtx context.Context, v *model.Visit) error {
		if v.Status != model.VisitPending && v.Status != model.VisitRescheduled {
			return apperrors.IllegalTransition("visit", string(v.Status), "EXPIRED")
		}
		if v.ScheduledAt.After(s.clock.Now()) {
			return apperrors.Conflict("Visit has not started yet")
		}
		return s.releaseSlot(txCtx, v)
	})
}

// RescheduleVisit moves the visit onto another unbooked slot of the same
// property. The new slot is booked before the old one is released.
func (s *visitService) RescheduleVisit(ctx context.Context, id, newSlotID string) (*model.Visit, error) {
	if newSlotID == "" {
		return nil, apperrors.InvalidInput("New slot ID cannot be empty")
	}
	current, err := s.GetVisit(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := checkTransition(current.Status, model.VisitRescheduled); err != nil {
		return nil, err
	}
	if current.SlotID == newSlotID {
		return nil, apperrors.Validation("Visit is already on this slot", map[string]any{"slot_id": newSlotID})
	}

	var ev model.LifecycleEvent
	var updated *model.Visit
	err = s.guard.Execute(ctx, guard.SlotScope(current.PropertyID), func(txCtx context.Context) error {
		visit, err := s.load(txCtx, id)
		if err != nil {
			return err
		}
		if err := checkTransition(visit.Status, model.VisitRescheduled); err != nil {
			return err
		}

		slot, err := s.slots.GetSlot(txCtx, newSlotID)
		if err != nil {
			return err
		}
		if slot.PropertyID != visit.PropertyID {
			return apperrors.Validation("Slot belongs to another property", map[string]any{"slot_id": slot.ID})
		}
		if !slot.StartTime.After(s.clock.Now()) {
			return apperrors.Validation("Visit must be scheduled in the future", map[string]any{"scheduled_at": slot.StartTime})
		}
		if _, err := s.slots.Book(txCtx, slot.ID); err != nil {
			return err
		}
		if err := s.slots.Release(txCtx, visit.SlotID); err != nil {
			return err
		}

		previous := map[string]any{
			"status":       visit.Status,
			"slot_id":      visit.SlotID,
			"scheduled_at": visit.ScheduledAt,
		}
		from := visit.Status
		prev := visit.ScheduledAt
		visit.PreviousScheduledAt = &prev
		visit.SlotID = slot.ID
		visit.ScheduledAt = slot.StartTime
		visit.DurationMinutes = slot.DurationMinutes()
		visit.Status = model.VisitRescheduled
		visit.ReminderSent = false
		visit.UpdatedAt = s.clock.Now()
		if err := s.replace(txCtx, visit, from); err != nil {
			return err
		}

		updated = visit
		ev = s.builder.Visit(txCtx, model.EventVisitRescheduled, visit, previous)
		return s.emitter.Stage(txCtx, ev)
	})
	if err != nil {
		s.cfg.Log.Warn("Failed to reschedule visit", "id", id, "slot_id", newSlotID, "error", err)
		return nil, err
	}

	s.cfg.Log.Info("Visit rescheduled", "id", id, "slot_id", newSlotID, "scheduled_at", updated.ScheduledAt)
	deliverErr := s.emitter.Deliver(ctx, ev)
	s.notify(ctx, model.NotifyVisitRescheduled, updated.LandlordID, updated)
	return updated, deliverErr
}

// CompleteVisit is safe to call repeatedly. The slot is released with the
// transition. The feedback request goes out at most once: the flag is claimed
// before sending and stays set if sending fails.
func (s *visitService) CompleteVisit(ctx context.Context, id string) (*model.Visit, error) {
	current, err := s.GetVisit(ctx, id)
	if err != nil {
		return nil, err
	}

	var deliverErr error
	if current.Status != model.VisitCompleted {
		completed, err := s.transition(ctx, id, model.VisitCompleted, model.EventVisitCompleted, "", s.releaseSlot)
		if completed == nil {
			// A concurrent caller may have completed it first.
			reloaded, loadErr := s.GetVisit(ctx, id)
			if loadErr != nil || reloaded.Status != model.VisitCompleted {
				return nil, err
			}
			completed, err = reloaded, nil
		}
		current, deliverErr = completed, err
	}

	if current.FeedbackNotified {
		return current, deliverErr
	}
	if err := s.repo.Claim(ctx, id, repository.FlagFeedbackNotified, s.clock.Now()); err != nil {
		if errors.Is(err, visitserrors.ErrAlreadyClaimed) {
			current.FeedbackNotified = true
			return current, deliverErr
		}
		return nil, apperrors.Internal("Failed to record visit feedback request", err)
	}
	current.FeedbackNotified = true
	s.notify(ctx, model.NotifyVisitFeedback, current.VisitorID, current)
	return current, deliverErr
}

// SendReminder notifies the visitor of an approved visit at most once.
func (s *visitService) SendReminder(ctx context.Context, id string) error {
	visit, err := s.GetVisit(ctx, id)
	if err != nil {
		return err
	}
	if visit.ReminderSent || visit.Status != model.VisitApproved {
		return nil
	}
	if err := s.repo.Claim(ctx, id, repository.FlagReminderSent, s.clock.Now()); err != nil {
		if errors.Is(err, visitserrors.ErrAlreadyClaimed) {
			return nil
		}
		return apperrors.Internal("Failed to record visit reminder", err)
	}
	s.notify(ctx, model.NotifyVisitReminder, visit.VisitorID, visit)
	return nil
}

func (s *visitService) GetVisit(ctx context.Context, id string) (*model.Visit, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Visit ID cannot be empty")
	}
	return s.load(ctx, id)
}

func (s *visitService) ListVisits(ctx context.Context, propertyID string, statuses []model.VisitStatus) ([]*model.Visit, error) {
	if propertyID == "" {
		return nil, apperrors.InvalidInput("Property ID cannot be empty")
	}
	for _, st := range statuses {
		if !st.Valid() {
			return nil, apperrors.Validation("Unknown visit status", map[string]any{"status": st})
		}
	}
	visits, err := s.repo.FindByProperty(ctx, propertyID, statuses)
	if err != nil {
		s.cfg.Log.Error("Failed to list visits", "property_id", propertyID, "error", err)
		return nil, apperrors.Internal("Failed to retrieve visits", err)
	}
	return visits, nil
}

func (s *visitService) FindExpired(ctx context.Context, now time.Time) ([]*model.Visit, error) {
	visits, err := s.repo.FindScheduledBefore(ctx, []model.VisitStatus{model.VisitPending, model.VisitRescheduled}, now)
	if err != nil {
		return nil, apperrors.Internal("Failed to find expired visits", err)
	}
	return visits, nil
}

func (s *visitService) FindReminderDue(ctx context.Context, from, to time.Time) ([]*model.Visit, error) {
	visits, err := s.repo.FindReminderDue(ctx, model.VisitApproved, from, to)
	if err != nil {
		return nil, apperrors.Internal("Failed to find visits due a reminder", err)
	}
	return visits, nil
}

// FindCompletable returns approved visits that have already ended.
func (s *visitService) FindCompletable(ctx context.Context, now time.Time) ([]*model.Visit, error) {
	visits, err := s.repo.FindScheduledBefore(ctx, []model.VisitStatus{model.VisitApproved}, now)
	if err != nil {
		return nil, apperrors.Internal("Failed to find completable visits", err)
	}
	ended := visits[:0]
	for _, v := range visits {
		if !v.EndsAt().After(now) {
			ended = append(ended, v)
		}
	}
	return ended, nil
}

// --- Helpers ---

// transition runs a single-visit status change. effect, when set, runs inside
// the unit of work after the table lookup and before the write.
func (s *visitService) transition(
	ctx context.Context,
	id string,
	to model.VisitStatus,
	eventType model.EventType,
	reason string,
	effect func(context.Context, *model.Visit) error,
) (*model.Visit, error) {
	current, err := s.GetVisit(ctx, id)
	if err != nil {
		return nil, err
	}

	var ev model.LifecycleEvent
	var updated *model.Visit
	err = s.guard.Execute(ctx, guard.SlotScope(current.PropertyID), func(txCtx context.Context) error {
		visit, err := s.load(txCtx, id)
		if err != nil {
			return err
		}
		if err := checkTransition(visit.Status, to); err != nil {
			return err
		}
		if effect != nil {
			if err := effect(txCtx, visit); err != nil {
				return err
			}
		}

		from := visit.Status
		visit.Status = to
		if reason != "" {
			visit.Reason = reason
		}
		visit.UpdatedAt = s.clock.Now()
		if err := s.replace(txCtx, visit, from); err != nil {
			return err
		}

		updated = visit
		ev = s.builder.Visit(txCtx, eventType, visit, map[string]any{"status": from})
		return s.emitter.Stage(txCtx, ev)
	})
	if err != nil {
		s.cfg.Log.Warn("Visit transition failed", "id", id, "to", to, "error", err)
		return nil, err
	}

	s.cfg.Log.Info("Visit transitioned", "id", id, "status", to, "event", eventType)
	deliverErr := s.emitter.Deliver(ctx, ev)
	switch eventType {
	case model.EventVisitApproved:
		s.notify(ctx, model.NotifyVisitApproved, updated.VisitorID, updated)
	case model.EventVisitRejected:
		s.notify(ctx, model.NotifyVisitRejected, updated.VisitorID, updated)
	case model.EventVisitCancelled:
		s.notify(ctx, model.NotifyVisitCancelled, updated.LandlordID, updated)
	case model.EventVisitExpired:
		s.notify(ctx, model.NotifyVisitCancelled, updated.VisitorID, updated)
	}
	return updated, deliverErr
}

func (s *visitService) releaseSlot(txCtx context.Context, v *model.Visit) error {
	return s.slots.Release(txCtx, v.SlotID)
}

func (s *visitService) load(ctx context.Context, id string) (*model.Visit, error) {
	visit, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, visitserrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Visit", id)
		}
		return nil, apperrors.Internal("Failed to retrieve visit", err)
	}
	return visit, nil
}

func (s *visitService) replace(ctx context.Context, visit *model.Visit, expected model.VisitStatus) error {
	if err := s.repo.Replace(ctx, visit, expected); err != nil {
		switch {
		case errors.Is(err, visitserrors.ErrNotFound):
			return apperrors.NotFoundWithID("Visit", visit.ID)
		case errors.Is(err, visitserrors.ErrStatusChanged):
			return apperrors.Conflict("Visit was modified by another request").WithDetails(map[string]any{"visit_id": visit.ID})
		default:
			return apperrors.Internal("Failed to update visit", err)
		}
	}
	return nil
}

func (s *visitService) notify(ctx context.Context, kind model.NotificationKind, recipient string, v *model.Visit) {
	notify.Dispatch(ctx, s.notifier, s.cfg.Log, s.cfg.NotifyTimeout, model.Notification{
		Kind:        kind,
		RecipientID: recipient,
		EntityID:    v.ID,
		Data: map[string]any{
			"property_id":      v.PropertyID,
			"scheduled_at":     v.ScheduledAt,
			"duration_minutes": v.DurationMinutes,
			"status":           v.Status,
		},
	})
}

func checkTransition(from, to model.VisitStatus) error {
	if !model.CanTransitionVisit(from, to) {
		return apperrors.IllegalTransition("visit", string(from), string(to))
	}
	return nil
}

func validationError(msg string, err error) error {
	var verrs validation.ValidationErrors
	if errors.As(err, &verrs) {
		return apperrors.Validation(msg, verrs.Details())
	}
	return apperrors.Validation(msg, map[string]any{"error": err.Error()})
}
