package service

import (
	"context"
	"errors"
	"fmt"
	availability "propbook/internal/availability/service"
	bookingserrors "propbook/internal/bookings/errors"
	"propbook/internal/bookings/repository"
	"propbook/internal/bookings/validator"
	"propbook/internal/directory"
	"propbook/internal/events"
	"propbook/internal/guard"
	"propbook/internal/notify"
	"propbook/pkg/clock"
	"propbook/pkg/config"
	apperrors "propbook/pkg/errors"
	"propbook/pkg/locale"
	"propbook/pkg/model"
	"propbook/pkg/sanitizer"
	"propbook/pkg/validation"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	ReasonExpired    = "expired"
	ReasonSuperseded = "superseded by accepted booking"
)

type BookingService interface {
	CreateBooking(ctx context.Context, booking *model.ShortletBooking) (*model.ShortletBooking, error)
	AcceptBooking(ctx context.Context, id string) (*model.ShortletBooking, error)
	RejectBooking(ctx context.Context, id, reason string) (*model.ShortletBooking, error)
	CancelBooking(ctx context.Context, id, reason string) (*model.ShortletBooking, error)
	RescheduleBooking(ctx context.Context, id string, newStart, newEnd time.Time) (*model.ShortletBooking, error)
	ExpireBooking(ctx context.Context, id string) (*model.ShortletBooking, error)
	SendReminder(ctx context.Context, id string) error
	GetBooking(ctx context.Context, id string) (*model.ShortletBooking, error)
	ListBookings(ctx context.Context, propertyID string, statuses []model.BookingStatus) ([]*model.ShortletBooking, error)
	FindExpired(ctx context.Context, now time.Time) ([]*model.ShortletBooking, error)
	FindReminderDue(ctx context.Context, from, to time.Time) ([]*model.ShortletBooking, error)
}

type bookingService struct {
	repo         repository.BookingRepository
	availability availability.AvailabilityService
	guard        *guard.Guard
	validator    *validator.BookingValidator
	properties   directory.PropertyDirectory
	users        directory.UserDirectory
	emitter      events.Emitter
	builder      *events.Builder
	notifier     notify.Notifier
	clock        clock.Clock
	cfg          *config.Config
}

func NewBookingService(
	repo repository.BookingRepository,
	availabilityService availability.AvailabilityService,
	g *guard.Guard,
	validator *validator.BookingValidator,
	properties directory.PropertyDirectory,
	users directory.UserDirectory,
	emitter events.Emitter,
	notifier notify.Notifier,
	clk clock.Clock,
	cfg *config.Config,
) BookingService {
	return &bookingService{
		repo:         repo,
		availability: availabilityService,
		guard:        g,
		validator:    validator,
		properties:   properties,
		users:        users,
		emitter:      emitter,
		builder:      events.NewBuilder(clk),
		notifier:     notifier,
		clock:        clk,
		cfg:          cfg,
	}
}

// CreateBooking stores a PENDING booking. Replaying an identical pending
// request returns the stored booking without a second event.
func (s *bookingService) CreateBooking(ctx context.Context, booking *model.ShortletBooking) (*model.ShortletBooking, error) {
	s.applyDefaults(booking)
	s.sanitize(booking)
	now := s.clock.Now()
	if err := s.validator.Validate(booking, now); err != nil {
		s.cfg.Log.Warn("Booking validation failed", "error", err)
		return nil, validationError("Booking validation failed", err)
	}

	if _, err := directory.RequireOwnership(ctx, s.properties, booking.LandlordID, booking.PropertyID); err != nil {
		return nil, err
	}
	if _, err := directory.RequireUser(ctx, s.users, booking.TenantID); err != nil {
		return nil, err
	}

	var (
		replay  *model.ShortletBooking
		created model.LifecycleEvent
	)
	err := s.guard.Execute(ctx, guard.PropertyScope(booking.LandlordID, booking.PropertyID), func(txCtx context.Context) error {
		existing, err := s.repo.FindPendingDuplicate(txCtx, booking.TenantID, booking.PropertyID, booking.StartDate, booking.EndDate)
		if err == nil {
			replay = existing
			return nil
		}
		if !errors.Is(err, bookingserrors.ErrNotFound) {
			return apperrors.Internal("Failed to check for duplicate booking", err)
		}

		available, err := s.availability.IsAvailable(txCtx, booking.LandlordID, booking.PropertyID, booking.StartDate, booking.EndDate)
		if err != nil {
			return err
		}
		if !available {
			return apperrors.Conflict("Requested dates are not available").WithDetails(dateDetails(booking.StartDate, booking.EndDate))
		}
		if err := s.ensureNoAcceptedOverlap(txCtx, booking); err != nil {
			return err
		}

		booking.ID = uuid.NewString()
		booking.CreatedAt = now
		booking.UpdatedAt = now
		if err := s.repo.Create(txCtx, booking); err != nil {
			return apperrors.Internal("Failed to create booking", err)
		}

		created = s.builder.Booking(txCtx, model.EventBookingCreated, booking, nil)
		return s.emitter.Stage(txCtx, created)
	})
	if err != nil {
		s.cfg.Log.Warn("Failed to create booking", "property_id", booking.PropertyID, "error", err)
		return nil, err
	}

	if replay != nil {
		s.cfg.Log.Info("Returning existing pending booking", "id", replay.ID, "tenant_id", replay.TenantID)
		return replay, nil
	}

	s.cfg.Log.Info("Booking created successfully",
		"id", booking.ID,
		"property_id", booking.PropertyID,
		"start_date", booking.StartDate.Format(model.DateLayout),
		"end_date", booking.EndDate.Format(model.DateLayout),
	)
	deliverErr := s.emitter.Deliver(ctx, created)
	s.notify(ctx, model.NotifyBookingCreated, booking.LandlordID, booking)
	return booking, deliverErr
}

// AcceptBooking consumes availability for the booking and, in the same unit
// of work, rejects every pending booking whose dates collide with it.
func (s *bookingService) AcceptBooking(ctx context.Context, id string) (*model.ShortletBooking, error) {
	current, err := s.GetBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := checkTransition(current.Status, model.BookingAccepted); err != nil {
		return nil, err
	}
	if err := s.ensureNotStarted(current); err != nil {
		return nil, err
	}

	var (
		accepted *model.ShortletBooking
		losers   []*model.ShortletBooking
		evs      []model.LifecycleEvent
	)
	err = s.guard.Execute(ctx, guard.PropertyScope(current.LandlordID, current.PropertyID), func(txCtx context.Context) error {
		// The unit of work may run more than once; keep only the last attempt.
		accepted, losers, evs = nil, nil, nil

		booking, err := s.load(txCtx, id)
		if err != nil {
			return err
		}
		if err := checkTransition(booking.Status, model.BookingAccepted); err != nil {
			return err
		}
		if err := s.ensureNoAcceptedOverlap(txCtx, booking); err != nil {
			return err
		}
		if _, err := s.availability.Consume(txCtx, booking.LandlordID, booking.PropertyID, booking.StartDate, booking.EndDate); err != nil {
			return err
		}

		previous := booking.Status
		booking.Status = model.BookingAccepted
		booking.UpdatedAt = s.clock.Now()
		if err := s.replace(txCtx, booking, previous); err != nil {
			return err
		}

		pending, err := s.repo.FindOverlapping(txCtx, booking.PropertyID, []model.BookingStatus{model.BookingPending}, booking.StartDate, booking.EndDate)
		if err != nil {
			return apperrors.Internal("Failed to load competing bookings", err)
		}
		for _, other := range pending {
			if other.ID == booking.ID || !s.policy().Overlaps(other.StartDate, other.EndDate, booking.StartDate, booking.EndDate) {
				continue
			}
			other.Status = model.BookingRejected
			other.Reason = fmt.Sprintf("%s %s", ReasonSuperseded, booking.ID)
			other.UpdatedAt = booking.UpdatedAt
			if err := s.replace(txCtx, other, model.BookingPending); err != nil {
				return err
			}
			losers = append(losers, other)
			evs = append(evs, s.builder.Booking(txCtx, model.EventBookingRejected, other, statusPrevious(model.BookingPending)))
		}

		evs = append(evs, s.builder.Booking(txCtx, model.EventBookingAccepted, booking, statusPrevious(previous)))
		accepted = booking
		return s.emitter.Stage(txCtx, evs...)
	})
	if err != nil {
		s.cfg.Log.Warn("Failed to accept booking", "id", id, "error", err)
		return nil, err
	}

	s.cfg.Log.Info("Booking accepted", "id", id, "property_id", accepted.PropertyID, "rejected_competitors", len(losers))
	deliverErr := s.emitter.Deliver(ctx, evs...)
	s.notify(ctx, model.NotifyBookingAccepted, accepted.TenantID, accepted)
	for _, loser := range losers {
		s.notify(ctx, model.NotifyBookingRejected, loser.TenantID, loser)
	}
	return accepted, deliverErr
}

func (s *bookingService) RejectBooking(ctx context.Context, id, reason string) (*model.ShortletBooking, error) {
	return s.transition(ctx, id, model.BookingRejected, model.EventBookingRejected, reason, nil)
}

// CancelBooking does not give consumed dates back to availability.
func (s *bookingService) CancelBooking(ctx context.Context, id, reason string) (*model.ShortletBooking, error) {
	return s.transition(ctx, id, model.BookingCancelled, model.EventBookingCancelled, reason, s.ensureNotStarted)
}

// ExpireBooking cancels a pending or rescheduled booking whose start date has
// passed without a decision.
func (s *bookingService) ExpireBooking(ctx context.Context, id string) (*model.ShortletBooking, error) {
	return s.transition(ctx, id, model.BookingCancelled, model.EventBookingExpired, ReasonExpired, func(b *model.ShortletBooking) error {
		if b.Status != model.BookingPending && b.Status != model.BookingRescheduled {
			return apperrors.IllegalTransition("booking", string(b.Status), "EXPIRED")
		}
		if !model.DateOf(b.StartDate).Before(model.DateOf(s.clock.Now())) {
			return apperrors.Conflict("Booking has not started yet")
		}
		return nil
	})
}

// RescheduleBooking moves the booking to new dates inside one availability
// range. Other bookings are not consulted; acceptance settles conflicts.
func (s *bookingService) RescheduleBooking(ctx context.Context, id string, newStart, newEnd time.Time) (*model.ShortletBooking, error) {
	newStart, newEnd = model.DateOf(newStart), model.DateOf(newEnd)
	if err := s.validator.ValidateDates(newStart, newEnd, s.clock.Now()); err != nil {
		return nil, validationError("Invalid reschedule dates", err)
	}

	current, err := s.GetBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := checkTransition(current.Status, model.BookingRescheduled); err != nil {
		return nil, err
	}

	var ev model.LifecycleEvent
	var updated *model.ShortletBooking
	err = s.guard.Execute(ctx, guard.PropertyScope(current.LandlordID, current.PropertyID), func(txCtx context.Context) error {
		booking, err := s.load(txCtx, id)
		if err != nil {
			return err
		}
		if err := checkTransition(booking.Status, model.BookingRescheduled); err != nil {
			return err
		}

		available, err := s.availability.IsAvailable(txCtx, booking.LandlordID, booking.PropertyID, newStart, newEnd)
		if err != nil {
			return err
		}
		if !available {
			return apperrors.Conflict("Requested dates are not available").WithDetails(dateDetails(newStart, newEnd))
		}

		previous := map[string]any{
			"status":     booking.Status,
			"start_date": booking.StartDate.Format(model.DateLayout),
			"end_date":   booking.EndDate.Format(model.DateLayout),
			"amount":     booking.Payment.Amount,
		}
		from := booking.Status
		prevStart, prevEnd := booking.StartDate, booking.EndDate
		booking.PreviousStartDate = &prevStart
		booking.PreviousEndDate = &prevEnd
		booking.StartDate = newStart
		booking.EndDate = newEnd
		booking.Status = model.BookingRescheduled
		booking.ReminderSent = false
		booking.UpdatedAt = s.clock.Now()
		if err := s.replace(txCtx, booking, from); err != nil {
			return err
		}

		updated = booking
		ev = s.builder.Booking(txCtx, model.EventBookingRescheduled, booking, previous)
		return s.emitter.Stage(txCtx, ev)
	})
	if err != nil {
		s.cfg.Log.Warn("Failed to reschedule booking", "id", id, "error", err)
		return nil, err
	}

	s.cfg.Log.Info("Booking rescheduled",
		"id", id,
		"start_date", newStart.Format(model.DateLayout),
		"end_date", newEnd.Format(model.DateLayout),
	)
	deliverErr := s.emitter.Deliver(ctx, ev)
	s.notify(ctx, model.NotifyBookingRescheduled, updated.TenantID, updated)
	return updated, deliverErr
}

// SendReminder notifies the tenant of an upcoming stay at most once. The
// reminder flag is set even when the notification fails.
func (s *bookingService) SendReminder(ctx context.Context, id string) error {
	booking, err := s.GetBooking(ctx, id)
	if err != nil {
		return err
	}
	if booking.ReminderSent || booking.Status != model.BookingAccepted {
		return nil
	}

	s.notify(ctx, model.NotifyBookingReminder, booking.TenantID, booking)
	if err := s.repo.MarkReminderSent(ctx, id, s.clock.Now()); err != nil {
		return apperrors.Internal("Failed to record booking reminder", err)
	}
	return nil
}

func (s *bookingService) GetBooking(ctx context.Context, id string) (*model.ShortletBooking, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Booking ID cannot be empty")
	}
	return s.load(ctx, id)
}

func (s *bookingService) ListBookings(ctx context.Context, propertyID string, statuses []model.BookingStatus) ([]*model.ShortletBooking, error) {
	if propertyID == "" {
		return nil, apperrors.InvalidInput("Property ID cannot be empty")
	}
	for _, st := range statuses {
		if !st.Valid() {
			return nil, apperrors.Validation("Unknown booking status", map[string]any{"status": st})
		}
	}
	bookings, err := s.repo.FindByProperty(ctx, propertyID, statuses)
	if err != nil {
		s.cfg.Log.Error("Failed to list bookings", "property_id", propertyID, "error", err)
		return nil, apperrors.Internal("Failed to retrieve bookings", err)
	}
	return bookings, nil
}

func (s *bookingService) FindExpired(ctx context.Context, now time.Time) ([]*model.ShortletBooking, error) {
	bookings, err := s.repo.FindStartingBefore(ctx, []model.BookingStatus{model.BookingPending, model.BookingRescheduled}, model.DateOf(now))
	if err != nil {
		return nil, apperrors.Internal("Failed to find expired bookings", err)
	}
	return bookings, nil
}

func (s *bookingService) FindReminderDue(ctx context.Context, from, to time.Time) ([]*model.ShortletBooking, error) {
	bookings, err := s.repo.FindReminderDue(ctx, model.BookingAccepted, model.DateOf(from), model.DateOf(to))
	if err != nil {
		return nil, apperrors.Internal("Failed to find bookings due a reminder", err)
	}
	return bookings, nil
}

// --- Helpers ---

// transition runs a single-booking status change with no availability side
// effects. check, when set, vets the booking after the table lookup.
func (s *bookingService) transition(
	ctx context.Context,
	id string,
	to model.BookingStatus,
	eventType model.EventType,
	reason string,
	check func(*model.ShortletBooking) error,
) (*model.ShortletBooking, error) {
	current, err := s.GetBooking(ctx, id)
	if err != nil {
		return nil, err
	}

	var ev model.LifecycleEvent
	var updated *model.ShortletBooking
	err = s.guard.Execute(ctx, guard.PropertyScope(current.LandlordID, current.PropertyID), func(txCtx context.Context) error {
		booking, err := s.load(txCtx, id)
		if err != nil {
			return err
		}
		if err := checkTransition(booking.Status, to); err != nil {
			return err
		}
		if check != nil {
			if err := check(booking); err != nil {
				return err
			}
		}

		from := booking.Status
		booking.Status = to
		booking.Reason = reason
		booking.UpdatedAt = s.clock.Now()
		if err := s.replace(txCtx, booking, from); err != nil {
			return err
		}

		updated = booking
		ev = s.builder.Booking(txCtx, eventType, booking, statusPrevious(from))
		return s.emitter.Stage(txCtx, ev)
	})
	if err != nil {
		s.cfg.Log.Warn("Booking transition failed", "id", id, "to", to, "error", err)
		return nil, err
	}

	s.cfg.Log.Info("Booking transitioned", "id", id, "status", to, "event", eventType)
	deliverErr := s.emitter.Deliver(ctx, ev)
	switch to {
	case model.BookingRejected:
		s.notify(ctx, model.NotifyBookingRejected, updated.TenantID, updated)
	case model.BookingCancelled:
		s.notify(ctx, model.NotifyBookingCancelled, updated.LandlordID, updated)
	}
	return updated, deliverErr
}

func (s *bookingService) load(ctx context.Context, id string) (*model.ShortletBooking, error) {
	booking, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, bookingserrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Booking", id)
		}
		return nil, apperrors.Internal("Failed to retrieve booking", err)
	}
	return booking, nil
}

func (s *bookingService) replace(ctx context.Context, booking *model.ShortletBooking, expected model.BookingStatus) error {
	if err := s.repo.Replace(ctx, booking, expected); err != nil {
		switch {
		case errors.Is(err, bookingserrors.ErrNotFound):
			return apperrors.NotFoundWithID("Booking", booking.ID)
		case errors.Is(err, bookingserrors.ErrStatusChanged):
			return apperrors.Conflict("Booking was modified by another request").WithDetails(map[string]any{"booking_id": booking.ID})
		default:
			return apperrors.Internal("Failed to update booking", err)
		}
	}
	return nil
}

func (s *bookingService) ensureNoAcceptedOverlap(ctx context.Context, booking *model.ShortletBooking) error {
	accepted, err := s.repo.FindOverlapping(ctx, booking.PropertyID, []model.BookingStatus{model.BookingAccepted}, booking.StartDate, booking.EndDate)
	if err != nil {
		return apperrors.Internal("Failed to check existing bookings", err)
	}
	for _, b := range accepted {
		if b.ID == booking.ID {
			continue
		}
		if s.policy().Overlaps(b.StartDate, b.EndDate, booking.StartDate, booking.EndDate) {
			return apperrors.Conflict(fmt.Sprintf(
				"Dates overlap with accepted booking (%s - %s)",
				b.StartDate.Format(model.DateLayout),
				b.EndDate.Format(model.DateLayout),
			)).WithDetails(map[string]any{"booking_id": b.ID})
		}
	}
	return nil
}

func (s *bookingService) ensureNotStarted(b *model.ShortletBooking) error {
	if model.DateOf(b.StartDate).Before(model.DateOf(s.clock.Now())) {
		return apperrors.Validation("Booking start date has already passed", map[string]any{
			"start_date": b.StartDate.Format(model.DateLayout),
		})
	}
	return nil
}

func (s *bookingService) policy() model.OverlapPolicy {
	if s.cfg.BookingOverlap == "" {
		return model.OverlapSameDayTurnover
	}
	return s.cfg.BookingOverlap
}

func (s *bookingService) notify(ctx context.Context, kind model.NotificationKind, recipient string, b *model.ShortletBooking) {
	notify.Dispatch(ctx, s.notifier, s.cfg.Log, s.cfg.NotifyTimeout, model.Notification{
		Kind:        kind,
		RecipientID: recipient,
		EntityID:    b.ID,
		Data: map[string]any{
			"property_id": b.PropertyID,
			"start_date":  b.StartDate.Format(model.DateLayout),
			"end_date":    b.EndDate.Format(model.DateLayout),
			"status":      b.Status,
			"timezone":    locale.InferTimezoneFromPhone(b.Contact.Phone),
		},
	})
}

func (s *bookingService) applyDefaults(b *model.ShortletBooking) {
	b.Status = model.BookingPending
	if b.Payment.Status == "" {
		b.Payment.Status = model.PaymentUnpaid
	}
	if b.GuestCount == 0 {
		b.GuestCount = 1
	}
	b.StartDate = model.DateOf(b.StartDate)
	b.EndDate = model.DateOf(b.EndDate)
	b.ReminderSent = false
	b.PreviousStartDate = nil
	b.PreviousEndDate = nil
}

func (s *bookingService) sanitize(b *model.ShortletBooking) {
	b.Contact = sanitizer.Contact(b.Contact)
	b.Payment.Currency = strings.ToUpper(strings.TrimSpace(b.Payment.Currency))
}

func checkTransition(from, to model.BookingStatus) error {
	if !model.CanTransitionBooking(from, to) {
		return apperrors.IllegalTransition("booking", string(from), string(to))
	}
	return nil
}

func statusPrevious(from model.BookingStatus) map[string]any {
	return map[string]any{"status": from}
}

func dateDetails(start, end time.Time) map[string]any {
	return map[string]any{
		"start_date": start.Format(model.DateLayout),
		"end_date":   end.Format(model.DateLayout),
	}
}

func validationError(msg string, err error) error {
	var verrs validation.ValidationErrors
	if errors.As(err, &verrs) {
		return apperrors.Validation(msg, verrs.Details())
	}
	return apperrors.Validation(msg, map[string]any{"error": err.Error()})
}
