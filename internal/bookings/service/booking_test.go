package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	availabilityrepo "propbook/internal/availability/repository"
	availability "propbook/internal/availability/service"
	"propbook/internal/bookings/repository"
	"propbook/internal/bookings/validator"
	"propbook/internal/directory"
	"propbook/internal/events"
	"propbook/internal/guard"
	"propbook/internal/notify"
	"propbook/pkg/clock"
	"propbook/pkg/config"
	"propbook/pkg/db/local"
	dbmongo "propbook/pkg/db/mongo"
	apperrors "propbook/pkg/errors"
	"propbook/pkg/logger"
	"propbook/pkg/model"
	"propbook/pkg/validation"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2025, 9, 20, 10, 0, 0, 0, time.UTC)

type fixture struct {
	svc       BookingService
	repo      *repository.MemoryBookingRepository
	avail     availability.AvailabilityService
	outbox    *events.MemoryOutboxRepository
	publisher *events.MemoryPublisher
	notifier  *notify.MemoryNotifier
	dir       *directory.MemoryDirectory
}

func newFixture(t *testing.T, mutate func(cfg *config.Config)) *fixture {
	t.Helper()
	return newFixtureWithTx(t, local.NewTransactionManager(), mutate)
}

func newFixtureWithTx(t *testing.T, tx dbmongo.TransactionManager, mutate func(cfg *config.Config)) *fixture {
	t.Helper()
	cfg := &config.Config{Log: logger.Discard(), EventsDelivery: config.DeliveryOutbox}
	if mutate != nil {
		mutate(cfg)
	}
	clk := clock.NewFixed(now)
	g := guard.New(guard.NewMemoryLocker(), tx, cfg.Log)

	f := &fixture{
		repo:      repository.NewMemoryBookingRepository(),
		outbox:    events.NewMemoryOutboxRepository(),
		publisher: events.NewMemoryPublisher(),
		notifier:  notify.NewMemoryNotifier(),
		dir:       directory.NewMemoryDirectory(),
	}
	f.avail = availability.NewAvailabilityService(availabilityrepo.NewMemoryAvailabilityRepository(), g, validation.New(), clk, cfg)
	emitter := events.NewEmitter(cfg, f.outbox, f.publisher, clk)
	f.svc = NewBookingService(f.repo, f.avail, g, validator.NewBookingValidator(cfg.Log), f.dir, f.dir, emitter, f.notifier, clk, cfg)

	f.dir.AddProperty(model.Property{ID: "property-1", LandlordID: "landlord-1", Active: true})
	for i := range 20 {
		f.dir.AddUser(model.User{ID: fmt.Sprintf("tenant-%d", i)})
	}
	require.NoError(t, f.avail.SetAvailability(context.Background(), &model.ShortletAvailability{
		LandlordID: "landlord-1",
		PropertyID: "property-1",
		StartDate:  model.MustDate("2025-10-01"),
		EndDate:    model.MustDate("2025-10-30"),
	}))
	return f
}

func request(tenant, start, end string) *model.ShortletBooking {
	return &model.ShortletBooking{
		TenantID:   tenant,
		LandlordID: "landlord-1",
		PropertyID: "property-1",
		StartDate:  model.MustDate(start),
		EndDate:    model.MustDate(end),
		GuestCount: 2,
		Contact:    model.Contact{Name: "Guest", Email: tenant + "@example.com"},
	}
}

func (f *fixture) create(t *testing.T, tenant, start, end string) *model.ShortletBooking {
	t.Helper()
	b, err := f.svc.CreateBooking(context.Background(), request(tenant, start, end))
	require.NoError(t, err)
	return b
}

func (f *fixture) status(t *testing.T, id string) model.BookingStatus {
	t.Helper()
	b, err := f.svc.GetBooking(context.Background(), id)
	require.NoError(t, err)
	return b.Status
}

func (f *fixture) stagedTypes() [][]string {
	var out [][]string
	for _, b := range f.outbox.All() {
		var types []string
		for _, m := range b.Messages {
			types = append(types, m.EventType)
		}
		out = append(out, types)
	}
	return out
}

func (f *fixture) ranges(t *testing.T) []string {
	t.Helper()
	rs, err := f.avail.ListAvailability(context.Background(), "landlord-1", "property-1")
	require.NoError(t, err)
	var out []string
	for _, r := range rs {
		out = append(out, r.StartDate.Format(model.DateLayout)+".."+r.EndDate.Format(model.DateLayout))
	}
	return out
}

func TestCreateBooking(t *testing.T) {
	f := newFixture(t, nil)

	b := f.create(t, "tenant-1", "2025-10-10", "2025-10-12")
	assert.NotEmpty(t, b.ID)
	assert.Equal(t, model.BookingPending, b.Status)
	assert.Equal(t, model.PaymentUnpaid, b.Payment.Status)
	assert.Equal(t, [][]string{{"booking.created"}}, f.stagedTypes())
	assert.Equal(t, 1, f.notifier.Count(model.NotifyBookingCreated))
}

func TestCreateBooking_ReplayReturnsExisting(t *testing.T) {
	f := newFixture(t, nil)

	first := f.create(t, "tenant-1", "2025-10-10", "2025-10-12")
	second := f.create(t, "tenant-1", "2025-10-10", "2025-10-12")

	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, f.stagedTypes(), 1, "replay emits nothing")

	all, err := f.svc.ListBookings(context.Background(), "property-1", nil)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestCreateBooking_ConcurrentReplaysCollapse(t *testing.T) {
	f := newFixture(t, nil)

	ids := make([]string, 10)
	var wg sync.WaitGroup
	for i := range ids {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b, err := f.svc.CreateBooking(context.Background(), request("tenant-1", "2025-10-10", "2025-10-12"))
			if assert.NoError(t, err) {
				ids[i] = b.ID
			}
		}()
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
	all, _ := f.svc.ListBookings(context.Background(), "property-1", nil)
	assert.Len(t, all, 1)
}

func TestCreateBooking_Rejections(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.svc.CreateBooking(ctx, request("tenant-1", "2025-11-01", "2025-11-05"))
	assert.True(t, apperrors.IsConflict(err), "outside availability")

	_, err = f.svc.CreateBooking(ctx, request("tenant-1", "2025-09-19", "2025-10-05"))
	assert.True(t, apperrors.IsValidation(err), "start in the past")

	_, err = f.svc.CreateBooking(ctx, request("tenant-1", "2025-10-12", "2025-10-10"))
	assert.True(t, apperrors.IsValidation(err), "inverted dates")

	_, err = f.svc.CreateBooking(ctx, request("ghost", "2025-10-10", "2025-10-12"))
	assert.True(t, apperrors.IsValidation(err), "unknown tenant")

	foreign := request("tenant-1", "2025-10-10", "2025-10-12")
	foreign.LandlordID = "landlord-2"
	_, err = f.svc.CreateBooking(ctx, foreign)
	assert.True(t, apperrors.IsValidation(err), "landlord does not own property")

	f.dir.SetErr(errors.New("connection refused"))
	_, err = f.svc.CreateBooking(ctx, request("tenant-1", "2025-10-10", "2025-10-12"))
	assert.True(t, apperrors.HasCode(err, apperrors.CodeExternalDependency))

	all, _ := f.svc.ListBookings(ctx, "property-1", nil)
	assert.Empty(t, all)
	assert.Empty(t, f.stagedTypes())
}

func seedAccepted(t *testing.T, f *fixture, start, end string) {
	t.Helper()
	require.NoError(t, f.repo.Create(context.Background(), &model.ShortletBooking{
		ID:         "accepted-1",
		TenantID:   "tenant-9",
		LandlordID: "landlord-1",
		PropertyID: "property-1",
		StartDate:  model.MustDate(start),
		EndDate:    model.MustDate(end),
		Status:     model.BookingAccepted,
	}))
}

func TestCreateBooking_SameDayTurnoverPolicy(t *testing.T) {
	f := newFixture(t, nil)
	seedAccepted(t, f, "2025-10-10", "2025-10-20")

	_, err := f.svc.CreateBooking(context.Background(), request("tenant-1", "2025-10-20", "2025-10-25"))
	assert.NoError(t, err, "checkout day may be the next check-in day")

	_, err = f.svc.CreateBooking(context.Background(), request("tenant-2", "2025-10-19", "2025-10-25"))
	assert.True(t, apperrors.IsConflict(err))
}

func TestCreateBooking_InclusivePolicy(t *testing.T) {
	f := newFixture(t, func(cfg *config.Config) { cfg.BookingOverlap = model.OverlapInclusive })
	seedAccepted(t, f, "2025-10-10", "2025-10-20")

	_, err := f.svc.CreateBooking(context.Background(), request("tenant-1", "2025-10-20", "2025-10-25"))
	assert.True(t, apperrors.IsConflict(err))
}

func TestAcceptBooking_SplitsAvailabilityAndRejectsCompetitors(t *testing.T) {
	f := newFixture(t, nil)
	winner := f.create(t, "tenant-1", "2025-10-10", "2025-10-20")
	loser := f.create(t, "tenant-2", "2025-10-15", "2025-10-18")
	bystander := f.create(t, "tenant-3", "2025-10-22", "2025-10-25")

	accepted, err := f.svc.AcceptBooking(context.Background(), winner.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BookingAccepted, accepted.Status)

	assert.Equal(t, model.BookingRejected, f.status(t, loser.ID))
	assert.Equal(t, model.BookingPending, f.status(t, bystander.ID))
	assert.Equal(t, []string{"2025-10-01..2025-10-09", "2025-10-21..2025-10-30"}, f.ranges(t))

	staged := f.stagedTypes()
	assert.Equal(t, []string{"booking.rejected", "booking.accepted"}, staged[len(staged)-1], "cascade and acceptance share one batch")
	assert.Equal(t, 1, f.notifier.Count(model.NotifyBookingAccepted))
	assert.Equal(t, 1, f.notifier.Count(model.NotifyBookingRejected))

	_, err = f.svc.CreateBooking(context.Background(), request("tenant-4", "2025-10-15", "2025-10-18"))
	assert.True(t, apperrors.IsConflict(err), "no single range covers the consumed window")
}

func TestAcceptBooking_ConcurrentOverlapsOnlyOneWins(t *testing.T) {
	f := newFixture(t, nil)
	var ids []string
	for i := range 8 {
		b := f.create(t, fmt.Sprintf("tenant-%d", i), "2025-10-10", fmt.Sprintf("2025-10-%d", 12+i))
		ids = append(ids, b.ID)
	}

	var wins atomic.Int32
	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.AcceptBooking(context.Background(), id)
			if err == nil {
				wins.Add(1)
				return
			}
			assert.True(t, apperrors.IsConflict(err), "unexpected error: %v", err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
	accepted, err := f.svc.ListBookings(context.Background(), "property-1", []model.BookingStatus{model.BookingAccepted})
	require.NoError(t, err)
	assert.Len(t, accepted, 1)
}

var errCommitAborted = errors.New("commit aborted")

// flakyCommitTx aborts the commit of the next unit of work once. With retry
// set it then runs the unit of work again, the way the Mongo driver handles a
// TransientTransactionError.
type flakyCommitTx struct {
	*local.TransactionManager
	retry    bool
	failNext atomic.Bool
}

func (m *flakyCommitTx) ExecuteIndependentTransaction(ctx context.Context, fn dbmongo.TransactionFunc) error {
	for {
		err := m.TransactionManager.ExecuteIndependentTransaction(ctx, func(txCtx context.Context) error {
			if err := fn(txCtx); err != nil {
				return err
			}
			if m.failNext.CompareAndSwap(true, false) {
				return errCommitAborted
			}
			return nil
		})
		if !m.retry || !errors.Is(err, errCommitAborted) {
			return err
		}
	}
}

func TestAcceptBooking_RetriedCommitStagesOneBatch(t *testing.T) {
	tx := &flakyCommitTx{TransactionManager: local.NewTransactionManager(), retry: true}
	f := newFixtureWithTx(t, tx, nil)
	winner := f.create(t, "tenant-1", "2025-10-10", "2025-10-20")
	loser := f.create(t, "tenant-2", "2025-10-15", "2025-10-18")
	before := len(f.outbox.All())

	tx.failNext.Store(true)
	_, err := f.svc.AcceptBooking(context.Background(), winner.ID)
	require.NoError(t, err)

	staged := f.stagedTypes()
	require.Len(t, staged, before+1)
	assert.Equal(t, []string{"booking.rejected", "booking.accepted"}, staged[len(staged)-1])
	assert.Equal(t, model.BookingRejected, f.status(t, loser.ID))
	assert.Equal(t, []string{"2025-10-01..2025-10-09", "2025-10-21..2025-10-30"}, f.ranges(t))
	assert.Equal(t, 1, f.notifier.Count(model.NotifyBookingRejected))
	assert.Equal(t, 1, f.notifier.Count(model.NotifyBookingAccepted))
}

func TestAcceptBooking_AbortedCommitLeavesNoPartialWrites(t *testing.T) {
	tx := &flakyCommitTx{TransactionManager: local.NewTransactionManager()}
	f := newFixtureWithTx(t, tx, nil)
	winner := f.create(t, "tenant-1", "2025-10-10", "2025-10-20")
	loser := f.create(t, "tenant-2", "2025-10-15", "2025-10-18")
	before := len(f.outbox.All())

	tx.failNext.Store(true)
	_, err := f.svc.AcceptBooking(context.Background(), winner.ID)
	require.ErrorIs(t, err, errCommitAborted)

	assert.Equal(t, model.BookingPending, f.status(t, winner.ID))
	assert.Equal(t, model.BookingPending, f.status(t, loser.ID))
	assert.Equal(t, []string{"2025-10-01..2025-10-30"}, f.ranges(t))
	assert.Len(t, f.outbox.All(), before)
	assert.Zero(t, f.notifier.Count(model.NotifyBookingRejected))
}

func TestCreateBooking_ConcurrentCompetingTenants(t *testing.T) {
	f := newFixture(t, nil)

	created := make([]*model.ShortletBooking, 2)
	var wg sync.WaitGroup
	for i := range created {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b, err := f.svc.CreateBooking(context.Background(), request(fmt.Sprintf("tenant-%d", i+1), "2025-10-10", "2025-10-15"))
			if assert.NoError(t, err) {
				created[i] = b
			}
		}()
	}
	wg.Wait()
	require.NotNil(t, created[0])
	require.NotNil(t, created[1])
	assert.NotEqual(t, created[0].ID, created[1].ID)

	// Competing requests stay pending; acceptance decides between them.
	_, err := f.svc.AcceptBooking(context.Background(), created[1].ID)
	require.NoError(t, err)
	assert.Equal(t, model.BookingRejected, f.status(t, created[0].ID))

	_, err = f.svc.AcceptBooking(context.Background(), created[0].ID)
	assert.True(t, apperrors.IsConflict(err))
	accepted, err := f.svc.ListBookings(context.Background(), "property-1", []model.BookingStatus{model.BookingAccepted})
	require.NoError(t, err)
	assert.Len(t, accepted, 1)
}

func TestAcceptBooking_IllegalTransitionLeavesStatus(t *testing.T) {
	f := newFixture(t, nil)
	b := f.create(t, "tenant-1", "2025-10-10", "2025-10-12")

	_, err := f.svc.RejectBooking(context.Background(), b.ID, "no pets")
	require.NoError(t, err)

	_, err = f.svc.AcceptBooking(context.Background(), b.ID)
	assert.True(t, apperrors.IsConflict(err))
	assert.Equal(t, model.BookingRejected, f.status(t, b.ID))

	_, err = f.svc.CancelBooking(context.Background(), b.ID, "")
	assert.True(t, apperrors.IsConflict(err))
	assert.Equal(t, model.BookingRejected, f.status(t, b.ID))

	_, err = f.svc.AcceptBooking(context.Background(), "missing")
	assert.True(t, apperrors.IsNotFound(err))
}

func TestCancelBooking(t *testing.T) {
	f := newFixture(t, nil)
	b := f.create(t, "tenant-1", "2025-10-10", "2025-10-20")
	_, err := f.svc.AcceptBooking(context.Background(), b.ID)
	require.NoError(t, err)

	cancelled, err := f.svc.CancelBooking(context.Background(), b.ID, "change of plans")
	require.NoError(t, err)
	assert.Equal(t, model.BookingCancelled, cancelled.Status)
	assert.Equal(t, "change of plans", cancelled.Reason)
	assert.Equal(t, []string{"2025-10-01..2025-10-09", "2025-10-21..2025-10-30"}, f.ranges(t), "consumed dates stay consumed")
}

func TestCancelBooking_RejectsStartedBooking(t *testing.T) {
	f := newFixture(t, nil)
	require.NoError(t, f.repo.Create(context.Background(), &model.ShortletBooking{
		ID:         "old",
		TenantID:   "tenant-1",
		LandlordID: "landlord-1",
		PropertyID: "property-1",
		StartDate:  model.MustDate("2025-09-15"),
		EndDate:    model.MustDate("2025-09-25"),
		Status:     model.BookingAccepted,
	}))

	_, err := f.svc.CancelBooking(context.Background(), "old", "")
	assert.True(t, apperrors.IsValidation(err))
	assert.Equal(t, model.BookingAccepted, f.status(t, "old"))
}

func TestRescheduleBooking(t *testing.T) {
	f := newFixture(t, nil)
	b := f.create(t, "tenant-1", "2025-10-10", "2025-10-12")

	moved, err := f.svc.RescheduleBooking(context.Background(), b.ID, model.MustDate("2025-10-14"), model.MustDate("2025-10-16"))
	require.NoError(t, err)
	assert.Equal(t, model.BookingRescheduled, moved.Status)
	assert.Equal(t, "2025-10-14", moved.StartDate.Format(model.DateLayout))
	require.NotNil(t, moved.PreviousStartDate)
	assert.Equal(t, "2025-10-10", moved.PreviousStartDate.Format(model.DateLayout))

	var ev model.LifecycleEvent
	batches := f.outbox.All()
	last := batches[len(batches)-1].Messages[0]
	require.NoError(t, json.Unmarshal(last.Value, &ev))
	assert.Equal(t, model.EventBookingRescheduled, ev.EventType)
	assert.Equal(t, "2025-10-10", ev.Payload.Previous["start_date"])

	_, err = f.svc.RescheduleBooking(context.Background(), b.ID, model.MustDate("2025-10-28"), model.MustDate("2025-11-03"))
	assert.True(t, apperrors.IsConflict(err), "new dates must sit in one range")

	accepted, err := f.svc.AcceptBooking(context.Background(), b.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BookingAccepted, accepted.Status)
}

func TestEventDeliveryFailure_KeepsCommittedState(t *testing.T) {
	f := newFixture(t, func(cfg *config.Config) { cfg.EventsDelivery = config.DeliveryDirect })
	b := f.create(t, "tenant-1", "2025-10-10", "2025-10-20")
	published := len(f.publisher.Batches())

	f.publisher.SetErr(errors.New("broker unavailable"))
	rejected, err := f.svc.RejectBooking(context.Background(), b.ID, "dates taken")

	require.Error(t, err)
	assert.True(t, apperrors.IsEventDelivery(err))
	require.NotNil(t, rejected)
	assert.Equal(t, model.BookingRejected, f.status(t, b.ID))
	assert.Len(t, f.publisher.Batches(), published, "the failed event is not visible")
}

func TestAcceptBooking_DirectModeStagesCascade(t *testing.T) {
	f := newFixture(t, func(cfg *config.Config) { cfg.EventsDelivery = config.DeliveryDirect })
	winner := f.create(t, "tenant-1", "2025-10-10", "2025-10-20")
	loser := f.create(t, "tenant-2", "2025-10-12", "2025-10-14")
	published := len(f.publisher.Batches())

	f.publisher.SetErr(errors.New("broker unavailable"))
	_, err := f.svc.AcceptBooking(context.Background(), winner.ID)
	require.NoError(t, err)

	assert.Equal(t, model.BookingRejected, f.status(t, loser.ID))
	assert.Len(t, f.publisher.Batches(), published)
	assert.Equal(t, [][]string{{"booking.rejected", "booking.accepted"}}, f.stagedTypes())
}

func TestExpireBooking(t *testing.T) {
	f := newFixture(t, nil)
	require.NoError(t, f.repo.Create(context.Background(), &model.ShortletBooking{
		ID:         "stale",
		TenantID:   "tenant-1",
		LandlordID: "landlord-1",
		PropertyID: "property-1",
		StartDate:  model.MustDate("2025-09-18"),
		EndDate:    model.MustDate("2025-09-22"),
		Status:     model.BookingPending,
	}))
	fresh := f.create(t, "tenant-2", "2025-10-10", "2025-10-12")

	expired, err := f.svc.FindExpired(context.Background(), now)
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, "stale", expired[0].ID)

	b, err := f.svc.ExpireBooking(context.Background(), "stale")
	require.NoError(t, err)
	assert.Equal(t, model.BookingCancelled, b.Status)
	assert.Equal(t, ReasonExpired, b.Reason)
	staged := f.stagedTypes()
	assert.Equal(t, []string{"booking.expired"}, staged[len(staged)-1])

	_, err = f.svc.ExpireBooking(context.Background(), fresh.ID)
	assert.True(t, apperrors.IsConflict(err))
}

func TestSendReminder_AtMostOnce(t *testing.T) {
	f := newFixture(t, nil)
	b := f.create(t, "tenant-1", "2025-10-10", "2025-10-12")
	_, err := f.svc.AcceptBooking(context.Background(), b.ID)
	require.NoError(t, err)

	due, err := f.svc.FindReminderDue(context.Background(), model.MustDate("2025-10-09"), model.MustDate("2025-10-10"))
	require.NoError(t, err)
	require.Len(t, due, 1)

	f.notifier.SetErr(errors.New("sms gateway down"))
	require.NoError(t, f.svc.SendReminder(context.Background(), b.ID))
	require.NoError(t, f.svc.SendReminder(context.Background(), b.ID))

	assert.Equal(t, 1, f.notifier.Count(model.NotifyBookingReminder))
	due, _ = f.svc.FindReminderDue(context.Background(), model.MustDate("2025-10-09"), model.MustDate("2025-10-10"))
	assert.Empty(t, due)
}

func TestSendReminder_CarriesTenantTimezone(t *testing.T) {
	f := newFixture(t, nil)
	req := request("tenant-1", "2025-10-10", "2025-10-12")
	req.Contact.Phone = "+44 7400 123456"
	b, err := f.svc.CreateBooking(context.Background(), req)
	require.NoError(t, err)
	_, err = f.svc.AcceptBooking(context.Background(), b.ID)
	require.NoError(t, err)

	require.NoError(t, f.svc.SendReminder(context.Background(), b.ID))

	var reminder *model.Notification
	for _, n := range f.notifier.Attempts() {
		if n.Kind == model.NotifyBookingReminder {
			reminder = &n
		}
	}
	require.NotNil(t, reminder)
	assert.Equal(t, "Europe/London", reminder.Data["timezone"])
}
