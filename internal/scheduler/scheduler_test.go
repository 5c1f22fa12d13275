package scheduler

import (
	"context"
	"testing"
	"time"

	availabilityrepo "propbook/internal/availability/repository"
	availability "propbook/internal/availability/service"
	bookingrepo "propbook/internal/bookings/repository"
	bookings "propbook/internal/bookings/service"
	"propbook/internal/bookings/validator"
	"propbook/internal/directory"
	"propbook/internal/events"
	"propbook/internal/guard"
	"propbook/internal/notify"
	slotrepo "propbook/internal/slots/repository"
	slots "propbook/internal/slots/service"
	visitrepo "propbook/internal/visits/repository"
	visits "propbook/internal/visits/service"
	"propbook/pkg/clock"
	"propbook/pkg/config"
	"propbook/pkg/db/local"
	"propbook/pkg/logger"
	"propbook/pkg/model"
	"propbook/pkg/validation"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2025, 10, 10, 12, 0, 0, 0, time.UTC)

type fixture struct {
	scheduler *Scheduler
	bookings  *bookingrepo.MemoryBookingRepository
	visits    *visitrepo.MemoryVisitRepository
	slots     *slotrepo.MemorySlotRepository
	notifier  *notify.MemoryNotifier
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := &config.Config{
		Log:                 logger.Discard(),
		VisitReminderWindow: 24 * time.Hour,
		BookingReminderDays: 2,
		SchedulerInterval:   time.Minute,
	}
	clk := clock.NewFixed(now)
	g := guard.New(guard.NewMemoryLocker(), local.NewTransactionManager(), cfg.Log)
	dir := directory.NewMemoryDirectory()
	emitter := events.NewOutboxEmitter(events.NewMemoryOutboxRepository(), clk, cfg.Log)

	f := &fixture{
		bookings: bookingrepo.NewMemoryBookingRepository(),
		visits:   visitrepo.NewMemoryVisitRepository(),
		slots:    slotrepo.NewMemorySlotRepository(),
		notifier: notify.NewMemoryNotifier(),
	}
	avail := availability.NewAvailabilityService(availabilityrepo.NewMemoryAvailabilityRepository(), g, validation.New(), clk, cfg)
	bookingService := bookings.NewBookingService(f.bookings, avail, g, validator.NewBookingValidator(cfg.Log), dir, dir, emitter, f.notifier, clk, cfg)
	slotService := slots.NewSlotService(f.slots, g, validation.New(), clk, cfg)
	visitService := visits.NewVisitService(f.visits, slotService, g, validation.New(), dir, dir, emitter, f.notifier, clk, cfg)

	f.scheduler = New(bookingService, visitService, clk, cfg)
	return f
}

func (f *fixture) booking(t *testing.T, id string, status model.BookingStatus, start string) {
	t.Helper()
	require.NoError(t, f.bookings.Create(context.Background(), &model.ShortletBooking{
		ID:         id,
		TenantID:   "tenant-1",
		LandlordID: "landlord-1",
		PropertyID: "property-1",
		StartDate:  model.MustDate(start),
		EndDate:    model.AddDays(model.MustDate(start), 3),
		Status:     status,
	}))
}

func (f *fixture) visit(t *testing.T, id string, status model.VisitStatus, at time.Time) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, f.slots.Create(ctx, &model.AvailabilitySlot{
		ID:         "slot-" + id,
		PropertyID: "property-1",
		LandlordID: "landlord-1",
		StartTime:  at,
		EndTime:    at.Add(30 * time.Minute),
		Booked:     true,
	}))
	require.NoError(t, f.visits.Create(ctx, &model.Visit{
		ID:              id,
		PropertyID:      "property-1",
		LandlordID:      "landlord-1",
		VisitorID:       "visitor-1",
		SlotID:          "slot-" + id,
		ScheduledAt:     at,
		DurationMinutes: 30,
		Status:          status,
	}))
}

func (f *fixture) bookingStatus(t *testing.T, id string) model.BookingStatus {
	t.Helper()
	b, err := f.bookings.FindByID(context.Background(), id)
	require.NoError(t, err)
	return b.Status
}

func (f *fixture) visitStatus(t *testing.T, id string) model.VisitStatus {
	t.Helper()
	v, err := f.visits.FindByID(context.Background(), id)
	require.NoError(t, err)
	return v.Status
}

func TestJobs(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, []string{
		JobAutoCompletePastVisits,
		JobExpirePendingBookings,
		JobExpirePendingVisits,
		JobSendReminders,
	}, f.scheduler.Jobs())

	_, err := f.scheduler.RunJob(context.Background(), "vacuum")
	assert.ErrorContains(t, err, "unsupported job")
}

func TestExpirePendingBookings(t *testing.T) {
	f := newFixture(t)
	f.booking(t, "stale-pending", model.BookingPending, "2025-10-08")
	f.booking(t, "stale-rescheduled", model.BookingRescheduled, "2025-10-09")
	f.booking(t, "started-accepted", model.BookingAccepted, "2025-10-09")
	f.booking(t, "upcoming", model.BookingPending, "2025-10-12")

	result, err := f.scheduler.RunJob(context.Background(), JobExpirePendingBookings)
	require.NoError(t, err)

	assert.Equal(t, JobExpirePendingBookings, result.Job)
	assert.Equal(t, 2, result.Processed)
	assert.Equal(t, 2, result.Succeeded)
	assert.Equal(t, model.BookingCancelled, f.bookingStatus(t, "stale-pending"))
	assert.Equal(t, model.BookingCancelled, f.bookingStatus(t, "stale-rescheduled"))
	assert.Equal(t, model.BookingAccepted, f.bookingStatus(t, "started-accepted"))
	assert.Equal(t, model.BookingPending, f.bookingStatus(t, "upcoming"))
}

func TestExpirePendingVisits_ReleasesSlots(t *testing.T) {
	f := newFixture(t)
	f.visit(t, "stale", model.VisitPending, now.Add(-time.Hour))
	f.visit(t, "upcoming", model.VisitPending, now.Add(time.Hour))

	result, err := f.scheduler.RunJob(context.Background(), JobExpirePendingVisits)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Succeeded)
	assert.Equal(t, model.VisitCancelled, f.visitStatus(t, "stale"))
	assert.Equal(t, model.VisitPending, f.visitStatus(t, "upcoming"))

	slot, err := f.slots.FindByID(context.Background(), "slot-stale")
	require.NoError(t, err)
	assert.False(t, slot.Booked)
}

func TestSendReminders(t *testing.T) {
	f := newFixture(t)
	f.visit(t, "soon", model.VisitApproved, now.Add(3*time.Hour))
	f.visit(t, "later", model.VisitApproved, now.Add(72*time.Hour))
	f.booking(t, "tomorrow", model.BookingAccepted, "2025-10-11")
	f.booking(t, "next-month", model.BookingAccepted, "2025-11-11")

	result, err := f.scheduler.RunJob(context.Background(), JobSendReminders)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Processed)
	assert.Equal(t, 1, f.notifier.Count(model.NotifyVisitReminder))
	assert.Equal(t, 1, f.notifier.Count(model.NotifyBookingReminder))

	again, err := f.scheduler.RunJob(context.Background(), JobSendReminders)
	require.NoError(t, err)
	assert.Zero(t, again.Processed, "reminders go out once")
}

func TestAutoCompletePastVisits(t *testing.T) {
	f := newFixture(t)
	f.visit(t, "ended", model.VisitApproved, now.Add(-2*time.Hour))
	f.visit(t, "in-progress", model.VisitApproved, now.Add(-10*time.Minute))

	result, err := f.scheduler.RunJob(context.Background(), JobAutoCompletePastVisits)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Succeeded)
	assert.Equal(t, model.VisitCompleted, f.visitStatus(t, "ended"))
	assert.Equal(t, model.VisitApproved, f.visitStatus(t, "in-progress"))

	_, err = f.scheduler.RunJob(context.Background(), JobAutoCompletePastVisits)
	require.NoError(t, err)
	assert.Equal(t, 1, f.notifier.Count(model.NotifyVisitFeedback))
}

func TestRunAll(t *testing.T) {
	f := newFixture(t)
	f.booking(t, "stale", model.BookingPending, "2025-10-01")

	results := f.scheduler.RunAll(context.Background())
	require.Len(t, results, 4)
	for _, r := range results {
		assert.Zero(t, r.Failed, r.Job)
	}
	assert.Equal(t, model.BookingCancelled, f.bookingStatus(t, "stale"))
}
