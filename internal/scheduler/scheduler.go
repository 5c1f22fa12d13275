package scheduler

import (
	"context"
	"fmt"
	bookings "propbook/internal/bookings/service"
	visits "propbook/internal/visits/service"
	"propbook/pkg/clock"
	"propbook/pkg/config"
	apperrors "propbook/pkg/errors"
	"propbook/pkg/model"
	"sort"
	"time"
)

const (
	JobExpirePendingBookings  = "expire-pending-bookings"
	JobExpirePendingVisits    = "expire-pending-visits"
	JobSendReminders          = "send-reminders"
	JobAutoCompletePastVisits = "auto-complete-past-visits"
)

type Job struct {
	Name string
	Run  func(ctx context.Context, now time.Time) (BatchResult, error)
}

// Scheduler drives the periodic jobs. It only calls the public service
// operations, the same ones interactive callers use.
type Scheduler struct {
	bookings bookings.BookingService
	visits   visits.VisitService
	clock    clock.Clock
	cfg      *config.Config
	jobs     map[string]Job
}

func New(bookingService bookings.BookingService, visitService visits.VisitService, clk clock.Clock, cfg *config.Config) *Scheduler {
	s := &Scheduler{
		bookings: bookingService,
		visits:   visitService,
		clock:    clk,
		cfg:      cfg,
	}
	s.jobs = map[string]Job{}
	for _, j := range []Job{
		{Name: JobExpirePendingBookings, Run: s.ExpirePendingBookings},
		{Name: JobExpirePendingVisits, Run: s.ExpirePendingVisits},
		{Name: JobSendReminders, Run: s.SendReminders},
		{Name: JobAutoCompletePastVisits, Run: s.AutoCompletePastVisits},
	} {
		s.jobs[j.Name] = j
	}
	return s
}

func (s *Scheduler) Jobs() []string {
	names := make([]string, 0, len(s.jobs))
	for name := range s.jobs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s *Scheduler) RunJob(ctx context.Context, name string) (BatchResult, error) {
	job, exists := s.jobs[name]
	if !exists {
		return BatchResult{}, fmt.Errorf("unsupported job: %v", name)
	}

	start := s.clock.Now()
	result, err := job.Run(ctx, start)
	result.Job = name
	if err != nil {
		s.cfg.Log.Error("Scheduler job failed", "job", name, "error", err)
		return result, fmt.Errorf("%s job failed: %w", name, err)
	}

	log := s.cfg.Log.Info
	if result.Failed > 0 {
		log = s.cfg.Log.Warn
	}
	log("Scheduler job finished",
		"job", name,
		"processed", result.Processed,
		"succeeded", result.Succeeded,
		"failed", result.Failed,
	)
	for id, itemErr := range result.Errors {
		s.cfg.Log.Debug("Scheduler item failed", "job", name, "id", id, "error", itemErr)
	}
	return result, nil
}

// RunAll runs every job once. A failing job does not stop the rest.
func (s *Scheduler) RunAll(ctx context.Context) []BatchResult {
	var results []BatchResult
	for _, name := range s.Jobs() {
		result, _ := s.RunJob(ctx, name)
		results = append(results, result)
	}
	return results
}

// Run executes RunAll every SchedulerInterval until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.SchedulerInterval)
	defer ticker.Stop()

	s.cfg.Log.Info("Scheduler started", "interval", s.cfg.SchedulerInterval, "jobs", s.Jobs())
	s.RunAll(ctx)
	for {
		select {
		case <-ctx.Done():
			s.cfg.Log.Info("Scheduler stopped")
			return
		case <-ticker.C:
			s.RunAll(ctx)
		}
	}
}

func (s *Scheduler) ExpirePendingBookings(ctx context.Context, now time.Time) (BatchResult, error) {
	expired, err := s.bookings.FindExpired(ctx, now)
	if err != nil {
		return BatchResult{}, err
	}
	return process(ctx, expired, bookingID, func(ctx context.Context, b *model.ShortletBooking) error {
		_, err := s.bookings.ExpireBooking(ctx, b.ID)
		return committed(err)
	}), nil
}

func (s *Scheduler) ExpirePendingVisits(ctx context.Context, now time.Time) (BatchResult, error) {
	expired, err := s.visits.FindExpired(ctx, now)
	if err != nil {
		return BatchResult{}, err
	}
	return process(ctx, expired, visitID, func(ctx context.Context, v *model.Visit) error {
		_, err := s.visits.ExpireVisit(ctx, v.ID)
		return committed(err)
	}), nil
}

// SendReminders covers approved visits starting within VisitReminderWindow
// and accepted bookings starting within BookingReminderDays.
func (s *Scheduler) SendReminders(ctx context.Context, now time.Time) (BatchResult, error) {
	dueVisits, err := s.visits.FindReminderDue(ctx, now, now.Add(s.cfg.VisitReminderWindow))
	if err != nil {
		return BatchResult{}, err
	}
	today := model.DateOf(now)
	dueBookings, err := s.bookings.FindReminderDue(ctx, today, model.AddDays(today, s.cfg.BookingReminderDays))
	if err != nil {
		return BatchResult{}, err
	}

	result := process(ctx, dueVisits, visitID, func(ctx context.Context, v *model.Visit) error {
		return s.visits.SendReminder(ctx, v.ID)
	})
	result.merge(process(ctx, dueBookings, bookingID, func(ctx context.Context, b *model.ShortletBooking) error {
		return s.bookings.SendReminder(ctx, b.ID)
	}))
	return result, nil
}

func (s *Scheduler) AutoCompletePastVisits(ctx context.Context, now time.Time) (BatchResult, error) {
	ended, err := s.visits.FindCompletable(ctx, now)
	if err != nil {
		return BatchResult{}, err
	}
	return process(ctx, ended, visitID, func(ctx context.Context, v *model.Visit) error {
		_, err := s.visits.CompleteVisit(ctx, v.ID)
		return committed(err)
	}), nil
}

// committed counts an event delivery failure as success since the state
// change is already stored.
func committed(err error) error {
	if apperrors.IsEventDelivery(err) {
		return nil
	}
	return err
}

func bookingID(b *model.ShortletBooking) string { return b.ID }

func visitID(v *model.Visit) string { return v.ID }
