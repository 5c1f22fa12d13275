package repository

import (
	"context"
	bookingserrors "propbook/internal/bookings/errors"
	"propbook/pkg/db/local"
	"propbook/pkg/model"
	"slices"
	"sort"
	"sync"
	"time"
)

type MemoryBookingRepository struct {
	mu       sync.RWMutex
	bookings map[string]*model.ShortletBooking
}

func NewMemoryBookingRepository() *MemoryBookingRepository {
	return &MemoryBookingRepository{bookings: make(map[string]*model.ShortletBooking)}
}

func (r *MemoryBookingRepository) Create(ctx context.Context, booking *model.ShortletBooking) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.keepForRollback(ctx, booking.ID)
	r.bookings[booking.ID] = clone(booking)
	return nil
}

func (r *MemoryBookingRepository) FindByID(_ context.Context, id string) (*model.ShortletBooking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.bookings[id]
	if !ok {
		return nil, bookingserrors.ErrNotFound
	}
	return clone(b), nil
}

func (r *MemoryBookingRepository) FindPendingDuplicate(_ context.Context, tenantID, propertyID string, start, end time.Time) (*model.ShortletBooking, error) {
	found := r.filter(func(b *model.ShortletBooking) bool {
		return b.Status == model.BookingPending && b.SameRequest(tenantID, propertyID, start, end)
	})
	if len(found) == 0 {
		return nil, bookingserrors.ErrNotFound
	}
	return found[0], nil
}

func (r *MemoryBookingRepository) FindOverlapping(_ context.Context, propertyID string, statuses []model.BookingStatus, start, end time.Time) ([]*model.ShortletBooking, error) {
	start, end = model.DateOf(start), model.DateOf(end)
	return r.filter(func(b *model.ShortletBooking) bool {
		return b.PropertyID == propertyID &&
			slices.Contains(statuses, b.Status) &&
			!b.StartDate.After(end) &&
			!b.EndDate.Before(start)
	}), nil
}

func (r *MemoryBookingRepository) FindByProperty(_ context.Context, propertyID string, statuses []model.BookingStatus) ([]*model.ShortletBooking, error) {
	return r.filter(func(b *model.ShortletBooking) bool {
		return b.PropertyID == propertyID && (len(statuses) == 0 || slices.Contains(statuses, b.Status))
	}), nil
}

func (r *MemoryBookingRepository) FindStartingBefore(_ context.Context, statuses []model.BookingStatus, before time.Time) ([]*model.ShortletBooking, error) {
	return r.filter(func(b *model.ShortletBooking) bool {
		return slices.Contains(statuses, b.Status) && b.StartDate.Before(before)
	}), nil
}

func (r *MemoryBookingRepository) FindReminderDue(_ context.Context, status model.BookingStatus, from, to time.Time) ([]*model.ShortletBooking, error) {
	return r.filter(func(b *model.ShortletBooking) bool {
		return b.Status == status && !b.ReminderSent && !b.StartDate.Before(from) && !b.StartDate.After(to)
	}), nil
}

func (r *MemoryBookingRepository) Replace(ctx context.Context, booking *model.ShortletBooking, expected model.BookingStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.bookings[booking.ID]
	if !ok {
		return bookingserrors.ErrNotFound
	}
	if current.Status != expected {
		return bookingserrors.ErrStatusChanged
	}
	r.keepForRollback(ctx, booking.ID)
	r.bookings[booking.ID] = clone(booking)
	return nil
}

func (r *MemoryBookingRepository) MarkReminderSent(ctx context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bookings[id]
	if !ok {
		return bookingserrors.ErrNotFound
	}
	r.keepForRollback(ctx, id)
	b.ReminderSent = true
	b.UpdatedAt = at
	return nil
}

func (r *MemoryBookingRepository) filter(match func(*model.ShortletBooking) bool) []*model.ShortletBooking {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*model.ShortletBooking
	for _, b := range r.bookings {
		if match(b) {
			out = append(out, clone(b))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartDate.Equal(out[j].StartDate) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].StartDate.Before(out[j].StartDate)
	})
	return out
}

func clone(b *model.ShortletBooking) *model.ShortletBooking {
	cp := *b
	if b.PreviousStartDate != nil {
		t := *b.PreviousStartDate
		cp.PreviousStartDate = &t
	}
	if b.PreviousEndDate != nil {
		t := *b.PreviousEndDate
		cp.PreviousEndDate = &t
	}
	return &cp
}

// keepForRollback snapshots the stored booking so a failed unit of work can
// put it back. Callers hold r.mu.
func (r *MemoryBookingRepository) keepForRollback(ctx context.Context, id string) {
	var snapshot *model.ShortletBooking
	if b, ok := r.bookings[id]; ok {
		snapshot = clone(b)
	}
	local.OnRollback(ctx, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if snapshot == nil {
			delete(r.bookings, id)
			return
		}
		r.bookings[id] = snapshot
	})
}
