package repository

import (
	"context"
	slotserrors "propbook/internal/slots/errors"
	"propbook/pkg/db/local"
	"propbook/pkg/model"
	"sort"
	"sync"
	"time"
)

// MemorySlotRepository is an in-process SlotRepository. Reads return copies.
type MemorySlotRepository struct {
	mu    sync.RWMutex
	slots map[string]*model.AvailabilitySlot
}

func NewMemorySlotRepository() *MemorySlotRepository {
	return &MemorySlotRepository{slots: make(map[string]*model.AvailabilitySlot)}
}

func (r *MemorySlotRepository) Create(ctx context.Context, slot *model.AvailabilitySlot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.keepForRollback(ctx, slot.ID)
	cp := *slot
	r.slots[slot.ID] = &cp
	return nil
}

func (r *MemorySlotRepository) FindByID(_ context.Context, id string) (*model.AvailabilitySlot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.slots[id]
	if !ok {
		return nil, slotserrors.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (r *MemorySlotRepository) FindOverlapping(_ context.Context, propertyID string, start, end time.Time) ([]*model.AvailabilitySlot, error) {
	return r.filter(func(s *model.AvailabilitySlot) bool {
		return s.PropertyID == propertyID && model.IntervalsOverlap(s.StartTime, s.EndTime, start, end)
	}), nil
}

func (r *MemorySlotRepository) FindAvailable(_ context.Context, propertyID, landlordID string, after time.Time) ([]*model.AvailabilitySlot, error) {
	return r.filter(func(s *model.AvailabilitySlot) bool {
		return s.PropertyID == propertyID &&
			!s.Booked &&
			s.StartTime.After(after) &&
			(landlordID == "" || s.LandlordID == landlordID)
	}), nil
}

func (r *MemorySlotRepository) FindCovering(_ context.Context, propertyID string, start, end time.Time) (*model.AvailabilitySlot, error) {
	found := r.filter(func(s *model.AvailabilitySlot) bool {
		return s.PropertyID == propertyID && !s.Booked && s.Covers(start, end)
	})
	if len(found) == 0 {
		return nil, slotserrors.ErrNotFound
	}
	return found[0], nil
}

func (r *MemorySlotRepository) SetBooked(ctx context.Context, id string, booked bool, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.slots[id]
	if !ok {
		return slotserrors.ErrNotFound
	}
	if s.Booked == booked {
		if booked {
			return slotserrors.ErrAlreadyBooked
		}
		return slotserrors.ErrNotBooked
	}
	r.keepForRollback(ctx, id)
	s.Booked = booked
	s.UpdatedAt = at
	return nil
}

func (r *MemorySlotRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.slots[id]
	if !ok {
		return slotserrors.ErrNotFound
	}
	if s.Booked {
		return slotserrors.ErrAlreadyBooked
	}
	r.keepForRollback(ctx, id)
	delete(r.slots, id)
	return nil
}

func (r *MemorySlotRepository) filter(match func(*model.AvailabilitySlot) bool) []*model.AvailabilitySlot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*model.AvailabilitySlot
	for _, s := range r.slots {
		if match(s) {
			cp := *s
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out
}

func (r *MemorySlotRepository) keepForRollback(ctx context.Context, id string) {
	var snapshot *model.AvailabilitySlot
	if s, ok := r.slots[id]; ok {
		cp := *s
		snapshot = &cp
	}
	local.OnRollback(ctx, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if snapshot == nil {
			delete(r.slots, id)
			return
		}
		r.slots[id] = snapshot
	})
}
