package repository

import (
	"context"
	availabilityerrors "propbook/internal/availability/errors"
	"propbook/pkg/db/local"
	"propbook/pkg/model"
	"sort"
	"sync"
	"time"
)

type MemoryAvailabilityRepository struct {
	mu     sync.RWMutex
	ranges map[string]*model.ShortletAvailability
}

func NewMemoryAvailabilityRepository() *MemoryAvailabilityRepository {
	return &MemoryAvailabilityRepository{ranges: make(map[string]*model.ShortletAvailability)}
}

func (r *MemoryAvailabilityRepository) Create(ctx context.Context, a *model.ShortletAvailability) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.keepForRollback(ctx, a.ID)
	cp := *a
	r.ranges[a.ID] = &cp
	return nil
}

func (r *MemoryAvailabilityRepository) FindByID(_ context.Context, id string) (*model.ShortletAvailability, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.ranges[id]
	if !ok {
		return nil, availabilityerrors.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (r *MemoryAvailabilityRepository) FindByPair(_ context.Context, landlordID, propertyID string) ([]*model.ShortletAvailability, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*model.ShortletAvailability
	for _, a := range r.ranges {
		if a.LandlordID == landlordID && a.PropertyID == propertyID {
			cp := *a
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartDate.Before(out[j].StartDate) })
	return out, nil
}

func (r *MemoryAvailabilityRepository) FindCovering(ctx context.Context, landlordID, propertyID string, start, end time.Time) (*model.ShortletAvailability, error) {
	ranges, _ := r.FindByPair(ctx, landlordID, propertyID)
	for _, a := range ranges {
		if a.Contains(start, end) {
			return a, nil
		}
	}
	return nil, availabilityerrors.ErrNoCoveringRange
}

func (r *MemoryAvailabilityRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.ranges[id]; !ok {
		return availabilityerrors.ErrNotFound
	}
	r.keepForRollback(ctx, id)
	delete(r.ranges, id)
	return nil
}

func (r *MemoryAvailabilityRepository) keepForRollback(ctx context.Context, id string) {
	var snapshot *model.ShortletAvailability
	if a, ok := r.ranges[id]; ok {
		cp := *a
		snapshot = &cp
	}
	local.OnRollback(ctx, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if snapshot == nil {
			delete(r.ranges, id)
			return
		}
		r.ranges[id] = snapshot
	})
}
