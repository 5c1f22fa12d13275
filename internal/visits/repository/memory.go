package repository

import (
	"context"
	visitserrors "propbook/internal/visits/errors"
	"propbook/pkg/db/local"
	"propbook/pkg/model"
	"slices"
	"sort"
	"sync"
	"time"
)

type MemoryVisitRepository struct {
	mu     sync.RWMutex
	visits map[string]*model.Visit
}

func NewMemoryVisitRepository() *MemoryVisitRepository {
	return &MemoryVisitRepository{visits: make(map[string]*model.Visit)}
}

func (r *MemoryVisitRepository) Create(ctx context.Context, visit *model.Visit) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.keepForRollback(ctx, visit.ID)
	r.visits[visit.ID] = clone(visit)
	return nil
}

func (r *MemoryVisitRepository) FindByID(_ context.Context, id string) (*model.Visit, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.visits[id]
	if !ok {
		return nil, visitserrors.ErrNotFound
	}
	return clone(v), nil
}

func (r *MemoryVisitRepository) FindByProperty(_ context.Context, propertyID string, statuses []model.VisitStatus) ([]*model.Visit, error) {
	return r.filter(func(v *model.Visit) bool {
		return v.PropertyID == propertyID && (len(statuses) == 0 || slices.Contains(statuses, v.Status))
	}), nil
}

func (r *MemoryVisitRepository) FindScheduledBefore(_ context.Context, statuses []model.VisitStatus, before time.Time) ([]*model.Visit, error) {
	return r.filter(func(v *model.Visit) bool {
		return slices.Contains(statuses, v.Status) && v.ScheduledAt.Before(before)
	}), nil
}

func (r *MemoryVisitRepository) FindReminderDue(_ context.Context, status model.VisitStatus, from, to time.Time) ([]*model.Visit, error) {
	return r.filter(func(v *model.Visit) bool {
		return v.Status == status && !v.ReminderSent && !v.ScheduledAt.Before(from) && !v.ScheduledAt.After(to)
	}), nil
}

func (r *MemoryVisitRepository) Replace(ctx context.Context, visit *model.Visit, expected model.VisitStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.visits[visit.ID]
	if !ok {
		return visitserrors.ErrNotFound
	}
	if current.Status != expected {
		return visitserrors.ErrStatusChanged
	}
	r.keepForRollback(ctx, visit.ID)
	r.visits[visit.ID] = clone(visit)
	return nil
}

func (r *MemoryVisitRepository) Claim(ctx context.Context, id, flag string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.visits[id]
	if !ok {
		return visitserrors.ErrNotFound
	}

	var target *bool
	switch flag {
	case FlagFeedbackNotified:
		target = &v.FeedbackNotified
	case FlagReminderSent:
		target = &v.ReminderSent
	default:
		panic("unknown visit flag " + flag)
	}
	if *target {
		return visitserrors.ErrAlreadyClaimed
	}
	r.keepForRollback(ctx, id)
	*target = true
	v.UpdatedAt = at
	return nil
}

func (r *MemoryVisitRepository) filter(match func(*model.Visit) bool) []*model.Visit {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*model.Visit
	for _, v := range r.visits {
		if match(v) {
			out = append(out, clone(v))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ScheduledAt.Before(out[j].ScheduledAt)
	})
	return out
}

func clone(v *model.Visit) *model.Visit {
	cp := *v
	if v.PreviousScheduledAt != nil {
		t := *v.PreviousScheduledAt
		cp.PreviousScheduledAt = &t
	}
	return &cp
}

func (r *MemoryVisitRepository) keepForRollback(ctx context.Context, id string) {
	var snapshot *model.Visit
	if v, ok := r.visits[id]; ok {
		snapshot = clone(v)
	}
	local.OnRollback(ctx, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if snapshot == nil {
			delete(r.visits, id)
			return
		}
		r.visits[id] = snapshot
	})
}
