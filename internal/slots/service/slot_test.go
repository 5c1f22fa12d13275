package service

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"propbook/internal/guard"
	"propbook/internal/slots/repository"
	"propbook/pkg/clock"
	"propbook/pkg/config"
	"propbook/pkg/db/local"
	apperrors "propbook/pkg/errors"
	"propbook/pkg/logger"
	"propbook/pkg/model"
	"propbook/pkg/validation"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2025, 10, 10, 12, 0, 0, 0, time.UTC)

func newTestService() (SlotService, *repository.MemorySlotRepository) {
	cfg := &config.Config{Log: logger.Discard()}
	repo := repository.NewMemorySlotRepository()
	g := guard.New(guard.NewMemoryLocker(), local.NewTransactionManager(), cfg.Log)
	return NewSlotService(repo, g, validation.New(), clock.NewFixed(now), cfg), repo
}

func newSlot(property string, start time.Time, d time.Duration) *model.AvailabilitySlot {
	return &model.AvailabilitySlot{
		PropertyID: property,
		LandlordID: "landlord-1",
		StartTime:  start,
		EndTime:    start.Add(d),
	}
}

func TestCreateSlot(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	slot := newSlot("property-1", now.Add(24*time.Hour), time.Hour)
	require.NoError(t, svc.CreateSlot(ctx, slot))
	assert.NotEmpty(t, slot.ID)
	assert.False(t, slot.Booked)
	assert.Equal(t, now, slot.CreatedAt)
}

func TestCreateSlot_RejectsPastAndNowStart(t *testing.T) {
	svc, _ := newTestService()

	err := svc.CreateSlot(context.Background(), newSlot("property-1", now, time.Hour))
	assert.True(t, apperrors.IsValidation(err))

	err = svc.CreateSlot(context.Background(), newSlot("property-1", now.Add(-time.Hour), time.Hour))
	assert.True(t, apperrors.IsValidation(err))
}

func TestCreateSlot_RejectsEndBeforeStart(t *testing.T) {
	svc, _ := newTestService()

	err := svc.CreateSlot(context.Background(), newSlot("property-1", now.Add(time.Hour), -time.Minute))
	assert.True(t, apperrors.IsValidation(err))
}

func TestCreateSlot_OverlapAcrossLandlords(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	start := now.Add(24 * time.Hour)

	require.NoError(t, svc.CreateSlot(ctx, newSlot("property-1", start, time.Hour)))

	other := newSlot("property-1", start.Add(30*time.Minute), time.Hour)
	other.LandlordID = "landlord-2"
	assert.True(t, apperrors.IsConflict(svc.CreateSlot(ctx, other)))

	adjacent := newSlot("property-1", start.Add(time.Hour), time.Hour)
	assert.NoError(t, svc.CreateSlot(ctx, adjacent))

	elsewhere := newSlot("property-2", start, time.Hour)
	assert.NoError(t, svc.CreateSlot(ctx, elsewhere))
}

func TestCreateSlot_ConcurrentOverlapsOnlyOneWins(t *testing.T) {
	svc, _ := newTestService()
	start := now.Add(48 * time.Hour)

	var ok, conflicts atomic.Int32
	var wg sync.WaitGroup
	for i := range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := svc.CreateSlot(context.Background(), newSlot("property-1", start.Add(time.Duration(i)*time.Minute), time.Hour))
			switch {
			case err == nil:
				ok.Add(1)
			case apperrors.IsConflict(err):
				conflicts.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), ok.Load())
	assert.Equal(t, int32(9), conflicts.Load())
}

func TestGetAvailableSlots(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()

	future := newSlot("property-1", now.Add(2*time.Hour), time.Hour)
	future.ID, future.LandlordID = "future", "landlord-1"
	past := newSlot("property-1", now.Add(-2*time.Hour), time.Hour)
	past.ID = "past"
	taken := newSlot("property-1", now.Add(5*time.Hour), time.Hour)
	taken.ID, taken.Booked = "taken", true
	otherLandlord := newSlot("property-1", now.Add(8*time.Hour), time.Hour)
	otherLandlord.ID, otherLandlord.LandlordID = "other", "landlord-2"
	for _, s := range []*model.AvailabilitySlot{future, past, taken, otherLandlord} {
		require.NoError(t, repo.Create(ctx, s))
	}

	all, err := svc.GetAvailableSlots(ctx, "property-1", "")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "future", all[0].ID)
	assert.Equal(t, "other", all[1].ID)

	scoped, err := svc.GetAvailableSlots(ctx, "property-1", "landlord-1")
	require.NoError(t, err)
	require.Len(t, scoped, 1)
	assert.Equal(t, "future", scoped[0].ID)
}

func TestIsSlotAvailable(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()
	start := now.Add(3 * time.Hour)

	slot := newSlot("property-1", start, time.Hour)
	slot.ID = "s-1"
	require.NoError(t, repo.Create(ctx, slot))

	ok, err := svc.IsSlotAvailable(ctx, "property-1", start, start.Add(30*time.Minute))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, _ = svc.IsSlotAvailable(ctx, "property-1", start, start.Add(2*time.Hour))
	assert.False(t, ok)

	_, err = svc.Book(ctx, "s-1")
	require.NoError(t, err)
	ok, _ = svc.IsSlotAvailable(ctx, "property-1", start, start.Add(30*time.Minute))
	assert.False(t, ok)
}

func TestBookAndRelease(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()

	slot := newSlot("property-1", now.Add(time.Hour), time.Hour)
	slot.ID = "s-1"
	require.NoError(t, repo.Create(ctx, slot))

	booked, err := svc.Book(ctx, "s-1")
	require.NoError(t, err)
	assert.True(t, booked.Booked)

	_, err = svc.Book(ctx, "s-1")
	assert.True(t, apperrors.IsConflict(err))

	require.NoError(t, svc.Release(ctx, "s-1"))
	require.NoError(t, svc.Release(ctx, "s-1"), "release is idempotent")
	require.NoError(t, svc.Release(ctx, "missing"), "missing slot is tolerated")

	_, err = svc.Book(ctx, "missing")
	assert.True(t, apperrors.IsNotFound(err))
}

func TestBook_ConcurrentOnlyOneWins(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()

	slot := newSlot("property-1", now.Add(time.Hour), time.Hour)
	slot.ID = "s-1"
	require.NoError(t, repo.Create(ctx, slot))

	var wins atomic.Int32
	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.Book(ctx, "s-1"); err == nil {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())
}

func TestDeleteSlot(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()

	slot := newSlot("property-1", now.Add(time.Hour), time.Hour)
	slot.ID = "s-1"
	require.NoError(t, repo.Create(ctx, slot))

	_, err := svc.Book(ctx, "s-1")
	require.NoError(t, err)
	assert.True(t, apperrors.IsConflict(svc.DeleteSlot(ctx, "s-1")))

	require.NoError(t, svc.Release(ctx, "s-1"))
	require.NoError(t, svc.DeleteSlot(ctx, "s-1"))

	_, err = svc.GetSlot(ctx, "s-1")
	assert.True(t, apperrors.IsNotFound(err))
}
