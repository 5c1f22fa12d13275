// Package guard serializes conflicting writers on a (landlord, property)
// scope. A caller holds the scope's lock while it re-reads current state,
// validates, and commits, so a second writer always sees the first one's
// committed result.
package guard

import (
	"context"
	"errors"
	"time"
)

// ErrNotAcquired is returned when a lock could not be taken before ctx ended.
var ErrNotAcquired = errors.New("lock not acquired")

// Lease is a held lock. Release is safe to call once the lease has expired.
type Lease interface {
	Key() string
	Release(ctx context.Context) error
}

// Locker hands out exclusive leases on string keys. Acquire blocks until the
// key is free or ctx is done; ttl bounds how long a crashed holder can keep it.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (Lease, error)
}

// PropertyScope is the lock key shared by booking and availability writers.
func PropertyScope(landlordID, propertyID string) string {
	return "property:" + landlordID + ":" + propertyID
}

// SlotScope is the lock key for slot creation on one property, across landlords.
func SlotScope(propertyID string) string {
	return "slots:" + propertyID
}

func waitOrDone(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return errors.Join(ErrNotAcquired, ctx.Err())
	case <-t.C:
		return nil
	}
}
