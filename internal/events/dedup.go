package events

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const dedupKeyPrefix = "propbook:event:"

// Deduplicator remembers event ids. FirstSeen reports true only for the first
// caller presenting a given id within the retention window.
type Deduplicator interface {
	FirstSeen(ctx context.Context, eventID string) (bool, error)
}

type RedisDeduplicator struct {
	rdb redis.UniversalClient
	ttl time.Duration
}

func NewRedisDeduplicator(rdb redis.UniversalClient, ttl time.Duration) *RedisDeduplicator {
	return &RedisDeduplicator{rdb: rdb, ttl: ttl}
}

func (d *RedisDeduplicator) FirstSeen(ctx context.Context, eventID string) (bool, error) {
	ok, err := d.rdb.SetNX(ctx, dedupKeyPrefix+eventID, 1, d.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("dedup %s: %w", eventID, err)
	}
	return ok, nil
}

// MemoryDeduplicator remembers event ids for ttl within one process. Expired
// ids are swept at most once per ttl.
type MemoryDeduplicator struct {
	mu        sync.Mutex
	seen      map[string]time.Time
	ttl       time.Duration
	now       func() time.Time
	nextSweep time.Time
}

func NewMemoryDeduplicator(ttl time.Duration) *MemoryDeduplicator {
	return &MemoryDeduplicator{
		seen: make(map[string]time.Time),
		ttl:  ttl,
		now:  time.Now,
	}
}

func (d *MemoryDeduplicator) FirstSeen(_ context.Context, eventID string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	now := d.now()
	if expires, ok := d.seen[eventID]; ok && now.Before(expires) {
		return false, nil
	}
	d.sweep(now)
	d.seen[eventID] = now.Add(d.ttl)
	return true, nil
}

func (d *MemoryDeduplicator) sweep(now time.Time) {
	if now.Before(d.nextSweep) {
		return
	}
	for id, expires := range d.seen {
		if !now.Before(expires) {
			delete(d.seen, id)
		}
	}
	d.nextSweep = now.Add(d.ttl)
}
