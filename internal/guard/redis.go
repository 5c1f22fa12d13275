package guard

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "propbook:lock:"

// releaseScript deletes the key only while it still holds the caller's token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker takes locks with SET NX PX and releases them by token.
type RedisLocker struct {
	rdb  redis.UniversalClient
	poll time.Duration
}

func NewRedisLocker(rdb redis.UniversalClient, poll time.Duration) *RedisLocker {
	if poll <= 0 {
		poll = 50 * time.Millisecond
	}
	return &RedisLocker{rdb: rdb, poll: poll}
}

func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (Lease, error) {
	token := uuid.NewString()
	redisKey := redisKeyPrefix + key
	for {
		ok, err := l.rdb.SetNX(ctx, redisKey, token, ttl).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil, errors.Join(ErrNotAcquired, ctx.Err())
			}
			return nil, fmt.Errorf("failed to acquire lock %s: %w", key, err)
		}
		if ok {
			return &redisLease{key: key, redisKey: redisKey, token: token, rdb: l.rdb}, nil
		}
		if err := waitOrDone(ctx, l.poll); err != nil {
			return nil, err
		}
	}
}

type redisLease struct {
	key      string
	redisKey string
	token    string
	rdb      redis.UniversalClient
}

func (l *redisLease) Key() string { return l.key }

func (l *redisLease) Release(ctx context.Context) error {
	if err := releaseScript.Run(ctx, l.rdb, []string{l.redisKey}, l.token).Err(); err != nil {
		return fmt.Errorf("failed to release lock %s: %w", l.key, err)
	}
	return nil
}
