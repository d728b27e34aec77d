package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
)

// RedisLocker backs the batch lock with Redis SET NX PX semantics via
// redislock, giving atomic check-and-set plus expiry across processes.
type RedisLocker struct {
	client *redislock.Client
}

func NewRedisLocker(rdb redis.UniversalClient) *RedisLocker {
	return &RedisLocker{client: redislock.New(rdb)}
}

func (l *RedisLocker) Acquire(ctx context.Context, scope string, ttl time.Duration) (Token, error) {
	held, err := l.client.Obtain(ctx, "achlock:"+scope, ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, ErrAlreadyLocked
	}
	if err != nil {
		return nil, fmt.Errorf("obtain redis lock: %w", err)
	}
	return &redisToken{lock: held}, nil
}

type redisToken struct {
	lock *redislock.Lock
}

func (t *redisToken) Release(ctx context.Context) error {
	err := t.lock.Release(ctx)
	if errors.Is(err, redislock.ErrLockNotHeld) {
		// Expired under us; nothing left to release.
		return nil
	}
	return err
}
