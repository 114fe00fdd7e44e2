package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
)

// DefaultCycleLockKey is the Redis key guarding the sync cycle across instances
const DefaultCycleLockKey = "ordersync:cycle"

// CycleLock guards a sync cycle across scheduler instances.
// Acquire returns ErrCycleLockNotObtained when another holder owns the lock.
type CycleLock interface {
	Acquire(ctx context.Context) (release func(context.Context) error, err error)
}

// RedisCycleLock implements CycleLock with a Redis lease
type RedisCycleLock struct {
	locker *redislock.Client
	key    string
	ttl    time.Duration
}

// Ensure RedisCycleLock implements CycleLock
var _ CycleLock = (*RedisCycleLock)(nil)

// NewRedisCycleLock creates a Redis-backed cycle lock. The ttl must cover the
// longest cycle; the lease is released explicitly when the cycle ends.
func NewRedisCycleLock(client redislock.RedisClient, key string, ttl time.Duration) *RedisCycleLock {
	if key == "" {
		key = DefaultCycleLockKey
	}
	return &RedisCycleLock{
		locker: redislock.New(client),
		key:    key,
		ttl:    ttl,
	}
}

// Acquire tries once to obtain the lease; it does not wait for the holder
func (l *RedisCycleLock) Acquire(ctx context.Context) (func(context.Context) error, error) {
	lock, err := l.locker.Obtain(ctx, l.key, l.ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, ErrCycleLockNotObtained
	}
	if err != nil {
		return nil, fmt.Errorf("obtain cycle lock %q: %w", l.key, err)
	}

	return func(ctx context.Context) error {
		if err := lock.Release(ctx); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			return fmt.Errorf("release cycle lock %q: %w", l.key, err)
		}
		return nil
	}, nil
}
