package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"gstrecon/internal/config"
	"gstrecon/internal/domain"
	"gstrecon/internal/port"
)

const (
	runKeyPrefix  = "gstrecon:run:"
	lockKeyPrefix = "gstrecon:lock:"
)

type runCache struct {
	rdb     *goredis.Client
	locker  *redislock.Client
	ttl     time.Duration
	lockTTL time.Duration
}

// NewClient connects to Redis and verifies the connection with a ping.
func NewClient(ctx context.Context, cfg *config.RedisConfig) (*goredis.Client, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("pinging redis at %s: %w", cfg.Addr, err)
	}
	return rdb, nil
}

// NewRunCache creates a Redis-backed RunCache.
func NewRunCache(rdb *goredis.Client, cfg *config.RedisConfig) port.RunCache {
	return &runCache{
		rdb:     rdb,
		locker:  redislock.New(rdb),
		ttl:     cfg.TTL,
		lockTTL: cfg.LockTTL,
	}
}

// RunKey is the cache key holding the run id of a fingerprint.
func RunKey(fingerprint string) string {
	return runKeyPrefix + fingerprint
}

// LockKey is the lock key of a fingerprint.
func LockKey(fingerprint string) string {
	return lockKeyPrefix + fingerprint
}

func (c *runCache) Get(ctx context.Context, fingerprint string) (uuid.UUID, bool, error) {
	val, err := c.rdb.Get(ctx, RunKey(fingerprint)).Result()
	if errors.Is(err, goredis.Nil) {
		return uuid.Nil, false, nil
	}
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("runCache.Get: %w", err)
	}
	id, err := uuid.Parse(val)
	if err != nil {
		// A corrupt entry behaves like a miss and is dropped.
		_ = c.rdb.Del(ctx, RunKey(fingerprint)).Err()
		return uuid.Nil, false, nil
	}
	return id, true, nil
}

func (c *runCache) Set(ctx context.Context, fingerprint string, runID uuid.UUID) error {
	if err := c.rdb.Set(ctx, RunKey(fingerprint), runID.String(), c.ttl).Err(); err != nil {
		return fmt.Errorf("runCache.Set: %w", err)
	}
	return nil
}

func (c *runCache) Invalidate(ctx context.Context, fingerprint string) error {
	if err := c.rdb.Del(ctx, RunKey(fingerprint)).Err(); err != nil {
		return fmt.Errorf("runCache.Invalidate: %w", err)
	}
	return nil
}

func (c *runCache) Lock(ctx context.Context, fingerprint string) (func(context.Context) error, error) {
	lock, err := c.locker.Obtain(ctx, LockKey(fingerprint), c.lockTTL, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, domain.ErrRunInProgress
	}
	if err != nil {
		return nil, fmt.Errorf("runCache.Lock: %w", err)
	}
	return func(ctx context.Context) error {
		if err := lock.Release(ctx); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			return fmt.Errorf("runCache.Unlock: %w", err)
		}
		return nil
	}, nil
}
