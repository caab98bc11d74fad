package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Cache is a JSON cache with version counters for cheap invalidation: bump
// the version and every key built from the old version becomes unreachable.
// A Cache without a client is a no-op.
type Cache struct {
	client *redis.Client
	logger *zap.Logger
}

func NewCache(client *redis.Client, logger *zap.Logger) *Cache {
	return &Cache{client: client, logger: logger}
}

func (c *Cache) enabled() bool {
	return c != nil && c.client != nil
}

// Get decodes the value at key into dest. found is false on a miss or when
// the cache is disabled.
func (c *Cache) Get(ctx context.Context, key string, dest any) (bool, error) {
	if !c.enabled() {
		return false, nil
	}

	raw, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		c.logger.Warn("cache get failed", zap.String("key", key), zap.Error(err))
		return false, err
	}

	if err := json.Unmarshal(raw, dest); err != nil {
		c.logger.Warn("cache entry undecodable", zap.String("key", key), zap.Error(err))
		return false, err
	}
	return true, nil
}

func (c *Cache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if !c.enabled() {
		return nil
	}

	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if err := c.client.Set(ctx, key, raw, ttl).Err(); err != nil {
		c.logger.Warn("cache set failed", zap.String("key", key), zap.Error(err))
		return err
	}
	return nil
}

// GetVersion returns the current version stored at key, 0 when unset.
func (c *Cache) GetVersion(ctx context.Context, key string) int64 {
	if !c.enabled() {
		return 0
	}

	v, err := c.client.Get(ctx, key).Int64()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("cache version read failed", zap.String("key", key), zap.Error(err))
		}
		return 0
	}
	return v
}

func (c *Cache) IncrementVersion(ctx context.Context, key string) {
	if !c.enabled() {
		return
	}

	if err := c.client.Incr(ctx, key).Err(); err != nil {
		c.logger.Warn("cache version bump failed", zap.String("key", key), zap.Error(err))
	}
}

// Claim sets key for ttl unless it is already set, and reports whether this
// call set it. Without redis every claim succeeds.
func (c *Cache) Claim(ctx context.Context, key string, ttl time.Duration) bool {
	if !c.enabled() {
		return true
	}

	ok, err := c.client.SetNX(ctx, key, 1, ttl).Result()
	if err != nil {
		c.logger.Warn("cache claim failed", zap.String("key", key), zap.Error(err))
		return true
	}
	return ok
}

// Release drops a claim so the next Claim on key succeeds.
func (c *Cache) Release(ctx context.Context, key string) {
	if !c.enabled() {
		return
	}

	if err := c.client.Del(ctx, key).Err(); err != nil {
		c.logger.Warn("cache release failed", zap.String("key", key), zap.Error(err))
	}
}

// Ping reports whether the backing redis answers. A disabled cache is healthy.
func (c *Cache) Ping(ctx context.Context) error {
	if !c.enabled() {
		return nil
	}
	return c.client.Ping(ctx).Err()
}
