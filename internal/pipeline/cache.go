package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/humancompiler/planner/internal/observability"
)

// Cache is the coordinator's caching port (spec §4.6 "Caching"), keyed
// by user_id+week_start; RedisCache below implements it. Run stores only
// the oracle priorities output through it: the raw inputs and the
// weekly selection are not cached.
type Cache interface {
	Get(ctx context.Context, key string, dst interface{}) (bool, error)
	Set(ctx context.Context, key string, src interface{}, ttl time.Duration) error
	InvalidateUser(ctx context.Context, userID string) error
}

// RedisCache is the production Cache, grounded on
// control_plane/store/redis_versioned.go's key-per-entity, TTL'd
// approach — simplified to plain get/set since the pipeline cache has
// no concurrent-writer conflict to arbitrate (one coordinator run per
// user+week at a time).
type RedisCache struct {
	client *redis.Client
}

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

func cacheKey(userID, weekStart, kind string) string {
	return fmt.Sprintf("planner:cache:user:%s:week:%s:%s", userID, weekStart, kind)
}

// userIndexKey tracks every cache key written for a user, so
// InvalidateUser can drop them all without a Redis KEYS scan.
func userIndexKey(userID string) string {
	return fmt.Sprintf("planner:cache:index:user:%s", userID)
}

func (c *RedisCache) Get(ctx context.Context, key string, dst interface{}) (bool, error) {
	raw, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		observability.CacheHits.WithLabelValues(cacheKindOf(key), "miss").Inc()
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("pipeline cache: get %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, fmt.Errorf("pipeline cache: decode %s: %w", key, err)
	}
	observability.CacheHits.WithLabelValues(cacheKindOf(key), "hit").Inc()
	return true, nil
}

// cacheKindOf recovers the trailing "kind" segment written by
// cacheKey, so Get can label a hit/miss without threading kind through
// every call site.
func cacheKindOf(key string) string {
	if i := strings.LastIndex(key, ":"); i >= 0 {
		return key[i+1:]
	}
	return "unknown"
}

func (c *RedisCache) Set(ctx context.Context, key string, src interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(src)
	if err != nil {
		return fmt.Errorf("pipeline cache: encode %s: %w", key, err)
	}
	if err := c.client.Set(ctx, key, raw, ttl).Err(); err != nil {
		return fmt.Errorf("pipeline cache: set %s: %w", key, err)
	}
	return nil
}

// TrackKey records key under userID's index so a later InvalidateUser
// sweeps it.
func (c *RedisCache) TrackKey(ctx context.Context, userID, key string) error {
	return c.client.SAdd(ctx, userIndexKey(userID), key).Err()
}

// InvalidateUser drops every tracked cache entry for userID. No code in
// this repository calls it, so cached priorities stay until their TTL
// expires.
func (c *RedisCache) InvalidateUser(ctx context.Context, userID string) error {
	idx := userIndexKey(userID)
	keys, err := c.client.SMembers(ctx, idx).Result()
	if err != nil {
		return fmt.Errorf("pipeline cache: list index for %s: %w", userID, err)
	}
	if len(keys) == 0 {
		return nil
	}
	pipe := c.client.Pipeline()
	pipe.Del(ctx, keys...)
	pipe.Del(ctx, idx)
	_, err = pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("pipeline cache: invalidate %s: %w", userID, err)
	}
	return nil
}

// untilNextMonday returns the TTL from now until the next Monday
// 00:00 local — the cache lifetime for a week's planning inputs.
func untilNextMonday(now time.Time) time.Duration {
	daysUntilMonday := (8 - int(now.Weekday())) % 7
	if daysUntilMonday == 0 {
		daysUntilMonday = 7
	}
	next := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()).
		AddDate(0, 0, daysUntilMonday)
	return next.Sub(now)
}
