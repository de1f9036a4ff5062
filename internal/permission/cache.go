package permission

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const cacheKeyPrefix = "user_permissions:"

// LookupMetrics counts cache lookup results.
type LookupMetrics interface {
	CacheLookup(result string)
}

// Cache stores a user's joined permission string in redis so token minting
// does not hit the catalog join on every login.
type Cache struct {
	rdb     *redis.Client
	ttl     time.Duration
	metrics LookupMetrics
}

// NewCache constructs a Cache. A zero ttl defaults to five minutes.
func NewCache(rdb *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Cache{rdb: rdb, ttl: ttl}
}

// SetMetrics installs a lookup counter.
func (c *Cache) SetMetrics(m LookupMetrics) {
	if c != nil {
		c.metrics = m
	}
}

func cacheKey(userID int64) string {
	return cacheKeyPrefix + strconv.FormatInt(userID, 10)
}

// Get returns the cached permission string and whether it was present.
func (c *Cache) Get(ctx context.Context, userID int64) (string, bool, error) {
	if c == nil || c.rdb == nil {
		return "", false, nil
	}
	value, err := c.rdb.Get(ctx, cacheKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		c.record("miss")
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	c.record("hit")
	return value, true, nil
}

func (c *Cache) record(result string) {
	if c.metrics != nil {
		c.metrics.CacheLookup(result)
	}
}

// Set stores the permission string for the configured TTL.
func (c *Cache) Set(ctx context.Context, userID int64, permission string) error {
	if c == nil || c.rdb == nil {
		return nil
	}
	return c.rdb.Set(ctx, cacheKey(userID), permission, c.ttl).Err()
}

// Invalidate drops the cached value after grants change.
func (c *Cache) Invalidate(ctx context.Context, userID int64) error {
	if c == nil || c.rdb == nil {
		return nil
	}
	return c.rdb.Del(ctx, cacheKey(userID)).Err()
}
