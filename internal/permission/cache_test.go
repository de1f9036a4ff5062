package permission

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	srv := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewCache(rdb, time.Minute)
}

func TestCacheRoundTrip(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	_, hit, err := cache.Get(ctx, 10)
	require.NoError(t, err)
	require.False(t, hit)

	require.NoError(t, cache.Set(ctx, 10, "read:user,write:user"))

	value, hit, err := cache.Get(ctx, 10)
	require.NoError(t, err)
	require.True(t, hit)
	require.Equal(t, "read:user,write:user", value)
}

func TestCacheInvalidate(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, 10, "read:user"))
	require.NoError(t, cache.Invalidate(ctx, 10))

	_, hit, err := cache.Get(ctx, 10)
	require.NoError(t, err)
	require.False(t, hit)
}

func TestCacheNilClientIsNoop(t *testing.T) {
	var cache *Cache
	ctx := context.Background()

	_, hit, err := cache.Get(ctx, 10)
	require.NoError(t, err)
	require.False(t, hit)
	require.NoError(t, cache.Set(ctx, 10, "read:user"))
	require.NoError(t, cache.Invalidate(ctx, 10))
}

func TestCacheEmptyStringIsAHit(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	// A user with no grants caches an empty string, which still counts as
	// a hit.
	require.NoError(t, cache.Set(ctx, 11, ""))

	value, hit, err := cache.Get(ctx, 11)
	require.NoError(t, err)
	require.True(t, hit)
	require.Empty(t, value)
}
