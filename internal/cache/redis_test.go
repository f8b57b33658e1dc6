package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/workflow-saas/internal/config"
	"github.com/magabrotheeeer/workflow-saas/internal/lib/ratelimit"
)

func setupTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(func() { mr.Close() })

	cfg := config.RedisConnection{
		RedisAddress: mr.Addr(),
		RedisDB:      0,
	}

	cache, err := InitServer(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cache.Close() })
	return cache, mr
}

func TestInitServer(t *testing.T) {
	cache, _ := setupTestCache(t)
	assert.NoError(t, cache.Ping(context.Background()))
}

func TestInitServer_Unreachable(t *testing.T) {
	cfg := config.RedisConnection{
		RedisAddress:     "127.0.0.1:1",
		RedisDialTimeout: 200 * time.Millisecond,
	}
	_, err := InitServer(context.Background(), cfg)
	assert.Error(t, err)
}

func TestCache_BacksRateLimitStore(t *testing.T) {
	cache, mr := setupTestCache(t)
	store := ratelimit.NewRedisStore(cache.Db)
	rule := ratelimit.Rule{Limit: 1, Window: time.Minute}

	res, err := store.Allow(context.Background(), "export:10.0.0.1", rule)
	require.NoError(t, err)
	assert.True(t, res.Allowed)

	res, err = store.Allow(context.Background(), "export:10.0.0.1", rule)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.True(t, mr.Exists("ratelimit:export:10.0.0.1"))
}

func TestCache_PingAfterServerStops(t *testing.T) {
	cache, mr := setupTestCache(t)
	mr.Close()
	assert.Error(t, cache.Ping(context.Background()))
}
