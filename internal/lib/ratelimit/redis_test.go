package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStore(client), mr
}

func TestRedisStore_Allow(t *testing.T) {
	store, mr := setupRedisStore(t)
	ctx := context.Background()
	key := Key("reset-request", "203.0.113.9")
	rule := Rule{Limit: 3, Window: 15 * time.Minute}

	for i := 1; i <= 3; i++ {
		res, err := store.Allow(ctx, key, rule)
		require.NoError(t, err)
		assert.True(t, res.Allowed)
		assert.Equal(t, 3-i, res.Remaining)
	}

	res, err := store.Allow(ctx, key, rule)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Greater(t, res.RetryAfter, time.Duration(0))
	assert.LessOrEqual(t, res.RetryAfter, rule.Window)

	assert.True(t, mr.Exists("ratelimit:"+key))

	mr.FastForward(rule.Window)
	res, err = store.Allow(ctx, key, rule)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Equal(t, 2, res.Remaining)
}

func TestRedisStore_KeyWithoutTTLGetsWindow(t *testing.T) {
	store, mr := setupRedisStore(t)
	ctx := context.Background()

	require.NoError(t, mr.Set("ratelimit:orphan", "1"))

	res, err := store.Allow(ctx, "orphan", Rule{Limit: 5, Window: time.Minute})
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Equal(t, time.Minute, mr.TTL("ratelimit:orphan"))
}

func TestRedisStore_Unavailable(t *testing.T) {
	store, mr := setupRedisStore(t)
	mr.Close()

	_, err := store.Allow(context.Background(), "k", Rule{Limit: 1, Window: time.Minute})
	assert.Error(t, err)
}
