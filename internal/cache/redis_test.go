package cache_test

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/courierfee/courierfee/internal/cache"
)

func newRedisStore(t *testing.T) *cache.RedisStore {
	t.Helper()

	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set; skipping integration test")
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })

	prefix := fmt.Sprintf("courierfee_test_%d:", time.Now().UnixNano())
	return cache.NewRedisStore(client, prefix)
}

func TestRedisStore_GetSet(t *testing.T) {
	store := newRedisStore(t)
	ctx := context.Background()

	require.NoError(t, store.Ping(ctx))

	_, err := store.Get(ctx, "missing")
	assert.ErrorIs(t, err, cache.ErrMiss)

	require.NoError(t, store.Set(ctx, "k", []byte("v"), time.Minute))
	got, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)
}

func TestRedisStore_InvalidateByTag(t *testing.T) {
	store := newRedisStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "f1", []byte("1"), time.Minute, "forecast"))
	require.NoError(t, store.Set(ctx, "f2", []byte("2"), time.Minute, "forecast"))
	require.NoError(t, store.Set(ctx, "v1", []byte("3"), time.Minute, "vocabulary"))

	n, err := store.InvalidateByTag(ctx, "forecast")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = store.Get(ctx, "f1")
	assert.ErrorIs(t, err, cache.ErrMiss)
	_, err = store.Get(ctx, "v1")
	assert.NoError(t, err)

	n, err = store.InvalidateByTag(ctx, "forecast")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRedisStore_GetOrCompute(t *testing.T) {
	store := newRedisStore(t)
	ctx := context.Background()

	calls := 0
	compute := func(context.Context) (map[string]float64, error) {
		calls++
		return map[string]float64{"fee": 4.5}, nil
	}
	entry := cache.Entry{Key: "quote", TTL: time.Minute, Tags: []string{"forecast"}}

	for i := 0; i < 2; i++ {
		got, err := cache.GetOrCompute(ctx, store, entry, compute)
		require.NoError(t, err)
		assert.InDelta(t, 4.5, got["fee"], 0.0001)
	}
	assert.Equal(t, 1, calls)
}
