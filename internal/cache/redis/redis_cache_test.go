package redis

import (
	"context"
	"os"
	"testing"
	"time"

	cache "rcmos/internal/cache/iface"
	"rcmos/internal/logger"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupCache(t *testing.T) cache.Cache {
	addr := os.Getenv("RCMOS_TEST_REDIS")
	if addr == "" {
		t.Skip("RCMOS_TEST_REDIS not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { client.Close() })
	require.NoError(t, client.Ping(context.Background()).Err())

	return NewRedisCache(client, logger.NewNop())
}

func TestExtractMembers(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, extractMembers([]any{"a", int64(3), "b"}))
	assert.Empty(t, extractMembers(nil))
	assert.Empty(t, extractMembers("unexpected"))
}

func TestBasicOperations(t *testing.T) {
	c := setupCache(t)
	ctx := context.Background()

	t.Run("Set and Get", func(t *testing.T) {
		key := "test:basic:key1"
		require.NoError(t, c.Set(ctx, key, "test-value", 0))
		defer c.Delete(ctx, key)

		result, err := c.Get(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, "test-value", result)
	})

	t.Run("Set with TTL", func(t *testing.T) {
		key := "test:basic:key2"
		require.NoError(t, c.Set(ctx, key, "ttl", time.Second))

		time.Sleep(1500 * time.Millisecond)
		_, err := c.Get(ctx, key)
		assert.ErrorIs(t, err, cache.ErrCacheMiss)
	})
}

func TestZPopByScore(t *testing.T) {
	c := setupCache(t)
	ctx := context.Background()
	key := "test:deadlines"
	defer c.Delete(ctx, key)

	require.NoError(t, c.ZAdd(ctx, key, 100, "due-1"))
	require.NoError(t, c.ZAdd(ctx, key, 200, "due-2"))
	require.NoError(t, c.ZAdd(ctx, key, 900, "later"))

	popped, err := c.ZPopByScore(ctx, key, 500, 10)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"due-1", "due-2"}, popped)

	popped, err = c.ZPopByScore(ctx, key, 500, 10)
	require.NoError(t, err)
	assert.Empty(t, popped)
}
