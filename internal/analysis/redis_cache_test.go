package analysis

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedisCache(t *testing.T, ttl time.Duration) *RedisCache {
	t.Helper()
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set, skipping redis cache test")
	}
	c, err := NewRedisCache(context.Background(), url, ttl)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestRedisCache_SetGet(t *testing.T) {
	c := newTestRedisCache(t, time.Minute)
	ctx := context.Background()

	a := build(fullSnapshot())
	a.ID = "an_redis"
	a.Address = tokenAddr
	require.NoError(t, c.client.Del(ctx, cacheKey(tokenAddr)).Err())

	_, ok, err := c.Get(ctx, tokenAddr)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, &a))
	got, ok, err := c.Get(ctx, "0x1F9840A85D5AF5BF1D1762F925BDADDC4201F984")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "an_redis", got.ID)
	assert.Equal(t, a.RiskFactors, got.RiskFactors)
}

func TestRedisCache_CorruptEntryIsMiss(t *testing.T) {
	c := newTestRedisCache(t, time.Minute)
	ctx := context.Background()

	require.NoError(t, c.client.Set(ctx, cacheKey(tokenAddr), "{not json", time.Minute).Err())
	_, ok, err := c.Get(ctx, tokenAddr)
	require.NoError(t, err)
	assert.False(t, ok)

	n, err := c.client.Exists(ctx, cacheKey(tokenAddr)).Result()
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestNewRedisCache_BadURL(t *testing.T) {
	_, err := NewRedisCache(context.Background(), "not a url", time.Minute)
	assert.Error(t, err)
}

func TestCacheKey(t *testing.T) {
	assert.Equal(t, cacheKeyPrefix+"0x1f9840a85d5af5bf1d1762f925bdaddc4201f984", cacheKey(tokenAddr))
}
