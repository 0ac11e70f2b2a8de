package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
)

const cacheKeyPrefix = "rugchekr:analysis:"

// RedisCache caches finished analyses by address.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache connects to redisURL ("redis://host:6379/0").
func NewRedisCache(ctx context.Context, redisURL string, ttl time.Duration) (*RedisCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &RedisCache{client: client, ttl: ttl}, nil
}

var _ Cache = (*RedisCache)(nil)

func cacheKey(addr string) string {
	return cacheKeyPrefix + strings.ToLower(addr)
}

// Get returns the cached analysis for addr. A miss is (nil, false, nil).
func (c *RedisCache) Get(ctx context.Context, addr string) (*ContractAnalysis, bool, error) {
	raw, err := c.client.Get(ctx, cacheKey(addr)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	a, err := decodeReport(raw)
	if err != nil {
		// A corrupt entry is a miss; drop it so the next analysis replaces it.
		_ = c.client.Del(ctx, cacheKey(addr)).Err()
		return nil, false, nil
	}
	return a, true, nil
}

// Set stores a for the cache TTL.
func (c *RedisCache) Set(ctx context.Context, a *ContractAnalysis) error {
	raw, err := json.Marshal(a)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, cacheKey(a.Address), raw, c.ttl).Err()
}

// Ping reports whether redis is reachable.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close releases the connection pool.
func (c *RedisCache) Close() error {
	return c.client.Close()
}
