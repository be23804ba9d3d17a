package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/djeeyo/nmreggae/config"
	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"
)

// Cache errors
var (
	ErrCacheDisabled = errors.New("cache is disabled")
	ErrCacheMiss     = errors.New("key not found in cache")
)

// GenerationKey holds the counter bumped on every write to the event table
const GenerationKey = "events:generation"

// RedisCache provides caching using Redis
type RedisCache struct {
	client  *redis.Client
	enabled bool
	ttl     time.Duration
}

// NewRedisCache creates a new Redis cache. A disabled config yields a cache
// whose operations all return ErrCacheDisabled.
func NewRedisCache(cfg config.RedisConfig) (*RedisCache, error) {
	if !cfg.Enabled {
		return &RedisCache{enabled: false}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, errors.Wrap(err, "failed to connect to Redis")
	}

	return &RedisCache{
		client:  client,
		enabled: true,
		ttl:     cfg.TTL,
	}, nil
}

// Enabled reports whether a Redis connection is configured
func (c *RedisCache) Enabled() bool {
	return c != nil && c.enabled
}

// Get retrieves a JSON value from cache
func (c *RedisCache) Get(ctx context.Context, key string, value interface{}) error {
	if !c.Enabled() {
		return ErrCacheDisabled
	}

	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return ErrCacheMiss
		}
		return errors.Wrap(err, "failed to get value from Redis")
	}

	if err := json.Unmarshal(data, value); err != nil {
		return errors.Wrap(err, "failed to unmarshal cached value")
	}
	return nil
}

// Set stores a JSON value with the configured TTL
func (c *RedisCache) Set(ctx context.Context, key string, value interface{}) error {
	if !c.Enabled() {
		return ErrCacheDisabled
	}

	data, err := json.Marshal(value)
	if err != nil {
		return errors.Wrap(err, "failed to marshal value for caching")
	}

	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		return errors.Wrap(err, "failed to set value in Redis")
	}
	return nil
}

// Generation returns the current write generation, zero when unset
func (c *RedisCache) Generation(ctx context.Context) (int64, error) {
	if !c.Enabled() {
		return 0, ErrCacheDisabled
	}

	gen, err := c.client.Get(ctx, GenerationKey).Int64()
	if err != nil {
		if err == redis.Nil {
			return 0, nil
		}
		return 0, errors.Wrap(err, "failed to read cache generation")
	}
	return gen, nil
}

// BumpGeneration invalidates every cached window at once
func (c *RedisCache) BumpGeneration(ctx context.Context) error {
	if !c.Enabled() {
		return ErrCacheDisabled
	}
	return errors.Wrap(c.client.Incr(ctx, GenerationKey).Err(), "failed to bump cache generation")
}

// Ping checks the Redis connection
func (c *RedisCache) Ping(ctx context.Context) error {
	if !c.Enabled() {
		return ErrCacheDisabled
	}
	return c.client.Ping(ctx).Err()
}

// Close closes the Redis connection
func (c *RedisCache) Close() error {
	if !c.Enabled() || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// GetWindowCacheKey generates a cache key for an event window
func GetWindowCacheKey(generation int64, start, end string) string {
	return fmt.Sprintf("events:%d:window:%s:%s", generation, start, end)
}
