package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache provides type-safe caching operations.
type Cache[T any] struct {
	client    *Client
	keyPrefix string
	ttl       time.Duration
	compress  bool
}

// CacheOption configures a Cache.
type CacheOption func(*cacheOptions)

type cacheOptions struct {
	compress bool
}

// WithCompression stores values zstd-compressed.
func WithCompression(enabled bool) CacheOption {
	return func(o *cacheOptions) { o.compress = enabled }
}

// NewCache creates a new type-safe cache.
// Returns error if any parameter is invalid.
func NewCache[T any](client *Client, prefix string, ttl time.Duration, opts ...CacheOption) (*Cache[T], error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	if prefix == "" {
		return nil, errors.New("key prefix is required")
	}
	if ttl <= 0 {
		return nil, errors.New("TTL must be positive")
	}

	var o cacheOptions
	for _, opt := range opts {
		opt(&o)
	}

	return &Cache[T]{
		client:    client,
		keyPrefix: prefix,
		ttl:       ttl,
		compress:  o.compress,
	}, nil
}

// buildKey creates the full cache key with prefix.
func (c *Cache[T]) buildKey(key string) string {
	return fmt.Sprintf("%s:%s", c.keyPrefix, key)
}

// Get retrieves a cached value by key without touching its TTL.
// Returns ErrCacheMiss if the key does not exist.
func (c *Cache[T]) Get(ctx context.Context, key string) (*T, error) {
	if key == "" {
		return nil, errors.New("key is required")
	}
	return c.read(ctx, "cache_get", c.client.client.Get(ctx, c.buildKey(key)))
}

// GetEx retrieves a cached value and resets its TTL to the cache default,
// giving entries a sliding expiration.
func (c *Cache[T]) GetEx(ctx context.Context, key string) (*T, error) {
	return c.GetExWithTTL(ctx, key, c.ttl)
}

// GetExWithTTL is GetEx with a per-key sliding window.
func (c *Cache[T]) GetExWithTTL(ctx context.Context, key string, ttl time.Duration) (*T, error) {
	if key == "" {
		return nil, errors.New("key is required")
	}
	if ttl <= 0 {
		return nil, errors.New("TTL must be positive")
	}
	return c.read(ctx, "cache_getex", c.client.client.GetEx(ctx, c.buildKey(key), ttl))
}

func (c *Cache[T]) read(_ context.Context, op string, cmd *redis.StringCmd) (*T, error) {
	start := time.Now()

	data, err := cmd.Bytes()
	if errors.Is(err, redis.Nil) {
		DefaultMetrics.RecordCacheMiss(c.keyPrefix)
		DefaultMetrics.ObserveOperation(op, time.Since(start), nil)
		return nil, ErrCacheMiss
	}
	if err != nil {
		DefaultMetrics.ObserveOperation(op, time.Since(start), err)
		return nil, fmt.Errorf("cache get: %w", err)
	}

	var value T
	if err := decodeValue(data, &value); err != nil {
		DefaultMetrics.ObserveOperation(op, time.Since(start), err)
		return nil, err
	}

	DefaultMetrics.RecordCacheHit(c.keyPrefix)
	DefaultMetrics.ObserveOperation(op, time.Since(start), nil)
	return &value, nil
}

// Set stores a value in the cache with the default TTL.
func (c *Cache[T]) Set(ctx context.Context, key string, value T) error {
	return c.SetWithTTL(ctx, key, value, c.ttl)
}

// SetWithTTL stores a value in the cache with a custom TTL.
func (c *Cache[T]) SetWithTTL(ctx context.Context, key string, value T, ttl time.Duration) error {
	if key == "" {
		return errors.New("key is required")
	}
	if ttl <= 0 {
		return errors.New("TTL must be positive")
	}

	start := time.Now()

	data, err := encodeValue(value, c.compress)
	if err != nil {
		DefaultMetrics.ObserveOperation("cache_set", time.Since(start), err)
		return err
	}

	if err := c.client.client.Set(ctx, c.buildKey(key), data, ttl).Err(); err != nil {
		DefaultMetrics.ObserveOperation("cache_set", time.Since(start), err)
		return fmt.Errorf("cache set: %w", err)
	}

	DefaultMetrics.ObserveOperation("cache_set", time.Since(start), nil)
	return nil
}

// Delete removes a key from the cache.
func (c *Cache[T]) Delete(ctx context.Context, key string) error {
	if key == "" {
		return errors.New("key is required")
	}

	if err := c.client.client.Del(ctx, c.buildKey(key)).Err(); err != nil {
		return fmt.Errorf("cache delete: %w", err)
	}
	return nil
}

// DeletePattern removes all keys matching a pattern and returns how many
// were deleted. Pattern example: "player-summary:*".
func (c *Cache[T]) DeletePattern(ctx context.Context, pattern string) (int64, error) {
	if pattern == "" {
		return 0, errors.New("pattern is required")
	}

	fullPattern := c.buildKey(pattern)

	// Use SCAN to find keys (production-safe)
	var cursor uint64
	var totalDeleted int64
	for {
		keys, nextCursor, err := c.client.client.Scan(ctx, cursor, fullPattern, 100).Result()
		if err != nil {
			return totalDeleted, fmt.Errorf("cache scan: %w", err)
		}

		if len(keys) > 0 {
			deleted, err := c.client.client.Del(ctx, keys...).Result()
			if err != nil {
				return totalDeleted, fmt.Errorf("cache delete pattern: %w", err)
			}
			totalDeleted += deleted
		}

		cursor = nextCursor
		if cursor == 0 {
			break
		}
	}

	c.client.logger.Debug("cache delete pattern completed",
		"pattern", fullPattern,
		"deleted", totalDeleted,
	)
	return totalDeleted, nil
}

// TTL returns the default TTL for this cache.
func (c *Cache[T]) TTL() time.Duration {
	return c.ttl
}

// Prefix returns the key prefix for this cache.
func (c *Cache[T]) Prefix() string {
	return c.keyPrefix
}
