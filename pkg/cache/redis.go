package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore implements Store using Redis.
type RedisStore struct {
	client    redis.UniversalClient
	prefix    string
	opTimeout time.Duration
}

var _ AdminStore = (*RedisStore)(nil)

// NewRedisStore creates a Redis store and pings it.
func NewRedisStore(opts ...RedisOption) (*RedisStore, error) {
	cfg := &RedisConfig{
		Addr:         "localhost:6379",
		PoolSize:     10,
		PoolTimeout:  30 * time.Second,
		MinIdleConns: 2,
		Prefix:       "marketminute",
		OpTimeout:    250 * time.Millisecond,
	}

	for _, opt := range opts {
		opt(cfg)
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		PoolTimeout:  cfg.PoolTimeout,
		MinIdleConns: cfg.MinIdleConns,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return NewRedisStoreFromClient(client, cfg.Prefix, cfg.OpTimeout), nil
}

// NewRedisStoreFromClient wraps an existing client.
func NewRedisStoreFromClient(client redis.UniversalClient, prefix string, opTimeout time.Duration) *RedisStore {
	return &RedisStore{
		client:    client,
		prefix:    prefix,
		opTimeout: opTimeout,
	}
}

func (c *RedisStore) Name() string { return "redis" }

// Close closes the Redis connection.
func (c *RedisStore) Close() error {
	return c.client.Close()
}

func (c *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	ctx, cancel := c.opContext(ctx)
	defer cancel()

	data, err := c.client.Get(ctx, c.wrapKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("redis get: %w", err)
	}
	return data, nil
}

func (c *RedisStore) SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	ctx, cancel := c.opContext(ctx)
	defer cancel()

	if err := c.client.Set(ctx, c.wrapKey(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (c *RedisStore) MGet(ctx context.Context, keys ...string) ([][]byte, error) {
	if len(keys) == 0 {
		return [][]byte{}, nil
	}

	ctx, cancel := c.opContext(ctx)
	defer cancel()

	results, err := c.client.MGet(ctx, c.wrapKeys(keys...)...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis mget: %w", err)
	}

	out := make([][]byte, len(keys))
	for i := range keys {
		if i >= len(results) || results[i] == nil {
			continue
		}
		if val, ok := results[i].(string); ok {
			out[i] = []byte(val)
		}
	}
	return out, nil
}

// Len counts keys under the prefix.
func (c *RedisStore) Len(ctx context.Context) (int, error) {
	n := 0
	err := c.scan(ctx, func(keys []string) error {
		n += len(keys)
		return nil
	})
	return n, err
}

// Clear unlinks every key under the prefix.
func (c *RedisStore) Clear(ctx context.Context) (int, error) {
	n := 0
	err := c.scan(ctx, func(keys []string) error {
		if err := c.client.Unlink(ctx, keys...).Err(); err != nil {
			return fmt.Errorf("redis unlink: %w", err)
		}
		n += len(keys)
		return nil
	})
	return n, err
}

func (c *RedisStore) scan(ctx context.Context, fn func(keys []string) error) error {
	pattern := BuildPattern(c.prefix + ":")
	var cursor uint64
	for {
		keys, next, err := c.client.Scan(ctx, cursor, pattern, 500).Result()
		if err != nil {
			return fmt.Errorf("redis scan: %w", err)
		}
		if len(keys) > 0 {
			if err := fn(keys); err != nil {
				return err
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

func (c *RedisStore) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.opTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.opTimeout)
}

func (c *RedisStore) wrapKey(key string) string {
	return GenerateKey(c.prefix, key)
}

func (c *RedisStore) wrapKeys(keys ...string) []string {
	wrapped := make([]string, len(keys))
	for i, key := range keys {
		wrapped[i] = c.wrapKey(key)
	}
	return wrapped
}
