package redisclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// ErrCacheMiss is returned when a key is absent.
var ErrCacheMiss = errors.New("cache miss")

type Client struct {
	rdb *redis.Client
}

// NewClient creates a new Redis client
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// GetClient returns the underlying Redis client
func (c *Client) GetClient() *redis.Client {
	return c.rdb
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// CacheGet fetches a cached value, ErrCacheMiss when absent.
func (c *Client) CacheGet(ctx context.Context, key string) ([]byte, error) {
	val, err := c.rdb.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, err
	}
	return val, nil
}

// CacheSet stores a value with a TTL.
func (c *Client) CacheSet(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.rdb.Set(ctx, key, value, ttl).Err()
}

// SetCooldown mirrors a trainer's catch cooldown so the read path can
// answer without touching Postgres. The database claim stays
// authoritative; this is advisory.
func (c *Client) SetCooldown(ctx context.Context, wallet string, ttl time.Duration) error {
	return c.rdb.Set(ctx, fmt.Sprintf("cooldown:%s", wallet), "1", ttl).Err()
}

// CooldownRemaining reports the advisory cooldown TTL for a wallet;
// zero means no record.
func (c *Client) CooldownRemaining(ctx context.Context, wallet string) (time.Duration, error) {
	ttl, err := c.rdb.TTL(ctx, fmt.Sprintf("cooldown:%s", wallet)).Result()
	if err != nil {
		return 0, err
	}
	if ttl < 0 {
		return 0, nil
	}
	return ttl, nil
}
