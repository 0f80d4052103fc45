package directory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisClaims keeps per-user counters in Redis. INCR is atomic, so it can stand
// in for the Postgres claim table when several instances share a Redis.
type RedisClaims struct {
	client *redis.Client
}

func NewRedisClaims(url string) (*RedisClaims, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return &RedisClaims{client: client}, nil
}

func NewRedisClaimsFromClient(client *redis.Client) *RedisClaims {
	return &RedisClaims{client: client}
}

func claimKey(userID, key string) string {
	return "claim:" + userID + ":" + key
}

func (c *RedisClaims) IncrementClaim(ctx context.Context, userID, key string) (int64, error) {
	value, err := c.client.Incr(ctx, claimKey(userID, key)).Result()
	if err != nil {
		return 0, fmt.Errorf("increment claim %s: %w", key, err)
	}
	return value, nil
}

func (c *RedisClaims) GetClaim(ctx context.Context, userID, key string) (int64, error) {
	value, err := c.client.Get(ctx, claimKey(userID, key)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("get claim %s: %w", key, err)
	}
	return value, nil
}

func (c *RedisClaims) SetClaim(ctx context.Context, userID, key string, value int64) error {
	if err := c.client.Set(ctx, claimKey(userID, key), value, 0).Err(); err != nil {
		return fmt.Errorf("set claim %s: %w", key, err)
	}
	return nil
}

func (c *RedisClaims) Close() error {
	return c.client.Close()
}
