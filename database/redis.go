package database

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisClient wraps go-redis for the live counter.
type RedisClient struct {
	rdb *redis.Client
	log *zap.Logger
}

// NewRedis creates a client from a redis:// URL and verifies connectivity.
func NewRedis(ctx context.Context, url string, log *zap.Logger) (*RedisClient, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	rdb := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	log.Info("connected to Redis", zap.String("addr", opts.Addr))
	return &RedisClient{rdb: rdb, log: log}, nil
}

// Raw returns the underlying client.
func (c *RedisClient) Raw() *redis.Client { return c.rdb }

func (c *RedisClient) Publish(ctx context.Context, channel string, message interface{}) error {
	return c.rdb.Publish(ctx, channel, message).Err()
}

func (c *RedisClient) Subscribe(ctx context.Context, channels ...string) *redis.PubSub {
	return c.rdb.Subscribe(ctx, channels...)
}

func (c *RedisClient) Close() error {
	err := c.rdb.Close()
	c.log.Info("Redis connection closed")
	return err
}
