package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/parleyhq/parley/pkg/storage"
)

// NewRedisClient connects to Redis for the attempt limiter. Unlike the
// database this is optional infrastructure; callers decide whether a
// connection failure is fatal.
func NewRedisClient(config storage.Config) (*redis.Client, error) {
	opts, err := redis.ParseURL(config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	if config.RedisPassword != "" {
		opts.Password = config.RedisPassword
	}
	opts.DB = config.RedisDB
	opts.MaxRetries = config.RedisMaxRetries
	if config.RedisPoolSize > 0 {
		opts.PoolSize = config.RedisPoolSize
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return client, nil
}
