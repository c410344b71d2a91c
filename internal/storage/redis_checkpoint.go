package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

// redisCheckpoint keeps the value under a single Redis key so several hosts can share it.
type redisCheckpoint struct {
	client *redis.Client
	key    string
}

func newRedisCheckpoint(opts Options) (Checkpoint, error) {
	if strings.TrimSpace(opts.RedisAddr) == "" {
		return nil, fmt.Errorf("redis checkpoint requires an address")
	}
	client := redis.NewClient(&redis.Options{
		Addr:        opts.RedisAddr,
		Password:    opts.RedisPassword,
		DB:          opts.RedisDB,
		DialTimeout: opts.OpenTimeout,
	})
	return &redisCheckpoint{client: client, key: opts.Key}, nil
}

func (r *redisCheckpoint) Read(ctx context.Context) (string, bool, error) {
	value, err := r.client.Get(ctx, r.key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get %s: %w", r.key, err)
	}
	if value == "" {
		return "", false, nil
	}
	return value, true, nil
}

func (r *redisCheckpoint) Write(ctx context.Context, value string) error {
	if err := r.client.Set(ctx, r.key, value, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", r.key, err)
	}
	return nil
}

func (r *redisCheckpoint) Close() error {
	return r.client.Close()
}
