package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisLocker implements Locker with SET NX.
type RedisLocker struct {
	client *redis.Client
}

// NewRedisLockerConfig contains options for creating a new RedisLocker.
type NewRedisLockerConfig struct {
	Address  string
	Password string
	DB       int
}

// NewRedisLocker connects to Redis and checks the connection.
func NewRedisLocker(ctx context.Context, cfg NewRedisLockerConfig) (*RedisLocker, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("connect to Redis at %s: %w", cfg.Address, err)
	}
	return &RedisLocker{client: rdb}, nil
}

// NewRedisLockerFromClient wraps an existing client.
func NewRedisLockerFromClient(client *redis.Client) *RedisLocker {
	return &RedisLocker{client: client}
}

func (r *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := r.client.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire lock %s: %w", key, err)
	}
	return ok, nil
}

func (r *RedisLocker) Release(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("release lock %s: %w", key, err)
	}
	return nil
}

func (r *RedisLocker) Close() error {
	return r.client.Close()
}
