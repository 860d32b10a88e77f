package persist

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/killallgit/foliochat/pkg/config"
)

const redisKeyPrefix = "foliochat:"

// RedisStorage stores each namespace under its own key.
type RedisStorage struct {
	client *redis.Client
}

// NewRedisStorage connects and pings the server.
func NewRedisStorage(cfg config.RedisConfig) (*RedisStorage, error) {
	client := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: 2 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}
	return NewRedisStorageWithClient(client), nil
}

func NewRedisStorageWithClient(client *redis.Client) *RedisStorage {
	return &RedisStorage{client: client}
}

func (r *RedisStorage) Load(ctx context.Context, namespace string) ([]byte, error) {
	data, err := r.client.Get(ctx, redisKeyPrefix+namespace).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", namespace, err)
	}
	return data, nil
}

func (r *RedisStorage) Save(ctx context.Context, namespace string, data []byte) error {
	if err := r.client.Set(ctx, redisKeyPrefix+namespace, data, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", namespace, err)
	}
	return nil
}

func (r *RedisStorage) Delete(ctx context.Context, namespace string) error {
	if err := r.client.Del(ctx, redisKeyPrefix+namespace).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", namespace, err)
	}
	return nil
}

func (r *RedisStorage) Close() error {
	return r.client.Close()
}
