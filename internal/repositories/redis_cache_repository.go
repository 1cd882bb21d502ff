package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisCacheRepository - кеш настроек на Redis.
type RedisCacheRepository struct {
	client *redis.Client
}

func NewRedisCacheRepository(client *redis.Client) CacheRepositoryInterface {
	return &RedisCacheRepository{client: client}
}

func (r *RedisCacheRepository) Get(ctx context.Context, key CacheKey) ([]byte, bool, error) {
	val, err := r.client.Get(ctx, string(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

func (r *RedisCacheRepository) Set(ctx context.Context, key CacheKey, value []byte, ttl time.Duration) error {
	return r.client.Set(ctx, string(key), value, ttl).Err()
}

func (r *RedisCacheRepository) Del(ctx context.Context, keys ...CacheKey) error {
	if len(keys) == 0 {
		return nil
	}
	names := make([]string, len(keys))
	for i, k := range keys {
		names[i] = string(k)
	}
	return r.client.Del(ctx, names...).Err()
}
