package sessioncache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// GoRedisAdapter wraps a *redis.Client to satisfy RedisClient, the
// same driver-agnostic seam internal/fabric/redis_store.go uses in the
// teacher repo.
type GoRedisAdapter struct {
	Client *redis.Client
}

func (a GoRedisAdapter) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return a.Client.Set(ctx, key, value, ttl).Err()
}

func (a GoRedisAdapter) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := a.Client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	return b, err
}

func (a GoRedisAdapter) Del(ctx context.Context, keys ...string) error {
	return a.Client.Del(ctx, keys...).Err()
}
