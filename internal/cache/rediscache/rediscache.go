package rediscache

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// RedisCache implements cache.Store on top of a redis server.
type RedisCache struct {
	c      *redis.Client
	prefix string
}

func New(addr, prefix string) *RedisCache {
	return &RedisCache{
		c: redis.NewClient(&redis.Options{
			Addr: addr,
		}),
		prefix: prefix,
	}
}

func (r *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := r.c.Get(ctx, r.prefix+key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrap(err, "redis get")
	}
	return val, true, nil
}

func (r *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := r.c.Set(ctx, r.prefix+key, value, ttl).Err(); err != nil {
		return errors.Wrap(err, "redis set")
	}
	return nil
}

func (r *RedisCache) Delete(ctx context.Context, key string) error {
	if err := r.c.Del(ctx, r.prefix+key).Err(); err != nil {
		return errors.Wrap(err, "redis del")
	}
	return nil
}

// Ping checks connectivity.
func (r *RedisCache) Ping(ctx context.Context) error {
	return errors.Wrap(r.c.Ping(ctx).Err(), "redis ping")
}

func (r *RedisCache) Close() error {
	return r.c.Close()
}
