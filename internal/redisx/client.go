package redisx

import (
	"context"
	"github.com/redis/go-redis/v9"
	"time"
)

func New(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
}

func Exists(ctx context.Context, rdb redis.Cmdable, key string) (bool, error) {
	n, err := rdb.Exists(ctx, key).Result()
	return n > 0, err
}

// MarkOnce sets key if absent and reports whether this call set it.
func MarkOnce(ctx context.Context, rdb redis.Cmdable, key string, ttl time.Duration) (bool, error) {
	return rdb.SetNX(ctx, key, "1", ttl).Result()
}

// Dedup tracks processed event ids under KeyDedup keys.
type Dedup struct {
	Client redis.Cmdable
}

func (d *Dedup) Exists(ctx context.Context, key string) (bool, error) {
	return Exists(ctx, d.Client, key)
}

func (d *Dedup) Mark(ctx context.Context, key string, ttl time.Duration) error {
	_, err := MarkOnce(ctx, d.Client, key, ttl)
	return err
}
