package redisx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"github.com/ariefcatur/go-esim-orders/internal/kv"
	"github.com/redis/go-redis/v9"
)

// Store keeps JSON documents as plain Redis strings without expiry.
type Store struct {
	Client redis.Cmdable
}

var _ kv.Store = (*Store)(nil)

func docKey(key string) string { return fmt.Sprintf(KeyDoc, key) }

func (s *Store) Get(ctx context.Context, key string, out any) (bool, error) {
	if key == "" {
		return false, kv.ErrEmptyKey
	}
	b, err := s.Client.Get(ctx, docKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("redis get %s: %w", key, err)
	}
	if err := json.Unmarshal(b, out); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

func (s *Store) Set(ctx context.Context, key string, v any) error {
	if key == "" {
		return kv.ErrEmptyKey
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := s.Client.Set(ctx, docKey(key), b, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	if key == "" {
		return false, kv.ErrEmptyKey
	}
	return Exists(ctx, s.Client, docKey(key))
}
