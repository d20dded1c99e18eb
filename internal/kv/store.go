package kv

import (
	"context"
	"errors"
)

// Store is the durable per-key document store. Values are JSON documents;
// there are no cross-key transactions and writes are last-writer-wins.
type Store interface {
	// Get decodes the document at key into out. ok is false when key is absent.
	Get(ctx context.Context, key string, out any) (ok bool, err error)
	Set(ctx context.Context, key string, v any) error
	Exists(ctx context.Context, key string) (bool, error)
}

var ErrEmptyKey = errors.New("kv: empty key")
