package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"github.com/ariefcatur/go-esim-orders/internal/kv"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store is a kv.Store over the documents table, one row per key.
type Store struct{ DB *pgxpool.Pool }

var _ kv.Store = (*Store)(nil)

func (s *Store) Get(ctx context.Context, key string, out any) (bool, error) {
	if key == "" {
		return false, kv.ErrEmptyKey
	}
	var raw []byte
	err := s.DB.QueryRow(ctx, `SELECT value FROM documents WHERE key=$1`, key).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("select %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
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
	_, err = s.DB.Exec(ctx, `
		INSERT INTO documents(key, value, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()
	`, key, b)
	if err != nil {
		return fmt.Errorf("upsert %s: %w", key, err)
	}
	return nil
}

func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	if key == "" {
		return false, kv.ErrEmptyKey
	}
	var ok bool
	err := s.DB.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM documents WHERE key=$1)`, key).Scan(&ok)
	return ok, err
}
