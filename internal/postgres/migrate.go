package postgres

import (
	"context"
	"fmt"
	"github.com/jackc/pgx/v5/pgxpool"
)

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS documents (
		key        TEXT PRIMARY KEY,
		value      JSONB NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS order_events (
		event_id    UUID PRIMARY KEY,
		event_type  TEXT NOT NULL,
		order_id    TEXT NOT NULL,
		kind        TEXT NOT NULL,
		from_status TEXT NOT NULL DEFAULT '',
		to_status   TEXT NOT NULL,
		error_log   TEXT NOT NULL DEFAULT '',
		producer    TEXT NOT NULL,
		occurred_at TIMESTAMPTZ NOT NULL,
		recorded_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS order_events_order_idx ON order_events (order_id, occurred_at)`,
}

func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for i, stmt := range migrations {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	return nil
}
