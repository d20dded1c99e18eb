package postgres

import (
	"context"
	"github.com/jackc/pgx/v5/pgxpool"
	"time"
)

type OrderEvent struct {
	EventID    string
	EventType  string
	OrderID    string
	Kind       string
	FromStatus string
	ToStatus   string
	ErrorLog   string
	Producer   string
	OccurredAt time.Time
}

// EventRepo is the append-only audit trail of order lifecycle events.
type EventRepo struct{ DB *pgxpool.Pool }

// Append inserts e; a redelivered event id is ignored.
func (r *EventRepo) Append(ctx context.Context, e OrderEvent) (inserted bool, err error) {
	ct, err := r.DB.Exec(ctx, `
		INSERT INTO order_events(event_id, event_type, order_id, kind, from_status, to_status, error_log, producer, occurred_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		ON CONFLICT (event_id) DO NOTHING
	`, e.EventID, e.EventType, e.OrderID, e.Kind, e.FromStatus, e.ToStatus, e.ErrorLog, e.Producer, e.OccurredAt)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() == 1, nil
}

func (r *EventRepo) ListByOrder(ctx context.Context, orderID string) ([]OrderEvent, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT event_id::text, event_type, order_id, kind, from_status, to_status, error_log, producer, occurred_at
		FROM order_events WHERE order_id=$1 ORDER BY occurred_at`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []OrderEvent
	for rows.Next() {
		var e OrderEvent
		if err := rows.Scan(&e.EventID, &e.EventType, &e.OrderID, &e.Kind, &e.FromStatus, &e.ToStatus, &e.ErrorLog, &e.Producer, &e.OccurredAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
