// Package audit records every order lifecycle event in an append-only
// Postgres table.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	kafkax "github.com/ariefcatur/go-esim-orders/internal/kafka"
	"github.com/ariefcatur/go-esim-orders/internal/orders"
	"github.com/ariefcatur/go-esim-orders/internal/postgres"
	"github.com/ariefcatur/go-esim-orders/internal/redisx"
	logging "github.com/ipfs/go-log/v2"
	kafkago "github.com/segmentio/kafka-go"
	"time"
)

var log = logging.Logger("audit")

type EventSink interface {
	Append(ctx context.Context, e postgres.OrderEvent) (inserted bool, err error)
}

type Deduper interface {
	Exists(ctx context.Context, key string) (bool, error)
	Mark(ctx context.Context, key string, ttl time.Duration) error
}

type Service struct {
	Sink        EventSink
	Dedup       Deduper
	ServiceName string
}

// HandleOrderEvent dipasang sebagai handler consumer. Returning nil commits
// the offset.
func (s *Service) HandleOrderEvent(ctx context.Context, m kafkago.Message) error {
	// 1) decode envelope
	var env orders.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		log.Warnw("drop undecodable message", "offset", m.Offset, "err", err)
		return nil
	}
	if t := kafkax.HeaderValue(m, kafkax.HeaderEventType); t != "" && t != env.EventType {
		log.Warnw("event type header mismatch", "header", t, "envelope", env.EventType)
	}

	// 2) dedup via Redis (pakai event_id)
	dkey := fmt.Sprintf(redisx.KeyDedup, s.ServiceName, env.EventID)
	if seen, err := s.Dedup.Exists(ctx, dkey); err == nil && seen {
		return nil
	}

	// 3) decode payload
	e, ok, err := toRecord(env)
	if err != nil {
		log.Warnw("drop bad payload", "event", env.EventID, "type", env.EventType, "err", err)
		return nil
	}
	if !ok {
		return nil
	} // ignore

	// 4) append; a redelivery that slipped past dedup hits ON CONFLICT
	inserted, err := s.Sink.Append(ctx, e)
	if err != nil {
		return fmt.Errorf("append event %s: %w", env.EventID, err)
	}
	if err := s.Dedup.Mark(ctx, dkey, redisx.TTLDedup); err != nil {
		log.Warnw("mark dedup", "key", dkey, "err", err)
	}
	log.Debugw("event recorded", "event", env.EventID, "order", e.OrderID, "to", e.ToStatus, "inserted", inserted)
	return nil
}

func toRecord(env orders.Envelope) (postgres.OrderEvent, bool, error) {
	rec := postgres.OrderEvent{
		EventID:    env.EventID,
		EventType:  env.EventType,
		Producer:   env.Producer,
		OccurredAt: env.OccurredAt,
	}
	switch env.EventType {
	case orders.EventOrderCreated:
		p, err := kafkax.UnwrapPayload[orders.OrderCreatedPayload](env.Payload)
		if err != nil {
			return rec, false, err
		}
		rec.OrderID, rec.Kind, rec.ToStatus = p.OrderID, string(p.Kind), string(orders.StatusPending)
	case orders.EventOrderStatusChanged:
		p, err := kafkax.UnwrapPayload[orders.OrderStatusChangedPayload](env.Payload)
		if err != nil {
			return rec, false, err
		}
		rec.OrderID, rec.Kind = p.OrderID, string(p.Kind)
		rec.FromStatus, rec.ToStatus, rec.ErrorLog = string(p.From), string(p.To), p.ErrorLog
	default:
		return rec, false, nil
	}
	return rec, true, nil
}
