package audit

import (
	"context"
	"errors"
	kafkax "github.com/ariefcatur/go-esim-orders/internal/kafka"
	"github.com/ariefcatur/go-esim-orders/internal/orders"
	"github.com/ariefcatur/go-esim-orders/internal/postgres"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	"testing"
	"time"
)

type memSink struct {
	events []postgres.OrderEvent
	err    error
}

func (s *memSink) Append(_ context.Context, e postgres.OrderEvent) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	for _, x := range s.events {
		if x.EventID == e.EventID {
			return false, nil
		}
	}
	s.events = append(s.events, e)
	return true, nil
}

type memDedup map[string]bool

func (d memDedup) Exists(_ context.Context, key string) (bool, error) { return d[key], nil }

func (d memDedup) Mark(_ context.Context, key string, _ time.Duration) error {
	d[key] = true
	return nil
}

func message(t *testing.T, eventType string, payload any) kafkago.Message {
	t.Helper()
	env, err := orders.NewEnvelope(eventType, "esim-api", "o-1", time.Now(), payload)
	require.NoError(t, err)
	return kafkago.Message{
		Key:     orders.PartitionKey("o-1"),
		Value:   kafkax.MustMarshal(env),
		Headers: []kafkago.Header{{Key: kafkax.HeaderEventType, Value: []byte(eventType)}},
	}
}

func TestHandleOrderEventRecordsTransitions(t *testing.T) {
	sink, dd := &memSink{}, memDedup{}
	svc := &Service{Sink: sink, Dedup: dd, ServiceName: "auditor"}
	ctx := context.Background()

	require.NoError(t, svc.HandleOrderEvent(ctx, message(t, orders.EventOrderCreated, orders.OrderCreatedPayload{
		OrderID: "o-1", Kind: orders.KindPurchase,
	})))
	changed := message(t, orders.EventOrderStatusChanged, orders.OrderStatusChangedPayload{
		OrderID: "o-1", Kind: orders.KindPurchase, From: orders.StatusPending, To: orders.StatusPaid,
	})
	require.NoError(t, svc.HandleOrderEvent(ctx, changed))
	// redelivery
	require.NoError(t, svc.HandleOrderEvent(ctx, changed))

	require.Len(t, sink.events, 2)
	require.Equal(t, "pending", sink.events[0].ToStatus)
	require.Equal(t, "pending", sink.events[1].FromStatus)
	require.Equal(t, "paid", sink.events[1].ToStatus)
	require.Len(t, dd, 2)
}

func TestHandleOrderEventSinkFailureIsRetried(t *testing.T) {
	sink, dd := &memSink{err: errors.New("db down")}, memDedup{}
	svc := &Service{Sink: sink, Dedup: dd, ServiceName: "auditor"}
	msg := message(t, orders.EventOrderStatusChanged, orders.OrderStatusChangedPayload{OrderID: "o-1", To: orders.StatusFailed})

	require.Error(t, svc.HandleOrderEvent(context.Background(), msg))
	require.Empty(t, dd)

	sink.err = nil
	require.NoError(t, svc.HandleOrderEvent(context.Background(), msg))
	require.Len(t, sink.events, 1)
}

func TestHandleOrderEventSkipsUnknownAndGarbage(t *testing.T) {
	sink := &memSink{}
	svc := &Service{Sink: sink, Dedup: memDedup{}, ServiceName: "auditor"}

	require.NoError(t, svc.HandleOrderEvent(context.Background(), message(t, "StockReserved", map[string]string{})))
	require.NoError(t, svc.HandleOrderEvent(context.Background(), kafkago.Message{Value: []byte("not json")}))
	require.Empty(t, sink.events)
}
