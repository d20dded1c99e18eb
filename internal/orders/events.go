package orders

import (
	"encoding/json"
	"github.com/google/uuid"
	"time"
)

const (
	EventOrderCreated       = "OrderCreated"
	EventOrderStatusChanged = "OrderStatusChanged"
)

type Envelope struct {
	EventID       string          `json:"event_id"`      // uuid
	EventType     string          `json:"event_type"`    // salah satu const di atas
	EventVersion  int             `json:"event_version"` // 1
	OccurredAt    time.Time       `json:"occurred_at"`   // RFC3339
	Producer      string          `json:"producer"`      // e.g., "esim-api"
	CorrelationID string          `json:"correlation_id,omitempty"` // order_id
	Payload       json.RawMessage `json:"payload"`
}

type OrderCreatedPayload struct {
	OrderID        string `json:"order_id"`
	Kind           Kind   `json:"kind"`
	FundingAddress string `json:"funding_address"`
	PackageID      string `json:"package_id"`
	Quantity       int    `json:"quantity"`
	FiatPrice      string `json:"fiat_price"`
	PaymentNative  string `json:"payment_native"`
}

type OrderStatusChangedPayload struct {
	OrderID  string `json:"order_id"`
	Kind     Kind   `json:"kind"`
	From     Status `json:"from"`
	To       Status `json:"to"`
	ErrorLog string `json:"error_log,omitempty"`
}

// EventPublisher is satisfied by the Kafka producer.
type EventPublisher interface {
	PublishEvent(key, eventType string, body []byte)
}

func NewEnvelope(eventType, producer, orderID string, at time.Time, payload any) (Envelope, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    at.UTC(),
		Producer:      producer,
		CorrelationID: orderID,
		Payload:       b,
	}, nil
}
