package event

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Type tags stored in the outbox event_type column and used to pick the
// decode arm in Decode.
const (
	TypeOrderCreated     = "order_created"
	TypePaymentCompleted = "payment_completed"
	TypePaymentFailed    = "payment_failed"
)

// Kafka topics. Every event for one order is keyed by the order id, so all
// of them land on the same partition and keep their enqueue order.
const (
	TopicOrderCreated     = "order-created-topic"
	TopicPaymentCompleted = "payment-completed-topic"
	TopicPaymentFailed    = "payment-failed-topic"
)

var ErrUnknownType = errors.New("unknown event type")

// Event is one message on the wire. Key is the broker partition key.
type Event interface {
	Type() string
	Topic() string
	Key() string
}

type OrderCreated struct {
	OrderID     string    `json:"order_id"`
	UserID      string    `json:"user_id"`
	TotalAmount float64   `json:"total_amount"`
	Timestamp   time.Time `json:"timestamp"`
}

func (OrderCreated) Type() string  { return TypeOrderCreated }
func (OrderCreated) Topic() string { return TopicOrderCreated }
func (e OrderCreated) Key() string { return e.OrderID }

type PaymentCompleted struct {
	OrderID       string    `json:"order_id"`
	UserID        string    `json:"user_id"`
	Amount        float64   `json:"amount"`
	TransactionID string    `json:"transaction_id"`
	Timestamp     time.Time `json:"timestamp"`
}

func (PaymentCompleted) Type() string  { return TypePaymentCompleted }
func (PaymentCompleted) Topic() string { return TopicPaymentCompleted }
func (e PaymentCompleted) Key() string { return e.OrderID }

type PaymentFailed struct {
	OrderID   string    `json:"order_id"`
	UserID    string    `json:"user_id"`
	Amount    float64   `json:"amount"`
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}

func (PaymentFailed) Type() string  { return TypePaymentFailed }
func (PaymentFailed) Topic() string { return TopicPaymentFailed }
func (e PaymentFailed) Key() string { return e.OrderID }

// Decode deserializes a payload by its type tag. The outbox relay uses it to
// route each stored message to its topic without knowing the schemas itself.
func Decode(eventType string, payload []byte) (Event, error) {
	switch eventType {
	case TypeOrderCreated:
		var e OrderCreated
		if err := json.Unmarshal(payload, &e); err != nil {
			return nil, fmt.Errorf("failed to decode %s payload: %w", eventType, err)
		}
		return e, nil
	case TypePaymentCompleted:
		var e PaymentCompleted
		if err := json.Unmarshal(payload, &e); err != nil {
			return nil, fmt.Errorf("failed to decode %s payload: %w", eventType, err)
		}
		return e, nil
	case TypePaymentFailed:
		var e PaymentFailed
		if err := json.Unmarshal(payload, &e); err != nil {
			return nil, fmt.Errorf("failed to decode %s payload: %w", eventType, err)
		}
		return e, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, eventType)
	}
}
