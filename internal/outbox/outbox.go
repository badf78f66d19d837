package outbox

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/seny03/HSE-Software-Design-sub000/internal/event"
)

// Message is one row of a service's outbox table. A row with nil SentAt is
// pending; once the relay hands it to the broker SentAt is set and the row
// becomes immutable history.
type Message struct {
	ID          string
	EventType   string
	AggregateID string
	Payload     []byte
	CreatedAt   time.Time
	SentAt      *time.Time
}

// NewMessage serializes an event into an outbox row keyed by the event's
// partition key.
func NewMessage(e event.Event) (*Message, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s event: %w", e.Type(), err)
	}
	return &Message{
		ID:          uuid.New().String(),
		EventType:   e.Type(),
		AggregateID: e.Key(),
		Payload:     payload,
		CreatedAt:   time.Now(),
	}, nil
}

// InsertTx writes the message inside the caller's transaction. This is the
// half of the outbox pattern that rides along with the domain write.
func InsertTx(ctx context.Context, tx *sql.Tx, msg *Message) error {
	query := `INSERT INTO outbox_messages (id, event_type, aggregate_id, payload, created_at) VALUES ($1, $2, $3, $4, $5)`
	if _, err := tx.ExecContext(ctx, query, msg.ID, msg.EventType, msg.AggregateID, msg.Payload, msg.CreatedAt); err != nil {
		return fmt.Errorf("tx failed to create outbox message: %w", err)
	}
	return nil
}
