package outbox

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

// PostgresStore reads and mutates a single service's outbox table. Each
// service owns its own table in its own database; the store is never shared
// across services.
type PostgresStore struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewPostgresStore(db *sql.DB, l *zap.Logger) *PostgresStore {
	return &PostgresStore{db: db, logger: l}
}

// CreateMessage inserts a message outside of any surrounding transaction.
// Used for follow-up events that do not accompany a domain write, e.g. a
// payment_failed emitted for an order that changed nothing locally.
func (s *PostgresStore) CreateMessage(ctx context.Context, msg *Message) error {
	query := `INSERT INTO outbox_messages (id, event_type, aggregate_id, payload, created_at) VALUES ($1, $2, $3, $4, $5)`
	if _, err := s.db.ExecContext(ctx, query, msg.ID, msg.EventType, msg.AggregateID, msg.Payload, msg.CreatedAt); err != nil {
		s.logger.Error("Failed to create outbox message", zap.String("message_id", msg.ID), zap.Error(err))
		return fmt.Errorf("failed to create outbox message: %w", err)
	}
	s.logger.Debug("Outbox message created", zap.String("message_id", msg.ID), zap.String("event_type", msg.EventType))
	return nil
}

// ListPending returns up to limit unsent messages, oldest first.
func (s *PostgresStore) ListPending(ctx context.Context, limit int) ([]*Message, error) {
	query := `SELECT id, event_type, aggregate_id, payload, created_at, sent_at
		FROM outbox_messages
		WHERE sent_at IS NULL
		ORDER BY created_at ASC
		LIMIT $1`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		s.logger.Error("Failed to query pending outbox messages", zap.Error(err))
		return nil, fmt.Errorf("failed to query pending outbox messages: %w", err)
	}
	defer rows.Close()

	var messages []*Message
	for rows.Next() {
		msg := &Message{}
		var sentAt sql.NullTime
		if err := rows.Scan(&msg.ID, &msg.EventType, &msg.AggregateID, &msg.Payload, &msg.CreatedAt, &sentAt); err != nil {
			s.logger.Error("Failed to scan outbox message row", zap.Error(err))
			return nil, fmt.Errorf("failed to scan outbox message row: %w", err)
		}
		if sentAt.Valid {
			msg.SentAt = &sentAt.Time
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		s.logger.Error("Rows error while listing pending outbox messages", zap.Error(err))
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return messages, nil
}

// MarkSent stamps the given messages as sent in one batch. The sent_at IS
// NULL guard keeps the pending -> sent transition one-way even when two relay
// replicas race over the same page.
func (s *PostgresStore) MarkSent(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	query := `UPDATE outbox_messages SET sent_at = $1 WHERE id = ANY($2) AND sent_at IS NULL`
	res, err := s.db.ExecContext(ctx, query, time.Now(), pq.Array(ids))
	if err != nil {
		s.logger.Error("Failed to mark outbox messages as sent", zap.Int("count", len(ids)), zap.Error(err))
		return fmt.Errorf("failed to mark outbox messages as sent: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && int(affected) != len(ids) {
		s.logger.Warn("Some outbox messages were already marked sent",
			zap.Int("requested", len(ids)),
			zap.Int64("updated", affected))
	}
	return nil
}
