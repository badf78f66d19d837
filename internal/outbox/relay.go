package outbox

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/seny03/HSE-Software-Design-sub000/internal/event"
)

type Store interface {
	ListPending(ctx context.Context, limit int) ([]*Message, error)
	MarkSent(ctx context.Context, ids []string) error
}

type Producer interface {
	Produce(ctx context.Context, topic string, key, value []byte) error
}

// Relay is the background publisher half of the outbox pattern. It polls the
// store for pending messages, publishes each one keyed by its aggregate id,
// and marks the published page sent in a single batch. A message whose
// publish fails simply stays pending and is retried on a later pass, which
// makes delivery at-least-once; consumers are idempotent to absorb the
// duplicates.
type Relay struct {
	store     Store
	producer  Producer
	interval  time.Duration
	batchSize int
	logger    *zap.Logger
}

func NewRelay(store Store, producer Producer, interval time.Duration, batchSize int, logger *zap.Logger) *Relay {
	return &Relay{
		store:     store,
		producer:  producer,
		interval:  interval,
		batchSize: batchSize,
		logger:    logger,
	}
}

// Run loops until ctx is cancelled. Each tick is an independent pass; errors
// are logged and the loop keeps going.
func (r *Relay) Run(ctx context.Context) {
	r.logger.Info("Outbox relay started",
		zap.Duration("interval", r.interval),
		zap.Int("batch_size", r.batchSize))

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Outbox relay stopping")
			return
		case <-ticker.C:
			if err := r.processBatch(ctx); err != nil {
				r.logger.Error("Error processing outbox batch", zap.Error(err))
			}
		}
	}
}

func (r *Relay) processBatch(ctx context.Context) error {
	messages, err := r.store.ListPending(ctx, r.batchSize)
	if err != nil {
		return err
	}
	if len(messages) == 0 {
		return nil
	}

	r.logger.Info("Processing pending outbox messages", zap.Int("count", len(messages)))

	var sent []string
	for _, msg := range messages {
		evt, err := event.Decode(msg.EventType, msg.Payload)
		if err != nil {
			// Undecodable rows stay pending; they need a schema fix, not a retry.
			r.logger.Error("Failed to decode outbox message payload",
				zap.String("message_id", msg.ID),
				zap.String("event_type", msg.EventType),
				zap.Error(err))
			continue
		}

		if err := r.producer.Produce(ctx, evt.Topic(), []byte(evt.Key()), msg.Payload); err != nil {
			r.logger.Error("Failed to publish outbox message",
				zap.String("message_id", msg.ID),
				zap.String("topic", evt.Topic()),
				zap.Error(err))
			continue
		}

		r.logger.Debug("Outbox message published",
			zap.String("message_id", msg.ID),
			zap.String("topic", evt.Topic()),
			zap.String("key", evt.Key()))
		sent = append(sent, msg.ID)
	}

	if len(sent) == 0 {
		return nil
	}
	if err := r.store.MarkSent(ctx, sent); err != nil {
		// Already-published messages stay pending and will be republished;
		// consumers tolerate the duplicate.
		return err
	}

	r.logger.Info("Outbox messages marked as sent", zap.Int("count", len(sent)))
	return nil
}
