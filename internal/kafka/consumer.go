package kafka

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// MessageHandler processes one fetched message. Returning an error makes the
// consumer retry the same message; handlers must swallow business-level
// failures and only fail on infrastructure errors.
type MessageHandler func(ctx context.Context, message kafka.Message) error

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Consumer struct {
	reader         messageReader
	topic          string
	groupID        string
	logger         *zap.Logger
	handler        MessageHandler
	handlerTimeout time.Duration
	retryBackoff   time.Duration
}

func NewConsumer(brokers []string, topic, groupID string, handler MessageHandler, l *zap.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       10e3,
		MaxBytes:       10e6,
		CommitInterval: time.Second,
		Logger:         kafka.LoggerFunc(l.Sugar().Debugf),
		ErrorLogger:    kafka.LoggerFunc(l.Sugar().Errorf),
	})

	return &Consumer{
		reader:         reader,
		topic:          topic,
		groupID:        groupID,
		logger:         l,
		handler:        handler,
		handlerTimeout: 25 * time.Second,
		retryBackoff:   time.Second,
	}
}

// Consume runs the fetch/handle/commit loop until ctx is cancelled.
func (c *Consumer) Consume(ctx context.Context) error {
	c.logger.Info("Kafka consumer starting message consumption",
		zap.String("topic", c.topic),
		zap.String("group_id", c.groupID),
	)

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("Context cancelled, stopping consumer.", zap.String("topic", c.topic))
			return ctx.Err()
		default:
		}

		fetchCtx, cancelFetch := context.WithTimeout(ctx, 5*time.Second)
		m, err := c.reader.FetchMessage(fetchCtx)
		cancelFetch()

		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			if errors.Is(err, context.Canceled) || errors.Is(err, kafka.ErrGroupClosed) {
				c.logger.Info("Consumer stopping due to context cancellation or reader closure.",
					zap.String("topic", c.topic))
				return nil
			}
			c.logger.Error("Error fetching message from Kafka", zap.Error(err), zap.String("topic", c.topic))
			time.Sleep(1 * time.Second)
			continue
		}

		if err := c.handleWithRetry(ctx, m); err != nil {
			return err
		}

		commitCtx, cancelCommit := context.WithTimeout(context.Background(), 5*time.Second)
		if err := c.reader.CommitMessages(commitCtx, m); err != nil {
			c.logger.Error("Failed to commit offset for message",
				zap.String("topic", m.Topic),
				zap.Int("partition", m.Partition),
				zap.Int64("offset", m.Offset),
				zap.Error(err))
		}
		cancelCommit()
	}
}

// handleWithRetry keeps retrying one message until the handler accepts it or
// ctx is cancelled. Group offsets are a single high-water mark per partition:
// committing a later message would implicitly commit this one too, so the loop
// must not fetch past a message whose handler keeps failing.
func (c *Consumer) handleWithRetry(ctx context.Context, m kafka.Message) error {
	for attempt := 1; ; attempt++ {
		handleCtx, cancelHandle := context.WithTimeout(ctx, c.handlerTimeout)
		err := c.handler(handleCtx, m)
		cancelHandle()
		if err == nil {
			return nil
		}

		c.logger.Error("Error handling Kafka message, retrying",
			zap.String("topic", m.Topic),
			zap.Int("partition", m.Partition),
			zap.Int64("offset", m.Offset),
			zap.Int("attempt", attempt),
			zap.Error(err))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.retryBackoff):
		}
	}
}

func (c *Consumer) Close() error {
	if err := c.reader.Close(); err != nil {
		c.logger.Error("Failed to close Kafka consumer reader", zap.Error(err), zap.String("topic", c.topic))
		return fmt.Errorf("failed to close Kafka consumer reader: %w", err)
	}
	c.logger.Info("Kafka consumer reader closed.", zap.String("topic", c.topic))
	return nil
}
