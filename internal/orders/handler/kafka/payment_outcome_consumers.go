package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/seny03/HSE-Software-Design-sub000/internal/event"
	kafka_infra "github.com/seny03/HSE-Software-Design-sub000/internal/kafka"
	app "github.com/seny03/HSE-Software-Design-sub000/internal/orders/app/orders"
)

// PaymentCompletedHandler consumes payment-completed events and re-marks the
// order PAID. Malformed payloads are dropped rather than redelivered forever.
func PaymentCompletedHandler(s app.OrderService, logger *zap.Logger) kafka_infra.MessageHandler {
	return func(ctx context.Context, msg kafka.Message) error {
		var evt event.PaymentCompleted
		if err := json.Unmarshal(msg.Value, &evt); err != nil {
			logger.Error("Failed to unmarshal PaymentCompleted event",
				zap.ByteString("value", msg.Value),
				zap.Int("partition", msg.Partition),
				zap.Int64("offset", msg.Offset),
				zap.Error(err))
			return nil
		}

		logger.Info("Received PaymentCompleted event",
			zap.String("order_id", evt.OrderID),
			zap.Int("partition", msg.Partition),
			zap.Int64("offset", msg.Offset))

		if err := s.HandlePaymentCompleted(ctx, &evt); err != nil {
			return fmt.Errorf("failed to handle payment completed for order %s: %w", evt.OrderID, err)
		}
		return nil
	}
}

func PaymentFailedHandler(s app.OrderService, logger *zap.Logger) kafka_infra.MessageHandler {
	return func(ctx context.Context, msg kafka.Message) error {
		var evt event.PaymentFailed
		if err := json.Unmarshal(msg.Value, &evt); err != nil {
			logger.Error("Failed to unmarshal PaymentFailed event",
				zap.ByteString("value", msg.Value),
				zap.Int("partition", msg.Partition),
				zap.Int64("offset", msg.Offset),
				zap.Error(err))
			return nil
		}

		logger.Info("Received PaymentFailed event",
			zap.String("order_id", evt.OrderID),
			zap.String("reason", evt.Reason),
			zap.Int("partition", msg.Partition),
			zap.Int64("offset", msg.Offset))

		if err := s.HandlePaymentFailed(ctx, &evt); err != nil {
			return fmt.Errorf("failed to handle payment failed for order %s: %w", evt.OrderID, err)
		}
		return nil
	}
}
