package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/seny03/HSE-Software-Design-sub000/internal/event"
	kafka_infra "github.com/seny03/HSE-Software-Design-sub000/internal/kafka"
	app "github.com/seny03/HSE-Software-Design-sub000/internal/payments/app/payments"
)

// OrderCreatedHandler consumes order_created events and drives the payment
// flow. The service guarantees business failures become payment_failed events
// instead of handler errors, so only infrastructure problems cause
// redelivery.
func OrderCreatedHandler(s app.PaymentService, logger *zap.Logger) kafka_infra.MessageHandler {
	return func(ctx context.Context, msg kafka.Message) error {
		var evt event.OrderCreated
		if err := json.Unmarshal(msg.Value, &evt); err != nil {
			logger.Error("Failed to unmarshal OrderCreated event",
				zap.ByteString("value", msg.Value),
				zap.Int("partition", msg.Partition),
				zap.Int64("offset", msg.Offset),
				zap.Error(err))
			return nil
		}

		logger.Info("Received OrderCreated event",
			zap.String("order_id", evt.OrderID),
			zap.String("user_id", evt.UserID),
			zap.Float64("total_amount", evt.TotalAmount),
			zap.Int("partition", msg.Partition),
			zap.Int64("offset", msg.Offset))

		if err := s.HandleOrderCreated(ctx, &evt); err != nil {
			return fmt.Errorf("failed to handle order created event for order %s: %w", evt.OrderID, err)
		}
		return nil
	}
}
