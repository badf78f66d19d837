package kafka

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// EnsureTopics creates the given topics on the cluster controller. Existing
// topics are left alone.
func EnsureTopics(ctx context.Context, brokers []string, topics []string, l *zap.Logger) error {
	conn, err := kafka.DialContext(ctx, "tcp", brokers[0])
	if err != nil {
		return fmt.Errorf("failed to dial kafka broker for admin operations: %w", err)
	}
	defer conn.Close()

	controller, err := conn.Controller()
	if err != nil {
		return fmt.Errorf("failed to get kafka controller: %w", err)
	}
	controllerConn, err := kafka.DialContext(ctx, "tcp", fmt.Sprintf("%s:%d", controller.Host, controller.Port))
	if err != nil {
		return fmt.Errorf("failed to dial kafka controller: %w", err)
	}
	defer controllerConn.Close()

	topicConfigs := make([]kafka.TopicConfig, len(topics))
	for i, topic := range topics {
		topicConfigs[i] = kafka.TopicConfig{
			Topic:             topic,
			NumPartitions:     1,
			ReplicationFactor: 1,
		}
	}

	if err := controllerConn.CreateTopics(topicConfigs...); err != nil {
		if err == kafka.TopicAlreadyExists {
			l.Info("One or more Kafka topics already exist, skipping creation.")
			return nil
		}
		return fmt.Errorf("failed to create Kafka topics: %w", err)
	}

	l.Info("Kafka topics ensured successfully.", zap.Strings("topics", topics))
	return nil
}

// AwaitTopics polls broker metadata until every topic in the list exists, up
// to attempts tries spaced by backoff. Callers that favor availability over
// strict readiness log the returned error and proceed anyway.
func AwaitTopics(ctx context.Context, brokers []string, topics []string, attempts int, backoff time.Duration, l *zap.Logger) error {
	var lastErr error
	for i := 0; i < attempts; i++ {
		missing, err := missingTopics(ctx, brokers[0], topics)
		if err != nil {
			lastErr = err
			l.Warn("Failed to read Kafka topic metadata",
				zap.Int("attempt", i+1),
				zap.Int("max_attempts", attempts),
				zap.Error(err))
		} else if len(missing) == 0 {
			l.Info("All Kafka topics are ready.", zap.Strings("topics", topics))
			return nil
		} else {
			lastErr = fmt.Errorf("topics not ready: %v", missing)
			l.Info("Waiting for Kafka topics to be created",
				zap.Strings("missing", missing),
				zap.Int("attempt", i+1),
				zap.Int("max_attempts", attempts))
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
	return fmt.Errorf("kafka topics not ready after %d attempts: %w", attempts, lastErr)
}

func missingTopics(ctx context.Context, broker string, topics []string) ([]string, error) {
	conn, err := kafka.DialContext(ctx, "tcp", broker)
	if err != nil {
		return nil, fmt.Errorf("failed to dial kafka broker: %w", err)
	}
	defer conn.Close()

	partitions, err := conn.ReadPartitions()
	if err != nil {
		return nil, fmt.Errorf("failed to read partitions: %w", err)
	}

	existing := make(map[string]bool, len(partitions))
	for _, p := range partitions {
		existing[p.Topic] = true
	}

	var missing []string
	for _, topic := range topics {
		if !existing[topic] {
			missing = append(missing, topic)
		}
	}
	return missing, nil
}
