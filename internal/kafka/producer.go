package kafka

import (
	"context"
	"fmt"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type Producer interface {
	Produce(ctx context.Context, topic string, key, value []byte) error
	Close() error
}

type kafkaProducer struct {
	writer *kafka.Writer
	logger *zap.Logger
}

// NewProducer builds a writer shared by all topics. The Hash balancer routes
// every message with the same key to the same partition, which is what keeps
// per-order ordering.
func NewProducer(brokers []string, l *zap.Logger) (Producer, error) {
	writer := &kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Balancer: &kafka.Hash{},
		Logger:   zap.NewStdLog(l.With(zap.String("kafka_component", "producer"))),
	}

	l.Info("Kafka producer initialized", zap.Strings("brokers", brokers))
	return &kafkaProducer{writer: writer, logger: l}, nil
}

func (p *kafkaProducer) Produce(ctx context.Context, topic string, key, value []byte) error {
	msg := kafka.Message{
		Topic: topic,
		Key:   key,
		Value: value,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("Failed to produce message to Kafka topic",
			zap.String("topic", topic),
			zap.ByteString("key", key),
			zap.Error(err))
		return fmt.Errorf("failed to produce message: %w", err)
	}
	p.logger.Debug("Produced message to topic", zap.String("topic", topic), zap.ByteString("key", key))
	return nil
}

func (p *kafkaProducer) Close() error {
	if err := p.writer.Close(); err != nil {
		p.logger.Error("Failed to close Kafka producer", zap.Error(err))
		return fmt.Errorf("failed to close Kafka producer: %w", err)
	}
	return nil
}
