package kafkastream

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/ruudy-sib/resync/internal/config"
	"github.com/ruudy-sib/resync/internal/domain/entity"
	"github.com/ruudy-sib/resync/internal/port/secondary"
)

// Publisher implements secondary.TopicPublisher using segmentio/kafka-go.
// Every realtime topic shares one Kafka topic; the message key carries the
// realtime topic so a topic's events stay ordered within a partition.
type Publisher struct {
	writer *kafka.Writer
	topic  string
	logger *zap.Logger
}

var _ secondary.TopicPublisher = (*Publisher)(nil)

// NewPublisher creates a Kafka publisher from the application configuration.
func NewPublisher(cfg *config.Config, logger *zap.Logger) *Publisher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaTopic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
	}

	logger.Info("kafka publisher initialized",
		zap.Strings("brokers", cfg.KafkaBrokers),
		zap.String("topic", cfg.KafkaTopic),
	)

	return &Publisher{
		writer: writer,
		topic:  cfg.KafkaTopic,
		logger: logger.Named("kafka-publisher"),
	}
}

// Publish writes the event to the shared Kafka topic.
func (p *Publisher) Publish(ctx context.Context, event entity.TopicEvent) error {
	msg := EncodeMessage(event)
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("writing message to kafka topic %q: %w", p.topic, err)
	}

	p.logger.Debug("realtime event published",
		zap.String("topic", p.topic),
		zap.String("event", event.Topic.EventName()),
		zap.Int("value_size", len(msg.Value)),
	)
	return nil
}

// Close shuts down the Kafka writer and releases its resources.
func (p *Publisher) Close() error {
	if p.writer != nil {
		return p.writer.Close()
	}
	return nil
}
