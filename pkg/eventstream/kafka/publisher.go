package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/flightdeskco/flightdesk/pkg/eventstream"
)

// Publisher writes processed-message events to a Kafka topic. Events are
// keyed by user ID so every user's events land on one partition in order.
type Publisher struct {
	writer *kafka.Writer
	logger *zap.Logger
}

// Config holds the Kafka connection settings for the publisher.
type Config struct {
	Brokers []string
	Topic   string
}

// NewPublisher creates a Kafka-backed eventstream publisher.
func NewPublisher(cfg Config, logger *zap.Logger) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
	}

	return &Publisher{
		writer: writer,
		logger: logger,
	}
}

// PublishMessageProcessed serializes the event as JSON and writes it keyed
// by user ID.
func (p *Publisher) PublishMessageProcessed(ctx context.Context, event *eventstream.MessageProcessedEvent) error {
	if event == nil {
		return eventstream.ErrNilEvent
	}

	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshaling event %s: %w", event.EventID, err)
	}

	msg := kafka.Message{
		Key:   []byte(event.UserID),
		Value: value,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("failed to publish event",
			zap.String("event_id", event.EventID),
			zap.String("user_id", event.UserID),
			zap.Error(err))
		return fmt.Errorf("writing event %s: %w", event.EventID, err)
	}

	return nil
}

// Close flushes and closes the underlying writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}
