package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/wind-telemetry-etl/internal/config"
	"github.com/couchcryptid/wind-telemetry-etl/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// EventRunCompleted is the event_type header of a successful run.
const EventRunCompleted = "run_completed"

// Publisher produces run summaries to a Kafka topic.
// It implements pipeline.RunPublisher.
type Publisher struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewPublisher creates a Kafka producer for the configured runs topic.
func NewPublisher(cfg *config.Config, logger *slog.Logger) *Publisher {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.KafkaBrokers...),
		Topic:                  cfg.KafkaRunsTopic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return &Publisher{writer: w, logger: logger}
}

// PublishRun writes one message per run, keyed by date so all runs for a date
// land on the same partition in order.
func (p *Publisher) PublishRun(ctx context.Context, summary domain.RunSummary) error {
	msg, err := serializeToMessage(summary)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish run %s: %w", summary.Date, err)
	}
	p.logger.Debug("run event published", "date", summary.Date, "run_id", summary.RunID)
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

// serializeToMessage marshals a RunSummary into a Kafka message.
func serializeToMessage(summary domain.RunSummary) (kafkago.Message, error) {
	data, err := json.Marshal(summary)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize run summary: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(summary.Date),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "event_type", Value: []byte(EventRunCompleted)},
			{Key: "run_id", Value: []byte(summary.RunID)},
			{Key: "completed_at", Value: []byte(summary.CompletedAt.UTC().Format(time.RFC3339))},
		},
	}, nil
}
