//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/couchcryptid/wind-telemetry-etl/internal/adapter/kafka"
	"github.com/couchcryptid/wind-telemetry-etl/internal/config"
	"github.com/couchcryptid/wind-telemetry-etl/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testRunsTopic = "test-etl-runs"

func TestKafkaPublisher_RoundTrip(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)

	conn, err := kafkago.DialContext(ctx, "tcp", broker)
	require.NoError(t, err)
	require.NoError(t, conn.CreateTopics(kafkago.TopicConfig{Topic: testRunsTopic, NumPartitions: 1, ReplicationFactor: 1}))
	require.NoError(t, conn.Close())

	cfg := &config.Config{KafkaBrokers: []string{broker}, KafkaRunsTopic: testRunsTopic}
	pub := kafka.NewPublisher(cfg, discardLogger())
	t.Cleanup(func() { _ = pub.Close() })

	summary := domain.RunSummary{
		RunID:       "run-1",
		Date:        "2024-04-26",
		Inserted:    1152,
		CompletedAt: time.Date(2024, 4, 27, 1, 0, 5, 0, time.UTC),
	}
	require.NoError(t, pub.PublishRun(ctx, summary))

	reader := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:   []string{broker},
		Topic:     testRunsTopic,
		Partition: 0,
		MinBytes:  1,
		MaxBytes:  1 << 20,
	})
	t.Cleanup(func() { _ = reader.Close() })

	readCtx, readCancel := context.WithTimeout(ctx, 30*time.Second)
	defer readCancel()
	msg, err := reader.ReadMessage(readCtx)
	require.NoError(t, err)

	assert.Equal(t, "2024-04-26", string(msg.Key))
	var got domain.RunSummary
	require.NoError(t, json.Unmarshal(msg.Value, &got))
	assert.Equal(t, summary.RunID, got.RunID)
	assert.Equal(t, 1152, got.Inserted)

	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	assert.Equal(t, kafka.EventRunCompleted, headers["event_type"])
	assert.Equal(t, "run-1", headers["run_id"])
}
