package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/civic-data-etl/internal/domain"
)

// messageWriter is the subset of *kafkago.Writer used by Notifier.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Notifier announces completed runs on a Kafka topic so downstream
// consumers (dashboard rebuilds, cache purges) can react to fresh output.
type Notifier struct {
	writer messageWriter
	topic  string
	logger *slog.Logger
}

// NewNotifier creates a producer for the given brokers and topic.
func NewNotifier(brokers []string, topic string, logger *slog.Logger) *Notifier {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return &Notifier{writer: w, topic: topic, logger: logger}
}

func (n *Notifier) Name() string { return "kafka" }

// Publish sends one message describing run.
func (n *Notifier) Publish(ctx context.Context, run domain.RunSummary) error {
	msg, err := serializeToMessage(run)
	if err != nil {
		return err
	}
	if err := n.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write to %s: %w", n.topic, err)
	}
	n.logger.InfoContext(ctx, "run notification sent",
		"pipeline", run.Pipeline, "run_id", run.RunID, "topic", n.topic)
	return nil
}

func (n *Notifier) Close() error {
	return n.writer.Close()
}

// serializeToMessage marshals a RunSummary into a Kafka message keyed by
// pipeline, so all notifications for one table land on one partition in order.
func serializeToMessage(run domain.RunSummary) (kafkago.Message, error) {
	data, err := json.Marshal(run)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize run summary: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(run.Pipeline),
		Value: data,
		Time:  run.StartedAt,
		Headers: []kafkago.Header{
			{Key: "run_id", Value: []byte(run.RunID)},
			{Key: "records", Value: []byte(strconv.Itoa(run.Records))},
			{Key: "completed_at", Value: []byte(run.StartedAt.Add(run.Duration).UTC().Format(time.RFC3339))},
		},
	}, nil
}
