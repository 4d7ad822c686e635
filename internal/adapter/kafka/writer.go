package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/sounding-graphs/internal/config"
	"github.com/couchcryptid/sounding-graphs/internal/domain"
	"github.com/couchcryptid/sounding-graphs/internal/output"
	"github.com/couchcryptid/sounding-graphs/internal/pipeline"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Writer publishes merged series to a Kafka topic.
// It implements pipeline.Sink.
type Writer struct {
	writer messageWriter
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// Deliver publishes one message per merged series, keyed by site and model
// so every update of a series lands on the same partition.
func (w *Writer) Deliver(ctx context.Context, r pipeline.Result) error {
	msg, err := serializeToMessage(output.NewDocument(r), domain.Clock().Now())
	if err != nil {
		return err
	}
	if err := w.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish %s to kafka: %w", msg.Key, err)
	}
	w.logger.Debug("published to kafka", "key", string(msg.Key), "bytes", len(msg.Value))
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a Document into a Kafka message.
func serializeToMessage(doc output.Document, processedAt time.Time) (kafkago.Message, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize merged series: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(doc.Key()),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "message_id", Value: []byte(uuid.NewString())},
			{Key: "model", Value: []byte(doc.Model)},
			{Key: "processed_at", Value: []byte(processedAt.UTC().Format(time.RFC3339))},
		},
	}, nil
}
