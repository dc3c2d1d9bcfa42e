package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/ipress-geo-dashboard/internal/config"
	"github.com/couchcryptid/ipress-geo-dashboard/internal/domain"
)

// Exporter publishes per-district hospital counts to a Kafka topic.
// It implements pipeline.Exporter.
type Exporter struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewExporter creates a Kafka producer for the configured topic.
func NewExporter(cfg *config.Config, logger *slog.Logger) *Exporter {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.KafkaBrokers...),
		Topic:                  cfg.KafkaTopic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return &Exporter{writer: w, logger: logger}
}

// ExportDistricts publishes every record in a single WriteMessages call.
// Records are keyed by UBIGEO so a district always lands on one partition.
func (e *Exporter) ExportDistricts(ctx context.Context, records []domain.DistrictCount) error {
	if len(records) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(records))
	for i := range records {
		msg, err := serializeToMessage(records[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := e.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("write district counts: %w", err)
	}
	e.logger.Info("district counts exported", "topic", e.writer.Topic, "count", len(msgs))
	return nil
}

func (e *Exporter) Close() error {
	return e.writer.Close()
}

// serializeToMessage marshals a DistrictCount into a Kafka message.
func serializeToMessage(rec domain.DistrictCount) (kafkago.Message, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize district count: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(rec.Ubigeo),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "department", Value: []byte(rec.Department)},
			{Key: "generated_at", Value: []byte(rec.GeneratedAt.Format(time.RFC3339))},
		},
	}, nil
}
