// Package kafka publishes report rows to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/reservoir-data-etl/internal/config"
	"github.com/couchcryptid/reservoir-data-etl/internal/domain"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Publisher produces one message per report row, keyed by site id so a
// compacted topic keeps the latest row per location.
// It implements pipeline.ReportPublisher.
type Publisher struct {
	writer messageWriter
	logger *slog.Logger
}

// NewPublisher creates a producer for the configured report topic.
func NewPublisher(cfg *config.Config, logger *slog.Logger) *Publisher {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.KafkaBrokers...),
		Topic:                  cfg.KafkaReportTopic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return &Publisher{writer: w, logger: logger}
}

// Publish writes rows in a single WriteMessages call.
func (p *Publisher) Publish(ctx context.Context, rows []domain.OutputRow) error {
	if len(rows) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(rows))
	for i := range rows {
		msg, err := serializeRow(rows[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish %d report rows: %w", len(rows), err)
	}
	p.logger.Debug("report published", "rows", len(rows))
	return nil
}

// Close flushes pending messages and closes the underlying writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}

func serializeRow(row domain.OutputRow) (kafkago.Message, error) {
	data, err := json.Marshal(row)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize report row %s: %w", row.SiteID, err)
	}
	return kafkago.Message{
		Key:   []byte(row.SiteID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "source_type", Value: []byte(row.Source)},
			{Key: "date_queried", Value: []byte(row.DateQueried.Format(time.DateOnly))},
		},
	}, nil
}
