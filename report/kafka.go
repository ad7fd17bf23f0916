package report

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// KafkaPublisherConfig configures the report event stream.
type KafkaPublisherConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

// KafkaPublisher emits validation reports as JSON events keyed by catalog
// id, so downstream consumers see every run for a catalog in order.
type KafkaPublisher struct {
	writer *kafka.Writer
	logger *zap.Logger
}

// NewKafkaPublisher creates a publisher for the configured topic.
func NewKafkaPublisher(config *KafkaPublisherConfig, logger *zap.Logger) *KafkaPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(config.Brokers...),
			Topic:    config.Topic,
			Balancer: &kafka.Hash{},
		},
		logger: logger,
	}
}

// Publish writes one report event.
func (p *KafkaPublisher) Publish(ctx context.Context, report *Report) error {
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(report.CatalogID),
		Value: data,
	})
	if err != nil {
		return fmt.Errorf("publishing report for %s: %w", report.CatalogID, err)
	}

	p.logger.Info("report published",
		zap.String("catalog_id", report.CatalogID),
		zap.Int("errors", report.Summary.Errors),
		zap.Int("warnings", report.Summary.Warnings),
	)
	return nil
}

// Close flushes and closes the writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
