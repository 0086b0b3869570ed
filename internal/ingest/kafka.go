package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"github.com/shorewatch/shorewatch/internal/metrics"
	"github.com/shorewatch/shorewatch/internal/models"
)

// KafkaConfig configures the snapshot stream consumer.
type KafkaConfig struct {
	Brokers []string
	Topic   string
	GroupID string
}

// KafkaConsumer reads condition snapshots published as JSON to a topic
// and forwards them to the pipeline. Providers that push readings (buoy
// feeds, partner integrations) publish here instead of being polled.
type KafkaConsumer struct {
	reader  *kafka.Reader
	handler Handler
}

func NewKafkaConsumer(cfg KafkaConfig, handler Handler) *KafkaConsumer {
	return &KafkaConsumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:        cfg.Brokers,
			Topic:          cfg.Topic,
			GroupID:        cfg.GroupID,
			MinBytes:       1,
			MaxBytes:       1 << 20,
			CommitInterval: time.Second,
		}),
		handler: handler,
	}
}

// Run consumes until ctx is cancelled. Malformed messages are logged
// and skipped; the offset still advances so one bad message cannot
// wedge the partition.
func (c *KafkaConsumer) Run(ctx context.Context) error {
	log.Info().
		Str("topic", c.reader.Config().Topic).
		Str("groupID", c.reader.Config().GroupID).
		Msg("Starting kafka snapshot consumer")
	defer c.reader.Close()

	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}

		var snap models.ConditionSnapshot
		if err := json.Unmarshal(msg.Value, &snap); err != nil {
			log.Warn().Err(err).
				Int64("offset", msg.Offset).
				Msg("Skipping malformed snapshot message")
			metrics.IngestBeaches.WithLabelValues("error").Inc()
			continue
		}
		if snap.Source == "" {
			snap.Source = "kafka"
		}

		if err := c.handler(ctx, snap); err != nil {
			log.Warn().Err(err).
				Str("beachID", snap.BeachID).
				Msg("Snapshot handler failed")
			metrics.IngestBeaches.WithLabelValues("error").Inc()
			continue
		}
		metrics.IngestBeaches.WithLabelValues("ok").Inc()
	}
}
