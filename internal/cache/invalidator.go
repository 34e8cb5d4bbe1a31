package cache

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"github.com/pagelens/pagelens/internal/config"
)

// ingestNotice is what the ingestion pipeline publishes after committing a
// batch of events for a project.
type ingestNotice struct {
	ProjectID string `json:"project_id"`
}

// Invalidator consumes ingest notifications and drops the affected
// project's cached reports, keeping cached dashboards from outliving the
// data they summarize.
type Invalidator struct {
	reader *kafka.Reader
	cache  *ReportCache
}

func NewInvalidator(cfg config.KafkaConfig, cache *ReportCache) *Invalidator {
	topic := cfg.Topics["ingested"]
	if topic == "" {
		topic = "pagelens.events.ingested"
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		Topic:       topic,
		GroupID:     cfg.ConsumerGroup,
		MinBytes:    1e3,  // 1KB
		MaxBytes:    10e6, // 10MB
		StartOffset: kafka.LastOffset,
	})

	return &Invalidator{reader: reader, cache: cache}
}

// Start consumes until the context is cancelled.
func (i *Invalidator) Start(ctx context.Context) {
	log.Info().
		Str("topic", i.reader.Config().Topic).
		Str("group", i.reader.Config().GroupID).
		Msg("Starting cache invalidator")

	for {
		msg, err := i.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				log.Info().Msg("Cache invalidator stopped")
				return
			}
			log.Error().Err(err).Msg("Failed to fetch ingest notification")
			continue
		}

		var notice ingestNotice
		if err := json.Unmarshal(msg.Value, &notice); err != nil || notice.ProjectID == "" {
			log.Error().Err(err).Str("value", string(msg.Value)).Msg("Failed to parse ingest notification")
			// Still commit to avoid getting stuck
			if err := i.reader.CommitMessages(ctx, msg); err != nil {
				log.Error().Err(err).Msg("Failed to commit ingest notification")
			}
			continue
		}

		if err := i.cache.InvalidateProject(ctx, notice.ProjectID); err != nil {
			log.Error().Err(err).Str("project_id", notice.ProjectID).Msg("Failed to invalidate cached reports")
		}

		if err := i.reader.CommitMessages(ctx, msg); err != nil {
			log.Error().Err(err).Msg("Failed to commit ingest notification")
		}
	}
}

func (i *Invalidator) Close() error {
	return i.reader.Close()
}
