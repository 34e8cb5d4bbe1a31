// Package cache holds computed reports in Redis. A cached report is only
// reusable when every input that shapes it matches, so the key covers the
// project, window length, filters, funnel and retention configuration.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/pagelens/pagelens/internal/analytics"
)

const keyPrefix = "report:"

// ReportCache is a TTL'd report store. Entries are additionally dropped
// when an ingest notification arrives for the project (see Invalidator),
// since new events change every derived view.
type ReportCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewReportCache(rdb *redis.Client, ttl time.Duration) *ReportCache {
	return &ReportCache{rdb: rdb, ttl: ttl}
}

// Key builds the cache key for a request. The project id stays in clear so
// invalidation can target one project's entries; the rest of the inputs
// collapse into a digest.
func Key(req analytics.Request) string {
	req.Normalize()
	payload := fmt.Sprintf("%d|%s|%s|%s",
		req.RangeDays,
		req.Filters.CanonicalString(),
		strings.Join(req.FunnelSteps, ","),
		req.RetentionEvent,
	)
	sum := sha256.Sum256([]byte(payload))
	return keyPrefix + req.ProjectID + ":" + hex.EncodeToString(sum[:8])
}

// Get returns the cached report for key, or nil on miss. Decode failures
// count as misses.
func (c *ReportCache) Get(ctx context.Context, key string) *analytics.Report {
	data, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		return nil
	}
	var report analytics.Report
	if err := json.Unmarshal(data, &report); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Dropping undecodable cached report")
		c.rdb.Del(ctx, key)
		return nil
	}
	return &report
}

// Set stores a report. Cache failures are logged, never surfaced; the
// report was already computed.
func (c *ReportCache) Set(ctx context.Context, key string, report *analytics.Report) {
	data, err := json.Marshal(report)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal report for cache")
		return
	}
	if err := c.rdb.Set(ctx, key, data, c.ttl).Err(); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Failed to cache report")
	}
}

// InvalidateProject drops every cached report for a project.
func (c *ReportCache) InvalidateProject(ctx context.Context, projectID string) error {
	keys, err := c.rdb.Keys(ctx, keyPrefix+projectID+":*").Result()
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		return err
	}
	log.Debug().Str("project_id", projectID).Int("count", len(keys)).Msg("Invalidated cached reports")
	return nil
}
