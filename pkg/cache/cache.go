// Package cache stores per-subject match list snapshots in Redis so clients
// can render a previously seen list before the authoritative refresh lands.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Rowan-T/clover/pkg/logging"
	"github.com/Rowan-T/clover/pkg/models"
	"github.com/Rowan-T/clover/pkg/redis"
	"github.com/Rowan-T/clover/pkg/tracing"
)

const keyPrefix = "clover:matches:"

// SnapshotCache persists the last rendered match list per subject.
type SnapshotCache struct {
	client *redis.Client
	ttl    time.Duration
	logger logging.Logger
}

// NewSnapshotCache creates a new SnapshotCache
func NewSnapshotCache(client *redis.Client, ttl time.Duration, logger logging.Logger) *SnapshotCache {
	return &SnapshotCache{
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

func snapshotKey(subjectID string) string {
	return keyPrefix + subjectID
}

// Get returns the cached snapshot for the subject. A missing key returns
// (nil, nil); a corrupt snapshot is dropped and also returns (nil, nil).
func (c *SnapshotCache) Get(ctx context.Context, subjectID string) ([]models.MatchRecord, error) {
	ctx, span := tracing.StartSpan(ctx, "SnapshotCache.Get")
	defer span.End()

	raw, err := c.client.Get(ctx, snapshotKey(subjectID))
	if err != nil {
		if redis.IsNil(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read match snapshot for subject %s: %w", subjectID, err)
	}

	var records []models.MatchRecord
	if err := json.Unmarshal([]byte(raw), &records); err != nil {
		c.logger.WithContext(ctx).WithError(err).Warnf("dropping corrupt match snapshot for subject %s", subjectID)
		_ = c.client.Del(ctx, snapshotKey(subjectID))
		return nil, nil
	}

	return records, nil
}

// Set replaces the subject's snapshot with the given records.
func (c *SnapshotCache) Set(ctx context.Context, subjectID string, records []models.MatchRecord) error {
	ctx, span := tracing.StartSpan(ctx, "SnapshotCache.Set")
	defer span.End()

	payload, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("failed to encode match snapshot for subject %s: %w", subjectID, err)
	}

	if err := c.client.Set(ctx, snapshotKey(subjectID), payload, c.ttl); err != nil {
		return fmt.Errorf("failed to write match snapshot for subject %s: %w", subjectID, err)
	}

	return nil
}

// Clear removes the subject's snapshot.
func (c *SnapshotCache) Clear(ctx context.Context, subjectID string) error {
	ctx, span := tracing.StartSpan(ctx, "SnapshotCache.Clear")
	defer span.End()

	if err := c.client.Del(ctx, snapshotKey(subjectID)); err != nil {
		return fmt.Errorf("failed to clear match snapshot for subject %s: %w", subjectID, err)
	}

	return nil
}
