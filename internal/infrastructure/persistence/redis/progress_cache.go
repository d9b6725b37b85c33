package redis

import (
	"context"
	"encoding/json"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"read-aloud-api/internal/domain/entity"
)

// progressTTL keeps status polling cheap without letting stale progress
// outlive a pipeline step. The database remains the source of truth.
const progressTTL = 2 * time.Second

// ProgressCache is a short-TTL read cache in front of the session progress
// columns, absorbing the polling load of capture clients.
type ProgressCache struct {
	client *Client
}

// NewProgressCache creates a progress cache.
func NewProgressCache(client *Client) *ProgressCache {
	return &ProgressCache{client: client}
}

func progressKey(token string) string {
	return "capture:progress:" + token
}

// Get returns the cached progress record, or nil on miss. Errors degrade to
// a miss; polling falls back to the database.
func (c *ProgressCache) Get(ctx context.Context, token string) *entity.Progress {
	ctx, span := tracer.Start(ctx, "redis.ProgressCache.Get")
	defer span.End()

	val, err := c.client.rdb.Get(ctx, progressKey(token)).Bytes()
	if err != nil {
		span.SetAttributes(attribute.Bool("cache.hit", false))
		return nil
	}

	var progress entity.Progress
	if err := json.Unmarshal(val, &progress); err != nil {
		return nil
	}
	span.SetAttributes(attribute.Bool("cache.hit", true))
	return &progress
}

// Put stores the progress record. Failures are ignored.
func (c *ProgressCache) Put(ctx context.Context, token string, progress entity.Progress) {
	ctx, span := tracer.Start(ctx, "redis.ProgressCache.Put")
	defer span.End()

	bytes, err := json.Marshal(progress)
	if err != nil {
		return
	}
	if err := c.client.rdb.Set(ctx, progressKey(token), bytes, progressTTL).Err(); err != nil {
		span.RecordError(err)
	}
}

// Invalidate drops the cached record, forcing the next poll to the database.
func (c *ProgressCache) Invalidate(ctx context.Context, token string) {
	_ = c.client.rdb.Del(ctx, progressKey(token)).Err()
}
