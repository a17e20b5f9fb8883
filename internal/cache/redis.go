package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/mmynk/contri/internal/metrics"
	"github.com/mmynk/contri/internal/models"
)

const keyPrefix = "contri:group:"

// RedisCache keeps JSON-encoded group views in Redis with a TTL.
// Concurrent misses for the same group share one load.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	group  singleflight.Group
}

var _ GroupCache = (*RedisCache)(nil)

// NewRedis creates a cache on top of client. Entries expire after ttl.
func NewRedis(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

func key(groupID string) string {
	return keyPrefix + groupID
}

// Get returns the cached view, loading and storing it on a miss. Redis
// errors degrade to a direct load; they are never returned to the caller.
func (c *RedisCache) Get(ctx context.Context, groupID string, load Loader) (*models.GroupView, error) {
	raw, err := c.client.Get(ctx, key(groupID)).Bytes()
	switch {
	case err == nil:
		var view models.GroupView
		if err := json.Unmarshal(raw, &view); err == nil {
			metrics.CacheRequests.WithLabelValues("hit").Inc()
			return &view, nil
		}
		slog.Warn("Discarding undecodable cached view", "group_id", groupID)
	case errors.Is(err, redis.Nil):
	default:
		metrics.CacheRequests.WithLabelValues("error").Inc()
		slog.Warn("Cache read failed", "group_id", groupID, "error", err)
	}
	metrics.CacheRequests.WithLabelValues("miss").Inc()

	v, err, _ := c.group.Do(groupID, func() (any, error) {
		view, err := load(ctx)
		if err != nil {
			return nil, err
		}
		c.store(ctx, groupID, view)
		return view, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*models.GroupView), nil
}

func (c *RedisCache) store(ctx context.Context, groupID string, view *models.GroupView) {
	raw, err := json.Marshal(view)
	if err != nil {
		slog.Warn("Failed to encode group view", "group_id", groupID, "error", err)
		return
	}
	if err := c.client.Set(ctx, key(groupID), raw, c.ttl).Err(); err != nil {
		slog.Warn("Cache write failed", "group_id", groupID, "error", err)
	}
}

// Invalidate deletes the cached view for groupID.
func (c *RedisCache) Invalidate(ctx context.Context, groupID string) error {
	if err := c.client.Del(ctx, key(groupID)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate group %s: %w", groupID, err)
	}
	return nil
}
