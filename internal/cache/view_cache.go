package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"habittracker/pkg/metrics"
)

// ViewCache stores derived per-user views keyed by calendar day. Every key
// embeds a per-user generation number; Invalidate bumps it so stale views
// are never read again and simply expire.
type ViewCache struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewViewCache(rdb *redis.Client, ttl time.Duration, logger *zap.Logger) *ViewCache {
	return &ViewCache{rdb: rdb, ttl: ttl, logger: logger}
}

func generationKey(userID string) string {
	return fmt.Sprintf("habit:view:gen:%s", userID)
}

func ViewKey(userID string, gen int64, day, view string) string {
	return fmt.Sprintf("habit:view:%s:%d:%s:%s", userID, gen, day, view)
}

func (c *ViewCache) generation(ctx context.Context, userID string) (int64, error) {
	gen, err := c.rdb.Get(ctx, generationKey(userID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

// NoGeneration is returned by Get when the generation could not be read;
// Set ignores it.
const NoGeneration int64 = -1

// Get decodes the cached view into out and reports whether it was found,
// together with the generation it looked under. Pass that generation to Set
// so a view computed before a concurrent Invalidate is stored under the dead
// generation. Redis failures count as a miss.
func (c *ViewCache) Get(ctx context.Context, userID, day, view string, out any) (int64, bool) {
	gen, err := c.generation(ctx, userID)
	if err != nil {
		c.miss(view, "error", err)
		return NoGeneration, false
	}

	raw, err := c.rdb.Get(ctx, ViewKey(userID, gen, day, view)).Bytes()
	if errors.Is(err, redis.Nil) {
		metrics.IncrementCacheLookup(view, "miss")
		return gen, false
	}
	if err != nil {
		c.miss(view, "error", err)
		return gen, false
	}
	if err := json.Unmarshal(raw, out); err != nil {
		c.miss(view, "error", err)
		return gen, false
	}

	metrics.IncrementCacheLookup(view, "hit")
	return gen, true
}

func (c *ViewCache) miss(view, result string, err error) {
	metrics.IncrementCacheLookup(view, result)
	c.logger.Warn("View cache lookup failed", zap.String("view", view), zap.Error(err))
}

// Set stores v under generation gen, as returned by Get. Errors are logged only.
func (c *ViewCache) Set(ctx context.Context, userID string, gen int64, day, view string, v any) {
	if gen == NoGeneration {
		return
	}
	raw, err := json.Marshal(v)
	if err != nil {
		c.logger.Warn("Failed to encode cached view", zap.String("view", view), zap.Error(err))
		return
	}
	if err := c.rdb.Set(ctx, ViewKey(userID, gen, day, view), raw, c.ttl).Err(); err != nil {
		c.logger.Warn("Failed to store cached view", zap.String("view", view), zap.Error(err))
	}
}

// Invalidate drops every cached view of the user.
func (c *ViewCache) Invalidate(ctx context.Context, userID string) error {
	key := generationKey(userID)
	pipe := c.rdb.TxPipeline()
	pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, 30*24*time.Hour)
	if _, err := pipe.Exec(ctx); err != nil {
		c.logger.Warn("Failed to invalidate view cache", zap.String("user_id", userID), zap.Error(err))
		return fmt.Errorf("invalidate view cache: %w", err)
	}
	return nil
}
