package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/smartlipad/smartlipad-go/internal/services"
)

// ForecastCacheStats tracks cache performance counters.
type ForecastCacheStats struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
	Sets   int64 `json:"sets"`
	mu     sync.RWMutex
}

// forecastCacheEntry wraps a cached result with its capture time.
type forecastCacheEntry struct {
	Result   *services.ForecastResult `json:"result"`
	CachedAt time.Time                `json:"cached_at"`
}

// RedisForecastCache caches full forecast responses per route pair and
// horizon. It sits in front of the orchestrator so repeated identical
// requests inside the TTL never touch the pipeline at all. Cache errors
// degrade to misses; Redis being down must not break forecasting.
type RedisForecastCache struct {
	redis  *redis.Client
	ttl    time.Duration
	stats  *ForecastCacheStats
	prefix string
	logger *logrus.Entry
}

// NewRedisForecastCache creates a new forecast response cache.
func NewRedisForecastCache(redisClient *redis.Client, ttl time.Duration, logger *logrus.Logger) *RedisForecastCache {
	return &RedisForecastCache{
		redis:  redisClient,
		ttl:    ttl,
		stats:  &ForecastCacheStats{},
		prefix: "forecast_cache:",
		logger: logger.WithField("component", "forecast_cache"),
	}
}

func (c *RedisForecastCache) key(origin, destination string, months int) string {
	return fmt.Sprintf("%s%s:%s:%d", c.prefix,
		strings.ToUpper(origin), strings.ToUpper(destination), months)
}

// Get returns the cached result for a route pair and horizon, if present.
func (c *RedisForecastCache) Get(ctx context.Context, origin, destination string, months int) (*services.ForecastResult, bool) {
	data, err := c.redis.Get(ctx, c.key(origin, destination, months)).Result()
	if err == redis.Nil {
		c.miss()
		return nil, false
	}
	if err != nil {
		c.logger.WithError(err).Warn("Forecast cache read failed")
		c.miss()
		return nil, false
	}

	var entry forecastCacheEntry
	if err := json.Unmarshal([]byte(data), &entry); err != nil {
		c.logger.WithError(err).Warn("Failed to decode cached forecast")
		c.miss()
		return nil, false
	}

	c.stats.mu.Lock()
	c.stats.Hits++
	c.stats.mu.Unlock()
	return entry.Result, true
}

// Set stores a result. Superseded results are never cached, they are
// transient artifacts of request racing.
func (c *RedisForecastCache) Set(ctx context.Context, origin, destination string, months int, result *services.ForecastResult) {
	if result == nil || result.Superseded {
		return
	}

	entry := forecastCacheEntry{Result: result, CachedAt: time.Now().UTC()}
	data, err := json.Marshal(entry)
	if err != nil {
		c.logger.WithError(err).Warn("Failed to encode forecast for cache")
		return
	}

	if err := c.redis.Set(ctx, c.key(origin, destination, months), data, c.ttl).Err(); err != nil {
		c.logger.WithError(err).Warn("Forecast cache write failed")
		return
	}

	c.stats.mu.Lock()
	c.stats.Sets++
	c.stats.mu.Unlock()
}

// Invalidate drops every cached horizon for a route pair. Fresh ingestion
// for the pair makes cached responses stale.
func (c *RedisForecastCache) Invalidate(ctx context.Context, origin, destination string) {
	pattern := fmt.Sprintf("%s%s:%s:*", c.prefix,
		strings.ToUpper(origin), strings.ToUpper(destination))

	keys, err := c.redis.Keys(ctx, pattern).Result()
	if err != nil {
		c.logger.WithError(err).Warn("Forecast cache invalidation scan failed")
		return
	}
	if len(keys) == 0 {
		return
	}
	if err := c.redis.Del(ctx, keys...).Err(); err != nil {
		c.logger.WithError(err).Warn("Forecast cache invalidation failed")
	}
}

// Stats returns a copy of the cache counters.
func (c *RedisForecastCache) Stats() ForecastCacheStats {
	c.stats.mu.RLock()
	defer c.stats.mu.RUnlock()
	return ForecastCacheStats{Hits: c.stats.Hits, Misses: c.stats.Misses, Sets: c.stats.Sets}
}

func (c *RedisForecastCache) miss() {
	c.stats.mu.Lock()
	c.stats.Misses++
	c.stats.mu.Unlock()
}
