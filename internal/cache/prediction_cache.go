// Package cache provides a two-tier cache in front of the classifier:
// an in-memory LRU for hot pairs and an optional Redis tier shared across
// server processes. Feature vectors hash to stable keys, so repeated
// requests for the same drug pair skip inference entirely.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/ddi-prediction-server/internal/domain"
)

const redisKeyPrefix = "ddi:cache:prediction:"

// Stats tracks cache performance counters.
type Stats struct {
	MemoryHits int64 `json:"memory_hits"`
	RedisHits  int64 `json:"redis_hits"`
	Misses     int64 `json:"misses"`
}

// CachedClassifier wraps any Classifier with result caching. Classification
// is deterministic over the feature vector, so cached entries never go
// stale with respect to a fixed model; the TTL only bounds Redis footprint.
type CachedClassifier struct {
	inner   domain.Classifier
	logger  *logrus.Logger
	enabled bool

	memory *lru.Cache[string, *domain.Classification]
	redis  *redis.Client
	ttl    time.Duration

	stats   Stats
	statsMu sync.Mutex
}

// NewCachedClassifier wraps the inner classifier according to the cache
// configuration. With caching disabled every call passes straight through.
// The Redis tier attaches only when a URL is configured.
func NewCachedClassifier(inner domain.Classifier, cfg domain.CacheConfig, logger *logrus.Logger) (*CachedClassifier, error) {
	c := &CachedClassifier{
		inner:   inner,
		logger:  logger,
		enabled: cfg.Enabled,
		ttl:     cfg.DefaultTTL,
	}
	if !cfg.Enabled {
		return c, nil
	}

	memory, err := lru.New[string, *domain.Classification](cfg.MaxEntries)
	if err != nil {
		return nil, fmt.Errorf("failed to create memory cache: %w", err)
	}
	c.memory = memory

	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("invalid redis URL: %w", err)
		}
		c.redis = redis.NewClient(opt)
	}

	if c.ttl == 0 {
		c.ttl = time.Hour
	}

	return c, nil
}

// Key derives the stable cache key for a feature vector from the exact bit
// patterns of its values.
func Key(features []float64) string {
	h := sha256.New()
	buf := make([]byte, 8)
	for _, f := range features {
		binary.LittleEndian.PutUint64(buf, math.Float64bits(f))
		h.Write(buf)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Classify consults the memory tier, then Redis, then the wrapped
// classifier. Cache failures degrade to inference, never to request
// failure.
func (c *CachedClassifier) Classify(ctx context.Context, features []float64) (*domain.Classification, error) {
	if !c.enabled {
		return c.inner.Classify(ctx, features)
	}

	key := Key(features)

	if cached, ok := c.memory.Get(key); ok {
		c.count(func(s *Stats) { s.MemoryHits++ })
		return cached, nil
	}

	if cached := c.redisGet(ctx, key); cached != nil {
		c.memory.Add(key, cached)
		c.count(func(s *Stats) { s.RedisHits++ })
		return cached, nil
	}

	c.count(func(s *Stats) { s.Misses++ })

	result, err := c.inner.Classify(ctx, features)
	if err != nil {
		return nil, err
	}

	c.memory.Add(key, result)
	c.redisSet(ctx, key, result)

	return result, nil
}

// NumFeatures returns the wrapped classifier's expected vector length.
func (c *CachedClassifier) NumFeatures() int {
	return c.inner.NumFeatures()
}

// GetStats returns a snapshot of the cache counters.
func (c *CachedClassifier) GetStats() Stats {
	c.statsMu.Lock()
	defer c.statsMu.Unlock()
	return c.stats
}

// HitRatio returns the fraction of lookups served from either tier.
func (c *CachedClassifier) HitRatio() float64 {
	stats := c.GetStats()
	total := stats.MemoryHits + stats.RedisHits + stats.Misses
	if total == 0 {
		return 0.0
	}
	return float64(stats.MemoryHits+stats.RedisHits) / float64(total)
}

// IsHealthy reports whether the cache tiers are reachable.
func (c *CachedClassifier) IsHealthy(ctx context.Context) bool {
	if !c.enabled {
		return true
	}
	if c.redis != nil {
		if err := c.redis.Ping(ctx).Err(); err != nil {
			return false
		}
	}
	return true
}

// Close releases the Redis connection if one is attached.
func (c *CachedClassifier) Close() error {
	if c.redis != nil {
		return c.redis.Close()
	}
	return nil
}

func (c *CachedClassifier) redisGet(ctx context.Context, key string) *domain.Classification {
	if c.redis == nil {
		return nil
	}

	data, err := c.redis.Get(ctx, redisKeyPrefix+key).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.WithError(err).Warn("Redis cache lookup failed")
		}
		return nil
	}

	cached := &domain.Classification{}
	if err := json.Unmarshal(data, cached); err != nil {
		c.logger.WithError(err).Warn("Discarding corrupt Redis cache entry")
		c.redis.Del(ctx, redisKeyPrefix+key)
		return nil
	}
	return cached
}

func (c *CachedClassifier) redisSet(ctx context.Context, key string, result *domain.Classification) {
	if c.redis == nil {
		return
	}

	data, err := json.Marshal(result)
	if err != nil {
		return
	}
	if err := c.redis.Set(ctx, redisKeyPrefix+key, data, c.ttl).Err(); err != nil {
		c.logger.WithError(err).Warn("Failed to store prediction in Redis cache")
	}
}

func (c *CachedClassifier) count(update func(*Stats)) {
	c.statsMu.Lock()
	update(&c.stats)
	c.statsMu.Unlock()
}
