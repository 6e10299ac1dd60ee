package cache

import (
	"context"
	"io"
	"math"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ddi-prediction-server/internal/domain"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

type countingClassifier struct {
	calls int
}

func (c *countingClassifier) Classify(ctx context.Context, features []float64) (*domain.Classification, error) {
	c.calls++
	return &domain.Classification{
		Severity:   domain.MODERATE,
		Confidence: 0.8,
		Probabilities: map[domain.Severity]float64{
			domain.MAJOR:    0.1,
			domain.MODERATE: 0.8,
			domain.MINOR:    0.1,
		},
	}, nil
}

func (c *countingClassifier) NumFeatures() int { return 4 }

func memoryOnlyConfig() domain.CacheConfig {
	return domain.CacheConfig{
		Enabled:    true,
		MaxEntries: 8,
		DefaultTTL: time.Hour,
	}
}

func TestCachedClassifier_MemoryHit(t *testing.T) {
	inner := &countingClassifier{}
	cached, err := NewCachedClassifier(inner, memoryOnlyConfig(), testLogger())
	require.NoError(t, err)
	defer cached.Close()

	features := []float64{1.0, 2.0, 3.0, 4.0}

	first, err := cached.Classify(context.Background(), features)
	require.NoError(t, err)
	second, err := cached.Classify(context.Background(), features)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, inner.calls, "second call must be served from cache")

	stats := cached.GetStats()
	assert.Equal(t, int64(1), stats.MemoryHits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, 0.5, cached.HitRatio())
}

func TestCachedClassifier_DistinctVectorsMiss(t *testing.T) {
	inner := &countingClassifier{}
	cached, err := NewCachedClassifier(inner, memoryOnlyConfig(), testLogger())
	require.NoError(t, err)
	defer cached.Close()

	_, err = cached.Classify(context.Background(), []float64{1, 2, 3, 4})
	require.NoError(t, err)
	_, err = cached.Classify(context.Background(), []float64{1, 2, 3, 5})
	require.NoError(t, err)

	assert.Equal(t, 2, inner.calls)
}

func TestCachedClassifier_Disabled(t *testing.T) {
	inner := &countingClassifier{}
	cached, err := NewCachedClassifier(inner, domain.CacheConfig{Enabled: false}, testLogger())
	require.NoError(t, err)

	features := []float64{1, 2, 3, 4}
	_, err = cached.Classify(context.Background(), features)
	require.NoError(t, err)
	_, err = cached.Classify(context.Background(), features)
	require.NoError(t, err)

	assert.Equal(t, 2, inner.calls, "disabled cache must pass every call through")
	assert.True(t, cached.IsHealthy(context.Background()))
}

func TestCachedClassifier_Eviction(t *testing.T) {
	inner := &countingClassifier{}
	cfg := memoryOnlyConfig()
	cfg.MaxEntries = 2
	cached, err := NewCachedClassifier(inner, cfg, testLogger())
	require.NoError(t, err)

	vectors := [][]float64{
		{1, 0, 0, 0},
		{2, 0, 0, 0},
		{3, 0, 0, 0},
	}
	for _, v := range vectors {
		_, err := cached.Classify(context.Background(), v)
		require.NoError(t, err)
	}

	// The first vector was evicted by the third insert.
	_, err = cached.Classify(context.Background(), vectors[0])
	require.NoError(t, err)
	assert.Equal(t, 4, inner.calls)
}

func TestKey(t *testing.T) {
	a := []float64{1.5, -2.25, 0.0}
	b := []float64{1.5, -2.25, 0.0}

	assert.Equal(t, Key(a), Key(b), "identical vectors must key identically")
	assert.NotEqual(t, Key(a), Key([]float64{1.5, -2.25, 1.0}))
	assert.NotEqual(t, Key([]float64{1.0, 2.0}), Key([]float64{2.0, 1.0}),
		"key must be order-sensitive")
	assert.Len(t, Key(a), 64)
}

func TestKeyDistinguishesZeroSigns(t *testing.T) {
	// Bit-pattern hashing: negative zero is a different key than zero.
	// The feature builder never emits -0, so the distinction is harmless.
	assert.NotEqual(t, Key([]float64{0.0}), Key([]float64{math.Copysign(0, -1)}))
}

func TestCachedClassifier_InvalidRedisURL(t *testing.T) {
	cfg := memoryOnlyConfig()
	cfg.RedisURL = "://not-a-url"
	_, err := NewCachedClassifier(&countingClassifier{}, cfg, testLogger())
	assert.Error(t, err)
}

func TestCachedClassifier_NumFeatures(t *testing.T) {
	cached, err := NewCachedClassifier(&countingClassifier{}, memoryOnlyConfig(), testLogger())
	require.NoError(t, err)
	assert.Equal(t, 4, cached.NumFeatures())
}
