package openmeteo

import (
	"context"
	"testing"
	"time"

	"github.com/couchcryptid/lst-anomaly-etl/internal/domain"
	"github.com/couchcryptid/lst-anomaly-etl/internal/observability"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingProvider struct {
	calls int
	days  []domain.DailyTemp
}

func (p *countingProvider) DailyTmax(_ context.Context, _, _ float64, _, _ time.Time) ([]domain.DailyTemp, error) {
	p.calls++
	return p.days, nil
}

func TestCachedProvider_Hit(t *testing.T) {
	inner := &countingProvider{days: []domain.DailyTemp{{Date: july1, TmaxC: domain.Float(33)}}}
	metrics := observability.NewMetricsForTesting()
	cached := NewCachedProvider(inner, 4, metrics)

	for range 3 {
		days, err := cached.DailyTmax(context.Background(), 47.5, 34.5, july1, july31)
		require.NoError(t, err)
		assert.Len(t, days, 1)
	}
	assert.Equal(t, 1, inner.calls)
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.WeatherCache.WithLabelValues("hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.WeatherCache.WithLabelValues("miss")))
}

func TestCachedProvider_EmptyNotCached(t *testing.T) {
	inner := &countingProvider{}
	cached := NewCachedProvider(inner, 4, observability.NewMetricsForTesting())

	_, _ = cached.DailyTmax(context.Background(), 1, 1, july1, july31)
	_, _ = cached.DailyTmax(context.Background(), 1, 1, july1, july31)
	assert.Equal(t, 2, inner.calls)
}

func TestCachedProvider_DifferentRangesMiss(t *testing.T) {
	inner := &countingProvider{days: []domain.DailyTemp{{Date: july1}}}
	cached := NewCachedProvider(inner, 4, observability.NewMetricsForTesting())

	_, _ = cached.DailyTmax(context.Background(), 1, 1, july1, july31)
	_, _ = cached.DailyTmax(context.Background(), 1, 1, july1, july1)
	assert.Equal(t, 2, inner.calls)
}

func TestLRUCache_Eviction(t *testing.T) {
	c := newLRUCache(2)
	c.put("a", []domain.DailyTemp{{}})
	c.put("b", []domain.DailyTemp{{}})
	c.put("c", []domain.DailyTemp{{}})

	_, ok := c.get("a")
	assert.False(t, ok, "oldest entry evicted")
	assert.Equal(t, 2, c.size())
}

func TestLRUCache_AccessPromotesEntry(t *testing.T) {
	c := newLRUCache(2)
	c.put("a", []domain.DailyTemp{{}})
	c.put("b", []domain.DailyTemp{{}})
	_, _ = c.get("a")
	c.put("c", []domain.DailyTemp{{}})

	_, ok := c.get("a")
	assert.True(t, ok)
	_, ok = c.get("b")
	assert.False(t, ok)
}

func TestLRUCache_UpdateExisting(t *testing.T) {
	c := newLRUCache(2)
	c.put("a", []domain.DailyTemp{{TmaxC: domain.Float(1)}})
	c.put("a", []domain.DailyTemp{{TmaxC: domain.Float(2)}})

	v, ok := c.get("a")
	require.True(t, ok)
	assert.InDelta(t, 2.0, v[0].TmaxC.Value, 0)
	assert.Equal(t, 1, c.size())
}
