package openmeteo

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/couchcryptid/lst-anomaly-etl/internal/domain"
	"github.com/couchcryptid/lst-anomaly-etl/internal/observability"
)

// CachedProvider wraps a WeatherProvider with an in-memory LRU cache keyed
// on location and date range.
type CachedProvider struct {
	inner   domain.WeatherProvider
	cache   *lruCache
	metrics *observability.Metrics
}

// NewCachedProvider creates a cache decorator around a provider.
func NewCachedProvider(inner domain.WeatherProvider, maxEntries int, metrics *observability.Metrics) *CachedProvider {
	return &CachedProvider{
		inner:   inner,
		cache:   newLRUCache(maxEntries),
		metrics: metrics,
	}
}

func (c *CachedProvider) DailyTmax(ctx context.Context, lat, lon float64, from, to time.Time) ([]domain.DailyTemp, error) {
	key := fmt.Sprintf("%.4f,%.4f|%s|%s", lat, lon, domain.FormatDay(from), domain.FormatDay(to))
	if days, ok := c.cache.get(key); ok {
		c.metrics.WeatherCache.WithLabelValues("hit").Inc()
		return days, nil
	}
	c.metrics.WeatherCache.WithLabelValues("miss").Inc()

	days, err := c.inner.DailyTmax(ctx, lat, lon, from, to)
	if err != nil {
		return days, err
	}
	// Empty ranges are not cached so a later run can pick up late archive data.
	if len(days) > 0 {
		c.cache.put(key, days)
	}
	return days, nil
}

// lruCache is a small thread-safe LRU cache of daily series.
type lruCache struct {
	maxEntries int
	mu         sync.Mutex
	entries    map[string]*entry
	head       *entry // most recently used
	tail       *entry // least recently used
}

type entry struct {
	key   string
	value []domain.DailyTemp
	prev  *entry
	next  *entry
}

func newLRUCache(maxEntries int) *lruCache {
	if maxEntries < 1 {
		maxEntries = 1
	}
	return &lruCache{
		maxEntries: maxEntries,
		entries:    make(map[string]*entry),
	}
}

func (c *lruCache) get(key string) ([]domain.DailyTemp, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	c.unlink(e)
	c.pushFront(e)
	return e.value, true
}

func (c *lruCache) put(key string, value []domain.DailyTemp) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.value = value
		c.unlink(e)
		c.pushFront(e)
		return
	}
	e := &entry{key: key, value: value}
	c.entries[key] = e
	c.pushFront(e)

	if len(c.entries) > c.maxEntries && c.tail != nil {
		old := c.tail
		c.unlink(old)
		delete(c.entries, old.key)
	}
}

func (c *lruCache) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *lruCache) pushFront(e *entry) {
	e.prev, e.next = nil, c.head
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *lruCache) unlink(e *entry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else if c.head == e {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else if c.tail == e {
		c.tail = e.prev
	}
	e.prev, e.next = nil, nil
}
