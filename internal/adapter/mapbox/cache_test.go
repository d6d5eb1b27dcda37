package mapbox

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/seismic-swarm-etl/internal/domain"
)

type countingGeocoder struct {
	mu     sync.Mutex
	calls  int
	last   [2]float64
	result domain.GeocodingResult
	err    error
}

func (m *countingGeocoder) ReverseGeocode(_ context.Context, lat, lon float64) (domain.GeocodingResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.last = [2]float64{lat, lon}
	return m.result, m.err
}

func TestCachedGeocoder_HitOnNearbyPoint(t *testing.T) {
	inner := &countingGeocoder{result: domain.GeocodingResult{PlaceName: "Amatrice", Country: "Italy"}}
	cached := NewCachedGeocoder(inner, 10, testMetrics())

	r1, err := cached.ReverseGeocode(context.Background(), 42.62891, 13.29214)
	require.NoError(t, err)
	r2, err := cached.ReverseGeocode(context.Background(), 42.62903, 13.29189)
	require.NoError(t, err)

	assert.Equal(t, r1, r2)
	assert.Equal(t, 1, inner.calls)
	assert.Equal(t, [2]float64{42.629, 13.292}, inner.last, "inner sees rounded coordinates")
	assert.Equal(t, 1.0, testutil.ToFloat64(cached.metrics.GeocodeCache.WithLabelValues("hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(cached.metrics.GeocodeCache.WithLabelValues("miss")))
}

func TestCachedGeocoder_DistinctPointsMiss(t *testing.T) {
	inner := &countingGeocoder{result: domain.GeocodingResult{PlaceName: "Visso"}}
	cached := NewCachedGeocoder(inner, 10, testMetrics())

	_, _ = cached.ReverseGeocode(context.Background(), 42.90, 13.10)
	_, _ = cached.ReverseGeocode(context.Background(), 42.91, 13.10)

	assert.Equal(t, 2, inner.calls)
}

func TestCachedGeocoder_EmptyNotCached(t *testing.T) {
	inner := &countingGeocoder{}
	cached := NewCachedGeocoder(inner, 10, testMetrics())

	_, _ = cached.ReverseGeocode(context.Background(), 39.0, 17.5)
	_, _ = cached.ReverseGeocode(context.Background(), 39.0, 17.5)

	assert.Equal(t, 2, inner.calls)
	assert.Zero(t, cached.cache.size())
}

func TestCachedGeocoder_ErrorNotCached(t *testing.T) {
	inner := &countingGeocoder{err: errors.New("timeout"), result: domain.GeocodingResult{PlaceName: "x"}}
	cached := NewCachedGeocoder(inner, 10, testMetrics())

	_, err := cached.ReverseGeocode(context.Background(), 42.0, 13.0)
	require.Error(t, err)

	assert.Zero(t, cached.cache.size())
}

func TestLRUCache_Eviction(t *testing.T) {
	c := newLRUCache(2)
	c.put("a", domain.GeocodingResult{PlaceName: "A"})
	c.put("b", domain.GeocodingResult{PlaceName: "B"})

	_, ok := c.get("a") // a becomes most recent
	require.True(t, ok)
	c.put("c", domain.GeocodingResult{PlaceName: "C"})

	_, ok = c.get("b")
	assert.False(t, ok, "b was least recently used")
	_, ok = c.get("a")
	assert.True(t, ok)
	_, ok = c.get("c")
	assert.True(t, ok)
	assert.Equal(t, 2, c.size())
}

func TestLRUCache_UpdateExisting(t *testing.T) {
	c := newLRUCache(2)
	c.put("a", domain.GeocodingResult{PlaceName: "old"})
	c.put("a", domain.GeocodingResult{PlaceName: "new"})

	v, ok := c.get("a")
	require.True(t, ok)
	assert.Equal(t, "new", v.PlaceName)
	assert.Equal(t, 1, c.size())
}

func TestLRUCache_ConcurrentAccess(t *testing.T) {
	c := newLRUCache(50)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				key := string(rune('a' + (n+j)%26))
				c.put(key, domain.GeocodingResult{PlaceName: key})
				c.get(key)
			}
		}(i)
	}
	wg.Wait()

	assert.LessOrEqual(t, c.size(), 50)
}
