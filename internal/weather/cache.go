package weather

import (
	"context"
	"fmt"
	"sync"
	"time"

	"irrigation-planner/internal/agronomy"
)

type cacheEntry struct {
	days    []agronomy.DailyForecast
	fetched time.Time
}

// CachedProvider wraps a Provider and keeps forecasts per location for a TTL.
// Geocoding results never expire.
type CachedProvider struct {
	real Provider
	ttl  time.Duration
	now  func() time.Time

	mu        sync.Mutex
	forecasts map[string]cacheEntry
	places    map[string][2]float64
}

// NewCachedProvider creates a CachedProvider around real.
func NewCachedProvider(real Provider, ttl time.Duration) *CachedProvider {
	return &CachedProvider{
		real:      real,
		ttl:       ttl,
		now:       time.Now,
		forecasts: make(map[string]cacheEntry),
		places:    make(map[string][2]float64),
	}
}

func locationKey(lat, lon float64) string {
	return fmt.Sprintf("%.3f,%.3f", lat, lon)
}

// Forecast returns the cached forecast for the location when it is fresh,
// otherwise fetches and stores a new one.
func (c *CachedProvider) Forecast(ctx context.Context, lat, lon float64) ([]agronomy.DailyForecast, error) {
	key := locationKey(lat, lon)

	c.mu.Lock()
	entry, ok := c.forecasts[key]
	c.mu.Unlock()
	if ok && c.now().Sub(entry.fetched) < c.ttl {
		return entry.days, nil
	}

	days, err := c.real.Forecast(ctx, lat, lon)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.forecasts[key] = cacheEntry{days: days, fetched: c.now()}
	c.mu.Unlock()
	return days, nil
}

// Geocode resolves query once and remembers the answer.
func (c *CachedProvider) Geocode(ctx context.Context, query string) (float64, float64, error) {
	c.mu.Lock()
	p, ok := c.places[query]
	c.mu.Unlock()
	if ok {
		return p[0], p[1], nil
	}

	lat, lon, err := c.real.Geocode(ctx, query)
	if err != nil {
		return 0, 0, err
	}

	c.mu.Lock()
	c.places[query] = [2]float64{lat, lon}
	c.mu.Unlock()
	return lat, lon, nil
}
