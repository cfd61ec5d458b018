package market

import (
	"context"
	"sync"
	"time"

	"signal-monitorv1/internal/model"
)

// CandleCache wraps a Source with a short-TTL in-process cache keyed by
// symbol+timeframe. Evaluations inside one cycle hit the same windows
// repeatedly; the TTL should stay below the scheduling interval so cycles
// never see stale candles.
type CandleCache struct {
	src Source
	ttl time.Duration

	mu      sync.Mutex
	entries map[string]cacheEntry
}

type cacheEntry struct {
	candles []model.Candle
	at      time.Time
}

// NewCandleCache wraps src. A non-positive ttl defaults to 30s.
func NewCandleCache(src Source, ttl time.Duration) *CandleCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &CandleCache{
		src:     src,
		ttl:     ttl,
		entries: make(map[string]cacheEntry),
	}
}

// Venue passes through to the wrapped source.
func (c *CandleCache) Venue() string { return c.src.Venue() }

// IsTradable passes through; the underlying source caches exchangeInfo.
func (c *CandleCache) IsTradable(ctx context.Context, symbol string) bool {
	return c.src.IsTradable(ctx, symbol)
}

// FetchCandles serves from cache when fresh, otherwise fetches and stores.
// Fetch errors are never cached.
func (c *CandleCache) FetchCandles(ctx context.Context, symbol, timeframe string, limit int) ([]model.Candle, error) {
	key := symbol + ":" + timeframe

	c.mu.Lock()
	e, ok := c.entries[key]
	c.mu.Unlock()
	if ok && time.Since(e.at) < c.ttl && len(e.candles) >= limit {
		return e.candles[len(e.candles)-limit:], nil
	}

	candles, err := c.src.FetchCandles(ctx, symbol, timeframe, limit)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.entries[key] = cacheEntry{candles: candles, at: time.Now()}
	c.mu.Unlock()
	return candles, nil
}

// Purge drops expired entries. Called opportunistically by the scheduler.
func (c *CandleCache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, e := range c.entries {
		if time.Since(e.at) >= c.ttl {
			delete(c.entries, key)
		}
	}
}
