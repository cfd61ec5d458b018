// Package filter implements the anti-spam gate in front of signal delivery:
// a cooldown/rate-limiting state machine over a persistent expiring
// key-value store.
//
// The decision is an ordered list of named gates (cooldown, improvement,
// daily-cap). The first failing gate short-circuits with a reject. Any store
// error is a fail-closed reject — a signal is never admitted on faith.
package filter

import (
	"context"
	"time"
)

// Store is the expiring key-value contract the filter needs. Increment and
// expire must be atomic at the key level; the Redis implementation lives in
// internal/store/redis.
type Store interface {
	// GetFloat reads a float value. found=false means no prior state, which
	// always passes gate checks.
	GetFloat(ctx context.Context, key string) (value float64, found bool, err error)

	// SetFloat writes a float value with a TTL.
	SetFloat(ctx context.Context, key string, value float64, ttl time.Duration) error

	// GetInt reads a counter. found=false reads as zero.
	GetInt(ctx context.Context, key string) (value int64, found bool, err error)

	// IncrWithTTL atomically increments a counter and applies the TTL,
	// returning the new value.
	IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

// Conceptual key schema, shared with the Redis store.
const (
	keyCooldown   = "cooldown:"    // cooldown:{symbol}:{timeframe} → unix seconds
	keyLastRSI    = "last_rsi:"    // last_rsi:{symbol}:{timeframe} → float
	keyDailyCount = "daily_count:" // daily_count:{symbol}:{date} → int
	keyDailyStrng = "daily_strong:" // daily_strong:{symbol}:{date} → int
)

func cooldownKey(symbol, timeframe string) string {
	return keyCooldown + symbol + ":" + timeframe
}

func lastRSIKey(symbol, timeframe string) string {
	return keyLastRSI + symbol + ":" + timeframe
}

func dailyCountKey(symbol string, day time.Time) string {
	return keyDailyCount + symbol + ":" + day.UTC().Format("2006-01-02")
}

func dailyStrongKey(symbol string, day time.Time) string {
	return keyDailyStrng + symbol + ":" + day.UTC().Format("2006-01-02")
}

// endOfDay returns the duration until the next UTC midnight, used as the
// daily-counter TTL so counters expire with the calendar day.
func endOfDay(now time.Time) time.Duration {
	now = now.UTC()
	next := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).Add(24 * time.Hour)
	return next.Sub(now)
}
