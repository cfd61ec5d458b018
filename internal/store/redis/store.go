// Package redis backs the signal filter's expiring key-value state with a
// Redis instance. All calls run through a circuit breaker so a dead Redis
// degrades to fast fail-closed rejections instead of per-call timeouts.
package redis

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"signal-monitorv1/internal/filter"
)

// Config configures the Redis store.
type Config struct {
	Addr     string // Redis address, e.g. "localhost:6379"
	Password string
	DB       int

	// Circuit breaker tuning. Zero values fall back to 5 failures / 10s.
	MaxFailures  int
	ResetTimeout time.Duration
}

// Store implements filter.Store on a Redis client.
type Store struct {
	client *goredis.Client
	cb     *CircuitBreaker
}

var _ filter.Store = (*Store)(nil)

// New creates a Store and pings the server.
func New(cfg Config) (*Store, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	maxFailures := cfg.MaxFailures
	if maxFailures <= 0 {
		maxFailures = 5
	}
	resetTimeout := cfg.ResetTimeout
	if resetTimeout <= 0 {
		resetTimeout = 10 * time.Second
	}

	cb := NewCircuitBreaker(maxFailures, resetTimeout)
	cb.OnStateChange = func(from, to State) {
		log.Printf("[redis] circuit breaker %s → %s", from, to)
	}

	log.Printf("[redis] connected to %s (db %d)", cfg.Addr, cfg.DB)
	return &Store{client: client, cb: cb}, nil
}

// Client returns the underlying Redis client for health checks.
func (s *Store) Client() *goredis.Client { return s.client }

// Breaker returns the store's circuit breaker for state inspection.
func (s *Store) Breaker() *CircuitBreaker { return s.cb }

// get runs GET through the breaker. A key miss is a normal outcome, not a
// failure: goredis.Nil is resolved inside the closure so only transport
// errors feed the breaker.
func (s *Store) get(ctx context.Context, key string) (raw string, found bool, err error) {
	err = s.cb.Execute(func() error {
		var getErr error
		raw, getErr = s.client.Get(ctx, key).Result()
		if getErr == goredis.Nil {
			return nil // no key, gates treat this as a pass
		}
		found = getErr == nil
		return getErr
	})
	return raw, found, err
}

// GetFloat reads key as a float64. found is false when the key does not
// exist or has expired.
func (s *Store) GetFloat(ctx context.Context, key string) (float64, bool, error) {
	raw, found, err := s.get(ctx, key)
	if err != nil {
		return 0, false, fmt.Errorf("redis GET %s: %w", key, err)
	}
	if !found {
		return 0, false, nil
	}

	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false, fmt.Errorf("redis GET %s: non-numeric value %q", key, raw)
	}
	return v, true, nil
}

// SetFloat writes key with the given TTL (SETEX).
func (s *Store) SetFloat(ctx context.Context, key string, value float64, ttl time.Duration) error {
	err := s.cb.Execute(func() error {
		return s.client.Set(ctx, key, strconv.FormatFloat(value, 'f', -1, 64), ttl).Err()
	})
	if err != nil {
		return fmt.Errorf("redis SETEX %s: %w", key, err)
	}
	return nil
}

// GetInt reads key as an int64. found is false when the key does not exist.
func (s *Store) GetInt(ctx context.Context, key string) (int64, bool, error) {
	raw, found, err := s.get(ctx, key)
	if err != nil {
		return 0, false, fmt.Errorf("redis GET %s: %w", key, err)
	}
	if !found {
		return 0, false, nil
	}

	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("redis GET %s: non-integer value %q", key, raw)
	}
	return v, true, nil
}

// IncrWithTTL atomically increments key and refreshes its TTL in a single
// pipeline, returning the post-increment value.
func (s *Store) IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	var incr *goredis.IntCmd
	err := s.cb.Execute(func() error {
		pipe := s.client.TxPipeline()
		incr = pipe.Incr(ctx, key)
		pipe.Expire(ctx, key, ttl)
		_, err := pipe.Exec(ctx)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("redis INCR %s: %w", key, err)
	}
	return incr.Val(), nil
}

// Ping checks connectivity for health reporting. Bypasses the breaker so a
// recovered Redis is visible even while the breaker is still open.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the Redis client.
func (s *Store) Close() error {
	return s.client.Close()
}
