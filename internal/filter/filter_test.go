package filter

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"signal-monitorv1/internal/model"
)

// fakeStore is an in-memory Store with per-key TTLs and fault injection.
type fakeStore struct {
	floats   map[string]float64
	ints     map[string]int64
	expiries map[string]time.Time

	failPrefix string // keys with this prefix error out
	failAll    bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		floats:   make(map[string]float64),
		ints:     make(map[string]int64),
		expiries: make(map[string]time.Time),
	}
}

var errStoreDown = errors.New("store down")

func (s *fakeStore) failing(key string) bool {
	return s.failAll || (s.failPrefix != "" && strings.HasPrefix(key, s.failPrefix))
}

func (s *fakeStore) expired(key string) bool {
	exp, ok := s.expiries[key]
	return ok && time.Now().After(exp)
}

func (s *fakeStore) GetFloat(_ context.Context, key string) (float64, bool, error) {
	if s.failing(key) {
		return 0, false, errStoreDown
	}
	if s.expired(key) {
		return 0, false, nil
	}
	v, ok := s.floats[key]
	return v, ok, nil
}

func (s *fakeStore) SetFloat(_ context.Context, key string, v float64, ttl time.Duration) error {
	if s.failing(key) {
		return errStoreDown
	}
	s.floats[key] = v
	s.expiries[key] = time.Now().Add(ttl)
	return nil
}

func (s *fakeStore) GetInt(_ context.Context, key string) (int64, bool, error) {
	if s.failing(key) {
		return 0, false, errStoreDown
	}
	if s.expired(key) {
		return 0, false, nil
	}
	v, ok := s.ints[key]
	return v, ok, nil
}

func (s *fakeStore) IncrWithTTL(_ context.Context, key string, ttl time.Duration) (int64, error) {
	if s.failing(key) {
		return 0, errStoreDown
	}
	s.ints[key]++
	s.expiries[key] = time.Now().Add(ttl)
	return s.ints[key], nil
}

func testSignal(strength model.Strength, rsi float64) *model.TradingSignal {
	return &model.TradingSignal{
		Symbol:    "BTCUSDT",
		Timeframe: "15m",
		Type:      model.SignalBuy,
		Strength:  strength,
		RSIValue:  rsi,
		Price:     50000,
		Score:     6,
		MaxScore:  8,
		TS:        time.Now().UTC(),
	}
}

func TestShouldSend_NoPriorState_Admits(t *testing.T) {
	f := New(newFakeStore(), Config{}, nil)
	d, err := f.ShouldSend(context.Background(), testSignal(model.StrengthModerate, 25))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !d.Admitted {
		t.Fatalf("expected admission with empty store, got %+v", d)
	}
}

func TestCooldownIdempotence(t *testing.T) {
	store := newFakeStore()
	f := New(store, Config{}, nil)
	ctx := context.Background()
	sig := testSignal(model.StrengthModerate, 25)

	d, err := f.ShouldSend(ctx, sig)
	if err != nil || !d.Admitted {
		t.Fatalf("first signal must be admitted: %+v err=%v", d, err)
	}
	if err := f.MarkSent(ctx, sig); err != nil {
		t.Fatalf("MarkSent: %v", err)
	}

	// The identical signal inside the cooldown window is always rejected,
	// regardless of score.
	d, err = f.ShouldSend(ctx, sig)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Admitted {
		t.Fatal("expected cooldown rejection for an identical signal")
	}
	if d.Gate != GateCooldown {
		t.Errorf("expected gate %q, got %q", GateCooldown, d.Gate)
	}
}

func TestImprovementGate_Buy(t *testing.T) {
	store := newFakeStore()
	f := New(store, Config{}, nil)
	ctx := context.Background()

	// Prior admitted RSI of 50, no active cooldown.
	store.floats[lastRSIKey("BTCUSDT", "15m")] = 50
	store.expiries[lastRSIKey("BTCUSDT", "15m")] = time.Now().Add(time.Hour)

	d, err := f.ShouldSend(ctx, testSignal(model.StrengthModerate, 49))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Admitted {
		t.Error("BUY at rsi=49 vs last=50 must be rejected (needs <= 48.0)")
	}
	if d.Gate != GateImprovement {
		t.Errorf("expected gate %q, got %q", GateImprovement, d.Gate)
	}

	d, err = f.ShouldSend(ctx, testSignal(model.StrengthModerate, 47.9))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !d.Admitted {
		t.Errorf("BUY at rsi=47.9 vs last=50 must be admitted: %+v", d)
	}
}

func TestImprovementGate_Sell(t *testing.T) {
	store := newFakeStore()
	f := New(store, Config{}, nil)
	ctx := context.Background()

	store.floats[lastRSIKey("BTCUSDT", "15m")] = 70
	store.expiries[lastRSIKey("BTCUSDT", "15m")] = time.Now().Add(time.Hour)

	sell := testSignal(model.StrengthModerate, 71)
	sell.Type = model.SignalSell
	d, _ := f.ShouldSend(ctx, sell)
	if d.Admitted {
		t.Error("SELL at rsi=71 vs last=70 must be rejected (needs >= 72.0)")
	}

	sell.RSIValue = 72.5
	d, _ = f.ShouldSend(ctx, sell)
	if !d.Admitted {
		t.Errorf("SELL at rsi=72.5 vs last=70 must be admitted: %+v", d)
	}
}

func TestDailyCap(t *testing.T) {
	store := newFakeStore()
	f := New(store, Config{}, nil)
	ctx := context.Background()

	store.ints[dailyCountKey("BTCUSDT", time.Now())] = 3

	// Cap applies regardless of timeframe.
	sig := testSignal(model.StrengthModerate, 25)
	sig.Timeframe = "1h"
	d, err := f.ShouldSend(ctx, sig)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Admitted {
		t.Fatal("expected daily-cap rejection at 3/3")
	}
	if d.Gate != GateDailyCap {
		t.Errorf("expected gate %q, got %q", GateDailyCap, d.Gate)
	}
}

func TestDailyStrongCap(t *testing.T) {
	store := newFakeStore()
	f := New(store, Config{}, nil)
	ctx := context.Background()

	store.ints[dailyStrongKey("BTCUSDT", time.Now())] = 2

	d, _ := f.ShouldSend(ctx, testSignal(model.StrengthStrong, 25))
	if d.Admitted {
		t.Error("expected strong-cap rejection at 2/2")
	}

	// A non-STRONG signal is not subject to the strong cap.
	d, _ = f.ShouldSend(ctx, testSignal(model.StrengthModerate, 25))
	if !d.Admitted {
		t.Errorf("moderate signal must pass the strong cap: %+v", d)
	}
}

func TestFailClosed(t *testing.T) {
	store := newFakeStore()
	store.failAll = true
	f := New(store, Config{}, nil)

	d, err := f.ShouldSend(context.Background(), testSignal(model.StrengthModerate, 25))
	if err == nil {
		t.Fatal("expected a store error")
	}
	if d.Admitted {
		t.Fatal("store failure must reject fail-closed, never admit")
	}
}

func TestGateOrder_CooldownFirst(t *testing.T) {
	store := newFakeStore()
	f := New(store, Config{}, nil)
	ctx := context.Background()

	// Both cooldown and daily cap would reject; the cooldown gate runs first.
	store.floats[cooldownKey("BTCUSDT", "15m")] = float64(time.Now().Unix())
	store.expiries[cooldownKey("BTCUSDT", "15m")] = time.Now().Add(time.Hour)
	store.ints[dailyCountKey("BTCUSDT", time.Now())] = 9

	d, _ := f.ShouldSend(ctx, testSignal(model.StrengthModerate, 25))
	if d.Admitted {
		t.Fatal("expected rejection")
	}
	if d.Gate != GateCooldown {
		t.Errorf("first failing gate must short-circuit: got %q", d.Gate)
	}
}

func TestMarkSent_WritesAllKeys(t *testing.T) {
	store := newFakeStore()
	f := New(store, Config{}, nil)
	sig := testSignal(model.StrengthStrong, 25)

	if err := f.MarkSent(context.Background(), sig); err != nil {
		t.Fatalf("MarkSent: %v", err)
	}

	if _, ok := store.floats[cooldownKey("BTCUSDT", "15m")]; !ok {
		t.Error("cooldown key not written")
	}
	if got := store.floats[lastRSIKey("BTCUSDT", "15m")]; got != 25 {
		t.Errorf("last-rsi key = %v, want 25", got)
	}
	if got := store.ints[dailyCountKey("BTCUSDT", time.Now())]; got != 1 {
		t.Errorf("daily count = %d, want 1", got)
	}
	if got := store.ints[dailyStrongKey("BTCUSDT", time.Now())]; got != 1 {
		t.Errorf("daily strong = %d, want 1", got)
	}
}

func TestMarkSent_PartialFailureDoesNotRollBack(t *testing.T) {
	store := newFakeStore()
	store.failPrefix = keyDailyCount
	f := New(store, Config{}, nil)
	sig := testSignal(model.StrengthModerate, 25)

	err := f.MarkSent(context.Background(), sig)
	if err == nil {
		t.Fatal("expected partial-failure error for logging")
	}
	// The independent writes that succeeded stay in place.
	if _, ok := store.floats[cooldownKey("BTCUSDT", "15m")]; !ok {
		t.Error("cooldown write must survive a counter failure")
	}
	if _, ok := store.floats[lastRSIKey("BTCUSDT", "15m")]; !ok {
		t.Error("last-rsi write must survive a counter failure")
	}
}

func TestGetStats(t *testing.T) {
	store := newFakeStore()
	f := New(store, Config{}, nil)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		f.MarkSent(ctx, testSignal(model.StrengthStrong, 25))
	}

	stats, err := f.GetStats(ctx, "BTCUSDT")
	if err != nil {
		t.Fatalf("GetStats: %v", err)
	}
	if stats.TotalToday != 2 || stats.StrongToday != 2 {
		t.Errorf("stats = %+v, want total=2 strong=2", stats)
	}
	if stats.RemainingTotal != 1 || stats.RemainingStrong != 0 {
		t.Errorf("remaining = %+v, want total=1 strong=0", stats)
	}
}

func TestCooldownDuration_Table(t *testing.T) {
	cases := []struct {
		tf       string
		strength model.Strength
		want     time.Duration
	}{
		{"15m", model.StrengthStrong, 15 * time.Minute},
		{"15m", model.StrengthWeak, time.Hour},
		{"1h", model.StrengthModerate, 2 * time.Hour},
		{"4h", model.StrengthStrong, 2 * time.Hour},
		{"1d", model.StrengthWeak, 24 * time.Hour},
		// Unconfigured 2h scales from the 4h row by 120/240.
		{"2h", model.StrengthStrong, time.Hour},
		{"2h", model.StrengthWeak, 3 * time.Hour},
	}
	for _, c := range cases {
		if got := CooldownDuration(c.tf, c.strength, nil); got != c.want {
			t.Errorf("CooldownDuration(%s, %s) = %v, want %v", c.tf, c.strength, got, c.want)
		}
	}
}

func TestCooldownDuration_Overrides(t *testing.T) {
	overrides := map[string]map[model.Strength]time.Duration{
		"15m": {model.StrengthStrong: 5 * time.Minute},
	}
	if got := CooldownDuration("15m", model.StrengthStrong, overrides); got != 5*time.Minute {
		t.Errorf("override ignored: got %v", got)
	}
	// Strengths missing from the override row fall back to the base table.
	if got := CooldownDuration("15m", model.StrengthWeak, overrides); got != time.Hour {
		t.Errorf("fallback broken: got %v", got)
	}
}

func TestTimeframeMinutes(t *testing.T) {
	cases := []struct {
		tf   string
		want int
	}{
		{"15m", 15},
		{"1h", 60},
		{"4h", 240},
		{"1d", 1440},
		{"30m", 30},
		{"garbage", 240},
		{"", 240},
	}
	for _, c := range cases {
		if got := TimeframeMinutes(c.tf); got != c.want {
			t.Errorf("TimeframeMinutes(%q) = %d, want %d", c.tf, got, c.want)
		}
	}
}
