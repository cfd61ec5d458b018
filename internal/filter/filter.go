package filter

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"signal-monitorv1/internal/model"
)

// Gate names, stable identifiers used in decisions, logs and metrics labels.
const (
	GateCooldown    = "cooldown"
	GateImprovement = "improvement"
	GateDailyCap    = "daily_cap"
)

// Config tunes the filter. Zero values fall back to defaults matching the
// base cooldown table.
type Config struct {
	MaxSignalsPerDay int     // per symbol per calendar day (default 3)
	MaxStrongPerDay  int     // STRONG signals per symbol per day (default 2)
	MinRSIDelta      float64 // required improvement over the last admitted RSI (default 2.0)

	LastRSITTL time.Duration // retention of the last-RSI marker (default 24h)

	// CooldownOverrides shadows the base cooldown table per timeframe.
	CooldownOverrides map[string]map[model.Strength]time.Duration
}

func (c *Config) applyDefaults() {
	if c.MaxSignalsPerDay <= 0 {
		c.MaxSignalsPerDay = 3
	}
	if c.MaxStrongPerDay <= 0 {
		c.MaxStrongPerDay = 2
	}
	if c.MinRSIDelta <= 0 {
		c.MinRSIDelta = 2.0
	}
	if c.LastRSITTL <= 0 {
		c.LastRSITTL = 24 * time.Hour
	}
}

// Decision is the auditable outcome of running the gate chain.
type Decision struct {
	Admitted bool
	Gate     string // gate that rejected; empty when admitted
	Reason   string
}

// Filter is the stateful signal gate. All persistent state lives in the
// Store; the Filter itself holds only configuration.
type Filter struct {
	store Store
	cfg   Config
	log   *slog.Logger
}

// New creates a Filter over the given store.
func New(store Store, cfg Config, log *slog.Logger) *Filter {
	cfg.applyDefaults()
	if log == nil {
		log = slog.Default()
	}
	return &Filter{store: store, cfg: cfg, log: log}
}

// ShouldSend runs the ordered gate chain for a signal. The first failing
// gate short-circuits. A non-nil error means the store was unreachable and
// the signal was rejected fail-closed; callers should classify that as an
// error, not a filter rejection.
func (f *Filter) ShouldSend(ctx context.Context, sig *model.TradingSignal) (Decision, error) {
	now := time.Now()

	d, err := f.cooldownGate(ctx, sig, now)
	if err != nil || !d.Admitted {
		return d, err
	}
	d, err = f.improvementGate(ctx, sig)
	if err != nil || !d.Admitted {
		return d, err
	}
	d, err = f.dailyCapGate(ctx, sig, now)
	if err != nil || !d.Admitted {
		return d, err
	}

	return Decision{Admitted: true}, nil
}

// cooldownGate rejects while an unexpired cooldown entry exists for the
// symbol+timeframe key.
func (f *Filter) cooldownGate(ctx context.Context, sig *model.TradingSignal, now time.Time) (Decision, error) {
	lastUnix, found, err := f.store.GetFloat(ctx, cooldownKey(sig.Symbol, sig.Timeframe))
	if err != nil {
		return f.failClosed(GateCooldown, err)
	}
	if !found {
		return Decision{Admitted: true}, nil
	}

	cooldown := CooldownDuration(sig.Timeframe, sig.Strength, f.cfg.CooldownOverrides)
	elapsed := now.Sub(time.Unix(int64(lastUnix), 0))
	if elapsed < cooldown {
		remaining := (cooldown - elapsed).Round(time.Second)
		return Decision{
			Gate:   GateCooldown,
			Reason: fmt.Sprintf("cooling down for another %s", remaining),
		}, nil
	}
	return Decision{Admitted: true}, nil
}

// improvementGate rejects unless the new signal is strictly more extreme
// than the last admitted one: a BUY needs a lower RSI, a SELL a higher one,
// each by at least MinRSIDelta. No prior state always passes.
func (f *Filter) improvementGate(ctx context.Context, sig *model.TradingSignal) (Decision, error) {
	lastRSI, found, err := f.store.GetFloat(ctx, lastRSIKey(sig.Symbol, sig.Timeframe))
	if err != nil {
		return f.failClosed(GateImprovement, err)
	}
	if !found {
		return Decision{Admitted: true}, nil
	}

	switch sig.Type {
	case model.SignalBuy:
		if sig.RSIValue <= lastRSI-f.cfg.MinRSIDelta {
			return Decision{Admitted: true}, nil
		}
		return Decision{
			Gate:   GateImprovement,
			Reason: fmt.Sprintf("rsi %.2f not below last %.2f by %.1f", sig.RSIValue, lastRSI, f.cfg.MinRSIDelta),
		}, nil
	case model.SignalSell:
		if sig.RSIValue >= lastRSI+f.cfg.MinRSIDelta {
			return Decision{Admitted: true}, nil
		}
		return Decision{
			Gate:   GateImprovement,
			Reason: fmt.Sprintf("rsi %.2f not above last %.2f by %.1f", sig.RSIValue, lastRSI, f.cfg.MinRSIDelta),
		}, nil
	default:
		return Decision{Gate: GateImprovement, Reason: "unknown signal type"}, nil
	}
}

// dailyCapGate rejects when the symbol has exhausted its per-day budget, or
// its STRONG budget for STRONG signals.
func (f *Filter) dailyCapGate(ctx context.Context, sig *model.TradingSignal, now time.Time) (Decision, error) {
	total, _, err := f.store.GetInt(ctx, dailyCountKey(sig.Symbol, now))
	if err != nil {
		return f.failClosed(GateDailyCap, err)
	}
	if total >= int64(f.cfg.MaxSignalsPerDay) {
		return Decision{
			Gate:   GateDailyCap,
			Reason: fmt.Sprintf("daily cap reached (%d/%d)", total, f.cfg.MaxSignalsPerDay),
		}, nil
	}

	if sig.Strength == model.StrengthStrong {
		strong, _, err := f.store.GetInt(ctx, dailyStrongKey(sig.Symbol, now))
		if err != nil {
			return f.failClosed(GateDailyCap, err)
		}
		if strong >= int64(f.cfg.MaxStrongPerDay) {
			return Decision{
				Gate:   GateDailyCap,
				Reason: fmt.Sprintf("daily strong cap reached (%d/%d)", strong, f.cfg.MaxStrongPerDay),
			}, nil
		}
	}
	return Decision{Admitted: true}, nil
}

func (f *Filter) failClosed(gate string, err error) (Decision, error) {
	f.log.Error("filter store unreachable, rejecting fail-closed",
		slog.String("gate", gate), slog.String("err", err.Error()))
	return Decision{Gate: gate, Reason: "store error"}, fmt.Errorf("filter %s gate: %w", gate, err)
}

// MarkSent records an admission: cooldown entry, last-RSI marker and daily
// counters. The three writes are independent; a partial failure is
// returned for logging but never rolls back the admission already
// communicated to the caller.
func (f *Filter) MarkSent(ctx context.Context, sig *model.TradingSignal) error {
	now := time.Now()
	var firstErr error

	cooldown := CooldownDuration(sig.Timeframe, sig.Strength, f.cfg.CooldownOverrides)
	if err := f.store.SetFloat(ctx, cooldownKey(sig.Symbol, sig.Timeframe), float64(now.Unix()), cooldown); err != nil {
		f.log.Error("cooldown write failed", slog.String("key", sig.Key()), slog.String("err", err.Error()))
		firstErr = err
	}

	if err := f.store.SetFloat(ctx, lastRSIKey(sig.Symbol, sig.Timeframe), sig.RSIValue, f.cfg.LastRSITTL); err != nil {
		f.log.Error("last-rsi write failed", slog.String("key", sig.Key()), slog.String("err", err.Error()))
		if firstErr == nil {
			firstErr = err
		}
	}

	ttl := endOfDay(now)
	if _, err := f.store.IncrWithTTL(ctx, dailyCountKey(sig.Symbol, now), ttl); err != nil {
		f.log.Error("daily counter write failed", slog.String("symbol", sig.Symbol), slog.String("err", err.Error()))
		if firstErr == nil {
			firstErr = err
		}
	}
	if sig.Strength == model.StrengthStrong {
		if _, err := f.store.IncrWithTTL(ctx, dailyStrongKey(sig.Symbol, now), ttl); err != nil {
			f.log.Error("daily strong counter write failed", slog.String("symbol", sig.Symbol), slog.String("err", err.Error()))
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// Stats is the per-symbol daily signal budget snapshot.
type Stats struct {
	Symbol          string `json:"symbol"`
	TotalToday      int64  `json:"total_today"`
	StrongToday     int64  `json:"strong_today"`
	RemainingTotal  int64  `json:"remaining_total"`
	RemainingStrong int64  `json:"remaining_strong"`
}

// GetStats reads today's counters for a symbol.
func (f *Filter) GetStats(ctx context.Context, symbol string) (Stats, error) {
	now := time.Now()
	total, _, err := f.store.GetInt(ctx, dailyCountKey(symbol, now))
	if err != nil {
		return Stats{}, fmt.Errorf("filter stats: %w", err)
	}
	strong, _, err := f.store.GetInt(ctx, dailyStrongKey(symbol, now))
	if err != nil {
		return Stats{}, fmt.Errorf("filter stats: %w", err)
	}
	return Stats{
		Symbol:          symbol,
		TotalToday:      total,
		StrongToday:     strong,
		RemainingTotal:  max64(0, int64(f.cfg.MaxSignalsPerDay)-total),
		RemainingStrong: max64(0, int64(f.cfg.MaxStrongPerDay)-strong),
	}, nil
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
