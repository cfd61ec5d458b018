// Package monitor orchestrates monitoring cycles: resolve the active
// symbol×timeframe set, fan out one worker per venue batch, evaluate each
// pair through the indicator scorer and the anti-spam filter, and join the
// per-batch counters into one cycle result.
package monitor

import (
	"context"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"signal-monitorv1/internal/confluence"
	"signal-monitorv1/internal/filter"
	"signal-monitorv1/internal/market"
	"signal-monitorv1/internal/metrics"
	"signal-monitorv1/internal/model"
)

// SignalFilter gates admission of signal candidates.
type SignalFilter interface {
	ShouldSend(ctx context.Context, sig *model.TradingSignal) (filter.Decision, error)
	MarkSent(ctx context.Context, sig *model.TradingSignal) error
}

// SignalStore persists admitted signals. Failures are logged and never block
// admission.
type SignalStore interface {
	SaveSignal(ctx context.Context, sig *model.TradingSignal, breakdown []model.Breakdown, mc *model.MarketContext) (string, error)
}

// Notifier delivers admitted signals, typically a buffered queue.
type Notifier interface {
	Notify(ctx context.Context, sig *model.TradingSignal) error
}

// Runner executes monitoring cycles over a fixed set of collaborators.
type Runner struct {
	Sources  []market.Source
	Scorer   *confluence.Scorer
	Filter   SignalFilter
	Store    SignalStore
	Notifier Notifier

	// Contexts is optional; nil means signals persist without 24h context.
	Contexts market.ContextProvider

	// Prom is optional; nil disables instrumentation.
	Prom *metrics.Metrics

	CandleLimit int
	MaxAttempts int
	RetryDelay  time.Duration
}

// pair is one symbol×timeframe evaluation unit.
type pair struct {
	symbol    string
	timeframe string
}

// batch is the work assigned to one venue.
type batch struct {
	venue  string
	source market.Source
	pairs  []pair
	levels model.RSILevels
}

// RunCycle executes one full cycle: resolve, validate, fan out, join.
// The context carries the cycle deadline; an expired context fails the
// remaining evaluations as errors but still finalizes the cycle.
func (r *Runner) RunCycle(ctx context.Context, configs []model.MonitoringConfig) model.CycleResult {
	start := time.Now()
	cycleID := uuid.NewString()[:8]

	symbols, timeframes, levels := resolve(configs)
	result := model.CycleResult{
		CycleID:         cycleID,
		TotalSymbols:    len(symbols),
		TotalTimeframes: len(timeframes),
	}
	if len(symbols) == 0 || len(timeframes) == 0 {
		result.Duration = time.Since(start)
		log.Printf("[monitor] cycle %s: no symbols to monitor", cycleID)
		return result
	}

	batches := r.partition(ctx, cycleID, symbols, timeframes, levels)

	// Fan-out: one worker per venue batch.
	var wg sync.WaitGroup
	var mu sync.Mutex
	for _, b := range batches {
		wg.Add(1)
		go func(b batch) {
			defer wg.Done()
			br := r.runBatch(ctx, cycleID, b)
			mu.Lock()
			result.Merge(br)
			mu.Unlock()
		}(b)
	}
	wg.Wait()

	result.Duration = time.Since(start)
	if r.Prom != nil {
		r.Prom.CyclesTotal.Inc()
		r.Prom.CycleDuration.Observe(result.Duration.Seconds())
	}
	log.Printf("[monitor] cycle %s done in %v: sent=%d filtered=%d no_data=%d errors=%d",
		cycleID, result.Duration.Round(time.Millisecond), result.Sent, result.Filtered, result.NoData, result.Errors)
	return result
}

// resolve unions symbols and timeframes across active configs, deduplicated
// and sorted. The first active config's RSI levels apply to all pairs.
func resolve(configs []model.MonitoringConfig) ([]string, []string, model.RSILevels) {
	symbolSet := map[string]struct{}{}
	tfSet := map[string]struct{}{}
	var levels model.RSILevels
	haveLevels := false

	for _, cfg := range configs {
		if !cfg.Active {
			continue
		}
		for _, s := range cfg.Symbols {
			symbolSet[s] = struct{}{}
		}
		for _, tf := range cfg.Timeframes {
			tfSet[tf] = struct{}{}
		}
		if !haveLevels {
			levels = cfg.RSILevels
			haveLevels = true
		}
	}

	symbols := make([]string, 0, len(symbolSet))
	for s := range symbolSet {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)

	timeframes := make([]string, 0, len(tfSet))
	for tf := range tfSet {
		timeframes = append(timeframes, tf)
	}
	sort.Strings(timeframes)

	return symbols, timeframes, levels
}

// partition assigns each symbol to the first venue where it is tradable and
// expands the batch into sorted symbol×timeframe pairs.
func (r *Runner) partition(ctx context.Context, cycleID string, symbols, timeframes []string, levels model.RSILevels) []batch {
	batches := make([]batch, 0, len(r.Sources))
	assigned := map[string]bool{}

	for _, src := range r.Sources {
		b := batch{venue: src.Venue(), source: src, levels: levels}
		for _, sym := range symbols {
			if assigned[sym] {
				continue
			}
			if !src.IsTradable(ctx, sym) {
				continue
			}
			assigned[sym] = true
			for _, tf := range timeframes {
				b.pairs = append(b.pairs, pair{symbol: sym, timeframe: tf})
			}
		}
		if len(b.pairs) > 0 {
			batches = append(batches, b)
		}
	}

	for _, sym := range symbols {
		if !assigned[sym] {
			log.Printf("[monitor] cycle %s: %s not tradable on any venue, skipping", cycleID, sym)
		}
	}
	return batches
}

// runBatch evaluates the batch sequentially in its deterministic pair order,
// retrying the whole batch when an attempt looks like a venue-level outage
// (every pair errored). Per-pair errors in a mixed attempt never abort it.
func (r *Runner) runBatch(ctx context.Context, cycleID string, b batch) model.CycleResult {
	maxAttempts := r.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	var br model.CycleResult
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		br = model.CycleResult{}
		for _, p := range b.pairs {
			outcome := r.evaluatePair(ctx, cycleID, b.source, p, b.levels)
			br.Add(outcome)
			if r.Prom != nil {
				r.Prom.EvaluationsTotal.WithLabelValues(string(outcome)).Inc()
			}
		}

		// All-error attempts read as the venue being down, not as real
		// evaluation results.
		venueDown := br.Errors == len(b.pairs) && len(b.pairs) > 0
		if !venueDown || attempt == maxAttempts || ctx.Err() != nil {
			break
		}

		log.Printf("[monitor] cycle %s: venue %s attempt %d/%d failed for all %d pairs, retrying",
			cycleID, b.venue, attempt, maxAttempts, len(b.pairs))
		if r.Prom != nil {
			r.Prom.BatchRetries.Inc()
		}
		select {
		case <-ctx.Done():
			return br
		case <-time.After(r.RetryDelay):
		}
	}
	return br
}

// evaluatePair runs fetch → score → filter → deliver for one pair and
// classifies the outcome.
func (r *Runner) evaluatePair(ctx context.Context, cycleID string, src market.Source, p pair, levels model.RSILevels) model.Outcome {
	if ctx.Err() != nil {
		return model.OutcomeError
	}

	fetchStart := time.Now()
	window, err := src.FetchCandles(ctx, p.symbol, p.timeframe, r.CandleLimit)
	if r.Prom != nil {
		r.Prom.FetchDuration.Observe(time.Since(fetchStart).Seconds())
	}
	if err != nil {
		log.Printf("[monitor] cycle %s: fetch %s/%s: %v", cycleID, p.symbol, p.timeframe, err)
		return model.OutcomeError
	}
	if len(window) == 0 {
		return model.OutcomeNoData
	}

	res := r.Scorer.EvaluateWithLevels(window, p.symbol, p.timeframe, levels)
	if res.InsufficientData {
		return model.OutcomeNoData
	}
	if res.Signal == nil {
		return model.OutcomeFiltered
	}

	decision, err := r.Filter.ShouldSend(ctx, res.Signal)
	if err != nil {
		// Fail-closed rejection caused by store trouble counts as an
		// error, not a filter verdict.
		return model.OutcomeError
	}
	if !decision.Admitted {
		if r.Prom != nil {
			r.Prom.FilterRejects.WithLabelValues(decision.Gate).Inc()
		}
		log.Printf("[monitor] cycle %s: %s gated by %s: %s", cycleID, res.Signal.Key(), decision.Gate, decision.Reason)
		return model.OutcomeFiltered
	}

	if err := r.Filter.MarkSent(ctx, res.Signal); err != nil {
		log.Printf("[monitor] cycle %s: mark-sent for %s: %v (admission stands)", cycleID, res.Signal.Key(), err)
	}

	r.deliver(ctx, cycleID, res)
	return model.OutcomeSignalSent
}

// deliver persists and notifies an admitted signal. Neither step can undo
// the admission.
func (r *Runner) deliver(ctx context.Context, cycleID string, res confluence.Result) {
	sig := res.Signal

	var mc *model.MarketContext
	if r.Contexts != nil {
		if c, ok := r.Contexts.MarketContext(sig.Symbol); ok {
			mc = &c
		}
	}

	if r.Store != nil {
		if _, err := r.Store.SaveSignal(ctx, sig, res.Breakdown, mc); err != nil {
			log.Printf("[monitor] cycle %s: persist %s: %v", cycleID, sig.Key(), err)
		}
	}

	if r.Notifier != nil {
		if err := r.Notifier.Notify(ctx, sig); err != nil {
			if r.Prom != nil {
				r.Prom.NotifyFailures.Inc()
			}
			log.Printf("[monitor] cycle %s: notify %s: %v", cycleID, sig.Key(), err)
		}
	}

	if r.Prom != nil {
		r.Prom.SignalsSent.WithLabelValues(string(sig.Type), string(sig.Strength)).Inc()
	}
	log.Printf("[monitor] cycle %s: signal sent: %s", cycleID, sig.Summary())
}
