package sqlite

import (
	"context"
	"testing"
	"time"

	"signal-monitorv1/internal/model"
)

func testHistory(t *testing.T) *History {
	t.Helper()
	h, err := New(Config{DBPath: ":memory:"})
	if err != nil {
		t.Fatalf("open in-memory db: %v", err)
	}
	t.Cleanup(func() { h.Close() })
	return h
}

func sampleSignal(symbol string, ts time.Time) *model.TradingSignal {
	return &model.TradingSignal{
		Symbol:    symbol,
		Timeframe: "1h",
		Type:      model.SignalBuy,
		Strength:  model.StrengthStrong,
		RSIValue:  24.5,
		Price:     61234.5,
		Score:     7,
		MaxScore:  8,
		Message:   "oversold with confluence",
		TS:        ts,
	}
}

func TestSaveAndRecent(t *testing.T) {
	h := testHistory(t)
	ctx := context.Background()
	now := time.Now().UTC()

	breakdown := []model.Breakdown{
		{Name: "rsi", Score: 2, MaxScore: 2, Contributing: true},
		{Name: "ema", Score: 3, MaxScore: 3, Contributing: true},
	}
	mc := &model.MarketContext{Volume24h: 1.5e9, PriceChangePct: -3.2}

	id, err := h.SaveSignal(ctx, sampleSignal("BTCUSDT", now), breakdown, mc)
	if err != nil {
		t.Fatalf("SaveSignal: %v", err)
	}
	if id == "" {
		t.Fatal("expected a generated id")
	}

	recs, err := h.RecentSignals(ctx, "BTCUSDT", 10)
	if err != nil {
		t.Fatalf("RecentSignals: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("expected 1 record, got %d", len(recs))
	}
	r := recs[0]
	if r.ID != id || r.Symbol != "BTCUSDT" || r.SignalType != "BUY" || r.Strength != "STRONG" {
		t.Errorf("unexpected record: %+v", r)
	}
	if r.Volume24h != 1.5e9 || r.PriceChangePct != -3.2 {
		t.Errorf("market context not persisted: %+v", r)
	}
	if r.Breakdown == "" {
		t.Error("breakdown JSON not persisted")
	}
}

func TestRecentSignals_OrderAndFilter(t *testing.T) {
	h := testHistory(t)
	ctx := context.Background()
	base := time.Now().UTC().Add(-time.Hour)

	for i := 0; i < 3; i++ {
		sig := sampleSignal("BTCUSDT", base.Add(time.Duration(i)*time.Minute))
		if _, err := h.SaveSignal(ctx, sig, nil, nil); err != nil {
			t.Fatalf("SaveSignal: %v", err)
		}
	}
	if _, err := h.SaveSignal(ctx, sampleSignal("ETHUSDT", base), nil, nil); err != nil {
		t.Fatalf("SaveSignal: %v", err)
	}

	recs, err := h.RecentSignals(ctx, "", 10)
	if err != nil {
		t.Fatalf("RecentSignals: %v", err)
	}
	if len(recs) != 4 {
		t.Fatalf("expected 4 records across symbols, got %d", len(recs))
	}
	for i := 1; i < len(recs); i++ {
		if recs[i-1].CreatedAt < recs[i].CreatedAt {
			t.Fatal("records not sorted newest first")
		}
	}

	recs, err = h.RecentSignals(ctx, "ETHUSDT", 10)
	if err != nil {
		t.Fatalf("RecentSignals: %v", err)
	}
	if len(recs) != 1 {
		t.Errorf("symbol filter broken: got %d records", len(recs))
	}
}

func TestDailyStats(t *testing.T) {
	h := testHistory(t)
	ctx := context.Background()
	now := time.Now().UTC()

	buy := sampleSignal("BTCUSDT", now)
	sell := sampleSignal("ETHUSDT", now)
	sell.Type = model.SignalSell
	sell.Strength = model.StrengthModerate
	old := sampleSignal("BTCUSDT", now.AddDate(0, 0, -2))

	for _, sig := range []*model.TradingSignal{buy, sell, old} {
		if _, err := h.SaveSignal(ctx, sig, nil, nil); err != nil {
			t.Fatalf("SaveSignal: %v", err)
		}
	}

	stats, err := h.DailyStats(ctx, now)
	if err != nil {
		t.Fatalf("DailyStats: %v", err)
	}
	if stats.Total != 2 {
		t.Errorf("expected 2 signals today, got %d", stats.Total)
	}
	if stats.ByType["BUY"] != 1 || stats.ByType["SELL"] != 1 {
		t.Errorf("by-type counts wrong: %+v", stats.ByType)
	}
	if stats.ByTier["STRONG"] != 1 || stats.ByTier["MODERATE"] != 1 {
		t.Errorf("by-strength counts wrong: %+v", stats.ByTier)
	}
}

func TestCleanupOldSignals(t *testing.T) {
	h := testHistory(t)
	ctx := context.Background()
	now := time.Now().UTC()

	if _, err := h.SaveSignal(ctx, sampleSignal("BTCUSDT", now), nil, nil); err != nil {
		t.Fatalf("SaveSignal: %v", err)
	}
	if _, err := h.SaveSignal(ctx, sampleSignal("BTCUSDT", now.AddDate(0, 0, -40)), nil, nil); err != nil {
		t.Fatalf("SaveSignal: %v", err)
	}

	removed, err := h.CleanupOldSignals(ctx, 30)
	if err != nil {
		t.Fatalf("CleanupOldSignals: %v", err)
	}
	if removed != 1 {
		t.Errorf("expected 1 row removed, got %d", removed)
	}

	recs, _ := h.RecentSignals(ctx, "", 10)
	if len(recs) != 1 {
		t.Errorf("expected 1 surviving record, got %d", len(recs))
	}
}
