package market

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

const klinesFixture = `[
	[1700000000000, "50000.1", "50100.5", "49900.0", "50050.2", "123.45", 1700000899999, "6177000.0", 321, "60.0", "3000000.0", "0"],
	[1700000900000, "50050.2", "50200.0", "50000.0", "50150.8", "98.76", 1700001799999, "4952000.0", 280, "45.0", "2250000.0", "0"]
]`

const exchangeInfoFixture = `{
	"symbols": [
		{"symbol": "BTCUSDT", "status": "1", "isSpotTradingAllowed": true},
		{"symbol": "DEADUSDT", "status": "2", "isSpotTradingAllowed": true},
		{"symbol": "HALTUSDT", "status": "1", "isSpotTradingAllowed": false},
		{"symbol": "ETHUSDT", "status": "ENABLED"}
	]
}`

func testServer(t *testing.T) (*httptest.Server, *atomic.Int64) {
	t.Helper()
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		switch r.URL.Path {
		case "/api/v3/klines":
			w.Write([]byte(klinesFixture))
		case "/api/v3/exchangeInfo":
			w.Write([]byte(exchangeInfoFixture))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestNormalizeSymbol(t *testing.T) {
	cases := []struct{ in, want string }{
		{"btc", "BTCUSDT"},
		{"BTCUSDT", "BTCUSDT"},
		{" eth ", "ETHUSDT"},
		{"", ""},
	}
	for _, c := range cases {
		if got := NormalizeSymbol(c.in); got != c.want {
			t.Errorf("NormalizeSymbol(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestFetchCandles(t *testing.T) {
	srv, _ := testServer(t)
	m := NewMEXC(MEXCConfig{BaseURL: srv.URL, RequestGap: time.Nanosecond})

	candles, err := m.FetchCandles(context.Background(), "BTCUSDT", "15m", 50)
	if err != nil {
		t.Fatalf("FetchCandles: %v", err)
	}
	if len(candles) != 2 {
		t.Fatalf("expected 2 candles, got %d", len(candles))
	}

	c := candles[0]
	if c.Symbol != "BTCUSDT" || c.Timeframe != "15m" {
		t.Errorf("identity not carried: %+v", c)
	}
	if c.Open != 50000.1 || c.High != 50100.5 || c.Low != 49900.0 || c.Close != 50050.2 || c.Volume != 123.45 {
		t.Errorf("OHLCV parse wrong: %+v", c)
	}
	if got := c.TS.UnixMilli(); got != 1700000000000 {
		t.Errorf("timestamp = %d, want 1700000000000", got)
	}
	if !candles[0].TS.Before(candles[1].TS) {
		t.Error("candles not ascending")
	}
}

func TestIsTradable(t *testing.T) {
	srv, calls := testServer(t)
	m := NewMEXC(MEXCConfig{BaseURL: srv.URL, RequestGap: time.Nanosecond})
	ctx := context.Background()

	cases := []struct {
		symbol string
		want   bool
	}{
		{"BTCUSDT", true},
		{"ETHUSDT", true},  // no isSpotTradingAllowed field defaults to allowed
		{"DEADUSDT", false}, // status 2
		{"HALTUSDT", false}, // spot trading disabled
		{"NOPEUSDT", false}, // unknown symbol
	}
	for _, c := range cases {
		if got := m.IsTradable(ctx, c.symbol); got != c.want {
			t.Errorf("IsTradable(%s) = %v, want %v", c.symbol, got, c.want)
		}
	}

	// All lookups above must share one exchangeInfo fetch.
	if got := calls.Load(); got != 1 {
		t.Errorf("expected 1 upstream call, got %d", got)
	}
}

func TestMiniTickerParse(t *testing.T) {
	msg := []byte(`{"c":"spot@public.miniTicker.v3.api@BTCUSDT@UTC+0","t":1700000000000,` +
		`"d":{"s":"BTCUSDT","p":"50123.45","r":"-0.0321","q":"1500000000.5"}}`)

	ev, ok := parseMiniTicker(msg)
	if !ok {
		t.Fatal("expected a parsed event")
	}
	if ev.Symbol != "BTCUSDT" || ev.LastPrice != 50123.45 {
		t.Errorf("unexpected event: %+v", ev)
	}
	if diff := ev.PriceChangePct - (-3.21); diff > 1e-9 || diff < -1e-9 {
		t.Errorf("change pct = %v, want -3.21", ev.PriceChangePct)
	}
	if ev.Volume24h != 1500000000.5 {
		t.Errorf("volume = %v", ev.Volume24h)
	}

	// Acks and PONGs carry no payload and must be skipped.
	if _, ok := parseMiniTicker([]byte(`{"id":0,"code":0,"msg":"PONG"}`)); ok {
		t.Error("control frame must not parse as a ticker event")
	}
}
