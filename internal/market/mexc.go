package market

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"signal-monitorv1/internal/model"
)

const (
	defaultBaseURL     = "https://api.mexc.com"
	defaultTimeout     = 10 * time.Second
	defaultRequestGap  = 100 * time.Millisecond
	defaultTradableTTL = 10 * time.Minute
	maxKlineLimit      = 1000
)

// MEXCConfig configures the MEXC spot REST source.
type MEXCConfig struct {
	BaseURL string
	Timeout time.Duration

	// RequestGap is the minimum spacing between REST calls (venue rate
	// limit pacing). TradableTTL bounds how long the exchangeInfo symbol
	// set is cached.
	RequestGap  time.Duration
	TradableTTL time.Duration
}

// MEXC fetches spot klines and tradability from the MEXC v3 REST API.
type MEXC struct {
	cfg  MEXCConfig
	http *http.Client

	// paceMu serializes the rate-limit pacing window.
	paceMu   sync.Mutex
	lastCall time.Time

	tradableMu  sync.RWMutex
	tradable    map[string]bool
	refreshedAt time.Time
}

// NewMEXC creates a MEXC source. Zero-value config fields use defaults.
func NewMEXC(cfg MEXCConfig) *MEXC {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.RequestGap <= 0 {
		cfg.RequestGap = defaultRequestGap
	}
	if cfg.TradableTTL <= 0 {
		cfg.TradableTTL = defaultTradableTTL
	}
	return &MEXC{
		cfg:      cfg,
		http:     &http.Client{Timeout: cfg.Timeout},
		tradable: make(map[string]bool),
	}
}

// Venue returns "mexc".
func (m *MEXC) Venue() string { return "mexc" }

// NormalizeSymbol uppercases and appends the USDT quote when missing,
// matching the venue's spot pair format.
func NormalizeSymbol(symbol string) string {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol != "" && !strings.HasSuffix(symbol, "USDT") {
		symbol += "USDT"
	}
	return symbol
}

// FetchCandles fetches up to limit klines for symbol+timeframe, ascending.
func (m *MEXC) FetchCandles(ctx context.Context, symbol, timeframe string, limit int) ([]model.Candle, error) {
	pair := NormalizeSymbol(symbol)
	if limit <= 0 || limit > maxKlineLimit {
		limit = maxKlineLimit
	}

	q := url.Values{}
	q.Set("symbol", pair)
	q.Set("interval", timeframe)
	q.Set("limit", strconv.Itoa(limit))

	body, err := m.get(ctx, "/api/v3/klines", q)
	if err != nil {
		return nil, fmt.Errorf("mexc klines %s %s: %w", pair, timeframe, err)
	}

	// Binance-shaped rows: [openTime, open, high, low, close, volume, ...]
	var rows [][]any
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("mexc klines %s %s: decode: %w", pair, timeframe, err)
	}

	candles := make([]model.Candle, 0, len(rows))
	for _, row := range rows {
		if len(row) < 6 {
			log.Printf("[market] mexc: short kline row for %s (%d fields), skipping", pair, len(row))
			continue
		}
		candles = append(candles, model.Candle{
			Symbol:    symbol,
			Timeframe: timeframe,
			TS:        time.Unix(0, int64(toFloat(row[0]))*int64(time.Millisecond)).UTC(),
			Open:      toFloat(row[1]),
			High:      toFloat(row[2]),
			Low:       toFloat(row[3]),
			Close:     toFloat(row[4]),
			Volume:    toFloat(row[5]),
		})
	}
	return model.SortAscending(candles), nil
}

// IsTradable checks the cached exchangeInfo symbol set, refreshing it when
// stale. Lookup failures count as not tradable.
func (m *MEXC) IsTradable(ctx context.Context, symbol string) bool {
	pair := NormalizeSymbol(symbol)

	m.tradableMu.RLock()
	fresh := time.Since(m.refreshedAt) < m.cfg.TradableTTL
	ok, known := m.tradable[pair]
	m.tradableMu.RUnlock()

	if fresh && known {
		return ok
	}
	if !fresh {
		if err := m.refreshTradable(ctx); err != nil {
			log.Printf("[market] mexc: exchangeInfo refresh failed: %v", err)
			// Stale data beats no data while the venue misbehaves.
		}
		m.tradableMu.RLock()
		ok = m.tradable[pair]
		m.tradableMu.RUnlock()
	}
	return ok
}

func (m *MEXC) refreshTradable(ctx context.Context) error {
	body, err := m.get(ctx, "/api/v3/exchangeInfo", nil)
	if err != nil {
		return err
	}

	var info struct {
		Symbols []struct {
			Symbol    string `json:"symbol"`
			Status    string `json:"status"`
			SpotTrade *bool  `json:"isSpotTradingAllowed"`
		} `json:"symbols"`
	}
	if err := json.Unmarshal(body, &info); err != nil {
		return fmt.Errorf("decode exchangeInfo: %w", err)
	}

	tradable := make(map[string]bool, len(info.Symbols))
	for _, s := range info.Symbols {
		active := s.Status == "1" || s.Status == "ENABLED"
		if s.SpotTrade != nil {
			active = active && *s.SpotTrade
		}
		tradable[s.Symbol] = active
	}

	m.tradableMu.Lock()
	m.tradable = tradable
	m.refreshedAt = time.Now()
	m.tradableMu.Unlock()

	log.Printf("[market] mexc: refreshed exchangeInfo, %d symbols", len(tradable))
	return nil
}

// get performs a paced GET request and returns the response body.
func (m *MEXC) get(ctx context.Context, path string, q url.Values) ([]byte, error) {
	if err := m.pace(ctx); err != nil {
		return nil, err
	}

	u := m.cfg.BaseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}

	resp, err := m.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("http %d: %s", resp.StatusCode, truncate(body, 200))
	}
	return body, nil
}

// pace enforces the minimum gap between REST calls.
func (m *MEXC) pace(ctx context.Context) error {
	m.paceMu.Lock()
	wait := m.cfg.RequestGap - time.Since(m.lastCall)
	if wait > 0 {
		m.paceMu.Unlock()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		m.paceMu.Lock()
	}
	m.lastCall = time.Now()
	m.paceMu.Unlock()
	return nil
}

func toFloat(v any) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case string:
		f, _ := strconv.ParseFloat(t, 64)
		return f
	case json.Number:
		f, _ := t.Float64()
		return f
	default:
		return 0
	}
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
