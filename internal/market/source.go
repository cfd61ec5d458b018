// Package market provides exchange-facing data access: a REST klines source,
// a websocket mini-ticker stream for 24h market context, and a short-lived
// candle cache shared by evaluations inside a cycle.
package market

import (
	"context"

	"signal-monitorv1/internal/model"
)

// Source fetches candle data for one venue.
type Source interface {
	// Venue returns the venue name used for batch partitioning, e.g. "mexc".
	Venue() string

	// FetchCandles returns up to limit candles for symbol+timeframe,
	// ascending by open time.
	FetchCandles(ctx context.Context, symbol, timeframe string, limit int) ([]model.Candle, error)

	// IsTradable reports whether the symbol is currently tradable on the
	// venue. Lookup failures count as not tradable.
	IsTradable(ctx context.Context, symbol string) bool
}

// ContextProvider serves the most recent 24h market context per symbol.
// Symbols with no ticker data yet return ok=false.
type ContextProvider interface {
	MarketContext(symbol string) (model.MarketContext, bool)
}
