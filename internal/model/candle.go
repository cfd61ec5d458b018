package model

import (
	"encoding/json"
	"sort"
	"time"
)

// Candle represents one OHLCV candle for a symbol+timeframe pair.
// Prices are float64 (crypto quotes are fractional). Immutable once fetched.
type Candle struct {
	Symbol    string    `json:"symbol"`
	Timeframe string    `json:"timeframe"`
	TS        time.Time `json:"ts"` // bucket open time (UTC)
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
}

// Key returns a unique key for this candle's market: "symbol:timeframe".
func (c *Candle) Key() string {
	return c.Symbol + ":" + c.Timeframe
}

// JSON returns the JSON-encoded candle (ignoring errors for hot-path usage).
func (c *Candle) JSON() []byte {
	b, _ := json.Marshal(c)
	return b
}

// TypicalPrice returns (high + low + close) / 3.
func (c *Candle) TypicalPrice() float64 {
	return (c.High + c.Low + c.Close) / 3
}

// SortAscending orders candles by timestamp, oldest first. Indicator math
// assumes ascending order, so callers that receive exchange data in unknown
// order must pass windows through here first.
func SortAscending(candles []Candle) []Candle {
	out := make([]Candle, len(candles))
	copy(out, candles)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].TS.Before(out[j].TS)
	})
	return out
}
