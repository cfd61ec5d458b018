package model

import "time"

// TickerEvent is one 24h mini-ticker update from the exchange stream.
type TickerEvent struct {
	Symbol         string    `json:"symbol"`
	LastPrice      float64   `json:"last_price"`
	Volume24h      float64   `json:"volume_24h"`
	PriceChangePct float64   `json:"price_change_24h"`
	TS             time.Time `json:"ts"`
}

// Context converts the event into the market context persisted with signals.
func (t *TickerEvent) Context() MarketContext {
	return MarketContext{
		Volume24h:      t.Volume24h,
		PriceChangePct: t.PriceChangePct,
	}
}
