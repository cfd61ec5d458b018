package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// SignalType is the trade direction of a signal.
type SignalType string

const (
	SignalBuy  SignalType = "BUY"
	SignalSell SignalType = "SELL"
)

// Strength grades how much indicator confluence backs a signal.
type Strength string

const (
	StrengthWeak     Strength = "WEAK"
	StrengthModerate Strength = "MODERATE"
	StrengthStrong   Strength = "STRONG"
)

// TradingSignal is an admitted evaluation result for one symbol+timeframe.
// Created only when the confluence score clears the timeframe minimum.
type TradingSignal struct {
	Symbol    string     `json:"symbol"`
	Timeframe string     `json:"timeframe"`
	Type      SignalType `json:"signal_type"`
	Strength  Strength   `json:"strength"`
	RSIValue  float64    `json:"rsi_value"`
	Price     float64    `json:"price"`
	Score     int        `json:"score"`
	MaxScore  int        `json:"max_score"`
	Message   string     `json:"message"`
	TS        time.Time  `json:"ts"`
}

// Key returns the cooldown-state key for this signal: "symbol:timeframe".
func (s *TradingSignal) Key() string {
	return s.Symbol + ":" + s.Timeframe
}

// JSON returns the JSON-encoded signal.
func (s *TradingSignal) JSON() []byte {
	b, _ := json.Marshal(s)
	return b
}

// Breakdown records how one indicator contributed to a confluence score.
// Invariant: Score <= MaxScore.
type Breakdown struct {
	Name         string         `json:"name"`
	Score        int            `json:"score"`
	MaxScore     int            `json:"max_score"`
	Contributing bool           `json:"contributing"`
	Details      map[string]any `json:"details,omitempty"`
}

// MarketContext is a snapshot of 24h market stats captured at admission time
// and persisted alongside the signal.
type MarketContext struct {
	Volume24h      float64 `json:"volume_24h"`
	PriceChangePct float64 `json:"price_change_24h"`
}

// Summary renders a one-line human description, used in logs and notifications.
func (s *TradingSignal) Summary() string {
	return fmt.Sprintf("%s %s %s/%s score=%d/%d rsi=%.2f price=%.8g",
		s.Type, s.Strength, s.Symbol, s.Timeframe, s.Score, s.MaxScore, s.RSIValue, s.Price)
}
