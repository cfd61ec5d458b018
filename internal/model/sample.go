package model

import "time"

// Sample is one indicator output for a single candle index. The generic
// Values/Flags shape is shared by all indicators; earlier indices without
// enough history are simply omitted from a series, never padded.
type Sample struct {
	TS        time.Time          `json:"ts"`
	Symbol    string             `json:"symbol"`
	Timeframe string             `json:"timeframe"`
	Values    map[string]float64 `json:"values"`
	Flags     map[string]bool    `json:"flags,omitempty"`
}

// Value returns the named value or 0 if absent.
func (s *Sample) Value(name string) float64 {
	return s.Values[name]
}

// Flag returns the named flag or false if absent.
func (s *Sample) Flag(name string) bool {
	return s.Flags[name]
}
