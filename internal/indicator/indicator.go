// Package indicator provides technical indicator calculations over candle
// windows: RSI, EMA, MACD and Volume/OBV/VWAP.
//
// All functions are pure: they take an ordered candle window and return an
// ordered series of samples, one per candle index that has enough history.
// A window shorter than an indicator's minimum yields an empty series —
// insufficient data is a normal, silent outcome, never an error.
package indicator

import (
	"math"

	"signal-monitorv1/internal/model"
)

// round2 rounds to 2 decimal places (RSI display precision).
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// closes extracts close prices from an ascending candle window.
func closes(candles []model.Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}

// emaSeries computes an EMA over a raw value series. The result is aligned so
// that emaSeries(v, p)[0] corresponds to v[p-1] (the SMA seed index). Returns
// nil if len(values) < period or period <= 0.
func emaSeries(values []float64, period int) []float64 {
	if period <= 0 || len(values) < period {
		return nil
	}

	multiplier := 2.0 / float64(period+1)

	seed := 0.0
	for _, v := range values[:period] {
		seed += v
	}
	seed /= float64(period)

	out := make([]float64, 0, len(values)-period+1)
	out = append(out, seed)

	ema := seed
	for i := period; i < len(values); i++ {
		ema = values[i]*multiplier + ema*(1-multiplier)
		out = append(out, ema)
	}
	return out
}
