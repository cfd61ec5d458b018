package indicator

import "signal-monitorv1/internal/model"

// RSI computes the Relative Strength Index using Wilder's smoothing method
// (the RMA formulation: avg = (prevAvg*(period-1) + x) / period, seeded with
// a simple average of the first period gains/losses).
//
// Requires at least period+1 candles; returns an empty series otherwise.
// Each sample carries "rsi" (rounded to 2 decimals) and the "close" that
// produced it.
func RSI(candles []model.Candle, period int) []model.Sample {
	if period <= 0 || len(candles) < period+1 {
		return nil
	}
	window := model.SortAscending(candles)
	prices := closes(window)

	gains := make([]float64, 0, len(prices)-1)
	losses := make([]float64, 0, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		delta := prices[i] - prices[i-1]
		if delta > 0 {
			gains = append(gains, delta)
			losses = append(losses, 0)
		} else {
			gains = append(gains, 0)
			losses = append(losses, -delta)
		}
	}

	avgGain, avgLoss := 0.0, 0.0
	for i := 0; i < period; i++ {
		avgGain += gains[i]
		avgLoss += losses[i]
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)

	p := float64(period)
	samples := make([]model.Sample, 0, len(gains)-period)
	for i := period; i < len(gains); i++ {
		avgGain = (avgGain*(p-1) + gains[i]) / p
		avgLoss = (avgLoss*(p-1) + losses[i]) / p

		rsi := 100.0
		if avgLoss != 0 {
			rs := avgGain / avgLoss
			rsi = 100.0 - (100.0 / (1.0 + rs))
		}

		// gains[i] is the change into candle i+1
		c := window[i+1]
		samples = append(samples, model.Sample{
			TS:        c.TS,
			Symbol:    c.Symbol,
			Timeframe: c.Timeframe,
			Values: map[string]float64{
				"rsi":   round2(rsi),
				"close": c.Close,
			},
		})
	}
	return samples
}

// LatestRSI returns the most recent RSI sample, or ok=false when the window
// is too short.
func LatestRSI(candles []model.Candle, period int) (model.Sample, bool) {
	series := RSI(candles, period)
	if len(series) == 0 {
		return model.Sample{}, false
	}
	return series[len(series)-1], true
}
