package indicator

import "signal-monitorv1/internal/model"

// MACD computes the Moving Average Convergence Divergence series.
//
// macdLine = EMA(fast) - EMA(slow), aligned by truncating the front of the
// fast series by slow-fast samples so both start at candle index slow-1.
// signalLine is an EMA applied recursively to the derived macdLine series.
// histogram = macdLine - signalLine; the "is_bullish" flag means
// macdLine > signalLine.
//
// Requires at least slow+signal candles; returns an empty series otherwise.
func MACD(candles []model.Candle, fast, slow, signal int) []model.Sample {
	if fast <= 0 || slow <= fast || signal <= 0 || len(candles) < slow+signal {
		return nil
	}
	window := model.SortAscending(candles)
	prices := closes(window)

	fastEMA := emaSeries(prices, fast)
	slowEMA := emaSeries(prices, slow)
	if fastEMA == nil || slowEMA == nil {
		return nil
	}

	// fastEMA[0] sits at candle fast-1; drop slow-fast samples so both series
	// start at candle slow-1.
	fastEMA = fastEMA[slow-fast:]

	macdLine := make([]float64, len(slowEMA))
	for i := range slowEMA {
		macdLine[i] = fastEMA[i] - slowEMA[i]
	}

	signalLine := emaSeries(macdLine, signal)
	if signalLine == nil {
		return nil
	}

	// signalLine[0] corresponds to macdLine[signal-1], i.e. candle
	// (slow-1)+(signal-1).
	base := slow - 1 + signal - 1
	samples := make([]model.Sample, 0, len(signalLine))
	for i, sig := range signalLine {
		macd := macdLine[signal-1+i]
		c := window[base+i]
		samples = append(samples, model.Sample{
			TS:        c.TS,
			Symbol:    c.Symbol,
			Timeframe: c.Timeframe,
			Values: map[string]float64{
				"macd_line":   macd,
				"signal_line": sig,
				"histogram":   macd - sig,
				"close":       c.Close,
			},
			Flags: map[string]bool{
				"is_bullish": macd > sig,
			},
		})
	}
	return samples
}

// LatestMACD returns the most recent MACD sample, or ok=false when the window
// is too short.
func LatestMACD(candles []model.Candle, fast, slow, signal int) (model.Sample, bool) {
	series := MACD(candles, fast, slow, signal)
	if len(series) == 0 {
		return model.Sample{}, false
	}
	return series[len(series)-1], true
}
