package indicator

import "signal-monitorv1/internal/model"

// EMA computes an Exponential Moving Average series.
// multiplier = 2/(period+1); the seed is the simple average of the first
// period closes, attached to the candle at index period-1.
//
// Requires at least period candles; returns an empty series otherwise.
func EMA(candles []model.Candle, period int) []model.Sample {
	if period <= 0 || len(candles) < period {
		return nil
	}
	window := model.SortAscending(candles)

	series := emaSeries(closes(window), period)
	samples := make([]model.Sample, 0, len(series))
	for i, v := range series {
		c := window[period-1+i]
		samples = append(samples, model.Sample{
			TS:        c.TS,
			Symbol:    c.Symbol,
			Timeframe: c.Timeframe,
			Values: map[string]float64{
				"ema":   v,
				"close": c.Close,
			},
		})
	}
	return samples
}

// LatestEMA returns the most recent EMA sample, or ok=false when the window
// is too short.
func LatestEMA(candles []model.Candle, period int) (model.Sample, bool) {
	series := EMA(candles, period)
	if len(series) == 0 {
		return model.Sample{}, false
	}
	return series[len(series)-1], true
}

// TrendingUp reports whether the short EMA sits above the medium EMA at the
// latest candle. Returns false when either series cannot be computed.
func TrendingUp(candles []model.Candle, shortPeriod, mediumPeriod int) bool {
	short, ok := LatestEMA(candles, shortPeriod)
	if !ok {
		return false
	}
	medium, ok := LatestEMA(candles, mediumPeriod)
	if !ok {
		return false
	}
	return short.Value("ema") > medium.Value("ema")
}
