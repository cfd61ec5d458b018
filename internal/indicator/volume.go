package indicator

import "signal-monitorv1/internal/model"

// Volume computes the volume analysis series: trailing volume SMA, volume
// ratio, OBV and VWAP.
//
// OBV is cumulative across the whole window, seeded with volume[0]: it adds
// the candle volume on an up-close, subtracts it on a down-close, and holds
// on an equal close.
//
// VWAP here is a rolling-window approximation, not session VWAP: the
// volume-weighted mean of the typical price (H+L+C)/3 over the same trailing
// smaPeriod window as the volume SMA. It does not reset at a session
// boundary.
//
// Requires at least smaPeriod candles; returns an empty series otherwise.
func Volume(candles []model.Candle, smaPeriod int, thresholdMultiplier float64) []model.Sample {
	if smaPeriod <= 0 || len(candles) < smaPeriod {
		return nil
	}
	window := model.SortAscending(candles)

	// OBV over the whole window, not just the trailing SMA slice.
	obv := make([]float64, len(window))
	obv[0] = window[0].Volume
	for i := 1; i < len(window); i++ {
		obv[i] = obv[i-1]
		switch {
		case window[i].Close > window[i-1].Close:
			obv[i] += window[i].Volume
		case window[i].Close < window[i-1].Close:
			obv[i] -= window[i].Volume
		}
	}

	samples := make([]model.Sample, 0, len(window)-smaPeriod+1)
	for i := smaPeriod - 1; i < len(window); i++ {
		trailing := window[i-smaPeriod+1 : i+1]

		volumeSum := 0.0
		pvSum := 0.0
		for _, c := range trailing {
			volumeSum += c.Volume
			pvSum += c.TypicalPrice() * c.Volume
		}
		volumeSMA := volumeSum / float64(smaPeriod)

		ratio := 0.0
		if volumeSMA > 0 {
			ratio = window[i].Volume / volumeSMA
		}

		vwap := window[i].Close
		if volumeSum > 0 {
			vwap = pvSum / volumeSum
		}

		c := window[i]
		samples = append(samples, model.Sample{
			TS:        c.TS,
			Symbol:    c.Symbol,
			Timeframe: c.Timeframe,
			Values: map[string]float64{
				"volume":       c.Volume,
				"volume_sma":   volumeSMA,
				"volume_ratio": ratio,
				"obv":          obv[i],
				"vwap":         vwap,
				"close":        c.Close,
			},
			Flags: map[string]bool{
				"is_high_volume": ratio >= thresholdMultiplier,
			},
		})
	}
	return samples
}

// LatestVolume returns the most recent volume sample, or ok=false when the
// window is too short.
func LatestVolume(candles []model.Candle, smaPeriod int, thresholdMultiplier float64) (model.Sample, bool) {
	series := Volume(candles, smaPeriod, thresholdMultiplier)
	if len(series) == 0 {
		return model.Sample{}, false
	}
	return series[len(series)-1], true
}

// OBVTrendingUp reports whether OBV at the latest sample exceeds OBV lookback
// samples earlier. Returns false when the series is too short.
func OBVTrendingUp(samples []model.Sample, lookback int) bool {
	if lookback <= 0 || len(samples) < lookback+1 {
		return false
	}
	latest := samples[len(samples)-1].Value("obv")
	past := samples[len(samples)-1-lookback].Value("obv")
	return latest > past
}
