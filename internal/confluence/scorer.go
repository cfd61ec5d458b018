// Package confluence fuses RSI, EMA, MACD and volume indicator outputs into
// a graded trading signal.
//
// The RSI zone is the gate: a window whose latest RSI sits in the neutral
// band produces no signal at all. Once a candidate direction exists, each
// indicator is scored independently against it and the total decides
// validity and strength. A failing indicator degrades to a zero
// contribution — it never aborts scoring of the others.
package confluence

import (
	"fmt"

	"signal-monitorv1/internal/indicator"
	"signal-monitorv1/internal/model"
)

// Default scoring weights. Together they add up to a max score of 8.
const (
	rsiMaxScore    = 2
	emaMaxScore    = 3
	macdMaxScore   = 1
	volumeMaxScore = 2

	// MaxScore is the total achievable confluence score.
	MaxScore = rsiMaxScore + emaMaxScore + macdMaxScore + volumeMaxScore
)

// Strength cutoffs as a fraction of MaxScore.
const (
	strongRatio   = 0.8
	moderateRatio = 0.6
)

// Config holds indicator parameters and per-timeframe validity thresholds.
type Config struct {
	RSIPeriod int
	Levels    model.RSILevels

	EMAShortPeriod  int
	EMAMediumPeriod int
	EMALongPeriod   int

	MACDFastPeriod   int
	MACDSlowPeriod   int
	MACDSignalPeriod int

	VolumeSMAPeriod int
	VolumeThreshold float64
	OBVLookback     int

	// MinScores maps timeframe → minimum score for a valid signal.
	// Timeframes not present fall back to DefaultMinScore.
	MinScores       map[string]int
	DefaultMinScore int
}

// DefaultConfig returns the standard indicator parameters: RSI(14) with
// 30/70 zones, EMAs 9/21/50, MACD 12/26/9, volume SMA(20) at a 1.2x
// threshold, and minimum scores of 4 intraday / 5 for 4h and daily.
func DefaultConfig() Config {
	return Config{
		RSIPeriod:        14,
		Levels:           model.RSILevels{Oversold: 30, Overbought: 70},
		EMAShortPeriod:   9,
		EMAMediumPeriod:  21,
		EMALongPeriod:    50,
		MACDFastPeriod:   12,
		MACDSlowPeriod:   26,
		MACDSignalPeriod: 9,
		VolumeSMAPeriod:  20,
		VolumeThreshold:  1.2,
		OBVLookback:      5,
		MinScores:        map[string]int{"15m": 4, "1h": 4, "4h": 5, "1d": 5},
		DefaultMinScore:  4,
	}
}

// Result is the outcome of one confluence evaluation.
// Signal is nil unless the score cleared the timeframe minimum.
type Result struct {
	Signal           *model.TradingSignal
	Breakdown        []model.Breakdown
	Score            int
	MaxScore         int
	Strength         model.Strength
	Recommendation   string
	RiskLevel        string
	Price            float64
	InsufficientData bool
}

// Scorer evaluates candle windows against the configured thresholds.
type Scorer struct {
	cfg Config
}

// NewScorer creates a Scorer. Zero-valued config fields fall back to
// DefaultConfig values.
func NewScorer(cfg Config) *Scorer {
	def := DefaultConfig()
	if cfg.RSIPeriod <= 0 {
		cfg.RSIPeriod = def.RSIPeriod
	}
	if cfg.Levels.Oversold <= 0 && cfg.Levels.Overbought <= 0 {
		cfg.Levels = def.Levels
	}
	if cfg.EMAShortPeriod <= 0 {
		cfg.EMAShortPeriod = def.EMAShortPeriod
	}
	if cfg.EMAMediumPeriod <= 0 {
		cfg.EMAMediumPeriod = def.EMAMediumPeriod
	}
	if cfg.EMALongPeriod <= 0 {
		cfg.EMALongPeriod = def.EMALongPeriod
	}
	if cfg.MACDFastPeriod <= 0 {
		cfg.MACDFastPeriod = def.MACDFastPeriod
	}
	if cfg.MACDSlowPeriod <= 0 {
		cfg.MACDSlowPeriod = def.MACDSlowPeriod
	}
	if cfg.MACDSignalPeriod <= 0 {
		cfg.MACDSignalPeriod = def.MACDSignalPeriod
	}
	if cfg.VolumeSMAPeriod <= 0 {
		cfg.VolumeSMAPeriod = def.VolumeSMAPeriod
	}
	if cfg.VolumeThreshold <= 0 {
		cfg.VolumeThreshold = def.VolumeThreshold
	}
	if cfg.OBVLookback <= 0 {
		cfg.OBVLookback = def.OBVLookback
	}
	if cfg.MinScores == nil {
		cfg.MinScores = def.MinScores
	}
	if cfg.DefaultMinScore <= 0 {
		cfg.DefaultMinScore = def.DefaultMinScore
	}
	return &Scorer{cfg: cfg}
}

// MinScore returns the minimum valid score for a timeframe.
func (s *Scorer) MinScore(timeframe string) int {
	if v, ok := s.cfg.MinScores[timeframe]; ok {
		return v
	}
	return s.cfg.DefaultMinScore
}

// Evaluate runs the full confluence analysis for one symbol+timeframe window.
func (s *Scorer) Evaluate(window []model.Candle, symbol, timeframe string) Result {
	return s.EvaluateWithLevels(window, symbol, timeframe, s.cfg.Levels)
}

// EvaluateWithLevels is Evaluate with per-call RSI zone overrides, used when
// a monitoring config carries its own levels.
func (s *Scorer) EvaluateWithLevels(window []model.Candle, symbol, timeframe string, levels model.RSILevels) Result {
	rsi, ok := indicator.LatestRSI(window, s.cfg.RSIPeriod)
	if !ok {
		return Result{
			MaxScore:         MaxScore,
			Strength:         model.StrengthWeak,
			Recommendation:   "insufficient candle history for RSI",
			RiskLevel:        "HIGH",
			InsufficientData: true,
		}
	}

	rsiValue := rsi.Value("rsi")
	price := rsi.Value("close")

	var direction model.SignalType
	switch {
	case rsiValue <= levels.Oversold:
		direction = model.SignalBuy
	case rsiValue >= levels.Overbought:
		direction = model.SignalSell
	default:
		// Neutral zone: no candidate, zero-score breakdown.
		return Result{
			Breakdown: []model.Breakdown{{
				Name:     "RSI",
				MaxScore: rsiMaxScore,
				Details: map[string]any{
					"value": rsiValue,
					"zone":  "neutral",
				},
			}},
			MaxScore:       MaxScore,
			Strength:       model.StrengthWeak,
			Recommendation: "RSI in neutral zone, waiting for an extreme",
			RiskLevel:      "LOW",
			Price:          price,
		}
	}

	breakdown := make([]model.Breakdown, 0, 4)
	score := 0

	// RSI: the zone itself is the gate and always contributes full points.
	zone := "oversold"
	if direction == model.SignalSell {
		zone = "overbought"
	}
	breakdown = append(breakdown, model.Breakdown{
		Name:         "RSI",
		Score:        rsiMaxScore,
		MaxScore:     rsiMaxScore,
		Contributing: true,
		Details: map[string]any{
			"value":      rsiValue,
			"zone":       zone,
			"oversold":   levels.Oversold,
			"overbought": levels.Overbought,
		},
	})
	score += rsiMaxScore

	score += s.scoreEMA(window, direction, price, &breakdown)
	score += s.scoreMACD(window, direction, &breakdown)
	score += s.scoreVolume(window, direction, &breakdown)

	ratio := float64(score) / float64(MaxScore)
	strength := model.StrengthWeak
	switch {
	case ratio >= strongRatio:
		strength = model.StrengthStrong
	case ratio >= moderateRatio:
		strength = model.StrengthModerate
	}

	minScore := s.MinScore(timeframe)
	result := Result{
		Breakdown: breakdown,
		Score:     score,
		MaxScore:  MaxScore,
		Strength:  strength,
		RiskLevel: riskLevel(ratio),
		Price:     price,
	}

	if score < minScore {
		result.Recommendation = fmt.Sprintf("score %d below minimum %d for %s, waiting for more confirmation", score, minScore, timeframe)
		return result
	}

	msg := fmt.Sprintf("%s %s signal - score %d/%d", strength, direction, score, MaxScore)
	result.Signal = &model.TradingSignal{
		Symbol:    symbol,
		Timeframe: timeframe,
		Type:      direction,
		Strength:  strength,
		RSIValue:  rsiValue,
		Price:     price,
		Score:     score,
		MaxScore:  MaxScore,
		Message:   msg,
		TS:        rsi.TS,
	}
	result.Recommendation = msg
	return result
}

// scoreEMA awards up to 3 points: 2 when the EMA trend agrees with the
// candidate direction, 1 more when price sits on the trend-confirming side
// of the long EMA.
func (s *Scorer) scoreEMA(window []model.Candle, direction model.SignalType, price float64, breakdown *[]model.Breakdown) int {
	entry := model.Breakdown{Name: "EMA", MaxScore: emaMaxScore, Details: map[string]any{}}

	short, okShort := indicator.LatestEMA(window, s.cfg.EMAShortPeriod)
	medium, okMedium := indicator.LatestEMA(window, s.cfg.EMAMediumPeriod)
	if !okShort || !okMedium {
		entry.Details["reason"] = "insufficient candle history"
		*breakdown = append(*breakdown, entry)
		return 0
	}

	trendingUp := short.Value("ema") > medium.Value("ema")
	entry.Details["trending_up"] = trendingUp
	entry.Details["ema_short"] = short.Value("ema")
	entry.Details["ema_medium"] = medium.Value("ema")

	score := 0
	if (direction == model.SignalBuy && trendingUp) || (direction == model.SignalSell && !trendingUp) {
		score += 2
	}

	if long, ok := indicator.LatestEMA(window, s.cfg.EMALongPeriod); ok {
		entry.Details["ema_long"] = long.Value("ema")
		priceAboveLong := price > long.Value("ema")
		entry.Details["price_above_long"] = priceAboveLong
		if (direction == model.SignalBuy && priceAboveLong) || (direction == model.SignalSell && !priceAboveLong) {
			score++
		}
	}

	entry.Score = score
	entry.Contributing = score > 0
	*breakdown = append(*breakdown, entry)
	return score
}

// scoreMACD awards 1 point when the MACD crossover direction agrees with the
// candidate direction.
func (s *Scorer) scoreMACD(window []model.Candle, direction model.SignalType, breakdown *[]model.Breakdown) int {
	entry := model.Breakdown{Name: "MACD", MaxScore: macdMaxScore, Details: map[string]any{}}

	macd, ok := indicator.LatestMACD(window, s.cfg.MACDFastPeriod, s.cfg.MACDSlowPeriod, s.cfg.MACDSignalPeriod)
	if !ok {
		entry.Details["reason"] = "insufficient candle history"
		*breakdown = append(*breakdown, entry)
		return 0
	}

	isBullish := macd.Flag("is_bullish")
	entry.Details["is_bullish"] = isBullish
	entry.Details["macd_line"] = macd.Value("macd_line")
	entry.Details["signal_line"] = macd.Value("signal_line")
	entry.Details["histogram"] = macd.Value("histogram")

	score := 0
	if (direction == model.SignalBuy && isBullish) || (direction == model.SignalSell && !isBullish) {
		score = 1
	}

	entry.Score = score
	entry.Contributing = score > 0
	*breakdown = append(*breakdown, entry)
	return score
}

// scoreVolume awards up to 2 points: 1 for high volume, 1 more when the OBV
// trend agrees with the candidate direction.
func (s *Scorer) scoreVolume(window []model.Candle, direction model.SignalType, breakdown *[]model.Breakdown) int {
	entry := model.Breakdown{Name: "Volume", MaxScore: volumeMaxScore, Details: map[string]any{}}

	series := indicator.Volume(window, s.cfg.VolumeSMAPeriod, s.cfg.VolumeThreshold)
	if len(series) == 0 {
		entry.Details["reason"] = "insufficient candle history"
		*breakdown = append(*breakdown, entry)
		return 0
	}

	latest := series[len(series)-1]
	highVolume := latest.Flag("is_high_volume")
	obvUp := indicator.OBVTrendingUp(series, s.cfg.OBVLookback)
	entry.Details["is_high_volume"] = highVolume
	entry.Details["volume_ratio"] = latest.Value("volume_ratio")
	entry.Details["obv"] = latest.Value("obv")
	entry.Details["obv_trending_up"] = obvUp
	entry.Details["vwap"] = latest.Value("vwap")

	score := 0
	if highVolume {
		score++
	}
	if (direction == model.SignalBuy && obvUp) || (direction == model.SignalSell && !obvUp) {
		score++
	}

	entry.Score = score
	entry.Contributing = score > 0
	*breakdown = append(*breakdown, entry)
	return score
}

// riskLevel maps score ratio to a coarse risk grade for notifications.
func riskLevel(ratio float64) string {
	switch {
	case ratio >= strongRatio:
		return "LOW"
	case ratio >= moderateRatio:
		return "MEDIUM"
	default:
		return "HIGH"
	}
}
