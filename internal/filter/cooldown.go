package filter

import (
	"strconv"
	"strings"
	"time"

	"signal-monitorv1/internal/model"
)

// baseCooldowns is the default cooldown table in seconds, keyed by timeframe
// then signal strength. Stronger signals cool down faster: they are rarer
// and more actionable.
var baseCooldowns = map[string]map[model.Strength]time.Duration{
	"15m": {
		model.StrengthStrong:   15 * time.Minute,
		model.StrengthModerate: 30 * time.Minute,
		model.StrengthWeak:     60 * time.Minute,
	},
	"1h": {
		model.StrengthStrong:   1 * time.Hour,
		model.StrengthModerate: 2 * time.Hour,
		model.StrengthWeak:     4 * time.Hour,
	},
	"4h": {
		model.StrengthStrong:   2 * time.Hour,
		model.StrengthModerate: 4 * time.Hour,
		model.StrengthWeak:     6 * time.Hour,
	},
	"1d": {
		model.StrengthStrong:   6 * time.Hour,
		model.StrengthModerate: 12 * time.Hour,
		model.StrengthWeak:     24 * time.Hour,
	},
}

// referenceTimeframe anchors proportional scaling for timeframes missing
// from the table.
const referenceTimeframe = "4h"

// CooldownDuration returns the cooldown for a timeframe+strength. Overrides
// take precedence over the base table. A timeframe in neither is scaled
// proportionally from the 4h row by the ratio of timeframe lengths in
// minutes.
func CooldownDuration(timeframe string, strength model.Strength, overrides map[string]map[model.Strength]time.Duration) time.Duration {
	if row, ok := overrides[timeframe]; ok {
		if d, ok := row[strength]; ok {
			return d
		}
	}
	if row, ok := baseCooldowns[timeframe]; ok {
		return row[strength]
	}

	base := baseCooldowns[referenceTimeframe][strength]
	ratio := float64(TimeframeMinutes(timeframe)) / float64(TimeframeMinutes(referenceTimeframe))
	return time.Duration(float64(base) * ratio)
}

// TimeframeMinutes parses a timeframe string ("15m", "1h", "4h", "1d") into
// minutes. Unrecognized formats fall back to the 4h reference so that
// proportional scaling degrades to the base row rather than zero.
func TimeframeMinutes(timeframe string) int {
	tf := strings.ToLower(strings.TrimSpace(timeframe))
	if len(tf) < 2 {
		return 4 * 60
	}
	n, err := strconv.Atoi(tf[:len(tf)-1])
	if err != nil || n <= 0 {
		return 4 * 60
	}
	switch tf[len(tf)-1] {
	case 'm':
		return n
	case 'h':
		return n * 60
	case 'd':
		return n * 24 * 60
	default:
		return 4 * 60
	}
}
