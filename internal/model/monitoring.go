package model

// RSILevels are the zone thresholds that turn an RSI value into a signal
// candidate. A value at or below Oversold is a BUY candidate; at or above
// Overbought a SELL candidate.
type RSILevels struct {
	Oversold   float64 `json:"oversold"`
	Overbought float64 `json:"overbought"`
}

// MonitoringConfig is one active monitoring configuration. The cycle
// orchestrator unions symbols and timeframes across all active configs.
type MonitoringConfig struct {
	Name       string    `json:"name"`
	Active     bool      `json:"active"`
	Symbols    []string  `json:"symbols"`
	Timeframes []string  `json:"timeframes"`
	RSILevels  RSILevels `json:"rsi_levels"`
}
