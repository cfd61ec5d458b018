package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"signal-monitorv1/internal/model"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// Infrastructure
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	SQLitePath    string
	MetricsAddr   string

	// Market source
	MEXCBaseURL  string
	TickerWSURL  string
	CandleLimit  int
	RequestGapMs int
	CacheTTLSec  int

	// Monitoring
	Symbols       string // comma-separated, e.g. "BTCUSDT,ETHUSDT"
	Timeframes    string // comma-separated, e.g. "15m,1h,4h,1d"
	IntervalSec   int    // cycle scheduling interval
	RSIOversold   float64
	RSIOverbought float64

	// Filter
	MaxSignalsPerDay int
	MaxStrongPerDay  int
	MinRSIDelta      float64

	// Batch retry
	BatchMaxAttempts   int
	BatchRetryDelaySec int

	// History
	RetentionDays int

	// Notifications
	TelegramBotToken string
	TelegramChatID   string
	WebhookURL       string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() *Config {
	return &Config{
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),
		SQLitePath:    getEnv("SQLITE_PATH", "data/signals.db"),
		MetricsAddr:   getEnv("METRICS_ADDR", ":9090"),

		MEXCBaseURL:  getEnv("MEXC_BASE_URL", "https://api.mexc.com"),
		TickerWSURL:  getEnv("TICKER_WS_URL", "wss://wbs.mexc.com/ws"),
		CandleLimit:  getEnvInt("CANDLE_LIMIT", 100),
		RequestGapMs: getEnvInt("REQUEST_GAP_MS", 100),
		CacheTTLSec:  getEnvInt("CANDLE_CACHE_TTL_SEC", 30),

		Symbols:       getEnv("SYMBOLS", "BTCUSDT,ETHUSDT"),
		Timeframes:    getEnv("TIMEFRAMES", "15m,1h,4h,1d"),
		IntervalSec:   getEnvInt("CYCLE_INTERVAL_SEC", 300),
		RSIOversold:   getEnvFloat("RSI_OVERSOLD", 30),
		RSIOverbought: getEnvFloat("RSI_OVERBOUGHT", 70),

		MaxSignalsPerDay: getEnvInt("MAX_SIGNALS_PER_DAY", 3),
		MaxStrongPerDay:  getEnvInt("MAX_STRONG_PER_DAY", 2),
		MinRSIDelta:      getEnvFloat("MIN_RSI_DELTA", 2.0),

		BatchMaxAttempts:   getEnvInt("BATCH_MAX_ATTEMPTS", 3),
		BatchRetryDelaySec: getEnvInt("BATCH_RETRY_DELAY_SEC", 5),

		RetentionDays: getEnvInt("HISTORY_RETENTION_DAYS", 30),

		TelegramBotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramChatID:   getEnv("TELEGRAM_CHAT_ID", ""),
		WebhookURL:       getEnv("WEBHOOK_URL", ""),
	}
}

// Interval returns the cycle scheduling interval as a duration.
func (c *Config) Interval() time.Duration {
	return time.Duration(c.IntervalSec) * time.Second
}

// MonitoringConfigs builds the active monitoring configurations. The env
// config yields one; the orchestrator unions across all of them.
func (c *Config) MonitoringConfigs() []model.MonitoringConfig {
	return []model.MonitoringConfig{{
		Name:       "default",
		Active:     true,
		Symbols:    splitList(c.Symbols),
		Timeframes: splitList(c.Timeframes),
		RSILevels: model.RSILevels{
			Oversold:   c.RSIOversold,
			Overbought: c.RSIOverbought,
		},
	}}
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("[config] invalid int for %s: %q, using %d", key, v, fallback)
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		log.Printf("[config] invalid float for %s: %q, using %g", key, v, fallback)
		return fallback
	}
	return f
}
