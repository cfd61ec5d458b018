// Package sqlite persists admitted signals for history queries and daily
// reporting. A single-writer connection with WAL journaling keeps inserts
// cheap without blocking readers.
package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"signal-monitorv1/internal/model"
)

// Config configures the history store.
type Config struct {
	DBPath string // path to SQLite database file, e.g. "data/signals.db"
}

// History stores admitted signals.
type History struct {
	db *sqlx.DB
}

// DB returns the underlying sqlx.DB for health checks.
func (h *History) DB() *sqlx.DB { return h.db }

// New opens the database, enables WAL mode and creates the schema.
func New(cfg Config) (*History, error) {
	db, err := sqlx.Open("sqlite3", cfg.DBPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}

	// Set connection pool for single-writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := createSchema(db); err != nil {
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	log.Printf("[sqlite] opened database at %s", cfg.DBPath)
	return &History{db: db}, nil
}

func createSchema(db *sqlx.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS signal_history (
			id               TEXT    PRIMARY KEY,
			symbol           TEXT    NOT NULL,
			timeframe        TEXT    NOT NULL,
			signal_type      TEXT    NOT NULL,
			strength         TEXT    NOT NULL,
			rsi_value        REAL    NOT NULL,
			price            REAL    NOT NULL,
			score            INTEGER NOT NULL,
			max_score        INTEGER NOT NULL,
			message          TEXT,
			breakdown        TEXT,
			volume_24h       REAL,
			price_change_24h REAL,
			created_at       INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_signal_history_symbol_ts
			ON signal_history (symbol, created_at);
		CREATE INDEX IF NOT EXISTS idx_signal_history_ts
			ON signal_history (created_at);
	`)
	return err
}

// Record is one persisted signal row.
type Record struct {
	ID             string  `db:"id" json:"id"`
	Symbol         string  `db:"symbol" json:"symbol"`
	Timeframe      string  `db:"timeframe" json:"timeframe"`
	SignalType     string  `db:"signal_type" json:"signal_type"`
	Strength       string  `db:"strength" json:"strength"`
	RSIValue       float64 `db:"rsi_value" json:"rsi_value"`
	Price          float64 `db:"price" json:"price"`
	Score          int     `db:"score" json:"score"`
	MaxScore       int     `db:"max_score" json:"max_score"`
	Message        string  `db:"message" json:"message"`
	Breakdown      string  `db:"breakdown" json:"breakdown,omitempty"`
	Volume24h      float64 `db:"volume_24h" json:"volume_24h"`
	PriceChangePct float64 `db:"price_change_24h" json:"price_change_24h"`
	CreatedAt      int64   `db:"created_at" json:"created_at"`
}

// SaveSignal inserts an admitted signal with its score breakdown and market
// context, returning the generated id.
func (h *History) SaveSignal(ctx context.Context, sig *model.TradingSignal, breakdown []model.Breakdown, mc *model.MarketContext) (string, error) {
	id := uuid.NewString()

	var breakdownJSON []byte
	if len(breakdown) > 0 {
		breakdownJSON, _ = json.Marshal(breakdown)
	}

	var vol24h, change24h float64
	if mc != nil {
		vol24h = mc.Volume24h
		change24h = mc.PriceChangePct
	}

	_, err := h.db.ExecContext(ctx, `
		INSERT INTO signal_history
			(id, symbol, timeframe, signal_type, strength, rsi_value, price,
			 score, max_score, message, breakdown, volume_24h, price_change_24h, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, sig.Symbol, sig.Timeframe, string(sig.Type), string(sig.Strength),
		sig.RSIValue, sig.Price, sig.Score, sig.MaxScore, sig.Message,
		string(breakdownJSON), vol24h, change24h, sig.TS.Unix(),
	)
	if err != nil {
		return "", fmt.Errorf("sqlite insert signal: %w", err)
	}
	return id, nil
}

// RecentSignals returns the newest signals, newest first. An empty symbol
// matches all symbols.
func (h *History) RecentSignals(ctx context.Context, symbol string, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 50
	}

	var recs []Record
	var err error
	if symbol == "" {
		err = h.db.SelectContext(ctx, &recs,
			`SELECT * FROM signal_history ORDER BY created_at DESC LIMIT ?`, limit)
	} else {
		err = h.db.SelectContext(ctx, &recs,
			`SELECT * FROM signal_history WHERE symbol = ? ORDER BY created_at DESC LIMIT ?`,
			symbol, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite select signals: %w", err)
	}
	return recs, nil
}

// DailyBreakdown summarizes one UTC day of signal activity.
type DailyBreakdown struct {
	Total    int            `json:"total"`
	ByType   map[string]int `json:"by_type"`
	ByTier   map[string]int `json:"by_strength"`
	BySymbol map[string]int `json:"by_symbol"`
}

// DailyStats aggregates signal counts for the UTC day containing t.
func (h *History) DailyStats(ctx context.Context, t time.Time) (*DailyBreakdown, error) {
	day := t.UTC().Truncate(24 * time.Hour)
	from, to := day.Unix(), day.Add(24*time.Hour).Unix()

	rows, err := h.db.QueryxContext(ctx, `
		SELECT symbol, signal_type, strength
		FROM signal_history
		WHERE created_at >= ? AND created_at < ?`, from, to)
	if err != nil {
		return nil, fmt.Errorf("sqlite daily stats: %w", err)
	}
	defer rows.Close()

	stats := &DailyBreakdown{
		ByType:   make(map[string]int),
		ByTier:   make(map[string]int),
		BySymbol: make(map[string]int),
	}
	for rows.Next() {
		var symbol, sigType, strength string
		if err := rows.Scan(&symbol, &sigType, &strength); err != nil {
			return nil, err
		}
		stats.Total++
		stats.ByType[sigType]++
		stats.ByTier[strength]++
		stats.BySymbol[symbol]++
	}
	return stats, rows.Err()
}

// CleanupOldSignals deletes rows older than the retention window and
// returns the number removed.
func (h *History) CleanupOldSignals(ctx context.Context, retentionDays int) (int64, error) {
	if retentionDays <= 0 {
		retentionDays = 30
	}
	cutoff := time.Now().AddDate(0, 0, -retentionDays).Unix()

	res, err := h.db.ExecContext(ctx,
		`DELETE FROM signal_history WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("sqlite cleanup: %w", err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		log.Printf("[sqlite] cleaned up %d signals older than %d days", n, retentionDays)
	}
	return n, nil
}

// Close closes the database.
func (h *History) Close() error {
	return h.db.Close()
}
