// Command history inspects the signal history database from the shell:
// recent signals, daily breakdowns, and retention cleanup.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"signal-monitorv1/internal/store/sqlite"
)

func main() {
	log.SetFlags(0)

	dbPath := flag.String("db", "data/signals.db", "path to the signal history database")
	symbol := flag.String("symbol", "", "filter recent signals by symbol (empty = all)")
	limit := flag.Int("limit", 20, "max recent signals to print")
	daily := flag.Bool("daily", false, "print today's breakdown instead of recent signals")
	cleanup := flag.Int("cleanup", 0, "delete signals older than N days and exit")
	flag.Parse()

	godotenv.Load()
	if env := os.Getenv("SQLITE_PATH"); env != "" && *dbPath == "data/signals.db" {
		*dbPath = env
	}

	h, err := sqlite.New(sqlite.Config{DBPath: *dbPath})
	if err != nil {
		log.Fatalf("open %s: %v", *dbPath, err)
	}
	defer h.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	switch {
	case *cleanup > 0:
		n, err := h.CleanupOldSignals(ctx, *cleanup)
		if err != nil {
			log.Fatalf("cleanup: %v", err)
		}
		fmt.Printf("deleted %d signals older than %d days\n", n, *cleanup)

	case *daily:
		stats, err := h.DailyStats(ctx, time.Now().UTC())
		if err != nil {
			log.Fatalf("daily stats: %v", err)
		}
		fmt.Printf("signals today: %d\n", stats.Total)
		printCounts("by type", stats.ByType)
		printCounts("by strength", stats.ByTier)
		printCounts("by symbol", stats.BySymbol)

	default:
		records, err := h.RecentSignals(ctx, *symbol, *limit)
		if err != nil {
			log.Fatalf("recent signals: %v", err)
		}
		if len(records) == 0 {
			fmt.Println("no signals recorded")
			return
		}
		for _, r := range records {
			ts := time.Unix(r.CreatedAt, 0).UTC().Format("2006-01-02 15:04")
			fmt.Printf("%s  %-10s %-4s %-6s %-8s score=%d/%d rsi=%.1f price=%.8g\n",
				ts, r.Symbol, r.Timeframe, r.SignalType, r.Strength, r.Score, r.MaxScore, r.RSIValue, r.Price)
		}
	}
}

func printCounts(label string, m map[string]int) {
	if len(m) == 0 {
		return
	}
	fmt.Printf("%s:\n", label)
	for k, v := range m {
		fmt.Printf("  %-10s %d\n", k, v)
	}
}
