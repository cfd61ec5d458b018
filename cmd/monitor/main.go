package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"signal-monitorv1/config"
	"signal-monitorv1/internal/logger"
	"signal-monitorv1/internal/monitor"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)

	// Optional: local development convenience, absent in containers.
	if err := godotenv.Load(); err == nil {
		log.Printf("[monitor] loaded .env")
	}

	logger.Init("signal-monitor", slog.LevelInfo)

	cfg := config.Load()
	log.Printf("[monitor] symbols: %s, timeframes: %s, interval: %v",
		cfg.Symbols, cfg.Timeframes, cfg.Interval())

	svc, err := monitor.New(cfg)
	if err != nil {
		log.Fatalf("[monitor] init failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	if err := svc.Run(ctx); err != nil {
		log.Fatalf("[monitor] fatal: %v", err)
	}
}
