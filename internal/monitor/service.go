package monitor

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"time"

	"signal-monitorv1/config"
	"signal-monitorv1/internal/confluence"
	"signal-monitorv1/internal/filter"
	"signal-monitorv1/internal/market"
	"signal-monitorv1/internal/metrics"
	"signal-monitorv1/internal/model"
	"signal-monitorv1/internal/notification"
	redisstore "signal-monitorv1/internal/store/redis"
	sqlitestore "signal-monitorv1/internal/store/sqlite"
)

// Service is the top-level orchestrator for the signal monitor.
// It wires all dependencies, manages lifecycle, and coordinates goroutines.
type Service struct {
	cfg *config.Config

	redis   *redisstore.Store
	history *sqlitestore.History
	ticker  *market.TickerStream
	queue   *notification.Queue
	runner  *Runner
	prom    *metrics.Metrics
	health  *metrics.HealthStatus
	metsrv  *metrics.Server

	configs []model.MonitoringConfig
}

// New creates a Service from the given Config.
// It connects to Redis and SQLite and builds the evaluation pipeline.
func New(cfg *config.Config) (*Service, error) {
	svc := &Service{
		cfg:     cfg,
		prom:    metrics.NewMetrics(),
		health:  metrics.NewHealthStatus(),
		configs: cfg.MonitoringConfigs(),
	}

	// ---- Connect to Redis ----
	var err error
	svc.redis, err = redisstore.New(redisstore.Config{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		return nil, err
	}
	svc.redis.Breaker().OnStateChange = func(from, to redisstore.State) {
		log.Printf("[monitor] redis circuit breaker %s → %s", from, to)
		svc.prom.RedisCircuitBreakerState.Set(float64(to))
		if to == redisstore.StateOpen {
			svc.prom.RedisCircuitBreakerTrips.Inc()
		}
	}

	// ---- Open SQLite ----
	os.MkdirAll(filepath.Dir(cfg.SQLitePath), 0o755)
	svc.history, err = sqlitestore.New(sqlitestore.Config{DBPath: cfg.SQLitePath})
	if err != nil {
		svc.redis.Close()
		return nil, err
	}

	// ---- Market source ----
	mexc := market.NewMEXC(market.MEXCConfig{
		BaseURL:    cfg.MEXCBaseURL,
		RequestGap: time.Duration(cfg.RequestGapMs) * time.Millisecond,
	})
	cache := market.NewCandleCache(mexc, time.Duration(cfg.CacheTTLSec)*time.Second)

	// ---- Ticker stream for 24h market context ----
	symbols := svc.configs[0].Symbols
	svc.ticker = market.NewTickerStream(market.TickerConfig{
		URL:     cfg.TickerWSURL,
		Symbols: symbols,
	})
	svc.ticker.OnConnect = func() {
		svc.health.SetTickerConnected(true)
	}
	svc.ticker.OnReconnect = func() {
		svc.prom.TickerReconnects.Inc()
		svc.health.SetTickerConnected(false)
	}

	// ---- Notification chain ----
	var backend notification.Notifier
	switch {
	case cfg.TelegramBotToken != "" && cfg.TelegramChatID != "":
		backend = notification.NewTelegramNotifier(cfg.TelegramBotToken, cfg.TelegramChatID)
	default:
		log.Println("[monitor] no telegram credentials, using log notifier")
		backend = notification.NewLogNotifier()
	}
	if cfg.WebhookURL != "" {
		backend = notification.Multi{backend, notification.NewWebhookNotifier(cfg.WebhookURL)}
	}
	svc.queue = notification.NewQueue(backend,
		notification.WithRetryDelay(time.Duration(cfg.BatchRetryDelaySec)*time.Second))

	// ---- Filter and scorer ----
	sigFilter := filter.New(svc.redis, filter.Config{
		MaxSignalsPerDay: cfg.MaxSignalsPerDay,
		MaxStrongPerDay:  cfg.MaxStrongPerDay,
		MinRSIDelta:      cfg.MinRSIDelta,
	}, nil)

	scorer := confluence.NewScorer(confluence.Config{
		Levels: model.RSILevels{Oversold: cfg.RSIOversold, Overbought: cfg.RSIOverbought},
	})

	svc.runner = &Runner{
		Sources:     []market.Source{cache},
		Scorer:      scorer,
		Filter:      sigFilter,
		Store:       svc.history,
		Notifier:    svc.queue,
		Contexts:    svc.ticker,
		Prom:        svc.prom,
		CandleLimit: cfg.CandleLimit,
		MaxAttempts: cfg.BatchMaxAttempts,
		RetryDelay:  time.Duration(cfg.BatchRetryDelaySec) * time.Second,
	}

	svc.metsrv = metrics.NewServer(cfg.MetricsAddr, svc.health)
	return svc, nil
}

// Run starts all subsystems and blocks until ctx is cancelled.
func (svc *Service) Run(ctx context.Context) error {
	cfg := svc.cfg
	log.Println("[monitor] starting signal monitor...")

	go svc.ticker.Run(ctx)
	go svc.queue.Run(ctx)
	go svc.cleanupLoop(ctx)
	go exportOverflow(ctx, 30*time.Second, svc.ticker.Overflow, svc.prom.RingBufOverflow.Add)
	svc.metsrv.Start()
	svc.health.StartLivenessChecker(ctx, svc.redis.Client(), svc.history.DB().DB, 15*time.Second)

	log.Println("[monitor] ╔════════════════════════════════════════════════════════╗")
	log.Println("[monitor] ║  Confluence Signal Monitor Active                      ║")
	log.Println("[monitor] ║                                                        ║")
	log.Println("[monitor] ║  [Klines] → [Indicators] → [Filter] → [Notify]         ║")
	log.Printf("[monitor] ║  Interval %ds, symbols: %v", cfg.IntervalSec, svc.configs[0].Symbols)
	log.Println("[monitor] ╚════════════════════════════════════════════════════════╝")

	// First cycle immediately, then on the interval. Each tick launches an
	// independent cycle with its own deadline; a slow cycle never delays
	// the next one.
	svc.launchCycle(ctx)
	ticker := time.NewTicker(cfg.Interval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			svc.shutdown()
			return nil
		case <-ticker.C:
			svc.launchCycle(ctx)
		}
	}
}

func (svc *Service) launchCycle(ctx context.Context) {
	go func() {
		cctx, cancel := context.WithTimeout(ctx, svc.cfg.Interval())
		defer cancel()
		svc.runner.RunCycle(cctx, svc.configs)
		svc.health.SetLastCycleAt(time.Now())
	}()
}

// exportOverflow periodically folds the ring's cumulative drop counter
// into a Prometheus counter as deltas.
func exportOverflow(ctx context.Context, interval time.Duration, read func() uint64, add func(float64)) {
	tick := time.NewTicker(interval)
	defer tick.Stop()

	var exported uint64
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			cur := read()
			if cur > exported {
				add(float64(cur - exported))
				exported = cur
			}
		}
	}
}

// cleanupLoop prunes old signal history daily.
func (svc *Service) cleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := svc.history.CleanupOldSignals(ctx, svc.cfg.RetentionDays); err != nil {
				log.Printf("[monitor] history cleanup: %v", err)
			}
		}
	}
}

// shutdown closes connections.
func (svc *Service) shutdown() {
	log.Println("[monitor] shutdown signal received...")

	shutCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	svc.metsrv.Stop(shutCtx)

	svc.history.Close()
	svc.redis.Close()
	log.Println("[monitor] shutdown complete.")
}
