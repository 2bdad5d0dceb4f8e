package app

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"MentionScanner/internal/config"
	"MentionScanner/internal/domain"
	"MentionScanner/internal/fetch"
	"MentionScanner/internal/httpserver"
	"MentionScanner/internal/infrastructure/analysis"
	"MentionScanner/internal/infrastructure/platforms"
	infrascheduler "MentionScanner/internal/infrastructure/scheduler"
	"MentionScanner/internal/infrastructure/storage"
	"MentionScanner/internal/infrastructure/telegram"
	"MentionScanner/internal/logging"
	"MentionScanner/internal/ports"
	"MentionScanner/internal/usecase"
)

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg          config.Config
	logger       *slog.Logger
	orchestrator *usecase.Orchestrator
	stats        *usecase.StatsRecorder
	cleanup      func()
}

// New builds a runnable application instance, connecting to Postgres
// and registering every enabled platform fetcher.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level, cfg.Logging.Format)
	}

	pool, err := storage.Connect(ctx, cfg.Database.DSN, cfg.Database.MaxConns)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	repository := storage.NewPostgresRepository(pool)

	registry := fetch.NewRegistry()
	registry.Register(platforms.NewRedditFetcher(nil, baseLogger.With("component", "fetcher.reddit")))
	registry.Register(platforms.NewHackerNewsFetcher(nil, baseLogger.With("component", "fetcher.hackernews")))
	registry.Register(platforms.NewTrustpilotFetcher(nil, baseLogger.With("component", "fetcher.trustpilot")))
	registry.Register(platforms.NewMediumFetcher(nil, baseLogger.With("component", "fetcher.medium")))
	if pcfg, ok := cfg.PlatformByName(domain.PlatformYouTube); ok {
		registry.Register(platforms.NewYouTubeFetcher(nil, pcfg.APIKey, baseLogger.With("component", "fetcher.youtube")))
	}
	if pcfg, ok := cfg.PlatformByName(domain.PlatformProductHunt); ok {
		registry.Register(platforms.NewProductHuntFetcher(nil, pcfg.APIKey, baseLogger.With("component", "fetcher.producthunt")))
	}

	var alerts ports.AlertNotifier
	if cfg.Alerts.Enabled && cfg.Alerts.BotToken != "" {
		cooldown := time.Duration(cfg.Alerts.CooldownMinutes) * time.Minute
		alerts = telegram.NewNotifier(cfg.Alerts.BotToken, cfg.Alerts.ChatID, cooldown)
	}

	stats := usecase.NewStatsRecorder()
	orchestrator := usecase.NewOrchestrator(usecase.CycleDeps{
		Directory: repository,
		Writer:    repository,
		Trigger:   analysis.NewTrigger(cfg.Analysis),
		Alerts:    alerts,
		Registry:  registry,
		Stats:     stats,
		Config:    cfg,
		Logger:    baseLogger.With("component", "orchestrator"),
	})

	return &Application{
		cfg:          cfg,
		logger:       baseLogger,
		orchestrator: orchestrator,
		stats:        stats,
		cleanup:      pool.Close,
	}, nil
}

// Close releases held resources.
func (a *Application) Close() {
	if a.cleanup != nil {
		a.cleanup()
	}
}

// RunDaemon starts the per-platform tickers and the ops server, then
// blocks until the context ends or a termination signal arrives.
func (a *Application) RunDaemon(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var intervals []infrascheduler.PlatformInterval
	for _, pcfg := range a.cfg.Platforms {
		if !pcfg.Enabled {
			continue
		}
		intervals = append(intervals, infrascheduler.PlatformInterval{
			Platform: pcfg.Platform(),
			Interval: pcfg.Interval(),
		})
	}
	if len(intervals) == 0 {
		return fmt.Errorf("no platforms enabled")
	}

	driver := infrascheduler.NewTickerScheduler(intervals)
	runner := usecase.NewScheduler(driver, a.orchestrator)
	if err := runner.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}

	if a.cfg.HTTP.Enabled {
		server := httpserver.New(a.cfg.HTTP.Addr, a.stats, a.logger.With("component", "httpserver"))
		go func() {
			if err := server.Start(ctx); err != nil {
				a.logger.Error("ops server stopped", "error", err)
			}
		}()
	}

	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return runner.Stop(stopCtx)
}

// RunCycle executes a single platform cycle and returns its outcome,
// for cron-driven or manual runs.
func (a *Application) RunCycle(ctx context.Context, platform domain.Platform) domain.CycleStats {
	return a.orchestrator.RunCycle(ctx, platform)
}
