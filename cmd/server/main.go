// Package main provides the entry point for the arXiv Pulse service.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/arxivpulse/pulse-service/internal/config"
	"github.com/arxivpulse/pulse-service/internal/database"
	"github.com/arxivpulse/pulse-service/internal/llm"
	"github.com/arxivpulse/pulse-service/internal/notify"
	"github.com/arxivpulse/pulse-service/internal/observability"
	"github.com/arxivpulse/pulse-service/internal/papersources/arxiv"
	"github.com/arxivpulse/pulse-service/internal/pipeline"
	"github.com/arxivpulse/pulse-service/internal/repository"
	"github.com/arxivpulse/pulse-service/internal/scheduler"
	httpserver "github.com/arxivpulse/pulse-service/internal/server/http"
)

const metricsNamespace = "arxiv_pulse"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := observability.NewLogger(observability.LoggingConfig{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		AddSource:  cfg.Logging.AddSource,
		TimeFormat: cfg.Logging.TimeFormat,
	})
	logger = logger.With().Str("component", "server").Logger()
	logger.Info().Msg("arxiv-pulse service starting")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.New(ctx, &cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()
	logger.Info().Msg("database connection established")

	if cfg.Database.MigrationAutoRun {
		migrator, err := database.NewMigrator(db, cfg.Database.MigrationPath, logger)
		if err != nil {
			return fmt.Errorf("create migrator: %w", err)
		}
		defer func() {
			if closeErr := migrator.Close(); closeErr != nil {
				logger.Error().Err(closeErr).Msg("failed to close migrator")
			}
		}()

		if err := migrator.Up(); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
	}

	paperRepo := repository.NewPgPaperRepository(db)

	source := arxiv.New(arxiv.Config{
		BaseURL:    cfg.ArXiv.BaseURL,
		Timeout:    cfg.ArXiv.Timeout,
		RateLimit:  cfg.ArXiv.RateLimit,
		PageSize:   cfg.Crawl.PageSize,
		MaxResults: cfg.Crawl.MaxResultsPerCategory,
	})

	// Enrichment is optional: no keywords means no summarizer and no
	// notifier are needed.
	var summarizer llm.Summarizer
	var notifier notify.Notifier
	if len(cfg.Crawl.Keywords) > 0 {
		summarizer = llm.NewOpenAIProvider(llm.OpenAIConfig{
			APIKey:  cfg.LLM.APIKey,
			Model:   cfg.LLM.Model,
			BaseURL: cfg.LLM.BaseURL,
		}, cfg.LLM.Temperature, cfg.LLM.Timeout, cfg.LLM.MaxRetries)

		if cfg.DingTalk.WebhookURL != "" {
			notifier = notify.NewDingTalkNotifier(cfg.DingTalk.WebhookURL, cfg.DingTalk.Timeout, logger)
		} else {
			logger.Warn().Msg("PULSE_DINGTALK_WEBHOOK_URL not set, notifications disabled")
		}
	} else {
		logger.Info().Msg("no keywords configured, enrichment disabled")
	}

	metrics := observability.NewMetrics(metricsNamespace)

	orchestrator := pipeline.NewOrchestrator(
		source,
		paperRepo,
		summarizer,
		notifier,
		pipeline.SystemClock(),
		metrics,
		logger,
		pipeline.Config{
			Categories:            cfg.Crawl.Categories,
			MaxResultsPerCategory: cfg.Crawl.MaxResultsPerCategory,
			PageSize:              cfg.Crawl.PageSize,
			Keywords:              cfg.Crawl.Keywords,
			Lookback:              cfg.Crawl.Lookback,
		},
	)

	jobs := []scheduler.Job{
		{
			Name:     "ingestion",
			Interval: cfg.Crawl.Interval,
			Run: func(ctx context.Context) error {
				_, err := orchestrator.RunIngestionCycle(ctx)
				return err
			},
		},
	}
	if len(cfg.Crawl.Keywords) > 0 && summarizer != nil {
		jobs = append(jobs, scheduler.Job{
			Name:     "enrichment",
			Interval: cfg.Crawl.SummaryInterval,
			Run: func(ctx context.Context) error {
				_, err := orchestrator.RunEnrichmentCycle(ctx)
				return err
			},
		})
	}

	sched := scheduler.New(logger, jobs...)
	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}

	httpSrv := httpserver.NewServer(httpserver.Config{
		Address:         cfg.Server.HTTPAddress(),
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		MetricsEnabled:  cfg.Metrics.Enabled,
		MetricsPath:     cfg.Metrics.Path,
	}, paperRepo, db, logger)

	errCh := make(chan error, 1)
	go func() {
		if err := httpSrv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	logger.Info().
		Str("http_address", cfg.Server.HTTPAddress()).
		Strs("categories", cfg.Crawl.Categories).
		Strs("keywords", cfg.Crawl.Keywords).
		Msg("arxiv-pulse service is ready")

	select {
	case <-ctx.Done():
		logger.Info().Msg("received shutdown signal")
	case err := <-errCh:
		logger.Error().Err(err).Msg("server error")
		return err
	}

	logger.Info().Msg("shutting down arxiv-pulse service")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP server shutdown error")
	}
	if err := sched.Stop(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("scheduler shutdown error")
	}

	logger.Info().Msg("arxiv-pulse service shutdown complete")
	return nil
}
