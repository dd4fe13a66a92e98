// Package app wires configuration into the adapters and use cases.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Haik11kashiyani/news-auto/internal/assemble"
	"github.com/Haik11kashiyani/news-auto/internal/config"
	"github.com/Haik11kashiyani/news-auto/internal/infrastructure/llm"
	"github.com/Haik11kashiyani/news-auto/internal/infrastructure/newsdata"
	"github.com/Haik11kashiyani/news-auto/internal/infrastructure/render"
	"github.com/Haik11kashiyani/news-auto/internal/infrastructure/scheduler"
	"github.com/Haik11kashiyani/news-auto/internal/infrastructure/scraper"
	"github.com/Haik11kashiyani/news-auto/internal/infrastructure/stock"
	"github.com/Haik11kashiyani/news-auto/internal/infrastructure/telegram"
	"github.com/Haik11kashiyani/news-auto/internal/infrastructure/tts"
	"github.com/Haik11kashiyani/news-auto/internal/ledger"
	"github.com/Haik11kashiyani/news-auto/internal/logging"
	"github.com/Haik11kashiyani/news-auto/internal/pipeline"
	"github.com/Haik11kashiyani/news-auto/internal/ports"
	"github.com/Haik11kashiyani/news-auto/internal/retry"
	"github.com/Haik11kashiyani/news-auto/internal/scanner"
	"github.com/Haik11kashiyani/news-auto/internal/usecase"
)

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg          config.Config
	orchestrator *usecase.Orchestrator
	scheduled    *usecase.Scheduler
}

// New builds a runnable application instance. The ledger backend and the news
// source are selected by configuration.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	store, err := openLedger(ctx, cfg.Ledger)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}

	source := buildSource(cfg, baseLogger)

	policy := retry.New(cfg.Run.MaxRetryAttempt)

	assembler := assemble.New(
		render.NewFFmpegRenderer(cfg.Run.OutputDir, baseLogger.With("component", "render")),
		cfg.Assembly.ToleranceSeconds,
		baseLogger.With("component", "assemble"),
	)

	itemPipeline := pipeline.New(pipeline.Deps{
		Scripter:    llm.NewGeminiScripter(cfg.Gemini, cfg.Script.WordsPerSecond),
		Synthesizer: tts.NewElevenLabs(cfg.TTS, render.FFprobeDuration{}),
		Visuals:     stock.NewPexelsSource(cfg.Stock),
		Assembler:   assembler,
		Ledger:      store,
		Policy:      policy,
		Persona:     cfg.Script.Persona.Domain(),
		Logger:      baseLogger.With("component", "pipeline"),
	}, pipeline.Options{
		TargetMinSeconds: cfg.Script.TargetMinSeconds,
		TargetMaxSeconds: cfg.Script.TargetMaxSeconds,
		WordsPerSecond:   cfg.Script.WordsPerSecond,
		MaxItemAttempts:  cfg.Run.MaxItemAttempts,
	})

	var notifier ports.Notifier
	if cfg.Notifications.Telegram.BotToken != "" {
		notifier = telegram.NewNotifier(cfg.Notifications.Telegram.BotToken, cfg.Notifications.Telegram.ChatID)
	}

	orchestrator := usecase.NewOrchestrator(usecase.OrchestratorDeps{
		Source:   source,
		Ledger:   store,
		Pipeline: itemPipeline,
		Notifier: notifier,
		Logger:   baseLogger.With("component", "orchestrator"),
	}, usecase.OrchestratorOptions{
		BatchSize:       cfg.Run.BatchSize,
		ConcurrencyCap:  cfg.Run.ConcurrencyCap,
		MaxItemAttempts: cfg.Run.MaxItemAttempts,
	})

	scheduled := usecase.NewScheduler(
		scheduler.NewTickerScheduler(cfg.Scheduler.Interval),
		orchestrator,
		baseLogger.With("component", "scheduler"),
	)

	return &Application{cfg: cfg, orchestrator: orchestrator, scheduled: scheduled}, nil
}

// Run performs a single orchestrator run.
func (a *Application) Run(ctx context.Context) error {
	_, err := a.orchestrator.Run(ctx)
	return err
}

// RunScheduled blocks, executing runs on the configured interval until the
// context is cancelled.
func (a *Application) RunScheduled(ctx context.Context) error {
	if err := a.scheduled.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}

	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return a.scheduled.Stop(stopCtx)
}

func openLedger(ctx context.Context, cfg config.LedgerConfig) (ports.Ledger, error) {
	retention := time.Duration(cfg.RetentionDays) * 24 * time.Hour

	switch cfg.Backend {
	case "postgres":
		return ledger.OpenPostgres(ctx, cfg.DSN)
	case "", "file":
		return ledger.OpenFile(cfg.Path, retention)
	default:
		return nil, fmt.Errorf("unknown ledger backend %q", cfg.Backend)
	}
}

// buildSource prefers the newsdata.io API and falls back to scraping the
// configured sites when no API key is set.
func buildSource(cfg config.Config, baseLogger *slog.Logger) ports.NewsSource {
	if cfg.NewsData.APIKey != "" {
		return newsdata.NewClient(cfg.NewsData)
	}

	registry := scanner.NewRegistry()
	registry.Register(scraper.NewHeadlineScanner(nil))
	return scraper.NewStrategySource(registry, cfg.Sites, baseLogger.With("component", "source"))
}
