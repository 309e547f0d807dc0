package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/propai/propai/internal/engine"
	"github.com/propai/propai/internal/httpapi"
	"github.com/propai/propai/internal/leads"
	"github.com/propai/propai/internal/logging"
	"github.com/propai/propai/internal/scheduler"
	"github.com/propai/propai/internal/store"
	"github.com/propai/propai/internal/tools"
	"github.com/propai/propai/internal/webhooks"
	"github.com/propai/propai/internal/workflows"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "propai:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := loadConfig()
	logger := newLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	st, err := store.NewLibSQLStore("file:" + cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	if err := st.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	// Anything left "running" from before this boot was interrupted.
	reconciled, err := st.ReconcileStaleRunning(ctx)
	if err != nil {
		return fmt.Errorf("reconcile stale records: %w", err)
	}
	if reconciled > 0 {
		logger.Info("reconciled interrupted records", slog.Int64("count", reconciled))
	}

	dispatcher := webhooks.NewDispatcher(st, logger, webhooks.Options{
		MaxAttempts: cfg.Webhooks.MaxAttempts,
		BaseDelay:   cfg.Webhooks.BaseDelay(),
	})
	notifier := webhooks.NewNotifier(dispatcher, logger, cfg.Webhooks.QueueCapacity)
	notifier.Start(ctx)
	defer notifier.Close()

	leadSvc := leads.NewService(st, notifier, logger)

	registry := tools.NewRegistry()
	for _, tool := range []tools.Tool{
		tools.NewAIGenerateTool(unconfiguredAI{}),
		tools.NewSearchWebTool(unconfiguredSearch{}),
		tools.NewGmailSendTool(unconfiguredMailer{}),
		tools.NewGmailReadTool(unconfiguredMailer{}),
		tools.NewLeadUpdateTool(leadSvc),
		tools.NewTransformTool(),
	} {
		if err := registry.Register(tool); err != nil {
			return fmt.Errorf("register tool: %w", err)
		}
	}
	gateway := tools.NewGateway(registry, st, cfg.Tools, logger)

	eng := engine.New(st, gateway, notifier, logger)
	if err := workflows.Register(eng, leadSvc); err != nil {
		return fmt.Errorf("register workflows: %w", err)
	}

	if cfg.Scheduler.Enabled {
		sched, err := scheduler.New(eng, cfg.Scheduler.Jobs, logger)
		if err != nil {
			return fmt.Errorf("build scheduler: %w", err)
		}
		if err := sched.Start(ctx); err != nil {
			return fmt.Errorf("start scheduler: %w", err)
		}
		defer sched.Stop()
	}

	api := httpapi.NewServer(cfg.ListenAddr, httpapi.Deps{
		Store:   st,
		Engine:  eng,
		Gateway: gateway,
		Leads:   leadSvc,
		Logger:  logger,
	})

	errCh := make(chan error, 1)
	go func() { errCh <- api.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return api.Shutdown(shutdownCtx)
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	inner := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	return slog.New(logging.NewCorrelationHandler(inner))
}
