package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/sqlassist/sqlassist/internal/config"
	"github.com/sqlassist/sqlassist/internal/maintenance"
	"github.com/sqlassist/sqlassist/internal/observability"
	sessionpostgres "github.com/sqlassist/sqlassist/internal/session/postgres"
)

func main() {
	once := flag.Bool("once", false, "run a single prune cycle and exit")
	flag.Parse()

	cfg, err := config.LoadFromEnv("sqlassist-janitor")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg, os.Stdout)
	if cfg.Sessions.Backend != config.SessionBackendPostgres {
		logger.Error("janitor requires the postgres sessions backend", slog.String("backend", cfg.Sessions.Backend))
		os.Exit(1)
	}
	db, err := sessionpostgres.Open(context.Background(), sessionpostgres.DBConfigFromSessions(cfg.Sessions, cfg.Service.Name))
	if err != nil {
		logger.Error("failed to open sessions db", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	svc := &maintenance.Service{
		Pruner: sessionpostgres.NewStore(db),
		Config: maintenance.Config{
			Interval:  cfg.Janitor.Interval,
			IdleTTL:   cfg.Janitor.IdleTTL,
			BatchSize: cfg.Janitor.BatchSize,
		},
		Logger: logger,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *once {
		summary, err := svc.RunOnce(ctx)
		if err != nil {
			logger.Error("janitor cycle failed", slog.Any("error", err), slog.Any("summary", summary))
			os.Exit(1)
		}
		logger.Info("janitor cycle completed", slog.Any("summary", summary))
		return
	}

	logger.Info("janitor worker started", slog.Duration("interval", cfg.Janitor.Interval), slog.Duration("idle_ttl", cfg.Janitor.IdleTTL))
	if err := svc.Run(ctx); err != nil {
		logger.Error("janitor worker failed", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("janitor worker stopped")
}
