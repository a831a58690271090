package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sqlassist/sqlassist/internal/api"
	"github.com/sqlassist/sqlassist/internal/assistant"
	"github.com/sqlassist/sqlassist/internal/auth"
	"github.com/sqlassist/sqlassist/internal/config"
	"github.com/sqlassist/sqlassist/internal/migrations"
	"github.com/sqlassist/sqlassist/internal/observability"
	"github.com/sqlassist/sqlassist/internal/oracle"
	duckdbschema "github.com/sqlassist/sqlassist/internal/schema/duckdb"
	"github.com/sqlassist/sqlassist/internal/session"
	sessionpostgres "github.com/sqlassist/sqlassist/internal/session/postgres"
	"github.com/sqlassist/sqlassist/internal/storage"
	s3store "github.com/sqlassist/sqlassist/internal/storage/s3"
)

func main() {
	cfg, err := config.LoadFromEnv("sqlassist-api")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg, os.Stdout)
	svc := &assistant.Service{
		HistoryLimit: cfg.Sessions.HistoryLimit,
		Logger:       logger,
	}
	readiness := []api.ReadinessCheck{
		api.CheckSessionsDSN(cfg),
		api.CheckObjectStoreConfig(cfg),
	}

	switch cfg.Sessions.Backend {
	case config.SessionBackendPostgres:
		db, err := openSessionsDB(cfg)
		if err != nil {
			logger.Error("failed to open sessions db", slog.Any("error", err))
			os.Exit(1)
		}
		defer func() { _ = db.Close() }()
		store := sessionpostgres.NewStore(db)
		svc.Sessions = store
		svc.Uploads = store
		runner := migrations.NewRunner()
		readiness = append(readiness, store.HealthCheck, func(ctx context.Context) error {
			return runner.CheckCurrent(ctx, db)
		})
	default:
		svc.Sessions = session.NewMemoryStore()
	}

	if cfg.Oracle.Enabled {
		provider, err := newOracle(cfg.Oracle)
		if err != nil {
			logger.Error("failed to initialize oracle", slog.Any("error", err), slog.String("provider", cfg.Oracle.Provider))
			os.Exit(1)
		}
		svc.Oracle = provider
		svc.OracleProvider = cfg.Oracle.Provider
	}

	if cfg.Schema.CSVDescriber == config.CSVDescriberDuckDB {
		svc.Describer = duckdbschema.NewDescriber(cfg.Schema.CSVSampleBytes)
	}

	if cfg.ObjectStore.ArchiveUploads {
		objectStore, err := s3store.New(context.Background(), s3store.Config{
			Endpoint:         cfg.ObjectStore.Endpoint,
			Region:           cfg.ObjectStore.Region,
			Bucket:           cfg.ObjectStore.Bucket,
			AccessKeyID:      cfg.ObjectStore.AccessKeyID,
			SecretAccessKey:  cfg.ObjectStore.SecretAccessKey,
			UseSSL:           cfg.ObjectStore.UseSSL,
			Prefix:           cfg.ObjectStore.Prefix,
			AutoCreateBucket: cfg.ObjectStore.AutoCreateBucket,
		})
		if err != nil {
			logger.Error("failed to initialize object store", slog.Any("error", err))
			os.Exit(1)
		}
		svc.Archiver = storage.NewArchiver(objectStore)
	}

	deps := api.Dependencies{
		Logger:            logger,
		Assistant:         svc,
		Readiness:         api.CombineReadinessChecks(readiness...),
		DependencyTimeout: time.Second,
	}
	if cfg.Auth.Required {
		validator, err := auth.NewStaticAPIKeyValidator(cfg.Auth.StaticKeys)
		if err != nil {
			logger.Error("failed to parse static auth keys", slog.Any("error", err))
			os.Exit(1)
		}
		deps.AuthMiddleware = auth.Middleware(logger, validator)
	}

	handler := api.NewHandler(cfg, deps)
	server := &http.Server{
		Addr:         cfg.HTTP.Address,
		Handler:      handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("starting api server",
			slog.String("addr", cfg.HTTP.Address),
			slog.String("sessions_backend", cfg.Sessions.Backend),
			slog.Bool("oracle_enabled", cfg.Oracle.Enabled),
			slog.Bool("archive_uploads", cfg.ObjectStore.ArchiveUploads),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api server failed", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Info("shutting down api server")
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", slog.Any("error", err))
		_ = server.Close()
		os.Exit(1)
	}
}

func openSessionsDB(cfg config.Config) (*sql.DB, error) {
	return sessionpostgres.Open(context.Background(), sessionpostgres.DBConfigFromSessions(cfg.Sessions, cfg.Service.Name))
}

func newOracle(cfg config.OracleConfig) (oracle.Oracle, error) {
	switch cfg.Provider {
	case config.OracleProviderOpenAI:
		return oracle.NewOpenAI(oracle.OpenAIConfig{
			BaseURL:     cfg.BaseURL,
			APIKey:      cfg.APIKey,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			Timeout:     cfg.Timeout,
		})
	default:
		return oracle.NewHuggingFace(oracle.HuggingFaceConfig{
			BaseURL:          cfg.BaseURL,
			APIKey:           cfg.APIKey,
			Model:            cfg.Model,
			TranslationModel: cfg.TranslationModel,
			Timeout:          cfg.Timeout,
			MaxRetries:       cfg.MaxRetries,
			RetryDelay:       cfg.RetryDelay,
		})
	}
}
