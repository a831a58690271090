package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sqlassist/sqlassist/internal/assistant"
	"github.com/sqlassist/sqlassist/internal/config"
	"github.com/sqlassist/sqlassist/internal/corrector"
	"github.com/sqlassist/sqlassist/internal/observability"
	"github.com/sqlassist/sqlassist/internal/schema"
	"github.com/sqlassist/sqlassist/internal/session"
)

type ReadinessCheck func(ctx context.Context) error

// Assistant is the session-scoped behaviour served by the handler.
type Assistant interface {
	Generate(ctx context.Context, sessionID string, req assistant.GenerateRequest) (assistant.GenerateResponse, error)
	History(ctx context.Context, sessionID string) ([]session.HistoryEntry, error)
	ClearHistory(ctx context.Context, sessionID string) error
	UploadSchema(ctx context.Context, sessionID, fileName string, content []byte) (assistant.UploadResult, error)
	SchemaFromText(ctx context.Context, sessionID, text string) (schema.Display, error)
	ClearSchema(ctx context.Context, sessionID string) error
	Correct(ctx context.Context, sessionID, query string) (corrector.Result, error)
	ExtractFields(query string) []string
}

type Dependencies struct {
	Logger            *slog.Logger
	Readiness         ReadinessCheck
	AuthMiddleware    func(http.Handler) http.Handler
	DependencyTimeout time.Duration
	Assistant         Assistant
}

var assistantRoutes = []struct {
	pattern string
	handle  func(deps Dependencies, sessions sessionResolver, w http.ResponseWriter, r *http.Request)
}{
	{"POST /v1/generate", handleGenerate},
	{"GET /v1/history", handleHistory},
	{"POST /v1/history/clear", handleClearHistory},
	{"POST /v1/schema/upload", handleSchemaUpload},
	{"POST /v1/schema/text", handleSchemaText},
	{"DELETE /v1/schema", handleClearSchema},
	{"POST /v1/correct", handleCorrect},
	{"POST /v1/extract-fields", handleExtractFields},
}

func NewHandler(cfg config.Config, deps Dependencies) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /v1/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "service": cfg.Service.Name})
	})

	mux.HandleFunc("GET /v1/ready", func(w http.ResponseWriter, r *http.Request) {
		if deps.Readiness == nil {
			writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
			return
		}
		timeout := deps.DependencyTimeout
		if timeout <= 0 {
			timeout = 2 * time.Second
		}
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()
		if err := deps.Readiness(ctx); err != nil {
			writeError(r.Context(), w, http.StatusServiceUnavailable, "NOT_READY", err.Error(), true, nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
	})

	mux.Handle("GET /v1/metrics", promhttp.Handler())

	sessions := sessionResolver{
		cookieName:   cfg.Sessions.CookieName,
		secureCookie: cfg.Profile == config.ProfileProd,
		maxUpload:    cfg.HTTP.MaxUploadBytes,
	}
	protected := http.NewServeMux()
	for _, route := range assistantRoutes {
		handle := route.handle
		protected.HandleFunc(route.pattern, func(w http.ResponseWriter, r *http.Request) {
			if deps.Assistant == nil {
				writeError(r.Context(), w, http.StatusNotImplemented, "ASSISTANT_NOT_CONFIGURED", "assistant dependency is not configured", false, nil)
				return
			}
			handle(deps, sessions, w, r)
		})
	}

	var protectedHandler http.Handler = protected
	if cfg.Auth.Required {
		if deps.AuthMiddleware == nil {
			if deps.Logger != nil {
				deps.Logger.Error("auth required but auth middleware missing")
			}
			protectedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				writeError(r.Context(), w, http.StatusInternalServerError, "AUTH_MIDDLEWARE_MISSING", "auth middleware is required by configuration", false, nil)
			})
		} else {
			protectedHandler = deps.AuthMiddleware(protectedHandler)
		}
	}
	for _, route := range assistantRoutes {
		mux.Handle(route.pattern, protectedHandler)
	}

	middlewares := []func(http.Handler) http.Handler{
		observability.TraceMiddleware,
		observability.MetricsMiddleware,
	}
	if deps.Logger != nil {
		middlewares = append(middlewares, observability.LoggingMiddleware(deps.Logger))
	}
	return chain(mux, middlewares...)
}

func CheckSessionsDSN(cfg config.Config) ReadinessCheck {
	return func(_ context.Context) error {
		if cfg.Sessions.Backend == config.SessionBackendPostgres && cfg.Sessions.DSN == "" {
			return errors.New("sessions dsn is not configured")
		}
		return nil
	}
}

func CheckObjectStoreConfig(cfg config.Config) ReadinessCheck {
	return func(_ context.Context) error {
		if !cfg.ObjectStore.ArchiveUploads {
			return nil
		}
		if cfg.ObjectStore.Endpoint == "" {
			return errors.New("object store endpoint is not configured")
		}
		if cfg.ObjectStore.Bucket == "" {
			return errors.New("object store bucket is not configured")
		}
		return nil
	}
}

func CombineReadinessChecks(checks ...ReadinessCheck) ReadinessCheck {
	filtered := make([]ReadinessCheck, 0, len(checks))
	for _, check := range checks {
		if check != nil {
			filtered = append(filtered, check)
		}
	}
	return func(ctx context.Context) error {
		for _, check := range filtered {
			if err := check(ctx); err != nil {
				return err
			}
		}
		return nil
	}
}

func chain(base http.Handler, middlewares ...func(http.Handler) http.Handler) http.Handler {
	wrapped := base
	for i := len(middlewares) - 1; i >= 0; i-- {
		wrapped = middlewares[i](wrapped)
	}
	return wrapped
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(ctx context.Context, w http.ResponseWriter, status int, code, message string, retryable bool, extra map[string]any) {
	writeJSON(w, status, map[string]any{
		"error_code": code,
		"message":    message,
		"retryable":  retryable,
		"context":    extra,
		"trace_id":   observability.TraceIDFromContext(ctx),
	})
}
