package observability

import (
	"context"
	"io"
	"log/slog"

	"github.com/sqlassist/sqlassist/internal/config"
)

type ctxKey string

const (
	traceIDKey   ctxKey = "trace_id"
	sessionIDKey ctxKey = "session_id"
)

// NewLogger builds the process logger. Records logged with a context carry
// the trace and session ids found in it, so callers never pass them by hand.
func NewLogger(cfg config.Config, writer io.Writer) *slog.Logger {
	if writer == nil {
		writer = io.Discard
	}
	opts := &slog.HandlerOptions{Level: cfg.Observability.LogLevel}
	var handler slog.Handler
	if cfg.Observability.LogJSON {
		handler = slog.NewJSONHandler(writer, opts)
	} else {
		handler = slog.NewTextHandler(writer, opts)
	}

	attrs := []any{
		slog.String("service", cfg.Service.Name),
		slog.String("profile", string(cfg.Profile)),
		slog.String("sessions_backend", cfg.Sessions.Backend),
	}
	if cfg.Oracle.Enabled {
		attrs = append(attrs, slog.String("oracle_provider", cfg.Oracle.Provider))
	}
	return slog.New(contextHandler{Handler: handler}).With(attrs...)
}

type contextHandler struct {
	slog.Handler
}

func (h contextHandler) Handle(ctx context.Context, record slog.Record) error {
	if ctx != nil {
		if traceID := TraceIDFromContext(ctx); traceID != "" {
			record.AddAttrs(slog.String(string(traceIDKey), traceID))
		}
		if sessionID := SessionIDFromContext(ctx); sessionID != "" {
			record.AddAttrs(slog.String(string(sessionIDKey), sessionID))
		}
	}
	return h.Handler.Handle(ctx, record)
}

func (h contextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return contextHandler{Handler: h.Handler.WithAttrs(attrs)}
}

func (h contextHandler) WithGroup(name string) slog.Handler {
	return contextHandler{Handler: h.Handler.WithGroup(name)}
}

func ContextWithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey, traceID)
}

func TraceIDFromContext(ctx context.Context) string {
	value, ok := ctx.Value(traceIDKey).(string)
	if !ok {
		return ""
	}
	return value
}

// ContextWithSessionID tags ctx with the assistant session being served.
func ContextWithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, sessionIDKey, sessionID)
}

func SessionIDFromContext(ctx context.Context) string {
	value, ok := ctx.Value(sessionIDKey).(string)
	if !ok {
		return ""
	}
	return value
}
