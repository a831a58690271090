package auth

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/sqlassist/sqlassist/internal/observability"
)

type contextKey struct{}

func WithIdentity(ctx context.Context, identity Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, identity)
}

func IdentityFromContext(ctx context.Context) (Identity, bool) {
	identity, ok := ctx.Value(contextKey{}).(Identity)
	return identity, ok
}

// Middleware resolves the caller from an X-API-Key header or a bearer token.
// Requests without a valid key never reach next.
func Middleware(logger *slog.Logger, validator APIKeyValidator) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			apiKey, source := extractAPIKey(r)
			if apiKey == "" {
				rejectRequest(w, r, logger, "missing API key")
				return
			}

			identity, ok := validator.Validate(ctx, apiKey)
			if !ok {
				rejectRequest(w, r, logger, "invalid API key", slog.String("key_source", source))
				return
			}

			logger.DebugContext(ctx, "request authenticated",
				slog.String("caller", identity.Caller),
				slog.String("key_source", source),
			)
			next.ServeHTTP(w, r.WithContext(WithIdentity(ctx, identity)))
		})
	}
}

// extractAPIKey returns the presented key and where it came from.
func extractAPIKey(r *http.Request) (string, string) {
	if key := strings.TrimSpace(r.Header.Get("X-API-Key")); key != "" {
		return key, "header"
	}
	scheme, token, found := strings.Cut(strings.TrimSpace(r.Header.Get("Authorization")), " ")
	if !found || !strings.EqualFold(scheme, "bearer") {
		return "", ""
	}
	return strings.TrimSpace(token), "bearer"
}

func rejectRequest(w http.ResponseWriter, r *http.Request, logger *slog.Logger, reason string, attrs ...slog.Attr) {
	traceID := observability.TraceIDFromContext(r.Context())
	attrs = append(attrs,
		slog.String("path", r.URL.Path),
		slog.String("reason", reason),
	)
	logger.LogAttrs(r.Context(), slog.LevelWarn, "authentication failed", attrs...)

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="sqlassist"`)
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error_code": "UNAUTHORIZED",
		"message":    reason,
		"retryable":  false,
		"trace_id":   traceID,
	})
}
