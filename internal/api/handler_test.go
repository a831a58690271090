package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sqlassist/sqlassist/internal/assistant"
	"github.com/sqlassist/sqlassist/internal/auth"
	"github.com/sqlassist/sqlassist/internal/config"
	"github.com/sqlassist/sqlassist/internal/session"
)

func TestHealthEndpoint(t *testing.T) {
	h := NewHandler(loadConfig(t, nil), Dependencies{})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/health", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestReadyEndpointReturns503WhenDependencyFails(t *testing.T) {
	h := NewHandler(loadConfig(t, nil), Dependencies{
		Readiness: func(rctx context.Context) error {
			return errors.New("dependency down")
		},
	})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/ready", nil))

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", rr.Code)
	}
	body := decodeJSON(t, rr)
	if body["error_code"] != "NOT_READY" || body["retryable"] != true {
		t.Fatalf("unexpected error body %v", body)
	}
}

func TestReadyEndpointAppliesDependencyTimeout(t *testing.T) {
	var remaining time.Duration
	h := NewHandler(loadConfig(t, nil), Dependencies{
		DependencyTimeout: 50 * time.Millisecond,
		Readiness: func(rctx context.Context) error {
			deadline, ok := rctx.Deadline()
			if !ok {
				return errors.New("no deadline")
			}
			remaining = time.Until(deadline)
			return nil
		},
	})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/ready", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rr.Code, rr.Body.String())
	}
	if remaining <= 0 || remaining > 50*time.Millisecond {
		t.Fatalf("readiness deadline in %s, want within 50ms", remaining)
	}
}

func TestAssistantRoutesRequireDependency(t *testing.T) {
	h := NewHandler(loadConfig(t, nil), Dependencies{})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/history", nil))
	if rr.Code != http.StatusNotImplemented {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestProtectedRouteRequiresAuth(t *testing.T) {
	cfg := loadConfig(t, map[string]string{"SQLASSIST_AUTH_REQUIRED": "true"})
	h := NewHandler(cfg, Dependencies{
		AuthMiddleware: authMiddleware(t, "k1:team-a:assistant_user"),
		Assistant:      newAssistant(),
	})

	unauthResp := httptest.NewRecorder()
	h.ServeHTTP(unauthResp, httptest.NewRequest(http.MethodGet, "/v1/history", nil))
	if unauthResp.Code != http.StatusUnauthorized {
		t.Fatalf("unauth status = %d", unauthResp.Code)
	}

	authReq := httptest.NewRequest(http.MethodGet, "/v1/history", nil)
	authReq.Header.Set("X-API-Key", "k1")
	authResp := httptest.NewRecorder()
	h.ServeHTTP(authResp, authReq)
	if authResp.Code != http.StatusOK {
		t.Fatalf("auth status = %d", authResp.Code)
	}
}

func TestAuthRequiredWithoutMiddlewareFailsClosed(t *testing.T) {
	cfg := loadConfig(t, map[string]string{"SQLASSIST_AUTH_REQUIRED": "true"})
	h := NewHandler(cfg, Dependencies{Assistant: newAssistant()})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/history", nil))
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestSchemaRoutesRequireWriterRole(t *testing.T) {
	cfg := loadConfig(t, map[string]string{"SQLASSIST_AUTH_REQUIRED": "true"})
	h := NewHandler(cfg, Dependencies{
		AuthMiddleware: authMiddleware(t, "reader:team-a:assistant_user,writer:team-a:assistant_user|schema_writer"),
		Assistant:      newAssistant(),
	})

	for key, want := range map[string]int{"reader": http.StatusForbidden, "writer": http.StatusOK} {
		req := jsonRequest(t, http.MethodPost, "/v1/schema/text", map[string]any{"text": "la table clients (id, nom)"})
		req.Header.Set("X-API-Key", key)
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		if rr.Code != want {
			t.Fatalf("key %s: status = %d, want %d, body=%s", key, rr.Code, want, rr.Body.String())
		}
	}
}

func TestCallersDoNotShareSessions(t *testing.T) {
	cfg := loadConfig(t, map[string]string{"SQLASSIST_AUTH_REQUIRED": "true"})
	h := NewHandler(cfg, Dependencies{
		AuthMiddleware: authMiddleware(t, "ka:team-a:assistant_user,kb:team-b:assistant_user"),
		Assistant:      newAssistant(),
	})

	req := jsonRequest(t, http.MethodPost, "/v1/generate", map[string]any{"text": "Supprimer la table clients si elle existe"})
	req.Header.Set("X-API-Key", "ka")
	req.Header.Set(sessionHeader, "shared")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("generate status = %d, body=%s", rr.Code, rr.Body.String())
	}

	for key, want := range map[string]int{"ka": 1, "kb": 0} {
		req := httptest.NewRequest(http.MethodGet, "/v1/history", nil)
		req.Header.Set("X-API-Key", key)
		req.Header.Set(sessionHeader, "shared")
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		history, _ := decodeJSON(t, rr)["history"].([]any)
		if len(history) != want {
			t.Fatalf("key %s: history length = %d, want %d", key, len(history), want)
		}
	}
}

func TestGenerateHistoryAndClear(t *testing.T) {
	h := NewHandler(loadConfig(t, nil), Dependencies{Assistant: newAssistant()})

	req := jsonRequest(t, http.MethodPost, "/v1/generate", map[string]any{"text": "Je veux les champs nom, email des tables utilisateurs, commandes où id > 100"})
	req.Header.Set(sessionHeader, "s1")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body=%s", rr.Code, rr.Body.String())
	}
	body := decodeJSON(t, rr)
	if body["detected_type"] != "SELECT" || body["has_advanced_options"] != true || body["provider"] != "rules" {
		t.Fatalf("unexpected generate body %v", body)
	}
	if result, _ := body["result"].(string); !strings.Contains(result, "INNER JOIN commandes") {
		t.Fatalf("unexpected result %q", result)
	}
	if history, _ := body["history"].([]any); len(history) != 1 {
		t.Fatalf("history = %v", body["history"])
	}

	clearReq := httptest.NewRequest(http.MethodPost, "/v1/history/clear", nil)
	clearReq.Header.Set(sessionHeader, "s1")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, clearReq)
	if rr.Code != http.StatusOK || decodeJSON(t, rr)["success"] != true {
		t.Fatalf("clear status = %d, body=%s", rr.Code, rr.Body.String())
	}

	historyReq := httptest.NewRequest(http.MethodGet, "/v1/history", nil)
	historyReq.Header.Set(sessionHeader, "s1")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, historyReq)
	history, ok := decodeJSON(t, rr)["history"].([]any)
	if !ok || len(history) != 0 {
		t.Fatalf("expected empty history list, got %s", rr.Body.String())
	}
}

func TestSessionCookieIsIssuedAndReused(t *testing.T) {
	h := NewHandler(loadConfig(t, nil), Dependencies{Assistant: newAssistant()})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, jsonRequest(t, http.MethodPost, "/v1/generate", map[string]any{"text": "Supprimer la table clients si elle existe"}))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body=%s", rr.Code, rr.Body.String())
	}
	cookies := rr.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != "sqlassist_session" || !cookies[0].HttpOnly {
		t.Fatalf("cookies = %+v", cookies)
	}
	if rr.Header().Get(sessionHeader) != cookies[0].Value {
		t.Fatalf("session header = %q, cookie = %q", rr.Header().Get(sessionHeader), cookies[0].Value)
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/history", nil)
	req.AddCookie(cookies[0])
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if len(rr.Result().Cookies()) != 0 {
		t.Fatal("expected the existing cookie to be reused")
	}
	if history, _ := decodeJSON(t, rr)["history"].([]any); len(history) != 1 {
		t.Fatalf("history = %s", rr.Body.String())
	}
}

func TestGenerateRejectsBadRequests(t *testing.T) {
	h := NewHandler(loadConfig(t, nil), Dependencies{Assistant: newAssistant()})

	tests := []struct {
		name      string
		body      string
		sessionID string
		wantCode  string
	}{
		{name: "empty text", body: `{"text":"  "}`, wantCode: "TEXT_REQUIRED"},
		{name: "unknown field", body: `{"prompt":"x"}`, wantCode: "INVALID_JSON"},
		{name: "malformed", body: `{`, wantCode: "INVALID_JSON"},
		{name: "bad mode", body: `{"text":"Afficher les clients","mode":"magic"}`, wantCode: "INVALID_MODE"},
		{name: "bad session", body: `{"text":"Afficher les clients"}`, sessionID: "../etc", wantCode: "INVALID_SESSION"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/v1/generate", strings.NewReader(tt.body))
			if tt.sessionID != "" {
				req.Header.Set(sessionHeader, tt.sessionID)
			}
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, body=%s", rr.Code, rr.Body.String())
			}
			if got := decodeJSON(t, rr)["error_code"]; got != tt.wantCode {
				t.Fatalf("error_code = %v, want %s", got, tt.wantCode)
			}
		})
	}
}

func TestGenerateReportsSessionStoreFailure(t *testing.T) {
	svc := &assistant.Service{Sessions: failingStore{}}
	h := NewHandler(loadConfig(t, nil), Dependencies{Assistant: svc})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, jsonRequest(t, http.MethodPost, "/v1/generate", map[string]any{"text": "Efface les commandes"}))
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rr.Code)
	}
	body := decodeJSON(t, rr)
	if body["error_code"] != "SESSION_STORE_FAILED" || body["retryable"] != true {
		t.Fatalf("unexpected body %v", body)
	}
}

func TestSchemaUpload(t *testing.T) {
	h := NewHandler(loadConfig(t, nil), Dependencies{Assistant: newAssistant()})

	req := multipartRequest(t, "schema.sql", []byte("CREATE TABLE clients_vip (code VARCHAR(10), libelle TEXT);"))
	req.Header.Set(sessionHeader, "s1")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body=%s", rr.Code, rr.Body.String())
	}
	body := decodeJSON(t, rr)
	tables, _ := body["tables"].([]any)
	if len(tables) != 1 || tables[0] != "clients_vip" || body["format"] != "sql" {
		t.Fatalf("unexpected upload body %v", body)
	}

	genReq := jsonRequest(t, http.MethodPost, "/v1/generate", map[string]any{"text": "Afficher les clients_vip"})
	genReq.Header.Set(sessionHeader, "s1")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, genReq)
	if result, _ := decodeJSON(t, rr)["result"].(string); !strings.HasPrefix(result, "SELECT code, libelle\nFROM clients_vip;") {
		t.Fatalf("unexpected result %q", result)
	}

	delReq := httptest.NewRequest(http.MethodDelete, "/v1/schema", nil)
	delReq.Header.Set(sessionHeader, "s1")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, delReq)
	if rr.Code != http.StatusOK {
		t.Fatalf("delete status = %d", rr.Code)
	}
}

func TestSchemaUploadRejections(t *testing.T) {
	cfg := loadConfig(t, map[string]string{"SQLASSIST_HTTP_MAX_UPLOAD_BYTES": "1KiB"})
	h := NewHandler(cfg, Dependencies{Assistant: newAssistant()})

	tests := []struct {
		name       string
		req        *http.Request
		wantStatus int
		wantCode   string
	}{
		{
			name:       "unsupported extension",
			req:        multipartRequest(t, "schema.xlsx", []byte("x")),
			wantStatus: http.StatusBadRequest,
			wantCode:   "UNSUPPORTED_FORMAT",
		},
		{
			name:       "too large",
			req:        multipartRequest(t, "schema.sql", bytes.Repeat([]byte("-- padding\n"), 400)),
			wantStatus: http.StatusRequestEntityTooLarge,
			wantCode:   "FILE_TOO_LARGE",
		},
		{
			name:       "missing file part",
			req:        multipartRequest(t, "", nil),
			wantStatus: http.StatusBadRequest,
			wantCode:   "FILE_REQUIRED",
		},
		{
			name:       "not multipart",
			req:        jsonRequest(t, http.MethodPost, "/v1/schema/upload", map[string]any{"file": "x"}),
			wantStatus: http.StatusBadRequest,
			wantCode:   "INVALID_MULTIPART",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, tt.req)
			if rr.Code != tt.wantStatus {
				t.Fatalf("status = %d, body=%s", rr.Code, rr.Body.String())
			}
			if got := decodeJSON(t, rr)["error_code"]; got != tt.wantCode {
				t.Fatalf("error_code = %v, want %s", got, tt.wantCode)
			}
		})
	}
}

func TestCorrectAndExtractFields(t *testing.T) {
	h := NewHandler(loadConfig(t, nil), Dependencies{Assistant: newAssistant()})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, jsonRequest(t, http.MethodPost, "/v1/correct", map[string]any{"query": "SELECT nom FROM clients"}))
	if rr.Code != http.StatusOK {
		t.Fatalf("correct status = %d, body=%s", rr.Code, rr.Body.String())
	}
	body := decodeJSON(t, rr)
	if body["corrected"] != true || body["corrected_query"] != "SELECT nom FROM clients;" {
		t.Fatalf("unexpected correction %v", body)
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, jsonRequest(t, http.MethodPost, "/v1/correct", map[string]any{"query": ""}))
	if body := decodeJSON(t, rr); body["corrected_query"] != nil {
		t.Fatalf("expected null corrected_query, got %v", body)
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, jsonRequest(t, http.MethodPost, "/v1/extract-fields", map[string]any{"query": "SELECT nom, SUM(montant) AS total FROM ventes"}))
	fields, _ := decodeJSON(t, rr)["fields"].([]any)
	if len(fields) != 2 || fields[0] != "nom" || fields[1] != "montant" {
		t.Fatalf("fields = %v", fields)
	}
}

func TestCombineReadinessChecksStopsOnFirstFailure(t *testing.T) {
	order := make([]int, 0, 3)
	combined := CombineReadinessChecks(
		func(_ context.Context) error {
			order = append(order, 1)
			return nil
		},
		func(_ context.Context) error {
			order = append(order, 2)
			return errors.New("boom")
		},
		func(_ context.Context) error {
			order = append(order, 3)
			return nil
		},
	)

	err := combined(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if len(order) != 2 || order[0] != 1 || order[1] != 2 {
		t.Fatalf("execution order = %#v", order)
	}
}

func TestConfigReadinessChecks(t *testing.T) {
	cfg := loadConfig(t, map[string]string{"SQLASSIST_OBJECTSTORE_ARCHIVE_UPLOADS": "true", "SQLASSIST_OBJECTSTORE_ENDPOINT": ""})
	if err := CheckObjectStoreConfig(cfg)(context.Background()); err == nil {
		t.Fatal("expected missing endpoint error")
	}
	if err := CheckObjectStoreConfig(loadConfig(t, nil))(context.Background()); err != nil {
		t.Fatalf("archiving disabled should be ready, got %v", err)
	}
	if err := CheckSessionsDSN(loadConfig(t, nil))(context.Background()); err != nil {
		t.Fatalf("memory backend should be ready, got %v", err)
	}
}

func loadConfig(t *testing.T, env map[string]string) config.Config {
	t.Helper()
	if env == nil {
		env = map[string]string{}
	}
	cfg, err := config.Load("sqlassist-api", mapLookup(env))
	if err != nil {
		t.Fatalf("config load failed: %v", err)
	}
	return cfg
}

func newAssistant() *assistant.Service {
	return &assistant.Service{Sessions: session.NewMemoryStore()}
}

func authMiddleware(t *testing.T, keys string) func(http.Handler) http.Handler {
	t.Helper()
	validator, err := auth.NewStaticAPIKeyValidator(keys)
	if err != nil {
		t.Fatalf("validator setup failed: %v", err)
	}
	return auth.Middleware(nil, validator)
}

func jsonRequest(t *testing.T, method, path string, payload any) *http.Request {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func multipartRequest(t *testing.T, fileName string, content []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	if fileName != "" {
		part, err := writer.CreateFormFile("file", fileName)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		if _, err := part.Write(content); err != nil {
			t.Fatalf("write form file: %v", err)
		}
	} else if err := writer.WriteField("note", "no file"); err != nil {
		t.Fatalf("write field: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/v1/schema/upload", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func decodeJSON(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response %q: %v", rr.Body.String(), err)
	}
	return body
}

func mapLookup(values map[string]string) config.LookupFunc {
	return func(key string) (string, bool) {
		value, ok := values[key]
		return value, ok
	}
}

type failingStore struct{}

func (failingStore) Get(context.Context, string) (session.State, error) {
	return session.State{}, errors.New("connection refused")
}

func (failingStore) Update(context.Context, string, func(*session.State) error) (session.State, error) {
	return session.State{}, errors.New("connection refused")
}

func (failingStore) Delete(context.Context, string) error {
	return errors.New("connection refused")
}
