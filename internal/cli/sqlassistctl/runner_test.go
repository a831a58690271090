package sqlassistctl

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

type capturedRequest struct {
	method    string
	path      string
	apiKey    string
	sessionID string
	body      []byte
	fileName  string
	fileBody  string
}

func newCaptureServer(t *testing.T, response string) (*httptest.Server, *capturedRequest) {
	t.Helper()
	got := &capturedRequest{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.method = r.Method
		got.path = r.URL.Path
		got.apiKey = r.Header.Get("X-API-Key")
		got.sessionID = r.Header.Get("X-Session-ID")
		if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
			file, header, err := r.FormFile("file")
			if err == nil {
				content, _ := io.ReadAll(file)
				got.fileName = header.Filename
				got.fileBody = string(content)
				_ = file.Close()
			}
		} else {
			got.body, _ = io.ReadAll(r.Body)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(response))
	}))
	t.Cleanup(srv.Close)
	return srv, got
}

func TestRunGenerateCommand(t *testing.T) {
	srv, got := newCaptureServer(t, `{"result":"SELECT * FROM clients;"}`)

	var stdout, stderr bytes.Buffer
	code := Run(context.Background(), []string{
		"--base-url=" + srv.URL,
		"--api-key=k1",
		"--session-id=demo",
		"generate", "--mode=oracle", "afficher", "les", "clients",
	}, Options{Stdout: &stdout, Stderr: &stderr, Timeout: 2 * time.Second})
	if code != 0 {
		t.Fatalf("exit code = %d, stderr=%s", code, stderr.String())
	}
	if got.method != http.MethodPost || got.path != "/v1/generate" {
		t.Fatalf("request = %s %s", got.method, got.path)
	}
	if got.apiKey != "k1" || got.sessionID != "demo" {
		t.Fatalf("headers api_key=%q session=%q", got.apiKey, got.sessionID)
	}
	var body map[string]string
	if err := json.Unmarshal(got.body, &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["text"] != "afficher les clients" || body["mode"] != "oracle" {
		t.Fatalf("body = %v", body)
	}
	if !strings.Contains(stdout.String(), "SELECT * FROM clients;") {
		t.Fatalf("stdout = %q", stdout.String())
	}
}

func TestRunUsesDefaultSessionID(t *testing.T) {
	srv, got := newCaptureServer(t, `{"history":[]}`)

	code := Run(context.Background(), []string{"--base-url=" + srv.URL, "history"}, Options{})
	if code != 0 {
		t.Fatalf("exit code = %d", code)
	}
	if got.method != http.MethodGet || got.path != "/v1/history" {
		t.Fatalf("request = %s %s", got.method, got.path)
	}
	if got.sessionID != defaultSessionID {
		t.Fatalf("session = %q", got.sessionID)
	}
}

func TestRunRoutesCommands(t *testing.T) {
	cases := []struct {
		args       []string
		wantMethod string
		wantPath   string
		wantBody   string
	}{
		{args: []string{"clear-history"}, wantMethod: http.MethodPost, wantPath: "/v1/history/clear"},
		{args: []string{"clear-schema"}, wantMethod: http.MethodDelete, wantPath: "/v1/schema"},
		{args: []string{"correct", "select", "nom", "from", "clients"}, wantMethod: http.MethodPost, wantPath: "/v1/correct", wantBody: `{"query":"select nom from clients"}`},
		{args: []string{"extract-fields", "SELECT nom, id FROM t"}, wantMethod: http.MethodPost, wantPath: "/v1/extract-fields", wantBody: `{"query":"SELECT nom, id FROM t"}`},
		{args: []string{"schema-text", "table clients (id, nom)"}, wantMethod: http.MethodPost, wantPath: "/v1/schema/text", wantBody: `{"text":"table clients (id, nom)"}`},
		{args: []string{"ready"}, wantMethod: http.MethodGet, wantPath: "/v1/ready"},
	}
	for _, tc := range cases {
		t.Run(tc.args[0], func(t *testing.T) {
			srv, got := newCaptureServer(t, `{"success":true}`)
			code := Run(context.Background(), append([]string{"--base-url=" + srv.URL}, tc.args...), Options{})
			if code != 0 {
				t.Fatalf("exit code = %d", code)
			}
			if got.method != tc.wantMethod || got.path != tc.wantPath {
				t.Fatalf("request = %s %s", got.method, got.path)
			}
			if tc.wantBody != "" && strings.TrimSpace(string(got.body)) != tc.wantBody {
				t.Fatalf("body = %s, want %s", got.body, tc.wantBody)
			}
		})
	}
}

func TestRunUploadSchemaSendsMultipartFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "shop.sql")
	if err := os.WriteFile(path, []byte("CREATE TABLE produits (id INT);"), 0o600); err != nil {
		t.Fatalf("write file: %v", err)
	}
	srv, got := newCaptureServer(t, `{"tables":{"produits":["id"]}}`)

	var stderr bytes.Buffer
	code := Run(context.Background(), []string{"--base-url=" + srv.URL, "upload-schema", path}, Options{Stderr: &stderr})
	if code != 0 {
		t.Fatalf("exit code = %d, stderr=%s", code, stderr.String())
	}
	if got.path != "/v1/schema/upload" || got.fileName != "shop.sql" {
		t.Fatalf("path=%q file=%q", got.path, got.fileName)
	}
	if got.fileBody != "CREATE TABLE produits (id INT);" {
		t.Fatalf("file body = %q", got.fileBody)
	}
}

func TestRunUploadSchemaMissingFile(t *testing.T) {
	var stderr bytes.Buffer
	code := Run(context.Background(), []string{"upload-schema", filepath.Join(t.TempDir(), "missing.sql")}, Options{Stderr: &stderr})
	if code != 2 {
		t.Fatalf("exit code = %d", code)
	}
	if !strings.Contains(stderr.String(), "read schema file") {
		t.Fatalf("stderr = %q", stderr.String())
	}
}

func TestRunGenerateRequiresText(t *testing.T) {
	var stderr bytes.Buffer
	code := Run(context.Background(), []string{"generate"}, Options{Stderr: &stderr})
	if code != 2 {
		t.Fatalf("exit code = %d", code)
	}
}

func TestRunReturnsErrorOnHTTPFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error_code":"FORBIDDEN"}`))
	}))
	defer srv.Close()

	var stderr bytes.Buffer
	code := Run(context.Background(), []string{"--base-url=" + srv.URL, "history"}, Options{Stderr: &stderr})
	if code != 1 {
		t.Fatalf("exit code = %d, stderr=%s", code, stderr.String())
	}
	if !strings.Contains(stderr.String(), "http 403") {
		t.Fatalf("stderr = %q", stderr.String())
	}
}

func TestRunUnknownCommand(t *testing.T) {
	var stderr bytes.Buffer
	code := Run(context.Background(), []string{"unknown"}, Options{Stderr: &stderr})
	if code != 2 {
		t.Fatalf("exit code = %d", code)
	}
	if stderr.Len() == 0 {
		t.Fatal("expected usage output")
	}
}

func TestRunWithoutCommandPrintsUsage(t *testing.T) {
	var stderr bytes.Buffer
	code := Run(context.Background(), nil, Options{Stderr: &stderr})
	if code != 2 {
		t.Fatalf("exit code = %d", code)
	}
	if !strings.Contains(stderr.String(), "Usage:") {
		t.Fatalf("stderr = %q", stderr.String())
	}
}

func TestRunReportsConnectionFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	var stderr bytes.Buffer
	code := Run(context.Background(), []string{"--base-url=" + url, "--timeout=1s", "health"}, Options{Stderr: &stderr})
	if code != 1 {
		t.Fatalf("exit code = %d", code)
	}
	if !strings.Contains(stderr.String(), "request failed") {
		t.Fatalf("stderr = %q", stderr.String())
	}
}
