package sqlassistctl

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

const defaultSessionID = "sqlassistctl"

type Options struct {
	BaseURL    string
	APIKey     string
	SessionID  string
	Timeout    time.Duration
	HTTPClient *http.Client
	Stdout     io.Writer
	Stderr     io.Writer
}

type request struct {
	method      string
	path        string
	body        []byte
	contentType string
}

// requestError marks failures that happen after the command line was accepted.
type requestError struct{ err error }

func (e *requestError) Error() string { return e.err.Error() }
func (e *requestError) Unwrap() error { return e.err }

type client struct {
	baseURL   string
	apiKey    string
	sessionID string
	timeout   time.Duration
	http      *http.Client
}

// Run executes one sqlassistctl command and returns the process exit code:
// 0 on success, 1 when the request fails, 2 on a usage error.
func Run(ctx context.Context, args []string, defaults Options) int {
	stdout := defaults.Stdout
	if stdout == nil {
		stdout = io.Discard
	}
	stderr := defaults.Stderr
	if stderr == nil {
		stderr = io.Discard
	}

	root := newRootCommand(defaults)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return 0
	}
	var reqErr *requestError
	if errors.As(err, &reqErr) {
		_, _ = fmt.Fprintln(stderr, reqErr.Error())
		return 1
	}
	_, _ = fmt.Fprintf(stderr, "%v\n\n", err)
	_, _ = fmt.Fprint(stderr, root.UsageString())
	return 2
}

func newRootCommand(defaults Options) *cobra.Command {
	c := &client{http: defaults.HTTPClient}

	root := &cobra.Command{
		Use:           "sqlassistctl",
		Short:         "Command line client for the sqlassist API",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(*cobra.Command, []string) error {
			return errors.New("a command is required")
		},
	}
	flags := root.PersistentFlags()
	flags.StringVar(&c.baseURL, "base-url", firstNonEmpty(defaults.BaseURL, "http://localhost:8080"), "sqlassist API base URL")
	flags.StringVar(&c.apiKey, "api-key", defaults.APIKey, "API key for authenticated requests")
	flags.StringVar(&c.sessionID, "session-id", firstNonEmpty(defaults.SessionID, defaultSessionID), "session id sent as X-Session-ID")
	flags.DurationVar(&c.timeout, "timeout", durationOr(defaults.Timeout, 10*time.Second), "HTTP timeout (e.g. 10s)")

	simple := func(use, short, method, path string) *cobra.Command {
		return &cobra.Command{
			Use:   use,
			Short: short,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return c.send(cmd, request{method: method, path: path})
			},
		}
	}

	var mode string
	generate := &cobra.Command{
		Use:   "generate <text>",
		Short: "Translate a French request into SQL",
		RunE: func(cmd *cobra.Command, args []string) error {
			text := joinArgs(args)
			if text == "" {
				return errors.New("generate requires a request text")
			}
			return c.sendJSON(cmd, "/v1/generate", struct {
				Text string `json:"text"`
				Mode string `json:"mode,omitempty"`
			}{text, mode})
		},
	}
	generate.Flags().StringVar(&mode, "mode", "", "generation mode: rules|oracle")

	correct := &cobra.Command{
		Use:   "correct <query>",
		Short: "Check and correct a SQL statement",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.sendJSON(cmd, "/v1/correct", map[string]string{"query": joinArgs(args)})
		},
	}

	extract := &cobra.Command{
		Use:   "extract-fields <query>",
		Short: "List the fields of a SELECT statement",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.sendJSON(cmd, "/v1/extract-fields", map[string]string{"query": joinArgs(args)})
		},
	}

	schemaText := &cobra.Command{
		Use:   "schema-text <description>",
		Short: "Set the session schema from a text description",
		RunE: func(cmd *cobra.Command, args []string) error {
			text := joinArgs(args)
			if text == "" {
				return errors.New("schema-text requires a schema description")
			}
			return c.sendJSON(cmd, "/v1/schema/text", map[string]string{"text": text})
		},
	}

	upload := &cobra.Command{
		Use:   "upload-schema <file>",
		Short: "Upload a .sql, .json, .txt, .csv or .parquet schema file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := uploadRequest(args[0])
			if err != nil {
				return err
			}
			return c.send(cmd, req)
		},
	}

	root.AddCommand(
		simple("health", "Check API liveness", http.MethodGet, "/v1/health"),
		simple("ready", "Check API readiness", http.MethodGet, "/v1/ready"),
		simple("history", "Show the session history", http.MethodGet, "/v1/history"),
		simple("clear-history", "Clear the session history", http.MethodPost, "/v1/history/clear"),
		simple("clear-schema", "Drop the uploaded session schema", http.MethodDelete, "/v1/schema"),
		generate,
		correct,
		extract,
		schemaText,
		upload,
	)
	return root
}

func (c *client) sendJSON(cmd *cobra.Command, path string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return c.send(cmd, request{method: http.MethodPost, path: path, body: body, contentType: "application/json"})
}

func (c *client) send(cmd *cobra.Command, in request) error {
	httpClient := c.http
	if httpClient == nil {
		httpClient = &http.Client{Timeout: c.timeout}
	}

	var body io.Reader
	if in.body != nil {
		body = bytes.NewReader(in.body)
	}
	endpoint := strings.TrimRight(c.baseURL, "/") + in.path
	req, err := http.NewRequestWithContext(cmd.Context(), in.method, endpoint, body)
	if err != nil {
		return &requestError{fmt.Errorf("request failed: %w", err)}
	}
	req.Header.Set("Accept", "application/json")
	if in.contentType != "" {
		req.Header.Set("Content-Type", in.contentType)
	}
	if key := strings.TrimSpace(c.apiKey); key != "" {
		req.Header.Set("X-API-Key", key)
	}
	if id := strings.TrimSpace(c.sessionID); id != "" {
		req.Header.Set("X-Session-ID", id)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return &requestError{fmt.Errorf("request failed: %w", err)}
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &requestError{fmt.Errorf("read response: %w", err)}
	}
	if resp.StatusCode >= 400 {
		return &requestError{fmt.Errorf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))}
	}

	out := cmd.OutOrStdout()
	if pretty, ok := prettyJSON(respBody); ok {
		_, _ = fmt.Fprintln(out, pretty)
		return nil
	}
	if len(respBody) > 0 {
		_, _ = fmt.Fprintln(out, string(respBody))
	}
	return nil
}

func uploadRequest(path string) (request, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return request{}, fmt.Errorf("read schema file: %w", err)
	}
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return request{}, err
	}
	if _, err := part.Write(content); err != nil {
		return request{}, err
	}
	if err := writer.Close(); err != nil {
		return request{}, err
	}
	return request{method: http.MethodPost, path: "/v1/schema/upload", body: buf.Bytes(), contentType: writer.FormDataContentType()}, nil
}

func prettyJSON(raw []byte) (string, bool) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return "", false
	}
	var anyValue any
	if err := json.Unmarshal(raw, &anyValue); err != nil {
		return "", false
	}
	formatted, err := json.MarshalIndent(anyValue, "", "  ")
	if err != nil {
		return "", false
	}
	return string(formatted), true
}

func joinArgs(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

func firstNonEmpty(a, b string) string {
	if strings.TrimSpace(a) != "" {
		return strings.TrimSpace(a)
	}
	return b
}

func durationOr(v, fallback time.Duration) time.Duration {
	if v > 0 {
		return v
	}
	return fallback
}
