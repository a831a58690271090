package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	ProviderHuggingFace = "huggingface"

	DefaultHuggingFaceURL   = "https://api-inference.huggingface.co"
	DefaultTextToSQLModel   = "juierror/text-to-sql-with-table-schema"
	DefaultTranslationModel = "Helsinki-NLP/opus-mt-fr-en"
)

// ErrModelLoading is returned when the inference API kept answering 503
// "loading" after every retry.
var ErrModelLoading = errors.New("model is still loading")

type HuggingFaceConfig struct {
	BaseURL string
	// APIKey is optional; anonymous calls are rate limited but allowed.
	APIKey string
	Model  string
	// TranslationModel, when set, translates the request to English first.
	TranslationModel string
	Timeout          time.Duration
	MaxRetries       int
	RetryDelay       time.Duration
}

type HuggingFace struct {
	baseURL          string
	apiKey           string
	model            string
	translationModel string
	maxRetries       int
	retryDelay       time.Duration
	client           *http.Client
	sleep            func(ctx context.Context, d time.Duration) error
}

func NewHuggingFace(cfg HuggingFaceConfig) (*HuggingFace, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultHuggingFaceURL
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = DefaultTextToSQLModel
	}
	if cfg.MaxRetries < 0 {
		return nil, fmt.Errorf("max retries must be >= 0")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	delay := cfg.RetryDelay
	if delay <= 0 {
		delay = 10 * time.Second
	}
	return &HuggingFace{
		baseURL:          baseURL,
		apiKey:           strings.TrimSpace(cfg.APIKey),
		model:            model,
		translationModel: strings.TrimSpace(cfg.TranslationModel),
		maxRetries:       cfg.MaxRetries,
		retryDelay:       delay,
		client:           &http.Client{Timeout: timeout},
		sleep:            sleepContext,
	}, nil
}

func (h *HuggingFace) Query(ctx context.Context, req Request) (Result, error) {
	question := strings.TrimSpace(req.NaturalLanguage)
	if h.translationModel != "" {
		if translated, err := h.generate(ctx, h.translationModel, question, "translation_text"); err == nil && translated != "" {
			question = translated
		}
	}

	input := "Schema: " + SchemaDDL(req.Tables) + "\nQuestion: " + question + "\nSQL:"
	sql, err := h.generate(ctx, h.model, input, "generated_text")
	if err != nil {
		return Result{}, err
	}
	sql = stripMarkdownSQL(sql)
	if sql == "" {
		return Result{}, fmt.Errorf("model returned empty SQL")
	}
	return Result{SQL: sql, Provider: ProviderHuggingFace, Model: h.model}, nil
}

// generate calls the inference endpoint for model and returns the text found
// under key in the first output, retrying while the model is loading.
func (h *HuggingFace) generate(ctx context.Context, model, inputs, key string) (string, error) {
	body, err := json.Marshal(map[string]any{
		"inputs": inputs,
		"options": map[string]bool{
			"wait_for_model": true,
			"use_cache":      true,
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshal inference payload: %w", err)
	}

	for attempt := 0; ; attempt++ {
		raw, status, err := h.post(ctx, model, body)
		if err != nil {
			return "", err
		}
		if status == http.StatusServiceUnavailable && strings.Contains(strings.ToLower(string(raw)), "loading") {
			if attempt >= h.maxRetries {
				return "", fmt.Errorf("inference %s: %w", model, ErrModelLoading)
			}
			if err := h.sleep(ctx, h.retryDelay); err != nil {
				return "", err
			}
			continue
		}
		if status >= 400 {
			return "", fmt.Errorf("inference %s failed status=%d body=%s", model, status, string(raw))
		}
		return decodeInference(raw, key)
	}
}

func (h *HuggingFace) post(ctx context.Context, model string, body []byte) ([]byte, int, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, h.baseURL+"/models/"+model, bytes.NewReader(body))
	if err != nil {
		return nil, 0, fmt.Errorf("build inference request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if h.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+h.apiKey)
	}

	resp, err := h.client.Do(httpReq)
	if err != nil {
		return nil, 0, fmt.Errorf("request inference: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("read inference response body: %w", err)
	}
	return raw, resp.StatusCode, nil
}

// decodeInference accepts a list of outputs keyed by key or "text", or a bare string.
func decodeInference(raw []byte, key string) (string, error) {
	var outputs []map[string]any
	if err := json.Unmarshal(raw, &outputs); err == nil {
		if len(outputs) == 0 {
			return "", fmt.Errorf("empty inference output")
		}
		for _, candidate := range []string{key, "text"} {
			if value, ok := outputs[0][candidate].(string); ok {
				return strings.TrimSpace(value), nil
			}
		}
		return "", fmt.Errorf("inference output has no %q field", key)
	}
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return strings.TrimSpace(text), nil
	}
	return "", fmt.Errorf("decode inference response: unexpected body %s", string(raw))
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
