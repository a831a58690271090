package deployments

import (
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"testing"
)

var exportedMetrics = map[string]bool{
	"sqlassist_http_requests_total":           true,
	"sqlassist_http_request_duration_seconds": true,
	"sqlassist_generations_total":             true,
	"sqlassist_corrections_total":             true,
	"sqlassist_oracle_requests_total":         true,
	"sqlassist_schema_uploads_total":          true,
	"sqlassist_janitor_sessions_pruned_total": true,
	"sqlassist_janitor_runs_total":            true,
}

var metricRef = regexp.MustCompile(`\bsqlassist_[a-z_]+`)

func TestGrafanaDashboardJSONIsValid(t *testing.T) {
	content := readAsset(t, "grafana", "sqlassist_dashboard.json")

	var decoded map[string]any
	if err := json.Unmarshal(content, &decoded); err != nil {
		t.Fatalf("dashboard JSON parse error: %v", err)
	}

	title, _ := decoded["title"].(string)
	if strings.TrimSpace(title) == "" {
		t.Fatal("dashboard title is required")
	}
	panels, ok := decoded["panels"].([]any)
	if !ok || len(panels) == 0 {
		t.Fatal("dashboard must include at least one panel")
	}
}

func TestPrometheusRulesContainExpectedAlerts(t *testing.T) {
	text := string(readAsset(t, "prometheus", "sqlassist_rules.yaml"))

	requiredAlerts := []string{
		"SQLAssistHTTPErrorRateHigh",
		"SQLAssistGenerateLatencyP95High",
		"SQLAssistClarificationRatioHigh",
		"SQLAssistOracleErrorRatioHigh",
		"SQLAssistJanitorFailing",
	}
	for _, alertName := range requiredAlerts {
		if !strings.Contains(text, "alert: "+alertName) {
			t.Fatalf("rules missing alert %q", alertName)
		}
	}
}

func TestPrometheusRecordingRulesContainExpectedRecords(t *testing.T) {
	text := string(readAsset(t, "prometheus", "sqlassist_recording_rules.yaml"))

	requiredRecords := []string{
		"sqlassist:slo_http_error_rate_5m",
		"sqlassist:slo_generate_latency_seconds_p95",
		"sqlassist:slo_clarification_ratio_15m",
		"sqlassist:slo_oracle_error_ratio_15m",
		"sqlassist:slo_janitor_failures_1h",
	}
	for _, recordName := range requiredRecords {
		if !strings.Contains(text, "record: "+recordName) {
			t.Fatalf("recording rules missing record %q", recordName)
		}
	}
}

func TestAssetsReferenceOnlyExportedMetrics(t *testing.T) {
	assets := [][2]string{
		{"prometheus", "sqlassist_recording_rules.yaml"},
		{"grafana", "sqlassist_dashboard.json"},
	}
	for _, asset := range assets {
		for _, ref := range metricRef.FindAllString(string(readAsset(t, asset[0], asset[1])), -1) {
			name := strings.TrimSuffix(ref, "_bucket")
			if !exportedMetrics[name] {
				t.Fatalf("%s references unknown metric %q", asset[1], ref)
			}
		}
	}
}

func TestPrometheusScrapeExampleContainsMetricsPathAndRules(t *testing.T) {
	text := string(readAsset(t, "prometheus", "prometheus-scrape.example.yaml"))

	for _, token := range []string{
		"metrics_path: /v1/metrics",
		"sqlassist_rules.yaml",
		"sqlassist_recording_rules.yaml",
		"job_name: sqlassist-api",
	} {
		if !strings.Contains(text, token) {
			t.Fatalf("scrape example missing %q", token)
		}
	}
}

func readAsset(t *testing.T, dir, name string) []byte {
	t.Helper()
	content, err := os.ReadFile(filepath.Join(repoRoot(t), "deployments", "observability", dir, name))
	if err != nil {
		t.Fatalf("read %s: %v", name, err)
	}
	return content
}

func repoRoot(t *testing.T) string {
	t.Helper()
	_, filename, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("runtime.Caller failed")
	}
	return filepath.Clean(filepath.Join(filepath.Dir(filename), ".."))
}
