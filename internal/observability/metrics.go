package observability

import "github.com/prometheus/client_golang/prometheus"

var (
	// HTTP metrics are labelled by ServeMux pattern, never by raw path.
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sqlassist_http_requests_total",
			Help: "Total number of HTTP requests by route.",
		},
		[]string{"method", "path", "status"},
	)
	httpRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sqlassist_http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method", "path", "status"},
	)

	generationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sqlassist_generations_total",
			Help: "Total number of generation requests by detected statement kind and outcome.",
		},
		[]string{"kind", "outcome"},
	)
	correctionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sqlassist_corrections_total",
			Help: "Total number of correction requests by outcome.",
		},
		[]string{"outcome"},
	)
	oracleRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sqlassist_oracle_requests_total",
			Help: "Total number of external oracle calls by provider and outcome.",
		},
		[]string{"provider", "outcome"},
	)
	schemaUploadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sqlassist_schema_uploads_total",
			Help: "Total number of schema uploads by file format and outcome.",
		},
		[]string{"format", "outcome"},
	)
	janitorSessionsPrunedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sqlassist_janitor_sessions_pruned_total",
			Help: "Total number of idle sessions removed by the janitor.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDurationSeconds,
		generationsTotal,
		correctionsTotal,
		oracleRequestsTotal,
		schemaUploadsTotal,
		janitorSessionsPrunedTotal,
	)
}

// ObserveGeneration counts one answer to a generate request. Clarifications
// and user errors have no detected kind and are counted as "unknown".
func ObserveGeneration(kind, outcome string) {
	if kind == "" || kind == "UNKNOWN" {
		kind = "unknown"
	}
	generationsTotal.WithLabelValues(kind, outcome).Inc()
}

func ObserveCorrection(outcome string) {
	correctionsTotal.WithLabelValues(outcome).Inc()
}

func ObserveOracleRequest(provider string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	oracleRequestsTotal.WithLabelValues(provider, outcome).Inc()
}

func ObserveSchemaUpload(format, outcome string) {
	schemaUploadsTotal.WithLabelValues(format, outcome).Inc()
}

func AddSessionsPruned(count int64) {
	if count > 0 {
		janitorSessionsPrunedTotal.Add(float64(count))
	}
}
