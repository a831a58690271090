package maintenance

import "github.com/prometheus/client_golang/prometheus"

var janitorRunsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "sqlassist_janitor_runs_total",
		Help: "Total number of janitor cycles by status.",
	},
	[]string{"status"},
)

func init() {
	prometheus.MustRegister(janitorRunsTotal)
}
