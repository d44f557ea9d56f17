package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Workflow operation metrics
	operationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "approvalflow_operations_total",
			Help: "Total number of workflow operations by outcome",
		},
		[]string{"operation", "outcome"},
	)

	operationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "approvalflow_operation_duration_seconds",
			Help:    "Workflow operation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// Monitor gauges, replaced on every sweep
	overdueAssignments = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "approvalflow_overdue_assignments",
			Help: "Number of overdue active assignments per level",
		},
		[]string{"level"},
	)

	averageWaitHours = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "approvalflow_overdue_average_wait_hours",
			Help: "Average waiting hours of overdue assignments per level",
		},
		[]string{"level"},
	)

	activeRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "approvalflow_active_requests",
			Help: "Number of requests currently inside the approver chain",
		},
	)
)

// RecordOperation records a workflow operation; outcome is "ok" or an error kind
func RecordOperation(operation, outcome string, durationSeconds float64) {
	operationsTotal.WithLabelValues(operation, outcome).Inc()
	operationDuration.WithLabelValues(operation).Observe(durationSeconds)
}

// LevelStat is one level's bottleneck figures
type LevelStat struct {
	Level            string
	Count            float64
	AverageWaitHours float64
}

// SetBottlenecks replaces the per-level overdue gauges
func SetBottlenecks(active int, stats []LevelStat) {
	overdueAssignments.Reset()
	averageWaitHours.Reset()
	for _, s := range stats {
		overdueAssignments.WithLabelValues(s.Level).Set(s.Count)
		averageWaitHours.WithLabelValues(s.Level).Set(s.AverageWaitHours)
	}
	activeRequests.Set(float64(active))
}

// Handler returns the Prometheus metrics HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
