package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	ReportsSubmitted     prometheus.Counter
	ReportsMerged        prometheus.Counter
	SubmissionsRejected  *prometheus.CounterVec
	ReportsVerified      prometheus.Counter
	ReportsDenied        prometheus.Counter
	ReportsDeleted       prometheus.Counter
	ReportsAgedOut       prometheus.Counter
	StatsRecomputes      prometheus.Counter
	RequestDurationMs    *prometheus.HistogramVec
}

// New creates and registers all Prometheus metrics on the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry registers the metrics on an explicit registerer. Tests use
// it to avoid duplicate-registration panics across cases.
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ReportsSubmitted: factory.NewCounter(prometheus.CounterOpts{
			Name: "sightline_reports_submitted_total",
			Help: "Reports accepted by the intake pipeline, new or merged",
		}),
		ReportsMerged: factory.NewCounter(prometheus.CounterOpts{
			Name: "sightline_reports_merged_total",
			Help: "Submissions that merged into an existing record at the same address key",
		}),
		SubmissionsRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sightline_submissions_rejected_total",
			Help: "Submissions rejected by an intake gate, labeled by reason",
		}, []string{"reason"}),
		ReportsVerified: factory.NewCounter(prometheus.CounterOpts{
			Name: "sightline_reports_verified_total",
			Help: "Pending reports published by a verifier",
		}),
		ReportsDenied: factory.NewCounter(prometheus.CounterOpts{
			Name: "sightline_reports_denied_total",
			Help: "Pending reports denied by a verifier",
		}),
		ReportsDeleted: factory.NewCounter(prometheus.CounterOpts{
			Name: "sightline_reports_deleted_total",
			Help: "Pending reports deleted outright by a verifier",
		}),
		ReportsAgedOut: factory.NewCounter(prometheus.CounterOpts{
			Name: "sightline_reports_aged_out_total",
			Help: "Reports relocated to the cold store by the aging job",
		}),
		StatsRecomputes: factory.NewCounter(prometheus.CounterOpts{
			Name: "sightline_stats_recomputes_total",
			Help: "Full recomputations of the aggregate snapshot",
		}),
		RequestDurationMs: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sightline_request_duration_ms",
			Help:    "HTTP request latency in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500},
		}, []string{"route"}),
	}
}
