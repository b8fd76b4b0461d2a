// Package metrics registers the service's Prometheus instruments.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics bundles every instrument the service records. Construct once per
// process with New and inject.
type Metrics struct {
	PlansCreated       prometheus.Counter
	PlansRebuilt       prometheus.Counter
	RefreshEvaluations prometheus.Counter
	RefreshTriggered   *prometheus.CounterVec
	RefreshSkipped     *prometheus.CounterVec
	CandidatesExcluded *prometheus.CounterVec
	DraftingFailures   prometheus.Counter
	RequestDuration    *prometheus.HistogramVec
}

// New registers all instruments on reg and returns the bundle.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		PlansCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "tripweaver_plans_created_total",
			Help: "Plans created.",
		}),
		PlansRebuilt: factory.NewCounter(prometheus.CounterOpts{
			Name: "tripweaver_plans_rebuilt_total",
			Help: "Plans rebuilt after a refresh decision.",
		}),
		RefreshEvaluations: factory.NewCounter(prometheus.CounterOpts{
			Name: "tripweaver_refresh_evaluations_total",
			Help: "Background change-detection evaluations performed.",
		}),
		RefreshTriggered: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tripweaver_refresh_triggered_total",
			Help: "Refresh decisions that recommended a rebuild, by severity.",
		}, []string{"severity"}),
		RefreshSkipped: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tripweaver_refresh_skipped_total",
			Help: "Recommended rebuilds that were not executed, by cause.",
		}, []string{"cause"}),
		CandidatesExcluded: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tripweaver_candidates_excluded_total",
			Help: "Candidates dropped before scheduling, by stage.",
		}, []string{"stage"}),
		DraftingFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "tripweaver_drafting_failures_total",
			Help: "Narrative drafting calls that failed after recovery.",
		}),
		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tripweaver_http_request_duration_seconds",
			Help:    "HTTP request latency by route and status.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method", "status"}),
	}
}
