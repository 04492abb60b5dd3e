// Package metrics wires Prometheus instrumentation for the reconciler and
// the Registry HTTP surface, following the counter/gauge-per-concern
// style used throughout the collector metrics in the wider pack.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// SchedulerMetrics tracks the reconciliation loop's health: how often it
// runs, how long each pass takes, and how many jobs are currently live.
type SchedulerMetrics struct {
	reconcileTotal    prometheus.Counter
	reconcileFailures prometheus.Counter
	reconcileDuration prometheus.Gauge
	activeJobs        prometheus.Gauge
}

// NewSchedulerMetrics registers and returns a SchedulerMetrics against r.
func NewSchedulerMetrics(r prometheus.Registerer) *SchedulerMetrics {
	return &SchedulerMetrics{
		reconcileTotal: promauto.With(r).NewCounter(prometheus.CounterOpts{
			Name: "quasar_scheduler_reconcile_total",
			Help: "Total number of reconciliation passes.",
		}),
		reconcileFailures: promauto.With(r).NewCounter(prometheus.CounterOpts{
			Name: "quasar_scheduler_reconcile_failures_total",
			Help: "Total number of reconciliation passes that returned an error.",
		}),
		reconcileDuration: promauto.With(r).NewGauge(prometheus.GaugeOpts{
			Name: "quasar_scheduler_reconcile_duration_seconds",
			Help: "Duration of the most recent reconciliation pass.",
		}),
		activeJobs: promauto.With(r).NewGauge(prometheus.GaugeOpts{
			Name: "quasar_scheduler_active_jobs",
			Help: "Number of jobs currently scheduled.",
		}),
	}
}

// ObserveReconcile records the outcome of one reconciliation pass.
func (m *SchedulerMetrics) ObserveReconcile(duration time.Duration, err error, jobCount int) {
	if m == nil {
		return
	}
	m.reconcileTotal.Inc()
	m.reconcileDuration.Set(duration.Seconds())
	m.activeJobs.Set(float64(jobCount))
	if err != nil {
		m.reconcileFailures.Inc()
	}
}

// HTTPMetrics tracks request counts and latency for the Registry Control
// Plane's HTTP surface, labeled by method, the value passed as pattern
// (the registry's middleware passes the request path), and status text.
type HTTPMetrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

// NewHTTPMetrics registers and returns an HTTPMetrics against r.
func NewHTTPMetrics(r prometheus.Registerer) *HTTPMetrics {
	return &HTTPMetrics{
		requestsTotal: promauto.With(r).NewCounterVec(prometheus.CounterOpts{
			Name: "quasar_registry_http_requests_total",
			Help: "Total number of Registry HTTP requests.",
		}, []string{"method", "pattern", "status"}),
		requestDuration: promauto.With(r).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "quasar_registry_http_request_duration_seconds",
			Help:    "Registry HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "pattern"}),
	}
}

// Observe records one completed request.
func (m *HTTPMetrics) Observe(method, pattern string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requestsTotal.WithLabelValues(method, pattern, http.StatusText(status)).Inc()
	m.requestDuration.WithLabelValues(method, pattern).Observe(duration.Seconds())
}
