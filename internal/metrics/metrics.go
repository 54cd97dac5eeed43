// Package metrics exposes the engine's process-wide Prometheus gauges
// and counters: queue depth, active workers, and jobs by terminal
// status. It is an ambient observability concern layered on top of
// internal/eventlog's per-job audit trail, not a replacement for it —
// nothing in the crawl path reads these values back.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry bundles the gauges and counters the orchestrator and worker
// pool update as jobs move through their lifecycle.
type Registry struct {
	QueueDepth    *prometheus.GaugeVec
	ActiveWorkers prometheus.Gauge
	JobsByStatus  *prometheus.CounterVec
}

// New registers the engine's metrics against a fresh registry, the way
// the teacher's own packages each own their slice of process state
// rather than reaching for prometheus' global default registry.
func New() (*Registry, *prometheus.Registry) {
	reg := prometheus.NewRegistry()

	r := &Registry{
		QueueDepth: promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "docscrawler",
			Name:      "queue_depth",
			Help:      "Number of tasks currently pending in a job's frontier queue.",
		}, []string{"job_id"}),
		ActiveWorkers: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Namespace: "docscrawler",
			Name:      "active_workers",
			Help:      "Number of worker goroutines currently processing a task across all jobs.",
		}),
		JobsByStatus: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "docscrawler",
			Name:      "jobs_total",
			Help:      "Count of jobs that have reached a given status.",
		}, []string{"status"}),
	}

	return r, reg
}

// Handler returns the HTTP handler a caller mounts at the configured
// metrics address, e.g. ServiceConfig.MetricsAddr.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

// SetQueueDepth records jobID's current frontier size.
func (r *Registry) SetQueueDepth(jobID string, depth int) {
	if r == nil {
		return
	}
	r.QueueDepth.WithLabelValues(jobID).Set(float64(depth))
}

// DeleteJob drops jobID's queue-depth series once the job is finalized,
// so the gauge vector doesn't grow unbounded across a long-running process.
func (r *Registry) DeleteJob(jobID string) {
	if r == nil {
		return
	}
	r.QueueDepth.DeleteLabelValues(jobID)
}

// IncActiveWorkers and DecActiveWorkers bracket a single task's
// processing window.
func (r *Registry) IncActiveWorkers() {
	if r == nil {
		return
	}
	r.ActiveWorkers.Inc()
}

func (r *Registry) DecActiveWorkers() {
	if r == nil {
		return
	}
	r.ActiveWorkers.Dec()
}

// RecordJobStatus bumps the counter for a job reaching status (completed,
// failed, cancelled).
func (r *Registry) RecordJobStatus(status string) {
	if r == nil {
		return
	}
	r.JobsByStatus.WithLabelValues(status).Inc()
}
