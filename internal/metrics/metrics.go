// Package metrics exposes gkgd's operational counters and gauges over
// /metrics (spec §6). The observability stack beyond this bare endpoint is
// out of scope; these are the handful of series an operator needs to see
// the daemon is healthy.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Registry bundles every collector gkgd registers. Tests can construct
// their own with NewRegistry to avoid colliding with the global default
// registerer across parallel test binaries.
type Registry struct {
	reg *prometheus.Registry

	ProjectsIndexed   prometheus.Gauge
	WorkspacesTracked prometheus.Gauge
	IndexJobsTotal    *prometheus.CounterVec // label: result=success|failure
	IndexDuration     *prometheus.HistogramVec
	ParseErrorsTotal  prometheus.Counter
	QueueDepth        prometheus.Gauge
	EventsDroppedTotal prometheus.Counter
}

// NewRegistry builds and registers every gkgd collector.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	m := &Registry{
		reg: reg,
		ProjectsIndexed: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "gkg", Name: "projects_indexed", Help: "Number of projects currently in the indexed state.",
		}),
		WorkspacesTracked: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "gkg", Name: "workspaces_tracked", Help: "Number of workspaces registered with the daemon.",
		}),
		IndexJobsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gkg", Name: "index_jobs_total", Help: "Total indexing jobs completed, by result.",
		}, []string{"result"}),
		IndexDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "gkg", Name: "index_duration_seconds", Help: "Indexing job wall-clock duration.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		}, []string{"mode"}), // mode=full|incremental
		ParseErrorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "gkg", Name: "parse_errors_total", Help: "Total per-file parse errors recorded across all projects.",
		}),
		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "gkg", Name: "queue_depth", Help: "Projects currently queued waiting for a global concurrency slot.",
		}),
		EventsDroppedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "gkg", Name: "events_dropped_total", Help: "Event bus messages dropped due to subscriber queue overflow (spec.md 4.8).",
		}),
	}
	reg.MustRegister(
		m.ProjectsIndexed, m.WorkspacesTracked, m.IndexJobsTotal,
		m.IndexDuration, m.ParseErrorsTotal, m.QueueDepth, m.EventsDroppedTotal,
	)
	return m
}

// Gatherer exposes the underlying registry to the HTTP handler.
func (m *Registry) Gatherer() prometheus.Gatherer { return m.reg }
