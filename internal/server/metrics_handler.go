package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gkg/knowledgegraph/internal/metrics"
)

// promHandler adapts the Prometheus gatherer to a stdlib http.Handler,
// grounded on the evalgo-org-eve pack repo's tracing.MetricsHandler, which
// wraps promhttp.Handler() the same way for an Echo /metrics route.
func promHandler(m *metrics.Registry) http.Handler {
	return promhttp.HandlerFor(m.Gatherer(), promhttp.HandlerOpts{})
}
