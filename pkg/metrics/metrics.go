// Package metrics exposes the Prometheus registry used by the service.
// Collectors are defined in the packages that update them (client,
// aggregate) and registered through promauto on import.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	// Register the collectors of the aggregation pipeline.
	_ "github.com/Sternrassler/epoxy/pkg/aggregate"
	_ "github.com/Sternrassler/epoxy/pkg/client"
)

// Gatherer is the gatherer served by Handler.
var Gatherer = prometheus.DefaultGatherer

// Handler returns the HTTP handler serving all registered metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{
		ErrorHandling: promhttp.ContinueOnError,
	})
}

// Metrics Documentation
//
// Upstream Metrics (pkg/client):
//   - epoxy_upstream_requests_total{status} (Counter): Upstream requests by HTTP status or "transport_error"
//   - epoxy_upstream_request_duration_seconds (Histogram): Upstream call duration
//   - epoxy_upstream_failures_total{class} (Counter): Endpoint failures by class
//     (invalid_endpoint, network, timeout, client, server, empty_body, too_large, decode)
//
// Aggregation Metrics (pkg/aggregate):
//   - epoxy_aggregations_total{shape, result} (Counter): Aggregations by shape (combined, appended)
//     and result (ok, failed)
//   - epoxy_aggregation_duration_seconds{shape} (Histogram): End-to-end aggregation duration
//   - epoxy_aggregation_endpoints (Histogram): Endpoints per aggregation request
//
// Example Prometheus Queries:
//
//   # Endpoint failure rate by class
//   sum by (class) (rate(epoxy_upstream_failures_total[5m]))
//
//   # fail_any abort ratio
//   sum(rate(epoxy_aggregations_total{result="failed"}[5m])) /
//   sum(rate(epoxy_aggregations_total[5m]))
//
//   # P95 aggregation latency
//   histogram_quantile(0.95, rate(epoxy_aggregation_duration_seconds_bucket[5m]))
