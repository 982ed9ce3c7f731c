// Package metrics provides the Prometheus registry used by the catalog client.
// All metrics are defined in their respective packages (fetch, cache, probe,
// catalog) to maintain modularity and avoid circular dependencies.
//
// This package provides documentation and reference for all available metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the default Prometheus registry used by the catalog client.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Names lists every metric exported by the client packages.
var Names = []string{
	"catalog_requests_total",
	"catalog_request_duration_seconds",
	"catalog_retries_total",
	"catalog_retry_backoff_seconds",
	"catalog_retry_exhausted_total",
	"catalog_fetch_cache_lookups_total",
	"catalog_cache_hits_total",
	"catalog_cache_misses_total",
	"catalog_cache_stored_bytes_total",
	"catalog_cache_errors_total",
	"catalog_probe_failures_total",
	"catalog_client_requests_total",
	"catalog_pages_total",
}

// Handler serves the default registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Metrics Documentation
//
// Request Metrics (pkg/fetch):
//   - catalog_requests_total{endpoint, status} (Counter): HTTP attempts by endpoint and status
//   - catalog_request_duration_seconds{endpoint} (Histogram): Attempt duration by endpoint
//   - catalog_fetch_cache_lookups_total{result} (Counter): Cache lookups (hit, miss, error)
//
// Retry Metrics (pkg/fetch):
//   - catalog_retries_total{endpoint} (Counter): Retry attempts
//   - catalog_retry_backoff_seconds{endpoint} (Histogram): Backoff before each retry
//   - catalog_retry_exhausted_total{endpoint} (Counter): Requests that used every attempt
//
// Cache Metrics (pkg/cache):
//   - catalog_cache_hits_total{backend} (Counter): Hits by backend (memory, sqlite, redis)
//   - catalog_cache_misses_total{backend} (Counter): Misses by backend
//   - catalog_cache_stored_bytes_total{backend} (Counter): Bytes written by backend
//   - catalog_cache_errors_total{backend, operation} (Counter): Store errors
//
// Probe Metrics (pkg/probe):
//   - catalog_probe_failures_total{reason} (Counter): Suppressed probe failures
//     (transport, parse, api, malformed)
//
// Client Metrics (pkg/catalog):
//   - catalog_client_requests_total{mode, outcome} (Counter): Paginated requests by
//     delivery mode and outcome (planned, no_results, invalid)
//   - catalog_pages_total{result} (Counter): Delivered pages (ok, substituted, failed)
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(catalog_fetch_cache_lookups_total{result="hit"}[5m])) /
//   sum(rate(catalog_fetch_cache_lookups_total[5m]))
//
//   # Retry Exhaustion Rate
//   rate(catalog_retry_exhausted_total[5m])
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(catalog_request_duration_seconds_bucket[5m]))
//
//   # Probe Failure Rate
//   sum(rate(catalog_probe_failures_total[5m])) /
//   sum(rate(catalog_client_requests_total[5m]))
