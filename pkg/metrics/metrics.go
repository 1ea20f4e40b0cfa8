// Package metrics provides the Prometheus registry and HTTP exposition for the
// SOCS calendar client. All metrics are defined in their respective packages
// (client, pagination, ratelimit, store) to maintain modularity and avoid
// circular dependencies.
//
// This package provides documentation and reference for all available metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the default Prometheus registry used by the SOCS client.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Gatherer is the gatherer matching Registry.
var Gatherer = prometheus.DefaultGatherer

// Handler returns the /metrics HTTP handler for Gatherer.
func Handler() http.Handler {
	return promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{})
}

// Names lists every metric exported by this module.
var Names = []string{
	// pkg/client
	"socs_requests_total",
	"socs_request_duration_seconds",
	"socs_errors_total",
	"socs_retries_total",
	"socs_retry_backoff_seconds",
	"socs_retry_exhausted_total",

	// pkg/pagination
	"socs_range_fetches_total",
	"socs_range_splits_total",
	"socs_fetch_depth",
	"socs_events_merged_total",
	"socs_duplicates_dropped_total",

	// pkg/ratelimit
	"socs_rate_limit_wait_seconds",
	"socs_rate_limit_throttles_total",

	// pkg/store
	"socs_store_hits_total",
	"socs_store_misses_total",
	"socs_store_errors_total",
	"socs_store_entry_bytes",
}

// Metrics Documentation
//
// Request Metrics (pkg/client):
//   - socs_requests_total{status} (Counter): Requests by HTTP status (or network_error, read_error)
//   - socs_request_duration_seconds (Histogram): Duration of a single SOCS request
//   - socs_errors_total{class} (Counter): Errors by class (client, server, network)
//
// Retry Metrics (pkg/client, only when Retry.MaxAttempts > 1):
//   - socs_retries_total{error_class} (Counter): Retry attempts by error class
//   - socs_retry_backoff_seconds{error_class} (Histogram): Backoff duration by error class
//   - socs_retry_exhausted_total{error_class} (Counter): Requests that exhausted max retries
//
// Range Splitting Metrics (pkg/pagination):
//   - socs_range_fetches_total{outcome} (Counter): Sub-range fetches (complete, truncated, forced)
//   - socs_range_splits_total (Counter): Ranges bisected after reaching the truncation cap
//   - socs_fetch_depth (Histogram): Deepest recursion level per top-level fetch
//   - socs_events_merged_total (Counter): Unique events returned by top-level fetches
//   - socs_duplicates_dropped_total (Counter): Duplicates removed while merging
//
// Rate Limit Metrics (pkg/ratelimit):
//   - socs_rate_limit_wait_seconds (Histogram): Time spent waiting for a request token
//   - socs_rate_limit_throttles_total (Counter): Requests that had to wait
//
// Store Metrics (pkg/store):
//   - socs_store_hits_total (Counter): Result store hits
//   - socs_store_misses_total (Counter): Result store misses
//   - socs_store_errors_total{operation} (Counter): Store operation errors
//   - socs_store_entry_bytes (Histogram): Size of stored entries
//
// Example Prometheus Queries:
//
//   # Share of sub-range fetches that hit the cap
//   sum(rate(socs_range_fetches_total{outcome!="complete"}[1h])) /
//   sum(rate(socs_range_fetches_total[1h]))
//
//   # Single days that overflowed the cap (possible data loss)
//   increase(socs_range_fetches_total{outcome="forced"}[1d]) > 0
//
//   # Store Hit Rate
//   sum(rate(socs_store_hits_total[5m])) /
//   (sum(rate(socs_store_hits_total[5m])) + sum(rate(socs_store_misses_total[5m])))
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(socs_request_duration_seconds_bucket[5m]))
