// Package metrics exposes the Prometheus registry reportsql registers into.
// Collectors are declared next to the code they measure (client, rowxml,
// pagination, cache) via promauto.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the registerer all reportsql collectors use.
var Registry = prometheus.DefaultRegisterer

// Gatherer is the gatherer matching Registry.
var Gatherer = prometheus.DefaultGatherer

// Names of the metrics reportsql exports.
var Names = []string{
	"reportsql_requests_total",
	"reportsql_request_duration_seconds",
	"reportsql_errors_total",
	"reportsql_retries_total",
	"reportsql_retry_backoff_seconds",
	"reportsql_retry_exhausted_total",
	"reportsql_ingest_strategy_total",
	"reportsql_pages_fetched_total",
	"reportsql_rows_fetched_total",
	"reportsql_page_fetch_duration_seconds",
	"reportsql_cache_hits_total",
	"reportsql_cache_misses_total",
	"reportsql_cache_errors_total",
}

// Handler serves the registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{})
}

// Metrics Documentation
//
// Transport (pkg/client):
//   - reportsql_requests_total{status} (Counter): runReport requests by HTTP status
//   - reportsql_request_duration_seconds (Histogram): round-trip duration
//   - reportsql_errors_total{kind} (Counter): failures by kind (transport, service, domain, malformed)
//
// Retry (pkg/client):
//   - reportsql_retries_total{operation} (Counter): retry attempts
//   - reportsql_retry_backoff_seconds{operation} (Histogram): delay before each retry
//   - reportsql_retry_exhausted_total{operation} (Counter): operations that used every attempt
//
// Ingestion (pkg/rowxml):
//   - reportsql_ingest_strategy_total{strategy} (Counter): payloads parsed per strategy
//
// Pagination (pkg/pagination):
//   - reportsql_pages_fetched_total (Counter)
//   - reportsql_rows_fetched_total (Counter)
//   - reportsql_page_fetch_duration_seconds (Histogram): retries and parsing included
//
// Catalog cache (pkg/cache):
//   - reportsql_cache_hits_total (Counter)
//   - reportsql_cache_misses_total (Counter)
//   - reportsql_cache_errors_total{operation} (Counter)
//
// Example Prometheus Queries:
//
//   # Share of payloads needing recovery
//   sum(rate(reportsql_ingest_strategy_total{strategy!="strict"}[5m])) /
//   sum(rate(reportsql_ingest_strategy_total[5m]))
//
//   # Retry rate
//   rate(reportsql_retries_total[5m])
//
//   # P95 page latency
//   histogram_quantile(0.95, rate(reportsql_page_fetch_duration_seconds_bucket[5m]))
