package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks cache hits
	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "reportsql_cache_hits_total",
			Help: "Total number of catalog cache hits",
		},
	)

	// CacheMisses tracks cache misses, expired entries included
	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "reportsql_cache_misses_total",
			Help: "Total number of catalog cache misses",
		},
	)

	// CacheErrors tracks cache operation errors
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reportsql_cache_errors_total",
			Help: "Total number of catalog cache operation errors",
		},
		[]string{"operation"}, // "get", "set", "delete", "purge"
	)
)
