// Package cache stores catalog metadata in Redis.
//
// Catalog lookups (tables, views, columns) go to the report service as
// ordinary queries and are slow. The manager keeps their results keyed by
// endpoint, lookup kind and the schema/object patterns that produced them,
// and lets Redis expire them after a fixed TTL.
//
// # Basic Usage
//
//	redisClient := redis.NewClient(&redis.Options{
//		Addr: "localhost:6379",
//	})
//
//	manager := cache.NewManager(redisClient)
//
//	key := cache.CacheKey{
//		Endpoint: "https://reports.example.com/xmlpserver/services/ExternalReportWSSService",
//		Kind:     cache.KindTables,
//		Schema:   "HR",
//		Object:   "%",
//	}
//
//	entry, err := manager.Get(ctx, key)
//	if errors.Is(err, cache.ErrCacheMiss) {
//		// run the catalog query, then
//		_ = manager.Set(ctx, key, cache.NewEntry(columns, rows, time.Hour))
//	}
//
// # Metrics
//
//   - reportsql_cache_hits_total - Cache hits
//   - reportsql_cache_misses_total - Cache misses
//   - reportsql_cache_errors_total{operation} - Cache operation errors
package cache
