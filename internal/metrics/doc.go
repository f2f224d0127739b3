// Package metrics provides Prometheus instrumentation for pichost.
//
// All collectors are registered with the default registry through promauto
// and prefixed with "pichost_".
//
// # Metric Categories
//
// ## HTTP Metrics
//   - HTTPRequestsTotal, HTTPRequestDuration, HTTPRequestsInFlight
//
// ## Catalog Metrics
//   - DBQueryTotal / DBQueryDuration: per operation and status
//   - DBQueryRetries: operations retried after a transient failure
//   - DBRowsAffected: bulk delete sizes
//   - CatalogFilesTotal, CatalogAlbumsTotal, CatalogArticlesTotal: refreshed by [Collector]
//
// ## Reconciler Metrics
//   - ReconcileRunsTotal, ReconcileRowsTotal, ReconcileDuration,
//     ReconcileLastRunTimestamp, ReconcileRunning
//
// ## Importer Metrics
//   - ImportRunsTotal, ImportFilesTotal, ImportDuration
//
// ## Thumbnail Metrics
//   - ThumbnailCacheHits (memory and disk tiers), ThumbnailCacheMisses
//   - ThumbnailGenerationsTotal, ThumbnailGenerationDuration
//   - ThumbnailPlaceholdersServed, ThumbnailInvalidations
//
// # Usage
//
//	mux.Handle("/metrics", promhttp.Handler())
//
// Thumbnail cache hit rate:
//
//	sum(rate(pichost_thumbnail_cache_hits_total[5m])) /
//	(sum(rate(pichost_thumbnail_cache_hits_total[5m])) + rate(pichost_thumbnail_cache_misses_total[5m]))
package metrics
