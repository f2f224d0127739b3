package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pichost_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pichost_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pichost_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)
)

// Catalog store metrics
var (
	DBQueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pichost_db_queries_total",
			Help: "Total number of catalog queries",
		},
		[]string{"operation", "status"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pichost_db_query_duration_seconds",
			Help:    "Catalog query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"operation"},
	)

	DBQueryRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pichost_db_query_retries_total",
			Help: "Catalog operations retried after a transient failure",
		},
		[]string{"operation"},
	)

	DBConnectionsOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pichost_db_connections_open",
			Help: "Number of open catalog connections",
		},
	)

	DBRowsAffected = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pichost_db_rows_affected",
			Help:    "Rows affected by bulk catalog deletes",
			Buckets: []float64{0, 1, 10, 50, 100, 500, 1000, 5000},
		},
		[]string{"operation"},
	)
)

// Reconciler metrics
var (
	ReconcileRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pichost_reconcile_runs_total",
			Help: "Total number of reconciliation passes by outcome",
		},
		[]string{"status"},
	)

	ReconcileRowsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pichost_reconcile_rows_total",
			Help: "Catalog rows touched by reconciliation",
		},
		[]string{"action"}, // "added", "deleted", "failed"
	)

	ReconcileDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pichost_reconcile_duration_seconds",
			Help:    "Duration of a reconciliation pass",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 300},
		},
	)

	ReconcileLastRunTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pichost_reconcile_last_run_timestamp",
			Help: "Unix timestamp of the last completed reconciliation",
		},
	)

	ReconcileRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pichost_reconcile_running",
			Help: "Whether a reconciliation pass is currently running (1 = running, 0 = idle)",
		},
	)
)

// Importer metrics
var (
	ImportRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pichost_import_runs_total",
			Help: "Total number of archive imports by outcome",
		},
		[]string{"status"}, // "success", "corrupt", "unsafe", "extraction", "error"
	)

	ImportFilesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pichost_import_files_total",
			Help: "Files seen by archive imports",
		},
		[]string{"result"}, // "inserted", "skipped", "failed"
	)

	ImportDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pichost_import_duration_seconds",
			Help:    "Duration of an archive import",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300, 900},
		},
	)
)

// Thumbnail cache metrics
var (
	ThumbnailGenerationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pichost_thumbnail_generations_total",
			Help: "Total number of thumbnail generations",
		},
		[]string{"size", "status"},
	)

	ThumbnailGenerationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pichost_thumbnail_generation_duration_seconds",
			Help:    "Thumbnail generation duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"size"},
	)

	ThumbnailCacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pichost_thumbnail_cache_hits_total",
			Help: "Thumbnail requests served from cache",
		},
		[]string{"tier"}, // "memory", "disk"
	)

	ThumbnailCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pichost_thumbnail_cache_misses_total",
			Help: "Thumbnail requests that required generation",
		},
	)

	ThumbnailPlaceholdersServed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pichost_thumbnail_placeholders_total",
			Help: "Placeholder images served in place of a failed thumbnail",
		},
	)

	ThumbnailInvalidations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pichost_thumbnail_invalidations_total",
			Help: "Cache invalidations by scope",
		},
		[]string{"scope"}, // "file", "article", "album"
	)

	ThumbnailImageDecodeByFormat = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pichost_thumbnail_decode_total",
			Help: "Original images decoded for thumbnailing, by format",
		},
		[]string{"format"},
	)
)

// Catalog content metrics
var (
	CatalogFilesTotal = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pichost_catalog_files",
			Help: "Indexed image files by visibility",
		},
		[]string{"published"},
	)

	CatalogAlbumsTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pichost_catalog_albums",
			Help: "Number of distinct albums",
		},
	)

	CatalogArticlesTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pichost_catalog_articles",
			Help: "Number of distinct album/article pairs",
		},
	)
)

// Filesystem retry metrics
var (
	FilesystemRetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pichost_filesystem_retry_attempts_total",
			Help: "Filesystem operations retried after a stale handle",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetrySuccess = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pichost_filesystem_retry_success_total",
			Help: "Filesystem operations that succeeded after retrying",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pichost_filesystem_retry_failures_total",
			Help: "Filesystem operations that exhausted their retries",
		},
		[]string{"operation", "volume"},
	)

	FilesystemStaleErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pichost_filesystem_stale_errors_total",
			Help: "ESTALE errors observed",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pichost_filesystem_retry_duration_seconds",
			Help:    "Total time spent in retried filesystem operations",
			Buckets: []float64{0.0001, 0.001, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2},
		},
		[]string{"operation", "volume"},
	)
)

// Application info
var (
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pichost_app_info",
			Help: "Application build information",
		},
		[]string{"version", "commit", "go_version"},
	)
)

// SetAppInfo publishes build information as a constant gauge.
func SetAppInfo(version, commit, goVersion string) {
	AppInfo.WithLabelValues(version, commit, goVersion).Set(1)
}
