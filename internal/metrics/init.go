package metrics

// InitializeMetrics pre-populates all expected label combinations so that
// every metric is exported from the first Prometheus scrape.
// Call this once at startup after metric registration.
func InitializeMetrics() {
	for _, op := range []string{"insert", "delete_by_filename", "delete_by_album", "delete_by_album_article",
		"list_filenames", "list_distinct", "query", "set_published", "stats", "initialize_schema"} {
		DBQueryTotal.WithLabelValues(op, "success")
		DBQueryTotal.WithLabelValues(op, "error")
		DBQueryDuration.WithLabelValues(op)
		DBQueryRetries.WithLabelValues(op)
	}

	for _, status := range []string{"success", "error"} {
		ReconcileRunsTotal.WithLabelValues(status)
	}
	for _, action := range []string{"added", "deleted", "failed"} {
		ReconcileRowsTotal.WithLabelValues(action)
	}

	for _, status := range []string{"success", "corrupt", "unsafe", "extraction", "error"} {
		ImportRunsTotal.WithLabelValues(status)
	}
	for _, result := range []string{"inserted", "skipped", "failed"} {
		ImportFilesTotal.WithLabelValues(result)
	}

	for _, size := range []string{"120x120", "400x400"} {
		for _, status := range []string{"success", "error_decode", "error_encode", "error_unsupported"} {
			ThumbnailGenerationsTotal.WithLabelValues(size, status)
		}
		ThumbnailGenerationDuration.WithLabelValues(size)
	}
	for _, tier := range []string{"memory", "disk"} {
		ThumbnailCacheHits.WithLabelValues(tier)
	}
	for _, scope := range []string{"file", "article", "album"} {
		ThumbnailInvalidations.WithLabelValues(scope)
	}
	for _, format := range []string{"jpeg", "png", "gif", "bmp", "webp", "tiff", "unknown"} {
		ThumbnailImageDecodeByFormat.WithLabelValues(format)
	}

	for _, published := range []string{"true", "false"} {
		CatalogFilesTotal.WithLabelValues(published)
	}

	volumes := []string{"uploads", "cache", "unknown"}
	for _, op := range []string{"stat", "open"} {
		for _, vol := range volumes {
			FilesystemRetryAttempts.WithLabelValues(op, vol)
			FilesystemRetrySuccess.WithLabelValues(op, vol)
			FilesystemRetryFailures.WithLabelValues(op, vol)
			FilesystemStaleErrors.WithLabelValues(op, vol)
			FilesystemRetryDuration.WithLabelValues(op, vol)
		}
	}
}
