// Package startup handles configuration loading and startup/shutdown logging.
//
// # Configuration
//
// [ReadConfig] layers three sources, lowest precedence first: built-in
// defaults, an optional YAML file, and the environment. Before reading,
// .env and .env.local files in the working directory (and next to the
// config file) are loaded into the environment without overriding
// variables that are already set.
//
// The YAML file is taken from the path argument, then $PICHOST_CONFIG, then
// ./config.yaml or /etc/pichost/config.yaml. Keys are the lowercase forms
// of the environment variables:
//
//	upload_dir: /srv/images
//	cache_dir: /srv/cache
//	base_url: https://img.example.com
//
// Supported variables:
//
//   - UPLOAD_DIR: Root of the album/article tree (default: ./images)
//   - CACHE_DIR: Cache root; thumbnails live in CACHE_DIR/thumbnails (default: ./cache)
//   - DATABASE_DIR: SQLite database directory (default: ./data)
//   - DATABASE_URL: postgres:// URL; selects the PostgreSQL catalog when set
//   - DOMAIN: Public host name (default: pichosting.mooo.com)
//   - BASE_URL: Prefix for public links (default: http://$DOMAIN)
//   - PORT: HTTP server port (default: 8080)
//   - METRICS_PORT: Prometheus metrics server port (default: 9090)
//   - METRICS_ENABLED: Enable or disable metrics server (default: true)
//   - SYNC_ON_STARTUP: Run one reconciliation pass at startup (default: true)
//   - MAX_UPLOAD_BYTES: Upload size limit (default: 16 GiB)
//   - THUMBNAIL_MEMORY_ENTRIES: In-memory thumbnail tier size, 0 disables (default: 256)
//   - THUMBNAIL_MEMORY_TTL: In-memory thumbnail lifetime (default: 10m)
//   - PLACEHOLDER_IMAGE: Image served when a thumbnail cannot be generated
//   - THUMBNAIL_WORKERS: Concurrent thumbnail generations (default: one per CPU)
//   - MEMORY_LIMIT: Container memory limit in bytes for GOMEMLIMIT (default: read from cgroup)
//   - MEMORY_RATIO: Share of MEMORY_LIMIT given to the Go heap (default: 0.85)
//   - LOG_LEVEL: debug, info, warn, error (default: info)
//   - LOG_FILE: Also write logs to this file, rotated by size
//   - LOG_MAX_SIZE_MB, LOG_MAX_BACKUPS, LOG_MAX_AGE_DAYS, LOG_COMPRESS: rotation settings
//   - LOG_STATIC_FILES: Log image and thumbnail requests (default: false)
//   - LOG_HEALTH_CHECKS: Log health check requests (default: true)
//
// # Lifecycle Logging
//
// [LoadConfig] prints the banner and the resolved configuration. The Log*
// helpers print the remaining startup sections and the shutdown sequence in
// the same format.
//
//	config, err := startup.LoadConfig()
//	if err != nil {
//	    startup.LogFatal("Configuration error: %v", err)
//	}
//	startup.LogDatabaseInit("sqlite", time.Since(dbStart))
//	startup.LogServerStarted(startup.ServerConfig{Port: config.Port})
package startup
