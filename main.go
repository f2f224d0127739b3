package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pichost/internal/albums"
	"pichost/internal/database"
	"pichost/internal/filesystem"
	"pichost/internal/handlers"
	"pichost/internal/importer"
	"pichost/internal/indexer"
	"pichost/internal/logging"
	"pichost/internal/media"
	"pichost/internal/memory"
	"pichost/internal/metrics"
	"pichost/internal/middleware"
	"pichost/internal/startup"
	"pichost/internal/writelock"

	"github.com/gorilla/mux"
)

// catalogStatsAdapter exposes catalog totals to the metrics collector.
type catalogStatsAdapter struct {
	catalog interface {
		Stats(ctx context.Context) (database.Stats, error)
	}
}

func (a catalogStatsAdapter) GetStats(ctx context.Context) (metrics.Stats, error) {
	s, err := a.catalog.Stats(ctx)
	if err != nil {
		return metrics.Stats{}, err
	}
	return metrics.Stats{
		TotalAlbums:    s.TotalAlbums,
		TotalArticles:  s.TotalArticles,
		TotalFiles:     s.TotalFiles,
		PublishedFiles: s.PublishedFiles,
	}, nil
}

func main() {
	startTime := time.Now()

	// Load configuration
	config, err := startup.LoadConfig()
	if err != nil {
		startup.LogFatal("Configuration error: %v", err)
	}
	logging.EnableFile(config.LogFile)
	defer func() { _ = logging.Close() }()

	memory.Configure(memory.Options{
		Limit:      config.MemoryLimit,
		Ratio:      config.MemoryRatio,
		CgroupFile: memory.DefaultCgroupFile,
	})

	metrics.InitializeMetrics()
	metrics.SetAppInfo(startup.Version, startup.Commit, startup.GoVersion)
	filesystem.SetObserver(metrics.NewFilesystemObserver())
	filesystem.SetDefaultVolumeResolver(filesystem.NewVolumeResolver(map[string]string{
		"uploads":  config.UploadDir,
		"cache":    config.CacheDir,
		"database": config.DatabaseDir,
	}))

	// Initialize catalog
	dbStart := time.Now()
	dbOpts := database.Options{URL: config.DatabaseURL, SQLitePath: config.DatabasePath}
	catalog, err := database.Open(context.Background(), dbOpts)
	if err != nil {
		startup.LogFatal("Failed to initialize database: %v", err)
	}
	defer func() { _ = catalog.Close() }()
	startup.LogDatabaseInit(dbOpts.Engine(), time.Since(dbStart))

	// Initialize thumbnail cache
	if err := media.InitVips(); err != nil {
		logging.Warn("libvips initialization failed, falling back to pure Go: %v", err)
	}
	placeholder, err := media.LoadPlaceholder(config.PlaceholderImage)
	if err != nil {
		logging.Warn("Failed to load placeholder image %s, using built-in: %v", config.PlaceholderImage, err)
		placeholder = media.DefaultPlaceholder()
	}
	cache, err := media.NewCache(media.Options{
		OriginalsDir:  config.UploadDir,
		CacheDir:      config.ThumbnailDir,
		MemoryEntries: config.ThumbnailMemoryEntries,
		MemoryTTL:     config.ThumbnailMemoryTTL,
		Placeholder:   placeholder,
		Workers:       config.ThumbnailWorkers,
	})
	if err != nil {
		startup.LogFatal("Failed to initialize thumbnail cache: %v", err)
	}
	startup.LogThumbnailInit(config.ThumbnailDir, media.IsVipsAvailable(), config.ThumbnailMemoryEntries)

	locks := writelock.New()
	rec := indexer.New(catalog, cache, locks, config.UploadDir, config.BaseURL)
	imp := importer.New(catalog, cache, locks, config.UploadDir, config.BaseURL)
	mgr := albums.NewManager(catalog, cache, rec, locks, config.UploadDir)

	if config.SyncOnStartup {
		result, err := rec.Reconcile(context.Background())
		if err != nil {
			logging.Error("Initial synchronization failed: %v", err)
		} else {
			startup.LogSyncResult(len(result.Added), len(result.Deleted), len(result.Failed), result.Duration)
		}
	}

	// Initialize handlers
	h := handlers.New(catalog, rec, imp, cache, mgr, config)

	// Setup router
	router := setupRouter(h)
	startup.LogHTTPRoutes(router, config.LogStaticFiles, config.LogHealthChecks)

	loggingConfig := middleware.DefaultLoggingConfig()
	loggingConfig.LogStaticFiles = config.LogStaticFiles
	loggingConfig.LogHealthChecks = config.LogHealthChecks

	handler := middleware.Compression(middleware.DefaultCompressionConfig())(router)
	handler = middleware.Logger(loggingConfig)(handler)
	handler = middleware.RequestID(handler)

	srv := &http.Server{
		Addr:              ":" + config.Port,
		Handler:           handler,
		ReadHeaderTimeout: 15 * time.Second,
		// Uploads can take a long time; no read or write deadline.
		ReadTimeout:  0,
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	var metricsSrv *http.Server
	var collector *metrics.Collector
	if config.MetricsEnabled {
		collector = metrics.NewCollector(catalogStatsAdapter{catalog: catalog}, time.Minute)
		collector.Start()

		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", h.MetricsHandler())
		metricsMux.HandleFunc("/health", h.LivenessCheck)
		metricsSrv = &http.Server{
			Addr:              ":" + config.MetricsPort,
			Handler:           metricsMux,
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logging.Error("Metrics server error: %v", err)
			}
		}()
	}

	shutdownDone := make(chan struct{})
	go func() {
		handleShutdown(srv, metricsSrv, collector)
		close(shutdownDone)
	}()

	startup.LogServerStarted(startup.ServerConfig{
		Port:            config.Port,
		MetricsPort:     config.MetricsPort,
		MetricsEnabled:  config.MetricsEnabled,
		BaseURL:         config.BaseURL,
		StartupDuration: time.Since(startTime),
	})
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		startup.LogFatal("Server error: %v", err)
	}
	<-shutdownDone
	media.ShutdownVips()
}

func setupRouter(h *handlers.Handlers) *mux.Router {
	r := mux.NewRouter()
	r.Use(middleware.Metrics(middleware.DefaultMetricsConfig()))

	// Health check and version routes
	r.HandleFunc("/health", h.HealthCheck).Methods("GET")
	r.HandleFunc("/healthz", h.HealthCheck).Methods("GET")
	r.HandleFunc("/livez", h.LivenessCheck).Methods("GET", "HEAD")
	r.HandleFunc("/readyz", h.ReadinessCheck).Methods("GET")
	r.HandleFunc("/version", h.GetVersion).Methods("GET")

	r.HandleFunc("/upload", h.Upload).Methods("POST")

	// Images
	r.HandleFunc("/images/{path:.+}", h.ServeImage).Methods("GET", "HEAD")
	r.HandleFunc("/thumbnails/{size:small|medium}/{path:.+}", h.ServeThumbnail).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/sync", h.Sync).Methods("GET", "POST")
	api.HandleFunc("/albums", h.ListAlbums).Methods("GET")
	api.HandleFunc("/articles/{album}", h.ListArticles).Methods("GET")
	api.HandleFunc("/files", h.ListFiles).Methods("GET")
	api.HandleFunc("/files/{album}", h.ListFiles).Methods("GET")
	api.HandleFunc("/files/{album}/{article}", h.ListFiles).Methods("GET")
	api.HandleFunc("/thumbnails/{album}", h.ListThumbnails).Methods("GET")
	api.HandleFunc("/thumbnails/{album}/{article}", h.ListThumbnails).Methods("GET")
	api.HandleFunc("/cleanup-thumbnails/{album}", h.CleanupThumbnails).Methods("POST")
	api.HandleFunc("/delete-album/{album}", h.DeleteAlbum).Methods("DELETE")
	api.HandleFunc("/delete-article/{album}/{article}", h.DeleteArticle).Methods("DELETE")
	api.HandleFunc("/publish", h.SetPublished).Methods("POST")
	api.HandleFunc("/export-xlsx", h.ExportXLSX).Methods("POST")

	return r
}

func handleShutdown(srv, metricsSrv *http.Server, collector *metrics.Collector) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	startup.LogShutdownInitiated(sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if collector != nil {
		startup.LogShutdownStep("Stopping metrics collector")
		collector.Stop()
		startup.LogShutdownStepComplete("Metrics collector stopped")
	}

	if metricsSrv != nil {
		startup.LogShutdownStep("Shutting down metrics server")
		if err := metricsSrv.Shutdown(ctx); err != nil {
			logging.Warn("Metrics server shutdown error: %v", err)
		} else {
			startup.LogShutdownStepComplete("Metrics server stopped")
		}
	}

	startup.LogShutdownStep("Shutting down HTTP server")
	if err := srv.Shutdown(ctx); err != nil {
		logging.Warn("Server shutdown error: %v", err)
	} else {
		startup.LogShutdownStepComplete("HTTP server stopped")
	}

	startup.LogShutdownComplete()
}
