package startup

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"pichost/internal/logging"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Build-time variables (injected via -ldflags)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
	GoVersion = runtime.Version()
)

// BuildInfo contains version and build information
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"buildTime"`
	GoVersion string `json:"goVersion"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// GetBuildInfo returns the current build information
func GetBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: GoVersion,
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}

// RouteInfo contains information about a registered route
type RouteInfo struct {
	Method string
	Path   string
	Name   string
}

// DefaultDomain is the public host used when neither DOMAIN nor BASE_URL is set.
const DefaultDomain = "pichosting.mooo.com"

// ConfigFileEnv names the environment variable pointing at an optional YAML config file.
const ConfigFileEnv = "PICHOST_CONFIG"

// Config holds all application configuration
type Config struct {
	UploadDir   string
	CacheDir    string
	DatabaseDir string
	DatabaseURL string
	Domain      string
	BaseURL     string
	Port        string
	MetricsPort string

	MetricsEnabled  bool
	SyncOnStartup   bool
	LogStaticFiles  bool
	LogHealthChecks bool

	MaxUploadBytes         int64
	ThumbnailMemoryEntries int
	ThumbnailMemoryTTL     time.Duration
	PlaceholderImage       string
	ThumbnailWorkers       int

	// MemoryLimit is the container memory limit in bytes; 0 reads the cgroup.
	MemoryLimit int64
	MemoryRatio float64

	LogFile logging.FileConfig

	// ConfigFile is the YAML file that was read, if any.
	ConfigFile string

	// Derived paths
	DatabasePath string
	ThumbnailDir string
	StagingDir   string
}

// UsesPostgres reports whether DatabaseURL selects the PostgreSQL catalog.
func (c *Config) UsesPostgres() bool {
	return strings.HasPrefix(c.DatabaseURL, "postgres://") ||
		strings.HasPrefix(c.DatabaseURL, "postgresql://")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("upload_dir", "./images")
	v.SetDefault("cache_dir", "./cache")
	v.SetDefault("database_dir", "./data")
	v.SetDefault("database_url", "")
	v.SetDefault("domain", DefaultDomain)
	v.SetDefault("base_url", "")
	v.SetDefault("port", "8080")
	v.SetDefault("metrics_port", "9090")
	v.SetDefault("metrics_enabled", true)
	v.SetDefault("sync_on_startup", true)
	v.SetDefault("log_static_files", false)
	v.SetDefault("log_health_checks", true)
	v.SetDefault("max_upload_bytes", int64(16)<<30)
	v.SetDefault("thumbnail_memory_entries", 256)
	v.SetDefault("thumbnail_memory_ttl", "10m")
	v.SetDefault("placeholder_image", "")
	v.SetDefault("thumbnail_workers", 0)
	v.SetDefault("memory_limit", 0)
	v.SetDefault("memory_ratio", 0.85)
	v.SetDefault("log_file", "")
	v.SetDefault("log_max_size_mb", 128)
	v.SetDefault("log_max_backups", 5)
	v.SetDefault("log_max_age_days", 16)
	v.SetDefault("log_compress", false)
}

// loadEnvFiles loads .env files into the process environment. Missing files
// are ignored, and variables already set are never overwritten.
func loadEnvFiles(dirs ...string) {
	for _, dir := range dirs {
		for _, name := range []string{".env", ".env.local"} {
			_ = godotenv.Load(filepath.Join(dir, name))
		}
	}
}

// ReadConfig resolves configuration from defaults, an optional YAML file and
// the environment, in increasing order of precedence. An empty path falls
// back to $PICHOST_CONFIG, then to ./config.yaml and /etc/pichost/config.yaml
// if present. It performs no directory checks; see [Config.PrepareDirectories].
func ReadConfig(path string) (*Config, error) {
	loadEnvFiles(".")
	if path == "" {
		path = os.Getenv(ConfigFileEnv)
	}

	v := viper.New()
	setDefaults(v)

	if path != "" {
		loadEnvFiles(filepath.Dir(path))
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/pichost")
	}

	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	ttl, err := time.ParseDuration(v.GetString("thumbnail_memory_ttl"))
	if err != nil {
		logging.Warn("Invalid THUMBNAIL_MEMORY_TTL %q, using default: 10m", v.GetString("thumbnail_memory_ttl"))
		ttl = 10 * time.Minute
	}

	cfg := &Config{
		UploadDir:              v.GetString("upload_dir"),
		CacheDir:               v.GetString("cache_dir"),
		DatabaseDir:            v.GetString("database_dir"),
		DatabaseURL:            v.GetString("database_url"),
		Domain:                 v.GetString("domain"),
		BaseURL:                strings.TrimRight(v.GetString("base_url"), "/"),
		Port:                   v.GetString("port"),
		MetricsPort:            v.GetString("metrics_port"),
		MetricsEnabled:         v.GetBool("metrics_enabled"),
		SyncOnStartup:          v.GetBool("sync_on_startup"),
		LogStaticFiles:         v.GetBool("log_static_files"),
		LogHealthChecks:        v.GetBool("log_health_checks"),
		MaxUploadBytes:         v.GetInt64("max_upload_bytes"),
		ThumbnailMemoryEntries: v.GetInt("thumbnail_memory_entries"),
		ThumbnailMemoryTTL:     ttl,
		PlaceholderImage:       v.GetString("placeholder_image"),
		ThumbnailWorkers:       v.GetInt("thumbnail_workers"),
		MemoryLimit:            v.GetInt64("memory_limit"),
		MemoryRatio:            v.GetFloat64("memory_ratio"),
		ConfigFile:             v.ConfigFileUsed(),
		LogFile: logging.FileConfig{
			Path:       v.GetString("log_file"),
			MaxSizeMB:  v.GetInt("log_max_size_mb"),
			MaxBackups: v.GetInt("log_max_backups"),
			MaxAgeDays: v.GetInt("log_max_age_days"),
			Compress:   v.GetBool("log_compress"),
		},
	}

	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://" + cfg.Domain
	}
	if cfg.MaxUploadBytes <= 0 {
		return nil, fmt.Errorf("MAX_UPLOAD_BYTES must be positive, got %d", cfg.MaxUploadBytes)
	}
	if cfg.ThumbnailMemoryEntries < 0 {
		cfg.ThumbnailMemoryEntries = 0
	}

	for _, dir := range []*string{&cfg.UploadDir, &cfg.CacheDir, &cfg.DatabaseDir} {
		abs, err := filepath.Abs(*dir)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve directory path %q: %w", *dir, err)
		}
		*dir = abs
	}

	cfg.DatabasePath = filepath.Join(cfg.DatabaseDir, "pichost.db")
	cfg.ThumbnailDir = filepath.Join(cfg.CacheDir, "thumbnails")
	cfg.StagingDir = filepath.Join(cfg.UploadDir, ".staging")

	return cfg, nil
}

// PrepareDirectories creates the upload, thumbnail and staging directories,
// and the database directory when SQLite is in use, and checks they are writable.
func (c *Config) PrepareDirectories() error {
	required := []struct {
		path string
		name string
	}{
		{c.UploadDir, "upload"},
		{c.StagingDir, "staging"},
		{c.ThumbnailDir, "thumbnail"},
	}
	if !c.UsesPostgres() {
		required = append(required, struct {
			path string
			name string
		}{c.DatabaseDir, "database"})
	}

	for _, d := range required {
		if err := ensureDirectory(d.path, d.name); err != nil {
			return fmt.Errorf("%s directory error: %w", d.name, err)
		}
		if err := testWriteAccess(d.path); err != nil {
			return fmt.Errorf("%s directory is not writable: %w", d.name, err)
		}
		logging.Info("  [OK] %s directory is writable", d.name)
	}
	return nil
}

// LoadConfig prints the startup banner, reads configuration and prepares the
// on-disk layout. It is the server's entry point into this package.
func LoadConfig() (*Config, error) {
	printBanner()
	logSystemInfo()

	cfg, err := ReadConfig("")
	if err != nil {
		return nil, err
	}

	logging.Info("------------------------------------------------------------")
	logging.Info("CONFIGURATION")
	logging.Info("------------------------------------------------------------")
	if cfg.ConfigFile != "" {
		logging.Info("  Config file:               %s", cfg.ConfigFile)
	}
	logging.Info("  UPLOAD_DIR:                %s", cfg.UploadDir)
	logging.Info("  CACHE_DIR:                 %s", cfg.CacheDir)
	if cfg.UsesPostgres() {
		logging.Info("  DATABASE_URL:              %s", RedactURL(cfg.DatabaseURL))
	} else {
		logging.Info("  DATABASE_DIR:              %s", cfg.DatabaseDir)
	}
	logging.Info("  BASE_URL:                  %s", cfg.BaseURL)
	logging.Info("  PORT:                      %s", cfg.Port)
	logging.Info("  METRICS_PORT:              %s", cfg.MetricsPort)
	logging.Info("  METRICS_ENABLED:           %v", cfg.MetricsEnabled)
	logging.Info("  SYNC_ON_STARTUP:           %v", cfg.SyncOnStartup)
	logging.Info("  MAX_UPLOAD_BYTES:          %d", cfg.MaxUploadBytes)
	logging.Info("  THUMBNAIL_MEMORY_ENTRIES:  %d", cfg.ThumbnailMemoryEntries)
	logging.Info("  THUMBNAIL_MEMORY_TTL:      %v", cfg.ThumbnailMemoryTTL)
	if cfg.ThumbnailWorkers > 0 {
		logging.Info("  THUMBNAIL_WORKERS:         %d", cfg.ThumbnailWorkers)
	}
	logging.Info("  LOG_STATIC_FILES:          %v", cfg.LogStaticFiles)
	logging.Info("  LOG_HEALTH_CHECKS:         %v", cfg.LogHealthChecks)
	logging.Info("  LOG_LEVEL:                 %s", logging.GetLevel())
	if cfg.LogFile.Path != "" {
		logging.Info("  LOG_FILE:                  %s", cfg.LogFile.Path)
	}

	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("DIRECTORY SETUP")
	logging.Info("------------------------------------------------------------")

	if err := cfg.PrepareDirectories(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// RedactURL hides the password of a connection URL for logging.
func RedactURL(raw string) string {
	at := strings.LastIndex(raw, "@")
	scheme := strings.Index(raw, "://")
	if at < 0 || scheme < 0 || at < scheme {
		return raw
	}
	creds := raw[scheme+3 : at]
	if user, _, ok := strings.Cut(creds, ":"); ok {
		return raw[:scheme+3] + user + ":xxxxx" + raw[at:]
	}
	return raw
}

// LogDatabaseInit logs database initialization
func LogDatabaseInit(engine string, duration time.Duration) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("DATABASE INITIALIZATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Engine: %s", engine)
	logging.Info("  [OK] Database initialized in %v", duration)
}

// LogThumbnailInit logs thumbnail cache initialization
func LogThumbnailInit(dir string, vipsAvailable bool, memoryEntries int) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("THUMBNAIL CACHE INITIALIZATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Cache directory: %s", dir)
	if memoryEntries > 0 {
		logging.Info("  Memory tier:     %d entries", memoryEntries)
	} else {
		logging.Info("  Memory tier:     DISABLED")
	}
	if vipsAvailable {
		logging.Info("  [OK] libvips available for decode-time shrink")
	} else {
		logging.Info("  libvips unavailable, using pure Go decoders")
	}
}

// LogSyncResult logs the outcome of the startup reconciliation pass
func LogSyncResult(added, deleted, failed int, duration time.Duration) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("INITIAL SYNC")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Added: %d  Deleted: %d  Failed: %d", added, deleted, failed)
	logging.Info("  [OK] Catalog synchronized in %v", duration)
}

// GetRoutes extracts all registered routes from a mux.Router
func GetRoutes(router *mux.Router) ([]RouteInfo, error) {
	var routes []RouteInfo

	err := router.Walk(func(route *mux.Route, _ *mux.Router, _ []*mux.Route) error {
		pathTemplate, err := route.GetPathTemplate()
		if err != nil {
			// PathPrefix-only routes without a template are skipped
			return nil
		}

		methods, err := route.GetMethods()
		if err != nil {
			methods = []string{"*"}
		}

		for _, method := range methods {
			routes = append(routes, RouteInfo{
				Method: method,
				Path:   pathTemplate,
				Name:   route.GetName(),
			})
		}

		return nil
	})

	return routes, err
}

// LogHTTPRoutes logs all registered HTTP routes dynamically
func LogHTTPRoutes(router *mux.Router, logStaticFiles, logHealthChecks bool) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("HTTP SERVER SETUP")
	logging.Info("------------------------------------------------------------")

	if logging.IsDebugEnabled() {
		routes, err := GetRoutes(router)
		if err != nil {
			logging.Warn("error walking routes: %v", err)
		}

		logging.Debug("  Registered routes (%d total):", len(routes))
		logging.Debug("")

		groups := make(map[string][]RouteInfo)
		for _, route := range routes {
			prefix := getRouteGroup(route.Path)
			groups[prefix] = append(groups[prefix], route)
		}

		groupKeys := make([]string, 0, len(groups))
		for k := range groups {
			groupKeys = append(groupKeys, k)
		}
		sort.Strings(groupKeys)

		for _, group := range groupKeys {
			if group != "" {
				logging.Debug("  [%s]", group)
			} else {
				logging.Debug("  [root]")
			}

			for _, route := range groups[group] {
				logging.Debug("    %-6s %s", route.Method, route.Path)
			}
			logging.Debug("")
		}
	}

	logging.Info("  HTTP logging enabled")
	if logStaticFiles {
		logging.Info("    Image/thumbnail logging: ON")
	} else {
		logging.Info("    Image/thumbnail logging: OFF (set LOG_STATIC_FILES=true to enable)")
	}
	if logHealthChecks {
		logging.Info("    Health check logging: ON")
	} else {
		logging.Info("    Health check logging: OFF (set LOG_HEALTH_CHECKS=true to enable)")
	}
}

// getRouteGroup extracts a group name from a route path
func getRouteGroup(path string) string {
	path = strings.TrimPrefix(path, "/")

	parts := strings.SplitN(path, "/", 2)
	first := parts[0]

	if first == "api" && len(parts) > 1 {
		subParts := strings.SplitN(parts[1], "/", 2)
		return "api/" + subParts[0]
	}

	return first
}

// ServerConfig holds configuration for the server startup log
type ServerConfig struct {
	Port            string
	MetricsPort     string
	MetricsEnabled  bool
	BaseURL         string
	StartupDuration time.Duration
}

// LogServerStarted logs successful server start with all endpoint information
func LogServerStarted(config ServerConfig) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("SERVER STARTED")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Startup time:    %v", config.StartupDuration)
	logging.Info("")
	logging.Info("  Endpoints:")
	logging.Info("    Application:   http://0.0.0.0:%s", config.Port)
	if config.MetricsEnabled {
		logging.Info("    Metrics:       http://0.0.0.0:%s/metrics", config.MetricsPort)
	} else {
		logging.Info("    Metrics:       DISABLED")
	}
	logging.Info("    Public links:  %s/images/", config.BaseURL)
	logging.Info("")
	logging.Info("  Press Ctrl+C to stop the server")
	logging.Info("------------------------------------------------------------")
	logging.Info("")
}

// LogShutdownInitiated logs shutdown start
func LogShutdownInitiated(signal string) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("SHUTDOWN INITIATED (received %s)", signal)
	logging.Info("------------------------------------------------------------")
}

// LogShutdownStep logs a shutdown step
func LogShutdownStep(step string) {
	logging.Debug("  %s...", step)
}

// LogShutdownStepComplete logs a completed shutdown step
func LogShutdownStepComplete(step string) {
	logging.Info("  [OK] %s", step)
}

// LogShutdownComplete logs shutdown completion
func LogShutdownComplete() {
	logging.Info("  [OK] Shutdown complete")
}

// LogFatal logs a fatal error and exits
func LogFatal(format string, args ...interface{}) {
	logging.Fatal(format, args...)
}

func printBanner() {
	banner := `
------------------------------------------------------------
        _      __               __
   ___ (_)____/ /  ___  ___ ___/ /_
  / _ \/ / __/ _ \/ _ \(_-</_  __/
 / .__/_/\__/_//_/\___/___/ /_/
/_/
------------------------------------------------------------`
	fmt.Println(banner)
	logging.Info("  Version:    %s", Version)
	logging.Info("  Commit:     %s", Commit)
	logging.Info("  Build Time: %s", BuildTime)
	logging.Info("  Started:    %s", time.Now().Format(time.RFC1123))
	logging.Info("")
}

func logSystemInfo() {
	logging.Info("------------------------------------------------------------")
	logging.Info("SYSTEM INFORMATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Go version:      %s", runtime.Version())
	logging.Info("  OS/Arch:         %s/%s", runtime.GOOS, runtime.GOARCH)
	logging.Info("  CPUs available:  %d", runtime.NumCPU())
	logging.Info("  GOMAXPROCS:      %d", runtime.GOMAXPROCS(0))

	if logging.IsDebugEnabled() {
		if wd, err := os.Getwd(); err == nil {
			logging.Debug("  Working dir:     %s", wd)
		}
		if hostname, err := os.Hostname(); err == nil {
			logging.Debug("  Hostname:        %s", hostname)
		}
	}

	logging.Info("")
}

func ensureDirectory(path, name string) error {
	logging.Debug("  Checking %s directory: %s", name, path)

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
		logging.Debug("    [OK] Created directory: %s", path)
		return nil
	}

	if err != nil {
		return fmt.Errorf("failed to stat directory: %w", err)
	}

	if !info.IsDir() {
		return fmt.Errorf("path exists but is not a directory")
	}

	return nil
}

func testWriteAccess(dir string) error {
	testFile := filepath.Join(dir, ".write-test")
	if err := os.WriteFile(testFile, []byte("test"), 0o644); err != nil {
		return err
	}
	if err := os.Remove(testFile); err != nil {
		logging.Warn("failed to remove write test file %s: %v", testFile, err)
	}
	return nil
}
