package cli

import (
	"context"
	"fmt"

	"pichost/internal/albums"
	"pichost/internal/database"
	"pichost/internal/importer"
	"pichost/internal/indexer"
	"pichost/internal/logging"
	"pichost/internal/media"
	"pichost/internal/startup"
	"pichost/internal/writelock"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// VersionInfo is stamped into the binary at build time.
type VersionInfo struct {
	Version string
	Commit  string
}

// app holds the components a command works on. They are opened on first
// use, so commands such as version and migrate run without a configuration.
type app struct {
	configPath string

	cfg        *startup.Config
	catalog    database.Catalog
	cache      *media.Cache
	reconciler *indexer.Reconciler
	importer   *importer.Importer
	albums     *albums.Manager
}

func (a *app) open(ctx context.Context) error {
	if a.catalog != nil {
		return nil
	}

	cfg, err := startup.ReadConfig(a.configPath)
	if err != nil {
		return err
	}
	if err := cfg.PrepareDirectories(); err != nil {
		return err
	}

	catalog, err := database.Open(ctx, database.Options{URL: cfg.DatabaseURL, SQLitePath: cfg.DatabasePath})
	if err != nil {
		return fmt.Errorf("failed to open catalog: %w", err)
	}

	cache, err := media.NewCache(media.Options{OriginalsDir: cfg.UploadDir, CacheDir: cfg.ThumbnailDir})
	if err != nil {
		_ = catalog.Close()
		return err
	}

	locks := writelock.New()
	a.cfg = cfg
	a.catalog = catalog
	a.cache = cache
	a.reconciler = indexer.New(catalog, cache, locks, cfg.UploadDir, cfg.BaseURL)
	a.importer = importer.New(catalog, cache, locks, cfg.UploadDir, cfg.BaseURL)
	a.albums = albums.NewManager(catalog, cache, a.reconciler, locks, cfg.UploadDir)
	return nil
}

func (a *app) close() {
	if a.catalog == nil {
		return
	}
	if err := a.catalog.Close(); err != nil {
		logging.Warn("failed to close catalog: %v", err)
	}
	a.catalog = nil
}

// NewRootCommand builds the pichostctl command tree.
func NewRootCommand(info VersionInfo) *cobra.Command {
	a := &app{}
	v := viper.New()

	cmd := &cobra.Command{
		Use:           "pichostctl",
		Short:         "pichost maintenance tool",
		Long:          "Run synchronization, imports, deletions, exports and catalog migrations against a pichost installation.",
		SilenceErrors: true,
		SilenceUsage:  true,

		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			name := v.GetString("log.level")
			lvl, ok := logging.ParseLevel(name)
			if !ok {
				return fmt.Errorf("invalid log level %q", name)
			}
			logging.SetLevel(lvl)
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&a.configPath, "config", "", "config file (default is $PICHOST_CONFIG or ./config.yaml)")
	cmd.PersistentFlags().String("log-level", "warn", "log level (debug, info, warn, error)")
	_ = v.BindPFlag("log.level", cmd.PersistentFlags().Lookup("log-level"))

	cmd.Version = fmt.Sprintf("%s.%s", info.Version, info.Commit)

	cmd.AddCommand(
		NewVersionCommand(),
		newSyncCommand(a),
		newImportCommand(a),
		newDeleteAlbumCommand(a),
		newDeleteArticleCommand(a),
		newExportCommand(a),
		newThumbnailsCommand(a),
		newMigrateCommand(),
	)
	return cmd
}
