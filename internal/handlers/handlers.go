package handlers

import (
	"pichost/internal/albums"
	"pichost/internal/database"
	"pichost/internal/importer"
	"pichost/internal/indexer"
	"pichost/internal/media"
	"pichost/internal/startup"
)

// Handlers holds the dependencies of every HTTP handler.
type Handlers struct {
	catalog    database.Catalog
	reconciler *indexer.Reconciler
	importer   *importer.Importer
	cache      *media.Cache
	albums     *albums.Manager
	uploadDir  string
	maxUpload  int64
}

// New creates the handler set. A zero MaxUploadBytes leaves uploads unbounded.
func New(catalog database.Catalog, rec *indexer.Reconciler, imp *importer.Importer, cache *media.Cache, mgr *albums.Manager, config *startup.Config) *Handlers {
	return &Handlers{
		catalog:    catalog,
		reconciler: rec,
		importer:   imp,
		cache:      cache,
		albums:     mgr,
		uploadDir:  config.UploadDir,
		maxUpload:  config.MaxUploadBytes,
	}
}
