package database

import (
	"context"
	"strings"
)

// Engine names reported by Open.
const (
	EngineSQLite   = "sqlite"
	EnginePostgres = "postgres"
)

// Options selects and locates the catalog engine.
type Options struct {
	// URL selects PostgreSQL when it has a postgres:// or postgresql:// scheme.
	URL string
	// SQLitePath is the database file used otherwise.
	SQLitePath string
}

// Engine returns the engine Options resolves to.
func (o Options) Engine() string {
	if strings.HasPrefix(o.URL, "postgres://") || strings.HasPrefix(o.URL, "postgresql://") {
		return EnginePostgres
	}
	return EngineSQLite
}

// Open returns the Catalog described by opts.
func Open(ctx context.Context, opts Options) (Catalog, error) {
	if opts.Engine() == EnginePostgres {
		return NewPostgres(ctx, opts.URL)
	}
	return NewSQLite(ctx, opts.SQLitePath)
}
