package database

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5" // pgx5:// migrate driver
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"pichost/internal/logging"
	"pichost/internal/metrics"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// PostgresCatalog stores the catalog in PostgreSQL through a pgx pool.
type PostgresCatalog struct {
	pool  *pgxpool.Pool
	retry retryPolicy
}

// NewPostgres applies pending migrations and connects to databaseURL
// (postgres:// or postgresql://).
func NewPostgres(ctx context.Context, databaseURL string) (*PostgresCatalog, error) {
	if err := MigratePostgres(databaseURL); err != nil {
		return nil, err
	}

	poolCfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	logging.Info("Connected to PostgreSQL at %s:%d/%s",
		poolCfg.ConnConfig.Host, poolCfg.ConnConfig.Port, poolCfg.ConnConfig.Database)

	return &PostgresCatalog{pool: pool, retry: defaultRetryPolicy}, nil
}

// MigratePostgres applies the embedded SQL migrations to databaseURL.
func MigratePostgres(databaseURL string) error {
	start := time.Now()

	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to open migration source: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, migrateURL(databaseURL))
	if err != nil {
		recordQuery("initialize_schema", start, err)
		return fmt.Errorf("failed to initialize migrations: %w", err)
	}
	defer func() {
		if srcErr, dbErr := m.Close(); srcErr != nil || dbErr != nil {
			logging.Debug("migration close: source=%v database=%v", srcErr, dbErr)
		}
	}()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		recordQuery("initialize_schema", start, err)
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	recordQuery("initialize_schema", start, nil)

	version, dirty, _ := m.Version()
	logging.Info("Database schema at version %d (dirty: %v)", version, dirty)
	return nil
}

// migrateURL rewrites a libpq URL to the pgx5:// scheme golang-migrate expects.
func migrateURL(databaseURL string) string {
	for _, scheme := range []string{"postgresql://", "postgres://"} {
		if rest, ok := strings.CutPrefix(databaseURL, scheme); ok {
			return "pgx5://" + rest
		}
	}
	return databaseURL
}

func (c *PostgresCatalog) exec(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()
	return withRetry(ctx, op, c.retry, isPostgresTransient, fn)
}

// isPostgresTransient reports connection-class failures: SQLSTATE class 08,
// admin shutdown, and network errors the driver says are safe to retry.
func isPostgresTransient(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return strings.HasPrefix(pgErr.Code, "08") || pgErr.Code == "57P01"
	}
	if pgconn.SafeToRetry(err) || pgconn.Timeout(err) {
		return true
	}
	return isTransientNetError(err)
}

// isUniqueViolation checks for PostgreSQL unique_violation.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func pgPlaceholder(n int) string { return fmt.Sprintf("$%d", n) }

// pgCollate makes text ordering match SQLite's bytewise BINARY collation.
const pgCollate = ` COLLATE "C"`

// Insert adds a row; a duplicate filename yields ErrDuplicateKey.
func (c *PostgresCatalog) Insert(ctx context.Context, rec FileRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	err := c.exec(ctx, "insert", retriedInsert(isUniqueViolation, func(ctx context.Context) error {
		_, err := c.pool.Exec(ctx, `
			INSERT INTO files (filename, album_name, article_number, public_link, published, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			rec.Filename, rec.AlbumName, rec.ArticleNumber, rec.PublicLink, rec.Published, rec.CreatedAt,
		)
		return err
	}))
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %s", ErrDuplicateKey, rec.Filename)
	}
	return err
}

func (c *PostgresCatalog) deleteWhere(ctx context.Context, op, where string, args ...any) (int64, error) {
	var n int64
	err := c.exec(ctx, op, func(ctx context.Context) error {
		tag, err := c.pool.Exec(ctx, "DELETE FROM files WHERE "+where, args...)
		if err != nil {
			return err
		}
		n = tag.RowsAffected()
		return nil
	})
	if err != nil {
		return 0, err
	}
	recordRowsAffected(op, n)
	return n, nil
}

// DeleteByFilename removes the row for one file.
func (c *PostgresCatalog) DeleteByFilename(ctx context.Context, filename string) (int64, error) {
	return c.deleteWhere(ctx, "delete_by_filename", "filename = $1", filename)
}

// DeleteByAlbum removes every row of an album.
func (c *PostgresCatalog) DeleteByAlbum(ctx context.Context, album string) (int64, error) {
	return c.deleteWhere(ctx, "delete_by_album", "album_name = $1", album)
}

// DeleteByAlbumArticle removes every row of one article.
func (c *PostgresCatalog) DeleteByAlbumArticle(ctx context.Context, album, article string) (int64, error) {
	return c.deleteWhere(ctx, "delete_by_album_article", "album_name = $1 AND article_number = $2", album, article)
}

// ListFilenames returns all indexed filenames.
func (c *PostgresCatalog) ListFilenames(ctx context.Context) ([]string, error) {
	return c.queryStrings(ctx, "list_filenames", "SELECT filename FROM files ORDER BY filename"+pgCollate)
}

// ListDistinct returns sorted distinct values of an allow-listed column.
func (c *PostgresCatalog) ListDistinct(ctx context.Context, column Column, f Filter) ([]string, error) {
	if !column.valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidColumn, column)
	}
	where, args := whereClause(f, pgPlaceholder)
	query := fmt.Sprintf("SELECT DISTINCT %s FROM files%s ORDER BY %s%s", column, where, column, pgCollate)
	return c.queryStrings(ctx, "list_distinct", query, args...)
}

func (c *PostgresCatalog) queryStrings(ctx context.Context, op, query string, args ...any) ([]string, error) {
	var out []string
	err := c.exec(ctx, op, func(ctx context.Context) error {
		rows, err := c.pool.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		out, err = pgx.CollectRows(rows, pgx.RowTo[string])
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Query returns rows matching f in the requested order.
func (c *PostgresCatalog) Query(ctx context.Context, f Filter, order Order) ([]FileRecord, error) {
	where, args := whereClause(f, pgPlaceholder)
	query := `SELECT id, filename, album_name, article_number, public_link, published, created_at FROM files` +
		where + orderClause(order, pgCollate)

	var out []FileRecord
	err := c.exec(ctx, "query", func(ctx context.Context) error {
		rows, err := c.pool.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		out, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (FileRecord, error) {
			var rec FileRecord
			err := row.Scan(&rec.ID, &rec.Filename, &rec.AlbumName, &rec.ArticleNumber,
				&rec.PublicLink, &rec.Published, &rec.CreatedAt)
			rec.CreatedAt = rec.CreatedAt.UTC()
			return rec, err
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// SetPublished flips the visibility flag of one file.
func (c *PostgresCatalog) SetPublished(ctx context.Context, filename string, published bool) error {
	var n int64
	err := c.exec(ctx, "set_published", func(ctx context.Context) error {
		tag, err := c.pool.Exec(ctx, "UPDATE files SET published = $1 WHERE filename = $2", published, filename)
		if err != nil {
			return err
		}
		n = tag.RowsAffected()
		return nil
	})
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, filename)
	}
	return nil
}

// Stats returns catalog totals and refreshes the connection gauge.
func (c *PostgresCatalog) Stats(ctx context.Context) (Stats, error) {
	var s Stats
	err := c.exec(ctx, "stats", func(ctx context.Context) error {
		return c.pool.QueryRow(ctx, statsQuery).Scan(&s.TotalAlbums, &s.TotalArticles, &s.TotalFiles, &s.PublishedFiles)
	})
	metrics.DBConnectionsOpen.Set(float64(c.pool.Stat().TotalConns()))
	return s, err
}

// Ping checks the database connection.
func (c *PostgresCatalog) Ping(ctx context.Context) error {
	return c.pool.Ping(ctx)
}

// Close releases the connection pool.
func (c *PostgresCatalog) Close() error {
	c.pool.Close()
	return nil
}
