package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mattn/go-sqlite3"

	"pichost/internal/logging"
	"pichost/internal/metrics"
)

// SQLiteCatalog is the default Catalog, backed by a single SQLite file in WAL mode.
type SQLiteCatalog struct {
	db     *sql.DB
	dbPath string
	retry  retryPolicy
}

// NewSQLite opens (creating if needed) the catalog at dbPath.
// dbPath is the full path to the database FILE and its parent directory must
// already exist and be writable.
func NewSQLite(ctx context.Context, dbPath string) (*SQLiteCatalog, error) {
	logging.Info("Database path: %s", dbPath)

	if err := diagnoseDatabasePermissions(dbPath); err != nil {
		logging.Warn("Database permission diagnostics: %v", err)
	}

	// busy_timeout helps prevent "database is locked" errors
	connStr := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_cache_size=10000&_temp_store=MEMORY&_busy_timeout=5000", dbPath)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close database after ping failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(time.Hour)

	c := &SQLiteCatalog{
		db:     db,
		dbPath: dbPath,
		retry:  defaultRetryPolicy,
	}

	if err := c.initialize(ctx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close database after initialization failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}

	logging.Info("Database initialized successfully at %s", dbPath)
	return c, nil
}

func (c *SQLiteCatalog) initialize(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS files (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		filename TEXT NOT NULL UNIQUE,
		album_name TEXT NOT NULL,
		article_number TEXT NOT NULL,
		public_link TEXT NOT NULL,
		created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
	);

	CREATE INDEX IF NOT EXISTS idx_files_album_article ON files(album_name, article_number);
	CREATE INDEX IF NOT EXISTS idx_files_created_at ON files(created_at);
	`

	return c.exec(ctx, "initialize_schema", func(ctx context.Context) error {
		if _, err := c.db.ExecContext(ctx, schema); err != nil {
			return err
		}
		return c.runMigrations(ctx)
	})
}

// runMigrations applies column additions to databases created by older releases.
func (c *SQLiteCatalog) runMigrations(ctx context.Context) error {
	var publishedExists bool
	err := c.db.QueryRowContext(ctx, `
		SELECT COUNT(*) > 0
		FROM pragma_table_info('files')
		WHERE name='published'
	`).Scan(&publishedExists)
	if err != nil {
		return fmt.Errorf("failed to check for published column: %w", err)
	}

	if !publishedExists {
		logging.Info("Migrating database: adding published column to files table")

		if _, err := c.db.ExecContext(ctx, `ALTER TABLE files ADD COLUMN published INTEGER NOT NULL DEFAULT 0`); err != nil {
			return fmt.Errorf("failed to add published column: %w", err)
		}
		if _, err := c.db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_files_published ON files(published)`); err != nil {
			return fmt.Errorf("failed to index published column: %w", err)
		}

		logging.Info("Migration complete: published column added")
	}

	return nil
}

// exec runs fn under the catalog timeout with transient-error retries.
func (c *SQLiteCatalog) exec(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()
	return withRetry(ctx, op, c.retry, isSQLiteTransient, fn)
}

// isSQLiteTransient reports lock contention, which clears once the other
// writer finishes.
func isSQLiteTransient(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked
	}
	return isTransientNetError(err)
}

func isSQLiteUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

// Insert adds a row; a duplicate filename yields ErrDuplicateKey.
func (c *SQLiteCatalog) Insert(ctx context.Context, rec FileRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	err := c.exec(ctx, "insert", retriedInsert(isSQLiteUniqueViolation, func(ctx context.Context) error {
		_, err := c.db.ExecContext(ctx, `
			INSERT INTO files (filename, album_name, article_number, public_link, published, created_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			rec.Filename, rec.AlbumName, rec.ArticleNumber, rec.PublicLink, rec.Published, rec.CreatedAt.Unix(),
		)
		return err
	}))
	if isSQLiteUniqueViolation(err) {
		return fmt.Errorf("%w: %s", ErrDuplicateKey, rec.Filename)
	}
	return err
}

func (c *SQLiteCatalog) deleteWhere(ctx context.Context, op, where string, args ...any) (int64, error) {
	var n int64
	err := c.exec(ctx, op, func(ctx context.Context) error {
		result, err := c.db.ExecContext(ctx, "DELETE FROM files WHERE "+where, args...)
		if err != nil {
			return err
		}
		n, err = result.RowsAffected()
		return err
	})
	if err != nil {
		return 0, err
	}
	recordRowsAffected(op, n)
	return n, nil
}

// DeleteByFilename removes the row for one file.
func (c *SQLiteCatalog) DeleteByFilename(ctx context.Context, filename string) (int64, error) {
	return c.deleteWhere(ctx, "delete_by_filename", "filename = ?", filename)
}

// DeleteByAlbum removes every row of an album.
func (c *SQLiteCatalog) DeleteByAlbum(ctx context.Context, album string) (int64, error) {
	return c.deleteWhere(ctx, "delete_by_album", "album_name = ?", album)
}

// DeleteByAlbumArticle removes every row of one article.
func (c *SQLiteCatalog) DeleteByAlbumArticle(ctx context.Context, album, article string) (int64, error) {
	return c.deleteWhere(ctx, "delete_by_album_article", "album_name = ? AND article_number = ?", album, article)
}

// ListFilenames returns all indexed filenames.
func (c *SQLiteCatalog) ListFilenames(ctx context.Context) ([]string, error) {
	return c.queryStrings(ctx, "list_filenames", "SELECT filename FROM files ORDER BY filename")
}

// ListDistinct returns sorted distinct values of an allow-listed column.
func (c *SQLiteCatalog) ListDistinct(ctx context.Context, column Column, f Filter) ([]string, error) {
	if !column.valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidColumn, column)
	}
	where, args := whereClause(f, sqlitePlaceholder)
	query := fmt.Sprintf("SELECT DISTINCT %s FROM files%s ORDER BY %s", column, where, column)
	return c.queryStrings(ctx, "list_distinct", query, args...)
}

func (c *SQLiteCatalog) queryStrings(ctx context.Context, op, query string, args ...any) ([]string, error) {
	var out []string
	err := c.exec(ctx, op, func(ctx context.Context) error {
		out = out[:0]
		rows, err := c.db.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var s string
			if err := rows.Scan(&s); err != nil {
				return err
			}
			out = append(out, s)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Query returns rows matching f in the requested order.
func (c *SQLiteCatalog) Query(ctx context.Context, f Filter, order Order) ([]FileRecord, error) {
	where, args := whereClause(f, sqlitePlaceholder)
	query := `SELECT id, filename, album_name, article_number, public_link, published, created_at FROM files` +
		where + orderClause(order, "")

	var out []FileRecord
	err := c.exec(ctx, "query", func(ctx context.Context) error {
		out = out[:0]
		rows, err := c.db.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var rec FileRecord
			var createdAt int64
			if err := rows.Scan(&rec.ID, &rec.Filename, &rec.AlbumName, &rec.ArticleNumber,
				&rec.PublicLink, &rec.Published, &createdAt); err != nil {
				return err
			}
			rec.CreatedAt = time.Unix(createdAt, 0).UTC()
			out = append(out, rec)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// SetPublished flips the visibility flag of one file.
func (c *SQLiteCatalog) SetPublished(ctx context.Context, filename string, published bool) error {
	var n int64
	err := c.exec(ctx, "set_published", func(ctx context.Context) error {
		result, err := c.db.ExecContext(ctx, "UPDATE files SET published = ? WHERE filename = ?", published, filename)
		if err != nil {
			return err
		}
		n, err = result.RowsAffected()
		return err
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
func (c *SQLiteCatalog) Stats(ctx context.Context) (Stats, error) {
	var s Stats
	err := c.exec(ctx, "stats", func(ctx context.Context) error {
		return c.db.QueryRowContext(ctx, statsQuery).Scan(&s.TotalAlbums, &s.TotalArticles, &s.TotalFiles, &s.PublishedFiles)
	})
	metrics.DBConnectionsOpen.Set(float64(c.db.Stats().OpenConnections))
	return s, err
}

// Ping checks the database connection.
func (c *SQLiteCatalog) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

// Close closes the database connection.
func (c *SQLiteCatalog) Close() error {
	return c.db.Close()
}

func sqlitePlaceholder(int) string { return "?" }

// diagnoseDatabasePermissions checks database directory and file permissions
func diagnoseDatabasePermissions(dbPath string) error {
	dir := filepath.Dir(dbPath)

	dirInfo, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("cannot stat database directory: %w", err)
	}

	logging.Debug("Database directory: %s (mode: %v)", dir, dirInfo.Mode())

	testFile := filepath.Join(dir, ".perm-test")
	if err := os.WriteFile(testFile, []byte("test"), 0o600); err != nil {
		return fmt.Errorf("database directory not writable: %w", err)
	}
	_ = os.Remove(testFile)

	// The WAL and SHM sidecars must stay writable or every write fails.
	for _, path := range []string{dbPath, dbPath + "-wal", dbPath + "-shm"} {
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		logging.Debug("%s exists (mode: %v, size: %d bytes)", path, info.Mode(), info.Size())
		if info.Mode().Perm()&0o200 != 0 {
			continue
		}
		logging.Warn("%s is read-only! Mode: %v", path, info.Mode())
		if path == dbPath {
			continue
		}
		if chmodErr := os.Chmod(path, 0o600); chmodErr != nil {
			logging.Error("Failed to fix permissions on %s: %v", path, chmodErr)
		} else {
			logging.Info("Fixed permissions on %s", path)
		}
	}

	return nil
}
