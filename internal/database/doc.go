// Package database implements the catalog: one row per indexed image,
// keyed by its path relative to the upload root.
//
// Two engines implement [Catalog]:
//
//   - [SQLiteCatalog]: a single file in WAL mode, schema created inline at
//     startup. This is the default.
//   - [PostgresCatalog]: a pgx connection pool, schema managed by
//     golang-migrate from the SQL files embedded under migrations/.
//
// [Open] picks the engine from the DATABASE_URL scheme.
//
// Inserts are unique on filename and fail with [ErrDuplicateKey]; callers
// that need replace semantics delete first. Transient failures (lock
// contention, dropped connections, timeouts) are retried up to three times
// with exponential backoff from 50ms. Every operation is recorded in the
// pichost_db_* Prometheus metrics.
package database
