// Package main provides the entry point for the pichost image server.
//
// pichost stores product photos uploaded as ZIP archives, one archive per
// album and one top-level folder per article, and serves them under stable
// public links together with cached thumbnails.
//
// # Application Lifecycle
//
//  1. Configuration Loading: defaults, optional YAML file, .env files and
//     environment variables; upload, cache and database directories are
//     created and checked for write access; GOMEMLIMIT is derived from the
//     container memory limit
//  2. Catalog Initialization: SQLite (default) or PostgreSQL when
//     DATABASE_URL is a postgres:// URL, with schema migrations applied
//  3. Thumbnail Cache: libvips when available, pure Go decoders otherwise
//  4. Initial Synchronization: one reconciliation pass between the upload
//     tree and the catalog (SYNC_ON_STARTUP)
//  5. HTTP Server Setup: routes, request IDs, access logging, metrics and
//     compression middleware
//  6. Graceful Shutdown on SIGINT/SIGTERM
//
// # HTTP Server
//
// The application runs two HTTP servers:
//
//  1. Main Server (default port 8080): uploads, catalog API, thumbnails,
//     original images and XLSX export
//  2. Metrics Server (default port 9090, optional): Prometheus metrics at
//     /metrics and a liveness probe at /health
//
// Operator tasks such as offline imports, deletions and catalog migration
// are provided by cmd/pichostctl.
package main
