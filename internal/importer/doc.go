// Package importer turns an uploaded ZIP archive into an album.
//
// The album is named after the archive (sanitized). Each first-level folder
// of the archive becomes an article, and each allowed image directly inside
// an article folder becomes a catalog row. Importing an album that already
// exists replaces it entirely: its directory, its cached thumbnails and its
// rows.
//
// Every archive member is validated before anything is written; absolute
// paths, ".." components and symbolic links reject the archive with
// [ErrUnsafeArchiveEntry].
package importer
