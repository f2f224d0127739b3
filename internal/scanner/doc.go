// Package scanner walks the upload tree and derives the catalog metadata
// (album, article, public link) for every image it finds.
//
// The on-disk layout is uploadRoot/{album}/{article}/{file}. A file placed
// directly in an album folder uses its own base name as the article.
// Scanning is read-only and independent of the catalog, so its output can be
// diffed against the catalog by the indexer.
package scanner
