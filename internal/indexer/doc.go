// Package indexer keeps the catalog in step with the upload tree.
//
// A [Reconciler] pass loads every indexed filename, scans the upload root,
// deletes rows (and cached thumbnails) of files that disappeared and inserts
// rows for files that appeared. Passes are idempotent: a second pass with no
// filesystem change in between does nothing. They are not atomic, but each
// row is individually correct, so an interrupted pass is finished by the
// next one.
//
// Hidden files and directories (prefixed with '.') are excluded, which keeps
// in-flight uploads in the staging area out of the catalog.
package indexer
