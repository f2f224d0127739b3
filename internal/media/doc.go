// Package media implements the content-addressed thumbnail cache.
//
// Artifacts are named {base}_{W}x{H}_{hash8}.jpg, where hash8 is the first
// eight hex characters of the MD5 of the original's bytes, and are stored
// under a cache root that mirrors the upload tree. Because the name is
// derived from content, an existing artifact is always valid and is served
// without re-validation; an edited original simply gets a new artifact.
//
// Generation uses libvips when [InitVips] succeeded and falls back to the
// pure-Go imaging pipeline. Failures surface as [ErrGenerate];
// [Cache.GetOrPlaceholder] maps them to a placeholder image.
package media
