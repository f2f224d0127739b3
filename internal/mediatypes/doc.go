// Package mediatypes holds the allowed image extension set and MIME mappings
// shared by the scanner, importer and thumbnail cache.
//
// It has no dependencies beyond the standard library so any package can
// import it without creating cycles.
//
// # Allowed Images
//
// Only files whose extension (case-insensitive) is one of jpg, jpeg, png,
// gif, bmp, webp, tiff or svg are indexed:
//
//	if mediatypes.IsAllowedImage(name) {
//	    // index it
//	}
//
// SVG files are indexed and served as originals, but [ImageFormat.IsRasterizable]
// reports false for them, so thumbnail requests fall back to the placeholder.
//
// # MIME Types
//
// Use GetMimeType to get the content type for HTTP responses:
//
//	mimeType := mediatypes.GetMimeType("photo.JPG") // "image/jpeg"
package mediatypes
