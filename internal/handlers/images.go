package handlers

import (
	"errors"
	"io/fs"
	"net/http"

	"pichost/internal/filesystem"
	"pichost/internal/logging"
	"pichost/internal/media"
	"pichost/internal/mediatypes"

	"github.com/gorilla/mux"
)

// ServeThumbnail serves the cached thumbnail of an original, generating it
// on a miss. A missing original is 404; an original that cannot be
// thumbnailed gets the placeholder image.
func (h *Handlers) ServeThumbnail(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	size, ok := media.ParseSize(vars["size"])
	if !ok {
		writeJSONError(w, "Unknown thumbnail size", http.StatusNotFound)
		return
	}

	rel := vars["path"]
	if _, err := resolveUploadPath(h.uploadDir, rel); err != nil {
		writeJSONError(w, "Invalid path", http.StatusBadRequest)
		return
	}

	data, contentType, err := h.cache.GetOrPlaceholder(r.Context(), rel, size)
	if err != nil {
		switch {
		case errors.Is(err, media.ErrNotFound):
			writeJSONError(w, "File not found", http.StatusNotFound)
		case errors.Is(err, media.ErrInvalidPath):
			writeJSONError(w, "Invalid path", http.StatusBadRequest)
		default:
			logging.Error("Thumbnail: failed for %s: %v", rel, err)
			writeJSONError(w, "Failed to load thumbnail", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", contentType)
	if contentType == "image/jpeg" {
		w.Header().Set("Cache-Control", "public, max-age=86400")
	} else {
		w.Header().Set("Cache-Control", "no-cache")
	}
	if _, err := w.Write(data); err != nil {
		logging.Debug("Thumbnail: write failed for %s: %v", rel, err)
	}
}

// ServeImage serves an original image from the upload tree.
func (h *Handlers) ServeImage(w http.ResponseWriter, r *http.Request) {
	rel := mux.Vars(r)["path"]

	fullPath, err := resolveUploadPath(h.uploadDir, rel)
	if err != nil {
		writeJSONError(w, "Invalid path", http.StatusBadRequest)
		return
	}
	if !mediatypes.IsAllowedImage(rel) {
		writeJSONError(w, "File not found", http.StatusNotFound)
		return
	}

	retryConfig := filesystem.DefaultRetryConfig()
	f, err := filesystem.OpenWithRetry(fullPath, retryConfig)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			writeJSONError(w, "File not found", http.StatusNotFound)
			return
		}
		logging.Error("Failed to open %s: %v", fullPath, err)
		writeJSONError(w, "Failed to access file", http.StatusInternalServerError)
		return
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil || !info.Mode().IsRegular() {
		writeJSONError(w, "File not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", mediatypes.GetMimeType(rel))
	w.Header().Set("Cache-Control", "public, max-age=86400")
	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
}
