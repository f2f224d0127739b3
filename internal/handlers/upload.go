package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"pichost/internal/albums"
	"pichost/internal/importer"
	"pichost/internal/logging"
	"pichost/internal/media"

	"github.com/gorilla/mux"
)

// UploadResponse is returned by a successful upload.
type UploadResponse struct {
	Message  string `json:"message"`
	Album    string `json:"album_name"`
	Inserted int    `json:"inserted"`
	Skipped  int    `json:"skipped"`
	Failed   int    `json:"failed"`
}

// Upload imports the multipart "zipfile" part as an album. An optional
// "name" field sent before the file overrides the album name derived from
// the file name.
//
// The file is streamed straight to the importer's staging area rather than
// buffered, so the field order matters: a "name" sent after the file is
// rejected instead of being silently dropped.
func (h *Handlers) Upload(w http.ResponseWriter, r *http.Request) {
	if h.maxUpload > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	}

	mr, err := r.MultipartReader()
	if err != nil {
		writeJSONError(w, "No file part", http.StatusBadRequest)
		return
	}

	var (
		name   string
		staged *importer.StagedUpload
	)
	discard := func() {
		if staged != nil {
			staged.Discard()
		}
	}

	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			discard()
			h.uploadReadError(w, err)
			return
		}

		switch part.FormName() {
		case "name":
			if staged != nil {
				discard()
				writeJSONError(w, "The name field must be sent before zipfile", http.StatusBadRequest)
				return
			}
			b, err := io.ReadAll(io.LimitReader(part, 1024))
			if err != nil {
				h.uploadReadError(w, err)
				return
			}
			name = strings.TrimSpace(string(b))
		case "zipfile":
			if staged != nil {
				discard()
				writeJSONError(w, "Only one zipfile may be uploaded", http.StatusBadRequest)
				return
			}
			filename := part.FileName()
			if filename == "" {
				writeJSONError(w, "No selected file", http.StatusBadRequest)
				return
			}
			staged, err = h.importer.Stage(part, filename)
			if err != nil {
				h.uploadImportError(w, err)
				return
			}
		}
	}

	if staged == nil {
		writeJSONError(w, "No file part", http.StatusBadRequest)
		return
	}

	result, err := staged.Import(r.Context(), name)
	if err != nil {
		h.uploadImportError(w, err)
		return
	}

	writeJSONStatusCode(w, UploadResponse{
		Message:  "Files uploaded successfully",
		Album:    result.Album,
		Inserted: len(result.Inserted),
		Skipped:  len(result.Skipped),
		Failed:   len(result.Failed),
	}, http.StatusOK)
}

func (h *Handlers) uploadImportError(w http.ResponseWriter, err error) {
	var maxErr *http.MaxBytesError
	switch {
	case errors.As(err, &maxErr):
		writeJSONError(w, fmt.Sprintf("Upload exceeds %d bytes", maxErr.Limit), http.StatusRequestEntityTooLarge)
	case errors.Is(err, importer.ErrInvalidUpload):
		writeJSONError(w, err.Error(), http.StatusBadRequest)
	default:
		writeJSONError(w, "Failed to process ZIP file: "+err.Error(), http.StatusInternalServerError)
	}
}

func (h *Handlers) uploadReadError(w http.ResponseWriter, err error) {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		writeJSONError(w, fmt.Sprintf("Upload exceeds %d bytes", maxErr.Limit), http.StatusRequestEntityTooLarge)
		return
	}
	logging.Warn("Malformed upload: %v", err)
	writeJSONError(w, "Malformed upload", http.StatusBadRequest)
}

// SyncResponse reports one reconciliation pass.
type SyncResponse struct {
	Message string   `json:"message"`
	Deleted []string `json:"deleted"`
	Added   []string `json:"added"`
	Failed  []string `json:"failed"`
}

// Sync runs a reconciliation pass and reports what changed.
func (h *Handlers) Sync(w http.ResponseWriter, r *http.Request) {
	result, err := h.reconciler.Reconcile(r.Context())
	if err != nil {
		writeJSONError(w, "Synchronization failed: "+err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSONStatusCode(w, SyncResponse{
		Message: "Synchronization completed successfully",
		Deleted: nonNil(result.Deleted),
		Added:   nonNil(result.Added),
		Failed:  nonNil(result.Failed),
	}, http.StatusOK)
}

// CleanupThumbnails drops every cached thumbnail of an album.
func (h *Handlers) CleanupThumbnails(w http.ResponseWriter, r *http.Request) {
	album := mux.Vars(r)["album"]

	if err := h.cache.InvalidateAlbum(album); err != nil {
		if errors.Is(err, media.ErrInvalidPath) {
			writeJSONError(w, "Invalid album name", http.StatusBadRequest)
			return
		}
		logging.Error("Error cleaning up thumbnails for %s: %v", album, err)
		writeJSONError(w, "Cleanup failed: "+err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSONMessage(w, fmt.Sprintf("Thumbnails for album %s cleaned up successfully", album))
}

// DeleteAlbum removes an album's rows, files and thumbnails.
func (h *Handlers) DeleteAlbum(w http.ResponseWriter, r *http.Request) {
	album := mux.Vars(r)["album"]

	if _, err := h.albums.DeleteAlbum(r.Context(), album); err != nil {
		h.deleteError(w, err)
		return
	}
	writeJSONMessage(w, fmt.Sprintf("Album %q deleted successfully", album))
}

// DeleteArticle removes one article and resynchronizes the catalog.
func (h *Handlers) DeleteArticle(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	album, article := vars["album"], vars["article"]

	if _, err := h.albums.DeleteArticle(r.Context(), album, article); err != nil {
		h.deleteError(w, err)
		return
	}
	writeJSONMessage(w, fmt.Sprintf("Article %q in album %q deleted successfully", article, album))
}

func (h *Handlers) deleteError(w http.ResponseWriter, err error) {
	if errors.Is(err, albums.ErrInvalidName) {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	logging.Error("Delete failed: %v", err)
	writeJSONError(w, "Delete failed: "+err.Error(), http.StatusInternalServerError)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
