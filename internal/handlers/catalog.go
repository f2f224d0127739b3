package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"pichost/internal/database"
	"pichost/internal/filesystem"
	"pichost/internal/logging"
	"pichost/internal/scanner"

	"github.com/gorilla/mux"
)

// ListAlbums returns every album name, sorted.
func (h *Handlers) ListAlbums(w http.ResponseWriter, r *http.Request) {
	h.listDistinct(w, r, database.ColumnAlbum, database.Filter{})
}

// ListArticles returns the article names of one album, sorted.
func (h *Handlers) ListArticles(w http.ResponseWriter, r *http.Request) {
	h.listDistinct(w, r, database.ColumnArticle, database.Filter{Album: mux.Vars(r)["album"]})
}

func (h *Handlers) listDistinct(w http.ResponseWriter, r *http.Request, column database.Column, f database.Filter) {
	values, err := h.catalog.ListDistinct(r.Context(), column, f)
	if err != nil {
		logging.Error("Failed to list %s: %v", column, err)
		writeJSONError(w, "Failed to list "+string(column), http.StatusInternalServerError)
		return
	}
	writeJSONStatusCode(w, nonNil(values), http.StatusOK)
}

// filterFromRequest reads the album and article route variables and the
// optional published query parameter.
func filterFromRequest(r *http.Request) (database.Filter, error) {
	vars := mux.Vars(r)
	f := database.Filter{Album: vars["album"], Article: vars["article"]}

	if v := r.URL.Query().Get("published"); v != "" {
		published, err := strconv.ParseBool(v)
		if err != nil {
			return f, errors.New("published must be true or false")
		}
		f.Published = &published
	}
	return f, nil
}

// ListFiles returns the rows of the whole catalog, an album or an article,
// newest first.
func (h *Handlers) ListFiles(w http.ResponseWriter, r *http.Request) {
	f, err := filterFromRequest(r)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	rows, err := h.catalog.Query(r.Context(), f, database.OrderCreatedDesc)
	if err != nil {
		logging.Error("Failed to query files: %v", err)
		writeJSONError(w, "Failed to list files", http.StatusInternalServerError)
		return
	}
	if rows == nil {
		rows = []database.FileRecord{}
	}
	writeJSONStatusCode(w, rows, http.StatusOK)
}

// ThumbnailEntry is a catalog row with the URLs a gallery view needs.
type ThumbnailEntry struct {
	Filename      string    `json:"filename"`
	AlbumName     string    `json:"album_name"`
	ArticleNumber string    `json:"article_number"`
	PublicLink    string    `json:"public_link"`
	Published     bool      `json:"published"`
	CreatedAt     time.Time `json:"created_at"`
	ThumbnailURL  string    `json:"thumbnail_url"`
	PreviewURL    string    `json:"preview_url"`
	FileSize      int64     `json:"file_size"`
}

// ListThumbnails returns the rows of an album or article with thumbnail
// and preview URLs and the original's size (0 when it is missing).
func (h *Handlers) ListThumbnails(w http.ResponseWriter, r *http.Request) {
	f, err := filterFromRequest(r)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	rows, err := h.catalog.Query(r.Context(), f, database.OrderCreatedDesc)
	if err != nil {
		logging.Error("Error in thumbnails listing: %v", err)
		writeJSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	retryConfig := filesystem.DefaultRetryConfig()
	entries := make([]ThumbnailEntry, 0, len(rows))
	for _, row := range rows {
		escaped := scanner.EscapePath(row.Filename)
		entry := ThumbnailEntry{
			Filename:      row.Filename,
			AlbumName:     row.AlbumName,
			ArticleNumber: row.ArticleNumber,
			PublicLink:    row.PublicLink,
			Published:     row.Published,
			CreatedAt:     row.CreatedAt,
			ThumbnailURL:  "/thumbnails/small/" + escaped,
			PreviewURL:    "/thumbnails/medium/" + escaped,
		}
		if p, err := resolveUploadPath(h.uploadDir, row.Filename); err == nil {
			if info, err := filesystem.StatWithRetry(p, retryConfig); err == nil {
				entry.FileSize = info.Size()
			}
		}
		entries = append(entries, entry)
	}
	writeJSONStatusCode(w, entries, http.StatusOK)
}

// PublishRequest sets the visibility of one file.
type PublishRequest struct {
	Filename  string `json:"filename"`
	Published *bool  `json:"published"`
}

// SetPublished updates the published flag of one file.
func (h *Handlers) SetPublished(w http.ResponseWriter, r *http.Request) {
	var req PublishRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Filename == "" || req.Published == nil {
		writeJSONError(w, "filename and published are required", http.StatusBadRequest)
		return
	}

	if err := h.catalog.SetPublished(r.Context(), req.Filename, *req.Published); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			writeJSONError(w, "File not found", http.StatusNotFound)
			return
		}
		logging.Error("Failed to update %s: %v", req.Filename, err)
		writeJSONError(w, "Failed to update file", http.StatusInternalServerError)
		return
	}

	writeJSONStatusCode(w, map[string]interface{}{
		"filename":  req.Filename,
		"published": *req.Published,
	}, http.StatusOK)
}
