package handlers

import (
	"errors"
	"mime"
	"net/http"
	"strconv"

	"pichost/internal/export"
	"pichost/internal/logging"
	"pichost/internal/mediatypes"
)

// ExportXLSX builds a spreadsheet of the public links of an album or article.
func (h *Handlers) ExportXLSX(w http.ResponseWriter, r *http.Request) {
	var req export.Request
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSONError(w, "No data provided", http.StatusBadRequest)
		return
	}

	data, err := export.Export(r.Context(), h.catalog, req)
	if err != nil {
		switch {
		case errors.Is(err, export.ErrMissingParams):
			writeJSONError(w, "Missing required parameters", http.StatusBadRequest)
		case errors.Is(err, export.ErrInvalidType):
			writeJSONError(w, "Invalid export type", http.StatusBadRequest)
		case errors.Is(err, export.ErrNoData):
			writeJSONError(w, "No data found for export", http.StatusNotFound)
		default:
			logging.Error("Export of album %s failed: %v", req.Album, err)
			writeJSONError(w, "Failed to create XLSX file: "+err.Error(), http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", mediatypes.GetMimeType(".xlsx"))
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": req.FileName()}))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	if _, err := w.Write(data); err != nil {
		logging.Debug("Export: write failed: %v", err)
	}
}
