package handlers

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
)

func TestExportXLSX(t *testing.T) {
	env := newTestEnv(t)
	env.index(t, "Shoes", "A1", "shoe_2.png", []byte("x"))
	env.index(t, "Shoes", "A1", "shoe_10.png", []byte("x"))
	env.index(t, "Shoes", "A1", "shoe_1.png", []byte("x"))

	tests := []struct {
		name     string
		body     string
		wantCode int
	}{
		{"in row", `{"album_name":"Shoes","export_type":"in_row"}`, http.StatusOK},
		{"in cell for article", `{"album_name":"Shoes","article_name":"A1","export_type":"in_cell","separator":"; "}`, http.StatusOK},
		{"missing type", `{"album_name":"Shoes"}`, http.StatusBadRequest},
		{"unknown type", `{"album_name":"Shoes","export_type":"diagonal"}`, http.StatusBadRequest},
		{"no rows", `{"album_name":"Hats","export_type":"in_row"}`, http.StatusNotFound},
		{"no body", ``, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/api/export-xlsx", strings.NewReader(tt.body))
			rec := serve(env.h.ExportXLSX, r, nil)
			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.wantCode, rec.Body.String())
			}
		})
	}
}

func TestExportXLSXContent(t *testing.T) {
	env := newTestEnv(t)
	env.index(t, "Shoes", "A1", "shoe_2.png", []byte("x"))
	env.index(t, "Shoes", "A1", "shoe_10.png", []byte("x"))
	env.index(t, "Shoes", "A1", "shoe_1.png", []byte("x"))

	body := `{"album_name":"Shoes","article_name":"A1","export_type":"in_row"}`
	rec := serve(env.h.ExportXLSX, httptest.NewRequest(http.MethodPost, "/api/export-xlsx", strings.NewReader(body)), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	if got := rec.Header().Get("Content-Disposition"); got != `attachment; filename=links_Shoes_A1.xlsx` {
		t.Errorf("Content-Disposition = %q", got)
	}

	f, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	if err != nil {
		t.Fatalf("OpenReader() error = %v", err)
	}
	defer func() { _ = f.Close() }()

	rows, err := f.GetRows(f.GetSheetName(0))
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %v", rows)
	}
	want := []string{"A1",
		testBaseURL + "/images/Shoes/A1/shoe_1.png",
		testBaseURL + "/images/Shoes/A1/shoe_2.png",
		testBaseURL + "/images/Shoes/A1/shoe_10.png",
	}
	for i, v := range want {
		if rows[1][i] != v {
			t.Errorf("cell %d = %q, want %q", i, rows[1][i], v)
		}
	}
}
