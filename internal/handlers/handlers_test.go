package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"pichost/internal/albums"
	"pichost/internal/database"
	"pichost/internal/importer"
	"pichost/internal/indexer"
	"pichost/internal/media"
	"pichost/internal/startup"
	"pichost/internal/writelock"

	"github.com/gorilla/mux"
	"github.com/klauspost/compress/zip"
)

const testBaseURL = "https://pics.example.com"

type testEnv struct {
	h       *Handlers
	catalog *database.SQLiteCatalog
	cache   *media.Cache
	root    string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	root := filepath.Join(dir, "images")
	if err := os.MkdirAll(root, 0o755); err != nil {
		t.Fatal(err)
	}

	catalog, err := database.NewSQLite(context.Background(), filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("NewSQLite() error = %v", err)
	}
	t.Cleanup(func() { _ = catalog.Close() })

	cache, err := media.NewCache(media.Options{OriginalsDir: root, CacheDir: filepath.Join(dir, "thumbnails")})
	if err != nil {
		t.Fatalf("NewCache() error = %v", err)
	}

	locks := writelock.New()
	rec := indexer.New(catalog, cache, locks, root, testBaseURL)
	imp := importer.New(catalog, cache, locks, root, testBaseURL)
	mgr := albums.NewManager(catalog, cache, rec, locks, root)

	config := &startup.Config{UploadDir: root, MaxUploadBytes: 1 << 20}
	return &testEnv{
		h:       New(catalog, rec, imp, cache, mgr, config),
		catalog: catalog,
		cache:   cache,
		root:    root,
	}
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// put writes data under the upload root.
func (e *testEnv) put(t *testing.T, rel string, data []byte) {
	t.Helper()
	p := filepath.Join(e.root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, data, 0o644); err != nil {
		t.Fatal(err)
	}
}

// index writes a file and its catalog row.
func (e *testEnv) index(t *testing.T, album, article, name string, data []byte) {
	t.Helper()
	rel := album + "/" + article + "/" + name
	e.put(t, rel, data)
	err := e.catalog.Insert(context.Background(), database.FileRecord{
		Filename: rel, AlbumName: album, ArticleNumber: article, PublicLink: testBaseURL + "/images/" + rel,
	})
	if err != nil {
		t.Fatalf("Insert(%s) error = %v", rel, err)
	}
}

func serve(handler http.HandlerFunc, r *http.Request, vars map[string]string) *httptest.ResponseRecorder {
	if vars != nil {
		r = mux.SetURLVars(r, vars)
	}
	rec := httptest.NewRecorder()
	handler(rec, r)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func errorMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	return decode[map[string]string](t, rec)["error"]
}

func zipArchive(t *testing.T, files map[string][]byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, data := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write(data); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

type formField struct {
	name, filename string
	data           []byte
}

func multipartRequest(t *testing.T, fields ...formField) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for _, f := range fields {
		var w interface{ Write([]byte) (int, error) }
		var err error
		if f.filename != "" {
			w, err = mw.CreateFormFile(f.name, f.filename)
		} else {
			w, err = mw.CreateFormField(f.name)
		}
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write(f.data); err != nil {
			t.Fatal(err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}

	r := httptest.NewRequest(http.MethodPost, "/upload", &body)
	r.Header.Set("Content-Type", mw.FormDataContentType())
	return r
}
