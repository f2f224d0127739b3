package indexer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"sync"
	"testing"

	"pichost/internal/database"
	"pichost/internal/writelock"
)

type recordingInvalidator struct {
	mu    sync.Mutex
	paths []string
	err   error
}

func (r *recordingInvalidator) InvalidateFile(rel string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paths = append(r.paths, rel)
	return r.err
}

func newTestCatalog(t *testing.T) *database.SQLiteCatalog {
	t.Helper()
	c, err := database.NewSQLite(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLite() error = %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func touch(t *testing.T, root string, rels ...string) {
	t.Helper()
	for _, rel := range rels {
		p := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func filenames(t *testing.T, c database.Catalog) []string {
	t.Helper()
	names, err := c.ListFilenames(context.Background())
	if err != nil {
		t.Fatalf("ListFilenames() error = %v", err)
	}
	sort.Strings(names)
	return names
}

func TestReconcileConverges(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	catalog := newTestCatalog(t)
	inv := &recordingInvalidator{}
	r := New(catalog, inv, writelock.New(), root, "http://example.com")

	// Stale row for a file that is not on disk, and one row that is.
	for _, name := range []string{"Old/X/gone.jpg", "Shoes/A1/1.jpg"} {
		if err := catalog.Insert(ctx, database.FileRecord{Filename: name, AlbumName: "a", ArticleNumber: "b", PublicLink: "l"}); err != nil {
			t.Fatal(err)
		}
	}
	touch(t, root, "Shoes/A1/1.jpg", "Shoes/A1/2.png", "Shoes/cover.jpg", "Shoes/A1/readme.txt")

	result, err := r.Reconcile(ctx)
	if err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}

	if want := []string{"Old/X/gone.jpg"}; !reflect.DeepEqual(result.Deleted, want) {
		t.Errorf("Deleted = %v, want %v", result.Deleted, want)
	}
	if want := []string{"Shoes/A1/2.png", "Shoes/cover.jpg"}; !reflect.DeepEqual(result.Added, want) {
		t.Errorf("Added = %v, want %v", result.Added, want)
	}
	if len(result.Failed) != 0 {
		t.Errorf("Failed = %v, want none", result.Failed)
	}
	if want := []string{"Old/X/gone.jpg"}; !reflect.DeepEqual(inv.paths, want) {
		t.Errorf("invalidated = %v, want %v", inv.paths, want)
	}

	if got, want := filenames(t, catalog), []string{"Shoes/A1/1.jpg", "Shoes/A1/2.png", "Shoes/cover.jpg"}; !reflect.DeepEqual(got, want) {
		t.Errorf("catalog = %v, want %v", got, want)
	}

	rows, err := catalog.Query(ctx, database.Filter{Album: "Shoes", Article: "cover"}, database.OrderCreatedDesc)
	if err != nil || len(rows) != 1 {
		t.Fatalf("Query(cover) = %v, %v", rows, err)
	}
	if rows[0].PublicLink != "http://example.com/images/Shoes/cover.jpg" {
		t.Errorf("PublicLink = %q", rows[0].PublicLink)
	}
	if rows[0].Published {
		t.Error("new rows should not be published")
	}

	// Second pass with no change is a no-op.
	again, err := r.Reconcile(ctx)
	if err != nil {
		t.Fatalf("second Reconcile() error = %v", err)
	}
	if len(again.Added) != 0 || len(again.Deleted) != 0 || len(again.Failed) != 0 {
		t.Errorf("second pass changed things: %+v", again)
	}
}

func TestReconcileKeepsGoingWhenInvalidationFails(t *testing.T) {
	ctx := context.Background()
	catalog := newTestCatalog(t)
	inv := &recordingInvalidator{err: errors.New("disk full")}
	r := New(catalog, inv, nil, t.TempDir(), "http://x")

	if err := catalog.Insert(ctx, database.FileRecord{Filename: "A/B/1.jpg", AlbumName: "A", ArticleNumber: "B"}); err != nil {
		t.Fatal(err)
	}

	result, err := r.Reconcile(ctx)
	if err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}
	if len(result.Deleted) != 1 {
		t.Errorf("Deleted = %v, want the row removed despite the cache error", result.Deleted)
	}
}

// flakyStore fails writes for selected paths.
type flakyStore struct {
	database.Catalog
	failInsert map[string]bool
	failDelete map[string]bool
}

func (s *flakyStore) Insert(ctx context.Context, rec database.FileRecord) error {
	if s.failInsert[rec.Filename] {
		return errors.New("insert failed")
	}
	return s.Catalog.Insert(ctx, rec)
}

func (s *flakyStore) DeleteByFilename(ctx context.Context, name string) (int64, error) {
	if s.failDelete[name] {
		return 0, errors.New("delete failed")
	}
	return s.Catalog.DeleteByFilename(ctx, name)
}

func TestReconcileSkipsFailedRows(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	catalog := newTestCatalog(t)
	store := &flakyStore{
		Catalog:    catalog,
		failInsert: map[string]bool{"A/B/bad.jpg": true},
		failDelete: map[string]bool{"A/B/stuck.jpg": true},
	}
	inv := &recordingInvalidator{}
	r := New(store, inv, nil, root, "http://x")

	for _, name := range []string{"A/B/stuck.jpg", "A/B/old.jpg"} {
		if err := catalog.Insert(ctx, database.FileRecord{Filename: name, AlbumName: "A", ArticleNumber: "B"}); err != nil {
			t.Fatal(err)
		}
	}
	touch(t, root, "A/B/bad.jpg", "A/B/good.jpg")

	result, err := r.Reconcile(ctx)
	if err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}

	if want := []string{"A/B/old.jpg"}; !reflect.DeepEqual(result.Deleted, want) {
		t.Errorf("Deleted = %v, want %v", result.Deleted, want)
	}
	if want := []string{"A/B/good.jpg"}; !reflect.DeepEqual(result.Added, want) {
		t.Errorf("Added = %v, want %v", result.Added, want)
	}
	if want := []string{"A/B/stuck.jpg", "A/B/bad.jpg"}; !reflect.DeepEqual(result.Failed, want) {
		t.Errorf("Failed = %v, want %v", result.Failed, want)
	}
	// Cache invalidation is attempted even for the row whose delete failed.
	if want := []string{"A/B/old.jpg", "A/B/stuck.jpg"}; !reflect.DeepEqual(inv.paths, want) {
		t.Errorf("invalidated = %v, want %v", inv.paths, want)
	}
}

func TestReconcileMissingRootAborts(t *testing.T) {
	ctx := context.Background()
	catalog := newTestCatalog(t)
	if err := catalog.Insert(ctx, database.FileRecord{Filename: "A/B/1.jpg", AlbumName: "A", ArticleNumber: "B"}); err != nil {
		t.Fatal(err)
	}

	r := New(catalog, nil, nil, filepath.Join(t.TempDir(), "missing"), "http://x")
	if _, err := r.Reconcile(ctx); err == nil {
		t.Fatal("Reconcile() with a missing root should fail")
	}

	// Nothing is deleted when the scan could not run.
	if got := filenames(t, catalog); len(got) != 1 {
		t.Errorf("catalog = %v, want the row kept", got)
	}
	if status := r.GetHealthStatus(); status.LastError == "" || status.Syncing {
		t.Errorf("health status = %+v", status)
	}
}

func TestReconcileConcurrentCallsSerialize(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	catalog := newTestCatalog(t)
	r := New(catalog, nil, writelock.New(), root, "http://x")
	touch(t, root, "A/B/1.jpg", "A/B/2.jpg", "A/C/3.jpg")

	var wg sync.WaitGroup
	results := make([]Result, 4)
	errs := make([]error, 4)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = r.Reconcile(ctx)
		}(i)
	}
	wg.Wait()

	added := 0
	for i := range results {
		if errs[i] != nil {
			t.Fatalf("Reconcile() error = %v", errs[i])
		}
		added += len(results[i].Added)
		if len(results[i].Failed) != 0 {
			t.Errorf("pass %d failed rows: %v", i, results[i].Failed)
		}
	}
	if added != 3 {
		t.Errorf("total added across passes = %d, want 3", added)
	}
	if r.IsRunning() {
		t.Error("IsRunning() after all passes returned")
	}

	status := r.GetHealthStatus()
	if status.LastSync.IsZero() || status.LastError != "" {
		t.Errorf("health status = %+v", status)
	}
}
