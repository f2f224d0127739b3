package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"pichost/internal/database"
	"pichost/internal/logging"
	"pichost/internal/mediatypes"
	"pichost/internal/metrics"
	"pichost/internal/sanitize"
	"pichost/internal/scanner"
	"pichost/internal/writelock"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zip"
)

// Import failures. The uploaded archive is left in place for all of them.
var (
	// ErrInvalidUpload is returned for an empty upload or file name.
	ErrInvalidUpload = errors.New("invalid upload")
	// ErrArchiveCorrupt is returned when the archive cannot be opened.
	ErrArchiveCorrupt = errors.New("archive is corrupt")
	// ErrUnsafeArchiveEntry is returned when an entry would land outside the album.
	ErrUnsafeArchiveEntry = errors.New("unsafe archive entry")
	// ErrExtraction is returned on I/O failures while unpacking.
	ErrExtraction = errors.New("extraction failed")
)

// Store is the part of the catalog an import writes.
type Store interface {
	DeleteByAlbum(ctx context.Context, album string) (int64, error)
	Insert(ctx context.Context, rec database.FileRecord) error
}

// AlbumInvalidator drops every cached thumbnail of an album.
type AlbumInvalidator interface {
	InvalidateAlbum(album string) error
}

// Result reports what an import indexed. Paths are relative to the upload root.
type Result struct {
	Album    string   `json:"album_name"`
	Inserted []string `json:"inserted"`
	Skipped  []string `json:"skipped"`
	Failed   []string `json:"failed"`
}

// Importer unpacks uploaded ZIP archives into albums.
type Importer struct {
	store   Store
	cache   AlbumInvalidator
	locks   *writelock.Locker
	root    string
	staging string
	baseURL string
}

// New returns an Importer that writes albums under root. Temporary files
// live in root/.staging, which the scanner ignores.
func New(store Store, cache AlbumInvalidator, locks *writelock.Locker, root, baseURL string) *Importer {
	if locks == nil {
		locks = writelock.New()
	}
	return &Importer{
		store:   store,
		cache:   cache,
		locks:   locks,
		root:    root,
		staging: filepath.Join(root, ".staging"),
		baseURL: baseURL,
	}
}

// StagedUpload is an uploaded archive saved under the staging directory but
// not imported yet.
type StagedUpload struct {
	im       *Importer
	Path     string
	Filename string
	Size     int64
}

// Stage stores r under the staging directory. The caller must either Import
// or Discard the result.
func (im *Importer) Stage(r io.Reader, filename string) (*StagedUpload, error) {
	if strings.TrimSpace(filename) == "" {
		return nil, fmt.Errorf("%w: no file name", ErrInvalidUpload)
	}
	if err := os.MkdirAll(im.staging, 0o755); err != nil {
		return nil, fmt.Errorf("create staging dir: %w", err)
	}

	stagedPath := filepath.Join(im.staging, uuid.NewString()+".zip")
	f, err := os.Create(stagedPath)
	if err != nil {
		return nil, fmt.Errorf("create staged upload: %w", err)
	}
	n, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(stagedPath)
		return nil, fmt.Errorf("save upload: %w", err)
	}
	if n == 0 {
		_ = os.Remove(stagedPath)
		return nil, fmt.Errorf("%w: %s is empty", ErrInvalidUpload, filename)
	}
	logging.Debug("Staged upload %s (%d bytes) at %s", filename, n, stagedPath)

	return &StagedUpload{im: im, Path: stagedPath, Filename: filename, Size: n}, nil
}

// Import imports the staged archive as album, or as the album named after
// the uploaded file when album is empty. The staged copy is removed only
// when the import succeeds.
func (s *StagedUpload) Import(ctx context.Context, album string) (Result, error) {
	if strings.TrimSpace(album) == "" {
		album = sanitize.ArchiveBase(s.Filename)
	}

	result, err := s.im.Import(ctx, s.Path, album)
	if err != nil {
		logging.Warn("Import of %s failed, upload kept at %s", s.Filename, s.Path)
		return result, err
	}

	s.Discard()
	return result, nil
}

// Discard removes the staged copy.
func (s *StagedUpload) Discard() {
	if err := os.Remove(s.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logging.Warn("Failed to remove staged upload %s: %v", s.Path, err)
	}
}

// ImportUpload stages r and imports it as the album named after filename.
func (im *Importer) ImportUpload(ctx context.Context, r io.Reader, filename string) (Result, error) {
	staged, err := im.Stage(r, filename)
	if err != nil {
		return Result{}, err
	}
	return staged.Import(ctx, "")
}

// Import replaces album with the contents of the ZIP at archivePath, then
// indexes every allowed image found directly inside its article folders.
// album is a display name and is sanitized as a whole, dots included; when
// it is empty the album is named after the archive file instead.
//
// Extraction happens in a staging directory and is swapped into place only
// once complete, so a failed import leaves the previous album untouched.
func (im *Importer) Import(ctx context.Context, archivePath, album string) (Result, error) {
	start := time.Now()

	if strings.TrimSpace(album) == "" {
		album = sanitize.ArchiveBase(archivePath)
	} else {
		album = sanitize.Name(album)
	}
	result := Result{Album: album, Inserted: []string{}, Skipped: []string{}, Failed: []string{}}

	unlock := im.locks.LockAlbum(album)
	defer unlock()

	logging.Info("Importing %s as album %s", filepath.Base(archivePath), album)

	err := im.importAlbum(ctx, archivePath, album, &result)
	metrics.ImportDuration.Observe(time.Since(start).Seconds())
	metrics.ImportRunsTotal.WithLabelValues(runStatus(err)).Inc()
	metrics.ImportFilesTotal.WithLabelValues("inserted").Add(float64(len(result.Inserted)))
	metrics.ImportFilesTotal.WithLabelValues("skipped").Add(float64(len(result.Skipped)))
	metrics.ImportFilesTotal.WithLabelValues("failed").Add(float64(len(result.Failed)))

	if err != nil {
		logging.Error("Error processing ZIP file %s: %v", archivePath, err)
		return result, err
	}

	logging.Info("Imported album %s in %v: %d inserted, %d skipped, %d failed",
		album, time.Since(start).Round(time.Millisecond), len(result.Inserted), len(result.Skipped), len(result.Failed))
	return result, nil
}

func (im *Importer) importAlbum(ctx context.Context, archivePath, album string, result *Result) error {
	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		// A reader alongside an error means the archive parsed but names
		// an insecure path.
		if zr != nil {
			_ = zr.Close()
			return fmt.Errorf("%w: %w", ErrUnsafeArchiveEntry, err)
		}
		return fmt.Errorf("%w: %w", ErrArchiveCorrupt, err)
	}
	defer func() {
		if err := zr.Close(); err != nil {
			logging.Debug("failed to close archive %s: %v", archivePath, err)
		}
	}()

	entries, err := planExtraction(zr.File)
	if err != nil {
		return err
	}

	if im.cache != nil {
		if err := im.cache.InvalidateAlbum(album); err != nil {
			logging.Error("Error cleaning up thumbnails for album %s: %v", album, err)
		}
	}

	if err := os.MkdirAll(im.staging, 0o755); err != nil {
		return fmt.Errorf("%w: %w", ErrExtraction, err)
	}
	workDir, err := os.MkdirTemp(im.staging, "import-")
	if err != nil {
		return fmt.Errorf("%w: %w", ErrExtraction, err)
	}
	defer func() { _ = os.RemoveAll(workDir) }()

	if err := extract(entries, workDir); err != nil {
		return err
	}

	articles, err := normalizeArticles(workDir)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrExtraction, err)
	}

	albumDir := filepath.Join(im.root, album)
	if err := os.RemoveAll(albumDir); err != nil {
		return fmt.Errorf("%w: remove previous album: %w", ErrExtraction, err)
	}
	if err := os.Rename(workDir, albumDir); err != nil {
		return fmt.Errorf("%w: move album into place: %w", ErrExtraction, err)
	}

	removed, err := im.store.DeleteByAlbum(ctx, album)
	if err != nil {
		return fmt.Errorf("failed to clear album rows: %w", err)
	}
	if removed > 0 {
		logging.Info("Removed %d previous rows of album %s", removed, album)
	}

	for _, article := range articles {
		im.indexArticle(ctx, album, article, result)
	}
	return nil
}

func (im *Importer) indexArticle(ctx context.Context, album, article string, result *Result) {
	dir := filepath.Join(im.root, album, article)
	files, err := os.ReadDir(dir)
	if err != nil {
		logging.Error("Error reading article folder %s: %v", dir, err)
		result.Failed = append(result.Failed, album+"/"+article)
		return
	}

	for _, f := range files {
		if !f.Type().IsRegular() || isHidden(f.Name()) {
			continue
		}

		rel := path.Join(album, article, f.Name())
		if !mediatypes.IsAllowedImage(f.Name()) {
			logging.Info("Skipping non-image file: %s", rel)
			result.Skipped = append(result.Skipped, rel)
			continue
		}

		rec := database.FileRecord{
			Filename:      rel,
			AlbumName:     album,
			ArticleNumber: article,
			PublicLink:    scanner.PublicLink(im.baseURL, rel),
		}
		if err := im.store.Insert(ctx, rec); err != nil {
			logging.Error("Error indexing %s: %v", rel, err)
			result.Failed = append(result.Failed, rel)
			continue
		}
		result.Inserted = append(result.Inserted, rel)
	}
}

// normalizeArticles renames every first-level directory of albumDir to its
// sanitized form, merging directories whose names collide. It returns the
// resulting article names, sorted.
func normalizeArticles(albumDir string) ([]string, error) {
	entries, err := os.ReadDir(albumDir)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	for _, e := range entries {
		if !e.IsDir() || isHidden(e.Name()) {
			continue
		}

		article := sanitize.Name(e.Name())
		if article != e.Name() {
			src := filepath.Join(albumDir, e.Name())
			dst := filepath.Join(albumDir, article)
			if err := moveDir(src, dst); err != nil {
				return nil, fmt.Errorf("rename article %q: %w", e.Name(), err)
			}
			logging.Debug("Renamed article folder %q to %q", e.Name(), article)
		}
		seen[article] = true
	}

	articles := make([]string, 0, len(seen))
	for a := range seen {
		articles = append(articles, a)
	}
	sort.Strings(articles)
	return articles, nil
}

// moveDir renames src to dst, merging into dst when it already exists.
func moveDir(src, dst string) error {
	if _, err := os.Lstat(dst); errors.Is(err, fs.ErrNotExist) {
		return os.Rename(src, dst)
	}

	entries, err := os.ReadDir(src)
	if err != nil {
		return err
	}
	for _, e := range entries {
		s := filepath.Join(src, e.Name())
		d := filepath.Join(dst, e.Name())
		if e.IsDir() {
			if err := moveDir(s, d); err != nil {
				return err
			}
			continue
		}
		if err := os.Rename(s, d); err != nil {
			return err
		}
	}
	return os.Remove(src)
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, ".")
}

func runStatus(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrArchiveCorrupt):
		return "corrupt"
	case errors.Is(err, ErrUnsafeArchiveEntry):
		return "unsafe"
	case errors.Is(err, ErrExtraction):
		return "extraction"
	default:
		return "error"
	}
}
