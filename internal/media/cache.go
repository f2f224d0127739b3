package media

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"pichost/internal/filesystem"
	"pichost/internal/logging"
	"pichost/internal/mediatypes"
	"pichost/internal/metrics"
	"pichost/internal/workers"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"
)

var (
	// ErrNotFound is returned when the original image does not exist.
	ErrNotFound = errors.New("original image not found")
	// ErrInvalidPath is returned for paths that escape the upload or cache root.
	ErrInvalidPath = errors.New("invalid image path")
	// ErrGenerate wraps any decode, resize or encode failure.
	ErrGenerate = errors.New("thumbnail generation failed")
)

// JPEGQuality is the encoder quality of every cached artifact.
const JPEGQuality = 85

// Size is a bounding box in pixels.
type Size struct {
	Width  int
	Height int
}

// Fixed sizes used by the HTTP layer.
var (
	SizeSmall  = Size{Width: 120, Height: 120}
	SizeMedium = Size{Width: 400, Height: 400}
)

func (s Size) String() string {
	return fmt.Sprintf("%dx%d", s.Width, s.Height)
}

// ParseSize maps a size class name ("small", "medium") to its Size.
func ParseSize(name string) (Size, bool) {
	switch strings.ToLower(name) {
	case "small":
		return SizeSmall, true
	case "medium":
		return SizeMedium, true
	default:
		return Size{}, false
	}
}

// Options configures a Cache.
type Options struct {
	// OriginalsDir is the upload root that relative paths are resolved against.
	OriginalsDir string
	// CacheDir holds the artifacts, mirroring the album/article tree.
	CacheDir string
	// MemoryEntries sizes the in-memory tier. Zero disables it.
	MemoryEntries int
	MemoryTTL     time.Duration
	// Placeholder is served by GetOrPlaceholder when generation fails.
	// Nil selects DefaultPlaceholder.
	Placeholder []byte
	// Workers bounds concurrent generations. Zero sizes it by CPU count.
	Workers int
}

// Cache produces resized JPEG copies of originals and stores them on disk
// under a name derived from the original's content, so a changed original
// never hits a stale artifact.
type Cache struct {
	originals   string
	dir         string
	placeholder []byte
	mem         *expirable.LRU[string, []byte]
	group       singleflight.Group
	sem         *semaphore.Weighted
}

// NewCache creates the cache directory and returns a ready Cache.
func NewCache(opts Options) (*Cache, error) {
	if opts.OriginalsDir == "" || opts.CacheDir == "" {
		return nil, errors.New("originals and cache directories are required")
	}
	if err := os.MkdirAll(opts.CacheDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create thumbnail cache dir: %w", err)
	}

	c := &Cache{
		originals:   opts.OriginalsDir,
		dir:         opts.CacheDir,
		placeholder: opts.Placeholder,
	}
	if c.placeholder == nil {
		c.placeholder = DefaultPlaceholder()
	}
	if opts.MemoryEntries > 0 {
		c.mem = expirable.NewLRU[string, []byte](opts.MemoryEntries, nil, opts.MemoryTTL)
	}
	n := opts.Workers
	if n <= 0 {
		n = workers.ForCPU(0)
	}
	c.sem = semaphore.NewWeighted(int64(n))

	logging.Debug("Thumbnail cache: originals=%s cache=%s memory=%d workers=%d", c.originals, c.dir, opts.MemoryEntries, n)
	return c, nil
}

// Dir returns the cache root.
func (c *Cache) Dir() string { return c.dir }

// Get returns the JPEG artifact for rel at size, generating it on a miss.
func (c *Cache) Get(ctx context.Context, rel string, size Size) ([]byte, error) {
	if size.Width <= 0 || size.Height <= 0 {
		return nil, fmt.Errorf("invalid thumbnail size %s", size)
	}

	clean, err := cleanRel(rel)
	if err != nil {
		return nil, err
	}
	origPath := filepath.Join(c.originals, filepath.FromSlash(clean))

	data, err := c.readOriginal(origPath)
	if err != nil {
		return nil, err
	}

	cachePath := c.artifactPath(clean, size, contentHash(data))

	if c.mem != nil {
		if thumb, ok := c.mem.Get(cachePath); ok {
			metrics.ThumbnailCacheHits.WithLabelValues("memory").Inc()
			return thumb, nil
		}
	}

	if thumb, err := os.ReadFile(cachePath); err == nil {
		metrics.ThumbnailCacheHits.WithLabelValues("disk").Inc()
		c.remember(cachePath, thumb)
		return thumb, nil
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	metrics.ThumbnailCacheMisses.Inc()

	// The shared generation outlives any single caller, so one client going
	// away cannot fail the others waiting on the same thumbnail.
	genCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(cachePath, func() (any, error) {
		if err := c.sem.Acquire(genCtx, 1); err != nil {
			return nil, err
		}
		defer c.sem.Release(1)
		return c.generate(clean, data, size, cachePath)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		thumb := res.Val.([]byte)
		c.remember(cachePath, thumb)
		return thumb, nil
	}
}

// GetOrPlaceholder is Get with fail-soft generation: decode or encode
// failures yield the placeholder image instead of an error. A missing
// original or an invalid path still fails. The content type of the returned
// bytes is reported alongside.
func (c *Cache) GetOrPlaceholder(ctx context.Context, rel string, size Size) ([]byte, string, error) {
	thumb, err := c.Get(ctx, rel, size)
	if err == nil {
		return thumb, "image/jpeg", nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrInvalidPath) {
		return nil, "", err
	}

	logging.Warn("Serving placeholder for %s (%s): %v", rel, size, err)
	metrics.ThumbnailPlaceholdersServed.Inc()
	return c.placeholder, "image/png", nil
}

func (c *Cache) readOriginal(origPath string) ([]byte, error) {
	info, err := filesystem.StatWithRetry(origPath, filesystem.DefaultRetryConfig())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, origPath)
		}
		return nil, fmt.Errorf("stat original: %w", err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%w: %s is not a regular file", ErrNotFound, origPath)
	}

	data, err := filesystem.ReadFileWithRetry(origPath, filesystem.DefaultRetryConfig())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, origPath)
		}
		return nil, fmt.Errorf("read original: %w", err)
	}
	return data, nil
}

func (c *Cache) generate(rel string, data []byte, size Size, cachePath string) ([]byte, error) {
	start := time.Now()
	label := size.String()

	format := mediatypes.GetFormat(rel)
	if !format.IsRasterizable() {
		metrics.ThumbnailGenerationsTotal.WithLabelValues(label, "error_unsupported").Inc()
		return nil, fmt.Errorf("%w: %s is not a raster image", ErrGenerate, rel)
	}

	thumb, err := renderThumbnail(data, size)
	if err != nil {
		metrics.ThumbnailGenerationsTotal.WithLabelValues(label, "error_decode").Inc()
		logging.Error("Error creating thumbnail for %s: %v", rel, err)
		return nil, fmt.Errorf("%w: %s: %w", ErrGenerate, rel, err)
	}
	metrics.ThumbnailImageDecodeByFormat.WithLabelValues(string(format)).Inc()

	if err := writeAtomic(cachePath, thumb); err != nil {
		// The bytes are still good; the next request regenerates them.
		logging.Warn("Failed to cache thumbnail %s: %v", cachePath, err)
	} else {
		logging.Debug("Thumbnail cached: %s", cachePath)
	}

	metrics.ThumbnailGenerationsTotal.WithLabelValues(label, "success").Inc()
	metrics.ThumbnailGenerationDuration.WithLabelValues(label).Observe(time.Since(start).Seconds())
	return thumb, nil
}

func (c *Cache) remember(cachePath string, thumb []byte) {
	if c.mem != nil {
		c.mem.Add(cachePath, thumb)
	}
}

// InvalidateFile removes every cached artifact of one original. When the
// original still exists, artifacts carrying its current content hash are
// removed. When it is gone, every artifact named after its base name is
// removed.
func (c *Cache) InvalidateFile(rel string) error {
	clean, err := cleanRel(rel)
	if err != nil {
		return err
	}
	metrics.ThumbnailInvalidations.WithLabelValues("file").Inc()

	dir := filepath.Join(c.dir, filepath.FromSlash(pathDir(clean)))
	base := baseName(clean)

	var pattern *regexp.Regexp
	data, err := os.ReadFile(filepath.Join(c.originals, filepath.FromSlash(clean)))
	if err == nil {
		pattern = regexp.MustCompile(`^` + regexp.QuoteMeta(base) + `_\d+x\d+_` + contentHash(data) + `\.jpg$`)
	} else {
		pattern = regexp.MustCompile(`^` + regexp.QuoteMeta(base) + `_\d+x\d+_[0-9a-f]{8}\.jpg$`)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read cache dir: %w", err)
	}

	var errs []error
	for _, e := range entries {
		if e.IsDir() || !pattern.MatchString(e.Name()) {
			continue
		}
		p := filepath.Join(dir, e.Name())
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
			continue
		}
		c.forget(p)
		logging.Info("Deleted thumbnail: %s", p)
	}
	return errors.Join(errs...)
}

// InvalidateAlbum removes the whole cache subtree of an album. An absent
// subtree is not an error.
func (c *Cache) InvalidateAlbum(album string) error {
	if !isSegment(album) {
		return fmt.Errorf("%w: album %q", ErrInvalidPath, album)
	}
	metrics.ThumbnailInvalidations.WithLabelValues("album").Inc()
	return c.removeTree(filepath.Join(c.dir, album))
}

// InvalidateArticle removes the cache subtree of one article.
func (c *Cache) InvalidateArticle(album, article string) error {
	if !isSegment(album) || !isSegment(article) {
		return fmt.Errorf("%w: %q/%q", ErrInvalidPath, album, article)
	}
	metrics.ThumbnailInvalidations.WithLabelValues("article").Inc()
	return c.removeTree(filepath.Join(c.dir, album, article))
}

func (c *Cache) removeTree(dir string) error {
	if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
		logging.Info("No thumbnails found for %s", dir)
		return nil
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("remove thumbnails %s: %w", dir, err)
	}
	c.forgetPrefix(dir + string(filepath.Separator))
	logging.Info("Cleaned up thumbnails in %s", dir)
	return nil
}

func (c *Cache) forget(cachePath string) {
	if c.mem != nil {
		c.mem.Remove(cachePath)
	}
}

func (c *Cache) forgetPrefix(prefix string) {
	if c.mem == nil {
		return
	}
	for _, k := range c.mem.Keys() {
		if strings.HasPrefix(k, prefix) {
			c.mem.Remove(k)
		}
	}
}

// artifactPath is CacheDir/{rel dir}/{base}_{W}x{H}_{hash8}.jpg.
func (c *Cache) artifactPath(rel string, size Size, hash8 string) string {
	name := fmt.Sprintf("%s_%s_%s.jpg", baseName(rel), size, hash8)
	return filepath.Join(c.dir, filepath.FromSlash(pathDir(rel)), name)
}

// contentHash returns the first 8 hex characters of the MD5 of data.
func contentHash(data []byte) string {
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:])[:8]
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".thumb-*")
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// cleanRel normalizes a slash-separated relative path and rejects anything
// that would leave the root.
func cleanRel(rel string) (string, error) {
	if rel == "" || strings.ContainsRune(rel, 0) {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, rel)
	}
	slashed := strings.ReplaceAll(rel, "\\", "/")
	if strings.HasPrefix(slashed, "/") || filepath.IsAbs(rel) || filepath.VolumeName(rel) != "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, rel)
	}

	clean := filepath.ToSlash(filepath.Clean(filepath.FromSlash(slashed)))
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, rel)
	}
	return clean, nil
}

func isSegment(name string) bool {
	return name != "" && name != "." && name != ".." && !strings.ContainsAny(name, "/\\\x00")
}

func pathDir(rel string) string {
	if i := strings.LastIndex(rel, "/"); i >= 0 {
		return rel[:i]
	}
	return ""
}

func baseName(rel string) string {
	base := rel[strings.LastIndex(rel, "/")+1:]
	return strings.TrimSuffix(base, filepath.Ext(base))
}
