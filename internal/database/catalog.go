package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Catalog errors. Callers branch on these with errors.Is.
var (
	// ErrDuplicateKey is returned by Insert when the filename is already indexed.
	ErrDuplicateKey = errors.New("duplicate filename")
	// ErrNotFound is returned when an operation targets a filename with no row.
	ErrNotFound = errors.New("file record not found")
	// ErrInvalidColumn is returned by ListDistinct for a column outside the allow-list.
	ErrInvalidColumn = errors.New("invalid column")
)

// Default timeout for catalog operations
const defaultTimeout = 10 * time.Second

// FileRecord is one indexed image.
type FileRecord struct {
	ID            int64     `json:"id"`
	Filename      string    `json:"filename"`
	AlbumName     string    `json:"album_name"`
	ArticleNumber string    `json:"article_number"`
	PublicLink    string    `json:"public_link"`
	Published     bool      `json:"published"`
	CreatedAt     time.Time `json:"created_at"`
}

// Column names a catalog column that may be enumerated with ListDistinct.
type Column string

const (
	ColumnAlbum   Column = "album_name"
	ColumnArticle Column = "article_number"
)

func (c Column) valid() bool {
	return c == ColumnAlbum || c == ColumnArticle
}

// Filter narrows Query and ListDistinct. Zero fields match everything.
type Filter struct {
	Album     string
	Article   string
	Published *bool
}

// Order selects the row ordering of Query.
type Order int

const (
	// OrderCreatedDesc lists newest rows first; ties fall back to id.
	OrderCreatedDesc Order = iota
	// OrderArticleFilename groups rows by article for export.
	OrderArticleFilename
)

// Stats summarizes the catalog contents.
type Stats struct {
	TotalAlbums    int `json:"totalAlbums"`
	TotalArticles  int `json:"totalArticles"`
	TotalFiles     int `json:"totalFiles"`
	PublishedFiles int `json:"publishedFiles"`
}

// Catalog is the relational index of uploaded images, keyed by filename.
//
// The catalog does not serialize writers; callers coordinate mutations
// through the writelock package.
type Catalog interface {
	// Insert adds rec. It fails with ErrDuplicateKey when rec.Filename exists.
	// A zero CreatedAt is set to the current time.
	Insert(ctx context.Context, rec FileRecord) error
	DeleteByFilename(ctx context.Context, filename string) (int64, error)
	DeleteByAlbum(ctx context.Context, album string) (int64, error)
	DeleteByAlbumArticle(ctx context.Context, album, article string) (int64, error)
	// ListFilenames returns every indexed filename.
	ListFilenames(ctx context.Context) ([]string, error)
	// ListDistinct returns the sorted distinct values of column among rows matching f.
	ListDistinct(ctx context.Context, column Column, f Filter) ([]string, error)
	Query(ctx context.Context, f Filter, order Order) ([]FileRecord, error)
	// SetPublished updates the visibility flag, or fails with ErrNotFound.
	SetPublished(ctx context.Context, filename string, published bool) error
	Stats(ctx context.Context) (Stats, error)
	Ping(ctx context.Context) error
	Close() error
}

// whereClause renders f as a WHERE clause. placeholder renders the n-th
// (1-based) bind parameter in the engine's syntax.
func whereClause(f Filter, placeholder func(n int) string) (string, []any) {
	var conds []string
	var args []any

	add := func(expr string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf("%s = %s", expr, placeholder(len(args))))
	}

	if f.Album != "" {
		add("album_name", f.Album)
	}
	if f.Article != "" {
		add("article_number", f.Article)
	}
	if f.Published != nil {
		add("published", *f.Published)
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// orderClause renders o. collate is appended to text sort keys so both
// engines sort bytewise.
func orderClause(o Order, collate string) string {
	if o == OrderArticleFilename {
		return fmt.Sprintf(" ORDER BY article_number%s ASC, filename%s ASC", collate, collate)
	}
	return " ORDER BY created_at DESC, id DESC"
}

const statsQuery = `
	SELECT
		(SELECT COUNT(DISTINCT album_name) FROM files),
		(SELECT COUNT(*) FROM (SELECT DISTINCT album_name, article_number FROM files) a),
		(SELECT COUNT(*) FROM files),
		(SELECT COUNT(*) FROM files WHERE published)
`
