package albums

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"pichost/internal/database"
	"pichost/internal/indexer"
	"pichost/internal/logging"
	"pichost/internal/writelock"
)

// ErrInvalidName is returned for names that are empty, hidden or contain a
// path separator.
var ErrInvalidName = errors.New("invalid album or article name")

// Store is the part of the catalog a deletion writes.
type Store interface {
	DeleteByAlbum(ctx context.Context, album string) (int64, error)
	DeleteByAlbumArticle(ctx context.Context, album, article string) (int64, error)
}

// Invalidator drops cached thumbnails.
type Invalidator interface {
	InvalidateAlbum(album string) error
	InvalidateArticle(album, article string) error
}

// Syncer runs a reconciliation pass.
type Syncer interface {
	Reconcile(ctx context.Context) (indexer.Result, error)
}

// Removal reports one deletion.
type Removal struct {
	Album       string `json:"album_name"`
	Article     string `json:"article_number,omitempty"`
	RowsRemoved int64  `json:"rows_removed"`
	DirRemoved  bool   `json:"dir_removed"`
}

// Manager deletes albums and articles.
type Manager struct {
	store  Store
	cache  Invalidator
	syncer Syncer
	locks  *writelock.Locker
	root   string
}

// NewManager returns a Manager for the upload tree at root. cache and
// syncer may be nil.
func NewManager(store Store, cache Invalidator, syncer Syncer, locks *writelock.Locker, root string) *Manager {
	if locks == nil {
		locks = writelock.New()
	}
	return &Manager{store: store, cache: cache, syncer: syncer, locks: locks, root: root}
}

// DeleteAlbum removes the album's rows, then its directory, then its
// thumbnails. Deleting an album that does not exist succeeds.
func (m *Manager) DeleteAlbum(ctx context.Context, album string) (Removal, error) {
	if !validName(album) {
		return Removal{}, fmt.Errorf("%w: %q", ErrInvalidName, album)
	}

	unlock := m.locks.LockAlbum(album)
	defer unlock()

	out := Removal{Album: album}
	n, err := m.store.DeleteByAlbum(ctx, album)
	if err != nil {
		return out, fmt.Errorf("failed to delete rows of album %s: %w", album, err)
	}
	out.RowsRemoved = n

	out.DirRemoved, err = removeDir(filepath.Join(m.root, album))
	if err != nil {
		return out, err
	}

	if m.cache != nil {
		if err := m.cache.InvalidateAlbum(album); err != nil {
			return out, fmt.Errorf("failed to clean thumbnails of album %s: %w", album, err)
		}
	}

	logging.Info("Deleted album %s (%d rows)", album, n)
	return out, nil
}

// DeleteArticle removes one article's rows, directory and thumbnails and
// then reconciles the catalog with the tree.
func (m *Manager) DeleteArticle(ctx context.Context, album, article string) (Removal, error) {
	if !validName(album) || !validName(article) {
		return Removal{}, fmt.Errorf("%w: %q/%q", ErrInvalidName, album, article)
	}

	out, err := m.deleteArticle(ctx, album, article)
	if err != nil {
		return out, err
	}

	// The album lock is released by now; Reconcile takes the global one.
	if m.syncer != nil {
		if _, err := m.syncer.Reconcile(ctx); err != nil {
			logging.Warn("Synchronization after deleting %s/%s failed: %v", album, article, err)
		}
	}
	return out, nil
}

func (m *Manager) deleteArticle(ctx context.Context, album, article string) (Removal, error) {
	unlock := m.locks.LockAlbum(album)
	defer unlock()

	out := Removal{Album: album, Article: article}
	n, err := m.store.DeleteByAlbumArticle(ctx, album, article)
	if err != nil {
		return out, fmt.Errorf("failed to delete rows of article %s/%s: %w", album, article, err)
	}
	out.RowsRemoved = n

	out.DirRemoved, err = removeDir(filepath.Join(m.root, album, article))
	if err != nil {
		return out, err
	}

	if m.cache != nil {
		if err := m.cache.InvalidateArticle(album, article); err != nil {
			return out, fmt.Errorf("failed to clean thumbnails of article %s/%s: %w", album, article, err)
		}
	}

	logging.Info("Deleted article %s in album %s (%d rows)", article, album, n)
	return out, nil
}

func removeDir(dir string) (bool, error) {
	if _, err := os.Lstat(dir); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to stat %s: %w", dir, err)
	}
	if err := os.RemoveAll(dir); err != nil {
		return false, fmt.Errorf("failed to remove %s: %w", dir, err)
	}
	logging.Info("Deleted directory: %s", dir)
	return true, nil
}

func validName(name string) bool {
	return name != "" && !strings.HasPrefix(name, ".") && !strings.ContainsAny(name, "/\\\x00")
}
