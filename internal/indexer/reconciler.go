package indexer

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"pichost/internal/database"
	"pichost/internal/logging"
	"pichost/internal/metrics"
	"pichost/internal/scanner"
	"pichost/internal/writelock"
)

// Store is the part of the catalog the reconciler mutates.
type Store interface {
	ListFilenames(ctx context.Context) ([]string, error)
	DeleteByFilename(ctx context.Context, filename string) (int64, error)
	Insert(ctx context.Context, rec database.FileRecord) error
}

// Invalidator drops cached thumbnails of one original.
type Invalidator interface {
	InvalidateFile(rel string) error
}

// Result lists what one pass changed. Paths are sorted.
type Result struct {
	Deleted  []string      `json:"deleted"`
	Added    []string      `json:"added"`
	Failed   []string      `json:"failed"`
	Duration time.Duration `json:"duration"`
}

// Reconciler converges the catalog to the upload tree.
type Reconciler struct {
	store   Store
	cache   Invalidator
	locks   *writelock.Locker
	root    string
	baseURL string

	stateMu    sync.RWMutex
	running    bool
	startTime  time.Time
	lastRun    time.Time
	lastResult Result
	lastErr    error
}

// New creates a Reconciler for the upload tree at root. cache may be nil.
func New(store Store, cache Invalidator, locks *writelock.Locker, root, baseURL string) *Reconciler {
	if locks == nil {
		locks = writelock.New()
	}
	return &Reconciler{
		store:     store,
		cache:     cache,
		locks:     locks,
		root:      root,
		baseURL:   baseURL,
		startTime: time.Now(),
	}
}

// Reconcile runs one pass. Rows whose file is gone are deleted (after their
// thumbnails are invalidated) and files without a row are inserted. A failure
// on one path is logged and recorded in Result.Failed; only a failure to
// read the catalog or scan the tree aborts the pass.
//
// Passes are serialized through the write lock, so a concurrent call waits
// for the running one and then performs its own pass.
func (r *Reconciler) Reconcile(ctx context.Context) (Result, error) {
	unlock := r.locks.LockAll()
	defer unlock()

	r.setRunning(true)
	defer r.setRunning(false)

	metrics.ReconcileRunning.Set(1)
	defer metrics.ReconcileRunning.Set(0)

	start := time.Now()
	logging.Info("Starting synchronization of %s", r.root)

	result, err := r.reconcile(ctx)
	result.Duration = time.Since(start)
	r.finish(result, err)

	if err != nil {
		metrics.ReconcileRunsTotal.WithLabelValues("error").Inc()
		logging.Error("Synchronization failed: %v", err)
		return result, err
	}

	metrics.ReconcileRunsTotal.WithLabelValues("success").Inc()
	metrics.ReconcileDuration.Observe(result.Duration.Seconds())
	metrics.ReconcileLastRunTimestamp.Set(float64(time.Now().Unix()))
	metrics.ReconcileRowsTotal.WithLabelValues("added").Add(float64(len(result.Added)))
	metrics.ReconcileRowsTotal.WithLabelValues("deleted").Add(float64(len(result.Deleted)))
	metrics.ReconcileRowsTotal.WithLabelValues("failed").Add(float64(len(result.Failed)))

	logging.Info("Synchronization completed in %v: %d deleted, %d added, %d failed",
		result.Duration.Round(time.Millisecond), len(result.Deleted), len(result.Added), len(result.Failed))
	return result, nil
}

func (r *Reconciler) reconcile(ctx context.Context) (Result, error) {
	result := Result{Deleted: []string{}, Added: []string{}, Failed: []string{}}

	existing, err := r.store.ListFilenames(ctx)
	if err != nil {
		return result, fmt.Errorf("failed to list catalog: %w", err)
	}

	found, err := scanner.Scan(r.root, r.baseURL)
	if err != nil {
		return result, err
	}

	indexed := make(map[string]struct{}, len(existing))
	var toDelete []string
	for _, name := range existing {
		indexed[name] = struct{}{}
		if _, ok := found[name]; !ok {
			toDelete = append(toDelete, name)
		}
	}

	var toAdd []string
	for rel := range found {
		if _, ok := indexed[rel]; !ok {
			toAdd = append(toAdd, rel)
		}
	}

	sort.Strings(toDelete)
	sort.Strings(toAdd)

	for _, rel := range toDelete {
		// Invalidation and row removal are attempted independently.
		if r.cache != nil {
			if err := r.cache.InvalidateFile(rel); err != nil {
				logging.Warn("Failed to invalidate thumbnails for %s: %v", rel, err)
			}
		}
		if _, err := r.store.DeleteByFilename(ctx, rel); err != nil {
			logging.Error("Error deleting %s from catalog: %v", rel, err)
			result.Failed = append(result.Failed, rel)
			continue
		}
		logging.Debug("Deleted missing file from catalog: %s", rel)
		result.Deleted = append(result.Deleted, rel)
	}

	for _, rel := range toAdd {
		e := found[rel]
		rec := database.FileRecord{
			Filename:      rel,
			AlbumName:     e.Album,
			ArticleNumber: e.Article,
			PublicLink:    e.PublicLink,
		}
		if err := r.store.Insert(ctx, rec); err != nil {
			logging.Error("Error adding %s to catalog: %v", rel, err)
			result.Failed = append(result.Failed, rel)
			continue
		}
		logging.Debug("Added new file to catalog: %s", rel)
		result.Added = append(result.Added, rel)
	}

	return result, nil
}

func (r *Reconciler) setRunning(running bool) {
	r.stateMu.Lock()
	defer r.stateMu.Unlock()
	r.running = running
}

func (r *Reconciler) finish(result Result, err error) {
	r.stateMu.Lock()
	defer r.stateMu.Unlock()
	r.lastRun = time.Now()
	r.lastResult = result
	r.lastErr = err
}

// IsRunning reports whether a pass is in progress.
func (r *Reconciler) IsRunning() bool {
	r.stateMu.RLock()
	defer r.stateMu.RUnlock()
	return r.running
}

// HealthStatus contains health check information.
type HealthStatus struct {
	Syncing   bool      `json:"syncing"`
	StartTime time.Time `json:"startTime"`
	Uptime    string    `json:"uptime"`
	LastSync  time.Time `json:"lastSync,omitempty"`
	Added     int       `json:"lastAdded"`
	Deleted   int       `json:"lastDeleted"`
	Failed    int       `json:"lastFailed"`
	LastError string    `json:"lastError,omitempty"`
}

// GetHealthStatus summarizes the reconciler state for health endpoints.
func (r *Reconciler) GetHealthStatus() HealthStatus {
	r.stateMu.RLock()
	defer r.stateMu.RUnlock()

	status := HealthStatus{
		Syncing:   r.running,
		StartTime: r.startTime,
		Uptime:    time.Since(r.startTime).Round(time.Second).String(),
		LastSync:  r.lastRun,
		Added:     len(r.lastResult.Added),
		Deleted:   len(r.lastResult.Deleted),
		Failed:    len(r.lastResult.Failed),
	}
	if r.lastErr != nil {
		status.LastError = r.lastErr.Error()
	}
	return status
}
