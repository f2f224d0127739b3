package metrics

import (
	"context"
	"time"

	"pichost/internal/logging"
)

// StatsProvider interface for collecting stats
type StatsProvider interface {
	GetStats(ctx context.Context) (Stats, error)
}

// Stats holds the current catalog statistics
type Stats struct {
	TotalAlbums    int
	TotalArticles  int
	TotalFiles     int
	PublishedFiles int
}

// Collector periodically collects and updates metrics
type Collector struct {
	statsProvider StatsProvider
	interval      time.Duration
	stopChan      chan struct{}
}

// NewCollector creates a new metrics collector
func NewCollector(provider StatsProvider, interval time.Duration) *Collector {
	return &Collector{
		statsProvider: provider,
		interval:      interval,
		stopChan:      make(chan struct{}),
	}
}

// Start begins the metrics collection loop
func (c *Collector) Start() {
	go c.collectLoop()
}

// Stop stops the metrics collection
func (c *Collector) Stop() {
	close(c.stopChan)
}

func (c *Collector) collectLoop() {
	c.collect()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.collect()
		case <-c.stopChan:
			return
		}
	}
}

func (c *Collector) collect() {
	if c.statsProvider == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stats, err := c.statsProvider.GetStats(ctx)
	if err != nil {
		logging.Warn("Metrics collection failed: %v", err)
		return
	}

	CatalogAlbumsTotal.Set(float64(stats.TotalAlbums))
	CatalogArticlesTotal.Set(float64(stats.TotalArticles))
	CatalogFilesTotal.WithLabelValues("true").Set(float64(stats.PublishedFiles))
	CatalogFilesTotal.WithLabelValues("false").Set(float64(stats.TotalFiles - stats.PublishedFiles))

	logging.Debug("Metrics collected: albums=%d, articles=%d, files=%d, published=%d",
		stats.TotalAlbums, stats.TotalArticles, stats.TotalFiles, stats.PublishedFiles)
}
