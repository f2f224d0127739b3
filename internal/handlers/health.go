package handlers

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"pichost/internal/startup"
)

const (
	statusHealthy   = "healthy"
	statusDegraded  = "degraded"
	statusUnhealthy = "unhealthy"
)

// HealthResponse contains the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Ready     bool   `json:"ready"`
	Version   string `json:"version"`
	Uptime    string `json:"uptime"`
	Database  string `json:"database"`
	Syncing   bool   `json:"syncing"`
	LastSync  string `json:"lastSync,omitempty"`
	LastError string `json:"lastError,omitempty"`

	// Last reconciliation pass
	LastAdded   int `json:"lastAdded"`
	LastDeleted int `json:"lastDeleted"`
	LastFailed  int `json:"lastFailed"`

	// System info
	GoVersion    string `json:"goVersion"`
	NumCPU       int    `json:"numCpu"`
	NumGoroutine int    `json:"numGoroutine"`

	// Stats summary
	TotalAlbums int `json:"totalAlbums,omitempty"`
	TotalFiles  int `json:"totalFiles,omitempty"`
}

func (h *Handlers) pingCatalog(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return h.catalog.Ping(ctx)
}

// HealthCheck returns the health status of the service
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	healthStatus := h.reconciler.GetHealthStatus()

	response := HealthResponse{
		Status:       statusHealthy,
		Ready:        true,
		Version:      startup.Version,
		Uptime:       healthStatus.Uptime,
		Database:     "ok",
		Syncing:      healthStatus.Syncing,
		LastAdded:    healthStatus.Added,
		LastDeleted:  healthStatus.Deleted,
		LastFailed:   healthStatus.Failed,
		GoVersion:    runtime.Version(),
		NumCPU:       runtime.NumCPU(),
		NumGoroutine: runtime.NumGoroutine(),
	}

	if !healthStatus.LastSync.IsZero() {
		response.LastSync = healthStatus.LastSync.Format(time.RFC3339)
	}

	if healthStatus.LastError != "" {
		response.LastError = healthStatus.LastError
		response.Status = statusDegraded
	}

	if err := h.pingCatalog(r.Context()); err != nil {
		response.Status = statusUnhealthy
		response.Ready = false
		response.Database = err.Error()
	} else if stats, err := h.catalog.Stats(r.Context()); err == nil {
		response.TotalAlbums = stats.TotalAlbums
		response.TotalFiles = stats.TotalFiles
	}

	// Return 503 only if the catalog is unreachable
	code := http.StatusOK
	if !response.Ready {
		code = http.StatusServiceUnavailable
	}
	writeJSONStatusCode(w, response, code)
}

// LivenessCheck is a simple liveness probe (always returns 200 if server is running)
func (h *Handlers) LivenessCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	// For HEAD requests, only send headers (no body)
	if r.Method != http.MethodHead {
		writeJSON(w, map[string]string{
			"status": "alive",
		})
	}
}

// ReadinessCheck returns 200 only when the catalog answers
func (h *Handlers) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	if err := h.pingCatalog(r.Context()); err != nil {
		writeJSONStatusCode(w, map[string]string{"status": "not_ready"}, http.StatusServiceUnavailable)
		return
	}
	writeJSONStatusCode(w, map[string]string{"status": "ready"}, http.StatusOK)
}
