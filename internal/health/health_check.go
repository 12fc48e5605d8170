package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/driftsearch/snaprestore/internal/store"
)

// Checker provides health check endpoints
type Checker struct {
	cache   store.Cache
	history store.HistoryStore
	logger  *zap.Logger
}

// Status represents the health status response
type Status struct {
	Status    string            `json:"status"`
	Timestamp int64             `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// NewChecker creates a new health checker. Either store may be nil when the
// corresponding backend is not configured.
func NewChecker(cache store.Cache, history store.HistoryStore, logger *zap.Logger) *Checker {
	return &Checker{
		cache:   cache,
		history: history,
		logger:  logger,
	}
}

// LivenessHandler handles liveness probe requests
func (c *Checker) LivenessHandler(w http.ResponseWriter, r *http.Request) {
	writeStatus(w, http.StatusOK, Status{
		Status:    "alive",
		Timestamp: time.Now().Unix(),
	})
}

// ReadinessHandler handles readiness probe requests
func (c *Checker) ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := make(map[string]string)
	allHealthy := true

	if c.cache != nil {
		if err := c.cache.Ping(ctx); err != nil {
			c.logger.Error("Manifest cache health check failed", zap.Error(err))
			checks["manifest_cache"] = "unhealthy: " + err.Error()
			allHealthy = false
		} else {
			checks["manifest_cache"] = "healthy"
		}
	}

	if c.history != nil {
		if err := c.history.Ping(ctx); err != nil {
			c.logger.Error("History store health check failed", zap.Error(err))
			checks["history_store"] = "unhealthy: " + err.Error()
			allHealthy = false
		} else {
			checks["history_store"] = "healthy"
		}
	}

	status := Status{
		Timestamp: time.Now().Unix(),
		Checks:    checks,
	}
	if allHealthy {
		status.Status = "ready"
		writeStatus(w, http.StatusOK, status)
		return
	}
	status.Status = "not_ready"
	writeStatus(w, http.StatusServiceUnavailable, status)
}

func writeStatus(w http.ResponseWriter, code int, status Status) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(status)
}
