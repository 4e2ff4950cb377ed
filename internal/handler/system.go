package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/kindfund/kindfund/internal/model"
)

// SystemStore is what the system endpoints read from the store.
type SystemStore interface {
	Ping(ctx context.Context) error
	Driver() string
	CountDocuments(ctx context.Context, collection string) (int64, error)
}

// SystemHandler serves probes and the admin dashboard summary.
type SystemHandler struct {
	store   SystemStore
	version string
	started time.Time
	logger  *slog.Logger
}

// NewSystemHandler creates a new SystemHandler.
func NewSystemHandler(store SystemStore, version string, logger *slog.Logger) *SystemHandler {
	return &SystemHandler{
		store:   store,
		version: version,
		started: time.Now(),
		logger:  orDiscard(logger),
	}
}

// Healthz is a liveness probe. Returns 200 if the process is running.
// GET /healthz
func (h *SystemHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Readyz is a readiness probe. Returns 200 when the database answers a
// ping, or 503 otherwise.
// GET /readyz
func (h *SystemHandler) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.store.Ping(ctx); err != nil {
		h.logger.WarnContext(r.Context(), "readiness check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status": "degraded",
			"checks": map[string]string{"database": "unreachable"},
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"checks": map[string]string{"database": "ok"},
	})
}

// Info summarises the running instance for the admin dashboard.
// GET /api/v1/system/info
func (h *SystemHandler) Info(w http.ResponseWriter, r *http.Request) {
	counts := make(map[string]int64, len(model.Collections))
	for _, c := range model.Collections {
		n, err := h.store.CountDocuments(r.Context(), c)
		if err != nil {
			writeStoreError(w, r, h.logger, err, "")
			return
		}
		counts[c] = n
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"version":        h.version,
		"driver":         h.store.Driver(),
		"uptime_seconds": int64(time.Since(h.started).Seconds()),
		"collections":    counts,
	})
}
