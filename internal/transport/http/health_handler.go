package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/render"

	"github.com/promptrecall/licensing/internal/license"
)

// HealthHandler reports process liveness and store reachability
type HealthHandler struct {
	store   license.Store
	logger  *slog.Logger
	version string
	started time.Time
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(store license.Store, version string, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{
		store:   store,
		logger:  logger.With(slog.String("handler", "health")),
		version: version,
		started: time.Now(),
	}
}

// HealthResponse is the health endpoint's response body
type HealthResponse struct {
	Status    string    `json:"status"`
	Store     string    `json:"store"`
	Version   string    `json:"version"`
	Uptime    string    `json:"uptime"`
	Timestamp time.Time `json:"timestamp"`
}

// healthProbeIdentity is the key the store probe reads. It is not a
// valid email so no license document can ever exist under it, and it
// avoids the double-underscore pattern Firestore reserves for its own
// document IDs (a reserved ID fails with InvalidArgument, not
// NotFound, which would make a healthy store look down).
const healthProbeIdentity = "health-probe"

// Health handles GET /healthz. The store probe reads a key that never
// exists; ErrNotFound proves the round trip worked.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	storeStatus := "up"
	if _, err := h.store.Get(ctx, healthProbeIdentity); err != nil && !errors.Is(err, license.ErrNotFound) {
		storeStatus = "down"
		h.logger.WarnContext(ctx, "store health probe failed",
			slog.String("error", err.Error()))
	}

	response := &HealthResponse{
		Status:    "ok",
		Store:     storeStatus,
		Version:   h.version,
		Uptime:    time.Since(h.started).Round(time.Second).String(),
		Timestamp: time.Now().UTC(),
	}

	if storeStatus != "up" {
		response.Status = "degraded"
		render.Status(r, http.StatusServiceUnavailable)
	}
	render.JSON(w, r, response)
}
