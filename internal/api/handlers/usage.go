package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"seopilot/internal/core"
	"seopilot/internal/types"
)

// UsageProvider serves usage snapshots, cached or fresh. Implemented by
// usage.Cache.
type UsageProvider interface {
	Get(ctx context.Context, localUserID string, forceRefresh bool) (*types.UsageSnapshot, error)
}

// UsageHandler exposes the quota counters the plugin dashboard renders.
type UsageHandler struct {
	usage  UsageProvider
	logger *slog.Logger
}

func NewUsageHandler(usage UsageProvider, logger *slog.Logger) *UsageHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &UsageHandler{usage: usage, logger: logger}
}

// RegisterRoutes mounts GET /usage. The optional refresh=1 query parameter
// bypasses the cache TTL.
func (h *UsageHandler) RegisterRoutes(r chi.Router) {
	r.Get("/usage", h.HandleGetUsage)
}

func (h *UsageHandler) HandleGetUsage(w http.ResponseWriter, r *http.Request) {
	actor, ok := core.RequireActor(w, r)
	if !ok {
		return
	}

	forceRefresh := r.URL.Query().Get("refresh") == "1"

	snap, err := h.usage.Get(r.Context(), actor.LocalUserID, forceRefresh)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: snap})
}
