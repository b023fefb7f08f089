package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/opencourt/courtwatch/internal/api/respond"
	"github.com/opencourt/courtwatch/internal/engine"
)

// AdminHandler exposes operator endpoints: on-demand cycles, engine stats,
// and history pruning. These sit under /v0/admin and are expected to be
// shielded by the deployment, not by this service.
type AdminHandler struct {
	engine *engine.Engine
	pruner Pruner
}

// Pruner deletes notification records older than a cutoff.
type Pruner interface {
	Prune(ctx context.Context, before time.Time) (int64, error)
}

func NewAdminHandler(eng *engine.Engine, pruner Pruner) *AdminHandler {
	return &AdminHandler{engine: eng, pruner: pruner}
}

// TriggerCycle handles POST /v0/admin/cycle. It runs a full refresh cycle
// synchronously and reports how long it took.
func (h *AdminHandler) TriggerCycle(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	err := h.engine.RunCycle(r.Context())
	elapsed := time.Since(start)

	if err != nil {
		respond.WriteJSON(w, http.StatusOK, map[string]interface{}{
			"status":     "completed_with_errors",
			"durationMs": elapsed.Milliseconds(),
			"error":      err.Error(),
		})
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":     "ok",
		"durationMs": elapsed.Milliseconds(),
	})
}

// GetStats handles GET /v0/admin/stats.
func (h *AdminHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	respond.WriteJSON(w, http.StatusOK, h.engine.Stats())
}

// PruneHistory handles POST /v0/admin/notifications/prune. The cutoff comes
// from ?olderThanDays (default 90).
func (h *AdminHandler) PruneHistory(w http.ResponseWriter, r *http.Request) {
	days := 90
	if raw := r.URL.Query().Get("olderThanDays"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			respond.WriteBadRequest(w, "invalid olderThanDays parameter")
			return
		}
		days = parsed
	}

	before := time.Now().UTC().AddDate(0, 0, -days)
	removed, err := h.pruner.Prune(r.Context(), before)
	if err != nil {
		respond.WriteInternalError(w, "prune failed")
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{"removed": removed, "before": before})
}
