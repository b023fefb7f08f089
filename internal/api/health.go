package api

import (
	"context"
	"net/http"
	"time"

	"github.com/opencourt/courtwatch/internal/api/respond"
	"github.com/opencourt/courtwatch/internal/health"
	"github.com/opencourt/courtwatch/internal/store"
)

// HealthHandler serves liveness and readiness probes.
type HealthHandler struct {
	checker *health.ServiceHealthChecker
	store   store.Store
}

func NewHealthHandler(checker *health.ServiceHealthChecker, st store.Store) *HealthHandler {
	return &HealthHandler{checker: checker, store: st}
}

// CheckHealth handles GET /v0/health. Liveness only.
func (h *HealthHandler) CheckHealth(w http.ResponseWriter, r *http.Request) {
	if h.checker != nil && !h.checker.IsHealthy() {
		respond.WriteServiceUnavailable(w, "service unhealthy")
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// CheckStoreHealth handles GET /v0/health/db with a direct store ping.
func (h *HealthHandler) CheckStoreHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.store.Ping(ctx); err != nil {
		respond.WriteServiceUnavailable(w, "store unreachable")
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}
