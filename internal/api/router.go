package api

import (
	"github.com/gorilla/mux"

	"github.com/opencourt/courtwatch/internal/api/recovery"
	"github.com/opencourt/courtwatch/internal/cache"
	"github.com/opencourt/courtwatch/internal/engine"
	"github.com/opencourt/courtwatch/internal/health"
	"github.com/opencourt/courtwatch/internal/services"
	"github.com/opencourt/courtwatch/internal/source"
	"github.com/opencourt/courtwatch/internal/store"
)

// Deps carries everything the HTTP layer needs. The bootstrap wires these
// once at startup.
type Deps struct {
	Registry *source.Registry
	Cache    *cache.SnapshotCache
	Store    store.Store
	Engine   *engine.Engine
	Checker  *health.ServiceHealthChecker
}

// NewRouter builds the full HTTP route table.
func NewRouter(d Deps) *mux.Router {
	router := mux.NewRouter()

	router.Use(recovery.Middleware)

	subService := services.NewSubscriptionService(d.Store, d.Registry)

	availability := NewAvailabilityHandler(d.Registry, d.Cache)
	subscriptions := NewSubscriptionHandler(subService)
	admin := NewAdminHandler(d.Engine, d.Store.Notifications())
	healthHandler := NewHealthHandler(d.Checker, d.Store)

	// Health endpoints
	router.HandleFunc("/v0/health", healthHandler.CheckHealth).Methods("GET")
	router.HandleFunc("/v0/health/db", healthHandler.CheckStoreHealth).Methods("GET")

	// Availability endpoints
	router.HandleFunc("/v0/sources", availability.ListSources).Methods("GET")
	router.HandleFunc("/v0/sources/{sourceId}/availability", availability.GetAvailability).Methods("GET")

	// Subscription endpoints
	router.HandleFunc("/v0/subscriptions", subscriptions.CreateSubscription).Methods("POST")
	router.HandleFunc("/v0/subscriptions/{subscriptionId:[0-9a-fA-F-]{36}}", subscriptions.GetSubscription).Methods("GET")
	router.HandleFunc("/v0/subscriptions/{subscriptionId:[0-9a-fA-F-]{36}}/pause", subscriptions.PauseSubscription).Methods("POST")
	router.HandleFunc("/v0/subscriptions/{subscriptionId:[0-9a-fA-F-]{36}}/resume", subscriptions.ResumeSubscription).Methods("POST")
	router.HandleFunc("/v0/subscriptions/{subscriptionId:[0-9a-fA-F-]{36}}/cancel", subscriptions.CancelSubscription).Methods("POST")
	router.HandleFunc("/v0/subscriptions/{subscriptionId:[0-9a-fA-F-]{36}}/notifications", subscriptions.GetHistory).Methods("GET")
	router.HandleFunc("/v0/owners/{ownerId}/subscriptions", subscriptions.ListSubscriptions).Methods("GET")

	// Admin endpoints
	router.HandleFunc("/v0/admin/cycle", admin.TriggerCycle).Methods("POST")
	router.HandleFunc("/v0/admin/stats", admin.GetStats).Methods("GET")
	router.HandleFunc("/v0/admin/notifications/prune", admin.PruneHistory).Methods("POST")

	return router
}
