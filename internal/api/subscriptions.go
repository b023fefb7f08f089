package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/opencourt/courtwatch/internal/api/respond"
	"github.com/opencourt/courtwatch/internal/model"
	"github.com/opencourt/courtwatch/internal/services"
)

// SubscriptionHandler serves the owner-facing subscription API.
type SubscriptionHandler struct {
	svc *services.SubscriptionService
}

func NewSubscriptionHandler(svc *services.SubscriptionService) *SubscriptionHandler {
	return &SubscriptionHandler{svc: svc}
}

type createSubscriptionRequest struct {
	OwnerID                    string                   `json:"ownerId"`
	Email                      string                   `json:"email"`
	SourcePreferences          []model.SourcePreference `json:"sourcePreferences"`
	PreferredTimes             []model.PreferredTime    `json:"preferredTimes"`
	MinSlotDurationMinutes     int                      `json:"minSlotDurationMinutes"`
	ExpiryDate                 *time.Time               `json:"expiryDate,omitempty"`
	MaxNotificationsPerDay     int                      `json:"maxNotificationsPerDay"`
	NotificationFrequencyHours int                      `json:"notificationFrequencyHours"`
}

// CreateSubscription handles POST /v0/subscriptions.
func (h *SubscriptionHandler) CreateSubscription(w http.ResponseWriter, r *http.Request) {
	var req createSubscriptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteBadRequest(w, "Invalid request body")
		return
	}

	sub, err := h.svc.Create(r.Context(), &model.Subscription{
		OwnerID:                    req.OwnerID,
		Email:                      req.Email,
		SourcePreferences:          req.SourcePreferences,
		PreferredTimes:             req.PreferredTimes,
		MinSlotDurationMinutes:     req.MinSlotDurationMinutes,
		ExpiryDate:                 req.ExpiryDate,
		MaxNotificationsPerDay:     req.MaxNotificationsPerDay,
		NotificationFrequencyHours: req.NotificationFrequencyHours,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusCreated, sub)
}

// GetSubscription handles GET /v0/subscriptions/{subscriptionId}.
func (h *SubscriptionHandler) GetSubscription(w http.ResponseWriter, r *http.Request) {
	sub, err := h.svc.Get(r.Context(), mux.Vars(r)["subscriptionId"])
	if err != nil {
		writeDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, sub)
}

// ListSubscriptions handles GET /v0/owners/{ownerId}/subscriptions.
func (h *SubscriptionHandler) ListSubscriptions(w http.ResponseWriter, r *http.Request) {
	subs, err := h.svc.ListByOwner(r.Context(), mux.Vars(r)["ownerId"])
	if err != nil {
		writeDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{"subscriptions": subs, "count": len(subs)})
}

// PauseSubscription handles POST /v0/subscriptions/{subscriptionId}/pause.
func (h *SubscriptionHandler) PauseSubscription(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, h.svc.Pause)
}

// ResumeSubscription handles POST /v0/subscriptions/{subscriptionId}/resume.
func (h *SubscriptionHandler) ResumeSubscription(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, h.svc.Resume)
}

// CancelSubscription handles POST /v0/subscriptions/{subscriptionId}/cancel.
func (h *SubscriptionHandler) CancelSubscription(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, h.svc.Cancel)
}

func (h *SubscriptionHandler) lifecycle(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, id string) error) {
	id := mux.Vars(r)["subscriptionId"]
	if err := op(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}
	sub, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, sub)
}

// GetHistory handles GET /v0/subscriptions/{subscriptionId}/notifications.
// An optional ?since=RFC3339 parameter bounds the window; the default is the
// last 30 days.
func (h *SubscriptionHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	since := time.Now().UTC().AddDate(0, 0, -30)
	if raw := r.URL.Query().Get("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			respond.WriteBadRequest(w, "invalid since parameter; expected RFC3339")
			return
		}
		since = parsed
	}

	records, err := h.svc.History(r.Context(), mux.Vars(r)["subscriptionId"], since)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{"notifications": records, "count": len(records)})
}

func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, model.ErrNotFound):
		respond.WriteNotFound(w, err.Error())
	case errors.Is(err, model.ErrValidation):
		respond.WriteBadRequest(w, err.Error())
	case errors.Is(err, model.ErrConflict):
		respond.WriteConflict(w, err.Error())
	default:
		respond.WriteInternalError(w, "Internal server error")
	}
}
