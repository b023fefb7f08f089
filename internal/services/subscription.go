// Package services orchestrates store operations for the owner-facing API.
package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/opencourt/courtwatch/internal/api/validate"
	"github.com/opencourt/courtwatch/internal/model"
	"github.com/opencourt/courtwatch/internal/source"
	"github.com/opencourt/courtwatch/internal/store"
)

// Default alert settings applied when a create request omits them.
const (
	DefaultMinSlotDurationMinutes     = 60
	DefaultMaxNotificationsPerDay     = 3
	DefaultNotificationFrequencyHours = 24
	DefaultExpiryDays                 = 365
)

// SubscriptionService owns subscription lifecycle on behalf of users.
// The engine never goes through here; it reads the store directly.
type SubscriptionService struct {
	store store.Store
	reg   *source.Registry
	now   func() time.Time
}

func NewSubscriptionService(st store.Store, reg *source.Registry) *SubscriptionService {
	return &SubscriptionService{store: st, reg: reg, now: time.Now}
}

// Create validates, applies defaults, and persists a new subscription.
func (s *SubscriptionService) Create(ctx context.Context, sub *model.Subscription) (*model.Subscription, error) {
	if sub.MinSlotDurationMinutes == 0 {
		sub.MinSlotDurationMinutes = DefaultMinSlotDurationMinutes
	}
	if sub.MaxNotificationsPerDay == 0 {
		sub.MaxNotificationsPerDay = DefaultMaxNotificationsPerDay
	}
	if sub.NotificationFrequencyHours == 0 {
		sub.NotificationFrequencyHours = DefaultNotificationFrequencyHours
	}
	if err := validate.Subscription(sub); err != nil {
		return nil, err
	}
	for _, p := range sub.SourcePreferences {
		if _, ok := s.reg.Info(p.SourceID); !ok {
			return nil, fmt.Errorf("%w: unknown source %q", model.ErrValidation, p.SourceID)
		}
	}

	sub.ID = uuid.NewString()
	sub.Status = model.SubscriptionActive
	sub.CreationTime = s.now().UTC()
	if sub.ExpiryDate == nil {
		exp := sub.CreationTime.AddDate(0, 0, DefaultExpiryDays)
		sub.ExpiryDate = &exp
	}
	return s.store.Subscriptions().Create(ctx, sub)
}

// Get returns one subscription by ID.
func (s *SubscriptionService) Get(ctx context.Context, id string) (*model.Subscription, error) {
	return s.store.Subscriptions().Get(ctx, id)
}

// ListByOwner returns all of one owner's subscriptions, any status.
func (s *SubscriptionService) ListByOwner(ctx context.Context, ownerID string) ([]*model.Subscription, error) {
	return s.store.Subscriptions().ListByOwner(ctx, ownerID)
}

// Pause suspends alerting for an active subscription.
func (s *SubscriptionService) Pause(ctx context.Context, id string) error {
	return s.transition(ctx, id, model.SubscriptionPaused, model.SubscriptionActive)
}

// Resume reactivates a paused subscription.
func (s *SubscriptionService) Resume(ctx context.Context, id string) error {
	return s.transition(ctx, id, model.SubscriptionActive, model.SubscriptionPaused)
}

// Cancel permanently retires a subscription. The record is kept for audit;
// nothing ever deletes it.
func (s *SubscriptionService) Cancel(ctx context.Context, id string) error {
	return s.transition(ctx, id, model.SubscriptionCancelled,
		model.SubscriptionActive, model.SubscriptionPaused, model.SubscriptionExpired)
}

func (s *SubscriptionService) transition(ctx context.Context, id string, to model.SubscriptionStatus, from ...model.SubscriptionStatus) error {
	sub, err := s.store.Subscriptions().Get(ctx, id)
	if err != nil {
		return err
	}
	allowed := false
	for _, st := range from {
		if sub.Status == st {
			allowed = true
			break
		}
	}
	if !allowed {
		return fmt.Errorf("%w: cannot move subscription from %s to %s", model.ErrConflict, sub.Status, to)
	}
	return s.store.Subscriptions().UpdateStatus(ctx, id, to)
}

// History returns the notification records for a subscription since the
// given time.
func (s *SubscriptionService) History(ctx context.Context, id string, since time.Time) ([]*model.NotificationRecord, error) {
	if _, err := s.store.Subscriptions().Get(ctx, id); err != nil {
		return nil, err
	}
	return s.store.Notifications().Query(ctx, id, since)
}
