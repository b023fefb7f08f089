package store

import (
	"context"
	"time"

	"github.com/opencourt/courtwatch/internal/model"
)

// Store exposes the persistence operations required by the engine and the
// owner-facing API. Implementations live under internal/store/<driver>/.
type Store interface {
	Subscriptions() Subscriptions
	Notifications() Notifications
	Ping(ctx context.Context) error
	Close() error
}

// Subscriptions persists user interest filters. The engine only lists active
// ones and flips ACTIVE to EXPIRED; it never deletes.
type Subscriptions interface {
	Create(ctx context.Context, s *model.Subscription) (*model.Subscription, error)
	Get(ctx context.Context, id string) (*model.Subscription, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*model.Subscription, error)
	ListActive(ctx context.Context) ([]*model.Subscription, error)
	UpdateStatus(ctx context.Context, id string, status model.SubscriptionStatus) error
}

// Notifications is the append-only dispatch audit log used for deduplication
// and rate limiting. Records are never mutated; pruning is an operator
// action, never invoked by the engine.
type Notifications interface {
	Append(ctx context.Context, rec *model.NotificationRecord) error
	Query(ctx context.Context, subscriptionID string, since time.Time) ([]*model.NotificationRecord, error)
	Prune(ctx context.Context, before time.Time) (int64, error)
}
