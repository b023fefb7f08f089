// Package mem is an in-memory store used by tests and throwaway dev runs.
package mem

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/opencourt/courtwatch/internal/model"
	"github.com/opencourt/courtwatch/internal/store"
)

// New returns an empty in-memory store.
func New() store.Store {
	s := &memStore{
		subs: make(map[string]*model.Subscription),
	}
	s.subscriptions = &subscriptions{s: s}
	s.notifications = &notifications{s: s}
	return s
}

type memStore struct {
	mu      sync.RWMutex
	subs    map[string]*model.Subscription
	records []*model.NotificationRecord

	subscriptions *subscriptions
	notifications *notifications
}

func (s *memStore) Subscriptions() store.Subscriptions { return s.subscriptions }
func (s *memStore) Notifications() store.Notifications { return s.notifications }
func (s *memStore) Ping(context.Context) error         { return nil }
func (s *memStore) Close() error                       { return nil }

type subscriptions struct{ s *memStore }

func (r *subscriptions) Create(_ context.Context, sub *model.Subscription) (*model.Subscription, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, exists := r.s.subs[sub.ID]; exists {
		return nil, model.ErrConflict
	}
	cp := cloneSub(sub)
	r.s.subs[sub.ID] = cp
	return cloneSub(cp), nil
}

func (r *subscriptions) Get(_ context.Context, id string) (*model.Subscription, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	sub, ok := r.s.subs[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	return cloneSub(sub), nil
}

func (r *subscriptions) ListByOwner(_ context.Context, ownerID string) ([]*model.Subscription, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []*model.Subscription
	for _, sub := range r.s.subs {
		if sub.OwnerID == ownerID {
			out = append(out, cloneSub(sub))
		}
	}
	sortSubs(out)
	return out, nil
}

func (r *subscriptions) ListActive(_ context.Context) ([]*model.Subscription, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []*model.Subscription
	for _, sub := range r.s.subs {
		if sub.Status == model.SubscriptionActive {
			out = append(out, cloneSub(sub))
		}
	}
	sortSubs(out)
	return out, nil
}

func (r *subscriptions) UpdateStatus(_ context.Context, id string, status model.SubscriptionStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sub, ok := r.s.subs[id]
	if !ok {
		return model.ErrNotFound
	}
	sub.Status = status
	return nil
}

type notifications struct{ s *memStore }

func (r *notifications) Append(_ context.Context, rec *model.NotificationRecord) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cp := *rec
	cp.Windows = append([]model.ConsolidatedWindow(nil), rec.Windows...)
	r.s.records = append(r.s.records, &cp)
	return nil
}

func (r *notifications) Query(_ context.Context, subscriptionID string, since time.Time) ([]*model.NotificationRecord, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []*model.NotificationRecord
	for _, rec := range r.s.records {
		if rec.SubscriptionID != subscriptionID || rec.SentAt.Before(since) {
			continue
		}
		cp := *rec
		cp.Windows = append([]model.ConsolidatedWindow(nil), rec.Windows...)
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SentAt.Before(out[j].SentAt) })
	return out, nil
}

func (r *notifications) Prune(_ context.Context, before time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	kept := r.s.records[:0]
	var pruned int64
	for _, rec := range r.s.records {
		if rec.SentAt.Before(before) {
			pruned++
			continue
		}
		kept = append(kept, rec)
	}
	r.s.records = kept
	return pruned, nil
}

func cloneSub(s *model.Subscription) *model.Subscription {
	cp := *s
	cp.SourcePreferences = append([]model.SourcePreference(nil), s.SourcePreferences...)
	cp.PreferredTimes = append([]model.PreferredTime(nil), s.PreferredTimes...)
	if s.ExpiryDate != nil {
		t := *s.ExpiryDate
		cp.ExpiryDate = &t
	}
	return &cp
}

func sortSubs(subs []*model.Subscription) {
	sort.Slice(subs, func(i, j int) bool { return subs[i].ID < subs[j].ID })
}
