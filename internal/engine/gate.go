package engine

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/opencourt/courtwatch/internal/model"
	"github.com/opencourt/courtwatch/internal/store"
)

// Decision is the outcome of gate admission for one match.
type Decision int

const (
	Send Decision = iota
	Suppress
)

// Gate decides, per match, whether an alert goes out. It is the
// correctness-critical piece: feeding the same snapshot pair through the
// pipeline twice must not double-send once the first pass's record is
// committed. Dedup keys on window overlap rather than exact equality, so a
// slightly shifted re-detected window still suppresses.
type Gate struct {
	store store.Store
	now   func() time.Time
}

// NewGate builds a gate over the notification record log.
func NewGate(st store.Store) *Gate {
	return &Gate{store: st, now: time.Now}
}

// Admit applies the suppression policy, in order:
//
//  1. Suppress when a record within the subscription's frequency window
//     covers a window overlapping the candidate.
//  2. Suppress when the subscription already reached its daily cap.
//
// Otherwise the match is admitted. Admitted matches for one subscription in
// one cycle are coalesced by the engine into a single digest.
func (g *Gate) Admit(ctx context.Context, m Match) (Decision, error) {
	sub := m.Subscription
	now := g.now()

	freq := time.Duration(sub.NotificationFrequencyHours) * time.Hour
	dayStart := startOfDay(now)
	since := now.Add(-freq)
	if dayStart.Before(since) {
		since = dayStart
	}

	recs, err := g.store.Notifications().Query(ctx, sub.ID, since)
	if err != nil {
		// Prefer under-delivery over double-sending when history is
		// unreadable.
		return Suppress, err
	}

	sentToday := 0
	for _, rec := range recs {
		if !rec.SentAt.Before(dayStart) {
			sentToday++
		}
		if now.Sub(rec.SentAt) > freq {
			continue
		}
		for _, w := range rec.Windows {
			if w.Overlaps(m.Window) {
				return Suppress, nil
			}
		}
	}
	if sub.MaxNotificationsPerDay > 0 && sentToday >= sub.MaxNotificationsPerDay {
		return Suppress, nil
	}
	return Send, nil
}

// Record commits one notification record covering every window of a digest.
// The whole digest counts as a single entry against the daily cap. The
// record is written before dispatch; a dispatch failure never rolls it back.
func (g *Gate) Record(ctx context.Context, subscriptionID string, windows []model.ConsolidatedWindow) (*model.NotificationRecord, error) {
	rec := &model.NotificationRecord{
		ID:             uuid.NewString(),
		SubscriptionID: subscriptionID,
		SentAt:         g.now(),
		Windows:        windows,
	}
	if err := g.store.Notifications().Append(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// startOfDay truncates to the calendar day in UTC; daily caps are counted
// against UTC days.
func startOfDay(t time.Time) time.Time {
	u := t.UTC()
	y, m, d := u.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
