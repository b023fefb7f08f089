package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opencourt/courtwatch/internal/model"
	"github.com/opencourt/courtwatch/internal/store/mem"
)

func newTestGate(t *testing.T, now time.Time) *Gate {
	t.Helper()
	g := NewGate(mem.New())
	g.now = func() time.Time { return now }
	return g
}

func matchFor(sub *model.Subscription, w model.ConsolidatedWindow) Match {
	return Match{Subscription: sub, Window: w}
}

func TestGateAdmitsFirstNotification(t *testing.T) {
	g := newTestGate(t, day(8, 0))
	m := matchFor(activeSub("sub-1"), tuesdayWindow(day(10, 0), day(11, 0)))

	decision, err := g.Admit(context.Background(), m)
	require.NoError(t, err)
	assert.Equal(t, Send, decision)
}

func TestGateSuppressesOverlappingWindowWithinFrequency(t *testing.T) {
	g := newTestGate(t, day(8, 0))
	sub := activeSub("sub-1")
	w := tuesdayWindow(day(10, 0), day(11, 0))

	_, err := g.Record(context.Background(), sub.ID, []model.ConsolidatedWindow{w})
	require.NoError(t, err)

	decision, err := g.Admit(context.Background(), matchFor(sub, w))
	require.NoError(t, err)
	assert.Equal(t, Suppress, decision)
}

func TestGateSuppressesShiftedOverlappingWindow(t *testing.T) {
	g := newTestGate(t, day(8, 0))
	sub := activeSub("sub-1")

	_, err := g.Record(context.Background(), sub.ID,
		[]model.ConsolidatedWindow{tuesdayWindow(day(10, 0), day(11, 0))})
	require.NoError(t, err)

	// 10:30-11:30 overlaps the recorded 10:00-11:00.
	decision, err := g.Admit(context.Background(), matchFor(sub, tuesdayWindow(day(10, 30), day(11, 30))))
	require.NoError(t, err)
	assert.Equal(t, Suppress, decision)
}

func TestGateAdmitsDisjointWindow(t *testing.T) {
	g := newTestGate(t, day(8, 0))
	sub := activeSub("sub-1")

	_, err := g.Record(context.Background(), sub.ID,
		[]model.ConsolidatedWindow{tuesdayWindow(day(10, 0), day(11, 0))})
	require.NoError(t, err)

	decision, err := g.Admit(context.Background(), matchFor(sub, tuesdayWindow(day(14, 0), day(15, 0))))
	require.NoError(t, err)
	assert.Equal(t, Send, decision)
}

func TestGateAdmitsOverlapAfterFrequencyWindowPasses(t *testing.T) {
	st := mem.New()
	g := NewGate(st)
	sub := activeSub("sub-1")
	sub.NotificationFrequencyHours = 2
	sub.MaxNotificationsPerDay = 10
	w := tuesdayWindow(day(10, 0), day(11, 0))

	g.now = func() time.Time { return day(8, 0) }
	_, err := g.Record(context.Background(), sub.ID, []model.ConsolidatedWindow{w})
	require.NoError(t, err)

	// Three hours later the frequency window has passed.
	g.now = func() time.Time { return day(11, 0) }
	decision, err := g.Admit(context.Background(), matchFor(sub, w))
	require.NoError(t, err)
	assert.Equal(t, Send, decision)
}

func TestGateEnforcesDailyCap(t *testing.T) {
	st := mem.New()
	g := NewGate(st)
	sub := activeSub("sub-1")
	sub.MaxNotificationsPerDay = 2
	sub.NotificationFrequencyHours = 1

	hour := 6
	g.now = func() time.Time { return day(hour, 0) }

	for i := 0; i < 2; i++ {
		w := tuesdayWindow(day(10+2*i, 0), day(11+2*i, 0))
		decision, err := g.Admit(context.Background(), matchFor(sub, w))
		require.NoError(t, err)
		require.Equal(t, Send, decision)
		_, err = g.Record(context.Background(), sub.ID, []model.ConsolidatedWindow{w})
		require.NoError(t, err)
		hour += 2
	}

	// Cap reached; a third disjoint window on the same day is suppressed.
	decision, err := g.Admit(context.Background(), matchFor(sub, tuesdayWindow(day(18, 0), day(19, 0))))
	require.NoError(t, err)
	assert.Equal(t, Suppress, decision)
}

func TestGateDailyCapResetsAtUTCMidnight(t *testing.T) {
	st := mem.New()
	g := NewGate(st)
	sub := activeSub("sub-1")
	sub.MaxNotificationsPerDay = 1
	sub.NotificationFrequencyHours = 1

	g.now = func() time.Time { return day(22, 0) }
	w := tuesdayWindow(day(10, 0), day(11, 0))
	_, err := g.Record(context.Background(), sub.ID, []model.ConsolidatedWindow{w})
	require.NoError(t, err)

	// Next UTC day, disjoint window.
	g.now = func() time.Time { return day(2, 0).AddDate(0, 0, 1) }
	decision, err := g.Admit(context.Background(), matchFor(sub, tuesdayWindow(day(14, 0).AddDate(0, 0, 1), day(15, 0).AddDate(0, 0, 1))))
	require.NoError(t, err)
	assert.Equal(t, Send, decision)
}

func TestGateRecordCountsDigestOnce(t *testing.T) {
	st := mem.New()
	g := NewGate(st)
	g.now = func() time.Time { return day(8, 0) }
	sub := activeSub("sub-1")
	sub.MaxNotificationsPerDay = 2

	// One digest covering three windows counts as a single record.
	rec, err := g.Record(context.Background(), sub.ID, []model.ConsolidatedWindow{
		tuesdayWindow(day(9, 0), day(10, 0)),
		tuesdayWindow(day(12, 0), day(13, 0)),
		tuesdayWindow(day(15, 0), day(16, 0)),
	})
	require.NoError(t, err)
	require.Len(t, rec.Windows, 3)

	decision, err := g.Admit(context.Background(), matchFor(sub, tuesdayWindow(day(18, 0), day(19, 0))))
	require.NoError(t, err)
	assert.Equal(t, Send, decision)
}

func TestGateSuppressesOnStoreError(t *testing.T) {
	g := NewGate(failingStore{})
	g.now = func() time.Time { return day(8, 0) }

	decision, err := g.Admit(context.Background(), matchFor(activeSub("sub-1"), tuesdayWindow(day(10, 0), day(11, 0))))
	assert.Error(t, err)
	assert.Equal(t, Suppress, decision)
}
