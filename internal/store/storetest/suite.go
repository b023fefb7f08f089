// Package storetest is a conformance suite run against every store driver.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opencourt/courtwatch/internal/model"
	"github.com/opencourt/courtwatch/internal/store"
)

// Factory builds a fresh empty store for one subtest.
type Factory func(t *testing.T) store.Store

// Run exercises the full Store contract against the given driver.
func Run(t *testing.T, newStore Factory) {
	t.Run("CreateAndGetSubscription", func(t *testing.T) { testCreateAndGet(t, newStore(t)) })
	t.Run("GetMissingSubscription", func(t *testing.T) { testGetMissing(t, newStore(t)) })
	t.Run("CreateDuplicateConflicts", func(t *testing.T) { testCreateDuplicate(t, newStore(t)) })
	t.Run("ListByOwner", func(t *testing.T) { testListByOwner(t, newStore(t)) })
	t.Run("ListActiveFiltersStatus", func(t *testing.T) { testListActive(t, newStore(t)) })
	t.Run("UpdateStatus", func(t *testing.T) { testUpdateStatus(t, newStore(t)) })
	t.Run("UpdateStatusMissing", func(t *testing.T) { testUpdateStatusMissing(t, newStore(t)) })
	t.Run("NotificationAppendAndQuery", func(t *testing.T) { testNotifications(t, newStore(t)) })
	t.Run("NotificationQuerySinceFilter", func(t *testing.T) { testQuerySince(t, newStore(t)) })
	t.Run("NotificationPrune", func(t *testing.T) { testPrune(t, newStore(t)) })
	t.Run("Ping", func(t *testing.T) {
		st := newStore(t)
		assert.NoError(t, st.Ping(context.Background()))
	})
}

func sampleSub(ownerID string) *model.Subscription {
	expiry := time.Date(2027, 3, 10, 0, 0, 0, 0, time.UTC)
	return &model.Subscription{
		ID:      uuid.NewString(),
		OwnerID: ownerID,
		Email:   "player@example.com",
		SourcePreferences: []model.SourcePreference{
			{SourceID: "seb-arena", CourtIDs: []string{"court-1"}},
			{SourceID: "lingiana"},
		},
		PreferredTimes: []model.PreferredTime{
			{DayOfWeek: 1, StartTime: "09:00", EndTime: "12:00"},
			{DayOfWeek: 5, StartTime: "18:00", EndTime: "21:00"},
		},
		MinSlotDurationMinutes:     60,
		ExpiryDate:                 &expiry,
		MaxNotificationsPerDay:     3,
		NotificationFrequencyHours: 24,
		Status:                     model.SubscriptionActive,
		CreationTime:               time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC),
	}
}

func sampleRecord(subID string, sentAt time.Time) *model.NotificationRecord {
	return &model.NotificationRecord{
		ID:             uuid.NewString(),
		SubscriptionID: subID,
		SentAt:         sentAt,
		Windows: []model.ConsolidatedWindow{
			{SourceID: "seb-arena", CourtID: "court-1", Start: sentAt.Add(2 * time.Hour), End: sentAt.Add(3 * time.Hour)},
		},
	}
}

func testCreateAndGet(t *testing.T, st store.Store) {
	ctx := context.Background()
	sub := sampleSub("owner-1")

	created, err := st.Subscriptions().Create(ctx, sub)
	require.NoError(t, err)
	assert.Equal(t, sub.ID, created.ID)

	got, err := st.Subscriptions().Get(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, sub.OwnerID, got.OwnerID)
	assert.Equal(t, sub.Email, got.Email)
	assert.Equal(t, sub.SourcePreferences, got.SourcePreferences)
	assert.Equal(t, sub.PreferredTimes, got.PreferredTimes)
	assert.Equal(t, sub.MinSlotDurationMinutes, got.MinSlotDurationMinutes)
	assert.Equal(t, sub.MaxNotificationsPerDay, got.MaxNotificationsPerDay)
	assert.Equal(t, sub.NotificationFrequencyHours, got.NotificationFrequencyHours)
	assert.Equal(t, model.SubscriptionActive, got.Status)
	require.NotNil(t, got.ExpiryDate)
	assert.True(t, got.ExpiryDate.Equal(*sub.ExpiryDate))
	assert.True(t, got.CreationTime.Equal(sub.CreationTime))
}

func testGetMissing(t *testing.T, st store.Store) {
	_, err := st.Subscriptions().Get(context.Background(), uuid.NewString())
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func testCreateDuplicate(t *testing.T, st store.Store) {
	ctx := context.Background()
	sub := sampleSub("owner-1")
	_, err := st.Subscriptions().Create(ctx, sub)
	require.NoError(t, err)

	_, err = st.Subscriptions().Create(ctx, sub)
	assert.ErrorIs(t, err, model.ErrConflict)
}

func testListByOwner(t *testing.T, st store.Store) {
	ctx := context.Background()
	a := sampleSub("owner-1")
	b := sampleSub("owner-1")
	c := sampleSub("owner-2")
	for _, sub := range []*model.Subscription{a, b, c} {
		_, err := st.Subscriptions().Create(ctx, sub)
		require.NoError(t, err)
	}

	subs, err := st.Subscriptions().ListByOwner(ctx, "owner-1")
	require.NoError(t, err)
	require.Len(t, subs, 2)
	for _, sub := range subs {
		assert.Equal(t, "owner-1", sub.OwnerID)
	}

	subs, err = st.Subscriptions().ListByOwner(ctx, "owner-3")
	require.NoError(t, err)
	assert.Empty(t, subs)
}

func testListActive(t *testing.T, st store.Store) {
	ctx := context.Background()
	active := sampleSub("owner-1")
	paused := sampleSub("owner-1")
	paused.Status = model.SubscriptionPaused
	for _, sub := range []*model.Subscription{active, paused} {
		_, err := st.Subscriptions().Create(ctx, sub)
		require.NoError(t, err)
	}

	subs, err := st.Subscriptions().ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, active.ID, subs[0].ID)
}

func testUpdateStatus(t *testing.T, st store.Store) {
	ctx := context.Background()
	sub := sampleSub("owner-1")
	_, err := st.Subscriptions().Create(ctx, sub)
	require.NoError(t, err)

	require.NoError(t, st.Subscriptions().UpdateStatus(ctx, sub.ID, model.SubscriptionPaused))

	got, err := st.Subscriptions().Get(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SubscriptionPaused, got.Status)
}

func testUpdateStatusMissing(t *testing.T, st store.Store) {
	err := st.Subscriptions().UpdateStatus(context.Background(), uuid.NewString(), model.SubscriptionPaused)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func testNotifications(t *testing.T, st store.Store) {
	ctx := context.Background()
	sub := sampleSub("owner-1")
	_, err := st.Subscriptions().Create(ctx, sub)
	require.NoError(t, err)

	sentAt := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	rec := sampleRecord(sub.ID, sentAt)
	require.NoError(t, st.Notifications().Append(ctx, rec))

	recs, err := st.Notifications().Query(ctx, sub.ID, time.Time{})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, rec.ID, recs[0].ID)
	assert.True(t, recs[0].SentAt.Equal(sentAt))
	require.Len(t, recs[0].Windows, 1)
	assert.Equal(t, "court-1", recs[0].Windows[0].CourtID)
	assert.True(t, recs[0].Windows[0].Start.Equal(rec.Windows[0].Start))

	// Another subscription's history stays invisible.
	recs, err = st.Notifications().Query(ctx, uuid.NewString(), time.Time{})
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func testQuerySince(t *testing.T, st store.Store) {
	ctx := context.Background()
	sub := sampleSub("owner-1")
	_, err := st.Subscriptions().Create(ctx, sub)
	require.NoError(t, err)

	base := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	old := sampleRecord(sub.ID, base.Add(-48*time.Hour))
	recent := sampleRecord(sub.ID, base)
	require.NoError(t, st.Notifications().Append(ctx, old))
	require.NoError(t, st.Notifications().Append(ctx, recent))

	recs, err := st.Notifications().Query(ctx, sub.ID, base.Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, recent.ID, recs[0].ID)
}

func testPrune(t *testing.T, st store.Store) {
	ctx := context.Background()
	sub := sampleSub("owner-1")
	_, err := st.Subscriptions().Create(ctx, sub)
	require.NoError(t, err)

	base := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	old := sampleRecord(sub.ID, base.Add(-100*24*time.Hour))
	recent := sampleRecord(sub.ID, base)
	require.NoError(t, st.Notifications().Append(ctx, old))
	require.NoError(t, st.Notifications().Append(ctx, recent))

	pruned, err := st.Notifications().Prune(ctx, base.Add(-90*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), pruned)

	recs, err := st.Notifications().Query(ctx, sub.ID, time.Time{})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, recent.ID, recs[0].ID)
}
