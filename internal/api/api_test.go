package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opencourt/courtwatch/internal/cache"
	"github.com/opencourt/courtwatch/internal/dispatch"
	"github.com/opencourt/courtwatch/internal/engine"
	"github.com/opencourt/courtwatch/internal/model"
	"github.com/opencourt/courtwatch/internal/source"
	"github.com/opencourt/courtwatch/internal/store"
	"github.com/opencourt/courtwatch/internal/store/mem"
)

type apiFixture struct {
	server *httptest.Server
	store  store.Store
	cache  *cache.SnapshotCache
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()

	reg := source.NewRegistry()
	require.NoError(t, reg.Register(
		source.Info{ID: "seb-arena", Name: "SEB Arena", BookingSystem: "rest"},
		noopAdapter{}))

	st := mem.New()
	c := cache.New(5 * time.Minute)
	eng := engine.New(engine.Config{}, reg, c, st, dispatch.NewLogDispatcher(zerolog.Nop()), zerolog.Nop())

	router := NewRouter(Deps{
		Registry: reg,
		Cache:    c,
		Store:    st,
		Engine:   eng,
	})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return &apiFixture{server: srv, store: st, cache: c}
}

type noopAdapter struct{}

func (noopAdapter) FetchSnapshot(ctx context.Context, sourceID string, rng source.DateRange) (*model.Snapshot, error) {
	now := time.Now().UTC()
	return &model.Snapshot{
		SourceID:     sourceID,
		CapturedAt:   now,
		From:         now.Truncate(24 * time.Hour),
		To:           now.Truncate(24 * time.Hour).AddDate(0, 0, 7),
		SlotsByCourt: map[string][]model.Slot{},
	}, nil
}

func (f *apiFixture) get(t *testing.T, path string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Get(f.server.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	return resp, buf.Bytes()
}

func (f *apiFixture) post(t *testing.T, path string, payload interface{}) (*http.Response, []byte) {
	t.Helper()
	var body bytes.Buffer
	if payload != nil {
		require.NoError(t, json.NewEncoder(&body).Encode(payload))
	}
	resp, err := http.Post(f.server.URL+path, "application/json", &body)
	require.NoError(t, err)
	defer resp.Body.Close()
	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	return resp, buf.Bytes()
}

func validCreatePayload() map[string]interface{} {
	return map[string]interface{}{
		"ownerId": "owner-1",
		"email":   "player@example.com",
		"sourcePreferences": []map[string]interface{}{
			{"sourceId": "seb-arena"},
		},
		"preferredTimes": []map[string]interface{}{
			{"dayOfWeek": 1, "startTime": "09:00", "endTime": "12:00"},
		},
	}
}

func createSubscription(t *testing.T, f *apiFixture) model.Subscription {
	resp, body := f.post(t, "/v0/subscriptions", validCreatePayload())
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var sub model.Subscription
	require.NoError(t, json.Unmarshal(body, &sub))
	return sub
}

func TestListSources(t *testing.T) {
	f := newAPIFixture(t)
	resp, body := f.get(t, "/v0/sources")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		Sources []struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"sources"`
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Equal(t, 1, out.Count)
	require.Len(t, out.Sources, 1)
	assert.Equal(t, "seb-arena", out.Sources[0].ID)
	assert.Equal(t, "SEB Arena", out.Sources[0].Name)
}

func TestGetAvailabilityUnknownSource(t *testing.T) {
	f := newAPIFixture(t)
	resp, _ := f.get(t, "/v0/sources/nope/availability")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGetAvailabilityColdCache(t *testing.T) {
	f := newAPIFixture(t)
	resp, _ := f.get(t, "/v0/sources/seb-arena/availability")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestGetAvailabilityServesCachedSnapshot(t *testing.T) {
	f := newAPIFixture(t)
	now := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	f.cache.Promote(&model.Snapshot{
		SourceID:   "seb-arena",
		CapturedAt: now,
		From:       now.Truncate(24 * time.Hour),
		To:         now.Truncate(24 * time.Hour).AddDate(0, 0, 7),
		SlotsByCourt: map[string][]model.Slot{
			"court-1": {{CourtID: "court-1", Start: now.Add(2 * time.Hour), End: now.Add(3 * time.Hour), Status: model.StatusOpen}},
		},
	})

	resp, body := f.get(t, "/v0/sources/seb-arena/availability")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out availabilityResponse
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Equal(t, "seb-arena", out.Source.ID)
	assert.False(t, out.Stale)
	require.NotNil(t, out.Snapshot)
	assert.Contains(t, out.Snapshot.SlotsByCourt, "court-1")
}

func TestGetAvailabilityFilters(t *testing.T) {
	f := newAPIFixture(t)
	now := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	f.cache.Promote(&model.Snapshot{
		SourceID:   "seb-arena",
		CapturedAt: now,
		From:       now.Truncate(24 * time.Hour),
		To:         now.Truncate(24 * time.Hour).AddDate(0, 0, 7),
		SlotsByCourt: map[string][]model.Slot{
			"court-1": {
				{CourtID: "court-1", Start: now.Add(1 * time.Hour), End: now.Add(2 * time.Hour), Status: model.StatusOpen},
				{CourtID: "court-1", Start: now.Add(2 * time.Hour), End: now.Add(3 * time.Hour), Status: model.StatusBooked},
			},
			"court-2": {
				{CourtID: "court-2", Start: now.Add(1 * time.Hour), End: now.Add(2 * time.Hour), Status: model.StatusOpen},
			},
		},
	})

	t.Run("by court", func(t *testing.T) {
		resp, body := f.get(t, "/v0/sources/seb-arena/availability?courtId=court-2")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var out availabilityResponse
		require.NoError(t, json.Unmarshal(body, &out))
		assert.Len(t, out.Snapshot.SlotsByCourt, 1)
		assert.Contains(t, out.Snapshot.SlotsByCourt, "court-2")
	})

	t.Run("by status", func(t *testing.T) {
		resp, body := f.get(t, "/v0/sources/seb-arena/availability?status=open")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var out availabilityResponse
		require.NoError(t, json.Unmarshal(body, &out))
		require.Len(t, out.Snapshot.SlotsByCourt["court-1"], 1)
		assert.Equal(t, model.StatusOpen, out.Snapshot.SlotsByCourt["court-1"][0].Status)
	})

	t.Run("by time range", func(t *testing.T) {
		from := now.Add(130 * time.Minute).Format(time.RFC3339)
		to := now.Add(150 * time.Minute).Format(time.RFC3339)
		resp, body := f.get(t, "/v0/sources/seb-arena/availability?from="+from+"&to="+to)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var out availabilityResponse
		require.NoError(t, json.Unmarshal(body, &out))
		require.Len(t, out.Snapshot.SlotsByCourt["court-1"], 1)
		assert.Equal(t, model.StatusBooked, out.Snapshot.SlotsByCourt["court-1"][0].Status)
		assert.Empty(t, out.Snapshot.SlotsByCourt["court-2"])
	})

	t.Run("bad status", func(t *testing.T) {
		resp, _ := f.get(t, "/v0/sources/seb-arena/availability?status=maybe")
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("inverted range", func(t *testing.T) {
		from := now.Add(3 * time.Hour).Format(time.RFC3339)
		to := now.Add(1 * time.Hour).Format(time.RFC3339)
		resp, _ := f.get(t, "/v0/sources/seb-arena/availability?from="+from+"&to="+to)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestGetAvailabilityStaleMarker(t *testing.T) {
	f := newAPIFixture(t)
	now := time.Now().UTC()
	f.cache.Promote(&model.Snapshot{
		SourceID:     "seb-arena",
		CapturedAt:   now,
		From:         now.Truncate(24 * time.Hour),
		To:           now.Truncate(24 * time.Hour).AddDate(0, 0, 7),
		SlotsByCourt: map[string][]model.Slot{},
	})
	f.cache.RecordFailure("seb-arena")

	resp, body := f.get(t, "/v0/sources/seb-arena/availability")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out availabilityResponse
	require.NoError(t, json.Unmarshal(body, &out))
	assert.True(t, out.Stale)
}

func TestCreateSubscription(t *testing.T) {
	f := newAPIFixture(t)
	sub := createSubscription(t, f)

	assert.NotEmpty(t, sub.ID)
	assert.Equal(t, model.SubscriptionActive, sub.Status)
	assert.Equal(t, 60, sub.MinSlotDurationMinutes)
	assert.Equal(t, 3, sub.MaxNotificationsPerDay)
	assert.Equal(t, 24, sub.NotificationFrequencyHours)
	require.NotNil(t, sub.ExpiryDate)
}

func TestCreateSubscriptionValidation(t *testing.T) {
	f := newAPIFixture(t)

	tests := []struct {
		name   string
		mutate func(map[string]interface{})
	}{
		{"missing email", func(p map[string]interface{}) { delete(p, "email") }},
		{"bad email", func(p map[string]interface{}) { p["email"] = "not-an-email" }},
		{"no sources", func(p map[string]interface{}) { p["sourcePreferences"] = []interface{}{} }},
		{"unknown source", func(p map[string]interface{}) {
			p["sourcePreferences"] = []map[string]interface{}{{"sourceId": "nope"}}
		}},
		{"no preferred times", func(p map[string]interface{}) { p["preferredTimes"] = []interface{}{} }},
		{"bad day of week", func(p map[string]interface{}) {
			p["preferredTimes"] = []map[string]interface{}{{"dayOfWeek": 7, "startTime": "09:00", "endTime": "12:00"}}
		}},
		{"bad clock time", func(p map[string]interface{}) {
			p["preferredTimes"] = []map[string]interface{}{{"dayOfWeek": 1, "startTime": "25:00", "endTime": "26:00"}}
		}},
		{"start after end", func(p map[string]interface{}) {
			p["preferredTimes"] = []map[string]interface{}{{"dayOfWeek": 1, "startTime": "12:00", "endTime": "09:00"}}
		}},
		{"duration out of range", func(p map[string]interface{}) { p["minSlotDurationMinutes"] = 10 }},
		{"daily cap out of range", func(p map[string]interface{}) { p["maxNotificationsPerDay"] = 11 }},
		{"frequency out of range", func(p map[string]interface{}) { p["notificationFrequencyHours"] = 200 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload := validCreatePayload()
			tt.mutate(payload)
			resp, _ := f.post(t, "/v0/subscriptions", payload)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}
}

func TestGetSubscription(t *testing.T) {
	f := newAPIFixture(t)
	sub := createSubscription(t, f)

	resp, body := f.get(t, "/v0/subscriptions/"+sub.ID)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got model.Subscription
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, sub.ID, got.ID)
}

func TestGetSubscriptionNotFound(t *testing.T) {
	f := newAPIFixture(t)
	resp, _ := f.get(t, "/v0/subscriptions/11111111-2222-3333-4444-555555555555")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestListOwnerSubscriptions(t *testing.T) {
	f := newAPIFixture(t)
	createSubscription(t, f)
	createSubscription(t, f)

	resp, body := f.get(t, "/v0/owners/owner-1/subscriptions")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Equal(t, 2, out.Count)
}

func TestSubscriptionLifecycle(t *testing.T) {
	f := newAPIFixture(t)
	sub := createSubscription(t, f)

	resp, body := f.post(t, fmt.Sprintf("/v0/subscriptions/%s/pause", sub.ID), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var got model.Subscription
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, model.SubscriptionPaused, got.Status)

	// Pausing a paused subscription conflicts.
	resp, _ = f.post(t, fmt.Sprintf("/v0/subscriptions/%s/pause", sub.ID), nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, body = f.post(t, fmt.Sprintf("/v0/subscriptions/%s/resume", sub.ID), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, model.SubscriptionActive, got.Status)

	resp, body = f.post(t, fmt.Sprintf("/v0/subscriptions/%s/cancel", sub.ID), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, model.SubscriptionCancelled, got.Status)

	// Cancelled is terminal.
	resp, _ = f.post(t, fmt.Sprintf("/v0/subscriptions/%s/resume", sub.ID), nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestSubscriptionHistory(t *testing.T) {
	f := newAPIFixture(t)
	sub := createSubscription(t, f)

	rec := &model.NotificationRecord{
		ID:             "22222222-3333-4444-5555-666666666666",
		SubscriptionID: sub.ID,
		SentAt:         time.Now().UTC(),
		Windows: []model.ConsolidatedWindow{
			{SourceID: "seb-arena", CourtID: "court-1", Start: time.Now().UTC(), End: time.Now().UTC().Add(time.Hour)},
		},
	}
	require.NoError(t, f.store.Notifications().Append(context.Background(), rec))

	resp, body := f.get(t, fmt.Sprintf("/v0/subscriptions/%s/notifications", sub.ID))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		Notifications []model.NotificationRecord `json:"notifications"`
		Count         int                        `json:"count"`
	}
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Equal(t, 1, out.Count)
	require.Len(t, out.Notifications, 1)
	assert.Equal(t, rec.ID, out.Notifications[0].ID)
}

func TestSubscriptionHistoryBadSince(t *testing.T) {
	f := newAPIFixture(t)
	sub := createSubscription(t, f)
	resp, _ := f.get(t, fmt.Sprintf("/v0/subscriptions/%s/notifications?since=yesterday", sub.ID))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAdminCycleAndStats(t *testing.T) {
	f := newAPIFixture(t)

	resp, body := f.post(t, "/v0/admin/cycle", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var cycleOut struct {
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(body, &cycleOut))
	assert.Equal(t, "ok", cycleOut.Status)

	resp, body = f.get(t, "/v0/admin/stats")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var stats model.EngineStats
	require.NoError(t, json.Unmarshal(body, &stats))
	assert.Equal(t, int64(1), stats.TotalCycles)
	assert.Equal(t, 1, stats.SourcesTracked)
}

func TestAdminPrune(t *testing.T) {
	f := newAPIFixture(t)
	sub := createSubscription(t, f)

	old := &model.NotificationRecord{
		ID:             "33333333-4444-5555-6666-777777777777",
		SubscriptionID: sub.ID,
		SentAt:         time.Now().UTC().AddDate(0, 0, -120),
	}
	require.NoError(t, f.store.Notifications().Append(context.Background(), old))

	resp, body := f.post(t, "/v0/admin/notifications/prune?olderThanDays=90", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out struct {
		Removed int64 `json:"removed"`
	}
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Equal(t, int64(1), out.Removed)

	resp, _ = f.post(t, "/v0/admin/notifications/prune?olderThanDays=-3", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHealthEndpoint(t *testing.T) {
	f := newAPIFixture(t)
	resp, _ := f.get(t, "/v0/health")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = f.get(t, "/v0/health/db")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
