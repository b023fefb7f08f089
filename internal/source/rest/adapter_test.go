package rest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opencourt/courtwatch/internal/model"
	"github.com/opencourt/courtwatch/internal/source"
)

func testRange() source.DateRange {
	from := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	return source.DateRange{From: from, To: from.AddDate(0, 0, 7)}
}

func TestFetchSnapshotSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/availability", r.URL.Path)
		assert.Equal(t, "2026-03-10", r.URL.Query().Get("from"))
		assert.Equal(t, "2026-03-17", r.URL.Query().Get("to"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"courts": [
				{"id": "court-1", "slots": [
					{"start": "2026-03-10T10:00:00Z", "end": "2026-03-10T11:00:00Z", "status": "OPEN", "price": 25.5, "currency": "EUR"},
					{"start": "2026-03-10T11:00:00Z", "end": "2026-03-10T12:00:00Z", "status": "BOOKED"}
				]}
			]
		}`))
	}))
	defer srv.Close()

	a := New(Config{BaseURL: srv.URL}, zerolog.Nop())
	snap, err := a.FetchSnapshot(context.Background(), "seb-arena", testRange())
	require.NoError(t, err)

	assert.Equal(t, "seb-arena", snap.SourceID)
	assert.False(t, snap.CapturedAt.IsZero())
	require.Contains(t, snap.SlotsByCourt, "court-1")
	slots := snap.SlotsByCourt["court-1"]
	require.Len(t, slots, 2)
	assert.Equal(t, model.StatusOpen, slots[0].Status)
	require.NotNil(t, slots[0].Price)
	assert.Equal(t, 25.5, *slots[0].Price)
	assert.Equal(t, "EUR", slots[0].Currency)
	assert.Equal(t, model.StatusBooked, slots[1].Status)
}

func TestFetchSnapshotSendsAPIKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"courts": []}`))
	}))
	defer srv.Close()

	a := New(Config{BaseURL: srv.URL, APIKey: "secret"}, zerolog.Nop())
	_, err := a.FetchSnapshot(context.Background(), "seb-arena", testRange())
	require.NoError(t, err)
}

func TestFetchSnapshotServerErrorIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	a := New(Config{BaseURL: srv.URL}, zerolog.Nop())
	_, err := a.FetchSnapshot(context.Background(), "seb-arena", testRange())
	require.Error(t, err)
	kind, ok := source.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, source.KindUnavailable, kind)
}

func TestFetchSnapshotClientErrorIsDataInvalid(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no such feed", http.StatusNotFound)
	}))
	defer srv.Close()

	a := New(Config{BaseURL: srv.URL}, zerolog.Nop())
	_, err := a.FetchSnapshot(context.Background(), "seb-arena", testRange())
	require.Error(t, err)
	kind, ok := source.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, source.KindDataInvalid, kind)
}

func TestFetchSnapshotConnectionRefusedIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // refuse all connections

	a := New(Config{BaseURL: srv.URL}, zerolog.Nop())
	_, err := a.FetchSnapshot(context.Background(), "seb-arena", testRange())
	require.Error(t, err)
	kind, ok := source.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, source.KindUnavailable, kind)
}

func TestFetchSnapshotTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		_, _ = w.Write([]byte(`{"courts": []}`))
	}))
	defer srv.Close()

	a := New(Config{BaseURL: srv.URL, Timeout: 20 * time.Millisecond}, zerolog.Nop())
	_, err := a.FetchSnapshot(context.Background(), "seb-arena", testRange())
	require.Error(t, err)
	kind, ok := source.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, source.KindTimeout, kind)
}

func TestFetchSnapshotGarbageBodyIsDataInvalid(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// No JSON content type on purpose.
		_, _ = w.Write([]byte(`<html>maintenance page</html>`))
	}))
	defer srv.Close()

	a := New(Config{BaseURL: srv.URL}, zerolog.Nop())
	_, err := a.FetchSnapshot(context.Background(), "seb-arena", testRange())
	require.Error(t, err)
	kind, ok := source.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, source.KindDataInvalid, kind)
}

func TestFetchSnapshotInvalidStatusRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"courts": [{"id": "court-1", "slots": [
			{"start": "2026-03-10T10:00:00Z", "end": "2026-03-10T11:00:00Z", "status": "MAYBE"}
		]}]}`))
	}))
	defer srv.Close()

	a := New(Config{BaseURL: srv.URL}, zerolog.Nop())
	_, err := a.FetchSnapshot(context.Background(), "seb-arena", testRange())
	require.Error(t, err)
	kind, ok := source.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, source.KindDataInvalid, kind)
}

func TestFetchSnapshotOverlappingSlotsRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"courts": [{"id": "court-1", "slots": [
			{"start": "2026-03-10T10:00:00Z", "end": "2026-03-10T11:00:00Z", "status": "OPEN"},
			{"start": "2026-03-10T10:30:00Z", "end": "2026-03-10T11:30:00Z", "status": "OPEN"}
		]}]}`))
	}))
	defer srv.Close()

	a := New(Config{BaseURL: srv.URL}, zerolog.Nop())
	_, err := a.FetchSnapshot(context.Background(), "seb-arena", testRange())
	require.Error(t, err)
	kind, ok := source.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, source.KindDataInvalid, kind)
}
