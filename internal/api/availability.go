// Package api exposes the HTTP surface: availability reads, subscription
// management, admin operations, and health probes.
package api

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/opencourt/courtwatch/internal/api/respond"
	"github.com/opencourt/courtwatch/internal/cache"
	"github.com/opencourt/courtwatch/internal/model"
	"github.com/opencourt/courtwatch/internal/source"
)

// AvailabilityHandler serves cached availability. It never triggers a fetch;
// reads always come from whatever the refresh engine last promoted.
type AvailabilityHandler struct {
	reg   *source.Registry
	cache *cache.SnapshotCache
}

func NewAvailabilityHandler(reg *source.Registry, c *cache.SnapshotCache) *AvailabilityHandler {
	return &AvailabilityHandler{reg: reg, cache: c}
}

type sourceResponse struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	BookingSystem string `json:"bookingSystem"`
}

// ListSources returns every configured source.
func (h *AvailabilityHandler) ListSources(w http.ResponseWriter, r *http.Request) {
	infos := h.reg.List()
	out := make([]sourceResponse, 0, len(infos))
	for _, info := range infos {
		out = append(out, sourceResponse{ID: info.ID, Name: info.Name, BookingSystem: info.BookingSystem})
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{"sources": out, "count": len(out)})
}

type availabilityResponse struct {
	Source      sourceResponse  `json:"source"`
	Snapshot    *model.Snapshot `json:"snapshot"`
	Stale       bool            `json:"stale"`
	LastRefresh time.Time       `json:"lastRefresh"`
}

// GetAvailability returns the cached snapshot for one source, with a
// staleness marker. 503 until the first successful refresh.
func (h *AvailabilityHandler) GetAvailability(w http.ResponseWriter, r *http.Request) {
	sourceID := mux.Vars(r)["sourceId"]

	info, ok := h.reg.Info(sourceID)
	if !ok {
		respond.WriteNotFound(w, "unknown source: "+sourceID)
		return
	}

	cached, ok := h.cache.Get(sourceID)
	if !ok {
		respond.WriteServiceUnavailable(w, "no snapshot yet for source: "+sourceID)
		return
	}

	filter, err := parseSlotFilter(r.URL.Query())
	if err != nil {
		respond.WriteBadRequest(w, err.Error())
		return
	}

	respond.WriteJSON(w, http.StatusOK, availabilityResponse{
		Source:      sourceResponse{ID: info.ID, Name: info.Name, BookingSystem: info.BookingSystem},
		Snapshot:    filter.apply(cached.Snapshot),
		Stale:       cached.Stale,
		LastRefresh: cached.LastRefresh,
	})
}

// slotFilter narrows a cached snapshot to the caller's view. Zero value
// passes everything through.
type slotFilter struct {
	courtID string
	status  model.SlotStatus
	from    time.Time
	to      time.Time
}

func parseSlotFilter(q url.Values) (slotFilter, error) {
	var f slotFilter
	f.courtID = q.Get("courtId")
	if s := q.Get("status"); s != "" {
		st := model.SlotStatus(strings.ToUpper(s))
		if st != model.StatusOpen && st != model.StatusBooked && st != model.StatusUnknown {
			return f, fmt.Errorf("invalid status: %s", s)
		}
		f.status = st
	}
	for _, p := range []struct {
		name string
		dst  *time.Time
	}{{"from", &f.from}, {"to", &f.to}} {
		if v := q.Get(p.name); v != "" {
			t, err := time.Parse(time.RFC3339, v)
			if err != nil {
				return f, fmt.Errorf("invalid %s: %s", p.name, v)
			}
			*p.dst = t
		}
	}
	if !f.from.IsZero() && !f.to.IsZero() && !f.from.Before(f.to) {
		return f, fmt.Errorf("from must precede to")
	}
	return f, nil
}

func (f slotFilter) isZero() bool {
	return f.courtID == "" && f.status == "" && f.from.IsZero() && f.to.IsZero()
}

func (f slotFilter) keeps(sl model.Slot) bool {
	if f.status != "" && sl.Status != f.status {
		return false
	}
	if !f.from.IsZero() && !sl.End.After(f.from) {
		return false
	}
	if !f.to.IsZero() && !sl.Start.Before(f.to) {
		return false
	}
	return true
}

// apply returns a narrowed copy. The cached snapshot is shared with the
// refresh engine and must not be mutated.
func (f slotFilter) apply(snap *model.Snapshot) *model.Snapshot {
	if f.isZero() || snap == nil {
		return snap
	}
	out := *snap
	out.SlotsByCourt = make(map[string][]model.Slot, len(snap.SlotsByCourt))
	for courtID, slots := range snap.SlotsByCourt {
		if f.courtID != "" && courtID != f.courtID {
			continue
		}
		kept := make([]model.Slot, 0, len(slots))
		for _, sl := range slots {
			if f.keeps(sl) {
				kept = append(kept, sl)
			}
		}
		out.SlotsByCourt[courtID] = kept
	}
	return &out
}
