// Package engine implements the availability pipeline: change detection,
// window consolidation, subscription matching, notification gating, and the
// periodic loop that drives the whole thing.
package engine

import (
	"sort"
	"time"

	"github.com/opencourt/courtwatch/internal/model"
)

// Detect diffs two captures of the same source into transition events.
//
// A nil previous snapshot is a baseline capture and emits nothing, so a cold
// start never floods subscribers. Snapshots covering different date ranges or
// court sets are not comparable; detection degrades to a full replace where
// every open slot in the current capture counts as a new opening.
//
// Comparison granularity is the slot boundary exactly as reported by the
// source; no uniform slot length is assumed. Events are returned in ascending
// (courtId, start) order and are deterministic for a given input pair.
func Detect(prev, cur *model.Snapshot, detectedAt time.Time) []model.TransitionEvent {
	if cur == nil {
		return nil
	}
	if prev == nil {
		return nil
	}
	if !comparable(prev, cur) {
		return fullReplace(cur, detectedAt)
	}

	var events []model.TransitionEvent
	for courtID, curSlots := range cur.SlotsByCourt {
		prevSlots := prev.SlotsByCourt[courtID]

		// Openings: portions of currently-open slots that were not open
		// before (booked, unknown, or absent).
		for _, s := range curSlots {
			if s.Status != model.StatusOpen {
				continue
			}
			for _, seg := range uncoveredByOpen(s.Start, s.End, prevSlots) {
				events = append(events, model.TransitionEvent{
					SourceID:   cur.SourceID,
					CourtID:    courtID,
					Start:      seg.start,
					End:        seg.end,
					Kind:       model.TransitionOpened,
					DetectedAt: detectedAt,
				})
			}
		}

		// Closings: portions of previously-open slots that are no longer open.
		for _, s := range prevSlots {
			if s.Status != model.StatusOpen {
				continue
			}
			for _, seg := range uncoveredByOpen(s.Start, s.End, curSlots) {
				events = append(events, model.TransitionEvent{
					SourceID:   cur.SourceID,
					CourtID:    courtID,
					Start:      seg.start,
					End:        seg.end,
					Kind:       model.TransitionClosed,
					DetectedAt: detectedAt,
				})
			}
		}
	}

	sortEvents(events)
	return events
}

type segment struct {
	start time.Time
	end   time.Time
}

// uncoveredByOpen returns the portions of [start, end) not covered by an OPEN
// slot in slots. Slots are the non-overlapping per-court list from one
// snapshot; they need not be sorted.
func uncoveredByOpen(start, end time.Time, slots []model.Slot) []segment {
	open := make([]segment, 0, len(slots))
	for _, s := range slots {
		if s.Status != model.StatusOpen {
			continue
		}
		if !s.Start.Before(end) || !start.Before(s.End) {
			continue
		}
		seg := segment{start: s.Start, end: s.End}
		if seg.start.Before(start) {
			seg.start = start
		}
		if seg.end.After(end) {
			seg.end = end
		}
		open = append(open, seg)
	}
	sort.Slice(open, func(i, j int) bool { return open[i].start.Before(open[j].start) })

	var out []segment
	cursor := start
	for _, seg := range open {
		if cursor.Before(seg.start) {
			out = append(out, segment{start: cursor, end: seg.start})
		}
		if seg.end.After(cursor) {
			cursor = seg.end
		}
	}
	if cursor.Before(end) {
		out = append(out, segment{start: cursor, end: end})
	}
	return out
}

// comparable reports whether two snapshots cover the same date range and
// court set.
func comparable(prev, cur *model.Snapshot) bool {
	if !prev.From.Equal(cur.From) || !prev.To.Equal(cur.To) {
		return false
	}
	if len(prev.SlotsByCourt) != len(cur.SlotsByCourt) {
		return false
	}
	for courtID := range cur.SlotsByCourt {
		if _, ok := prev.SlotsByCourt[courtID]; !ok {
			return false
		}
	}
	return true
}

// fullReplace treats every open slot in the snapshot as a new opening.
func fullReplace(cur *model.Snapshot, detectedAt time.Time) []model.TransitionEvent {
	var events []model.TransitionEvent
	for courtID, slots := range cur.SlotsByCourt {
		for _, s := range slots {
			if s.Status != model.StatusOpen {
				continue
			}
			events = append(events, model.TransitionEvent{
				SourceID:   cur.SourceID,
				CourtID:    courtID,
				Start:      s.Start,
				End:        s.End,
				Kind:       model.TransitionOpened,
				DetectedAt: detectedAt,
			})
		}
	}
	sortEvents(events)
	return events
}

func sortEvents(events []model.TransitionEvent) {
	sort.Slice(events, func(i, j int) bool {
		a, b := events[i], events[j]
		if a.CourtID != b.CourtID {
			return a.CourtID < b.CourtID
		}
		if !a.Start.Equal(b.Start) {
			return a.Start.Before(b.Start)
		}
		return a.Kind < b.Kind
	})
}
