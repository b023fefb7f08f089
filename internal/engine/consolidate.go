package engine

import (
	"sort"

	"github.com/opencourt/courtwatch/internal/model"
)

// Consolidate merges the OPENED transitions of one detection cycle into
// maximal contiguous windows per court. Two windows merge when they overlap
// or touch; no merge ever crosses courts. Users reason in terms of continuous
// playable time, so two back-to-back 30 minute slots must surface as one
// 60 minute opportunity.
//
// Output windows for a court are pairwise non-overlapping and non-adjacent,
// and together cover exactly the union of the input opened windows.
func Consolidate(events []model.TransitionEvent) []model.ConsolidatedWindow {
	byCourt := make(map[string][]model.ConsolidatedWindow)
	for _, ev := range events {
		if ev.Kind != model.TransitionOpened {
			continue
		}
		key := ev.SourceID + "\x00" + ev.CourtID
		byCourt[key] = append(byCourt[key], model.ConsolidatedWindow{
			SourceID: ev.SourceID,
			CourtID:  ev.CourtID,
			Start:    ev.Start,
			End:      ev.End,
		})
	}

	var out []model.ConsolidatedWindow
	for _, windows := range byCourt {
		out = append(out, mergeWindows(windows)...)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CourtID != out[j].CourtID {
			return out[i].CourtID < out[j].CourtID
		}
		return out[i].Start.Before(out[j].Start)
	})
	return out
}

// mergeWindows performs a single left-to-right sweep over windows of one
// court, merging when the next window starts at or before the current end.
func mergeWindows(windows []model.ConsolidatedWindow) []model.ConsolidatedWindow {
	if len(windows) == 0 {
		return nil
	}
	sort.Slice(windows, func(i, j int) bool { return windows[i].Start.Before(windows[j].Start) })

	merged := []model.ConsolidatedWindow{windows[0]}
	for _, w := range windows[1:] {
		last := &merged[len(merged)-1]
		if !w.Start.After(last.End) {
			if w.End.After(last.End) {
				last.End = w.End
			}
			continue
		}
		merged = append(merged, w)
	}
	return merged
}
