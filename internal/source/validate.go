package source

import (
	"fmt"
	"sort"

	"github.com/opencourt/courtwatch/internal/model"
)

// ValidateSnapshot rejects malformed snapshots before they reach the cache.
// A snapshot that fails validation is discarded and the previous one kept.
func ValidateSnapshot(s *model.Snapshot) error {
	if s == nil {
		return fmt.Errorf("nil snapshot")
	}
	if s.SourceID == "" {
		return fmt.Errorf("snapshot missing source id")
	}
	if s.CapturedAt.IsZero() {
		return fmt.Errorf("snapshot missing capture time")
	}
	if s.To.Before(s.From) {
		return fmt.Errorf("snapshot date range inverted: %s after %s", s.From, s.To)
	}
	for courtID, slots := range s.SlotsByCourt {
		if courtID == "" {
			return fmt.Errorf("snapshot contains empty court id")
		}
		sorted := make([]model.Slot, len(slots))
		copy(sorted, slots)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start.Before(sorted[j].Start) })
		for i, sl := range sorted {
			if !sl.Start.Before(sl.End) {
				return fmt.Errorf("court %s: slot start %s not before end %s", courtID, sl.Start, sl.End)
			}
			switch sl.Status {
			case model.StatusOpen, model.StatusBooked, model.StatusUnknown:
			default:
				return fmt.Errorf("court %s: unknown slot status %q", courtID, sl.Status)
			}
			if i > 0 && sorted[i-1].End.After(sl.Start) {
				return fmt.Errorf("court %s: overlapping slots at %s", courtID, sl.Start)
			}
		}
	}
	return nil
}
