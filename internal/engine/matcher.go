package engine

import (
	"fmt"
	"sort"
	"time"

	"github.com/opencourt/courtwatch/internal/model"
)

// Match pairs one subscription with one qualifying window. Window is the
// overlapping sub-window clipped to the preferred time range, not necessarily
// the full consolidated window.
type Match struct {
	Subscription *model.Subscription
	Window       model.ConsolidatedWindow
}

// MatchSubscriptions cross-references consolidated windows against the
// subscription population. A pair qualifies when the subscription is active
// and unexpired, its source/court preferences cover the window, the window
// meets the minimum duration, and the window intersects a preferred time
// range by at least the minimum duration. Each qualifying (subscription,
// window) combination is independent; identical pairs within one cycle are
// deduplicated.
func MatchSubscriptions(windows []model.ConsolidatedWindow, subs []*model.Subscription, today time.Time) []Match {
	var out []Match
	seen := make(map[string]bool)

	for _, w := range windows {
		for _, sub := range subs {
			if sub.Status != model.SubscriptionActive {
				continue
			}
			if sub.ExpiryDate != nil && dateOnly(*sub.ExpiryDate).Before(dateOnly(today)) {
				continue
			}
			if !sub.WantsSource(w.SourceID, w.CourtID) {
				continue
			}
			minDur := time.Duration(sub.MinSlotDurationMinutes) * time.Minute
			if w.Duration() < minDur {
				continue
			}
			for _, overlap := range preferredOverlaps(w, sub.PreferredTimes, minDur) {
				key := matchKey(sub.ID, overlap)
				if seen[key] {
					continue
				}
				seen[key] = true
				out = append(out, Match{Subscription: sub, Window: overlap})
			}
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Subscription.ID != out[j].Subscription.ID {
			return out[i].Subscription.ID < out[j].Subscription.ID
		}
		if out[i].Window.CourtID != out[j].Window.CourtID {
			return out[i].Window.CourtID < out[j].Window.CourtID
		}
		return out[i].Window.Start.Before(out[j].Window.Start)
	})
	return out
}

// preferredOverlaps returns the sub-windows where w intersects a preferred
// time range by at least minDur. A window only partially inside a preferred
// range still qualifies when the overlapping portion alone is long enough.
func preferredOverlaps(w model.ConsolidatedWindow, prefs []model.PreferredTime, minDur time.Duration) []model.ConsolidatedWindow {
	var out []model.ConsolidatedWindow

	// A window can straddle midnight; instantiate each preferred range on
	// every calendar day the window touches.
	for day := dateOnly(w.Start); !day.After(dateOnly(w.End)); day = day.AddDate(0, 0, 1) {
		dow := mondayIndexed(day.Weekday())
		for _, p := range prefs {
			if p.DayOfWeek != dow {
				continue
			}
			startH, startM, err := parseClock(p.StartTime)
			if err != nil {
				continue
			}
			endH, endM, err := parseClock(p.EndTime)
			if err != nil {
				continue
			}
			rangeStart := day.Add(time.Duration(startH)*time.Hour + time.Duration(startM)*time.Minute)
			rangeEnd := day.Add(time.Duration(endH)*time.Hour + time.Duration(endM)*time.Minute)

			start, end := w.Start, w.End
			if rangeStart.After(start) {
				start = rangeStart
			}
			if rangeEnd.Before(end) {
				end = rangeEnd
			}
			if end.Sub(start) < minDur {
				continue
			}
			out = append(out, model.ConsolidatedWindow{
				SourceID: w.SourceID,
				CourtID:  w.CourtID,
				Start:    start,
				End:      end,
			})
		}
	}
	return out
}

// mondayIndexed converts time.Weekday (Sunday=0) to the subscription
// convention of 0=Monday through 6=Sunday.
func mondayIndexed(d time.Weekday) int { return (int(d) + 6) % 7 }

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func parseClock(v string) (hour, min int, err error) {
	if _, err = fmt.Sscanf(v, "%d:%d", &hour, &min); err != nil {
		return 0, 0, fmt.Errorf("bad clock time %q: %w", v, err)
	}
	if hour < 0 || hour > 23 || min < 0 || min > 59 {
		return 0, 0, fmt.Errorf("bad clock time %q", v)
	}
	return hour, min, nil
}

func matchKey(subID string, w model.ConsolidatedWindow) string {
	return subID + "\x00" + w.SourceID + "\x00" + w.CourtID + "\x00" +
		w.Start.UTC().Format(time.RFC3339) + "\x00" + w.End.UTC().Format(time.RFC3339)
}
