package model

import "time"

// SlotStatus is the availability state of a slot as reported by a source.
type SlotStatus string

const (
	StatusOpen    SlotStatus = "OPEN"
	StatusBooked  SlotStatus = "BOOKED"
	StatusUnknown SlotStatus = "UNKNOWN"
)

// Slot is one bookable interval on a court within a snapshot.
// Invariant: Start < End; slots for the same court never overlap.
type Slot struct {
	CourtID  string     `json:"courtId"`
	Start    time.Time  `json:"start"`
	End      time.Time  `json:"end"`
	Status   SlotStatus `json:"status"`
	Price    *float64   `json:"price,omitempty"`
	Currency string     `json:"currency,omitempty"`
}

// Snapshot is a point-in-time capture of one source's availability grid.
// Immutable once constructed.
type Snapshot struct {
	SourceID     string            `json:"sourceId"`
	CapturedAt   time.Time         `json:"capturedAt"`
	From         time.Time         `json:"from"`
	To           time.Time         `json:"to"`
	SlotsByCourt map[string][]Slot `json:"slotsByCourt"`
}

// CourtIDs returns the court identifiers present in the snapshot.
func (s *Snapshot) CourtIDs() []string {
	ids := make([]string, 0, len(s.SlotsByCourt))
	for id := range s.SlotsByCourt {
		ids = append(ids, id)
	}
	return ids
}

// TransitionKind distinguishes openings from closings.
type TransitionKind string

const (
	TransitionOpened TransitionKind = "OPENED"
	TransitionClosed TransitionKind = "CLOSED"
)

// TransitionEvent is a detected status change for one time window
// between two captures of the same source.
type TransitionEvent struct {
	SourceID   string         `json:"sourceId"`
	CourtID    string         `json:"courtId"`
	Start      time.Time      `json:"start"`
	End        time.Time      `json:"end"`
	Kind       TransitionKind `json:"kind"`
	DetectedAt time.Time      `json:"detectedAt"`
}

// ConsolidatedWindow is a maximal contiguous open interval on one court,
// formed by merging adjacent and overlapping opened transitions.
type ConsolidatedWindow struct {
	SourceID string    `json:"sourceId"`
	CourtID  string    `json:"courtId"`
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
}

// Duration returns End - Start.
func (w ConsolidatedWindow) Duration() time.Duration { return w.End.Sub(w.Start) }

// Overlaps reports whether two windows share any time on the same court.
func (w ConsolidatedWindow) Overlaps(o ConsolidatedWindow) bool {
	if w.SourceID != o.SourceID || w.CourtID != o.CourtID {
		return false
	}
	return w.Start.Before(o.End) && o.Start.Before(w.End)
}

// SubscriptionStatus is the lifecycle state of a subscription.
type SubscriptionStatus string

const (
	SubscriptionActive    SubscriptionStatus = "ACTIVE"
	SubscriptionPaused    SubscriptionStatus = "PAUSED"
	SubscriptionExpired   SubscriptionStatus = "EXPIRED"
	SubscriptionCancelled SubscriptionStatus = "CANCELLED"
)

// SourcePreference names a source and, optionally, specific courts on it.
// An empty CourtIDs list matches any court of the source.
type SourcePreference struct {
	SourceID string   `json:"sourceId"`
	CourtIDs []string `json:"courtIds,omitempty"`
}

// PreferredTime is a recurring weekly time range.
// DayOfWeek is 0=Monday through 6=Sunday; times are "HH:MM".
type PreferredTime struct {
	DayOfWeek int    `json:"dayOfWeek"`
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
}

// Subscription is a user's standing interest filter. The engine only reads
// subscriptions and flips ACTIVE to EXPIRED past the expiry date; all other
// mutations belong to the owner-facing API.
type Subscription struct {
	ID                         string             `json:"id"`
	OwnerID                    string             `json:"ownerId"`
	Email                      string             `json:"email"`
	SourcePreferences          []SourcePreference `json:"sourcePreferences"`
	PreferredTimes             []PreferredTime    `json:"preferredTimes"`
	MinSlotDurationMinutes     int                `json:"minSlotDurationMinutes"`
	ExpiryDate                 *time.Time         `json:"expiryDate,omitempty"`
	MaxNotificationsPerDay     int                `json:"maxNotificationsPerDay"`
	NotificationFrequencyHours int                `json:"notificationFrequencyHours"`
	Status                     SubscriptionStatus `json:"status"`
	CreationTime               time.Time          `json:"creationTime"`
}

// WantsSource reports whether the subscription covers the given source
// and court.
func (s *Subscription) WantsSource(sourceID, courtID string) bool {
	for _, p := range s.SourcePreferences {
		if p.SourceID != sourceID {
			continue
		}
		if len(p.CourtIDs) == 0 {
			return true
		}
		for _, c := range p.CourtIDs {
			if c == courtID {
				return true
			}
		}
	}
	return false
}

// NotificationRecord is the append-only audit and dedup log entry for one
// dispatched digest. Never mutated or deleted by the engine.
type NotificationRecord struct {
	ID             string               `json:"id"`
	SubscriptionID string               `json:"subscriptionId"`
	SentAt         time.Time            `json:"sentAt"`
	Windows        []ConsolidatedWindow `json:"windows"`
}

// Digest is one outbound message covering every admitted window for a
// subscription in one detection cycle.
type Digest struct {
	SubscriptionID string               `json:"subscriptionId"`
	OwnerID        string               `json:"ownerId"`
	Recipient      string               `json:"recipient"`
	Windows        []ConsolidatedWindow `json:"windows"`
	SourceNames    map[string]string    `json:"sourceNames,omitempty"`
	GeneratedAt    time.Time            `json:"generatedAt"`
}

// EngineStats is the operator-facing counter snapshot.
type EngineStats struct {
	TotalCycles       int64      `json:"totalCycles"`
	SuccessfulCycles  int64      `json:"successfulCycles"`
	FailedCycles      int64      `json:"failedCycles"`
	NotificationsSent int64      `json:"notificationsSent"`
	LastCycleTime     *time.Time `json:"lastCycleTime,omitempty"`
	SourcesTracked    int        `json:"sourcesTracked"`
}
