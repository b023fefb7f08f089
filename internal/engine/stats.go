package engine

import (
	"sync/atomic"
	"time"

	"github.com/opencourt/courtwatch/internal/model"
)

// Stats carries the engine's operator-facing counters. All fields are
// updated atomically; Snapshot can be read concurrently with the cycle loop.
type Stats struct {
	totalCycles       atomic.Int64
	successfulCycles  atomic.Int64
	failedCycles      atomic.Int64
	notificationsSent atomic.Int64
	lastCycleUnixNano atomic.Int64
	sourcesTracked    atomic.Int64
}

func (s *Stats) cycleStarted() { s.totalCycles.Add(1) }

func (s *Stats) cycleFinished(at time.Time, failed bool) {
	if failed {
		s.failedCycles.Add(1)
	} else {
		s.successfulCycles.Add(1)
	}
	s.lastCycleUnixNano.Store(at.UnixNano())
}

func (s *Stats) digestSent() { s.notificationsSent.Add(1) }

// Snapshot returns the current counter values.
func (s *Stats) Snapshot() model.EngineStats {
	out := model.EngineStats{
		TotalCycles:       s.totalCycles.Load(),
		SuccessfulCycles:  s.successfulCycles.Load(),
		FailedCycles:      s.failedCycles.Load(),
		NotificationsSent: s.notificationsSent.Load(),
		SourcesTracked:    int(s.sourcesTracked.Load()),
	}
	if ns := s.lastCycleUnixNano.Load(); ns != 0 {
		t := time.Unix(0, ns).UTC()
		out.LastCycleTime = &t
	}
	return out
}
