// Package cache holds the latest and previous availability snapshot per
// source. User-facing reads are always served from here and never trigger a
// synchronous call to a booking system.
package cache

import (
	"sync"
	"time"

	"github.com/opencourt/courtwatch/internal/model"
)

type entry struct {
	current  *model.Snapshot
	previous *model.Snapshot

	lastSuccess  time.Time
	lastAttempt  time.Time
	failureCount int
}

// SnapshotCache is safe for one writer (the refresh loop) and many readers.
// Snapshots are immutable; promotion swaps pointers so readers never observe
// a torn snapshot.
type SnapshotCache struct {
	mu         sync.RWMutex
	bySource   map[string]*entry
	staleAfter time.Duration
	now        func() time.Time
}

// New returns a cache that flags snapshots older than staleAfter as stale.
func New(staleAfter time.Duration) *SnapshotCache {
	return &SnapshotCache{
		bySource:   make(map[string]*entry),
		staleAfter: staleAfter,
		now:        time.Now,
	}
}

// Promote installs snap as the current snapshot for its source, demoting the
// old current to previous, and returns the (previous, current) pair the
// change detector should diff.
func (c *SnapshotCache) Promote(snap *model.Snapshot) (prev, cur *model.Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := c.bySource[snap.SourceID]
	if e == nil {
		e = &entry{}
		c.bySource[snap.SourceID] = e
	}
	e.previous = e.current
	e.current = snap
	e.lastSuccess = c.now()
	e.lastAttempt = e.lastSuccess
	e.failureCount = 0
	return e.previous, e.current
}

// RecordFailure notes a failed refresh. The current snapshot is retained and
// keeps serving readers unchanged.
func (c *SnapshotCache) RecordFailure(sourceID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := c.bySource[sourceID]
	if e == nil {
		e = &entry{}
		c.bySource[sourceID] = e
	}
	e.lastAttempt = c.now()
	e.failureCount++
}

// Current returns the latest successfully cached snapshot, or nil.
func (c *SnapshotCache) Current(sourceID string) *model.Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if e := c.bySource[sourceID]; e != nil {
		return e.current
	}
	return nil
}

// Previous returns the snapshot current was promoted over, or nil.
func (c *SnapshotCache) Previous(sourceID string) *model.Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if e := c.bySource[sourceID]; e != nil {
		return e.previous
	}
	return nil
}

// CachedSnapshot is the read-path view of one source's cache state.
type CachedSnapshot struct {
	Snapshot    *model.Snapshot
	Stale       bool
	LastRefresh time.Time
	Failures    int
}

// Get returns the cached snapshot and its staleness marker. ok is false when
// the source has never been refreshed successfully.
func (c *SnapshotCache) Get(sourceID string) (CachedSnapshot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e := c.bySource[sourceID]
	if e == nil || e.current == nil {
		return CachedSnapshot{}, false
	}
	stale := e.failureCount > 0
	if c.staleAfter > 0 && c.now().Sub(e.lastSuccess) > c.staleAfter {
		stale = true
	}
	return CachedSnapshot{
		Snapshot:    e.current,
		Stale:       stale,
		LastRefresh: e.lastSuccess,
		Failures:    e.failureCount,
	}, true
}
