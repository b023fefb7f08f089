package engine

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/opencourt/courtwatch/internal/cache"
	"github.com/opencourt/courtwatch/internal/dispatch"
	"github.com/opencourt/courtwatch/internal/model"
	"github.com/opencourt/courtwatch/internal/source"
	"github.com/opencourt/courtwatch/internal/store"
)

// Config controls the cycle cadence and fan-out bounds.
type Config struct {
	RefreshInterval        time.Duration
	SourceTimeout          time.Duration
	MaxConcurrentRefreshes int
	FetchDays              int
}

// CycleLock is the multi-instance coordination hook. The default lock always
// grants, which is correct for single-process deployments; a distributed
// deployment can plug in leader election or an advisory lock to keep
// replicas from double-dispatching.
type CycleLock interface {
	Acquire(ctx context.Context) (release func(), ok bool, err error)
}

type noopLock struct{}

func (noopLock) Acquire(context.Context) (func(), bool, error) { return func() {}, true, nil }

// Engine drives the refresh, detect, consolidate, match, gate, dispatch
// pipeline on a fixed cadence. One Engine goroutine is the only writer of
// cache state and notification records.
type Engine struct {
	cfg   Config
	reg   *source.Registry
	cache *cache.SnapshotCache
	store store.Store
	disp  dispatch.Dispatcher
	gate  *Gate
	lock  CycleLock
	log   zerolog.Logger
	now   func() time.Time

	stats Stats

	// cycleMu serializes whole cycles (ticker vs. manual trigger);
	// sourceMu serializes the pipeline per source across cycles.
	cycleMu  sync.Mutex
	sourceMu map[string]*sync.Mutex
	sem      chan struct{}
}

// New constructs an Engine from its dependencies.
func New(cfg Config, reg *source.Registry, c *cache.SnapshotCache, st store.Store, disp dispatch.Dispatcher, log zerolog.Logger) *Engine {
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = time.Minute
	}
	if cfg.SourceTimeout <= 0 {
		cfg.SourceTimeout = 15 * time.Second
	}
	if cfg.MaxConcurrentRefreshes <= 0 {
		cfg.MaxConcurrentRefreshes = 1
	}
	if cfg.FetchDays <= 0 {
		cfg.FetchDays = 8
	}
	e := &Engine{
		cfg:      cfg,
		reg:      reg,
		cache:    c,
		store:    st,
		disp:     disp,
		gate:     NewGate(st),
		lock:     noopLock{},
		log:      log,
		now:      time.Now,
		sourceMu: make(map[string]*sync.Mutex, reg.Len()),
		sem:      make(chan struct{}, cfg.MaxConcurrentRefreshes),
	}
	for _, id := range reg.IDs() {
		e.sourceMu[id] = &sync.Mutex{}
	}
	e.stats.sourcesTracked.Store(int64(reg.Len()))
	return e
}

// SetCycleLock installs a multi-instance coordination lock.
func (e *Engine) SetCycleLock(l CycleLock) {
	if l != nil {
		e.lock = l
	}
}

// Run polls every source on the configured interval until ctx is canceled.
// Failure to read the subscription list at start is fatal; everything after
// that is per-source and per-cycle isolated.
func (e *Engine) Run(ctx context.Context) error {
	if _, err := e.store.Subscriptions().ListActive(ctx); err != nil {
		return fmt.Errorf("engine start: subscription store unavailable: %w", err)
	}

	e.log.Info().
		Dur("interval", e.cfg.RefreshInterval).
		Int("sources", e.reg.Len()).
		Int("max_concurrent", e.cfg.MaxConcurrentRefreshes).
		Msg("engine starting")

	// First cycle fills the baseline snapshots; the cold-start rule keeps
	// it from emitting transitions.
	if err := e.RunCycle(ctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		e.log.Error().Err(err).Msg("initial cycle failed")
	}

	ticker := time.NewTicker(e.cfg.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.log.Info().Msg("engine stopping")
			return ctx.Err()
		case <-ticker.C:
			if err := e.RunCycle(ctx); err != nil {
				e.log.Error().Err(err).Msg("cycle failed")
			}
		}
	}
}

// RunCycle executes one full cycle over all sources. It is also the manual
// trigger for the admin API. Cycles never overlap; a trigger during a
// running cycle waits for it to settle.
func (e *Engine) RunCycle(ctx context.Context) error {
	e.cycleMu.Lock()
	defer e.cycleMu.Unlock()

	release, ok, err := e.lock.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("cycle lock: %w", err)
	}
	if !ok {
		e.log.Debug().Msg("cycle skipped: another instance holds the lock")
		return nil
	}
	defer release()

	e.stats.cycleStarted()

	subs, err := e.activeSubscriptions(ctx)
	if err != nil {
		e.stats.cycleFinished(e.now(), true)
		return err
	}

	var (
		wg       sync.WaitGroup
		failures sync.Map
	)
	for _, sourceID := range e.reg.IDs() {
		select {
		case e.sem <- struct{}{}:
		case <-ctx.Done():
			e.stats.cycleFinished(e.now(), true)
			return ctx.Err()
		}
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			defer func() { <-e.sem }()
			if err := e.runSourcePipeline(ctx, id, subs); err != nil {
				failures.Store(id, err)
			}
		}(sourceID)
	}
	wg.Wait()

	failed := false
	failures.Range(func(key, value any) bool {
		failed = true
		kind, _ := source.KindOf(value.(error))
		e.log.Warn().
			Str("source", key.(string)).
			Str("kind", string(kind)).
			Err(value.(error)).
			Msg("source cycle failed")
		return true
	})
	e.stats.cycleFinished(e.now(), failed)
	return nil
}

// activeSubscriptions lists active subscriptions and flips the ones whose
// expiry date has passed to EXPIRED before returning the rest.
func (e *Engine) activeSubscriptions(ctx context.Context) ([]*model.Subscription, error) {
	subs, err := e.store.Subscriptions().ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active subscriptions: %w", err)
	}
	today := dateOnly(e.now())
	live := subs[:0]
	for _, s := range subs {
		if s.ExpiryDate != nil && dateOnly(*s.ExpiryDate).Before(today) {
			if err := e.store.Subscriptions().UpdateStatus(ctx, s.ID, model.SubscriptionExpired); err != nil {
				e.log.Error().Err(err).Str("subscription", s.ID).Msg("expire subscription")
			}
			continue
		}
		live = append(live, s)
	}
	return live, nil
}

// runSourcePipeline refreshes one source and pushes any transitions through
// detection, consolidation, matching, gating, and dispatch. One source's
// failure never blocks the others.
func (e *Engine) runSourcePipeline(ctx context.Context, sourceID string, subs []*model.Subscription) error {
	mu := e.sourceMu[sourceID]
	mu.Lock()
	defer mu.Unlock()

	adapter, ok := e.reg.Adapter(sourceID)
	if !ok {
		return source.Unavailable(sourceID, fmt.Errorf("not registered"))
	}

	from := dateOnly(e.now().UTC())
	rng := source.DateRange{From: from, To: from.AddDate(0, 0, e.cfg.FetchDays-1)}

	fctx, cancel := context.WithTimeout(ctx, e.cfg.SourceTimeout)
	snap, err := adapter.FetchSnapshot(fctx, sourceID, rng)
	cancel()
	if err != nil {
		e.cache.RecordFailure(sourceID)
		return err
	}
	if err := source.ValidateSnapshot(snap); err != nil {
		// Never let a corrupt snapshot shadow a good one.
		e.cache.RecordFailure(sourceID)
		return source.DataInvalid(sourceID, err)
	}

	prev, cur := e.cache.Promote(snap)
	events := Detect(prev, cur, e.now())
	if len(events) == 0 {
		return nil
	}
	windows := Consolidate(events)
	e.log.Info().
		Str("source", sourceID).
		Int("transitions", len(events)).
		Int("windows", len(windows)).
		Msg("availability changed")
	if len(windows) == 0 {
		return nil
	}

	matches := MatchSubscriptions(windows, subs, e.now())
	if len(matches) == 0 {
		return nil
	}
	e.notify(ctx, matches)
	return nil
}

// notify gates each match, coalesces admitted windows into one digest per
// subscription, commits the notification record, then dispatches. Dispatch
// failures are logged, not retried synchronously; the record stays so the
// next cycle's overlap suppression converges.
func (e *Engine) notify(ctx context.Context, matches []Match) {
	admitted := make(map[string][]model.ConsolidatedWindow)
	subByID := make(map[string]*model.Subscription)

	for _, m := range matches {
		decision, err := e.gate.Admit(ctx, m)
		if err != nil {
			e.log.Error().Err(err).
				Str("subscription", m.Subscription.ID).
				Msg("gate admission failed")
			continue
		}
		if decision != Send {
			continue
		}
		admitted[m.Subscription.ID] = append(admitted[m.Subscription.ID], m.Window)
		subByID[m.Subscription.ID] = m.Subscription
	}
	if len(admitted) == 0 {
		return
	}

	subIDs := make([]string, 0, len(admitted))
	for id := range admitted {
		subIDs = append(subIDs, id)
	}
	sort.Strings(subIDs)

	for _, subID := range subIDs {
		sub := subByID[subID]
		windows := mergeWindowsPerCourt(admitted[subID])

		if _, err := e.gate.Record(ctx, subID, windows); err != nil {
			// No committed record means no send: under-delivery is the
			// safer failure mode.
			e.log.Error().Err(err).Str("subscription", subID).Msg("record notification")
			continue
		}

		digest := &model.Digest{
			SubscriptionID: subID,
			OwnerID:        sub.OwnerID,
			Recipient:      sub.Email,
			Windows:        windows,
			SourceNames:    e.sourceNames(windows),
			GeneratedAt:    e.now(),
		}
		if err := e.disp.SendDigest(ctx, digest); err != nil {
			e.log.Error().Stack().Err(err).
				Str("subscription", subID).
				Msg("dispatch failed; record retained for overlap suppression")
			continue
		}
		e.stats.digestSent()
	}
}

// mergeWindowsPerCourt collapses overlapping admitted sub-windows (for
// example from two preferred-time entries) so a digest never lists the same
// stretch of time twice.
func mergeWindowsPerCourt(windows []model.ConsolidatedWindow) []model.ConsolidatedWindow {
	byCourt := make(map[string][]model.ConsolidatedWindow)
	for _, w := range windows {
		key := w.SourceID + "\x00" + w.CourtID
		byCourt[key] = append(byCourt[key], w)
	}
	var out []model.ConsolidatedWindow
	for _, group := range byCourt {
		out = append(out, mergeWindows(group)...)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CourtID != out[j].CourtID {
			return out[i].CourtID < out[j].CourtID
		}
		return out[i].Start.Before(out[j].Start)
	})
	return out
}

func (e *Engine) sourceNames(windows []model.ConsolidatedWindow) map[string]string {
	names := make(map[string]string)
	for _, w := range windows {
		if _, ok := names[w.SourceID]; ok {
			continue
		}
		if info, ok := e.reg.Info(w.SourceID); ok {
			names[w.SourceID] = info.Name
		}
	}
	return names
}

// Stats returns the operator-facing counters.
func (e *Engine) Stats() model.EngineStats { return e.stats.Snapshot() }
