/*
engine.go - Live holder of the latest snapshots

PURPOSE:
  Subscribes to the four upstream collections and keeps the most recent
  decoded snapshot of each. Every delivery replaces one snapshot and
  recomputes the whole view synchronously on the delivering goroutine.
  There is no worker pool and no queue.

STATE:
  The only state is the latest snapshot per collection and the view last
  derived from them. Both are replaced, never patched.

CLOCK:
  "Now" is the injected clock read in the configured location and reduced
  to its wall-clock reading. Refresh recomputes against a new "now"
  without waiting for a delivery, so today's tallies and live fines move
  when the date changes.

USAGE:
  eng := engine.New(store, engine.WithSeedCatalog(seed.Items))
  if err := eng.Start(ctx); err != nil { ... }
  defer eng.Stop()
  view := eng.View()

SEE ALSO:
  - recompute.go: the pure aggregation
  - writer.go: settlement and catalog writes
*/
package engine

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/rfidlib/circulation-engine/docstore"
	"github.com/rfidlib/circulation-engine/fines"
	"github.com/rfidlib/circulation-engine/library"
)

// Engine keeps derived views current with the document store.
type Engine struct {
	store docstore.Store
	calc  fines.Calculator
	clock func() time.Time
	loc   *time.Location
	opts  Options

	mu        sync.RWMutex
	snaps     Snapshots
	view      View
	listeners []func(View)
	unsubs    []docstore.Unsubscribe
}

type Option func(*Engine)

func WithClock(clock func() time.Time) Option {
	return func(e *Engine) { e.clock = clock }
}

// WithLocation sets the location whose calendar defines "today".
func WithLocation(loc *time.Location) Option {
	return func(e *Engine) { e.loc = loc }
}

func WithCalculator(c fines.Calculator) Option {
	return func(e *Engine) { e.calc = c }
}

func WithSeedCatalog(items []library.LibraryItem) Option {
	return func(e *Engine) { e.opts.SeedCatalog = items }
}

func WithSeedStudents(students []library.Student) Option {
	return func(e *Engine) { e.opts.SeedStudents = students }
}

func New(store docstore.Store, opts ...Option) *Engine {
	e := &Engine{
		store: store,
		calc:  fines.Default(),
		clock: time.Now,
		loc:   time.Local,
		snaps: Snapshots{Records: NewRecordSet(), Presence: Presence{Roster: map[string]PresentStudent{}}},
	}
	for _, opt := range opts {
		opt(e)
	}
	e.view = Recompute(e.snaps, e.options())
	return e
}

// Start subscribes to every collection. Each subscription delivers its
// current value before Start returns.
func (e *Engine) Start(ctx context.Context) error {
	subs := []struct {
		path docstore.Path
		fn   docstore.Listener
	}{
		{PathCatalog, e.onCatalog},
		{PathRecords, e.onRecords},
		{PathAnalytics, e.onAnalytics},
		{PathStudents, e.onStudents},
	}

	for _, s := range subs {
		unsub, err := e.store.Subscribe(ctx, s.path, s.fn)
		if err != nil {
			e.Stop()
			return fmt.Errorf("subscribe %s: %w", s.path, err)
		}
		e.mu.Lock()
		e.unsubs = append(e.unsubs, unsub)
		e.mu.Unlock()
	}
	return nil
}

// Stop tears down all subscriptions.
func (e *Engine) Stop() {
	e.mu.Lock()
	unsubs := e.unsubs
	e.unsubs = nil
	e.mu.Unlock()

	for _, u := range unsubs {
		u()
	}
}

// OnChange registers fn to receive every recomputed view.
func (e *Engine) OnChange(fn func(View)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listeners = append(e.listeners, fn)
}

func (e *Engine) View() View {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.view
}

func (e *Engine) Snapshots() Snapshots {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.snaps
}

func (e *Engine) Calculator() fines.Calculator { return e.calc }

// Now is the current wall-clock reading in the engine's location.
func (e *Engine) Now() library.TimePoint {
	return library.WallClock(e.clock().In(e.loc))
}

// Refresh recomputes against the current clock.
func (e *Engine) Refresh() View {
	return e.apply("clock", func(*Snapshots) {})
}

func (e *Engine) options() Options {
	o := e.opts
	o.AsOf = e.Now()
	return o
}

// =============================================================================
// SUBSCRIPTION CALLBACKS
// =============================================================================

func (e *Engine) onCatalog(snap docstore.Snapshot) {
	items, diag := DecodeCatalog(snap)
	e.apply("catalog", func(s *Snapshots) {
		s.Catalog, s.CatalogIssues = items, diag
	})
}

func (e *Engine) onRecords(snap docstore.Snapshot) {
	records, diag := DecodeRecords(snap)
	e.apply("records", func(s *Snapshots) {
		s.Records, s.RecordIssues = records, diag
	})
}

func (e *Engine) onAnalytics(snap docstore.Snapshot) {
	presence, pdiag := DecodePresence(snap)
	daily, ddiag := DecodeDailyLog(snap)
	pdiag.Skipped += ddiag.Skipped
	pdiag.Problems = append(pdiag.Problems, ddiag.Problems...)
	e.apply("analytics", func(s *Snapshots) {
		s.Presence, s.DailyLog, s.AnalyticsIssues = presence, daily, pdiag
	})
}

func (e *Engine) onStudents(snap docstore.Snapshot) {
	students, activity, diag := DecodeStudents(snap)
	e.apply("students", func(s *Snapshots) {
		s.Students, s.Activity, s.StudentIssues = students, activity, diag
	})
}

func (e *Engine) apply(source string, update func(*Snapshots)) View {
	e.mu.Lock()
	update(&e.snaps)
	view := Recompute(e.snaps, e.options())
	e.view = view
	listeners := append([]func(View){}, e.listeners...)
	e.mu.Unlock()

	if n := view.Report.Skipped(); n > 0 && source != "clock" {
		log.Printf("[Engine] %s update: %d entries skipped across collections", source, n)
	}
	if n := view.Report.Records.MalformedDates; n > 0 && source == "records" {
		log.Printf("[Engine] %d record dates could not be read", n)
	}

	for _, fn := range listeners {
		fn(view)
	}
	return view
}
