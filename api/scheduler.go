/*
scheduler.go - Day-rollover refresh scheduler

PURPOSE:
  Views only recompute when a snapshot arrives. On a quiet day nothing
  arrives, yet "today" moves at midnight and every open loan's fine grows
  by one day. The scheduler periodically asks the engine to recompute
  against the clock so both stay current.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Each tick calls Engine.Refresh; recompute is cheap and idempotent
  - Logs when the date changes, with the number of overdue loans

CONFIGURATION:
  - CheckInterval: How often to refresh (default: 1 minute)
  - Enabled: Whether scheduler is active (default: true)

USAGE:
  scheduler := NewRefreshScheduler(eng)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - engine/engine.go: Refresh
*/
package api

import (
	"log"
	"sync"
	"time"

	"github.com/rfidlib/circulation-engine/engine"
)

// RefreshScheduler keeps clock-dependent views current.
type RefreshScheduler struct {
	Engine        *engine.Engine
	CheckInterval time.Duration
	Enabled       bool

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex

	dayMu   sync.Mutex // guards lastDay; RunNow runs while Stop holds mu
	lastDay string
}

// NewRefreshScheduler creates a new scheduler.
func NewRefreshScheduler(eng *engine.Engine) *RefreshScheduler {
	return &RefreshScheduler{
		Engine:        eng,
		CheckInterval: time.Minute,
		Enabled:       true,
	}
}

// Start begins the scheduler.
func (rs *RefreshScheduler) Start() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if !rs.Enabled {
		log.Println("[Scheduler] Disabled, not starting")
		return
	}
	if rs.ticker != nil {
		return
	}

	rs.ticker = time.NewTicker(rs.CheckInterval)
	rs.stop = make(chan struct{})
	rs.wg.Add(1)

	go rs.run(rs.ticker, rs.stop)

	log.Printf("[Scheduler] Started with check interval: %v", rs.CheckInterval)
}

// Stop stops the scheduler. It is safe to call more than once.
func (rs *RefreshScheduler) Stop() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if rs.ticker != nil {
		rs.ticker.Stop()
		close(rs.stop)
		rs.wg.Wait()
		rs.ticker = nil
		log.Println("[Scheduler] Stopped")
	}
}

func (rs *RefreshScheduler) run(ticker *time.Ticker, stop <-chan struct{}) {
	defer rs.wg.Done()

	for {
		select {
		case <-ticker.C:
			rs.RunNow()
		case <-stop:
			return
		}
	}
}

// RunNow refreshes immediately and reports whether the date changed since
// the previous refresh.
func (rs *RefreshScheduler) RunNow() bool {
	view := rs.Engine.Refresh()
	day := view.AsOf.DateKey()

	rs.dayMu.Lock()
	previous := rs.lastDay
	rs.lastDay = day
	rs.dayMu.Unlock()

	if previous == "" || previous == day {
		return false
	}

	overdue := 0
	for _, e := range engine.Assess(view.Records.All(), rs.Engine.Calculator(), view.AsOf) {
		if e.IsOverdueUnreturned {
			overdue++
		}
	}
	log.Printf("[Scheduler] Day rolled over %s -> %s: %d loans overdue", previous, day, overdue)
	return true
}
