/*
scheduler.go - Automated surge recalculation scheduler

PURPOSE:
  Periodically scans surge configs and recalculates the ones that are
  currently applicable and going stale, producing fresh draft sheets for
  operator approval.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Only touches configs an operator already materialized once; the first
    materialization is always a deliberate API call
  - Skips configs outside their day/clock applicability windows
  - Skips configs refreshed more recently than RefreshAfter
  - Drafts pile up harmlessly: approval supersedes, recalculation never does

CONFIGURATION:
  - CheckInterval: How often to scan (default: 15 minutes)
  - RefreshAfter:  Staleness threshold (default: 1 hour)
  - Enabled:       Whether scheduler is active (default: true)

USAGE:
  scheduler := NewSurgeScheduler(store, handler)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: RecalculateSurge endpoint (manual recalculation)
  - surge/materialize.go: The workflow this drives
*/
package api

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/warp/pricing-engine/store/sqlite"
)

// SurgeScheduler keeps materialized surge sheets fresh.
type SurgeScheduler struct {
	Store         *sqlite.Store
	Handler       *Handler
	CheckInterval time.Duration
	RefreshAfter  time.Duration
	Enabled       bool

	ticker *time.Ticker
	stop   chan bool
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewSurgeScheduler creates a new scheduler.
func NewSurgeScheduler(store *sqlite.Store, handler *Handler) *SurgeScheduler {
	return &SurgeScheduler{
		Store:         store,
		Handler:       handler,
		CheckInterval: 15 * time.Minute,
		RefreshAfter:  1 * time.Hour,
		Enabled:       true,
		stop:          make(chan bool),
	}
}

// Start begins the scheduler.
func (ss *SurgeScheduler) Start() {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	if !ss.Enabled {
		log.Println("[Scheduler] Disabled, not starting")
		return
	}

	ss.ticker = time.NewTicker(ss.CheckInterval)
	ss.wg.Add(1)

	go ss.run()

	log.Printf("[Scheduler] Started with check interval: %v", ss.CheckInterval)
}

// Stop stops the scheduler.
func (ss *SurgeScheduler) Stop() {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	if ss.ticker != nil {
		ss.ticker.Stop()
		close(ss.stop)
		ss.wg.Wait()
		log.Println("[Scheduler] Stopped")
	}
}

func (ss *SurgeScheduler) run() {
	defer ss.wg.Done()

	// Run immediately on start
	ss.checkAndRecalculate()

	for {
		select {
		case <-ss.ticker.C:
			ss.checkAndRecalculate()
		case <-ss.stop:
			return
		}
	}
}

func (ss *SurgeScheduler) checkAndRecalculate() {
	ctx := context.Background()
	now := time.Now()

	configs, err := ss.Store.ListConfigs(ctx)
	if err != nil {
		log.Printf("[Scheduler] Error listing surge configs: %v", err)
		return
	}

	refreshed := 0
	skipped := 0

	for _, cfg := range configs {
		// Never initiate a workflow the operator hasn't started.
		if cfg.LastMaterialized == nil {
			skipped++
			continue
		}
		if !cfg.AppliesAt(now) {
			skipped++
			continue
		}
		if now.Sub(*cfg.LastMaterialized) < ss.RefreshAfter {
			skipped++
			continue
		}

		res, err := ss.Handler.Materializer.Recalculate(ctx, cfg.ID)
		if err != nil {
			log.Printf("[Scheduler] Error recalculating config %s: %v", cfg.ID, err)
			continue
		}
		refreshed++
		log.Printf("[Scheduler] Recalculated %s: multiplier %.4f -> %.4f (sheet %s)",
			cfg.ID, res.OldMultiplier, res.Multiplier, res.SheetID)
	}

	if refreshed > 0 {
		log.Printf("[Scheduler] Completed: %d refreshed, %d skipped", refreshed, skipped)
	}
}

// RunNow triggers an immediate check (for testing/admin).
func (ss *SurgeScheduler) RunNow() {
	ss.checkAndRecalculate()
}

// GetNextRunTime returns when the next scheduled check will occur.
func (ss *SurgeScheduler) GetNextRunTime() time.Time {
	return time.Now().Add(ss.CheckInterval)
}
