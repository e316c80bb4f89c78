/*
scheduler.go - Daily ledger maintenance

PURPOSE:
  Runs the two population-wide ledger jobs on a timer: generate grant lots
  through today, then forfeit expired balances as of today. Both jobs are
  idempotent, so an extra run (process restart, overlapping tick) is
  harmless.

DESIGN:
  - Background goroutine with a configurable check interval
  - Runs once immediately on Start, then on every tick
  - One employee's failure is counted and skipped inside the engine

USAGE:
  scheduler := NewDailyScheduler(engine, log)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - engine/batch.go: RunGenerate, RunExpire
  - handlers.go: the same runs, triggered manually via /api/admin
*/
package api

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/hrforge/leave-engine/engine"
	"github.com/hrforge/leave-engine/leave"
)

// DailyScheduler drives the generation and expiry runs.
type DailyScheduler struct {
	Engine        *engine.Engine
	CheckInterval time.Duration
	Enabled       bool

	log    zerolog.Logger
	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewDailyScheduler creates a scheduler with a 24h interval.
func NewDailyScheduler(eng *engine.Engine, log zerolog.Logger) *DailyScheduler {
	return &DailyScheduler{
		Engine:        eng,
		CheckInterval: 24 * time.Hour,
		Enabled:       true,
		log:           log,
		stop:          make(chan struct{}),
	}
}

// Start begins the scheduler.
func (ds *DailyScheduler) Start() {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	if !ds.Enabled {
		ds.log.Info().Msg("scheduler disabled, not starting")
		return
	}

	ds.ticker = time.NewTicker(ds.CheckInterval)
	ds.wg.Add(1)
	go ds.run()

	ds.log.Info().Dur("interval", ds.CheckInterval).Msg("scheduler started")
}

// Stop stops the scheduler and waits for an in-flight run to finish.
func (ds *DailyScheduler) Stop() {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	if ds.ticker != nil {
		ds.ticker.Stop()
		close(ds.stop)
		ds.wg.Wait()
		ds.log.Info().Msg("scheduler stopped")
	}
}

func (ds *DailyScheduler) run() {
	defer ds.wg.Done()

	// Run immediately on start
	ds.RunNow()

	for {
		select {
		case <-ds.ticker.C:
			ds.RunNow()
		case <-ds.stop:
			return
		}
	}
}

// RunNow executes one maintenance pass: generation first so a lot granted
// today exists before the expiry check, then expiry.
func (ds *DailyScheduler) RunNow() {
	ctx := context.Background()
	today := leave.Today()

	if _, err := ds.Engine.RunGenerate(ctx, today); err != nil {
		ds.log.Error().Err(err).Msg("scheduled generation run failed")
	}
	if _, err := ds.Engine.RunExpire(ctx, today); err != nil {
		ds.log.Error().Err(err).Msg("scheduled expiry run failed")
	}
}
