/*
scheduler.go - Periodic invoice consistency check

PURPOSE:
  Runs ledger.Service.CheckInvoices in the background so drift between an
  invoice and its payments is reported even when nobody is looking at it.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Checks once immediately on start
  - Never writes; discrepancies are logged at error level

CONFIGURATION:
  - CheckInterval: How often to check (LEDGER_CHECK_INTERVAL, default 1h)
  - Enabled: Whether scheduler is active (interval > 0)

USAGE:
  scheduler := NewConsistencyScheduler(svc, time.Hour, log)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - ledger/check.go: The check itself
  - cmd/server/check.go: One-off run from the command line
*/
package api

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/warp/payment-ledger/ledger"
)

// ConsistencyScheduler periodically checks stored invoices.
type ConsistencyScheduler struct {
	Service       *ledger.Service
	CheckInterval time.Duration
	Enabled       bool

	log    zerolog.Logger
	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewConsistencyScheduler creates a scheduler. A non-positive interval
// disables it.
func NewConsistencyScheduler(svc *ledger.Service, interval time.Duration, log zerolog.Logger) *ConsistencyScheduler {
	return &ConsistencyScheduler{
		Service:       svc,
		CheckInterval: interval,
		Enabled:       interval > 0,
		log:           log,
		stop:          make(chan struct{}),
	}
}

// Start begins the scheduler.
func (cs *ConsistencyScheduler) Start() {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	if !cs.Enabled {
		cs.log.Info().Msg("consistency check disabled")
		return
	}
	if cs.ticker != nil {
		return
	}

	cs.ticker = time.NewTicker(cs.CheckInterval)
	cs.wg.Add(1)
	go cs.run()

	cs.log.Info().Dur("interval", cs.CheckInterval).Msg("consistency check started")
}

// Stop stops the scheduler and waits for a running check to finish.
func (cs *ConsistencyScheduler) Stop() {
	cs.mu.Lock()
	ticker := cs.ticker
	cs.ticker = nil
	cs.mu.Unlock()

	if ticker == nil {
		return
	}
	ticker.Stop()
	close(cs.stop)
	cs.wg.Wait()
	cs.log.Info().Msg("consistency check stopped")
}

func (cs *ConsistencyScheduler) run() {
	defer cs.wg.Done()

	// Run immediately on start
	cs.RunNow(context.Background())

	for {
		select {
		case <-cs.tickerC():
			cs.RunNow(context.Background())
		case <-cs.stop:
			return
		}
	}
}

func (cs *ConsistencyScheduler) tickerC() <-chan time.Time {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	if cs.ticker == nil {
		return nil
	}
	return cs.ticker.C
}

// RunNow performs one check and logs the outcome.
func (cs *ConsistencyScheduler) RunNow(ctx context.Context) (ledger.CheckReport, error) {
	started := time.Now()
	report, err := cs.Service.CheckInvoices(ctx)

	ev := cs.log.Info()
	if err != nil {
		ev = cs.log.Warn().Err(err)
	} else if len(report.Discrepancies) > 0 {
		ev = cs.log.Error()
	}
	ev.Int("checked", report.Checked).
		Int("discrepancies", len(report.Discrepancies)).
		Dur("duration", time.Since(started)).
		Msg("consistency check finished")
	return report, err
}
