package recovery

import (
	"context"
	"time"

	"github.com/yndnr/snapkeep/internal/telemetry/logger"
)

// Janitor purges stale recovery records in the background. It purges once
// on Run, then at every Interval.
type Janitor struct {
	// Ledger is the ledger to purge.
	Ledger *Ledger
	// MaxAge is passed to CleanupOlderThan.
	MaxAge time.Duration
	// Interval is the time between purges. If <= 0, only the initial purge
	// runs and Run blocks until ctx is cancelled.
	Interval time.Duration
	// Logger receives purge failures. Nil discards them.
	Logger logger.Logger

	// NewTicker creates a ticker channel and its stop function. If nil,
	// time.NewTicker is used.
	NewTicker func(d time.Duration) (tick <-chan time.Time, stop func())
}

// Run purges immediately, then at intervals until ctx is cancelled.
func (j *Janitor) Run(ctx context.Context) {
	j.runOnce()

	if j.Interval <= 0 {
		<-ctx.Done()
		return
	}

	newTicker := j.NewTicker
	if newTicker == nil {
		newTicker = defaultNewTicker
	}
	ch, stop := newTicker(j.Interval)
	defer stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ch:
			j.runOnce()
		}
	}
}

func (j *Janitor) runOnce() {
	if _, err := j.Ledger.CleanupOlderThan(j.MaxAge); err != nil && j.Logger != nil {
		j.Logger.Warn("recovery purge failed", "error", err)
	}
}

func defaultNewTicker(d time.Duration) (<-chan time.Time, func()) {
	t := time.NewTicker(d)
	return t.C, t.Stop
}
