package adbfs

import (
	"context"
	"time"

	"github.com/mwantia/adbfs/metrics"
)

const settlePollInterval = 50 * time.Millisecond

// observer reports whether a mutation is already visible on the device.
type observer func(ctx context.Context) bool

// settle waits after a mutating remote command until the change is visible.
// The wait never exceeds the configured delay and never fails the operation;
// a done context only shortens it.
func (fs *FileSystem) settle(ctx context.Context, observed observer) {
	start := time.Now()
	strategy := fs.options.SettleStrategy
	defer func() {
		metrics.RecordSettle(string(strategy), time.Since(start))
	}()

	delay := fs.options.SettleDelay
	if delay <= 0 {
		return
	}

	if strategy != SettlePoll || observed == nil {
		wait(ctx, delay)
		return
	}

	deadline := start.Add(delay)
	for {
		if observed(ctx) {
			return
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return
		}
		if !wait(ctx, min(settlePollInterval, remaining)) {
			return
		}
	}
}

func wait(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
