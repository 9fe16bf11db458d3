package peernode

import (
	"context"
	"time"
)

// tickInterval is the commit-predicate polling cadence, roughly 10 Hz as
// the concurrency model specifies.
const tickInterval = 100 * time.Millisecond

// RunTicker drives Engine.Tick on a fixed cadence until ctx is canceled.
// It runs on a single goroutine, so successive Tick calls never overlap.
func RunTicker(ctx context.Context, e *Engine) {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.Tick(ctx)
		}
	}
}
