package taskq

import (
	"context"
	"time"
)

// StaleCounts reports how many rows a Janitor pass touched, broken
// down by the two independent sweeps requeue_stale performs.
type StaleCounts struct {
	ExpiredLeases int64
	StaleRunning  int64
}

// Total is the combined number of rows requeued by a Janitor pass.
func (c StaleCounts) Total() int64 {
	return c.ExpiredLeases + c.StaleRunning
}

// Janitor recovers tasks abandoned by a dead leaseholder. It does not
// participate in normal lease acquisition; lease_one already reclaims
// expired leases lazily, so Janitor exists for the harder case: a
// process that died after mark_running but before finalization, which
// only a stale-heartbeat sweep of running rows can detect.
type Janitor interface {

	// RequeueStale performs two updates in one transaction:
	//
	//   - every leased row whose lease_expires_at is in the past is
	//     returned to queued (pure bookkeeping; the next lease_one
	//     would reclaim these anyway)
	//   - every running row whose last_heartbeat_at is older than
	//     runningStaleSeconds is returned to queued, clearing its
	//     backend handle and started_at
	//
	// It returns how many rows each sweep touched.
	RequeueStale(ctx context.Context, runningStaleSeconds time.Duration) (StaleCounts, error)

	// CountStale reports how many rows the next RequeueStale call would
	// touch, without mutating anything. Used for dry-run invocations.
	CountStale(ctx context.Context, runningStaleSeconds time.Duration) (StaleCounts, error)
}
