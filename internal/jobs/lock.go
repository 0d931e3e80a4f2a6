package jobs

import (
	"context"
	"time"

	"genstudio/internal/domain"
)

// DefaultLease bounds how long a lock is honored before another execution
// may reclaim the job.
const DefaultLease = 15 * time.Minute

// LockManager claims jobs for a single execution through one conditional
// write on the job record.
type LockManager struct {
	store domain.JobStore
	clock Clock
	lease time.Duration
}

// NewLockManager builds a LockManager. A non-positive lease falls back to DefaultLease.
func NewLockManager(store domain.JobStore, clock Clock, lease time.Duration) *LockManager {
	if clock == nil {
		clock = SystemClock{}
	}
	if lease <= 0 {
		lease = DefaultLease
	}
	return &LockManager{store: store, clock: clock, lease: lease}
}

// Lease returns the configured lease.
func (m *LockManager) Lease() time.Duration { return m.lease }

// Acquire attempts to lock the job for executionID. The result is not
// acquired, without error, when another live execution holds the job, the job
// is terminal or retry gated, or versionID was already appended. Otherwise it
// carries the version id the holder must append; an empty versionID reserves
// the next sequential one.
func (m *LockManager) Acquire(ctx context.Context, jobID, versionID, executionID string) (domain.LockResult, error) {
	now := m.clock.Now()
	return m.store.AcquireLock(ctx, domain.LockRequest{
		JobID:       jobID,
		VersionID:   versionID,
		ExecutionID: executionID,
		Now:         now,
		StaleBefore: now.Add(-m.lease),
	})
}
