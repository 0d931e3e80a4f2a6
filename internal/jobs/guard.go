package jobs

import (
	"context"

	"genstudio/internal/domain"
)

// GuardResult reports the loaded job and whether the requested version is
// already present on it.
type GuardResult struct {
	Job    *domain.Job
	Exists bool
}

// Guard answers "was this work already done?" before any side effect runs.
type Guard struct {
	store domain.JobStore
}

// NewGuard builds a Guard over store.
func NewGuard(store domain.JobStore) *Guard {
	return &Guard{store: store}
}

// Check loads the job and looks for versionID in its versions. It returns
// domain.ErrNotFound when the job does not exist. An empty versionID never
// exists; the lock reserves one later.
func (g *Guard) Check(ctx context.Context, jobID, versionID string) (GuardResult, error) {
	job, err := g.store.Get(ctx, jobID)
	if err != nil {
		return GuardResult{}, err
	}
	return GuardResult{Job: job, Exists: job.HasVersion(versionID)}, nil
}
