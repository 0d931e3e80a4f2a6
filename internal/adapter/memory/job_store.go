// Package memory provides in-process implementations of the domain stores.
// They honour the same conditional-write semantics as the PostgreSQL
// repositories and are used by tests and development runs.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"genstudio/internal/domain"
)

var _ domain.JobStore = (*JobStore)(nil)

// JobStore keeps job records in a map guarded by a single mutex, which makes
// every method one atomic step.
type JobStore struct {
	mu   sync.Mutex
	jobs map[string]*domain.Job
}

// NewJobStore returns an empty store.
func NewJobStore() *JobStore {
	return &JobStore{jobs: make(map[string]*domain.Job)}
}

// Create inserts a new job record.
func (s *JobStore) Create(_ context.Context, job *domain.Job) error {
	if err := job.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[job.ID]; ok {
		return domain.ErrDuplicateJob
	}
	s.jobs[job.ID] = job.Clone()
	return nil
}

// Put replaces a record wholesale after validating it. Tests use it to set up
// states that the executor would otherwise take time to reach.
func (s *JobStore) Put(job *domain.Job) error {
	if err := job.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job.Clone()
	return nil
}

// Get returns a copy of the job.
func (s *JobStore) Get(_ context.Context, jobID string) (*domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return job.Clone(), nil
}

// AcquireLock claims the job for req.ExecutionID when it is available and
// reserves the version id the holder will append: req.VersionID, or the next
// sequential id when none was requested.
func (s *JobStore) AcquireLock(_ context.Context, req domain.LockRequest) (domain.LockResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[req.JobID]
	if !ok {
		return domain.LockResult{}, domain.ErrNotFound
	}
	if job.Status != domain.JobStatusQueued && job.Status != domain.JobStatusRunning {
		return domain.LockResult{}, nil
	}
	if job.LockedAt != nil && !job.LockedAt.Before(req.StaleBefore) {
		return domain.LockResult{}, nil
	}
	if job.RetryAfter != nil && job.RetryAfter.After(req.Now) {
		return domain.LockResult{}, nil
	}
	if job.HasVersion(req.VersionID) {
		return domain.LockResult{}, nil
	}
	versionID := req.VersionID
	if versionID == "" {
		versionID = job.NextVersionID()
	}
	now := req.Now
	execID := req.ExecutionID
	job.Status = domain.JobStatusRunning
	job.LockedBy = &execID
	job.LockedAt = &now
	job.PendingVersionID = versionID
	job.Attempts++
	job.LastAttemptAt = &now
	job.RetryAfter = nil
	job.UpdatedAt = now
	return domain.LockResult{Acquired: true, VersionID: versionID}, nil
}

// AppendVersion pushes a version onto a running job when its id is still
// absent and marks the job succeeded in the same step. A present id is
// absorbed; a job that left running reports ErrJobTerminal or ErrLockLost.
func (s *JobStore) AppendVersion(_ context.Context, req domain.AppendRequest) (domain.AppendResult, error) {
	if req.VersionID == "" {
		return domain.AppendResult{}, fmt.Errorf("%w: version id is required", domain.ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[req.JobID]
	if !ok {
		return domain.AppendResult{}, domain.ErrNotFound
	}
	if job.HasVersion(req.VersionID) {
		return domain.AppendResult{Appended: false, VersionID: req.VersionID}, nil
	}
	if err := job.AppendRefusal(req.VersionID); err != nil {
		return domain.AppendResult{}, err
	}
	job.Versions = append(job.Versions, domain.Version{
		ID:           req.VersionID,
		ArtifactRefs: append([]string(nil), req.ArtifactRefs...),
		CreatedAt:    req.Now,
	})
	job.Status = domain.JobStatusSucceeded
	job.LockedBy = nil
	job.LockedAt = nil
	job.PendingVersionID = ""
	job.RetryAfter = nil
	job.Error = nil
	if req.ProviderRequestID != "" {
		job.Provider.RequestIDs = append(job.Provider.RequestIDs, req.ProviderRequestID)
	}
	job.UpdatedAt = req.Now
	return domain.AppendResult{Appended: true, VersionID: req.VersionID}, nil
}

// RecordFailure finalizes a failed attempt if update.ExecutionID still holds the lock.
func (s *JobStore) RecordFailure(_ context.Context, update domain.FailureUpdate) (bool, error) {
	if update.Status != domain.JobStatusQueued && update.Status != domain.JobStatusFailed {
		return false, fmt.Errorf("%w: failure cannot move job to %s", domain.ErrInvalidTransition, update.Status)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[update.JobID]
	if !ok {
		return false, domain.ErrNotFound
	}
	if !heldBy(job, update.ExecutionID) {
		return false, nil
	}
	jobErr := update.Error
	job.Status = update.Status
	job.LockedBy = nil
	job.LockedAt = nil
	job.PendingVersionID = ""
	job.RetryAfter = nil
	if update.Status == domain.JobStatusQueued && update.RetryAfter != nil {
		at := *update.RetryAfter
		job.RetryAfter = &at
	}
	job.Error = &jobErr
	if update.ProviderRequestID != "" {
		job.Provider.RequestIDs = append(job.Provider.RequestIDs, update.ProviderRequestID)
	}
	job.UpdatedAt = update.Now
	return true, nil
}

// ReleaseLock hands a running job back to the queue without recording a failure.
func (s *JobStore) ReleaseLock(_ context.Context, jobID, executionID string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return domain.ErrNotFound
	}
	if !heldBy(job, executionID) {
		return domain.ErrLockLost
	}
	job.Status = domain.JobStatusQueued
	job.LockedBy = nil
	job.LockedAt = nil
	job.PendingVersionID = ""
	job.UpdatedAt = now
	return nil
}

// ListRecoverable returns queued jobs that are due and running jobs whose
// lock outlived the lease, oldest first.
func (s *JobStore) ListRecoverable(_ context.Context, query domain.RecoveryQuery) ([]*domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.Job
	for _, job := range s.jobs {
		switch job.Status {
		case domain.JobStatusQueued:
			if job.RetryAfter != nil && job.RetryAfter.After(query.Now) {
				continue
			}
		case domain.JobStatusRunning:
			if job.LockedAt == nil || !job.LockedAt.Before(query.StaleBefore) {
				continue
			}
		default:
			continue
		}
		out = append(out, job.Clone())
	}
	sort.Slice(out, func(i, k int) bool {
		if out[i].UpdatedAt.Equal(out[k].UpdatedAt) {
			return out[i].ID < out[k].ID
		}
		return out[i].UpdatedAt.Before(out[k].UpdatedAt)
	})
	if query.Limit > 0 && len(out) > query.Limit {
		out = out[:query.Limit]
	}
	return out, nil
}

func heldBy(job *domain.Job, executionID string) bool {
	return job.Status == domain.JobStatusRunning && job.LockedBy != nil && *job.LockedBy == executionID
}

