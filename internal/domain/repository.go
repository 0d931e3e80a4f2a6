package domain

import (
	"context"
	"time"
)

// LockRequest describes a conditional lock acquisition. The store applies it
// as a single atomic write or not at all.
type LockRequest struct {
	JobID       string
	VersionID   string
	ExecutionID string
	Now         time.Time
	StaleBefore time.Time
}

// LockResult reports whether the lock was taken and which version id the
// holder must append. The id is fixed by the lock write itself, so an
// execution reclaimed after a lease expiry appends under the same id as the
// one that replaced it.
type LockResult struct {
	Acquired  bool
	VersionID string
}

// AppendRequest describes a conditional version push. VersionID is required;
// it is the id returned by the lock that preceded the append.
type AppendRequest struct {
	JobID             string
	VersionID         string
	ArtifactRefs      []string
	ProviderRequestID string
	Now               time.Time
}

// AppendResult reports the outcome of an append.
type AppendResult struct {
	Appended  bool
	VersionID string
}

// FailureUpdate finalizes a failed attempt for the execution holding the lock.
type FailureUpdate struct {
	JobID             string
	ExecutionID       string
	Status            JobStatus
	RetryAfter        *time.Time
	Error             JobError
	ProviderRequestID string
	Now               time.Time
}

// RecoveryQuery selects jobs eligible for a recovery trigger.
type RecoveryQuery struct {
	Now         time.Time
	StaleBefore time.Time
	Limit       int
}

// JobStore persists job records. Every mutating method is a single
// conditional write against one record.
type JobStore interface {
	Create(ctx context.Context, job *Job) error
	Get(ctx context.Context, jobID string) (*Job, error)
	AcquireLock(ctx context.Context, req LockRequest) (LockResult, error)
	AppendVersion(ctx context.Context, req AppendRequest) (AppendResult, error)
	RecordFailure(ctx context.Context, update FailureUpdate) (bool, error)
	ReleaseLock(ctx context.Context, jobID, executionID string, now time.Time) error
	ListRecoverable(ctx context.Context, query RecoveryQuery) ([]*Job, error)
}

// OwnerDirectory answers authorization side-checks for job owners.
type OwnerDirectory interface {
	Standing(ctx context.Context, ownerID string) (OwnerStanding, error)
}
