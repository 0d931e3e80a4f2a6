package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"genstudio/internal/domain"
	"genstudio/internal/infra"
	"genstudio/internal/sqlinline"
)

var _ domain.JobStore = (*JobRepositoryPG)(nil)

// JobRepositoryPG implements domain.JobStore on PostgreSQL. Every
// coordination primitive is a single conditional statement, so concurrent
// executors in separate processes serialize on the row alone.
type JobRepositoryPG struct {
	sql infra.SQLExecutor
}

// NewJobRepository creates a new job repository backed by PostgreSQL.
func NewJobRepository(sql infra.SQLExecutor) *JobRepositoryPG {
	return &JobRepositoryPG{sql: sql}
}

// Create inserts a queued job.
func (r *JobRepositoryPG) Create(ctx context.Context, job *domain.Job) error {
	if err := job.Validate(); err != nil {
		return err
	}
	inputRefs, err := json.Marshal(nonNilStrings(job.InputRefs))
	if err != nil {
		return fmt.Errorf("encode input refs: %w", err)
	}
	params, err := json.Marshal(job.StyleParameters)
	if err != nil {
		return fmt.Errorf("encode style parameters: %w", err)
	}
	provider := job.Provider
	provider.RequestIDs = nonNilStrings(provider.RequestIDs)
	providerJSON, err := json.Marshal(provider)
	if err != nil {
		return fmt.Errorf("encode provider: %w", err)
	}
	tag, err := r.sql.Exec(ctx, sqlinline.QInsertGenerationJob,
		job.ID,
		job.OwnerID,
		inputRefs,
		params,
		providerJSON,
		job.MaxAttempts,
		job.CreatedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrDuplicateJob
	}
	return nil
}

// Get fetches a job by its identifier.
func (r *JobRepositoryPG) Get(ctx context.Context, jobID string) (*domain.Job, error) {
	job, err := scanJob(r.sql.QueryRow(ctx, sqlinline.QSelectGenerationJob, jobID))
	if err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return job, nil
}

// AcquireLock claims the job when it is available and returns the version id
// the lock reserved. A missing job reports not acquired rather than
// ErrNotFound; callers load the job beforehand.
func (r *JobRepositoryPG) AcquireLock(ctx context.Context, req domain.LockRequest) (domain.LockResult, error) {
	var versionID string
	err := r.sql.QueryRow(ctx, sqlinline.QAcquireGenerationJobLock,
		req.JobID,
		req.ExecutionID,
		req.Now,
		req.StaleBefore,
		req.VersionID,
	).Scan(&versionID)
	if err != nil {
		if infra.IsNoRows(err) {
			return domain.LockResult{}, nil
		}
		return domain.LockResult{}, err
	}
	return domain.LockResult{Acquired: true, VersionID: versionID}, nil
}

// AppendVersion pushes the version onto a running job and marks it succeeded
// in one statement. When nothing was written it inspects the row to tell a
// duplicate apart from a missing, finished or requeued job.
func (r *JobRepositoryPG) AppendVersion(ctx context.Context, req domain.AppendRequest) (domain.AppendResult, error) {
	if req.VersionID == "" {
		return domain.AppendResult{}, fmt.Errorf("%w: version id is required", domain.ErrInvalidInput)
	}
	refs, err := json.Marshal(nonNilStrings(req.ArtifactRefs))
	if err != nil {
		return domain.AppendResult{}, fmt.Errorf("encode artifact refs: %w", err)
	}
	tag, err := r.sql.Exec(ctx, sqlinline.QAppendGenerationJobVersion,
		req.JobID,
		req.VersionID,
		refs,
		req.ProviderRequestID,
		req.Now,
	)
	if err != nil {
		return domain.AppendResult{}, err
	}
	if tag.RowsAffected() == 1 {
		return domain.AppendResult{Appended: true, VersionID: req.VersionID}, nil
	}

	job, err := r.Get(ctx, req.JobID)
	if err != nil {
		return domain.AppendResult{}, err
	}
	if job.HasVersion(req.VersionID) {
		return domain.AppendResult{Appended: false, VersionID: req.VersionID}, nil
	}
	if err := job.AppendRefusal(req.VersionID); err != nil {
		return domain.AppendResult{}, err
	}
	return domain.AppendResult{}, fmt.Errorf("append %s to job %s: %w", req.VersionID, job.ID, domain.ErrLockLost)
}

// RecordFailure finalizes a failed attempt if update.ExecutionID still holds the lock.
func (r *JobRepositoryPG) RecordFailure(ctx context.Context, update domain.FailureUpdate) (bool, error) {
	if update.Status != domain.JobStatusQueued && update.Status != domain.JobStatusFailed {
		return false, fmt.Errorf("%w: failure cannot move job to %s", domain.ErrInvalidTransition, update.Status)
	}
	jobErr, err := json.Marshal(update.Error)
	if err != nil {
		return false, fmt.Errorf("encode job error: %w", err)
	}
	var retryAfter *time.Time
	if update.Status == domain.JobStatusQueued {
		retryAfter = update.RetryAfter
	}
	tag, err := r.sql.Exec(ctx, sqlinline.QRecordGenerationJobFailure,
		update.JobID,
		update.ExecutionID,
		string(update.Status),
		retryAfter,
		jobErr,
		update.ProviderRequestID,
		update.Now,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// ReleaseLock hands a running job back to the queue. It returns
// domain.ErrLockLost when executionID no longer holds the lock.
func (r *JobRepositoryPG) ReleaseLock(ctx context.Context, jobID, executionID string, now time.Time) error {
	tag, err := r.sql.Exec(ctx, sqlinline.QReleaseGenerationJobLock, jobID, executionID, now)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrLockLost
	}
	return nil
}

// ListRecoverable returns due queued jobs and running jobs with expired locks.
func (r *JobRepositoryPG) ListRecoverable(ctx context.Context, query domain.RecoveryQuery) ([]*domain.Job, error) {
	rows, err := r.sql.Query(ctx, sqlinline.QListRecoverableGenerationJobs, query.Now, query.StaleBefore, query.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, job)
	}
	return out, rows.Err()
}

func scanJob(row pgx.Row) (*domain.Job, error) {
	var job domain.Job
	var status string
	var inputRefs, params, provider, versions, jerr []byte
	var pending *string
	if err := row.Scan(
		&job.ID,
		&job.OwnerID,
		&inputRefs,
		&params,
		&provider,
		&status,
		&versions,
		&job.Attempts,
		&job.MaxAttempts,
		&job.LastAttemptAt,
		&job.RetryAfter,
		&job.LockedBy,
		&job.LockedAt,
		&pending,
		&jerr,
		&job.CreatedAt,
		&job.UpdatedAt,
	); err != nil {
		return nil, err
	}
	job.Status = domain.JobStatus(status)
	if pending != nil {
		job.PendingVersionID = *pending
	}
	if err := decodeJSON(inputRefs, &job.InputRefs); err != nil {
		return nil, fmt.Errorf("decode input refs: %w", err)
	}
	if err := decodeJSON(params, &job.StyleParameters); err != nil {
		return nil, fmt.Errorf("decode style parameters: %w", err)
	}
	if err := decodeJSON(provider, &job.Provider); err != nil {
		return nil, fmt.Errorf("decode provider: %w", err)
	}
	if err := decodeJSON(versions, &job.Versions); err != nil {
		return nil, fmt.Errorf("decode versions: %w", err)
	}
	if len(jerr) > 0 && string(jerr) != "null" {
		job.Error = &domain.JobError{}
		if err := json.Unmarshal(jerr, job.Error); err != nil {
			return nil, fmt.Errorf("decode job error: %w", err)
		}
	}
	if job.Versions == nil {
		job.Versions = []domain.Version{}
	}
	if job.Provider.RequestIDs == nil {
		job.Provider.RequestIDs = []string{}
	}
	return &job, nil
}

func decodeJSON(raw []byte, dst any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, dst)
}

func nonNilStrings(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}
