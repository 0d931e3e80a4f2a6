package domain

import (
	"fmt"
	"strconv"
	"time"
)

// JobStatus enumerates job lifecycle states.
type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusSucceeded JobStatus = "succeeded"
	JobStatusFailed    JobStatus = "failed"
)

// IsTerminal reports whether the status can no longer change.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusSucceeded || s == JobStatusFailed
}

// Valid reports whether s is one of the known statuses.
func (s JobStatus) Valid() bool {
	switch s {
	case JobStatusQueued, JobStatusRunning, JobStatusSucceeded, JobStatusFailed:
		return true
	default:
		return false
	}
}

// CanTransition encodes the job state machine. Staying in the same
// non-terminal state is allowed so that a reclaimed running job can be
// locked again.
func CanTransition(from, to JobStatus) bool {
	switch from {
	case JobStatusQueued:
		return to == JobStatusRunning
	case JobStatusRunning:
		return to == JobStatusRunning || to == JobStatusSucceeded || to == JobStatusQueued || to == JobStatusFailed
	default:
		return false
	}
}

// DefaultMaxAttempts is applied when a job is created without a ceiling.
const DefaultMaxAttempts = 5

// StyleParameters is passed to the generation provider verbatim.
type StyleParameters struct {
	Prompt         string         `json:"prompt"`
	NegativePrompt string         `json:"negative_prompt,omitempty"`
	Quality        string         `json:"quality,omitempty"`
	AspectRatio    string         `json:"aspect_ratio,omitempty"`
	Extras         map[string]any `json:"extras,omitempty"`
}

// ProviderInfo names the external generation service and keeps an
// append-only log of the request identifiers it issued.
type ProviderInfo struct {
	Name       string   `json:"name"`
	Model      string   `json:"model"`
	RequestIDs []string `json:"request_ids"`
}

// Version is one immutable, successfully produced result.
type Version struct {
	ID           string    `json:"version_id"`
	ArtifactRefs []string  `json:"artifact_refs"`
	CreatedAt    time.Time `json:"created_at"`
}

// JobError is the last classified failure of a job.
type JobError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

// Job is the persisted record of one generation request.
type Job struct {
	ID               string
	OwnerID          string
	InputRefs        []string
	StyleParameters  StyleParameters
	Provider         ProviderInfo
	Status           JobStatus
	Versions         []Version
	Attempts         int
	MaxAttempts      int
	LastAttemptAt    *time.Time
	RetryAfter       *time.Time
	LockedBy         *string
	LockedAt         *time.Time
	// PendingVersionID is the version id reserved by the current lock holder.
	PendingVersionID string
	Error            *JobError
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// NewJob builds a queued job ready to be persisted.
func NewJob(id, ownerID string, inputRefs []string, params StyleParameters, provider ProviderInfo, maxAttempts int, now time.Time) *Job {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if provider.RequestIDs == nil {
		provider.RequestIDs = []string{}
	}
	return &Job{
		ID:              id,
		OwnerID:         ownerID,
		InputRefs:       append([]string(nil), inputRefs...),
		StyleParameters: params,
		Provider:        provider,
		Status:          JobStatusQueued,
		Versions:        []Version{},
		MaxAttempts:     maxAttempts,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// HasVersion reports whether a version with the given id was already appended.
func (j *Job) HasVersion(versionID string) bool {
	if j == nil || versionID == "" {
		return false
	}
	for _, v := range j.Versions {
		if v.ID == versionID {
			return true
		}
	}
	return false
}

// LatestVersion returns the most recently appended version, if any.
func (j *Job) LatestVersion() *Version {
	if j == nil || len(j.Versions) == 0 {
		return nil
	}
	v := j.Versions[len(j.Versions)-1]
	return &v
}

// NextVersionID derives the id the next appended version would receive.
func (j *Job) NextVersionID() string {
	return VersionIDFor(len(j.Versions) + 1)
}

// VersionIDFor formats a sequential version id.
func VersionIDFor(n int) string {
	return "v" + strconv.Itoa(n)
}

// LockLive reports whether the job holds a lock that has not outlived the lease.
func (j *Job) LockLive(now time.Time, lease time.Duration) bool {
	if j == nil || j.LockedAt == nil {
		return false
	}
	return !j.LockedAt.Before(now.Add(-lease))
}

// RetryGated reports whether the job is waiting on a backoff delay.
func (j *Job) RetryGated(now time.Time) bool {
	return j != nil && j.RetryAfter != nil && j.RetryAfter.After(now)
}

// AppendRefusal explains why the job cannot take versionID as a new version.
// Only a running job accepts one; nil means the append may proceed.
func (j *Job) AppendRefusal(versionID string) error {
	switch j.Status {
	case JobStatusRunning:
		return nil
	case JobStatusSucceeded, JobStatusFailed:
		return fmt.Errorf("append %s to job %s: %w", versionID, j.ID, ErrJobTerminal)
	default:
		return fmt.Errorf("append %s to job %s: %w", versionID, j.ID, ErrLockLost)
	}
}

// SetStatus applies a status change after checking the state machine and
// the success invariant.
func (j *Job) SetStatus(to JobStatus) error {
	if !to.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, to)
	}
	if !CanTransition(j.Status, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, j.Status, to)
	}
	if to == JobStatusSucceeded && len(j.Versions) == 0 {
		return fmt.Errorf("%w: succeeded job must have at least one version", ErrInvariantViolation)
	}
	j.Status = to
	return nil
}

// Validate checks the invariants that must hold at every observable state.
func (j *Job) Validate() error {
	if j.ID == "" {
		return fmt.Errorf("%w: id is required", ErrInvariantViolation)
	}
	if !j.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvariantViolation, j.Status)
	}
	if j.Status == JobStatusSucceeded && len(j.Versions) == 0 {
		return fmt.Errorf("%w: succeeded job must have at least one version", ErrInvariantViolation)
	}
	seen := make(map[string]struct{}, len(j.Versions))
	for _, v := range j.Versions {
		if v.ID == "" {
			return fmt.Errorf("%w: version id is required", ErrInvariantViolation)
		}
		if _, dup := seen[v.ID]; dup {
			return fmt.Errorf("%w: duplicate version %q", ErrInvariantViolation, v.ID)
		}
		seen[v.ID] = struct{}{}
	}
	if j.Attempts < 0 {
		return fmt.Errorf("%w: attempts must not be negative", ErrInvariantViolation)
	}
	if j.RetryAfter != nil && j.Status != JobStatusQueued {
		return fmt.Errorf("%w: retry_after set while %s", ErrInvariantViolation, j.Status)
	}
	if (j.LockedBy == nil) != (j.LockedAt == nil) {
		return fmt.Errorf("%w: lock owner and lock time must be set together", ErrInvariantViolation)
	}
	if j.PendingVersionID != "" && j.LockedBy == nil {
		return fmt.Errorf("%w: pending version %q without a lock", ErrInvariantViolation, j.PendingVersionID)
	}
	return nil
}

// Clone returns a deep copy so callers cannot mutate stored state.
func (j *Job) Clone() *Job {
	if j == nil {
		return nil
	}
	c := *j
	c.InputRefs = append([]string(nil), j.InputRefs...)
	c.Provider.RequestIDs = append([]string{}, j.Provider.RequestIDs...)
	c.Versions = make([]Version, len(j.Versions))
	for i, v := range j.Versions {
		v.ArtifactRefs = append([]string(nil), v.ArtifactRefs...)
		c.Versions[i] = v
	}
	if j.StyleParameters.Extras != nil {
		c.StyleParameters.Extras = make(map[string]any, len(j.StyleParameters.Extras))
		for k, v := range j.StyleParameters.Extras {
			c.StyleParameters.Extras[k] = v
		}
	}
	c.LastAttemptAt = cloneTime(j.LastAttemptAt)
	c.RetryAfter = cloneTime(j.RetryAfter)
	c.LockedAt = cloneTime(j.LockedAt)
	if j.LockedBy != nil {
		s := *j.LockedBy
		c.LockedBy = &s
	}
	if j.Error != nil {
		e := *j.Error
		c.Error = &e
	}
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
