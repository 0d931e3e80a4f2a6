package jobs

import (
	"context"

	"genstudio/internal/domain"
)

// Appender records a successful result as a new immutable version.
type Appender struct {
	store domain.JobStore
	clock Clock
}

// NewAppender builds an Appender over store.
func NewAppender(store domain.JobStore, clock Clock) *Appender {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Appender{store: store, clock: clock}
}

// Append pushes the version and marks the job succeeded in one write. When
// versionID is already present the write is absorbed and Appended is false.
// versionID must be the id reserved by the lock.
func (a *Appender) Append(ctx context.Context, jobID, versionID string, artifactRefs []string, providerRequestID string) (domain.AppendResult, error) {
	return a.store.AppendVersion(ctx, domain.AppendRequest{
		JobID:             jobID,
		VersionID:         versionID,
		ArtifactRefs:      artifactRefs,
		ProviderRequestID: providerRequestID,
		Now:               a.clock.Now(),
	})
}
