package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"genstudio/internal/domain"
)

func seedJob(t *testing.T, store *JobStore, now time.Time) *domain.Job {
	t.Helper()
	job := domain.NewJob("job-1", "owner-1", []string{"uploads/in.png"}, domain.StyleParameters{Prompt: "cat"}, domain.ProviderInfo{Name: "gemini"}, 5, now)
	if err := store.Create(context.Background(), job); err != nil {
		t.Fatalf("Create error: %v", err)
	}
	return job
}

func lockReq(execID string, now time.Time) domain.LockRequest {
	return domain.LockRequest{JobID: "job-1", VersionID: "v1", ExecutionID: execID, Now: now, StaleBefore: now.Add(-15 * time.Minute)}
}

func TestAcquireLockIsExclusive(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	store := NewJobStore()
	seedJob(t, store, now)

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			lock, err := store.AcquireLock(context.Background(), lockReq(string(rune('a'+i)), now))
			if err != nil {
				t.Errorf("AcquireLock error: %v", err)
				return
			}
			if lock.Acquired {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()
	if wins != 1 {
		t.Fatalf("expected exactly one winner, got %d", wins)
	}
	job, _ := store.Get(context.Background(), "job-1")
	if job.Attempts != 1 || job.Status != domain.JobStatusRunning || job.PendingVersionID != "v1" {
		t.Fatalf("unexpected job after lock: attempts=%d status=%s pending=%q", job.Attempts, job.Status, job.PendingVersionID)
	}
}

func TestAcquireLockReclaimsStaleLease(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	store := NewJobStore()
	seedJob(t, store, now)
	if lock, _ := store.AcquireLock(context.Background(), lockReq("A", now.Add(-20*time.Minute))); !lock.Acquired {
		t.Fatalf("initial lock not acquired")
	}
	if lock, _ := store.AcquireLock(context.Background(), lockReq("B", now.Add(-10*time.Minute))); lock.Acquired {
		t.Fatalf("live lock was stolen")
	}
	if lock, _ := store.AcquireLock(context.Background(), lockReq("B", now)); !lock.Acquired {
		t.Fatalf("stale lock was not reclaimed")
	}
	job, _ := store.Get(context.Background(), "job-1")
	if *job.LockedBy != "B" || job.Attempts != 2 {
		t.Fatalf("unexpected lock holder %q attempts %d", *job.LockedBy, job.Attempts)
	}
}

func TestAppendVersionAbsorbsDuplicate(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	store := NewJobStore()
	seedJob(t, store, now)
	store.AcquireLock(context.Background(), lockReq("A", now))

	res, err := store.AppendVersion(context.Background(), domain.AppendRequest{JobID: "job-1", VersionID: "v1", ArtifactRefs: []string{"out.png"}, ProviderRequestID: "req-1", Now: now})
	if err != nil || !res.Appended {
		t.Fatalf("first append: res=%+v err=%v", res, err)
	}
	res, err = store.AppendVersion(context.Background(), domain.AppendRequest{JobID: "job-1", VersionID: "v1", ArtifactRefs: []string{"other.png"}, Now: now})
	if err != nil || res.Appended {
		t.Fatalf("duplicate append: res=%+v err=%v", res, err)
	}
	job, _ := store.Get(context.Background(), "job-1")
	if len(job.Versions) != 1 || job.Versions[0].ArtifactRefs[0] != "out.png" {
		t.Fatalf("versions mutated: %+v", job.Versions)
	}
	if job.Status != domain.JobStatusSucceeded || job.LockedBy != nil || job.LockedAt != nil {
		t.Fatalf("job not finalized: %+v", job)
	}
	if len(job.Provider.RequestIDs) != 1 || job.Provider.RequestIDs[0] != "req-1" {
		t.Fatalf("request ids = %v", job.Provider.RequestIDs)
	}
}

func TestAcquireLockReservesNextVersionID(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	store := NewJobStore()
	job := seedJob(t, store, now)
	job.Versions = []domain.Version{{ID: "v1", ArtifactRefs: []string{"a"}, CreatedAt: now}}
	if err := store.Put(job); err != nil {
		t.Fatalf("Put error: %v", err)
	}
	req := lockReq("A", now)
	req.VersionID = ""
	lock, err := store.AcquireLock(context.Background(), req)
	if err != nil || !lock.Acquired || lock.VersionID != "v2" {
		t.Fatalf("lock=%+v err=%v", lock, err)
	}
	got, _ := store.Get(context.Background(), "job-1")
	if got.PendingVersionID != "v2" {
		t.Fatalf("pending version = %q", got.PendingVersionID)
	}
}

func TestStaleExecutionAppendIsAbsorbedAfterReclaim(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	store := NewJobStore()
	seedJob(t, store, now)
	ctx := context.Background()

	reqA := lockReq("A", now)
	reqA.VersionID = ""
	lockA, _ := store.AcquireLock(ctx, reqA)
	if !lockA.Acquired {
		t.Fatalf("A did not acquire")
	}
	later := now.Add(16 * time.Minute)
	reqB := lockReq("B", later)
	reqB.VersionID = ""
	lockB, _ := store.AcquireLock(ctx, reqB)
	if !lockB.Acquired {
		t.Fatalf("B did not reclaim the stale lock")
	}
	if lockA.VersionID != lockB.VersionID {
		t.Fatalf("reclaim reserved %q, stale holder has %q", lockB.VersionID, lockA.VersionID)
	}

	resB, err := store.AppendVersion(ctx, domain.AppendRequest{JobID: "job-1", VersionID: lockB.VersionID, ArtifactRefs: []string{"b.png"}, Now: later})
	if err != nil || !resB.Appended {
		t.Fatalf("B append: res=%+v err=%v", resB, err)
	}
	resA, err := store.AppendVersion(ctx, domain.AppendRequest{JobID: "job-1", VersionID: lockA.VersionID, ArtifactRefs: []string{"a.png"}, Now: later})
	if err != nil || resA.Appended {
		t.Fatalf("A append: res=%+v err=%v", resA, err)
	}
	job, _ := store.Get(ctx, "job-1")
	if len(job.Versions) != 1 || job.Versions[0].ArtifactRefs[0] != "b.png" {
		t.Fatalf("versions = %+v", job.Versions)
	}
	if job.PendingVersionID != "" {
		t.Fatalf("pending version survived the append: %q", job.PendingVersionID)
	}
}

func TestAppendVersionRequiresID(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	store := NewJobStore()
	seedJob(t, store, now)
	store.AcquireLock(context.Background(), lockReq("A", now))
	if _, err := store.AppendVersion(context.Background(), domain.AppendRequest{JobID: "job-1", ArtifactRefs: []string{"a"}, Now: now}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestAppendVersionRejectsRequeuedJob(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	store := NewJobStore()
	seedJob(t, store, now)
	ctx := context.Background()

	store.AcquireLock(ctx, lockReq("A", now))
	later := now.Add(16 * time.Minute)
	store.AcquireLock(ctx, lockReq("B", later))
	retryAt := later.Add(30 * time.Second)
	ok, err := store.RecordFailure(ctx, domain.FailureUpdate{JobID: "job-1", ExecutionID: "B", Status: domain.JobStatusQueued, RetryAfter: &retryAt, Error: domain.JobError{Code: "transient_network", Retryable: true}, Now: later})
	if !ok || err != nil {
		t.Fatalf("B failure not recorded: ok=%v err=%v", ok, err)
	}

	_, err = store.AppendVersion(ctx, domain.AppendRequest{JobID: "job-1", VersionID: "v1", ArtifactRefs: []string{"a.png"}, Now: later})
	if !errors.Is(err, domain.ErrLockLost) {
		t.Fatalf("expected lock lost, got %v", err)
	}
	job, _ := store.Get(ctx, "job-1")
	if job.Status != domain.JobStatusQueued || len(job.Versions) != 0 {
		t.Fatalf("queued job was finalized: status=%s versions=%d", job.Status, len(job.Versions))
	}
}

func TestAppendVersionRejectsFailedJob(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	store := NewJobStore()
	job := seedJob(t, store, now)
	job.Status = domain.JobStatusFailed
	if err := store.Put(job); err != nil {
		t.Fatalf("Put error: %v", err)
	}
	_, err := store.AppendVersion(context.Background(), domain.AppendRequest{JobID: "job-1", VersionID: "v1", Now: now})
	if !errors.Is(err, domain.ErrJobTerminal) {
		t.Fatalf("expected terminal error, got %v", err)
	}
}

func TestRecordFailureRequiresLockHolder(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	store := NewJobStore()
	seedJob(t, store, now)
	store.AcquireLock(context.Background(), lockReq("A", now))

	retryAt := now.Add(30 * time.Second)
	update := domain.FailureUpdate{JobID: "job-1", ExecutionID: "B", Status: domain.JobStatusQueued, RetryAfter: &retryAt, Error: domain.JobError{Code: "upstream_unavailable", Retryable: true}, Now: now}
	if ok, _ := store.RecordFailure(context.Background(), update); ok {
		t.Fatalf("non-holder recorded failure")
	}
	update.ExecutionID = "A"
	if ok, err := store.RecordFailure(context.Background(), update); !ok || err != nil {
		t.Fatalf("holder failed to record failure: %v", err)
	}
	job, _ := store.Get(context.Background(), "job-1")
	if job.Status != domain.JobStatusQueued || job.RetryAfter == nil || !job.RetryAfter.Equal(retryAt) || job.LockedBy != nil || job.PendingVersionID != "" {
		t.Fatalf("unexpected job: %+v", job)
	}
	if err := job.Validate(); err != nil {
		t.Fatalf("invariants broken: %v", err)
	}
}

func TestPutRejectsSucceededWithoutVersions(t *testing.T) {
	store := NewJobStore()
	job := domain.NewJob("job-1", "owner-1", nil, domain.StyleParameters{}, domain.ProviderInfo{}, 5, time.Now())
	job.Status = domain.JobStatusSucceeded
	if err := store.Put(job); !errors.Is(err, domain.ErrInvariantViolation) {
		t.Fatalf("expected invariant violation, got %v", err)
	}
}

func TestListRecoverable(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	store := NewJobStore()
	mk := func(id string, mutate func(j *domain.Job)) {
		j := domain.NewJob(id, "owner-1", nil, domain.StyleParameters{}, domain.ProviderInfo{}, 5, now)
		mutate(j)
		if err := store.Put(j); err != nil {
			t.Fatalf("Put %s: %v", id, err)
		}
	}
	future := now.Add(time.Minute)
	past := now.Add(-time.Minute)
	stale := now.Add(-20 * time.Minute)
	fresh := now.Add(-time.Minute)
	exec := "exec"
	mk("queued-new", func(j *domain.Job) {})
	mk("queued-due", func(j *domain.Job) { j.RetryAfter = &past })
	mk("queued-gated", func(j *domain.Job) { j.RetryAfter = &future })
	mk("running-stale", func(j *domain.Job) { j.Status = domain.JobStatusRunning; j.LockedBy = &exec; j.LockedAt = &stale })
	mk("running-live", func(j *domain.Job) { j.Status = domain.JobStatusRunning; j.LockedBy = &exec; j.LockedAt = &fresh })
	mk("failed", func(j *domain.Job) { j.Status = domain.JobStatusFailed })

	jobs, err := store.ListRecoverable(context.Background(), domain.RecoveryQuery{Now: now, StaleBefore: now.Add(-15 * time.Minute), Limit: 100})
	if err != nil {
		t.Fatalf("ListRecoverable error: %v", err)
	}
	got := map[string]bool{}
	for _, j := range jobs {
		got[j.ID] = true
	}
	for _, id := range []string{"queued-new", "queued-due", "running-stale"} {
		if !got[id] {
			t.Fatalf("expected %s in recoverable set %v", id, got)
		}
	}
	if len(got) != 3 {
		t.Fatalf("unexpected recoverable set %v", got)
	}

	limited, _ := store.ListRecoverable(context.Background(), domain.RecoveryQuery{Now: now, StaleBefore: now.Add(-15 * time.Minute), Limit: 2})
	if len(limited) != 2 {
		t.Fatalf("limit not applied: %d", len(limited))
	}
}
