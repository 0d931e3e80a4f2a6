package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"genstudio/internal/domain"
)

func TestGuardCheck(t *testing.T) {
	h := newHarness(t)
	h.seed(t, func(j *domain.Job) {
		j.Versions = []domain.Version{{ID: "v1", ArtifactRefs: []string{"a"}}}
	})
	guard := NewGuard(h.store)

	cases := []struct {
		version string
		exists  bool
	}{
		{version: "v1", exists: true},
		{version: "v2", exists: false},
		{version: "", exists: false},
	}
	for _, tc := range cases {
		res, err := guard.Check(context.Background(), "job-1", tc.version)
		if err != nil {
			t.Fatalf("Check(%q) error: %v", tc.version, err)
		}
		if res.Exists != tc.exists || res.Job == nil {
			t.Fatalf("Check(%q) = %+v", tc.version, res)
		}
	}
	if _, err := guard.Check(context.Background(), "missing", "v1"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("missing job error = %v", err)
	}
}

func TestLockManagerHonoursLease(t *testing.T) {
	h := newHarness(t)
	h.seed(t, nil)
	locks := NewLockManager(h.store, h.clock, 0)
	if locks.Lease() != DefaultLease {
		t.Fatalf("lease = %s", locks.Lease())
	}

	lock, err := locks.Acquire(context.Background(), "job-1", "v1", "A")
	if err != nil || !lock.Acquired || lock.VersionID != "v1" {
		t.Fatalf("first acquire = %+v err=%v", lock, err)
	}
	h.clock.Advance(DefaultLease - time.Second)
	if lock, _ := locks.Acquire(context.Background(), "job-1", "v1", "B"); lock.Acquired {
		t.Fatalf("live lock stolen")
	}
	h.clock.Advance(2 * time.Second)
	if lock, _ := locks.Acquire(context.Background(), "job-1", "v1", "B"); !lock.Acquired {
		t.Fatalf("expired lock not reclaimed")
	}
	job := h.job(t)
	if *job.LockedBy != "B" || job.Attempts != 2 || !job.LastAttemptAt.Equal(h.clock.Now()) {
		t.Fatalf("job = %+v", job)
	}
}

func TestLockManagerRefusesExistingVersion(t *testing.T) {
	h := newHarness(t)
	h.seed(t, func(j *domain.Job) {
		j.Versions = []domain.Version{{ID: "v1", ArtifactRefs: []string{"a"}}}
	})
	locks := NewLockManager(h.store, h.clock, time.Minute)
	if lock, _ := locks.Acquire(context.Background(), "job-1", "v1", "A"); lock.Acquired {
		t.Fatalf("locked for an existing version")
	}
}

func TestLockManagerReservesNextVersionID(t *testing.T) {
	h := newHarness(t)
	h.seed(t, nil)
	locks := NewLockManager(h.store, h.clock, time.Minute)

	first, err := locks.Acquire(context.Background(), "job-1", "", "A")
	if err != nil || !first.Acquired || first.VersionID != "v1" {
		t.Fatalf("first acquire = %+v err=%v", first, err)
	}
	h.clock.Advance(2 * time.Minute)
	second, err := locks.Acquire(context.Background(), "job-1", "", "B")
	if err != nil || !second.Acquired || second.VersionID != "v1" {
		t.Fatalf("reclaim = %+v err=%v, want the same reserved id", second, err)
	}
	if job := h.job(t); job.PendingVersionID != "v1" {
		t.Fatalf("pending version = %q", job.PendingVersionID)
	}
}

func TestAppenderAbsorbsDuplicates(t *testing.T) {
	h := newHarness(t)
	h.seed(t, nil)
	appender := NewAppender(h.store, h.clock)
	if lock, _ := NewLockManager(h.store, h.clock, 0).Acquire(context.Background(), "job-1", "v1", "A"); !lock.Acquired {
		t.Fatalf("lock not acquired")
	}

	first, err := appender.Append(context.Background(), "job-1", "v1", []string{"a.png"}, "req-1")
	if err != nil || !first.Appended {
		t.Fatalf("first append = %+v err=%v", first, err)
	}
	second, err := appender.Append(context.Background(), "job-1", "v1", []string{"b.png"}, "req-2")
	if err != nil || second.Appended {
		t.Fatalf("duplicate append = %+v err=%v", second, err)
	}
	job := h.job(t)
	if len(job.Versions) != 1 || job.Versions[0].ArtifactRefs[0] != "a.png" || !job.Versions[0].CreatedAt.Equal(testNow) {
		t.Fatalf("versions = %+v", job.Versions)
	}
}

func TestPassthroughProcessorFillsExtension(t *testing.T) {
	cases := map[string]string{
		"image/png":               "png",
		"image/jpeg":              "jpg",
		"image/webp; charset=bin": "webp",
		"":                        "png",
	}
	for mime, want := range cases {
		out, err := PassthroughProcessor{}.Process(context.Background(), Artifact{Data: []byte("x"), MIME: mime})
		if err != nil || out.Ext != want || string(out.Data) != "x" {
			t.Fatalf("Process(%q) = %+v err=%v", mime, out, err)
		}
	}
}
