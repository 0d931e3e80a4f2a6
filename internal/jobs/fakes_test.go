package jobs

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"genstudio/internal/adapter/memory"
	"genstudio/internal/domain"
	"genstudio/internal/providers/image"
	"genstudio/internal/storage"
)

var testNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock { return &fakeClock{now: testNow} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type memBlobs struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newMemBlobs() *memBlobs { return &memBlobs{objects: make(map[string][]byte)} }

func (b *memBlobs) Fetch(_ context.Context, ref string) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.objects[ref]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	return data, nil
}

func (b *memBlobs) Store(_ context.Context, key string, data []byte) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[key] = append([]byte(nil), data...)
	return key, nil
}

func (b *memBlobs) has(key string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.objects[key]
	return ok
}

type stubGenerator struct {
	mu    sync.Mutex
	calls int
	reqs  []image.GenerateRequest
	fn    func(call int, req image.GenerateRequest) (*image.Result, error)
}

func (g *stubGenerator) Generate(_ context.Context, req image.GenerateRequest) (*image.Result, error) {
	g.mu.Lock()
	g.calls++
	call := g.calls
	g.reqs = append(g.reqs, req)
	fn := g.fn
	g.mu.Unlock()
	if fn == nil {
		return okResult("req-"+req.RequestID), nil
	}
	return fn(call, req)
}

func (g *stubGenerator) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

func (g *stubGenerator) lastRequest() image.GenerateRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.reqs[len(g.reqs)-1]
}

func okResult(requestID string) *image.Result {
	return &image.Result{
		Images:            []image.Asset{{Format: "image/png", Data: []byte("\x89PNG generated")}},
		ProviderRequestID: requestID,
	}
}

type harness struct {
	store  *memory.JobStore
	owners *memory.Owners
	blobs  *memBlobs
	gen    *stubGenerator
	clock  *fakeClock
	exec   *Executor
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		store:  memory.NewJobStore(),
		owners: memory.NewOwners(),
		blobs:  newMemBlobs(),
		gen:    &stubGenerator{},
		clock:  newFakeClock(),
	}
	h.owners.Set("owner-1", domain.OwnerStandingActive)
	h.blobs.objects["uploads/in.png"] = []byte("\x89PNG input")
	h.exec = NewExecutor(ExecutorOptions{
		Store:        h.store,
		Owners:       h.owners,
		Blobs:        h.blobs,
		Provider:     h.gen,
		ProviderName: "stub",
		Clock:        h.clock,
		Logger:       zerolog.Nop(),
	})
	return h
}

func (h *harness) seed(t *testing.T, mutate func(j *domain.Job)) *domain.Job {
	t.Helper()
	job := domain.NewJob("job-1", "owner-1", []string{"uploads/in.png"}, domain.StyleParameters{Prompt: "a cat in a hat"}, domain.ProviderInfo{Name: "stub"}, 5, h.clock.Now())
	if mutate != nil {
		mutate(job)
	}
	if err := h.store.Put(job); err != nil {
		t.Fatalf("seed job: %v", err)
	}
	return job
}

func (h *harness) job(t *testing.T) *domain.Job {
	t.Helper()
	job, err := h.store.Get(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if err := job.Validate(); err != nil {
		t.Fatalf("job invariants broken: %v", err)
	}
	return job
}

func (h *harness) run(req TriggerRequest) Result {
	return h.exec.Execute(context.Background(), req)
}
