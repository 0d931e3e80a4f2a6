package jobs

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"genstudio/internal/domain"
	"genstudio/internal/metrics"
	"genstudio/internal/providers/image"
	"genstudio/internal/storage"
)

// TriggerKind distinguishes a first generation from a refinement.
type TriggerKind string

const (
	KindInitial TriggerKind = "initial"
	KindRefine  TriggerKind = "refine"
)

// TriggerRequest is the payload of one execution invocation.
type TriggerRequest struct {
	JobID       string      `json:"jobId"`
	VersionID   string      `json:"requestedVersionId,omitempty"`
	Kind        TriggerKind `json:"kind,omitempty"`
	ExecutionID string      `json:"executionId,omitempty"`
}

// SkipReason explains why an execution ended without doing work.
type SkipReason string

const (
	ReasonJobGone                SkipReason = "job_gone"
	ReasonVersionExists          SkipReason = "version_exists"
	ReasonJobTerminal            SkipReason = "job_terminal"
	ReasonRetryGate              SkipReason = "retry_gate"
	ReasonLockNotAcquired        SkipReason = "lock_not_acquired"
	ReasonVersionAlreadyAppended SkipReason = "version_already_appended"
)

// Result is the outcome of one execution. Skips are not errors.
type Result struct {
	Success   bool       `json:"success"`
	Skipped   bool       `json:"skipped,omitempty"`
	Reason    SkipReason `json:"reason,omitempty"`
	Error     string     `json:"error,omitempty"`
	VersionID string     `json:"versionId,omitempty"`
}

func skipped(reason SkipReason) Result {
	return Result{Skipped: true, Reason: reason}
}

func (r Result) outcome() string {
	switch {
	case r.Success:
		return "succeeded"
	case r.Skipped:
		return "skipped"
	default:
		return "failed"
	}
}

const finalizeTimeout = 10 * time.Second

var errAttemptsExhausted = errors.New("attempt ceiling reached before execution started")

// ExecutorOptions wires an Executor.
type ExecutorOptions struct {
	Store         domain.JobStore
	Owners        domain.OwnerDirectory
	Blobs         storage.BlobStore
	Provider      image.Generator
	ProviderName  string
	Model         string
	PostProcessor PostProcessor
	Clock         Clock
	Backoff       Backoff
	Lease         time.Duration
	Logger        zerolog.Logger
}

// Executor runs one generation attempt for a job. It is safe to invoke
// concurrently and redundantly for the same job.
type Executor struct {
	store        domain.JobStore
	owners       domain.OwnerDirectory
	blobs        storage.BlobStore
	provider     image.Generator
	providerName string
	model        string
	post         PostProcessor
	clock        Clock
	backoff      Backoff
	guard        *Guard
	locks        *LockManager
	appender     *Appender
	logger       zerolog.Logger
}

// NewExecutor builds an Executor, applying defaults for optional collaborators.
func NewExecutor(opts ExecutorOptions) *Executor {
	clock := opts.Clock
	if clock == nil {
		clock = SystemClock{}
	}
	post := opts.PostProcessor
	if post == nil {
		post = PassthroughProcessor{}
	}
	backoff := opts.Backoff
	if len(backoff) == 0 {
		backoff = DefaultBackoff
	}
	name := opts.ProviderName
	if name == "" {
		name = "default"
	}
	return &Executor{
		store:        opts.Store,
		owners:       opts.Owners,
		blobs:        opts.Blobs,
		provider:     opts.Provider,
		providerName: name,
		model:        opts.Model,
		post:         post,
		clock:        clock,
		backoff:      backoff,
		guard:        NewGuard(opts.Store),
		locks:        NewLockManager(opts.Store, clock, opts.Lease),
		appender:     NewAppender(opts.Store, clock),
		logger:       opts.Logger.With().Str("component", "executor").Logger(),
	}
}

// Execute performs one attempt. It never returns an error and never panics;
// every outcome, including skips, is reported through Result. The work is
// detached from ctx cancellation and bounded by the lock lease instead.
func (e *Executor) Execute(ctx context.Context, req TriggerRequest) (res Result) {
	start := time.Now()
	if req.ExecutionID == "" {
		req.ExecutionID = uuid.NewString()
	}
	if req.Kind == "" {
		req.Kind = KindInitial
	}
	log := e.logger.With().
		Str("job_id", req.JobID).
		Str("execution_id", req.ExecutionID).
		Str("requested_version_id", req.VersionID).
		Str("kind", string(req.Kind)).
		Logger()

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.locks.Lease())
	defer cancel()

	locked := false
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("executor: panic during execution")
			if locked {
				e.release(ctx, req, log)
			}
			res = Result{Error: fmt.Sprintf("panic: %v", r)}
		}
		metrics.ExecutionsTotal.WithLabelValues(res.outcome(), string(res.Reason)).Inc()
		metrics.ExecutionDuration.WithLabelValues(res.outcome()).Observe(time.Since(start).Seconds())
		event := log.Info()
		if !res.Success && !res.Skipped {
			event = log.Warn()
		}
		event.Bool("success", res.Success).
			Str("reason", string(res.Reason)).
			Str("result_version_id", res.VersionID).
			Str("error", res.Error).
			Dur("duration", time.Since(start)).
			Msg("executor: finished")
	}()

	if strings.TrimSpace(req.JobID) == "" {
		return Result{Error: "job id is required"}
	}

	checked, err := e.guard.Check(ctx, req.JobID, req.VersionID)
	if errors.Is(err, domain.ErrNotFound) {
		return skipped(ReasonJobGone)
	}
	if err != nil {
		return Result{Error: fmt.Sprintf("load job: %v", err)}
	}
	if checked.Exists {
		return skipped(ReasonVersionExists)
	}
	if checked.Job.Status.IsTerminal() {
		return skipped(ReasonJobTerminal)
	}
	if checked.Job.RetryGated(e.clock.Now()) {
		return skipped(ReasonRetryGate)
	}

	lock, err := e.locks.Acquire(ctx, req.JobID, req.VersionID, req.ExecutionID)
	if errors.Is(err, domain.ErrNotFound) {
		return skipped(ReasonJobGone)
	}
	if err != nil {
		return Result{Error: fmt.Sprintf("acquire lock: %v", err)}
	}
	if !lock.Acquired {
		return skipped(ReasonLockNotAcquired)
	}
	locked = true
	// From here on the version id is the one the lock reserved.
	req.VersionID = lock.VersionID
	log = log.With().Str("version_id", req.VersionID).Logger()

	job, err := e.store.Get(ctx, req.JobID)
	if err != nil {
		log.Error().Err(err).Msg("executor: reload after lock failed")
		e.release(ctx, req, log)
		return Result{Error: fmt.Sprintf("reload job: %v", err)}
	}
	log = log.With().Int("attempt", job.Attempts).Int("max_attempts", job.MaxAttempts).Logger()

	out, runErr := e.generate(ctx, job, req, log)
	if runErr != nil {
		return e.fail(ctx, job, req, runErr, log)
	}

	fctx, fcancel := finalizeContext(ctx)
	defer fcancel()
	appended, err := e.appender.Append(fctx, req.JobID, req.VersionID, out.artifactRefs, out.providerRequestID)
	if err != nil {
		log.Error().Err(err).Msg("executor: append version failed")
		e.release(ctx, req, log)
		return Result{Error: fmt.Sprintf("append version: %v", err)}
	}
	if !appended.Appended {
		return Result{Skipped: true, Reason: ReasonVersionAlreadyAppended, VersionID: appended.VersionID}
	}
	return Result{Success: true, VersionID: appended.VersionID}
}

type generation struct {
	artifactRefs      []string
	providerRequestID string
}

// generate is the unsafe zone: every external side effect of an attempt
// happens here, and only while the lock is held.
func (e *Executor) generate(ctx context.Context, job *domain.Job, req TriggerRequest, log zerolog.Logger) (generation, error) {
	if job.Attempts > job.MaxAttempts {
		return generation{}, errAttemptsExhausted
	}

	if e.owners != nil {
		standing, err := e.owners.Standing(ctx, job.OwnerID)
		if errors.Is(err, domain.ErrNotFound) {
			return generation{}, failWith(KindMissingPrerequisite, fmt.Errorf("owner %s not found", job.OwnerID))
		}
		if err != nil {
			return generation{}, fmt.Errorf("owner standing: %w", err)
		}
		if !standing.InGoodStanding() {
			return generation{}, fmt.Errorf("owner %s is %s: %w", job.OwnerID, standing, domain.ErrBannedOwner)
		}
	}

	params := job.StyleParameters
	if strings.TrimSpace(params.Prompt) == "" {
		return generation{}, fmt.Errorf("%w: prompt is required", domain.ErrInvalidInput)
	}

	refs := append([]string(nil), job.InputRefs...)
	if req.Kind == KindRefine {
		latest := job.LatestVersion()
		if latest == nil {
			return generation{}, failWith(KindMissingPrerequisite, errors.New("refine requires an existing version"))
		}
		refs = append(refs, latest.ArtifactRefs...)
	}
	sources := make([]image.SourceImage, 0, len(refs))
	for _, ref := range refs {
		data, err := e.blobs.Fetch(ctx, ref)
		if err != nil {
			return generation{}, fmt.Errorf("fetch input %s: %w", ref, err)
		}
		sources = append(sources, image.SourceImage{Ref: ref, MIME: http.DetectContentType(data), Data: data})
	}

	model := job.Provider.Model
	if model == "" {
		model = e.model
	}
	started := time.Now()
	result, err := e.provider.Generate(ctx, image.GenerateRequest{
		Prompt:         params.Prompt,
		NegativePrompt: params.NegativePrompt,
		Quality:        params.Quality,
		AspectRatio:    params.AspectRatio,
		Model:          model,
		RequestID:      req.ExecutionID,
		References:     sources,
	})
	metrics.ProviderLatency.WithLabelValues(e.providerName).Observe(time.Since(started).Seconds())
	if err != nil {
		return generation{}, fmt.Errorf("generate: %w", err)
	}
	if result == nil || len(result.Images) == 0 {
		return generation{}, &image.Error{StatusCode: http.StatusBadGateway, Message: "provider returned no images"}
	}
	log.Debug().Str("provider_request_id", result.ProviderRequestID).Int("images", len(result.Images)).Msg("executor: provider returned")

	stored := make([]string, 0, len(result.Images))
	for i, img := range result.Images {
		artifact, err := e.post.Process(ctx, Artifact{Data: img.Data, MIME: img.Format})
		if err != nil {
			return generation{}, fmt.Errorf("post-process image %d: %w", i+1, err)
		}
		if artifact.Ext == "" {
			artifact.Ext = extensionForMIME(artifact.MIME)
		}
		// A reclaimed execution shares the version id, so its keys also carry
		// the execution id and cannot overwrite the artifacts that were appended.
		key := fmt.Sprintf("generated/%s/%s/%s/image-%02d.%s", job.ID, req.VersionID, req.ExecutionID, i+1, artifact.Ext)
		ref, err := e.blobs.Store(ctx, key, artifact.Data)
		if err != nil {
			return generation{}, fmt.Errorf("store output %s: %w", key, err)
		}
		stored = append(stored, ref)
	}
	return generation{artifactRefs: stored, providerRequestID: result.ProviderRequestID}, nil
}

// fail classifies runErr and finalizes the attempt with one write that only
// succeeds while this execution still holds the lock.
func (e *Executor) fail(ctx context.Context, job *domain.Job, req TriggerRequest, runErr error, log zerolog.Logger) Result {
	c := Classify(runErr)
	now := e.clock.Now()
	update := domain.FailureUpdate{
		JobID:             job.ID,
		ExecutionID:       req.ExecutionID,
		ProviderRequestID: image.RequestIDFromError(runErr),
		Now:               now,
	}
	switch {
	case !c.Retryable:
		update.Status = domain.JobStatusFailed
		update.Error = domain.JobError{Code: string(c.Kind), Message: c.Message}
	case job.Attempts >= job.MaxAttempts:
		update.Status = domain.JobStatusFailed
		update.Error = domain.JobError{Code: CodeMaxRetriesExceeded, Message: c.Message}
	default:
		retryAt := e.backoff.RetryAfter(now, job.Attempts)
		update.Status = domain.JobStatusQueued
		update.RetryAfter = &retryAt
		update.Error = domain.JobError{Code: string(c.Kind), Message: c.Message, Retryable: true}
	}
	metrics.FailuresTotal.WithLabelValues(update.Error.Code, fmt.Sprint(update.Error.Retryable)).Inc()

	fctx, cancel := finalizeContext(ctx)
	defer cancel()
	ok, err := e.store.RecordFailure(fctx, update)
	if err != nil {
		log.Error().Err(err).Str("kind", string(c.Kind)).Msg("executor: record failure failed")
		e.release(ctx, req, log)
		return Result{Error: fmt.Sprintf("%v; record failure: %v", runErr, err)}
	}
	if !ok {
		log.Warn().Str("kind", string(c.Kind)).Msg("executor: lock lost before failure was recorded")
		return Result{Error: fmt.Sprintf("%v: %v", runErr, domain.ErrLockLost)}
	}
	log.Warn().Err(runErr).
		Str("kind", string(c.Kind)).
		Str("code", update.Error.Code).
		Str("status", string(update.Status)).
		Bool("retryable", update.Error.Retryable).
		Msg("executor: attempt failed")
	return Result{Error: runErr.Error()}
}

func (e *Executor) release(ctx context.Context, req TriggerRequest, log zerolog.Logger) {
	fctx, cancel := finalizeContext(ctx)
	defer cancel()
	if err := e.store.ReleaseLock(fctx, req.JobID, req.ExecutionID, e.clock.Now()); err != nil && !errors.Is(err, domain.ErrLockLost) {
		log.Error().Err(err).Msg("executor: release lock failed")
	}
}

func finalizeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), finalizeTimeout)
}
