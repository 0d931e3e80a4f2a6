package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"genstudio/internal/domain"
	"genstudio/internal/metrics"
)

// DefaultScanBatch caps how many jobs one scan dispatches.
const DefaultScanBatch = 100

// ScanResult summarizes one recovery scan. Triggered and Failed count
// dispatches, not execution outcomes.
type ScanResult struct {
	JobIDs     []string      `json:"jobIds"`
	Found      int           `json:"found"`
	Triggered  int           `json:"triggered"`
	Failed     int           `json:"failed"`
	Duration   time.Duration `json:"-"`
	DurationMS int64         `json:"durationMs"`
}

// ScannerOptions wires a Scanner.
type ScannerOptions struct {
	Store   domain.JobStore
	Trigger Trigger
	Clock   Clock
	Lease   time.Duration
	Batch   int
	Logger  zerolog.Logger
}

// Scanner finds jobs left behind by lost triggers or crashed executions and
// re-triggers them. It is itself safe to run redundantly.
type Scanner struct {
	store   domain.JobStore
	trigger Trigger
	clock   Clock
	lease   time.Duration
	batch   int
	logger  zerolog.Logger
}

// NewScanner builds a Scanner.
func NewScanner(opts ScannerOptions) *Scanner {
	clock := opts.Clock
	if clock == nil {
		clock = SystemClock{}
	}
	lease := opts.Lease
	if lease <= 0 {
		lease = DefaultLease
	}
	batch := opts.Batch
	if batch <= 0 {
		batch = DefaultScanBatch
	}
	return &Scanner{
		store:   opts.Store,
		trigger: opts.Trigger,
		clock:   clock,
		lease:   lease,
		batch:   batch,
		logger:  opts.Logger.With().Str("component", "recovery").Logger(),
	}
}

// Scan queries recoverable jobs and dispatches one trigger per job without
// waiting for any execution to finish.
func (s *Scanner) Scan(ctx context.Context) (ScanResult, error) {
	start := time.Now()
	now := s.clock.Now()
	candidates, err := s.store.ListRecoverable(ctx, domain.RecoveryQuery{
		Now:         now,
		StaleBefore: now.Add(-s.lease),
		Limit:       s.batch,
	})
	if err != nil {
		return ScanResult{}, fmt.Errorf("list recoverable jobs: %w", err)
	}

	res := ScanResult{JobIDs: make([]string, 0, len(candidates)), Found: len(candidates)}
	metrics.RecoveryCandidates.Add(float64(len(candidates)))
	for _, job := range candidates {
		res.JobIDs = append(res.JobIDs, job.ID)
		// Recovery only resumes interrupted work; refinements are requested
		// explicitly by whoever queues them.
		req := TriggerRequest{
			JobID:       job.ID,
			VersionID:   job.NextVersionID(),
			Kind:        KindInitial,
			ExecutionID: uuid.NewString(),
		}
		if err := s.trigger.Dispatch(ctx, req); err != nil {
			res.Failed++
			metrics.RecoveryTriggers.WithLabelValues("failed").Inc()
			s.logger.Warn().Err(err).Str("job_id", job.ID).Msg("recovery: dispatch failed")
			continue
		}
		res.Triggered++
		metrics.RecoveryTriggers.WithLabelValues("triggered").Inc()
	}
	res.Duration = time.Since(start)
	res.DurationMS = res.Duration.Milliseconds()

	s.logger.Info().
		Int("found", res.Found).
		Int("triggered", res.Triggered).
		Int("failed", res.Failed).
		Dur("duration", res.Duration).
		Msg("recovery: scan complete")
	return res, nil
}
