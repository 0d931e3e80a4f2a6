package jobs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"genstudio/internal/metrics"
)

// ErrTriggerSaturated is returned when no execution slot is free.
var ErrTriggerSaturated = errors.New("jobs: trigger concurrency limit reached")

// Trigger starts an execution without waiting for it to finish. A nil error
// means the execution was handed off, not that it succeeded.
type Trigger interface {
	Dispatch(ctx context.Context, req TriggerRequest) error
}

// Runner executes one trigger request to completion.
type Runner interface {
	Execute(ctx context.Context, req TriggerRequest) Result
}

// LocalTrigger runs executions in goroutines of the current process.
type LocalTrigger struct {
	runner Runner
	slots  chan struct{}
	logger zerolog.Logger
	wg     sync.WaitGroup
}

// NewLocalTrigger bounds concurrent executions to maxConcurrent.
func NewLocalTrigger(runner Runner, maxConcurrent int, logger zerolog.Logger) *LocalTrigger {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &LocalTrigger{
		runner: runner,
		slots:  make(chan struct{}, maxConcurrent),
		logger: logger.With().Str("component", "local_trigger").Logger(),
	}
}

// Dispatch implements Trigger. The spawned execution is detached from ctx.
func (t *LocalTrigger) Dispatch(ctx context.Context, req TriggerRequest) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case t.slots <- struct{}{}:
	default:
		return ErrTriggerSaturated
	}

	t.wg.Add(1)
	metrics.InflightExecutions.Inc()
	go func() {
		defer func() {
			<-t.slots
			metrics.InflightExecutions.Dec()
			t.wg.Done()
		}()
		res := t.runner.Execute(context.WithoutCancel(ctx), req)
		t.logger.Debug().
			Str("job_id", req.JobID).
			Str("execution_id", req.ExecutionID).
			Bool("success", res.Success).
			Str("reason", string(res.Reason)).
			Str("error", res.Error).
			Msg("local trigger: execution returned")
	}()
	return nil
}

// Wait blocks until every dispatched execution has returned.
func (t *LocalTrigger) Wait() {
	t.wg.Wait()
}

// HTTPTrigger posts trigger requests to the execute endpoint of an API instance.
type HTTPTrigger struct {
	endpoint string
	secret   string
	client   *http.Client
	timeout  time.Duration
	logger   zerolog.Logger
	wg       sync.WaitGroup
}

// NewHTTPTrigger validates endpoint and builds the trigger. Each send is
// bounded by the client's timeout, so callers running a longer lease pass a
// client sized for it. A nil client or one without a timeout uses the
// default lease.
func NewHTTPTrigger(endpoint, secret string, client *http.Client, logger zerolog.Logger) (*HTTPTrigger, error) {
	u, err := url.Parse(endpoint)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("invalid trigger endpoint %q", endpoint)
	}
	if client == nil {
		client = &http.Client{Timeout: DefaultLease}
	}
	timeout := client.Timeout
	if timeout <= 0 {
		timeout = DefaultLease
	}
	return &HTTPTrigger{
		endpoint: u.String(),
		secret:   secret,
		client:   client,
		timeout:  timeout,
		logger:   logger.With().Str("component", "http_trigger").Logger(),
	}, nil
}

// Timeout bounds a single send.
func (t *HTTPTrigger) Timeout() time.Duration { return t.timeout }

// Dispatch implements Trigger. Only request construction is synchronous;
// the call itself runs in its own goroutine and logs its own outcome.
func (t *HTTPTrigger) Dispatch(ctx context.Context, req TriggerRequest) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encode trigger: %w", err)
	}
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), t.timeout)
	httpReq, err := http.NewRequestWithContext(sendCtx, http.MethodPost, t.endpoint, bytes.NewReader(body))
	if err != nil {
		cancel()
		return fmt.Errorf("build trigger request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if req.ExecutionID != "" {
		httpReq.Header.Set("X-Request-ID", req.ExecutionID)
	}
	if t.secret != "" {
		httpReq.Header.Set("Authorization", "Bearer "+t.secret)
	}

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		defer cancel()
		log := t.logger.With().Str("job_id", req.JobID).Str("execution_id", req.ExecutionID).Logger()
		resp, err := t.client.Do(httpReq)
		if err != nil {
			log.Warn().Err(err).Msg("http trigger: request failed")
			return
		}
		defer resp.Body.Close()
		var res Result
		if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&res); err != nil {
			log.Warn().Err(err).Int("status", resp.StatusCode).Msg("http trigger: decode response")
			return
		}
		if resp.StatusCode >= http.StatusBadRequest {
			log.Warn().Int("status", resp.StatusCode).Str("error", res.Error).Msg("http trigger: rejected")
			return
		}
		log.Debug().
			Bool("success", res.Success).
			Str("reason", string(res.Reason)).
			Str("error", res.Error).
			Msg("http trigger: execution returned")
	}()
	return nil
}

// Wait blocks until every in-flight trigger call has returned.
func (t *HTTPTrigger) Wait() {
	t.wg.Wait()
}
