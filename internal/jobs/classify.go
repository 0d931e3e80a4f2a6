package jobs

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"strconv"

	"github.com/sony/gobreaker"

	"genstudio/internal/domain"
	"genstudio/internal/providers/image"
	"genstudio/internal/storage"
)

// ErrorKind is the closed set of failure categories recorded on a job.
type ErrorKind string

const (
	KindTransientNetwork    ErrorKind = "transient_network"
	KindUpstreamUnavailable ErrorKind = "upstream_unavailable"
	KindContentPolicyBlock  ErrorKind = "content_policy_block"
	KindInvalidInput        ErrorKind = "invalid_input"
	KindMissingPrerequisite ErrorKind = "missing_prerequisite"
	KindBannedOwner         ErrorKind = "banned_owner"
	KindQuotaExceeded       ErrorKind = "quota_exceeded"
	KindUnknown             ErrorKind = "unknown"
)

// CodeMaxRetriesExceeded is recorded instead of the kind when a retryable
// failure happens on the last allowed attempt.
const CodeMaxRetriesExceeded = "max_retries_exceeded"

const maxErrorMessage = 512

// Retryable reports whether failures of this kind may succeed on a later attempt.
func (k ErrorKind) Retryable() bool {
	switch k {
	case KindTransientNetwork, KindUpstreamUnavailable, KindUnknown:
		return true
	default:
		return false
	}
}

// Failure attaches a known kind to an error raised by the executor itself.
type Failure struct {
	Kind ErrorKind
	Err  error
}

func (f *Failure) Error() string {
	if f.Err == nil {
		return string(f.Kind)
	}
	return f.Err.Error()
}

func (f *Failure) Unwrap() error { return f.Err }

func failWith(kind ErrorKind, err error) error {
	return &Failure{Kind: kind, Err: err}
}

// Classification is the outcome of Classify.
type Classification struct {
	Kind      ErrorKind
	Retryable bool
	Message   string
}

// Classify maps an execution error onto an ErrorKind using only error
// identity and type, never message text.
func Classify(err error) Classification {
	if err == nil {
		return Classification{}
	}
	kind := classifyKind(err)
	return Classification{Kind: kind, Retryable: kind.Retryable(), Message: truncate(err.Error(), maxErrorMessage)}
}

func classifyKind(err error) ErrorKind {
	var failure *Failure
	if errors.As(err, &failure) && failure.Kind != "" {
		return failure.Kind
	}

	switch {
	case errors.Is(err, image.ErrBlocked):
		return KindContentPolicyBlock
	case errors.Is(err, image.ErrRateLimited):
		return KindUpstreamUnavailable
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return KindUpstreamUnavailable
	case errors.Is(err, domain.ErrBannedOwner):
		return KindBannedOwner
	case errors.Is(err, domain.ErrQuotaExceeded):
		return KindQuotaExceeded
	case errors.Is(err, domain.ErrInvalidInput):
		return KindInvalidInput
	case errors.Is(err, storage.ErrObjectNotFound), errors.Is(err, storage.ErrInvalidKey):
		return KindMissingPrerequisite
	}

	var providerErr *image.Error
	if errors.As(err, &providerErr) {
		return kindForStatus(providerErr.StatusCode)
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, io.ErrUnexpectedEOF) {
		return KindTransientNetwork
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return KindTransientNetwork
	}
	return KindUnknown
}

func kindForStatus(status int) ErrorKind {
	switch {
	case status == 0, status >= http.StatusInternalServerError, status == http.StatusRequestTimeout, status == http.StatusTooManyRequests:
		return KindUpstreamUnavailable
	case status == http.StatusPaymentRequired:
		return KindQuotaExceeded
	case status == http.StatusBadRequest, status == http.StatusNotFound, status == http.StatusRequestEntityTooLarge, status == http.StatusUnprocessableEntity:
		return KindInvalidInput
	default:
		return KindUnknown
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…(" + strconv.Itoa(len(s)-n) + " more bytes)"
}
