package image

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// SourceImage is a reference artifact passed to the provider as conditioning input.
type SourceImage struct {
	Ref  string
	MIME string
	Data []byte
}

// GenerateRequest describes a normalized request passed to any image provider.
type GenerateRequest struct {
	Prompt         string
	NegativePrompt string
	Quality        string
	AspectRatio    string
	Model          string
	RequestID      string
	References     []SourceImage
}

// Asset is one generated image.
type Asset struct {
	Format string
	Width  int
	Height int
	Data   []byte
}

// Result carries the generated images and the identifier the provider
// assigned to the request, when it returned one.
type Result struct {
	Images            []Asset
	ProviderRequestID string
}

// Generator is the contract implemented by all image providers.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (*Result, error)
}

var (
	// ErrBlocked is returned when the provider refuses the request on content policy grounds.
	ErrBlocked = errors.New("image: request blocked by provider")
	// ErrRateLimited is returned when the provider throttles the caller.
	ErrRateLimited = errors.New("image: provider rate limited")
)

// Error is a generic provider failure carrying the upstream HTTP status.
type Error struct {
	StatusCode int
	Message    string
	RequestID  string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("image: provider status %d", e.StatusCode)
	}
	return fmt.Sprintf("image: provider status %d: %s", e.StatusCode, e.Message)
}

// Retryable reports whether the upstream status suggests a transient condition.
func (e *Error) Retryable() bool {
	return e.StatusCode == 0 || e.StatusCode >= http.StatusInternalServerError || e.StatusCode == http.StatusRequestTimeout
}

// requestError wraps a sentinel with the provider request id so that callers
// can still record it after errors.Is matching.
type requestError struct {
	err       error
	requestID string
	detail    string
}

func (e *requestError) Error() string {
	if e.detail == "" {
		return e.err.Error()
	}
	return e.err.Error() + ": " + e.detail
}

func (e *requestError) Unwrap() error { return e.err }

// RequestIDFromError extracts the provider request id carried by an error
// returned from a Generator.
func RequestIDFromError(err error) string {
	var re *requestError
	if errors.As(err, &re) {
		return re.requestID
	}
	var pe *Error
	if errors.As(err, &pe) {
		return pe.RequestID
	}
	return ""
}
