package image

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"
)

// BreakerGenerator guards a Generator with a circuit breaker. While the
// breaker is open calls fail fast with gobreaker.ErrOpenState.
type BreakerGenerator struct {
	next Generator
	cb   *gobreaker.CircuitBreaker
}

// NewBreakerGenerator wraps next. The breaker trips when at least five calls
// in the window failed with a ratio of 60% or more; content blocks and
// client-side rejections are not counted as failures.
func NewBreakerGenerator(name string, next Generator) *BreakerGenerator {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 2,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 5 && failureRatio >= 0.6
		},
		IsSuccessful: countsAsSuccess,
	})
	return &BreakerGenerator{next: next, cb: cb}
}

// State exposes the breaker state for health reporting.
func (b *BreakerGenerator) State() gobreaker.State {
	return b.cb.State()
}

// Generate forwards to the wrapped generator through the breaker.
func (b *BreakerGenerator) Generate(ctx context.Context, req GenerateRequest) (*Result, error) {
	out, err := b.cb.Execute(func() (interface{}, error) {
		return b.next.Generate(ctx, req)
	})
	if err != nil {
		return nil, err
	}
	result, _ := out.(*Result)
	return result, nil
}

func countsAsSuccess(err error) bool {
	if err == nil || errors.Is(err, ErrBlocked) || errors.Is(err, context.Canceled) {
		return true
	}
	var pe *Error
	if errors.As(err, &pe) && !pe.Retryable() {
		return true
	}
	return false
}

var _ Generator = (*BreakerGenerator)(nil)
