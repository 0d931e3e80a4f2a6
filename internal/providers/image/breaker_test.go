package image

import (
	"context"
	"errors"
	"testing"

	"github.com/sony/gobreaker"
)

type stubGenerator struct {
	err   error
	calls int
}

func (s *stubGenerator) Generate(ctx context.Context, req GenerateRequest) (*Result, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &Result{Images: []Asset{{Format: "image/png", Data: []byte("x")}}}, nil
}

func TestBreakerOpensAfterRepeatedUpstreamFailures(t *testing.T) {
	stub := &stubGenerator{err: &Error{StatusCode: 503}}
	gen := NewBreakerGenerator("test", stub)
	for i := 0; i < 5; i++ {
		if _, err := gen.Generate(context.Background(), GenerateRequest{}); err == nil {
			t.Fatalf("expected upstream error")
		}
	}
	_, err := gen.Generate(context.Background(), GenerateRequest{})
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Fatalf("expected open breaker, got %v", err)
	}
	if stub.calls != 5 {
		t.Fatalf("open breaker still forwarded calls: %d", stub.calls)
	}
	if gen.State() != gobreaker.StateOpen {
		t.Fatalf("state = %s", gen.State())
	}
}

func TestBreakerIgnoresContentBlocks(t *testing.T) {
	stub := &stubGenerator{err: ErrBlocked}
	gen := NewBreakerGenerator("test", stub)
	for i := 0; i < 10; i++ {
		if _, err := gen.Generate(context.Background(), GenerateRequest{}); !errors.Is(err, ErrBlocked) {
			t.Fatalf("expected ErrBlocked, got %v", err)
		}
	}
	if gen.State() != gobreaker.StateClosed {
		t.Fatalf("blocked responses tripped the breaker")
	}
}

func TestBreakerPassesResults(t *testing.T) {
	gen := NewBreakerGenerator("test", &stubGenerator{})
	res, err := gen.Generate(context.Background(), GenerateRequest{})
	if err != nil || res == nil || len(res.Images) != 1 {
		t.Fatalf("res=%+v err=%v", res, err)
	}
}
