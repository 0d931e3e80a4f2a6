package infra

import (
	"context"
	"testing"
)

func TestPoolSize(t *testing.T) {
	cases := map[int]int32{
		0:  minPoolSize,
		4:  minPoolSize,
		6:  minPoolSize,
		8:  12,
		32: 36,
	}
	for executions, want := range cases {
		if got := poolSize(executions); got != want {
			t.Fatalf("poolSize(%d) = %d, want %d", executions, got, want)
		}
	}
}

func TestNewDBPoolValidatesInput(t *testing.T) {
	if _, err := NewDBPool(context.Background(), nil); err == nil {
		t.Fatalf("nil config accepted")
	}
	if _, err := NewDBPool(context.Background(), &Config{DatabaseURL: "postgres://%zz"}); err == nil {
		t.Fatalf("malformed database url accepted")
	}
}
