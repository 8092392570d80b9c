package throttle

import (
	"context"
	"testing"
	"time"
)

func TestAcquireSerializesSameHost(t *testing.T) {
	tr := New(0)
	ctx := context.Background()
	start := time.Now()
	if err := tr.Acquire(ctx, "example.com", 50*time.Millisecond); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := tr.Acquire(ctx, "example.com", 50*time.Millisecond); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 40*time.Millisecond {
		t.Errorf("expected second acquire to wait, elapsed %v", elapsed)
	}
}

func TestAcquireIndependentPerHost(t *testing.T) {
	tr := New(0)
	ctx := context.Background()
	if err := tr.Acquire(ctx, "a.example.com", time.Hour); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	start := time.Now()
	if err := tr.Acquire(ctx, "b.example.com", time.Hour); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
		t.Errorf("expected a different host to not wait, elapsed %v", elapsed)
	}
}

func TestZeroDelayUsesDefault(t *testing.T) {
	tr := New(0)
	if d := tr.WaitDuration("example.com", 0); d != 0 {
		t.Errorf("expected no wait for zero default delay, got %v", d)
	}
}
