package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	errs "breakout-scout/internal/errors"
)

var errBoom = errors.New("boom")

func fail() (int, error) { return 0, errBoom }
func ok() (int, error)   { return 1, nil }

func TestBreakerOpensAfterThreshold(t *testing.T) {
	b := NewBreaker("test", BreakerConfig{FailureThreshold: 3, SuccessThreshold: 1, Cooldown: time.Minute})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := Execute(ctx, b, fail); !errors.Is(err, errBoom) {
			t.Fatalf("attempt %d error = %v", i, err)
		}
	}
	if b.State() != CircuitOpen {
		t.Fatalf("state = %s, want OPEN", b.State())
	}

	called := false
	_, err := Execute(ctx, b, func() (int, error) { called = true; return 1, nil })
	if !errors.Is(err, ErrCircuitOpen) || called {
		t.Errorf("open breaker ran fn (%v) or returned %v", called, err)
	}
	if !errs.Is(err, errs.ErrDatabaseError) {
		t.Error("ErrCircuitOpen should wrap ErrDatabaseError")
	}

	stats := b.Stats()
	if stats.TotalRequests != 4 || stats.TotalFailures != 3 || stats.TotalRejected != 1 {
		t.Errorf("stats = %+v", stats)
	}
	if got := stats.FailureRate(); got != 0.75 {
		t.Errorf("FailureRate() = %v, want 0.75", got)
	}
}

func TestBreakerSuccessResetsFailureCount(t *testing.T) {
	b := NewBreaker("test", BreakerConfig{FailureThreshold: 2, SuccessThreshold: 1, Cooldown: time.Minute})
	ctx := context.Background()

	Execute(ctx, b, fail)
	Execute(ctx, b, ok)
	Execute(ctx, b, fail)
	if b.State() != CircuitClosed {
		t.Errorf("state = %s, want CLOSED after non-consecutive failures", b.State())
	}
}

func TestBreakerHalfOpenAfterCooldown(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	b := NewBreaker("test", BreakerConfig{FailureThreshold: 1, SuccessThreshold: 2, Cooldown: time.Second})
	b.now = func() time.Time { return now }
	ctx := context.Background()

	Execute(ctx, b, fail)
	if _, err := Execute(ctx, b, ok); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("error = %v, want open circuit during cooldown", err)
	}

	now = now.Add(2 * time.Second)
	if _, err := Execute(ctx, b, ok); err != nil {
		t.Fatalf("probe error = %v", err)
	}
	if b.State() != CircuitHalfOpen {
		t.Fatalf("state = %s, want HALF_OPEN after one probe", b.State())
	}
	Execute(ctx, b, ok)
	if b.State() != CircuitClosed {
		t.Errorf("state = %s, want CLOSED", b.State())
	}

	// a failing probe re-opens immediately
	Execute(ctx, b, fail)
	now = now.Add(2 * time.Second)
	Execute(ctx, b, fail)
	if b.State() != CircuitOpen {
		t.Errorf("state = %s, want OPEN after failed probe", b.State())
	}
}

func TestBreakerIgnoresCancellation(t *testing.T) {
	b := NewBreaker("test", BreakerConfig{FailureThreshold: 1, SuccessThreshold: 1, Cooldown: time.Minute})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	Execute(ctx, b, func() (int, error) { return 0, ctx.Err() })
	if b.State() != CircuitClosed {
		t.Errorf("state = %s, cancellation must not count as a failure", b.State())
	}
}

func TestDisabledBreakerNeverOpens(t *testing.T) {
	b := NewBreaker("test", BreakerConfig{})
	for i := 0; i < 10; i++ {
		Execute(context.Background(), b, fail)
	}
	if _, err := Execute(context.Background(), b, ok); err != nil {
		t.Errorf("disabled breaker returned %v", err)
	}
}
