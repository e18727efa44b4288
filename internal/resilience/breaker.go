// Package resilience guards the price store against runaway failure during a
// screening run.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	errs "breakout-scout/internal/errors"
)

// CircuitState represents the state of a circuit breaker.
type CircuitState string

const (
	CircuitClosed   CircuitState = "CLOSED"    // queries flow
	CircuitOpen     CircuitState = "OPEN"      // queries rejected
	CircuitHalfOpen CircuitState = "HALF_OPEN" // probing after cool-down
)

// ErrCircuitOpen is returned while the breaker rejects queries. It wraps
// ErrDatabaseError so callers classify it as a store failure.
var ErrCircuitOpen = fmt.Errorf("circuit breaker is open: %w", errs.ErrDatabaseError)

// BreakerConfig holds circuit breaker configuration.
type BreakerConfig struct {
	// FailureThreshold is the number of consecutive failures before opening.
	// Zero disables the breaker.
	FailureThreshold int `mapstructure:"failure_threshold" json:"failure_threshold"`
	// SuccessThreshold is the number of half-open successes needed to close.
	SuccessThreshold int `mapstructure:"success_threshold" json:"success_threshold"`
	// Cooldown is how long the breaker stays open before probing.
	Cooldown time.Duration `mapstructure:"cooldown" json:"cooldown"`
}

// DefaultBreakerConfig opens after 5 straight store failures.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Cooldown:         30 * time.Second,
	}
}

// Breaker implements the circuit breaker pattern. Only failures the caller
// reports through Execute count; context cancellation is not a failure.
type Breaker struct {
	name   string
	config BreakerConfig
	now    func() time.Time

	mu              sync.Mutex
	state           CircuitState
	failures        int
	successes       int
	lastFailureTime time.Time

	totalRequests int64
	totalFailures int64
	totalRejected int64
}

// NewBreaker creates a closed breaker.
func NewBreaker(name string, config BreakerConfig) *Breaker {
	return &Breaker{
		name:   name,
		config: config,
		now:    time.Now,
		state:  CircuitClosed,
	}
}

// Execute runs fn unless the circuit is open.
func Execute[T any](ctx context.Context, b *Breaker, fn func() (T, error)) (T, error) {
	var zero T
	if err := b.allow(); err != nil {
		return zero, err
	}

	v, err := fn()
	switch {
	case err == nil:
		b.recordSuccess()
	case ctx.Err() != nil && errors.Is(err, ctx.Err()):
	default:
		b.recordFailure()
	}
	return v, err
}

func (b *Breaker) allow() error {
	if b == nil || b.config.FailureThreshold <= 0 {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	b.totalRequests++
	if b.state == CircuitOpen {
		if b.now().Sub(b.lastFailureTime) < b.config.Cooldown {
			b.totalRejected++
			return ErrCircuitOpen
		}
		b.transitionTo(CircuitHalfOpen)
	}
	return nil
}

func (b *Breaker) recordSuccess() {
	if b == nil || b.config.FailureThreshold <= 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case CircuitHalfOpen:
		b.successes++
		if b.successes >= b.config.SuccessThreshold {
			b.transitionTo(CircuitClosed)
		}
	case CircuitClosed:
		b.failures = 0
	}
}

func (b *Breaker) recordFailure() {
	if b == nil || b.config.FailureThreshold <= 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	b.totalFailures++
	b.lastFailureTime = b.now()

	switch b.state {
	case CircuitClosed:
		b.failures++
		if b.failures >= b.config.FailureThreshold {
			b.transitionTo(CircuitOpen)
		}
	case CircuitHalfOpen:
		b.transitionTo(CircuitOpen)
	}
}

func (b *Breaker) transitionTo(state CircuitState) {
	b.state = state
	b.failures = 0
	b.successes = 0
}

// State returns the current circuit state.
func (b *Breaker) State() CircuitState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Stats returns breaker counters.
func (b *Breaker) Stats() BreakerStats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return BreakerStats{
		Name:          b.name,
		State:         b.state,
		TotalRequests: b.totalRequests,
		TotalFailures: b.totalFailures,
		TotalRejected: b.totalRejected,
	}
}

// BreakerStats holds circuit breaker statistics.
type BreakerStats struct {
	Name          string
	State         CircuitState
	TotalRequests int64
	TotalFailures int64
	TotalRejected int64
}

// FailureRate returns failures as a fraction of requests.
func (s BreakerStats) FailureRate() float64 {
	if s.TotalRequests == 0 {
		return 0
	}
	return float64(s.TotalFailures) / float64(s.TotalRequests)
}
