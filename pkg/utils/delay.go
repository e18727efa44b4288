package utils

import (
	"sync"
	"time"
)

// DelayController chooses the pause before the next attempt of a remote call
// and learns from the outcome.
type DelayController interface {
	NextDelay() time.Duration
	Record(delay, duration time.Duration, success bool)
}

// DelayConfig bounds an adaptive delay.
type DelayConfig struct {
	Initial   time.Duration
	Max       time.Duration
	Min       time.Duration
	Tolerance time.Duration
	History   int
}

// DefaultDelayConfig returns 2s initial, 1s..15s bounds and a 0.5s margin.
func DefaultDelayConfig() DelayConfig {
	return DelayConfig{
		Initial:   2 * time.Second,
		Max:       15 * time.Second,
		Min:       time.Second,
		Tolerance: 500 * time.Millisecond,
		History:   100,
	}
}

type attempt struct {
	delay    time.Duration
	duration time.Duration
	success  bool
}

// DelayOptimizer tracks recent attempts and settles on the delay that has
// been working, backing away when it sits too close to the shortest delay
// that failed. Safe for concurrent use.
type DelayOptimizer struct {
	cfg     DelayConfig
	mu      sync.Mutex
	history []attempt
}

// NewDelayOptimizer creates an optimizer with an empty history.
func NewDelayOptimizer(cfg DelayConfig) *DelayOptimizer {
	if cfg.History <= 0 {
		cfg.History = 100
	}
	return &DelayOptimizer{cfg: cfg}
}

// Record stores one attempt, dropping the oldest beyond the history cap.
func (o *DelayOptimizer) Record(delay, duration time.Duration, success bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.history = append(o.history, attempt{delay: delay, duration: duration, success: success})
	if len(o.history) > o.cfg.History {
		o.history = o.history[len(o.history)-o.cfg.History:]
	}
}

// NextDelay returns zero before any attempt, 1.5x the initial delay (capped)
// while nothing has succeeded, and otherwise the mean successful delay,
// padded by the tolerance when the shortest failing delay is within it.
func (o *DelayOptimizer) NextDelay() time.Duration {
	o.mu.Lock()
	defer o.mu.Unlock()

	if len(o.history) == 0 {
		return 0
	}

	var sum time.Duration
	successes := 0
	worstFail := time.Duration(-1)
	for _, a := range o.history {
		if a.success {
			sum += a.delay
			successes++
		} else if worstFail < 0 || a.delay < worstFail {
			worstFail = a.delay
		}
	}

	if successes == 0 {
		return minDuration(o.cfg.Max, o.cfg.Initial*3/2)
	}
	avg := sum / time.Duration(successes)
	if worstFail < 0 {
		worstFail = o.cfg.Max
	}

	if worstFail-avg < o.cfg.Tolerance {
		return minDuration(o.cfg.Max, avg+o.cfg.Tolerance)
	}
	return maxDuration(o.cfg.Min, avg)
}

// AverageDuration is the mean call duration over successful attempts.
func (o *DelayOptimizer) AverageDuration() time.Duration {
	return o.averageSuccess(func(a attempt) time.Duration { return a.duration })
}

// AverageTotal is the mean delay plus duration over successful attempts.
func (o *DelayOptimizer) AverageTotal() time.Duration {
	return o.averageSuccess(func(a attempt) time.Duration { return a.delay + a.duration })
}

func (o *DelayOptimizer) averageSuccess(f func(attempt) time.Duration) time.Duration {
	o.mu.Lock()
	defer o.mu.Unlock()

	var sum time.Duration
	n := 0
	for _, a := range o.history {
		if a.success {
			sum += f(a)
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / time.Duration(n)
}

func minDuration(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}

func maxDuration(a, b time.Duration) time.Duration {
	if a > b {
		return a
	}
	return b
}
