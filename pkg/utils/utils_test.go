package utils

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/rs/zerolog"
)

func TestDelayOptimizerNextDelay(t *testing.T) {
	s := time.Second
	tests := []struct {
		name     string
		attempts []attempt
		want     time.Duration
	}{
		{"no history", nil, 0},
		{"only failures", []attempt{{delay: 0}, {delay: s}}, 3 * s},
		{"successes only", []attempt{{delay: 2 * s, success: true}, {delay: 4 * s, success: true}}, 3 * s},
		{"failure close to success", []attempt{{delay: 2 * s, success: true}, {delay: 2 * s}}, 2*s + 500*time.Millisecond},
		{"failure far below", []attempt{{delay: 5 * s, success: true}, {delay: 1 * s}}, 5*s + 500*time.Millisecond},
		{"failure far above", []attempt{{delay: 2 * s, success: true}, {delay: 8 * s}}, 2 * s},
		{"floored at min", []attempt{{delay: 200 * time.Millisecond, success: true}}, s},
		{"capped at max", []attempt{{delay: 15 * s, success: true}}, 15 * s},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := NewDelayOptimizer(DefaultDelayConfig())
			for _, a := range tt.attempts {
				o.Record(a.delay, 0, a.success)
			}
			if got := o.NextDelay(); got != tt.want {
				t.Errorf("NextDelay() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDelayOptimizerAverages(t *testing.T) {
	o := NewDelayOptimizer(DefaultDelayConfig())
	if o.AverageDuration() != 0 || o.AverageTotal() != 0 {
		t.Fatal("averages of empty history should be zero")
	}
	o.Record(time.Second, 2*time.Second, true)
	o.Record(3*time.Second, 4*time.Second, true)
	o.Record(10*time.Second, 10*time.Second, false)

	if got := o.AverageDuration(); got != 3*time.Second {
		t.Errorf("AverageDuration() = %v, want 3s", got)
	}
	if got := o.AverageTotal(); got != 5*time.Second {
		t.Errorf("AverageTotal() = %v, want 5s", got)
	}
}

// Property: history never exceeds its cap and the next delay stays within
// [0, max] for any sequence of outcomes.
func TestProperty_DelayOptimizerBounded(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("next delay stays within bounds", prop.ForAll(
		func(delays []int64, outcomes []bool) bool {
			cfg := DefaultDelayConfig()
			cfg.History = 10
			o := NewDelayOptimizer(cfg)
			for i, d := range delays {
				o.Record(time.Duration(d)*time.Millisecond, 0, i < len(outcomes) && outcomes[i])
			}
			next := o.NextDelay()
			return len(o.history) <= cfg.History && next >= 0 && next <= cfg.Max
		},
		gen.SliceOf(gen.Int64Range(0, 14000)),
		gen.SliceOf(gen.Bool()),
	))

	properties.TestingRun(t)
}

func TestRetryStopsOnNonRetryable(t *testing.T) {
	retryable := errors.New("busy")
	permanent := errors.New("bad query")
	cfg := RetryConfig{MaxAttempts: 5, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, BackoffFactor: 1, RetryableErrors: []error{retryable}}

	calls := 0
	err := Retry(context.Background(), cfg, func() error {
		calls++
		if calls < 3 {
			return retryable
		}
		return permanent
	})
	if !errors.Is(err, permanent) || calls != 3 {
		t.Errorf("Retry() = %v after %d calls, want permanent after 3", err, calls)
	}

	calls = 0
	got, err := RetryWithResult(context.Background(), cfg, func() (int, error) {
		calls++
		if calls < 2 {
			return 0, retryable
		}
		return 42, nil
	})
	if err != nil || got != 42 {
		t.Errorf("RetryWithResult() = %d, %v", got, err)
	}
}

type scriptedController struct {
	delays   []time.Duration
	recorded []bool
}

func (c *scriptedController) NextDelay() time.Duration {
	if len(c.delays) == 0 {
		return 0
	}
	d := c.delays[0]
	c.delays = c.delays[1:]
	return d
}

func (c *scriptedController) Record(_, _ time.Duration, success bool) {
	c.recorded = append(c.recorded, success)
}

func TestRetryAdaptiveRecordsOutcomes(t *testing.T) {
	ctrl := &scriptedController{delays: []time.Duration{0, time.Millisecond}}
	calls := 0
	err := RetryAdaptive(context.Background(), ctrl, 3, zerolog.Nop(), func(context.Context) error {
		calls++
		if calls == 1 {
			return errors.New("refused")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("RetryAdaptive() error = %v", err)
	}
	if len(ctrl.recorded) != 2 || ctrl.recorded[0] || !ctrl.recorded[1] {
		t.Errorf("recorded outcomes = %v, want [false true]", ctrl.recorded)
	}
}

func TestRetryAdaptiveHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ctrl := &scriptedController{delays: []time.Duration{time.Hour}}
	err := RetryAdaptive(ctx, ctrl, 3, zerolog.Nop(), func(context.Context) error { return nil })
	if !errors.Is(err, context.Canceled) {
		t.Errorf("RetryAdaptive() = %v, want context.Canceled", err)
	}
}

func TestFormatting(t *testing.T) {
	tests := []struct {
		got, want string
	}{
		{FormatFixed(42.857142, ScorePlaces), "42.86"},
		{FormatFixed(0.02020202, RatioPlaces), "0.0202"},
		{FormatPercent(0.0123), "+1.23%"},
		{FormatPercent(-0.05), "-5.00%"},
		{FormatOptional(nil, 2), "-"},
		{FormatQuantity(1234567), "1,234,567"},
		{FormatQuantity(-1000), "-1,000"},
		{FormatQuantity(999), "999"},
		{FormatCompact(2_500_000_000), "2.50B"},
		{FormatCompact(1500), "1.50K"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("got %q, want %q", tt.got, tt.want)
		}
	}
	if got := Round(1.23456, 2); got != 1.23 {
		t.Errorf("Round() = %v, want 1.23", got)
	}
}

func TestTradingDays(t *testing.T) {
	fri := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	sun := time.Date(2024, 3, 3, 15, 0, 0, 0, time.UTC)
	tue := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)

	if got := LastTradingDay(sun); !got.Equal(fri) {
		t.Errorf("LastTradingDay(sun) = %v, want %v", got, fri)
	}
	if got := TradingDaysBetween(fri, tue); got != 2 {
		t.Errorf("TradingDaysBetween(fri, tue) = %d, want 2", got)
	}
	if got := TradingDaysBetween(tue, fri); got != 0 {
		t.Errorf("TradingDaysBetween(tue, fri) = %d, want 0", got)
	}
}
