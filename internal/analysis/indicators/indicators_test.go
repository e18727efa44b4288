package indicators

import (
	"math"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	errs "breakout-scout/internal/errors"
)

func almostEqual(a, b, tol float64) bool {
	if a == b {
		return true
	}
	scale := math.Max(1, math.Max(math.Abs(a), math.Abs(b)))
	return math.Abs(a-b) <= tol*scale
}

func TestLinearRegression(t *testing.T) {
	tests := []struct {
		name      string
		xs, ys    []float64
		slope     float64
		intercept float64
		r2        float64
	}{
		{"two points", []float64{0, 2}, []float64{1, 5}, 2, 1, 1},
		{"flat", []float64{1, 2, 3, 4}, []float64{7, 7, 7, 7}, 0, 7, 1},
		{"noisy", []float64{1, 2, 3}, []float64{1, 3, 2}, 0.5, 1, 0.25},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fit, err := LinearRegression(tt.xs, tt.ys)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !almostEqual(fit.Slope, tt.slope, 1e-12) {
				t.Errorf("slope = %v, want %v", fit.Slope, tt.slope)
			}
			if !almostEqual(fit.Intercept, tt.intercept, 1e-12) {
				t.Errorf("intercept = %v, want %v", fit.Intercept, tt.intercept)
			}
			if !almostEqual(fit.RSquared, tt.r2, 1e-12) {
				t.Errorf("r2 = %v, want %v", fit.RSquared, tt.r2)
			}
		})
	}
}

func TestLinearRegressionNeedsTwoPoints(t *testing.T) {
	_, err := LinearRegression([]float64{1}, []float64{1})
	if !errs.IsInsufficientData(err) {
		t.Fatalf("expected insufficient data, got %v", err)
	}
	if _, err := LinearRegression([]float64{3, 3}, []float64{1, 2}); err == nil {
		t.Fatal("expected error for identical x values")
	}
}

func TestRollingHelpers(t *testing.T) {
	values := []float64{1, 4, 2, 8, 3}

	rr := RollingRange(values, 3)
	if !math.IsNaN(rr[0]) || !math.IsNaN(rr[1]) {
		t.Fatalf("leading values should be NaN: %v", rr)
	}
	if rr[2] != 3 || rr[3] != 6 || rr[4] != 6 {
		t.Errorf("RollingRange = %v", rr)
	}

	cm := CenteredRollingMax(values, 3)
	if !math.IsNaN(cm[0]) || !math.IsNaN(cm[4]) {
		t.Fatalf("edges should be NaN: %v", cm)
	}
	if cm[1] != 4 || cm[2] != 8 || cm[3] != 8 {
		t.Errorf("CenteredRollingMax = %v", cm)
	}

	if got := MeanFinite(cm); got != 20.0/3.0 {
		t.Errorf("MeanFinite = %v", got)
	}
}

func TestSampleStdDev(t *testing.T) {
	got := SampleStdDev([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	want := math.Sqrt(32.0 / 7.0)
	if !almostEqual(got, want, 1e-12) {
		t.Errorf("SampleStdDev = %v, want %v", got, want)
	}
	if !math.IsNaN(SampleStdDev([]float64{1})) {
		t.Error("single value should give NaN")
	}
}

// Property: points drawn from a known line fit it exactly, with r² = 1.
func TestProperty_CollinearPointsFitExactly(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	properties.Property("collinear pivots give r2 = 1 and the generating line", prop.ForAll(
		func(slope, intercept float64, n int, start int64) bool {
			xs := make([]float64, n)
			ys := make([]float64, n)
			for i := 0; i < n; i++ {
				xs[i] = float64(start + int64(i*(i+3)))
				ys[i] = slope*xs[i] + intercept
			}
			fit, err := LinearRegression(xs, ys)
			if err != nil {
				return false
			}
			// intercept sits far from the data at ordinal scale, so compare the line at the data
			mid := xs[n/2]
			return almostEqual(fit.RSquared, 1, 1e-9) &&
				almostEqual(fit.Slope, slope, 1e-9) &&
				almostEqual(fit.Slope*mid+fit.Intercept, slope*mid+intercept, 1e-9)
		},
		gen.Float64Range(-5, 5),
		gen.Float64Range(-1000, 1000),
		gen.IntRange(2, 30),
		gen.Int64Range(18000, 21000),
	))

	properties.TestingRun(t)
}
