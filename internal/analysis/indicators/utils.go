// Package indicators provides the numeric building blocks shared by the
// pattern detectors and scorers.
package indicators

import (
	"math"

	"breakout-scout/internal/models"
)

// Sum calculates the sum of a slice of float64.
func Sum(values []float64) float64 {
	var total float64
	for _, v := range values {
		total += v
	}
	return total
}

// Mean calculates the arithmetic mean of a slice of float64.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return Sum(values) / float64(len(values))
}

// SampleStdDev calculates the standard deviation with n-1 degrees of freedom.
// Fewer than two values yield NaN.
func SampleStdDev(values []float64) float64 {
	if len(values) < 2 {
		return math.NaN()
	}
	m := Mean(values)
	var variance float64
	for _, v := range values {
		diff := v - m
		variance += diff * diff
	}
	variance /= float64(len(values) - 1)
	return math.Sqrt(variance)
}

// Highest returns the highest value in a slice.
func Highest(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	h := values[0]
	for _, v := range values[1:] {
		if v > h {
			h = v
		}
	}
	return h
}

// Lowest returns the lowest value in a slice.
func Lowest(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	l := values[0]
	for _, v := range values[1:] {
		if v < l {
			l = v
		}
	}
	return l
}

// RollingRange returns max-min over each trailing window of the given size.
// Positions without a full window hold NaN.
func RollingRange(values []float64, window int) []float64 {
	out := make([]float64, len(values))
	for i := range values {
		if window <= 0 || i+1 < window {
			out[i] = math.NaN()
			continue
		}
		w := values[i+1-window : i+1]
		out[i] = Highest(w) - Lowest(w)
	}
	return out
}

// CenteredRollingMax returns the max over a window centred on each position.
// Edges without a full window hold NaN.
func CenteredRollingMax(values []float64, window int) []float64 {
	out := make([]float64, len(values))
	// a centred even window leans right, as a trailing window shifted by window/2
	half := window / 2
	for i := range values {
		end := i + half
		start := end - window + 1
		if window <= 0 || start < 0 || end >= len(values) {
			out[i] = math.NaN()
			continue
		}
		out[i] = Highest(values[start : end+1])
	}
	return out
}

// MeanFinite averages the non-NaN entries. It returns NaN if there are none.
func MeanFinite(values []float64) float64 {
	var total float64
	var n int
	for _, v := range values {
		if math.IsNaN(v) {
			continue
		}
		total += v
		n++
	}
	if n == 0 {
		return math.NaN()
	}
	return total / float64(n)
}

// ClosePrices extracts close prices from bars.
func ClosePrices(bars []models.Bar) []float64 {
	prices := make([]float64, len(bars))
	for i, b := range bars {
		prices[i] = b.Close
	}
	return prices
}

// HighPrices extracts high prices from bars.
func HighPrices(bars []models.Bar) []float64 {
	prices := make([]float64, len(bars))
	for i, b := range bars {
		prices[i] = b.High
	}
	return prices
}

// LowPrices extracts low prices from bars.
func LowPrices(bars []models.Bar) []float64 {
	prices := make([]float64, len(bars))
	for i, b := range bars {
		prices[i] = b.Low
	}
	return prices
}

// Volumes extracts volumes from bars as float64.
func Volumes(bars []models.Bar) []float64 {
	vols := make([]float64, len(bars))
	for i, b := range bars {
		vols[i] = float64(b.Volume)
	}
	return vols
}
