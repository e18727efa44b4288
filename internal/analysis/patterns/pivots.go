// Package patterns detects swing pivots in a close series and fits
// support/resistance trendlines through them.
package patterns

import (
	"breakout-scout/internal/models"
)

// DefaultPivotRadius is the number of bars on each side a pivot must beat.
const DefaultPivotRadius = 3

// PivotDetector finds strict local highs and lows of the close series.
type PivotDetector struct {
	radius int
}

// NewPivotDetector creates a detector; a non-positive radius falls back to the default.
func NewPivotDetector(radius int) *PivotDetector {
	if radius <= 0 {
		radius = DefaultPivotRadius
	}
	return &PivotDetector{radius: radius}
}

// MinBars is the shortest series that can contain a pivot.
func (d *PivotDetector) MinBars() int {
	return 2*d.radius + 1
}

// Detect returns pivots in bar order. Bars must be sorted by date ascending.
// A bar equal to any neighbour within the radius is not a pivot.
func (d *PivotDetector) Detect(bars []models.Bar) []models.PivotPoint {
	n := len(bars)
	if n < d.MinBars() {
		return nil
	}

	var pivots []models.PivotPoint
	for i := d.radius; i < n-d.radius; i++ {
		c := bars[i].Close

		isHigh, isLow := true, true
		for j := 1; j <= d.radius; j++ {
			left, right := bars[i-j].Close, bars[i+j].Close
			if c <= left || c <= right {
				isHigh = false
			}
			if c >= left || c >= right {
				isLow = false
			}
			if !isHigh && !isLow {
				break
			}
		}

		switch {
		case isHigh:
			pivots = append(pivots, models.PivotPoint{
				Symbol:   bars[i].Symbol,
				Index:    i,
				Date:     bars[i].Date,
				Price:    c,
				Type:     models.PivotHigh,
				Strength: dominated(bars, i, func(a, b float64) bool { return a > b }),
			})
		case isLow:
			pivots = append(pivots, models.PivotPoint{
				Symbol:   bars[i].Symbol,
				Index:    i,
				Date:     bars[i].Date,
				Price:    c,
				Type:     models.PivotLow,
				Strength: dominated(bars, i, func(a, b float64) bool { return a < b }),
			})
		}
	}

	return pivots
}

// dominated counts bars beaten by bars[i], walking outward on each side
// until the first bar that is not beaten.
func dominated(bars []models.Bar, i int, beats func(a, b float64) bool) int {
	c := bars[i].Close
	count := 0
	for j := i - 1; j >= 0 && beats(c, bars[j].Close); j-- {
		count++
	}
	for j := i + 1; j < len(bars) && beats(c, bars[j].Close); j++ {
		count++
	}
	return count
}

// SplitPivots separates pivots by type, preserving order.
func SplitPivots(pivots []models.PivotPoint) (highs, lows []models.PivotPoint) {
	for _, p := range pivots {
		switch p.Type {
		case models.PivotHigh:
			highs = append(highs, p)
		case models.PivotLow:
			lows = append(lows, p)
		}
	}
	return highs, lows
}
