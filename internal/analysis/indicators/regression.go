package indicators

import (
	"fmt"
	"math"

	errs "breakout-scout/internal/errors"
)

// LinearFit is an ordinary least-squares fit of y on x.
type LinearFit struct {
	Slope     float64
	Intercept float64
	RSquared  float64
	N         int
}

// LinearRegression fits y = slope*x + intercept by least squares.
// It needs at least two points with distinct x values.
func LinearRegression(xs, ys []float64) (LinearFit, error) {
	if len(xs) != len(ys) {
		return LinearFit{}, fmt.Errorf("regression: %d x values vs %d y values", len(xs), len(ys))
	}
	n := len(xs)
	if n < 2 {
		return LinearFit{}, errs.NewDataError("", "regression points", n, 2)
	}

	mx, my := Mean(xs), Mean(ys)
	var sxx, sxy, syy float64
	for i := range xs {
		dx := xs[i] - mx
		dy := ys[i] - my
		sxx += dx * dx
		sxy += dx * dy
		syy += dy * dy
	}
	if sxx == 0 {
		return LinearFit{}, fmt.Errorf("regression: x values are all equal")
	}
	if math.IsNaN(sxx) || math.IsNaN(sxy) || math.IsInf(sxy, 0) {
		return LinearFit{}, fmt.Errorf("regression: non-finite input")
	}

	slope := sxy / sxx
	intercept := my - slope*mx

	var ssRes float64
	for i := range xs {
		r := ys[i] - (slope*xs[i] + intercept)
		ssRes += r * r
	}

	// r² against the fitted points; a flat y series fits perfectly
	r2 := 1.0
	if syy > 0 {
		r2 = 1 - ssRes/syy
	}
	if n == 2 {
		r2 = 1
	}

	return LinearFit{
		Slope:     slope,
		Intercept: intercept,
		RSquared:  r2,
		N:         n,
	}, nil
}

// IndexSlope is the least-squares slope of values against 0..n-1.
func IndexSlope(values []float64) (float64, error) {
	xs := make([]float64, len(values))
	for i := range xs {
		xs[i] = float64(i)
	}
	fit, err := LinearRegression(xs, values)
	if err != nil {
		return 0, err
	}
	return fit.Slope, nil
}
