package patterns

import (
	"fmt"

	"breakout-scout/internal/analysis/indicators"
	errs "breakout-scout/internal/errors"
	"breakout-scout/internal/models"
)

// MinTrendlinePoints is the fewest pivots a trendline can be fitted through.
const MinTrendlinePoints = 2

// FitTrendline fits price against day ordinal for pivots of a single type.
// Fewer than two pivots return a DataError; callers treat that as
// "criterion not satisfied", never as a zero slope.
func FitTrendline(symbol string, role models.LineRole, pivots []models.PivotPoint) (*models.Trendline, error) {
	if len(pivots) < MinTrendlinePoints {
		return nil, errs.NewDataError(symbol, string(role)+" pivots", len(pivots), MinTrendlinePoints)
	}

	want := pivotTypeFor(role)
	xs := make([]float64, len(pivots))
	ys := make([]float64, len(pivots))
	for i, p := range pivots {
		if p.Type != want {
			return nil, errs.NewComputationError(symbol, "fit "+string(role),
				fmt.Errorf("pivot %d is a %s pivot", i, p.Type))
		}
		xs[i] = float64(models.DayOrdinal(p.Date))
		ys[i] = p.Price
	}

	fit, err := indicators.LinearRegression(xs, ys)
	if err != nil {
		return nil, errs.NewComputationError(symbol, "fit "+string(role), err)
	}

	return &models.Trendline{
		Symbol:     symbol,
		Role:       role,
		Slope:      fit.Slope,
		Intercept:  fit.Intercept,
		RSquared:   fit.RSquared,
		PointCount: fit.N,
	}, nil
}

func pivotTypeFor(role models.LineRole) models.PivotType {
	if role == models.RoleSupport {
		return models.PivotLow
	}
	return models.PivotHigh
}

// TrendlinePair holds both lines for a symbol; either may be nil.
type TrendlinePair struct {
	Resistance *models.Trendline
	Support    *models.Trendline
	HighCount  int
	LowCount   int
}

// FitTrendlines detects pivots over bars and fits resistance and support.
// A role with too few pivots is left nil; other failures are returned.
func FitTrendlines(symbol string, bars []models.Bar, detector *PivotDetector) (TrendlinePair, error) {
	highs, lows := SplitPivots(detector.Detect(bars))
	pair := TrendlinePair{HighCount: len(highs), LowCount: len(lows)}

	res, err := FitTrendline(symbol, models.RoleResistance, highs)
	if err != nil && !errs.IsInsufficientData(err) {
		return pair, err
	}
	pair.Resistance = res

	sup, err := FitTrendline(symbol, models.RoleSupport, lows)
	if err != nil && !errs.IsInsufficientData(err) {
		return pair, err
	}
	pair.Support = sup

	return pair, nil
}
