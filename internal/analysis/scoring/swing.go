package scoring

import (
	"math"
	"sort"

	"github.com/samber/lo"

	"breakout-scout/internal/analysis/indicators"
	"breakout-scout/internal/analysis/patterns"
	errs "breakout-scout/internal/errors"
	"breakout-scout/internal/models"
)

// SwingParams configures the swing-slope breakout screen.
// Nil thresholds disable their predicate.
type SwingParams struct {
	WindowBars   int      `json:"window_bars"`
	PivotRadius  int      `json:"pivot_radius"`
	ResistanceR2 *float64 `json:"resistance_r2"`
	SupportR2    *float64 `json:"support_r2"`
	PivotCount   *int     `json:"pivot_count"`

	RequirePositiveSupport          bool `json:"require_positive_support"`
	RequireFlatOrDroppingResistance bool `json:"require_flat_or_dropping_resistance"`

	// IncludeHistory also returns each candidate's window bars.
	IncludeHistory bool `json:"include_history"`
}

// DefaultSwingParams returns the standard swing-slope screen.
func DefaultSwingParams() SwingParams {
	return SwingParams{
		WindowBars:                      120,
		PivotRadius:                     patterns.DefaultPivotRadius,
		ResistanceR2:                    lo.ToPtr(0.5),
		SupportR2:                       lo.ToPtr(0.5),
		PivotCount:                      lo.ToPtr(3),
		RequirePositiveSupport:          true,
		RequireFlatOrDroppingResistance: true,
	}
}

// Validate rejects contradictory or out-of-range settings.
func (p SwingParams) Validate() error {
	if p.PivotRadius < 1 {
		return errs.NewValidationError("swing.pivot_radius", p.PivotRadius, "must be at least 1")
	}
	if p.WindowBars < 2*p.PivotRadius+1 {
		return errs.NewValidationError("swing.window_bars", p.WindowBars, "must cover at least 2*pivot_radius+1 bars")
	}
	for name, v := range map[string]*float64{"swing.resistance_r2": p.ResistanceR2, "swing.support_r2": p.SupportR2} {
		if v != nil && (math.IsNaN(*v) || *v < 0 || *v > 1) {
			return errs.NewValidationError(name, *v, "must be between 0 and 1")
		}
	}
	if p.PivotCount != nil && *p.PivotCount < 0 {
		return errs.NewValidationError("swing.pivot_count", *p.PivotCount, "must be non-negative")
	}
	return nil
}

// BuildSwingStats fits trendlines over the trailing window and returns the
// candidate row before any predicate is applied.
func BuildSwingStats(meta models.SymbolMeta, bars []models.Bar, p SwingParams, wp WindowParams) (*models.SwingCandidate, error) {
	bars = tail(bars, p.WindowBars)
	detector := patterns.NewPivotDetector(p.PivotRadius)

	need := detector.MinBars()
	if wp.VolumeBaseBars > need {
		need = wp.VolumeBaseBars
	}
	if len(bars) < need {
		return nil, errs.NewDataError(meta.Symbol, "bars", len(bars), need)
	}
	if err := checkBars(meta.Symbol, bars); err != nil {
		return nil, err
	}

	pair, err := patterns.FitTrendlines(meta.Symbol, bars, detector)
	if err != nil {
		return nil, err
	}
	ratio, err := volumeRatio(meta.Symbol, indicators.Volumes(bars), wp)
	if err != nil {
		return nil, err
	}

	first, last := bars[0], bars[len(bars)-1]
	row := &models.SwingCandidate{
		Symbol:         meta.Symbol,
		SecurityName:   meta.SecurityName,
		Sector:         meta.Sector,
		Industry:       meta.Industry,
		StartDate:      first.Date,
		EndDate:        last.Date,
		BarCount:       len(bars),
		LastClose:      last.Close,
		PivotHighCount: pair.HighCount,
		PivotLowCount:  pair.LowCount,
		VolumeRatio:    ratio,
	}
	if r := pair.Resistance; r != nil {
		row.ResistanceSlope = lo.ToPtr(r.Slope)
		row.ResistanceIntercept = lo.ToPtr(r.Intercept)
		row.ResistanceR2 = lo.ToPtr(r.RSquared)
		if line := r.ValueAt(last.Date); line > 0 {
			row.PriceExtensionPct = lo.ToPtr(last.Close/line - 1)
		}
	}
	if s := pair.Support; s != nil {
		row.SupportSlope = lo.ToPtr(s.Slope)
		row.SupportIntercept = lo.ToPtr(s.Intercept)
		row.SupportR2 = lo.ToPtr(s.RSquared)
	}
	return row, nil
}

// SwingPredicate is one independently toggled qualification rule.
type SwingPredicate struct {
	Name string
	Test func(models.SwingCandidate) bool
}

// SwingPredicates returns the active predicates for p. An undefined
// trendline never satisfies a predicate that reads it.
func SwingPredicates(p SwingParams) []SwingPredicate {
	var preds []SwingPredicate

	if p.ResistanceR2 != nil || p.SupportR2 != nil {
		res, sup := p.ResistanceR2, p.SupportR2
		preds = append(preds, SwingPredicate{
			Name: "r2",
			Test: func(c models.SwingCandidate) bool {
				return (res != nil && c.ResistanceR2 != nil && *c.ResistanceR2 >= *res) ||
					(sup != nil && c.SupportR2 != nil && *c.SupportR2 >= *sup)
			},
		})
	}
	if p.PivotCount != nil {
		need := *p.PivotCount
		preds = append(preds, SwingPredicate{
			Name: "pivot_count",
			Test: func(c models.SwingCandidate) bool {
				return c.PivotHighCount >= need && c.PivotLowCount >= need
			},
		})
	}
	if p.RequirePositiveSupport {
		preds = append(preds, SwingPredicate{
			Name: "support_slope",
			Test: func(c models.SwingCandidate) bool {
				return c.SupportSlope != nil && *c.SupportSlope >= 0
			},
		})
	}
	if p.RequireFlatOrDroppingResistance {
		preds = append(preds, SwingPredicate{
			Name: "resistance_slope",
			Test: func(c models.SwingCandidate) bool {
				return c.ResistanceSlope != nil && *c.ResistanceSlope <= 0
			},
		})
	}
	return preds
}

// FilterSwingSlope keeps rows passing every active predicate and orders them
// by sector, industry, best r² desc, volume ratio desc, resistance slope asc,
// support slope desc.
func FilterSwingSlope(rows []models.SwingCandidate, p SwingParams) []models.SwingCandidate {
	preds := SwingPredicates(p)
	out := lo.Filter(rows, func(c models.SwingCandidate, _ int) bool {
		for _, pred := range preds {
			if !pred.Test(c) {
				return false
			}
		}
		return true
	})
	SortSwingCandidates(out)
	return out
}

// SortSwingCandidates applies the stable multi-key swing ordering.
// Missing values sort last in every direction.
func SortSwingCandidates(rows []models.SwingCandidate) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.Sector != b.Sector {
			return a.Sector < b.Sector
		}
		if a.Industry != b.Industry {
			return a.Industry < b.Industry
		}
		if c := compareOptional(bestR2(a), bestR2(b), true); c != 0 {
			return c < 0
		}
		if a.VolumeRatio != b.VolumeRatio {
			return a.VolumeRatio > b.VolumeRatio
		}
		if c := compareOptional(a.ResistanceSlope, b.ResistanceSlope, false); c != 0 {
			return c < 0
		}
		return compareOptional(a.SupportSlope, b.SupportSlope, true) < 0
	})
}

func bestR2(c models.SwingCandidate) *float64 {
	switch {
	case c.ResistanceR2 == nil:
		return c.SupportR2
	case c.SupportR2 == nil:
		return c.ResistanceR2
	default:
		return lo.ToPtr(math.Max(*c.ResistanceR2, *c.SupportR2))
	}
}

// compareOptional orders a before b (-1), after (1) or equal (0); nil sorts last.
func compareOptional(a, b *float64, desc bool) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	case *a == *b:
		return 0
	case (*a < *b) != desc:
		return -1
	default:
		return 1
	}
}
