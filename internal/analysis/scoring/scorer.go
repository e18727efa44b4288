package scoring

import (
	"math"
	"sort"

	"breakout-scout/internal/analysis/indicators"
	errs "breakout-scout/internal/errors"
	"breakout-scout/internal/models"
)

// Fixed constants of the composite score.
const (
	TightnessWindow    = 10
	TouchTolerance     = 0.015 // close within 1.5% of the window's max close
	FlatTopWindow      = 3
	FlatTopMaxDev      = 0.01
	MaxScore           = 100.0
	DefaultScoreWindow = 60
)

// ScorerConfig configures the composite scorer.
type ScorerConfig struct {
	WindowBars  int `mapstructure:"window_bars" json:"window_bars"`
	Concurrency int `mapstructure:"concurrency" json:"concurrency"`
}

// DefaultScorerConfig returns a 60-bar window evaluated four symbols at a time.
func DefaultScorerConfig() ScorerConfig {
	return ScorerConfig{
		WindowBars:  DefaultScoreWindow,
		Concurrency: 4,
	}
}

// Validate checks the window can hold the tightness and flat-top windows.
func (c ScorerConfig) Validate() error {
	if c.WindowBars < 2*TightnessWindow {
		return errs.NewValidationError("scoring.window_bars", c.WindowBars, "must be at least 20")
	}
	if c.Concurrency < 0 {
		return errs.NewValidationError("scoring.concurrency", c.Concurrency, "must be non-negative")
	}
	return nil
}

// BreakoutScorer evaluates a base pattern over a fixed trailing window.
type BreakoutScorer struct {
	window int
}

// NewBreakoutScorer creates a scorer; a non-positive window uses 60 bars.
func NewBreakoutScorer(window int) *BreakoutScorer {
	if window <= 0 {
		window = DefaultScoreWindow
	}
	return &BreakoutScorer{window: window}
}

// Window returns the trailing window length.
func (s *BreakoutScorer) Window() int {
	return s.window
}

// Score computes the composite breakout score for one symbol. Bars may be in
// any order; the trailing window is taken after sorting by date. Fewer bars
// than the window yield a DataError.
func (s *BreakoutScorer) Score(meta models.SymbolMeta, bars []models.Bar) (*models.BreakoutScore, error) {
	if len(bars) < s.window {
		return nil, errs.NewDataError(meta.Symbol, "bars", len(bars), s.window)
	}

	sorted := make([]models.Bar, len(bars))
	copy(sorted, bars)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })
	window := sorted[len(sorted)-s.window:]
	if err := checkBars(meta.Symbol, window); err != nil {
		return nil, err
	}

	closes := indicators.ClosePrices(window)
	lows := indicators.LowPrices(window)
	vols := indicators.Volumes(window)
	n := len(closes)
	lastClose := closes[n-1]

	// tightness: mean 10-bar close range over the last 10 bars, per unit of price
	ranges := indicators.RollingRange(closes, TightnessWindow)
	tightness := indicators.MeanFinite(ranges[n-TightnessWindow:]) / lastClose

	stddevClose := indicators.SampleStdDev(closes) / indicators.Mean(closes)

	resistance := indicators.Highest(closes)
	touches := 0
	for _, c := range closes {
		if c >= resistance*(1-TouchTolerance) {
			touches++
		}
	}

	volumeContraction := indicators.Mean(vols[n/2:]) < indicators.Mean(vols[:n/2])

	flatTop := isFlatTop(closes)

	supportSlope, err := indicators.IndexSlope(lows)
	if err != nil {
		return nil, errs.NewComputationError(meta.Symbol, "support slope", err)
	}

	score := CompositeScore(tightness, touches, volumeContraction, flatTop, supportSlope)
	if math.IsNaN(score) || math.IsNaN(tightness) || math.IsNaN(stddevClose) {
		return nil, errs.NewComputationError(meta.Symbol, "score", nil)
	}

	return &models.BreakoutScore{
		Symbol:            meta.Symbol,
		Score:             score,
		TouchCount:        touches,
		TightnessScore:    tightness,
		VolumeContraction: volumeContraction,
		HasFlatTop:        flatTop,
		SupportSlope:      supportSlope,
		StdDevClose:       stddevClose,
		WindowLength:      s.window,
		SecurityName:      meta.SecurityName,
		Sector:            meta.Sector,
		Industry:          meta.Industry,
	}, nil
}

// isFlatTop checks the 3-bar centred rolling max stays within 1% of its mean
// on average absolute deviation.
func isFlatTop(closes []float64) bool {
	rolling := indicators.CenteredRollingMax(closes, FlatTopWindow)
	m := indicators.MeanFinite(rolling)
	devs := make([]float64, len(rolling))
	for i, v := range rolling {
		devs[i] = math.Abs(v - m)
	}
	return indicators.MeanFinite(devs)/m < FlatTopMaxDev
}

// CompositeScore combines the sub-scores and clamps to [0, 100].
func CompositeScore(tightness float64, touches int, volumeContraction, flatTop bool, supportSlope float64) float64 {
	score := 0.0
	score += math.Max(0, 30-tightness*1000)
	score += float64(touches) * 10
	if volumeContraction {
		score += 10
	}
	if flatTop {
		score += 10
	}
	score += math.Max(0, supportSlope*100)
	return math.Max(0, math.Min(score, MaxScore))
}

// RankScores orders scores by sector, score desc, touch count desc, industry.
// Missing sector or industry sorts as the empty string. The sort is stable.
func RankScores(scores []models.BreakoutScore) {
	sort.SliceStable(scores, func(i, j int) bool {
		a, b := scores[i], scores[j]
		if a.Sector != b.Sector {
			return a.Sector < b.Sector
		}
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.TouchCount != b.TouchCount {
			return a.TouchCount > b.TouchCount
		}
		return a.Industry < b.Industry
	})
}
