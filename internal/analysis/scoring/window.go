// Package scoring screens a symbol universe for breakout candidates and
// ranks shortlisted symbols by a composite base-quality score.
package scoring

import (
	"fmt"
	"math"

	"breakout-scout/internal/analysis/indicators"
	errs "breakout-scout/internal/errors"
	"breakout-scout/internal/models"
)

// WindowParams sizes the short trailing windows behind the sound-base statistics.
type WindowParams struct {
	HighBars        int `mapstructure:"high_bars" json:"high_bars"`
	RangeBars       int `mapstructure:"range_bars" json:"range_bars"`
	MoveBars        int `mapstructure:"move_bars" json:"move_bars"`
	SMABars         int `mapstructure:"sma_bars" json:"sma_bars"`
	VolumeShortBars int `mapstructure:"volume_short_bars" json:"volume_short_bars"`
	VolumeBaseBars  int `mapstructure:"volume_base_bars" json:"volume_base_bars"`
}

// DefaultWindowParams returns the 20-bar high / 5-bar range layout.
func DefaultWindowParams() WindowParams {
	return WindowParams{
		HighBars:        20,
		RangeBars:       5,
		MoveBars:        5,
		SMABars:         20,
		VolumeShortBars: 5,
		VolumeBaseBars:  20,
	}
}

// MinBars is the number of bars the statistics need.
func (p WindowParams) MinBars() int {
	n := p.HighBars
	for _, v := range []int{p.RangeBars, p.MoveBars + 1, p.SMABars, p.VolumeShortBars, p.VolumeBaseBars} {
		if v > n {
			n = v
		}
	}
	return n
}

// Validate checks every window is positive.
func (p WindowParams) Validate() error {
	fields := map[string]int{
		"window.high_bars":         p.HighBars,
		"window.range_bars":        p.RangeBars,
		"window.move_bars":         p.MoveBars,
		"window.sma_bars":          p.SMABars,
		"window.volume_short_bars": p.VolumeShortBars,
		"window.volume_base_bars":  p.VolumeBaseBars,
	}
	for name, v := range fields {
		if v <= 0 {
			return errs.NewValidationError(name, v, "must be positive")
		}
	}
	return nil
}

// BuildSoundBaseStats computes the per-symbol window statistics record from
// bars sorted by date ascending. Only the trailing MinBars bars matter.
func BuildSoundBaseStats(meta models.SymbolMeta, bars []models.Bar, p WindowParams) (*models.SoundBaseCandidate, error) {
	need := p.MinBars()
	if len(bars) < need {
		return nil, errs.NewDataError(meta.Symbol, "bars", len(bars), need)
	}
	if err := checkBars(meta.Symbol, bars); err != nil {
		return nil, err
	}

	last := bars[len(bars)-1]
	closes := indicators.ClosePrices(bars)
	highs := indicators.HighPrices(bars)
	lows := indicators.LowPrices(bars)
	vols := indicators.Volumes(bars)

	high20 := indicators.Highest(tail(highs, p.HighBars))
	rangeHigh := indicators.Highest(tail(highs, p.RangeBars))
	rangeLow := indicators.Lowest(tail(lows, p.RangeBars))

	recent := tail(closes, p.MoveBars+1)
	moves := make([]float64, 0, p.MoveBars)
	for i := 1; i < len(recent); i++ {
		moves = append(moves, math.Abs(recent[i]/recent[i-1]-1))
	}

	ratio, err := volumeRatio(meta.Symbol, vols, p)
	if err != nil {
		return nil, err
	}

	return &models.SoundBaseCandidate{
		Symbol:         meta.Symbol,
		SecurityName:   meta.SecurityName,
		Sector:         meta.Sector,
		Industry:       meta.Industry,
		EndDate:        last.Date,
		LastClose:      last.Close,
		SMA20:          indicators.Mean(tail(closes, p.SMABars)),
		PctFrom20dHigh: last.Close/high20 - 1,
		PctRange5d:     (rangeHigh - rangeLow) / last.Close,
		AvgMovePct:     indicators.Mean(moves),
		VolumeRatio:    ratio,
	}, nil
}

// volumeRatio is the short-window average volume over the baseline average.
func volumeRatio(symbol string, vols []float64, p WindowParams) (float64, error) {
	base := indicators.Mean(tail(vols, p.VolumeBaseBars))
	if base <= 0 {
		return 0, errs.NewComputationError(symbol, "volume ratio", fmt.Errorf("baseline volume is zero"))
	}
	return indicators.Mean(tail(vols, p.VolumeShortBars)) / base, nil
}

// checkBars rejects rows that would poison ratio arithmetic.
func checkBars(symbol string, bars []models.Bar) error {
	for i, b := range bars {
		for _, v := range []float64{b.Open, b.High, b.Low, b.Close} {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return errs.NewComputationError(symbol, "validate bars", fmt.Errorf("non-finite price at bar %d (%s)", i, b.Date.Format("2006-01-02")))
			}
		}
		if b.Close <= 0 || b.High <= 0 {
			return errs.NewComputationError(symbol, "validate bars", fmt.Errorf("non-positive price at bar %d (%s)", i, b.Date.Format("2006-01-02")))
		}
		if b.Volume < 0 {
			return errs.NewComputationError(symbol, "validate bars", fmt.Errorf("negative volume at bar %d", i))
		}
		if i > 0 && !b.Date.After(bars[i-1].Date) {
			return errs.NewComputationError(symbol, "validate bars", fmt.Errorf("bars out of order at %d", i))
		}
	}
	return nil
}

func tail[T any](values []T, n int) []T {
	if n >= len(values) {
		return values
	}
	return values[len(values)-n:]
}
