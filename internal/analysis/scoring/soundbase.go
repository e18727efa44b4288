package scoring

import (
	"math"
	"sort"

	"github.com/samber/lo"

	errs "breakout-scout/internal/errors"
	"breakout-scout/internal/models"
)

// SoundBaseParams bounds the sound-base screen. Each bound is optional;
// nil skips that predicate only. Values are fractions (0.03 = 3%).
type SoundBaseParams struct {
	// MaxPctFromHigh is a magnitude: close may sit at most this far below the 20-bar high.
	MaxPctFromHigh *float64 `json:"max_pct_from_high"`
	MaxRangePct    *float64 `json:"max_range_pct"`
	MaxAvgMovePct  *float64 `json:"max_avg_move_pct"`
	MinVolumeRatio *float64 `json:"min_volume_ratio"`
	MaxVolumeRatio *float64 `json:"max_volume_ratio"`
}

// DefaultSoundBaseParams returns the standard sound-base screen.
func DefaultSoundBaseParams() SoundBaseParams {
	return SoundBaseParams{
		MaxPctFromHigh: lo.ToPtr(0.03),
		MaxRangePct:    lo.ToPtr(0.03),
		MaxAvgMovePct:  lo.ToPtr(0.02),
		MinVolumeRatio: lo.ToPtr(0.5),
		MaxVolumeRatio: lo.ToPtr(2.5),
	}
}

// Validate rejects negative bounds and an inverted volume band.
func (p SoundBaseParams) Validate() error {
	bounds := []struct {
		name string
		v    *float64
	}{
		{"sound_base.max_pct_from_high", p.MaxPctFromHigh},
		{"sound_base.max_range_pct", p.MaxRangePct},
		{"sound_base.max_avg_move_pct", p.MaxAvgMovePct},
		{"sound_base.min_volume_ratio", p.MinVolumeRatio},
		{"sound_base.max_volume_ratio", p.MaxVolumeRatio},
	}
	for _, b := range bounds {
		if b.v != nil && (math.IsNaN(*b.v) || *b.v < 0) {
			return errs.NewValidationError(b.name, *b.v, "must be non-negative")
		}
	}
	if p.MinVolumeRatio != nil && p.MaxVolumeRatio != nil && *p.MinVolumeRatio > *p.MaxVolumeRatio {
		return errs.NewValidationError("sound_base.min_volume_ratio", *p.MinVolumeRatio, "exceeds max_volume_ratio")
	}
	return nil
}

// SoundBasePasses reports whether the statistics satisfy every active bound.
func SoundBasePasses(c models.SoundBaseCandidate, p SoundBaseParams) bool {
	if p.MaxPctFromHigh != nil && c.PctFrom20dHigh < -*p.MaxPctFromHigh {
		return false
	}
	if p.MaxRangePct != nil && c.PctRange5d > *p.MaxRangePct {
		return false
	}
	if p.MaxAvgMovePct != nil && c.AvgMovePct > *p.MaxAvgMovePct {
		return false
	}
	if p.MinVolumeRatio != nil && c.VolumeRatio < *p.MinVolumeRatio {
		return false
	}
	if p.MaxVolumeRatio != nil && c.VolumeRatio > *p.MaxVolumeRatio {
		return false
	}
	return true
}

// FilterSoundBase keeps qualifying rows, tightest range first, then calmest.
func FilterSoundBase(rows []models.SoundBaseCandidate, p SoundBaseParams) []models.SoundBaseCandidate {
	out := lo.Filter(rows, func(c models.SoundBaseCandidate, _ int) bool {
		return SoundBasePasses(c, p)
	})
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].PctRange5d != out[j].PctRange5d {
			return out[i].PctRange5d < out[j].PctRange5d
		}
		return out[i].AvgMovePct < out[j].AvgMovePct
	})
	return out
}
