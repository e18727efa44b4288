package models

import "time"

// SwingCandidate is one row of the swing-slope breakout screen.
// Trendline fields are nil when fewer than two pivots of the type exist.
type SwingCandidate struct {
	Symbol       string `json:"symbol"`
	SecurityName string `json:"security_name,omitempty"`
	Sector       string `json:"sector"`
	Industry     string `json:"industry"`

	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
	BarCount  int       `json:"bar_count"`
	LastClose float64   `json:"last_close"`

	PivotHighCount int `json:"pivot_high_count"`
	PivotLowCount  int `json:"pivot_low_count"`

	ResistanceSlope     *float64 `json:"resistance_slope"`
	ResistanceIntercept *float64 `json:"resistance_intercept"`
	ResistanceR2        *float64 `json:"resistance_r2"`
	SupportSlope        *float64 `json:"support_slope"`
	SupportIntercept    *float64 `json:"support_intercept"`
	SupportR2           *float64 `json:"support_r2"`

	VolumeRatio       float64  `json:"volume_ratio"`
	PriceExtensionPct *float64 `json:"price_extension_pct"`
}

// SoundBaseCandidate is one row of the sound-base breakout screen.
// Ratios are fractions: 0.03 means 3%.
type SoundBaseCandidate struct {
	Symbol       string `json:"symbol"`
	SecurityName string `json:"security_name,omitempty"`
	Sector       string `json:"sector"`
	Industry     string `json:"industry"`

	EndDate        time.Time `json:"end_date"`
	LastClose      float64   `json:"last_close"`
	SMA20          float64   `json:"sma_20"`
	PctFrom20dHigh float64   `json:"pct_from_20d_high"`
	PctRange5d     float64   `json:"pct_range_5d"`
	AvgMovePct     float64   `json:"avg_move_pct"`
	VolumeRatio    float64   `json:"volume_ratio"`
}

// BreakoutScore is the composite scorer's verdict on one symbol.
type BreakoutScore struct {
	Symbol            string  `json:"symbol"`
	Score             float64 `json:"score"`
	TouchCount        int     `json:"touch_count"`
	TightnessScore    float64 `json:"tightness_score"`
	VolumeContraction bool    `json:"volume_contraction"`
	HasFlatTop        bool    `json:"has_flat_top"`
	SupportSlope      float64 `json:"support_slope"`
	StdDevClose       float64 `json:"stddev_close"`
	WindowLength      int     `json:"window_length"`
	SecurityName      string  `json:"security_name,omitempty"`
	Sector            string  `json:"sector,omitempty"`
	Industry          string  `json:"industry,omitempty"`
}
