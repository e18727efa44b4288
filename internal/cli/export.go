package cli

import (
	"github.com/samber/lo"

	"breakout-scout/internal/models"
	"breakout-scout/pkg/utils"
)

// CSV rows flatten screen results into fixed-precision columns. Optional
// values export as an empty cell.

type swingRow struct {
	Symbol              string `csv:"symbol"`
	Sector              string `csv:"sector"`
	Industry            string `csv:"industry"`
	StartDate           string `csv:"start_date"`
	EndDate             string `csv:"end_date"`
	LastClose           string `csv:"last_close"`
	PivotHighCount      int    `csv:"pivot_high_count"`
	PivotLowCount       int    `csv:"pivot_low_count"`
	ResistanceSlope     string `csv:"resistance_slope"`
	ResistanceIntercept string `csv:"resistance_intercept"`
	ResistanceR2        string `csv:"resistance_r2"`
	SupportSlope        string `csv:"support_slope"`
	SupportIntercept    string `csv:"support_intercept"`
	SupportR2           string `csv:"support_r2"`
	VolumeRatio         string `csv:"volume_ratio"`
	PriceExtensionPct   string `csv:"price_extension_pct"`
}

type soundBaseRow struct {
	Symbol         string `csv:"symbol"`
	Sector         string `csv:"sector"`
	Industry       string `csv:"industry"`
	EndDate        string `csv:"end_date"`
	LastClose      string `csv:"last_close"`
	SMA20          string `csv:"sma_20"`
	PctFrom20dHigh string `csv:"pct_from_20d_high"`
	PctRange5d     string `csv:"pct_range_5d"`
	AvgMovePct     string `csv:"avg_move_pct"`
	VolumeRatio    string `csv:"volume_ratio"`
}

type scoreRow struct {
	Symbol            string `csv:"symbol"`
	Sector            string `csv:"sector"`
	Industry          string `csv:"industry"`
	Score             string `csv:"score"`
	TouchCount        int    `csv:"touch_count"`
	TightnessScore    string `csv:"tightness_score"`
	VolumeContraction bool   `csv:"volume_contraction"`
	HasFlatTop        bool   `csv:"has_flat_top"`
	SupportSlope      string `csv:"support_slope"`
	StdDevClose       string `csv:"stddev_close"`
	WindowLength      int    `csv:"window_length"`
}

type barRow struct {
	Symbol string `csv:"symbol"`
	Date   string `csv:"date"`
	Open   string `csv:"open"`
	High   string `csv:"high"`
	Low    string `csv:"low"`
	Close  string `csv:"close"`
	Volume int64  `csv:"volume"`
}

func ratio(v float64) string {
	return utils.FormatFixed(v, utils.RatioPlaces)
}

func optionalRatio(v *float64) string {
	if v == nil {
		return ""
	}
	return ratio(*v)
}

func swingRows(cs []models.SwingCandidate) []*swingRow {
	return lo.Map(cs, func(c models.SwingCandidate, _ int) *swingRow {
		return &swingRow{
			Symbol:              c.Symbol,
			Sector:              c.Sector,
			Industry:            c.Industry,
			StartDate:           FormatDate(c.StartDate),
			EndDate:             FormatDate(c.EndDate),
			LastClose:           FormatPrice(c.LastClose),
			PivotHighCount:      c.PivotHighCount,
			PivotLowCount:       c.PivotLowCount,
			ResistanceSlope:     optionalRatio(c.ResistanceSlope),
			ResistanceIntercept: optionalRatio(c.ResistanceIntercept),
			ResistanceR2:        optionalRatio(c.ResistanceR2),
			SupportSlope:        optionalRatio(c.SupportSlope),
			SupportIntercept:    optionalRatio(c.SupportIntercept),
			SupportR2:           optionalRatio(c.SupportR2),
			VolumeRatio:         ratio(c.VolumeRatio),
			PriceExtensionPct:   optionalRatio(c.PriceExtensionPct),
		}
	})
}

func soundBaseRows(cs []models.SoundBaseCandidate) []*soundBaseRow {
	return lo.Map(cs, func(c models.SoundBaseCandidate, _ int) *soundBaseRow {
		return &soundBaseRow{
			Symbol:         c.Symbol,
			Sector:         c.Sector,
			Industry:       c.Industry,
			EndDate:        FormatDate(c.EndDate),
			LastClose:      FormatPrice(c.LastClose),
			SMA20:          FormatPrice(c.SMA20),
			PctFrom20dHigh: ratio(c.PctFrom20dHigh),
			PctRange5d:     ratio(c.PctRange5d),
			AvgMovePct:     ratio(c.AvgMovePct),
			VolumeRatio:    ratio(c.VolumeRatio),
		}
	})
}

func scoreRows(scores []models.BreakoutScore) []*scoreRow {
	return lo.Map(scores, func(s models.BreakoutScore, _ int) *scoreRow {
		return &scoreRow{
			Symbol:            s.Symbol,
			Sector:            s.Sector,
			Industry:          s.Industry,
			Score:             utils.FormatFixed(s.Score, utils.ScorePlaces),
			TouchCount:        s.TouchCount,
			TightnessScore:    ratio(s.TightnessScore),
			VolumeContraction: s.VolumeContraction,
			HasFlatTop:        s.HasFlatTop,
			SupportSlope:      ratio(s.SupportSlope),
			StdDevClose:       ratio(s.StdDevClose),
			WindowLength:      s.WindowLength,
		}
	})
}

func barRows(bars []models.Bar) []*barRow {
	return lo.Map(bars, func(b models.Bar, _ int) *barRow {
		return &barRow{
			Symbol: b.Symbol,
			Date:   FormatDate(b.Date),
			Open:   FormatPrice(b.Open),
			High:   FormatPrice(b.High),
			Low:    FormatPrice(b.Low),
			Close:  FormatPrice(b.Close),
			Volume: b.Volume,
		}
	})
}
