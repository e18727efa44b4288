// Package models provides domain models for the breakout screener.
package models

import (
	"time"
)

// Bar represents one daily OHLCV record for a symbol.
// Bars are immutable once written and keyed by (Symbol, Date).
type Bar struct {
	Symbol string    `json:"symbol"`
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
}

// SymbolMeta holds descriptive data for a traded security.
type SymbolMeta struct {
	Symbol       string     `json:"symbol"`
	SecurityName string     `json:"security_name,omitempty"`
	Sector       string     `json:"sector,omitempty"`
	Industry     string     `json:"industry,omitempty"`
	MarketCap    int64      `json:"market_cap,omitempty"`
	QuoteType    string     `json:"quote_type,omitempty"`
	IsCommon     bool       `json:"is_common"`
	DelistedDate *time.Time `json:"delisted_date,omitempty"`
}

// IsDelisted reports whether the symbol carries a delisting date.
func (m SymbolMeta) IsDelisted() bool {
	return m.DelistedDate != nil
}

// PivotType distinguishes swing highs from swing lows.
type PivotType string

const (
	PivotHigh PivotType = "high"
	PivotLow  PivotType = "low"
)

// PivotPoint is a local extreme of the close series.
type PivotPoint struct {
	Symbol   string    `json:"symbol"`
	Index    int       `json:"index"`
	Date     time.Time `json:"date"`
	Price    float64   `json:"price"`
	Type     PivotType `json:"type"`
	Strength int       `json:"strength"` // neighbouring bars dominated
}

// LineRole names what a fitted trendline stands for.
type LineRole string

const (
	RoleResistance LineRole = "resistance"
	RoleSupport    LineRole = "support"
)

// Trendline is a least-squares line through pivots of one type.
// Slope is in price units per calendar day.
type Trendline struct {
	Symbol     string   `json:"symbol"`
	Role       LineRole `json:"role"`
	Slope      float64  `json:"slope"`
	Intercept  float64  `json:"intercept"`
	RSquared   float64  `json:"r_squared"`
	PointCount int      `json:"point_count"`
}

// ValueAt projects the line to the given date.
func (t Trendline) ValueAt(date time.Time) float64 {
	return t.Slope*float64(DayOrdinal(date)) + t.Intercept
}

// DayOrdinal converts a date to whole days since the Unix epoch.
func DayOrdinal(date time.Time) int64 {
	d := date.UTC()
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC).Unix() / 86400
}
