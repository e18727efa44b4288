// Package utils provides shared utility functions.
package utils

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Report precision for screen output.
const (
	ScorePlaces = 2
	RatioPlaces = 4
)

// Round rounds half away from zero to the given decimal places.
func Round(value float64, places int32) float64 {
	f, _ := decimal.NewFromFloat(value).Round(places).Float64()
	return f
}

// FormatFixed renders value with exactly places decimals.
func FormatFixed(value float64, places int32) string {
	return decimal.NewFromFloat(value).StringFixed(places)
}

// FormatPercent formats a fraction as a signed percentage (0.0123 -> +1.23%).
func FormatPercent(fraction float64) string {
	sign := ""
	if fraction > 0 {
		sign = "+"
	}
	return sign + decimal.NewFromFloat(fraction).Mul(decimal.NewFromInt(100)).StringFixed(2) + "%"
}

// FormatOptional renders a nil pointer as "-".
func FormatOptional(value *float64, places int32) string {
	if value == nil {
		return "-"
	}
	return FormatFixed(*value, places)
}

// FormatQuantity formats a quantity with thousands separators.
func FormatQuantity(qty int64) string {
	s := fmt.Sprintf("%d", qty)
	negative := strings.HasPrefix(s, "-")
	if negative {
		s = s[1:]
	}

	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}

	if negative {
		return "-" + b.String()
	}
	return b.String()
}

// FormatCompact formats a number in compact form (K/M/B/T).
func FormatCompact(amount float64) string {
	abs := amount
	if abs < 0 {
		abs = -abs
	}

	switch {
	case abs >= 1e12:
		return fmt.Sprintf("%.2fT", amount/1e12)
	case abs >= 1e9:
		return fmt.Sprintf("%.2fB", amount/1e9)
	case abs >= 1e6:
		return fmt.Sprintf("%.2fM", amount/1e6)
	case abs >= 1e3:
		return fmt.Sprintf("%.2fK", amount/1e3)
	}
	return fmt.Sprintf("%.2f", amount)
}
