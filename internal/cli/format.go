package cli

import (
	"fmt"
	"time"

	"breakout-scout/pkg/utils"
)

const dateLayout = "2006-01-02"

// FormatDate formats a bar date. Bar dates carry no time zone.
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format(dateLayout)
}

// FormatPrice formats a price; sub-dollar prices keep four decimals.
func FormatPrice(price float64) string {
	if price < 1 && price > -1 {
		return utils.FormatFixed(price, 4)
	}
	return utils.FormatFixed(price, 2)
}

// FormatOptionalPercent formats an optional fraction as a percentage.
func FormatOptionalPercent(fraction *float64) string {
	if fraction == nil {
		return "-"
	}
	return utils.FormatPercent(*fraction)
}

// FormatDuration formats a duration in human-readable form.
func FormatDuration(d time.Duration) string {
	switch {
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < time.Minute:
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	return fmt.Sprintf("%dm %ds", int(d.Minutes()), int(d.Seconds())%60)
}

// TruncateString truncates a string to max runes with ellipsis.
func TruncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}
