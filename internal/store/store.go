// Package store provides read access to the daily price history and symbol
// metadata the screeners run against.
package store

import (
	"context"
	"strings"
	"time"

	"breakout-scout/internal/models"
)

// PriceStore is the read-only query surface over price bars and symbols.
type PriceStore interface {
	// ListSymbols returns matching symbols ordered by symbol.
	ListSymbols(ctx context.Context, filter SymbolFilter) ([]models.SymbolMeta, error)
	// GetSymbol returns metadata for one symbol, or ErrSymbolNotFound.
	GetSymbol(ctx context.Context, symbol string) (*models.SymbolMeta, error)
	// GetRecentBars returns the latest limit bars, ordered by date ascending.
	GetRecentBars(ctx context.Context, symbol string, limit int) ([]models.Bar, error)
	// GetBarsBetween returns bars with from <= date <= to, ordered by date ascending.
	GetBarsBetween(ctx context.Context, symbol string, from, to time.Time) ([]models.Bar, error)

	Close() error
}

// SymbolFilter narrows the screening universe.
type SymbolFilter struct {
	CommonOnly      bool
	IncludeDelisted bool
	Symbols         []string // empty means all
}

// IsCommonSymbol classifies a ticker as common stock by suffix: preferred
// (-P*), units (-UN), warrants (-WS) and rights (-RT) are excluded.
func IsCommonSymbol(symbol string) bool {
	s := strings.ToUpper(symbol)
	if strings.Contains(s, "-P") {
		return false
	}
	for _, suffix := range []string{"-UN", "-WS", "-RT"} {
		if strings.HasSuffix(s, suffix) {
			return false
		}
	}
	return true
}
