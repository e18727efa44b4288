package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"breakout-scout/pkg/utils"
)

func TestSymbolRowFallsBackToSuffixRule(t *testing.T) {
	yes := true
	rows := []struct {
		row  symbolRow
		want bool
	}{
		{symbolRow{Symbol: "AAA"}, true},
		{symbolRow{Symbol: "AAA-WS"}, false},
		{symbolRow{Symbol: "AAA-WS", IsCommon: &yes}, true},
	}
	for _, tt := range rows {
		if got := tt.row.toMeta().IsCommon; got != tt.want {
			t.Errorf("toMeta(%s).IsCommon = %v, want %v", tt.row.Symbol, got, tt.want)
		}
	}
}

func TestEodPriceToBarNormalisesDate(t *testing.T) {
	loc := time.FixedZone("EST", -5*3600)
	p := EodPrice{Symbol: "AAA", Date: time.Date(2024, 5, 6, 0, 0, 0, 0, loc), Close: 10}
	bar := p.toBar()
	want := time.Date(2024, 5, 6, 0, 0, 0, 0, time.UTC)
	if !bar.Date.Equal(want) {
		t.Errorf("toBar().Date = %v, want %v", bar.Date, want)
	}
}

// Runs against a live database when SCOUT_TEST_PG_DSN is set.
func TestPostgresStoreLive(t *testing.T) {
	dsn := os.Getenv("SCOUT_TEST_PG_DSN")
	if dsn == "" {
		t.Skip("SCOUT_TEST_PG_DSN not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	ctrl := utils.NewDelayOptimizer(utils.DefaultDelayConfig())
	store, err := OpenPostgres(ctx, dsn, ctrl, 3, zerolog.Nop())
	if err != nil {
		t.Fatalf("OpenPostgres() error = %v", err)
	}
	defer store.Close()

	if _, err := store.ListSymbols(ctx, SymbolFilter{CommonOnly: true}); err != nil {
		t.Errorf("ListSymbols() error = %v", err)
	}
}
