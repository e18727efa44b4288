package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const configTemplate = `# Breakout Scout Configuration
#
# Optional thresholds accept a number or "none" to switch that check off.

[store]
# "sqlite" or "postgres"
driver = "sqlite"
# SQLite database file; defaults to scout.db next to this file
# path = "/path/to/scout.db"
# Postgres connection string (or set SCOUT_DB_DSN)
# dsn = "host=localhost user=scout dbname=market sslmode=disable"
connect_attempts = 5

[store.breaker]
# Abandon a run after this many consecutive failed queries (0 disables)
failure_threshold = 5
success_threshold = 2
cooldown = "30s"

[logging]
# debug, info, warn, error
level = "info"
# Write a rotating log under logs/ in this directory
file = true
max_size = 50
max_backups = 5
max_age = 30

[universe]
# Only common stock (no preferreds, units, warrants or rights)
common_only = true
include_delisted = false

[window]
# Bar counts behind the sound-base statistics
high_bars = 20
range_bars = 5
move_bars = 5
sma_bars = 20
volume_short_bars = 5
volume_base_bars = 20

[swing]
# Trailing window and pivot radius for the swing-slope screen
window_bars = 120
pivot_radius = 3
# A symbol needs resistance_r2 OR support_r2 at or above these
resistance_r2 = 0.5
support_r2 = 0.5
# Minimum pivot highs and pivot lows
pivot_count = 3
require_positive_support = true
require_flat_or_dropping_resistance = true
# Also return each candidate's price history
include_history = false

[sound_base]
# Fractions: 0.03 = 3%
# How far below the 20-bar high the close may sit
max_pct_from_high = 0.03
# 5-bar high-low range relative to the close
max_range_pct = 0.03
# Mean absolute daily move over the last 5 bars
max_avg_move_pct = 0.02
# 5-bar over 20-bar average volume
min_volume_ratio = 0.5
max_volume_ratio = 2.5

[scoring]
# Trailing bars the composite scorer reads; symbols with fewer are skipped
window_bars = 60
# Symbols evaluated in parallel
concurrency = 4
`

func createTemplateConfig(configDir string) error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	path := filepath.Join(configDir, "config.toml")
	if err := os.WriteFile(path, []byte(configTemplate), 0644); err != nil {
		return fmt.Errorf("writing config template: %w", err)
	}

	return nil
}

// TemplatePath returns where the config file lives in configDir.
func TemplatePath(configDir string) string {
	return filepath.Join(configDir, "config.toml")
}
