package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"breakout-scout/internal/analysis/scoring"
	errs "breakout-scout/internal/errors"
	"breakout-scout/internal/resilience"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "config.toml"), []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	return dir
}

func TestLoadCreatesTemplateWithDefaults(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "scout")

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if _, err := os.Stat(TemplatePath(dir)); err != nil {
		t.Fatalf("template not written: %v", err)
	}

	if cfg.Store.Driver != DriverSQLite || cfg.Store.Path != filepath.Join(dir, "scout.db") {
		t.Errorf("store = %+v", cfg.Store)
	}
	if !reflect.DeepEqual(cfg.Swing, scoring.DefaultSwingParams()) {
		t.Errorf("swing = %+v, want defaults", cfg.Swing)
	}
	if !reflect.DeepEqual(cfg.SoundBase, scoring.DefaultSoundBaseParams()) {
		t.Errorf("sound_base = %+v, want defaults", cfg.SoundBase)
	}
	if cfg.Window != scoring.DefaultWindowParams() || cfg.Scoring != scoring.DefaultScorerConfig() {
		t.Errorf("window/scoring = %+v / %+v", cfg.Window, cfg.Scoring)
	}
	if cfg.Store.Breaker != resilience.DefaultBreakerConfig() {
		t.Errorf("breaker = %+v, want defaults", cfg.Store.Breaker)
	}
	if !cfg.Universe.CommonOnly || cfg.Universe.IncludeDelisted {
		t.Errorf("universe = %+v", cfg.Universe)
	}
	if cfg.LogFilePath() != filepath.Join(dir, "logs", "scout.log") {
		t.Errorf("LogFilePath() = %s", cfg.LogFilePath())
	}
}

func TestLoadDisabledBounds(t *testing.T) {
	dir := writeConfig(t, `
[swing]
resistance_r2 = "none"
pivot_count = "off"
require_positive_support = false

[sound_base]
max_pct_from_high = "none"
max_range_pct = 0.05
`)

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Swing.ResistanceR2 != nil || cfg.Swing.PivotCount != nil {
		t.Errorf("swing bounds not disabled: %+v", cfg.Swing)
	}
	if cfg.Swing.SupportR2 == nil || *cfg.Swing.SupportR2 != 0.5 {
		t.Errorf("support_r2 = %v, want default 0.5", cfg.Swing.SupportR2)
	}
	if cfg.Swing.RequirePositiveSupport {
		t.Error("require_positive_support not applied")
	}
	if cfg.SoundBase.MaxPctFromHigh != nil {
		t.Errorf("max_pct_from_high = %v, want nil", *cfg.SoundBase.MaxPctFromHigh)
	}
	if cfg.SoundBase.MaxRangePct == nil || *cfg.SoundBase.MaxRangePct != 0.05 {
		t.Errorf("max_range_pct = %v, want 0.05", cfg.SoundBase.MaxRangePct)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"negative bound", "[sound_base]\nmax_range_pct = -0.1\n"},
		{"not a number", "[sound_base]\nmax_range_pct = \"tight\"\n"},
		{"r2 above one", "[swing]\nsupport_r2 = 2.0\n"},
		{"bad driver", "[store]\ndriver = \"mysql\"\n"},
		{"postgres without dsn", "[store]\ndriver = \"postgres\"\n"},
		{"short score window", "[scoring]\nwindow_bars = 5\n"},
		{"zero window", "[window]\nrange_bars = 0\n"},
		{"bad level", "[logging]\nlevel = \"loud\"\n"},
		{"negative breaker threshold", "[store.breaker]\nfailure_threshold = -1\n"},
		{"breaker never closes", "[store.breaker]\nsuccess_threshold = 0\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			if !errs.IsConfigError(err) {
				t.Errorf("Load() error = %v, want config error", err)
			}
		})
	}
}

func TestEnvOverrides(t *testing.T) {
	dir := writeConfig(t, "")
	t.Setenv("SCOUT_DB_DRIVER", "postgres")
	t.Setenv("SCOUT_DB_DSN", "host=db user=scout")
	t.Setenv("SCOUT_LOG_LEVEL", "debug")

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Store.Driver != DriverPostgres || cfg.Store.DSN != "host=db user=scout" || cfg.Logging.Level != "debug" {
		t.Errorf("overrides not applied: %+v %+v", cfg.Store, cfg.Logging)
	}
}

func TestDefaultConfigDirFromEnv(t *testing.T) {
	t.Setenv("SCOUT_CONFIG_DIR", "/tmp/scout-test")
	if got := DefaultConfigDir(); got != "/tmp/scout-test" {
		t.Errorf("DefaultConfigDir() = %s", got)
	}
}

func TestParseOptional(t *testing.T) {
	for _, raw := range []interface{}{nil, "none", "OFF", "", false} {
		if v, err := ParseOptionalFloat("k", raw); err != nil || v != nil {
			t.Errorf("ParseOptionalFloat(%v) = %v, %v; want disabled", raw, v, err)
		}
	}
	if v, err := ParseOptionalFloat("k", "0.25"); err != nil || *v != 0.25 {
		t.Errorf("ParseOptionalFloat(\"0.25\") = %v, %v", v, err)
	}
	if v, err := ParseOptionalInt("k", int64(4)); err != nil || *v != 4 {
		t.Errorf("ParseOptionalInt(4) = %v, %v", v, err)
	}
	if _, err := ParseOptionalInt("k", "many"); !errs.IsConfigError(err) {
		t.Errorf("ParseOptionalInt(\"many\") error = %v, want config error", err)
	}
}
