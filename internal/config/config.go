// Package config handles configuration loading and management.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cast"
	"github.com/spf13/viper"

	"breakout-scout/internal/analysis/scoring"
	errs "breakout-scout/internal/errors"
	"breakout-scout/internal/resilience"
	"breakout-scout/internal/store"
)

// Supported store drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config holds all application configuration.
type Config struct {
	Dir       string                  `mapstructure:"-" json:"-"`
	Store     StoreConfig             `mapstructure:"store" json:"store"`
	Logging   LoggingConfig           `mapstructure:"logging" json:"logging"`
	Universe  UniverseConfig          `mapstructure:"universe" json:"universe"`
	Window    scoring.WindowParams    `mapstructure:"window" json:"window"`
	Scoring   scoring.ScorerConfig    `mapstructure:"scoring" json:"scoring"`
	Swing     scoring.SwingParams     `mapstructure:"-" json:"swing"`
	SoundBase scoring.SoundBaseParams `mapstructure:"-" json:"sound_base"`
}

// StoreConfig selects and locates the price database.
type StoreConfig struct {
	Driver          string `mapstructure:"driver" json:"driver"`
	Path            string `mapstructure:"path" json:"path"`
	DSN             string `mapstructure:"dsn" json:"-"`
	ConnectAttempts int    `mapstructure:"connect_attempts" json:"connect_attempts"`

	Breaker resilience.BreakerConfig `mapstructure:"breaker" json:"breaker"`
}

// LoggingConfig holds log settings.
type LoggingConfig struct {
	Level      string `mapstructure:"level" json:"level"`
	File       bool   `mapstructure:"file" json:"file"`
	MaxSize    int    `mapstructure:"max_size" json:"max_size"`
	MaxBackups int    `mapstructure:"max_backups" json:"max_backups"`
	MaxAge     int    `mapstructure:"max_age" json:"max_age"`
}

// UniverseConfig selects which symbols the screens consider.
type UniverseConfig struct {
	CommonOnly      bool `mapstructure:"common_only" json:"common_only"`
	IncludeDelisted bool `mapstructure:"include_delisted" json:"include_delisted"`
}

// Filter converts the universe settings to a store filter.
func (u UniverseConfig) Filter() store.SymbolFilter {
	return store.SymbolFilter{CommonOnly: u.CommonOnly, IncludeDelisted: u.IncludeDelisted}
}

// DefaultConfigDir returns the default configuration directory.
// SCOUT_CONFIG_DIR takes precedence over ~/.config/breakout-scout.
func DefaultConfigDir() string {
	if dir := os.Getenv("SCOUT_CONFIG_DIR"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/breakout-scout"
	}
	return filepath.Join(home, ".config", "breakout-scout")
}

// LogFilePath is where the rotating log file lives.
func (c *Config) LogFilePath() string {
	return filepath.Join(c.Dir, "logs", "scout.log")
}

// Load loads configuration from the specified directory.
// If configDir is empty, uses the default config directory. A missing
// config.toml is replaced by the commented template before loading.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)
	setDefaults(v, configDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("loading config.toml: %w", err)
		}
		if err := createTemplateConfig(configDir); err != nil {
			return nil, err
		}
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("loading config.toml: %w", err)
		}
	}

	cfg := &Config{Dir: configDir}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decoding config.toml: %w", err)
	}

	var err error
	if cfg.Swing, err = decodeSwing(v); err != nil {
		return nil, err
	}
	if cfg.SoundBase, err = decodeSoundBase(v); err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper, configDir string) {
	v.SetDefault("store.driver", DriverSQLite)
	v.SetDefault("store.path", filepath.Join(configDir, "scout.db"))
	v.SetDefault("store.connect_attempts", 5)
	br := resilience.DefaultBreakerConfig()
	v.SetDefault("store.breaker.failure_threshold", br.FailureThreshold)
	v.SetDefault("store.breaker.success_threshold", br.SuccessThreshold)
	v.SetDefault("store.breaker.cooldown", br.Cooldown.String())

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.file", true)
	v.SetDefault("logging.max_size", 50)
	v.SetDefault("logging.max_backups", 5)
	v.SetDefault("logging.max_age", 30)

	v.SetDefault("universe.common_only", true)
	v.SetDefault("universe.include_delisted", false)

	w := scoring.DefaultWindowParams()
	v.SetDefault("window.high_bars", w.HighBars)
	v.SetDefault("window.range_bars", w.RangeBars)
	v.SetDefault("window.move_bars", w.MoveBars)
	v.SetDefault("window.sma_bars", w.SMABars)
	v.SetDefault("window.volume_short_bars", w.VolumeShortBars)
	v.SetDefault("window.volume_base_bars", w.VolumeBaseBars)

	sc := scoring.DefaultScorerConfig()
	v.SetDefault("scoring.window_bars", sc.WindowBars)
	v.SetDefault("scoring.concurrency", sc.Concurrency)
}

func decodeSwing(v *viper.Viper) (scoring.SwingParams, error) {
	p := scoring.DefaultSwingParams()
	var err error

	if v.IsSet("swing.window_bars") {
		if p.WindowBars, err = cast.ToIntE(v.Get("swing.window_bars")); err != nil {
			return p, errs.NewValidationError("swing.window_bars", v.Get("swing.window_bars"), "must be an integer")
		}
	}
	if v.IsSet("swing.pivot_radius") {
		if p.PivotRadius, err = cast.ToIntE(v.Get("swing.pivot_radius")); err != nil {
			return p, errs.NewValidationError("swing.pivot_radius", v.Get("swing.pivot_radius"), "must be an integer")
		}
	}
	if p.ResistanceR2, err = optionalFloat(v, "swing.resistance_r2", p.ResistanceR2); err != nil {
		return p, err
	}
	if p.SupportR2, err = optionalFloat(v, "swing.support_r2", p.SupportR2); err != nil {
		return p, err
	}
	if p.PivotCount, err = optionalInt(v, "swing.pivot_count", p.PivotCount); err != nil {
		return p, err
	}
	if v.IsSet("swing.require_positive_support") {
		p.RequirePositiveSupport = v.GetBool("swing.require_positive_support")
	}
	if v.IsSet("swing.require_flat_or_dropping_resistance") {
		p.RequireFlatOrDroppingResistance = v.GetBool("swing.require_flat_or_dropping_resistance")
	}
	p.IncludeHistory = v.GetBool("swing.include_history")
	return p, nil
}

func decodeSoundBase(v *viper.Viper) (scoring.SoundBaseParams, error) {
	p := scoring.DefaultSoundBaseParams()
	fields := []struct {
		key    string
		target **float64
	}{
		{"sound_base.max_pct_from_high", &p.MaxPctFromHigh},
		{"sound_base.max_range_pct", &p.MaxRangePct},
		{"sound_base.max_avg_move_pct", &p.MaxAvgMovePct},
		{"sound_base.min_volume_ratio", &p.MinVolumeRatio},
		{"sound_base.max_volume_ratio", &p.MaxVolumeRatio},
	}
	for _, f := range fields {
		val, err := optionalFloat(v, f.key, *f.target)
		if err != nil {
			return p, err
		}
		*f.target = val
	}
	return p, nil
}

// ParseOptionalFloat reads a bound that may be disabled. "none", "off",
// "false" and the empty string disable it; anything else must be a number.
func ParseOptionalFloat(key string, raw interface{}) (*float64, error) {
	if disabled(raw) {
		return nil, nil
	}
	f, err := cast.ToFloat64E(raw)
	if err != nil {
		return nil, errs.NewValidationError(key, raw, "must be a number or \"none\"")
	}
	return &f, nil
}

// ParseOptionalInt is ParseOptionalFloat for integer thresholds.
func ParseOptionalInt(key string, raw interface{}) (*int, error) {
	if disabled(raw) {
		return nil, nil
	}
	n, err := cast.ToIntE(raw)
	if err != nil {
		return nil, errs.NewValidationError(key, raw, "must be an integer or \"none\"")
	}
	return &n, nil
}

func disabled(raw interface{}) bool {
	switch t := raw.(type) {
	case nil:
		return true
	case bool:
		return !t
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "", "none", "off", "false":
			return true
		}
	}
	return false
}

func optionalFloat(v *viper.Viper, key string, def *float64) (*float64, error) {
	if !v.IsSet(key) {
		return def, nil
	}
	return ParseOptionalFloat(key, v.Get(key))
}

func optionalInt(v *viper.Viper, key string, def *int) (*int, error) {
	if !v.IsSet(key) {
		return def, nil
	}
	return ParseOptionalInt(key, v.Get(key))
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SCOUT_DB_DRIVER"); v != "" {
		cfg.Store.Driver = v
	}
	if v := os.Getenv("SCOUT_DB_PATH"); v != "" {
		cfg.Store.Path = v
	}
	if v := os.Getenv("SCOUT_DB_DSN"); v != "" {
		cfg.Store.DSN = v
	}
	if v := os.Getenv("SCOUT_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case DriverSQLite:
		if c.Store.Path == "" {
			return errs.NewValidationError("store.path", c.Store.Path, "required for the sqlite driver")
		}
	case DriverPostgres:
		if c.Store.DSN == "" {
			return errs.NewValidationError("store.dsn", "", "required for the postgres driver")
		}
	default:
		return errs.NewValidationError("store.driver", c.Store.Driver, "must be 'sqlite' or 'postgres'")
	}
	if c.Store.ConnectAttempts < 1 {
		return errs.NewValidationError("store.connect_attempts", c.Store.ConnectAttempts, "must be at least 1")
	}
	if b := c.Store.Breaker; b.FailureThreshold < 0 {
		return errs.NewValidationError("store.breaker.failure_threshold", b.FailureThreshold, "must be non-negative")
	} else if b.FailureThreshold > 0 && b.SuccessThreshold < 1 {
		return errs.NewValidationError("store.breaker.success_threshold", b.SuccessThreshold, "must be at least 1")
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return errs.NewValidationError("logging.level", c.Logging.Level, "must be debug, info, warn or error")
	}

	if err := c.Window.Validate(); err != nil {
		return err
	}
	if err := c.Swing.Validate(); err != nil {
		return err
	}
	if err := c.SoundBase.Validate(); err != nil {
		return err
	}
	return c.Scoring.Validate()
}
