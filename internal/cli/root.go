package cli

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"breakout-scout/internal/analysis/scoring"
	"breakout-scout/internal/config"
	"breakout-scout/internal/logging"
	"breakout-scout/internal/store"
	"breakout-scout/pkg/utils"
)

// Version information
const (
	Version   = "0.1.0"
	BuildDate = "2024-01-01"
)

// App holds the application dependencies. Config and Logger are resolved
// before any subcommand runs; the price store is opened on demand.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewRootCmd creates the root command for the CLI.
func NewRootCmd() *cobra.Command {
	app := &App{Logger: zerolog.Nop()}

	rootCmd := &cobra.Command{
		Use:   "scout",
		Short: "Breakout Scout - daily-bar breakout screener",
		Long: `Breakout Scout screens a daily price database for stocks forming
breakout setups.

Screens:
  wedge   converging swing pivots (rising support, flat or falling resistance)
  bs      sound bases: tight, quiet ranges near the 20-day high, then scored
  score   composite breakout score for named symbols
  stats   every view of a single symbol

Settings live in config.toml inside the config directory.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("config")
			cfg, err := config.Load(dir)
			if err != nil {
				return err
			}
			app.Config = cfg
			app.Logger = logging.NewLoggerWithConfig(logging.LogConfig{
				Level:      cfg.Logging.Level,
				Console:    true,
				File:       cfg.Logging.File,
				FilePath:   cfg.LogFilePath(),
				MaxSize:    cfg.Logging.MaxSize,
				MaxBackups: cfg.Logging.MaxBackups,
				MaxAge:     cfg.Logging.MaxAge,
			})

			if debug, _ := cmd.Flags().GetBool("debug"); debug {
				logging.SetDebugLevel()
				app.Logger = app.Logger.Level(zerolog.DebugLevel)
			}
			return nil
		},
	}

	rootCmd.PersistentFlags().String("config", "", "config directory (default: $SCOUT_CONFIG_DIR or ~/.config/breakout-scout)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("csv", false, "output result rows as CSV")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd(app))
	addScreenCommands(rootCmd, app)

	return rootCmd
}

// openStore connects to the configured price database, retrying transient
// connection failures.
func (a *App) openStore(ctx context.Context) (store.PriceStore, error) {
	switch a.Config.Store.Driver {
	case config.DriverPostgres:
		ctrl := utils.NewDelayOptimizer(utils.DefaultDelayConfig())
		ps, err := store.OpenPostgres(ctx, a.Config.Store.DSN, ctrl, a.Config.Store.ConnectAttempts, a.Logger)
		if err != nil {
			return nil, err
		}
		return ps, nil
	default:
		retry := utils.DefaultRetryConfig()
		retry.MaxAttempts = a.Config.Store.ConnectAttempts
		ss, err := utils.RetryWithResult(ctx, retry, func() (*store.SQLiteStore, error) {
			return store.NewSQLiteStore(a.Config.Store.Path)
		})
		if err != nil {
			return nil, err
		}
		return ss, nil
	}
}

// screener opens the store and wraps it in a Screener. The caller closes
// the returned store.
func (a *App) screener(ctx context.Context) (*scoring.Screener, store.PriceStore, error) {
	ps, err := a.openStore(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("opening price store: %w", err)
	}
	a.Logger.Debug().Str("driver", a.Config.Store.Driver).Msg("price store opened")

	opts := scoring.DefaultScreenerOptions()
	opts.Window = a.Config.Window
	opts.Scoring = a.Config.Scoring
	opts.Universe = a.Config.Universe.Filter()
	opts.Breaker = a.Config.Store.Breaker
	return scoring.NewScreener(ps, a.Logger, opts), ps, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			if output.IsJSON() {
				output.JSON(map[string]string{
					"version":    Version,
					"build_date": BuildDate,
				})
			} else {
				output.Printf("Breakout Scout v%s\n", Version)
				output.Dim("Build date: %s", BuildDate)
			}
		},
	}
}

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
		Long:  "View and validate application configuration.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(app.Config)
			}
			showConfig(output, app.Config)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration file path",
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			path := config.TemplatePath(app.Config.Dir)
			if output.IsJSON() {
				output.JSON(map[string]string{"path": path})
			} else {
				output.Println(path)
			}
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if err := app.Config.Validate(); err != nil {
				output.Error("Configuration validation failed: %v", err)
				return err
			}
			if output.IsJSON() {
				return output.JSON(map[string]bool{"valid": true})
			}
			output.Success("Configuration is valid")
			return nil
		},
	})

	return cmd
}

func showConfig(output *Output, cfg *config.Config) {
	output.Bold("Store")
	output.Printf("  Driver:           %s\n", cfg.Store.Driver)
	if cfg.Store.Driver == config.DriverSQLite {
		output.Printf("  Path:             %s\n", cfg.Store.Path)
	} else {
		output.Printf("  DSN:              %s\n", logging.RedactDSN(cfg.Store.DSN))
	}
	output.Printf("  Connect attempts: %d\n", cfg.Store.ConnectAttempts)
	output.Printf("  Breaker:          %d failures, %s cooldown\n", cfg.Store.Breaker.FailureThreshold, cfg.Store.Breaker.Cooldown)
	output.Println()

	output.Bold("Universe")
	output.Printf("  Common only:      %v\n", cfg.Universe.CommonOnly)
	output.Printf("  Include delisted: %v\n", cfg.Universe.IncludeDelisted)
	output.Println()

	output.Bold("Swing Slope")
	output.Printf("  Window bars:      %d\n", cfg.Swing.WindowBars)
	output.Printf("  Pivot radius:     %d\n", cfg.Swing.PivotRadius)
	output.Printf("  Resistance R2:    %s\n", utils.FormatOptional(cfg.Swing.ResistanceR2, 2))
	output.Printf("  Support R2:       %s\n", utils.FormatOptional(cfg.Swing.SupportR2, 2))
	output.Printf("  Pivot count:      %s\n", optionalInt(cfg.Swing.PivotCount))
	output.Println()

	output.Bold("Sound Base")
	output.Printf("  From 20d high:    %s\n", FormatOptionalPercent(cfg.SoundBase.MaxPctFromHigh))
	output.Printf("  5d range:         %s\n", FormatOptionalPercent(cfg.SoundBase.MaxRangePct))
	output.Printf("  Avg move:         %s\n", FormatOptionalPercent(cfg.SoundBase.MaxAvgMovePct))
	output.Printf("  Volume ratio:     %s .. %s\n",
		utils.FormatOptional(cfg.SoundBase.MinVolumeRatio, 2),
		utils.FormatOptional(cfg.SoundBase.MaxVolumeRatio, 2))
	output.Println()

	output.Bold("Scoring")
	output.Printf("  Window bars:      %d\n", cfg.Scoring.WindowBars)
	output.Printf("  Concurrency:      %d\n", cfg.Scoring.Concurrency)
}

func optionalInt(v *int) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%d", *v)
}
