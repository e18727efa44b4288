package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"breakout-scout/internal/analysis/scoring"
	"breakout-scout/internal/config"
	"breakout-scout/internal/models"
	"breakout-scout/pkg/utils"
)

func addScreenCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newWedgeCmd(app))
	rootCmd.AddCommand(newSoundBaseCmd(app))
	rootCmd.AddCommand(newScoreCmd(app))
	rootCmd.AddCommand(newStatsCmd(app))
}

// addSwingFlags registers overrides for the [swing] config section.
func addSwingFlags(cmd *cobra.Command) {
	cmd.Flags().Int("window", 0, "trailing bars to fit (default from config)")
	cmd.Flags().Int("pivot-radius", 0, "bars on each side a pivot must dominate")
	cmd.Flags().String("resistance-r2", "", "minimum resistance fit r2, or none")
	cmd.Flags().String("support-r2", "", "minimum support fit r2, or none")
	cmd.Flags().String("pivot-count", "", "minimum pivots of each type, or none")
	cmd.Flags().Bool("any-support", false, "do not require a rising support line")
	cmd.Flags().Bool("any-resistance", false, "do not require a flat or falling resistance line")
}

func swingParamsFromFlags(cmd *cobra.Command, base scoring.SwingParams) (scoring.SwingParams, error) {
	p := base
	flags := cmd.Flags()
	var err error

	if flags.Changed("window") {
		p.WindowBars, _ = flags.GetInt("window")
	}
	if flags.Changed("pivot-radius") {
		p.PivotRadius, _ = flags.GetInt("pivot-radius")
	}
	if flags.Changed("resistance-r2") {
		raw, _ := flags.GetString("resistance-r2")
		if p.ResistanceR2, err = config.ParseOptionalFloat("resistance-r2", raw); err != nil {
			return p, err
		}
	}
	if flags.Changed("support-r2") {
		raw, _ := flags.GetString("support-r2")
		if p.SupportR2, err = config.ParseOptionalFloat("support-r2", raw); err != nil {
			return p, err
		}
	}
	if flags.Changed("pivot-count") {
		raw, _ := flags.GetString("pivot-count")
		if p.PivotCount, err = config.ParseOptionalInt("pivot-count", raw); err != nil {
			return p, err
		}
	}
	if on, _ := flags.GetBool("any-support"); on {
		p.RequirePositiveSupport = false
	}
	if on, _ := flags.GetBool("any-resistance"); on {
		p.RequireFlatOrDroppingResistance = false
	}
	return p, p.Validate()
}

func newWedgeCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wedge",
		Short: "Screen for converging swing pivots",
		Long: `Fit resistance through swing-high pivots and support through swing-low
pivots over the trailing window, and keep symbols whose lines converge with
enough pivots and a good enough fit.

With --csv and --history the joined price history is written instead of the
candidate rows.`,
		Example: `  scout wedge
  scout wedge --window 90 --pivot-count 2 --support-r2 none
  scout wedge --history --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			p, err := swingParamsFromFlags(cmd, app.Config.Swing)
			if err != nil {
				return err
			}
			if history, _ := cmd.Flags().GetBool("history"); history {
				p.IncludeHistory = true
			}

			sc, ps, err := app.screener(cmd.Context())
			if err != nil {
				return err
			}
			defer ps.Close()

			start := time.Now()
			res, err := sc.SwingSlopeBreakout(cmd.Context(), p)
			if err != nil {
				return err
			}

			switch {
			case output.IsJSON():
				return output.JSON(res)
			case output.IsCSV() && p.IncludeHistory:
				return output.CSV(barRows(res.History))
			case output.IsCSV():
				return output.CSV(swingRows(res.Candidates))
			}
			renderSwing(output, res.Candidates)
			output.Dim("%d candidates in %s", len(res.Candidates), FormatDuration(time.Since(start)))
			return nil
		},
	}
	addSwingFlags(cmd)
	cmd.Flags().Bool("history", false, "also return each candidate's window bars")
	return cmd
}

func renderSwing(output *Output, cs []models.SwingCandidate) {
	table := NewTable(output, "SYMBOL", "SECTOR", "CLOSE", "PIVOTS H/L", "RES SLOPE", "RES R2", "SUP SLOPE", "SUP R2", "VOL RATIO", "EXT")
	for _, c := range cs {
		table.AddRow(
			output.ColoredString(ColorBold, c.Symbol),
			TruncateString(c.Sector, 22),
			FormatPrice(c.LastClose),
			fmt.Sprintf("%d/%d", c.PivotHighCount, c.PivotLowCount),
			slope(output, c.ResistanceSlope),
			utils.FormatOptional(c.ResistanceR2, 2),
			slope(output, c.SupportSlope),
			utils.FormatOptional(c.SupportR2, 2),
			utils.FormatFixed(c.VolumeRatio, 2),
			FormatOptionalPercent(c.PriceExtensionPct),
		)
	}
	table.Render()
}

func slope(output *Output, v *float64) string {
	if v == nil {
		return "-"
	}
	return output.Signed(*v, utils.FormatFixed(*v, utils.RatioPlaces))
}

// addSoundBaseFlags registers overrides for the [sound_base] config section.
func addSoundBaseFlags(cmd *cobra.Command) {
	cmd.Flags().String("max-from-high", "", "max distance below the 20-day high as a fraction, or none")
	cmd.Flags().String("max-range", "", "max 5-day range as a fraction of close, or none")
	cmd.Flags().String("max-avg-move", "", "max mean absolute daily move as a fraction, or none")
	cmd.Flags().String("min-volume-ratio", "", "min short/base volume ratio, or none")
	cmd.Flags().String("max-volume-ratio", "", "max short/base volume ratio, or none")
}

func soundBaseParamsFromFlags(cmd *cobra.Command, base scoring.SoundBaseParams) (scoring.SoundBaseParams, error) {
	p := base
	fields := []struct {
		flag   string
		target **float64
	}{
		{"max-from-high", &p.MaxPctFromHigh},
		{"max-range", &p.MaxRangePct},
		{"max-avg-move", &p.MaxAvgMovePct},
		{"min-volume-ratio", &p.MinVolumeRatio},
		{"max-volume-ratio", &p.MaxVolumeRatio},
	}
	for _, f := range fields {
		if !cmd.Flags().Changed(f.flag) {
			continue
		}
		raw, _ := cmd.Flags().GetString(f.flag)
		v, err := config.ParseOptionalFloat(f.flag, raw)
		if err != nil {
			return p, err
		}
		*f.target = v
	}
	return p, p.Validate()
}

// soundBaseReport is the bs command's JSON shape.
type soundBaseReport struct {
	Candidates []models.SoundBaseCandidate `json:"candidates"`
	Scores     []models.BreakoutScore      `json:"scores,omitempty"`
}

func newSoundBaseCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "bs",
		Aliases: []string{"sound-base"},
		Short:   "Screen for sound bases and score the shortlist",
		Long: `Phase one keeps symbols trading in a tight, quiet range close to their
20-day high. Phase two runs the composite breakout score over that shortlist,
ranked by sector and score.`,
		Example: `  scout bs
  scout bs --max-range 0.05 --min-volume-ratio none
  scout bs --no-score --csv > bases.csv`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			p, err := soundBaseParamsFromFlags(cmd, app.Config.SoundBase)
			if err != nil {
				return err
			}
			noScore, _ := cmd.Flags().GetBool("no-score")

			sc, ps, err := app.screener(cmd.Context())
			if err != nil {
				return err
			}
			defer ps.Close()

			start := time.Now()
			report := soundBaseReport{}
			if report.Candidates, err = sc.SoundBaseBreakout(cmd.Context(), p); err != nil {
				return err
			}
			if !noScore && len(report.Candidates) > 0 {
				if report.Scores, err = sc.ScoreCandidates(cmd.Context(), report.Candidates); err != nil {
					return err
				}
			}

			switch {
			case output.IsJSON():
				return output.JSON(report)
			case output.IsCSV() && noScore:
				return output.CSV(soundBaseRows(report.Candidates))
			case output.IsCSV():
				return output.CSV(scoreRows(report.Scores))
			}

			output.Bold("Sound bases (%d)", len(report.Candidates))
			renderSoundBase(output, report.Candidates)
			if !noScore {
				output.Println()
				output.Bold("Breakout scores (%d)", len(report.Scores))
				renderScores(output, report.Scores)
			}
			output.Dim("done in %s", FormatDuration(time.Since(start)))
			return nil
		},
	}
	addSoundBaseFlags(cmd)
	cmd.Flags().Bool("no-score", false, "skip the composite score phase")
	return cmd
}

func renderSoundBase(output *Output, cs []models.SoundBaseCandidate) {
	table := NewTable(output, "SYMBOL", "SECTOR", "CLOSE", "SMA20", "FROM HIGH", "5D RANGE", "AVG MOVE", "VOL RATIO")
	for _, c := range cs {
		table.AddRow(
			output.ColoredString(ColorBold, c.Symbol),
			TruncateString(c.Sector, 22),
			FormatPrice(c.LastClose),
			FormatPrice(c.SMA20),
			utils.FormatPercent(c.PctFrom20dHigh),
			utils.FormatPercent(c.PctRange5d),
			utils.FormatPercent(c.AvgMovePct),
			utils.FormatFixed(c.VolumeRatio, 2),
		)
	}
	table.Render()
}

func renderScores(output *Output, scores []models.BreakoutScore) {
	table := NewTable(output, "SYMBOL", "SECTOR", "INDUSTRY", "SCORE", "TOUCHES", "TIGHTNESS", "VOL DRY", "FLAT TOP", "SUP SLOPE")
	for _, s := range scores {
		table.AddRow(
			output.ColoredString(ColorBold, s.Symbol),
			TruncateString(s.Sector, 22),
			TruncateString(s.Industry, 26),
			scoreText(output, s.Score),
			fmt.Sprintf("%d", s.TouchCount),
			utils.FormatFixed(s.TightnessScore, utils.RatioPlaces),
			output.Flag(s.VolumeContraction),
			output.Flag(s.HasFlatTop),
			output.Signed(s.SupportSlope, utils.FormatFixed(s.SupportSlope, utils.RatioPlaces)),
		)
	}
	table.Render()
}

func scoreText(output *Output, score float64) string {
	text := utils.FormatFixed(score, utils.ScorePlaces)
	switch {
	case score >= 70:
		return output.ColoredString(ColorGreen, text)
	case score >= 40:
		return output.ColoredString(ColorYellow, text)
	}
	return text
}

func newScoreCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "score SYMBOL...",
		Short: "Composite breakout score for the given symbols",
		Example: `  scout score AAPL MSFT
  scout score aapl --csv`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			symbols := lo.Map(args, func(s string, _ int) string { return strings.ToUpper(strings.TrimSpace(s)) })

			sc, ps, err := app.screener(cmd.Context())
			if err != nil {
				return err
			}
			defer ps.Close()

			scores, err := sc.ScoreSymbols(cmd.Context(), symbols)
			if err != nil {
				return err
			}

			switch {
			case output.IsJSON():
				return output.JSON(scores)
			case output.IsCSV():
				return output.CSV(scoreRows(scores))
			}
			renderScores(output, scores)
			if missing := len(lo.Uniq(symbols)) - len(scores); missing > 0 {
				output.Warning("%d symbol(s) could not be scored; run with --debug for details", missing)
			}
			return nil
		},
	}
	return cmd
}

func newStatsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats SYMBOL",
		Short: "Pivots, trendlines, base statistics and score for one symbol",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			p, err := swingParamsFromFlags(cmd, app.Config.Swing)
			if err != nil {
				return err
			}

			sc, ps, err := app.screener(cmd.Context())
			if err != nil {
				return err
			}
			defer ps.Close()

			report, err := sc.SymbolStats(cmd.Context(), strings.ToUpper(args[0]), p)
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(report)
			}
			renderStats(output, report)
			return nil
		},
	}
	addSwingFlags(cmd)
	return cmd
}

func renderStats(output *Output, r *scoring.SymbolReport) {
	title := r.Meta.Symbol
	if r.Meta.SecurityName != "" {
		title += "  " + r.Meta.SecurityName
	}
	output.Bold("%s", title)
	if r.Meta.Sector != "" || r.Meta.Industry != "" {
		output.Dim("%s / %s", r.Meta.Sector, r.Meta.Industry)
	}
	output.Printf("Last bar:   %s", FormatDate(r.LastBarDate))
	if r.SessionsBehind > 0 {
		output.Printf(" %s", output.ColoredString(ColorYellow, fmt.Sprintf("(%d sessions behind)", r.SessionsBehind)))
	}
	output.Println()
	output.Printf("Volume:     %s  (%d-bar avg %s)\n", utils.FormatQuantity(r.LastVolume), r.AvgVolumeBars, utils.FormatCompact(r.AvgVolume))
	output.Println()

	if s := r.Swing; s != nil {
		output.Bold("Swing structure %s .. %s (%d bars)", FormatDate(s.StartDate), FormatDate(s.EndDate), s.BarCount)
		output.Printf("  Resistance: slope %s  r2 %s  pivots %d\n", slope(output, s.ResistanceSlope), utils.FormatOptional(s.ResistanceR2, 2), s.PivotHighCount)
		output.Printf("  Support:    slope %s  r2 %s  pivots %d\n", slope(output, s.SupportSlope), utils.FormatOptional(s.SupportR2, 2), s.PivotLowCount)
		output.Printf("  Extension:  %s   Volume ratio: %s\n", FormatOptionalPercent(s.PriceExtensionPct), utils.FormatFixed(s.VolumeRatio, 2))
		output.Println()
	}

	if len(r.Pivots) > 0 {
		table := NewTable(output, "DATE", "TYPE", "PRICE", "STRENGTH")
		for _, pv := range r.Pivots {
			table.AddRow(FormatDate(pv.Date), string(pv.Type), FormatPrice(pv.Price), fmt.Sprintf("%d", pv.Strength))
		}
		table.Render()
		output.Println()
	}

	if b := r.SoundBase; b != nil {
		output.Bold("Base")
		output.Printf("  Close %s  SMA20 %s  from high %s  5d range %s  avg move %s  vol ratio %s\n",
			FormatPrice(b.LastClose), FormatPrice(b.SMA20),
			utils.FormatPercent(b.PctFrom20dHigh), utils.FormatPercent(b.PctRange5d),
			utils.FormatPercent(b.AvgMovePct), utils.FormatFixed(b.VolumeRatio, 2))
		output.Println()
	}

	if s := r.Score; s != nil {
		output.Bold("Breakout score %s", utils.FormatFixed(s.Score, utils.ScorePlaces))
		output.Printf("  touches %d  tightness %s  volume dry-up %s  flat top %s  support slope %s\n",
			s.TouchCount, utils.FormatFixed(s.TightnessScore, utils.RatioPlaces),
			output.Flag(s.VolumeContraction), output.Flag(s.HasFlatTop),
			utils.FormatFixed(s.SupportSlope, utils.RatioPlaces))
	}

	for _, view := range []string{"swing", "sound_base", "score"} {
		if msg, ok := r.Errors[view]; ok {
			output.Warning("%s: %s", view, msg)
		}
	}
}
