package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"breakout-scout/internal/analysis/scoring"
	errs "breakout-scout/internal/errors"
	"breakout-scout/internal/models"
	"breakout-scout/internal/store"
)

var seedStart = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// wedge builds a triangle wave of period 10 whose amplitude moves from a0 to a1.
func wedge(symbol string, n int, a0, a1 float64) []models.Bar {
	bars := make([]models.Bar, n)
	for i := range bars {
		phase := float64(i % 10)
		tri := -1 + 2*phase/5
		if phase > 5 {
			tri = 1 - 2*(phase-5)/5
		}
		amp := a0 + (a1-a0)*float64(i)/float64(n-1)
		c := 100 + amp*tri
		bars[i] = models.Bar{Symbol: symbol, Date: seedStart.AddDate(0, 0, i), Open: c, High: c + 0.5, Low: c - 0.5, Close: c, Volume: 1000}
	}
	return bars
}

// flat is a constant price whose volume halves in the second half.
func flat(symbol string, n int) []models.Bar {
	bars := make([]models.Bar, n)
	for i := range bars {
		vol := int64(2000)
		if i >= n/2 {
			vol = 1000
		}
		bars[i] = models.Bar{Symbol: symbol, Date: seedStart.AddDate(0, 0, i), Open: 100, High: 100, Low: 100, Close: 100, Volume: vol}
	}
	return bars
}

// seedDir writes a config and a populated SQLite database into a temp dir.
func seedDir(t *testing.T) string {
	t.Helper()
	t.Setenv("SCOUT_DB_DRIVER", "")
	t.Setenv("SCOUT_DB_PATH", "")
	t.Setenv("SCOUT_LOG_LEVEL", "")

	dir := t.TempDir()
	writeConfig(t, dir, "[logging]\nlevel = \"error\"\nfile = false\n")

	db, err := store.NewSQLiteStore(filepath.Join(dir, "scout.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	ctx := context.Background()
	metas := []models.SymbolMeta{
		{Symbol: "WEDGE", SecurityName: "Wedge Corp", Sector: "Tech", Industry: "Widgets", IsCommon: true},
		{Symbol: "MEGA", Sector: "Tech", Industry: "Widgets", IsCommon: true},
		{Symbol: "FLAT", Sector: "Tech", Industry: "Widgets", IsCommon: true},
	}
	if err := db.SaveSymbols(ctx, metas); err != nil {
		t.Fatal(err)
	}
	for _, bars := range [][]models.Bar{wedge("WEDGE", 150, 12, 2), wedge("MEGA", 150, 2, 12), flat("FLAT", 60)} {
		if err := db.SaveBars(ctx, bars); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func writeConfig(t *testing.T, dir, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, "config.toml"), []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestWedgeCommandJSON(t *testing.T) {
	dir := seedDir(t)

	out, err := run(t, "--config", dir, "wedge", "--json", "--history")
	if err != nil {
		t.Fatalf("wedge error = %v", err)
	}

	var res scoring.SwingResult
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("decoding %q: %v", out, err)
	}
	if len(res.Candidates) != 1 || res.Candidates[0].Symbol != "WEDGE" {
		t.Fatalf("candidates = %+v, want only WEDGE", res.Candidates)
	}
	if res.Candidates[0].SecurityName != "Wedge Corp" {
		t.Errorf("SecurityName = %q", res.Candidates[0].SecurityName)
	}
	if len(res.History) != 120 {
		t.Errorf("history has %d bars, want 120", len(res.History))
	}
}

func TestWedgeCommandTable(t *testing.T) {
	dir := seedDir(t)

	out, err := run(t, "--config", dir, "wedge")
	if err != nil {
		t.Fatalf("wedge error = %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) < 3 || !strings.HasPrefix(lines[0], "SYMBOL") || !strings.HasPrefix(lines[2], "WEDGE") {
		t.Errorf("unexpected table:\n%s", out)
	}
	if strings.Contains(out, "MEGA") {
		t.Errorf("diverging MEGA should not be listed:\n%s", out)
	}
}

func TestScoreCommand(t *testing.T) {
	dir := seedDir(t)

	out, err := run(t, "--config", dir, "score", "flat", "NOPE", "--json")
	if err != nil {
		t.Fatalf("score error = %v", err)
	}
	var scores []models.BreakoutScore
	if err := json.Unmarshal([]byte(out), &scores); err != nil {
		t.Fatalf("decoding %q: %v", out, err)
	}
	if len(scores) != 1 || scores[0].Symbol != "FLAT" || scores[0].Score != 100 {
		t.Errorf("scores = %+v, want FLAT at 100", scores)
	}
}

func TestScoreCommandCSV(t *testing.T) {
	dir := seedDir(t)

	out, err := run(t, "--config", dir, "score", "FLAT", "--csv")
	if err != nil {
		t.Fatalf("score error = %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want header and one row:\n%s", len(lines), out)
	}
	if !strings.HasPrefix(lines[0], "symbol,sector,industry,score,touch_count") {
		t.Errorf("header = %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "FLAT,Tech,Widgets,100.00,60,") {
		t.Errorf("row = %q", lines[1])
	}
}

func TestSoundBaseCommand(t *testing.T) {
	dir := seedDir(t)

	out, err := run(t, "--config", dir, "bs", "--json", "--min-volume-ratio", "none")
	if err != nil {
		t.Fatalf("bs error = %v", err)
	}
	var report soundBaseReport
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("decoding %q: %v", out, err)
	}

	// FLAT sits on its high with no range; the wedges swing too widely
	if len(report.Candidates) != 1 || report.Candidates[0].Symbol != "FLAT" {
		t.Fatalf("candidates = %+v, want only FLAT", report.Candidates)
	}
	if len(report.Scores) != 1 || report.Scores[0].Score != 100 {
		t.Errorf("scores = %+v", report.Scores)
	}
}

func TestStatsCommand(t *testing.T) {
	dir := seedDir(t)

	out, err := run(t, "--config", dir, "stats", "wedge", "--json")
	if err != nil {
		t.Fatalf("stats error = %v", err)
	}
	var report scoring.SymbolReport
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("decoding %q: %v", out, err)
	}
	if report.Meta.Symbol != "WEDGE" || report.Swing == nil || report.SoundBase == nil || report.Score == nil {
		t.Errorf("incomplete report: %+v", report)
	}
	if !report.LastBarDate.Equal(seedStart.AddDate(0, 0, 149)) {
		t.Errorf("LastBarDate = %v", report.LastBarDate)
	}
	if report.AvgVolumeBars != 20 || report.LastVolume == 0 {
		t.Errorf("volume summary = %d over %d bars, last %d", int64(report.AvgVolume), report.AvgVolumeBars, report.LastVolume)
	}

	text, err := run(t, "--config", dir, "stats", "flat")
	if err != nil {
		t.Fatalf("stats table error = %v", err)
	}
	if !strings.Contains(text, "Volume:     1,000  (20-bar avg 1.00K)") {
		t.Errorf("stats table missing volume line:\n%s", text)
	}

	if _, err := run(t, "--config", dir, "stats", "NOPE"); !errs.Is(err, errs.ErrSymbolNotFound) {
		t.Errorf("unknown symbol error = %v, want ErrSymbolNotFound", err)
	}
}

func TestInvalidSettingsFailBeforeOpeningStore(t *testing.T) {
	dir := seedDir(t)
	missing := filepath.Join(dir, "no-such-dir", "scout.db")
	writeConfig(t, dir, "[store]\npath = \""+missing+"\"\n[logging]\nfile = false\n")

	if _, err := run(t, "--config", dir, "wedge", "--pivot-radius", "0"); !errs.IsConfigError(err) {
		t.Errorf("pivot-radius 0 error = %v, want config error", err)
	}
	if _, err := run(t, "--config", dir, "bs", "--max-range", "wide"); !errs.IsConfigError(err) {
		t.Errorf("non-numeric bound error = %v, want config error", err)
	}

	writeConfig(t, dir, "[logging]\nfile = false\n[swing]\npivot_count = -1\n")
	if _, err := run(t, "--config", dir, "version"); !errs.IsConfigError(err) {
		t.Errorf("bad config file error = %v, want config error", err)
	}
}

func TestVersionAndConfigCommands(t *testing.T) {
	dir := seedDir(t)

	out, err := run(t, "--config", dir, "version", "--json")
	if err != nil {
		t.Fatal(err)
	}
	var v map[string]string
	if err := json.Unmarshal([]byte(out), &v); err != nil || v["version"] != Version {
		t.Errorf("version output = %q (%v)", out, err)
	}

	out, err = run(t, "--config", dir, "config", "path")
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(out) != filepath.Join(dir, "config.toml") {
		t.Errorf("config path = %q", out)
	}

	out, err = run(t, "--config", dir, "config", "show")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "Pivot radius:     3") {
		t.Errorf("config show missing swing settings:\n%s", out)
	}
}

func TestTableRender(t *testing.T) {
	var buf bytes.Buffer
	o := &Output{writer: &buf}
	table := NewTable(o, "SYMBOL", "SCORE")
	table.AddRow("AAPL", "87.50")
	table.AddRow("MSFTX", "9.00")
	table.Render()

	want := "SYMBOL  SCORE\n" +
		"------  -----\n" +
		"AAPL    87.50\n" +
		"MSFTX   9.00\n"
	if buf.String() != want {
		t.Errorf("Render() =\n%q\nwant\n%q", buf.String(), want)
	}
}

func TestCSVRowsUseFixedPrecision(t *testing.T) {
	var buf bytes.Buffer
	o := &Output{writer: &buf}
	swing := models.SwingCandidate{
		Symbol:       "ABC",
		Sector:       "Tech",
		StartDate:    seedStart,
		EndDate:      seedStart.AddDate(0, 0, 10),
		LastClose:    12.3456,
		SupportSlope: floatPtr(0.123456),
		VolumeRatio:  1.5,
	}
	if err := o.CSV(swingRows([]models.SwingCandidate{swing})); err != nil {
		t.Fatal(err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines", len(lines))
	}
	cells := strings.Split(lines[1], ",")
	header := strings.Split(lines[0], ",")
	row := map[string]string{}
	for i, h := range header {
		row[h] = cells[i]
	}
	checks := map[string]string{
		"start_date":       "2024-01-01",
		"end_date":         "2024-01-11",
		"last_close":       "12.35",
		"support_slope":    "0.1235",
		"resistance_slope": "",
		"volume_ratio":     "1.5000",
	}
	for k, want := range checks {
		if row[k] != want {
			t.Errorf("%s = %q, want %q", k, row[k], want)
		}
	}
}

func TestFormatHelpers(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"date", FormatDate(time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)), "2024-03-05"},
		{"zero date", FormatDate(time.Time{}), "-"},
		{"price", FormatPrice(123.456), "123.46"},
		{"penny price", FormatPrice(0.12345), "0.1235"},
		{"nil percent", FormatOptionalPercent(nil), "-"},
		{"percent", FormatOptionalPercent(floatPtr(-0.0325)), "-3.25%"},
		{"millis", FormatDuration(250 * time.Millisecond), "250ms"},
		{"seconds", FormatDuration(1500 * time.Millisecond), "1.5s"},
		{"minutes", FormatDuration(125 * time.Second), "2m 5s"},
		{"short string", TruncateString("Tech", 10), "Tech"},
		{"truncated", TruncateString("Semiconductors", 8), "Semic..."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}

func floatPtr(v float64) *float64 { return &v }
