package scoring

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"breakout-scout/internal/analysis/indicators"
	"breakout-scout/internal/analysis/patterns"
	errs "breakout-scout/internal/errors"
	"breakout-scout/internal/logging"
	"breakout-scout/internal/models"
	"breakout-scout/internal/resilience"
	"breakout-scout/internal/store"
	"breakout-scout/pkg/utils"
)

// ScreenerOptions configures a Screener.
type ScreenerOptions struct {
	Window   WindowParams
	Scoring  ScorerConfig
	Universe store.SymbolFilter
	Retry    utils.RetryConfig
	Breaker  resilience.BreakerConfig
}

// DefaultScreenerOptions screens live common stock with default windows.
func DefaultScreenerOptions() ScreenerOptions {
	retry := utils.DefaultRetryConfig()
	retry.RetryableErrors = []error{errs.ErrDatabaseError}
	return ScreenerOptions{
		Window:   DefaultWindowParams(),
		Scoring:  DefaultScorerConfig(),
		Universe: store.SymbolFilter{CommonOnly: true},
		Retry:    retry,
		Breaker:  resilience.DefaultBreakerConfig(),
	}
}

// Screener runs the breakout screens and the composite scorer against a
// price store. Symbols are evaluated concurrently; results are always
// returned in the documented deterministic order. Once the store fails
// repeatedly the breaker opens and the run is abandoned.
type Screener struct {
	store   store.PriceStore
	logger  zerolog.Logger
	opts    ScreenerOptions
	scorer  *BreakoutScorer
	breaker *resilience.Breaker
}

// NewScreener creates a screener over ps.
func NewScreener(ps store.PriceStore, logger zerolog.Logger, opts ScreenerOptions) *Screener {
	if opts.Retry.MaxAttempts <= 0 {
		opts.Retry = DefaultScreenerOptions().Retry
	}
	return &Screener{
		store:   ps,
		logger:  logger,
		opts:    opts,
		scorer:  NewBreakoutScorer(opts.Scoring.WindowBars),
		breaker: resilience.NewBreaker("price_store", opts.Breaker),
	}
}

// SwingResult is the swing-slope screen output. History holds each
// candidate's window bars ordered by symbol then date, when requested.
type SwingResult struct {
	Candidates []models.SwingCandidate `json:"candidates"`
	History    []models.Bar            `json:"history,omitempty"`
}

// SwingSlopeBreakout screens the universe for converging swing structure.
func (s *Screener) SwingSlopeBreakout(ctx context.Context, p SwingParams) (*SwingResult, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if err := s.opts.Window.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	log := logging.WithOperation(s.logger, "swing_slope")

	metas, err := s.store.ListSymbols(ctx, s.opts.Universe)
	if err != nil {
		return nil, err
	}

	rows, err := forEachSymbol(ctx, s, log, metas, func(ctx context.Context, meta models.SymbolMeta) (*models.SwingCandidate, error) {
		bars, err := s.recentBars(ctx, meta.Symbol, p.WindowBars)
		if err != nil {
			return nil, err
		}
		return BuildSwingStats(meta, bars, p, s.opts.Window)
	})
	if err != nil {
		return nil, err
	}

	result := &SwingResult{Candidates: FilterSwingSlope(rows, p)}
	logging.LogScreenRun(log, "swing_slope", len(rows), len(result.Candidates), time.Since(start))

	if p.IncludeHistory && len(result.Candidates) > 0 {
		result.History, err = s.history(ctx, result.Candidates)
		if err != nil {
			return nil, err
		}
	}
	return result, nil
}

// history joins each candidate's window back to the price store.
func (s *Screener) history(ctx context.Context, candidates []models.SwingCandidate) ([]models.Bar, error) {
	bySymbol := lo.Associate(candidates, func(c models.SwingCandidate) (string, models.SwingCandidate) {
		return c.Symbol, c
	})
	symbols := lo.Keys(bySymbol)
	sort.Strings(symbols)

	var out []models.Bar
	for _, sym := range symbols {
		c := bySymbol[sym]
		bars, err := resilience.Execute(ctx, s.breaker, func() ([]models.Bar, error) {
			return utils.RetryWithResult(ctx, s.opts.Retry, func() ([]models.Bar, error) {
				return s.store.GetBarsBetween(ctx, sym, c.StartDate, c.EndDate)
			})
		})
		if err != nil {
			return nil, err
		}
		out = append(out, bars...)
	}
	return out, nil
}

// SoundBaseBreakout screens the universe for tight, quiet bases near highs.
func (s *Screener) SoundBaseBreakout(ctx context.Context, p SoundBaseParams) ([]models.SoundBaseCandidate, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if err := s.opts.Window.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	log := logging.WithOperation(s.logger, "sound_base")

	metas, err := s.store.ListSymbols(ctx, s.opts.Universe)
	if err != nil {
		return nil, err
	}

	need := s.opts.Window.MinBars()
	rows, err := forEachSymbol(ctx, s, log, metas, func(ctx context.Context, meta models.SymbolMeta) (*models.SoundBaseCandidate, error) {
		bars, err := s.recentBars(ctx, meta.Symbol, need)
		if err != nil {
			return nil, err
		}
		return BuildSoundBaseStats(meta, bars, s.opts.Window)
	})
	if err != nil {
		return nil, err
	}

	out := FilterSoundBase(rows, p)
	logging.LogScreenRun(log, "sound_base", len(rows), len(out), time.Since(start))
	return out, nil
}

// ScoreCandidates runs the composite scorer over a sound-base shortlist.
func (s *Screener) ScoreCandidates(ctx context.Context, rows []models.SoundBaseCandidate) ([]models.BreakoutScore, error) {
	metas := lo.Map(rows, func(c models.SoundBaseCandidate, _ int) models.SymbolMeta {
		return models.SymbolMeta{
			Symbol:       c.Symbol,
			SecurityName: c.SecurityName,
			Sector:       c.Sector,
			Industry:     c.Industry,
		}
	})
	return s.scoreMetas(ctx, metas)
}

// ScoreSymbols scores an explicit symbol list. Unknown symbols are logged
// and skipped.
func (s *Screener) ScoreSymbols(ctx context.Context, symbols []string) ([]models.BreakoutScore, error) {
	symbols = lo.Uniq(symbols)
	metas, err := s.store.ListSymbols(ctx, store.SymbolFilter{Symbols: symbols, IncludeDelisted: true})
	if err != nil {
		return nil, err
	}

	known := lo.Associate(metas, func(m models.SymbolMeta) (string, struct{}) { return m.Symbol, struct{}{} })
	for _, sym := range symbols {
		if _, ok := known[sym]; !ok {
			logging.LogSkip(s.logger, sym, errs.Wrapf(errs.ErrSymbolNotFound, "%s", sym))
		}
	}
	return s.scoreMetas(ctx, metas)
}

func (s *Screener) scoreMetas(ctx context.Context, metas []models.SymbolMeta) ([]models.BreakoutScore, error) {
	if err := s.opts.Scoring.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	log := logging.WithOperation(s.logger, "score")

	scores, err := forEachSymbol(ctx, s, log, metas, func(ctx context.Context, meta models.SymbolMeta) (*models.BreakoutScore, error) {
		bars, err := s.recentBars(ctx, meta.Symbol, s.scorer.Window())
		if err != nil {
			return nil, err
		}
		return s.scorer.Score(meta, bars)
	})
	if err != nil {
		return nil, err
	}

	RankScores(scores)
	logging.LogScreenRun(log, "composite_score", len(metas), len(scores), time.Since(start))
	return scores, nil
}

// SymbolReport gathers every derived view of one symbol. A view that cannot
// be computed is nil and its error recorded under the view's name.
type SymbolReport struct {
	Meta           models.SymbolMeta          `json:"meta"`
	LastBarDate    time.Time                  `json:"last_bar_date"`
	SessionsBehind int                        `json:"sessions_behind"`
	LastVolume     int64                      `json:"last_volume"`
	AvgVolume      float64                    `json:"avg_volume"`
	AvgVolumeBars  int                        `json:"avg_volume_bars"`
	Pivots         []models.PivotPoint        `json:"pivots"`
	Swing          *models.SwingCandidate     `json:"swing,omitempty"`
	SoundBase      *models.SoundBaseCandidate `json:"sound_base,omitempty"`
	Score          *models.BreakoutScore      `json:"score,omitempty"`
	Errors         map[string]string          `json:"errors,omitempty"`
}

// SymbolStats computes the swing, sound-base and score views for one symbol.
func (s *Screener) SymbolStats(ctx context.Context, symbol string, p SwingParams) (*SymbolReport, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if err := s.opts.Window.Validate(); err != nil {
		return nil, err
	}

	meta, err := s.store.GetSymbol(ctx, symbol)
	if err != nil {
		return nil, err
	}

	limit := lo.Max([]int{p.WindowBars, s.opts.Window.MinBars(), s.scorer.Window()})
	bars, err := s.recentBars(ctx, symbol, limit)
	if err != nil {
		return nil, err
	}
	if len(bars) == 0 {
		return nil, errs.Wrapf(errs.ErrDataNotFound, "no bars for %s", symbol)
	}

	report := &SymbolReport{Meta: *meta, Errors: map[string]string{}}
	last := bars[len(bars)-1]
	report.LastBarDate = last.Date
	report.LastVolume = last.Volume
	base := tail(bars, s.opts.Window.VolumeBaseBars)
	report.AvgVolume = indicators.Mean(indicators.Volumes(base))
	report.AvgVolumeBars = len(base)
	report.SessionsBehind = utils.TradingDaysBetween(report.LastBarDate, utils.LastTradingDay(time.Now()))

	window := tail(bars, p.WindowBars)
	report.Pivots = patterns.NewPivotDetector(p.PivotRadius).Detect(window)
	if report.Swing, err = BuildSwingStats(*meta, bars, p, s.opts.Window); err != nil {
		report.Errors["swing"] = err.Error()
	}
	if report.SoundBase, err = BuildSoundBaseStats(*meta, bars, s.opts.Window); err != nil {
		report.Errors["sound_base"] = err.Error()
	}
	if report.Score, err = s.scorer.Score(*meta, bars); err != nil {
		report.Errors["score"] = err.Error()
	}
	return report, nil
}

func (s *Screener) recentBars(ctx context.Context, symbol string, limit int) ([]models.Bar, error) {
	start := time.Now()
	bars, err := resilience.Execute(ctx, s.breaker, func() ([]models.Bar, error) {
		return utils.RetryWithResult(ctx, s.opts.Retry, func() ([]models.Bar, error) {
			return s.store.GetRecentBars(ctx, symbol, limit)
		})
	})
	logging.LogQuery(s.logger, "recent_bars", symbol, len(bars), time.Since(start), err)
	return bars, err
}

// forEachSymbol evaluates fn for every symbol with bounded parallelism. A
// failing or panicking symbol is logged and dropped; the surviving results
// keep the input order. Only context cancellation or an open store breaker
// fails the batch.
func forEachSymbol[T any](ctx context.Context, s *Screener, log zerolog.Logger, metas []models.SymbolMeta, fn func(context.Context, models.SymbolMeta) (*T, error)) ([]T, error) {
	slots := make([]*T, len(metas))

	g, gctx := errgroup.WithContext(ctx)
	if n := s.opts.Scoring.Concurrency; n > 0 {
		g.SetLimit(n)
	}

	for i, meta := range metas {
		i, meta := i, meta
		g.Go(func() (err error) {
			if err := gctx.Err(); err != nil {
				return err
			}
			defer func() {
				if r := recover(); r != nil {
					logging.LogSkip(log, meta.Symbol, errs.NewComputationError(meta.Symbol, "evaluate", fmt.Errorf("panic: %v", r)))
				}
			}()

			row, ferr := fn(gctx, meta)
			if ferr != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				if errors.Is(ferr, resilience.ErrCircuitOpen) {
					return ferr
				}
				logging.LogSkip(log, meta.Symbol, ferr)
				return nil
			}
			slots[i] = row
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]T, 0, len(metas))
	for _, row := range slots {
		if row != nil {
			out = append(out, *row)
		}
	}
	return out, nil
}
