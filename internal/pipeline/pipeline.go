// Package pipeline orchestrates the preparation stages per symbol:
// gap filling, feature derivation, target labeling, and window slicing.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"runtime"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"equity-window-lab/internal/adjust"
	"equity-window-lab/internal/domain"
	"equity-window-lab/internal/features"
	"equity-window-lab/internal/gapfill"
	"equity-window-lab/internal/labeling"
	"equity-window-lab/internal/observability"
	"equity-window-lab/internal/windowing"
)

// ErrExhausted is returned when the run produces nothing at all: every
// symbol was dropped, or no symbol yielded a single complete window.
var ErrExhausted = errors.New("pipeline produced no training windows")

// Options configures a pipeline run.
type Options struct {
	// Config holds the preparation parameters.
	Config domain.PrepConfig
	// Workers caps concurrent per-symbol processing. Zero means NumCPU.
	Workers int
	// Verbose enables per-stage logging.
	Verbose bool
	// SkipAdjustment bypasses the corporate-action adjustment pass.
	SkipAdjustment bool
	// Metrics is optional; nil disables instrumentation.
	Metrics *observability.Metrics
}

// SymbolStats summarizes one symbol's passage through the pipeline.
type SymbolStats struct {
	Symbol          string
	Rows            int
	Interpolated    int
	Windows         int
	PositiveWindows int
	FirstDate       time.Time
	LastDate        time.Time
}

// Result is the output of a full pipeline run.
type Result struct {
	// Windows holds every emitted window, sorted by (symbol,
	// prediction date).
	Windows []*domain.Window
	// Stats holds one entry per surviving symbol, sorted by symbol.
	Stats []SymbolStats
	// Dropped lists symbols removed entirely, with the reason appended.
	Dropped []string
	// SkippedFeatures lists feature computations not performed for at
	// least one symbol because an input column was absent.
	SkippedFeatures []string
	// RowsIn counts the input bars.
	RowsIn int
	// Interpolated counts rows introduced by gap filling across all
	// symbols.
	Interpolated int
	// SkippedNoTarget and SkippedNullFeature count rejected candidate
	// windows across all symbols.
	SkippedNoTarget    int
	SkippedNullFeature int
}

// Pipeline runs the preparation stages over a batch of daily bars.
type Pipeline struct {
	opts Options
}

// New creates a pipeline. Options.Config is validated on Run.
func New(opts Options) *Pipeline {
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	return &Pipeline{opts: opts}
}

// symbolOutcome is one worker's private result slot.
type symbolOutcome struct {
	stats    SymbolStats
	windows  []*domain.Window
	skipped  []string
	dropped  string
	noTarget int
	nullFeat int
}

// Run executes the full pipeline. Symbols are processed independently
// and concurrently; a symbol that cannot be filled or windowed is
// dropped from the run, not an error. Run fails only when the input
// carries no close column at all, when the configuration is invalid, or
// when the whole run is exhausted.
func (p *Pipeline) Run(ctx context.Context, bars []*domain.Bar) (*Result, error) {
	if err := p.opts.Config.Validate(); err != nil {
		return nil, err
	}
	started := time.Now()

	res := &Result{RowsIn: len(bars)}
	if len(bars) == 0 {
		return nil, fmt.Errorf("%w: empty input", ErrExhausted)
	}
	if !anyClose(bars) {
		return nil, &domain.MissingColumnError{Stage: "pipeline", Column: domain.ColumnClose}
	}

	if !p.opts.SkipAdjustment {
		bars = adjust.Prices(bars)
	}

	bySymbol := groupBySymbol(bars)
	symbols := make([]string, 0, len(bySymbol))
	for s := range bySymbol {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)

	if p.opts.Verbose {
		log.Printf("[pipeline] starting run: %d bars, %d symbols, %d workers",
			len(bars), len(symbols), p.opts.Workers)
	}

	outcomes := make([]symbolOutcome, len(symbols))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.Workers)
	for i, symbol := range symbols {
		i, symbol := i, symbol
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			outcomes[i] = p.processSymbol(symbol, bySymbol[symbol])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	skippedSeen := make(map[string]struct{})
	for _, o := range outcomes {
		if o.dropped != "" {
			res.Dropped = append(res.Dropped, o.dropped)
			continue
		}
		res.Windows = append(res.Windows, o.windows...)
		res.Stats = append(res.Stats, o.stats)
		res.Interpolated += o.stats.Interpolated
		res.SkippedNoTarget += o.noTarget
		res.SkippedNullFeature += o.nullFeat
		for _, s := range o.skipped {
			if _, ok := skippedSeen[s]; !ok {
				skippedSeen[s] = struct{}{}
				res.SkippedFeatures = append(res.SkippedFeatures, s)
			}
		}
	}
	sort.Strings(res.SkippedFeatures)
	sort.Slice(res.Windows, func(i, j int) bool {
		if res.Windows[i].Symbol != res.Windows[j].Symbol {
			return res.Windows[i].Symbol < res.Windows[j].Symbol
		}
		return res.Windows[i].PredictionDate.Before(res.Windows[j].PredictionDate)
	})

	p.record(res, time.Since(started))

	if len(res.Stats) == 0 {
		return nil, fmt.Errorf("%w: every symbol was dropped", ErrExhausted)
	}
	if len(res.Windows) == 0 {
		return nil, fmt.Errorf("%w: no symbol yielded a complete window", ErrExhausted)
	}

	if p.opts.Verbose {
		log.Printf("[pipeline] run complete in %s: %d windows from %d symbols (%d dropped)",
			time.Since(started).Round(time.Millisecond), len(res.Windows), len(res.Stats), len(res.Dropped))
	}
	return res, nil
}

// processSymbol runs one symbol through every stage. Stage failures
// mark the symbol dropped instead of failing the run.
func (p *Pipeline) processSymbol(symbol string, series []*domain.Bar) symbolOutcome {
	out := symbolOutcome{stats: SymbolStats{Symbol: symbol}}

	stageStart := time.Now()
	filled, interpolated, err := gapfill.FillSymbol(series)
	p.opts.Metrics.RecordStage("gapfill", time.Since(stageStart).Seconds())
	if err != nil {
		log.Printf("[pipeline] dropping symbol %s: %v", symbol, err)
		out.dropped = fmt.Sprintf("%s: %v", symbol, err)
		return out
	}
	out.stats.Rows = len(filled)
	out.stats.Interpolated = interpolated
	out.stats.FirstDate = filled[0].Date
	out.stats.LastDate = filled[len(filled)-1].Date

	stageStart = time.Now()
	derived := features.Derive(filled, p.opts.Config)
	p.opts.Metrics.RecordStage("features", time.Since(stageStart).Seconds())
	out.skipped = derived.Skipped

	stageStart = time.Now()
	labeled, err := labeling.Label(derived.Rows, p.opts.Config.PredictionDays)
	p.opts.Metrics.RecordStage("labeling", time.Since(stageStart).Seconds())
	if err != nil {
		log.Printf("[pipeline] dropping symbol %s: %v", symbol, err)
		out.dropped = fmt.Sprintf("%s: %v", symbol, err)
		return out
	}
	if p.opts.Metrics != nil {
		labeledCount := 0
		for _, r := range labeled {
			if r.Target != nil {
				labeledCount++
			}
		}
		p.opts.Metrics.TargetsLabeled.Add(float64(labeledCount))
	}

	stageStart = time.Now()
	sliced, err := windowing.Slice(labeled, p.opts.Config)
	p.opts.Metrics.RecordStage("windowing", time.Since(stageStart).Seconds())
	if err != nil {
		if errors.Is(err, windowing.ErrNoWindows) {
			if p.opts.Verbose {
				log.Printf("[pipeline] symbol %s yielded no windows (%d rows)", symbol, len(labeled))
			}
			out.windows = nil
			return out
		}
		log.Printf("[pipeline] dropping symbol %s: %v", symbol, err)
		out.dropped = fmt.Sprintf("%s: %v", symbol, err)
		return out
	}
	out.windows = sliced.Windows
	out.noTarget = sliced.SkippedNoTarget
	out.nullFeat = sliced.SkippedNullFeature
	out.stats.Windows = len(sliced.Windows)
	for _, w := range sliced.Windows {
		if w.Target == 1 {
			out.stats.PositiveWindows++
		}
	}

	if p.opts.Verbose {
		log.Printf("[pipeline] symbol %s: %d rows (%d interpolated), %d windows",
			symbol, out.stats.Rows, out.stats.Interpolated, out.stats.Windows)
	}
	return out
}

func (p *Pipeline) record(res *Result, elapsed time.Duration) {
	m := p.opts.Metrics
	if m == nil {
		return
	}
	m.BarsLoaded.Add(float64(res.RowsIn))
	m.RowsInterpolated.Add(float64(res.Interpolated))
	m.SymbolsDropped.WithLabelValues("no_usable_rows").Add(float64(len(res.Dropped)))
	for _, s := range res.SkippedFeatures {
		m.FeatureComputationsSkipped.WithLabelValues(s).Inc()
	}
	m.WindowsEmitted.Add(float64(len(res.Windows)))
	m.WindowsSkipped.WithLabelValues("no_target").Add(float64(res.SkippedNoTarget))
	m.WindowsSkipped.WithLabelValues("null_feature").Add(float64(res.SkippedNullFeature))
	m.PipelineDuration.Observe(elapsed.Seconds())
	if len(res.Windows) > 0 {
		m.LastSuccessfulRun.SetToCurrentTime()
	}
}

func anyClose(bars []*domain.Bar) bool {
	for _, b := range bars {
		if b.Close != nil {
			return true
		}
	}
	return false
}

func groupBySymbol(bars []*domain.Bar) map[string][]*domain.Bar {
	out := make(map[string][]*domain.Bar)
	for _, b := range bars {
		out[b.Symbol] = append(out[b.Symbol], b)
	}
	return out
}
