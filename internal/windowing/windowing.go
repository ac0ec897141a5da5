// Package windowing slides a fixed-width window over each symbol's
// labeled series and materializes the complete ones as training examples.
package windowing

import (
	"errors"
	"sort"

	"equity-window-lab/internal/domain"
	"equity-window-lab/internal/labeling"
)

// ErrNoWindows is returned when no symbol yields a single complete
// window; the pipeline treats this as total exhaustion.
var ErrNoWindows = errors.New("no complete windows produced")

// Result is the output of the window-slicing stage.
type Result struct {
	// Windows holds every emitted window, ordered by ascending
	// prediction date within each symbol.
	Windows []*domain.Window
	// SkippedNoTarget counts candidate windows rejected because the
	// prediction-date row had no target.
	SkippedNoTarget int
	// SkippedNullFeature counts candidate windows rejected because a
	// feature value inside the window was null.
	SkippedNullFeature int
}

// Slice runs the labeler first when the rows carry no target, then
// enumerates candidate windows per symbol. A candidate spanning rows
// [end-W+1, end] is emitted only when the row at end has a target and no
// feature column is null anywhere inside the window. Symbols with fewer
// than W rows yield nothing. When the whole input yields nothing, Slice
// returns ErrNoWindows.
func Slice(rows []*domain.FeatureRow, cfg domain.PrepConfig) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if !labeling.HasTargets(rows) {
		labeled, err := labeling.Label(rows, cfg.PredictionDays)
		if err != nil {
			return nil, err
		}
		rows = labeled
	} else {
		rows = sortedCopy(rows)
	}

	res := &Result{}
	start := 0
	for i := 1; i <= len(rows); i++ {
		if i == len(rows) || rows[i].Symbol != rows[start].Symbol {
			sliceSymbol(rows[start:i], cfg, res)
			start = i
		}
	}
	if len(res.Windows) == 0 {
		return nil, ErrNoWindows
	}
	return res, nil
}

func sliceSymbol(series []*domain.FeatureRow, cfg domain.PrepConfig, res *Result) {
	w := cfg.WindowSize
	if len(series) < w {
		return
	}

	// A feature column participates in the null check only when the
	// symbol's series carries it at all; a column skipped upstream
	// (absent input) is not grounds for rejecting every window.
	var cols []domain.Column
	for _, col := range domain.FeatureColumns(cfg) {
		for _, r := range series {
			if col.Value(r) != nil {
				cols = append(cols, col)
				break
			}
		}
	}

	for end := w - 1; end < len(series); end++ {
		pred := series[end]
		if pred.Target == nil {
			res.SkippedNoTarget++
			continue
		}
		if !complete(series[end-w+1:end+1], cols) {
			res.SkippedNullFeature++
			continue
		}

		win := &domain.Window{
			Symbol:         pred.Symbol,
			PredictionDate: pred.Date,
			Target:         *pred.Target,
			Rows:           make([]domain.WindowRow, w),
		}
		for idx, r := range series[end-w+1 : end+1] {
			win.Rows[idx] = domain.WindowRow{FeatureRow: *r.Clone(), TimeIdx: idx}
		}
		res.Windows = append(res.Windows, win)
	}
}

func complete(rows []*domain.FeatureRow, cols []domain.Column) bool {
	for _, r := range rows {
		for _, col := range cols {
			if col.Value(r) == nil {
				return false
			}
		}
	}
	return true
}

func sortedCopy(rows []*domain.FeatureRow) []*domain.FeatureRow {
	out := make([]*domain.FeatureRow, len(rows))
	copy(out, rows)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Symbol != out[j].Symbol {
			return out[i].Symbol < out[j].Symbol
		}
		return out[i].Date.Before(out[j].Date)
	})
	return out
}
