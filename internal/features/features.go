// Package features derives the per-symbol feature columns: daily return,
// close-price moving averages, and the volume trend. Each computation is
// independent; a missing input column skips only the computations that
// depend on it.
package features

import (
	"log"
	"sort"

	"equity-window-lab/internal/domain"
)

// Result is the output of the feature-derivation stage.
type Result struct {
	// Rows holds every input row, sorted by (symbol, date), with the
	// derived columns attached.
	Rows []*domain.FeatureRow
	// Skipped lists the computations not performed because an input
	// column was absent.
	Skipped []string
}

// Derive computes the derived columns for every symbol independently.
// The input is never mutated. Missing `close` skips the daily return and
// the moving averages; missing `volume` skips the volume trend; either
// way the remaining rows come back unmodified (degrade, don't fail).
func Derive(bars []*domain.Bar, cfg domain.PrepConfig) *Result {
	rows := make([]*domain.FeatureRow, len(bars))
	for i, b := range bars {
		rows[i] = domain.NewFeatureRow(b)
	}
	sortRows(rows)

	res := &Result{Rows: rows}

	hasClose := anyValue(rows, func(r *domain.FeatureRow) *float64 { return r.Close })
	hasVolume := anyValue(rows, func(r *domain.FeatureRow) *float64 { return r.Volume })

	maWindows := cfg.SortedMovingAverageWindows()
	if hasClose {
		forEachSymbol(rows, func(series []*domain.FeatureRow) {
			deriveDailyReturns(series)
			for _, l := range maWindows {
				deriveMovingAverage(series, l)
			}
		})
	} else {
		res.skip(domain.ColumnDailyReturn, domain.ColumnClose)
		for _, l := range maWindows {
			res.skip(domain.MAColumn(l), domain.ColumnClose)
		}
	}

	if hasVolume {
		forEachSymbol(rows, func(series []*domain.FeatureRow) {
			deriveVolumeTrend(series, cfg.VolumeWindow)
		})
	} else {
		res.skip(domain.AvgVolumeColumn(cfg.VolumeWindow), domain.ColumnVolume)
	}

	return res
}

func (r *Result) skip(computation, missing string) {
	log.Printf("[features] skipping %s: column %q absent from input", computation, missing)
	r.Skipped = append(r.Skipped, computation)
}

func sortRows(rows []*domain.FeatureRow) {
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Symbol != rows[j].Symbol {
			return rows[i].Symbol < rows[j].Symbol
		}
		return rows[i].Date.Before(rows[j].Date)
	})
}

// forEachSymbol invokes fn on each symbol's contiguous run of rows.
// Rows must already be sorted by (symbol, date).
func forEachSymbol(rows []*domain.FeatureRow, fn func([]*domain.FeatureRow)) {
	start := 0
	for i := 1; i <= len(rows); i++ {
		if i == len(rows) || rows[i].Symbol != rows[start].Symbol {
			fn(rows[start:i])
			start = i
		}
	}
}

func anyValue(rows []*domain.FeatureRow, get func(*domain.FeatureRow) *float64) bool {
	for _, r := range rows {
		if get(r) != nil {
			return true
		}
	}
	return false
}

// deriveDailyReturns sets (close[i] - close[i-1]) / close[i-1]. The first
// row, and any row where either close is null or the divisor is zero,
// stays null.
func deriveDailyReturns(series []*domain.FeatureRow) {
	for i := 1; i < len(series); i++ {
		prev, cur := series[i-1].Close, series[i].Close
		if prev == nil || cur == nil || *prev == 0 {
			continue
		}
		series[i].DailyReturn = domain.Float((*cur - *prev) / *prev)
	}
}

// deriveMovingAverage sets the length-l rolling close mean with an
// expanding head: rows before the window is full average what exists so
// far, so every row with at least one close in reach gets a value.
func deriveMovingAverage(series []*domain.FeatureRow, l int) {
	for i := range series {
		if m, ok := rollingMean(series, i, l, func(r *domain.FeatureRow) *float64 { return r.Close }); ok {
			if series[i].MovingAvg == nil {
				series[i].MovingAvg = make(map[int]*float64)
			}
			series[i].MovingAvg[l] = domain.Float(m)
		}
	}
}

// deriveVolumeTrend sets the rolling volume mean, expanding head included.
func deriveVolumeTrend(series []*domain.FeatureRow, w int) {
	for i := range series {
		if m, ok := rollingMean(series, i, w, func(r *domain.FeatureRow) *float64 { return r.Volume }); ok {
			series[i].AvgVolume = domain.Float(m)
		}
	}
}

// rollingMean averages the non-null values in rows [max(0, i-l+1), i].
// Returns false when every value in the window is null.
func rollingMean(series []*domain.FeatureRow, i, l int, get func(*domain.FeatureRow) *float64) (float64, bool) {
	start := i - l + 1
	if start < 0 {
		start = 0
	}
	sum, n := 0.0, 0
	for j := start; j <= i; j++ {
		if v := get(series[j]); v != nil {
			sum += *v
			n++
		}
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}
