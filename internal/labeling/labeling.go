// Package labeling attaches the forward-looking binary target: for each
// row, the first of the symbol's own future rows at or past a fixed
// calendar-day horizon decides whether the close went up.
package labeling

import (
	"sort"

	"equity-window-lab/internal/domain"
)

// Label returns a copy of rows, sorted by (symbol, date), with the target
// column set. For each row the lookup considers only the same symbol's
// rows whose date is >= row date + predictionDays calendar days; the
// horizon is calendar days, not trading days, so holidays inside it do
// not starve the lookup. Rows with no such future row keep a null target.
// A wholly absent close column aborts with a MissingColumnError.
func Label(rows []*domain.FeatureRow, predictionDays int) ([]*domain.FeatureRow, error) {
	out := make([]*domain.FeatureRow, len(rows))
	hasClose := false
	for i, r := range rows {
		out[i] = r.Clone()
		if r.Close != nil {
			hasClose = true
		}
	}
	if len(rows) > 0 && !hasClose {
		return nil, &domain.MissingColumnError{Stage: "labeling", Column: domain.ColumnClose}
	}

	// Stable under arbitrary input order: re-sort before the lookup.
	sort.Slice(out, func(i, j int) bool {
		if out[i].Symbol != out[j].Symbol {
			return out[i].Symbol < out[j].Symbol
		}
		return out[i].Date.Before(out[j].Date)
	})

	start := 0
	for i := 1; i <= len(out); i++ {
		if i == len(out) || out[i].Symbol != out[start].Symbol {
			labelSymbol(out[start:i], predictionDays)
			start = i
		}
	}
	return out, nil
}

// labelSymbol labels one symbol's date-ordered rows via a lower-bound
// binary search into the symbol's own (date, close) sequence.
func labelSymbol(series []*domain.FeatureRow, predictionDays int) {
	for _, row := range series {
		if row.Close == nil {
			continue
		}
		cutoff := row.Date.AddDate(0, 0, predictionDays)

		j := sort.Search(len(series), func(k int) bool {
			return !series[k].Date.Before(cutoff)
		})
		if j == len(series) || series[j].Close == nil {
			continue // not enough future data: target stays null
		}

		target := 0
		if *series[j].Close > *row.Close {
			target = 1
		}
		row.Target = &target
	}
}

// HasTargets reports whether any row carries a target. The window slicer
// uses this to decide whether labeling has run; relabeling an
// all-null-labeled set is a deterministic no-op.
func HasTargets(rows []*domain.FeatureRow) bool {
	for _, r := range rows {
		if r.Target != nil {
			return true
		}
	}
	return false
}
