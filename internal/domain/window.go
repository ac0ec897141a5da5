package domain

import "time"

// WindowRow is one time step inside a window.
type WindowRow struct {
	FeatureRow

	// TimeIdx is the positional index within the window, 0..W-1.
	TimeIdx int
}

// Window is a fixed-length slice of one symbol's rows ending at its
// prediction date, with a single binary target. Windows are the terminal
// pipeline output and are never mutated after creation.
type Window struct {
	Symbol         string
	PredictionDate time.Time
	Target         int // 0 or 1
	Rows           []WindowRow
}

// Clone returns a deep copy of the window.
func (w *Window) Clone() *Window {
	out := &Window{
		Symbol:         w.Symbol,
		PredictionDate: w.PredictionDate,
		Target:         w.Target,
		Rows:           make([]WindowRow, len(w.Rows)),
	}
	for i, r := range w.Rows {
		out.Rows[i] = WindowRow{FeatureRow: *r.FeatureRow.Clone(), TimeIdx: r.TimeIdx}
	}
	return out
}
