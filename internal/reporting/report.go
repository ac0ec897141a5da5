package reporting

import (
	"time"

	"equity-window-lab/internal/domain"
)

// Report summarizes one dataset-preparation run.
type Report struct {
	// Metadata
	GeneratedAt time.Time
	RunID       string
	Config      domain.PrepConfig

	// Totals
	SymbolCount        int
	WindowCount        int
	RowsIn             int
	Interpolated       int
	SkippedNoTarget    int
	SkippedNullFeature int

	// Per-symbol rows, sorted by symbol.
	Symbols []SymbolRow

	// Dropped lists symbols removed from the run with the reason.
	Dropped []string

	// SkippedFeatures lists feature computations not performed for at
	// least one symbol.
	SkippedFeatures []string
}

// SymbolRow is one row in the per-symbol summary table.
type SymbolRow struct {
	Symbol          string
	Rows            int
	Interpolated    int
	Windows         int
	PositiveWindows int
	PositiveRate    float64
	FirstDate       time.Time
	LastDate        time.Time
}
