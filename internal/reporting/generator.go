package reporting

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"equity-window-lab/internal/domain"
	"equity-window-lab/internal/pipeline"
	"equity-window-lab/internal/runid"
)

// Output file names.
const (
	SummaryCSVName = "dataset_summary.csv"
	ReportMDName   = "DATASET_REPORT.md"
)

// Generator produces dataset reports from pipeline results.
type Generator struct {
	now func() time.Time // Injectable clock for deterministic output
}

// NewGenerator creates a new report generator.
func NewGenerator() *Generator {
	return &Generator{
		now: func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Generate builds a report from a pipeline result.
func (g *Generator) Generate(res *pipeline.Result, cfg domain.PrepConfig) *Report {
	symbols := make([]string, 0, len(res.Stats))
	rows := make([]SymbolRow, 0, len(res.Stats))
	for _, s := range res.Stats {
		symbols = append(symbols, s.Symbol)
		row := SymbolRow{
			Symbol:          s.Symbol,
			Rows:            s.Rows,
			Interpolated:    s.Interpolated,
			Windows:         s.Windows,
			PositiveWindows: s.PositiveWindows,
			FirstDate:       s.FirstDate,
			LastDate:        s.LastDate,
		}
		if s.Windows > 0 {
			row.PositiveRate = float64(s.PositiveWindows) / float64(s.Windows)
		}
		rows = append(rows, row)
	}

	return &Report{
		GeneratedAt:        g.now(),
		RunID:              runid.Compute(cfg, symbols, res.RowsIn),
		Config:             cfg,
		SymbolCount:        len(rows),
		WindowCount:        len(res.Windows),
		RowsIn:             res.RowsIn,
		Interpolated:       res.Interpolated,
		SkippedNoTarget:    res.SkippedNoTarget,
		SkippedNullFeature: res.SkippedNullFeature,
		Symbols:            rows,
		Dropped:            res.Dropped,
		SkippedFeatures:    res.SkippedFeatures,
	}
}

// WriteFiles renders the report and writes dataset_summary.csv and
// DATASET_REPORT.md into outputDir, creating it if needed.
func (g *Generator) WriteFiles(outputDir string, r *Report) error {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	csvPath := filepath.Join(outputDir, SummaryCSVName)
	if err := os.WriteFile(csvPath, []byte(RenderSummaryCSV(r.Symbols)), 0644); err != nil {
		return fmt.Errorf("write %s: %w", SummaryCSVName, err)
	}

	mdPath := filepath.Join(outputDir, ReportMDName)
	if err := os.WriteFile(mdPath, []byte(RenderMarkdown(r)), 0644); err != nil {
		return fmt.Errorf("write %s: %w", ReportMDName, err)
	}

	return nil
}
