package reporting

import (
	"fmt"
	"strings"
	"time"
)

// RenderMarkdown renders the report as a Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	// Header
	sb.WriteString("# Dataset Report\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("Run ID: `%s`\n\n", r.RunID))

	// Configuration
	sb.WriteString("## Configuration\n\n")
	sb.WriteString("| Parameter | Value |\n")
	sb.WriteString("|-----------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Window Size | %d |\n", r.Config.WindowSize))
	sb.WriteString(fmt.Sprintf("| Prediction Days | %d |\n", r.Config.PredictionDays))
	sb.WriteString(fmt.Sprintf("| Moving Averages | %s |\n", intsToString(r.Config.SortedMovingAverageWindows())))
	sb.WriteString(fmt.Sprintf("| Volume Window | %d |\n", r.Config.VolumeWindow))
	sb.WriteString("\n")

	// Totals
	sb.WriteString("## Summary\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Input Rows | %d |\n", r.RowsIn))
	sb.WriteString(fmt.Sprintf("| Symbols | %d |\n", r.SymbolCount))
	sb.WriteString(fmt.Sprintf("| Interpolated Rows | %d |\n", r.Interpolated))
	sb.WriteString(fmt.Sprintf("| Windows | %d |\n", r.WindowCount))
	sb.WriteString(fmt.Sprintf("| Windows Skipped (no target) | %d |\n", r.SkippedNoTarget))
	sb.WriteString(fmt.Sprintf("| Windows Skipped (null feature) | %d |\n", r.SkippedNullFeature))
	sb.WriteString("\n")

	// Per-symbol table
	sb.WriteString("## Symbols\n\n")
	if len(r.Symbols) > 0 {
		sb.WriteString("| Symbol | Rows | Interpolated | Windows | Positive | Positive Rate | First | Last |\n")
		sb.WriteString("|--------|------|--------------|---------|----------|---------------|-------|------|\n")
		for _, s := range r.Symbols {
			sb.WriteString(fmt.Sprintf("| %s | %d | %d | %d | %d | %.2f%% | %s | %s |\n",
				s.Symbol, s.Rows, s.Interpolated, s.Windows, s.PositiveWindows,
				s.PositiveRate*100,
				s.FirstDate.Format("2006-01-02"), s.LastDate.Format("2006-01-02")))
		}
	} else {
		sb.WriteString("No symbols survived the run.\n")
	}
	sb.WriteString("\n")

	// Dropped symbols
	if len(r.Dropped) > 0 {
		sb.WriteString("## Dropped Symbols\n\n")
		for _, d := range r.Dropped {
			sb.WriteString(fmt.Sprintf("- %s\n", d))
		}
		sb.WriteString("\n")
	}

	// Skipped feature computations
	if len(r.SkippedFeatures) > 0 {
		sb.WriteString("## Skipped Feature Computations\n\n")
		for _, s := range r.SkippedFeatures {
			sb.WriteString(fmt.Sprintf("- %s\n", s))
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

func intsToString(values []int) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprintf("%d", v)
	}
	return strings.Join(parts, ", ")
}
