package reporting

import (
	"fmt"
	"strings"
)

// RenderSummaryCSV renders the per-symbol summary as a CSV string.
func RenderSummaryCSV(rows []SymbolRow) string {
	var sb strings.Builder

	sb.WriteString("symbol,rows,interpolated,windows,positive_windows,positive_rate,first_date,last_date\n")

	for _, r := range rows {
		sb.WriteString(fmt.Sprintf("%s,%d,%d,%d,%d,%.6f,%s,%s\n",
			r.Symbol,
			r.Rows,
			r.Interpolated,
			r.Windows,
			r.PositiveWindows,
			r.PositiveRate,
			r.FirstDate.Format("2006-01-02"),
			r.LastDate.Format("2006-01-02"),
		))
	}

	return sb.String()
}
