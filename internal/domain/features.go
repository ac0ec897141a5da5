package domain

import "fmt"

// FeatureRow is a Bar enriched with derived feature columns and the
// forward-looking target label. Derived fields are nil until the owning
// stage has produced them, or when an input column was absent.
type FeatureRow struct {
	Bar

	// DailyReturn is (close[i] - close[i-1]) / close[i-1]; nil on the
	// first row of a symbol.
	DailyReturn *float64

	// MovingAvg holds the expanding/rolling close means keyed by window
	// length (MA_5, MA_20 by default).
	MovingAvg map[int]*float64

	// AvgVolume is the expanding/rolling volume mean.
	AvgVolume *float64

	// Target is 1 if the close prediction_days calendar days later is
	// higher than this row's close, 0 otherwise; nil when not enough
	// future data exists for the symbol.
	Target *int
}

// NewFeatureRow wraps a bar in an unenriched feature row.
func NewFeatureRow(b *Bar) *FeatureRow {
	return &FeatureRow{Bar: *b.Clone()}
}

// Clone returns a deep copy of the row.
func (r *FeatureRow) Clone() *FeatureRow {
	c := &FeatureRow{
		Bar:         *r.Bar.Clone(),
		DailyReturn: clonePtr(r.DailyReturn),
		AvgVolume:   clonePtr(r.AvgVolume),
		Target:      clonePtr(r.Target),
	}
	if r.MovingAvg != nil {
		c.MovingAvg = make(map[int]*float64, len(r.MovingAvg))
		for k, v := range r.MovingAvg {
			c.MovingAvg[k] = clonePtr(v)
		}
	}
	return c
}

// Canonical column names.
const (
	ColumnOpen        = "open"
	ColumnHigh        = "high"
	ColumnLow         = "low"
	ColumnClose       = "close"
	ColumnVolume      = "volume"
	ColumnDailyReturn = "daily_return"
)

// MAColumn returns the column name of the moving average with length l.
func MAColumn(l int) string {
	return fmt.Sprintf("MA_%d", l)
}

// AvgVolumeColumn returns the column name of the volume average with length w.
func AvgVolumeColumn(w int) string {
	return fmt.Sprintf("avg_volume_%d", w)
}

// Column is a named accessor over a feature row, used by stages that must
// treat the row as a table (null checks, persistence).
type Column struct {
	Name  string
	Value func(*FeatureRow) *float64
}

// FeatureColumns lists every feature column a fully derived row carries
// under the given configuration: the raw OHLCV fields plus the derived
// columns. The target is not a feature column.
func FeatureColumns(cfg PrepConfig) []Column {
	cols := []Column{
		{ColumnOpen, func(r *FeatureRow) *float64 { return r.Open }},
		{ColumnHigh, func(r *FeatureRow) *float64 { return r.High }},
		{ColumnLow, func(r *FeatureRow) *float64 { return r.Low }},
		{ColumnClose, func(r *FeatureRow) *float64 { return r.Close }},
		{ColumnVolume, func(r *FeatureRow) *float64 { return r.Volume }},
		{ColumnDailyReturn, func(r *FeatureRow) *float64 { return r.DailyReturn }},
	}
	for _, l := range cfg.SortedMovingAverageWindows() {
		l := l
		cols = append(cols, Column{MAColumn(l), func(r *FeatureRow) *float64 { return r.MovingAvg[l] }})
	}
	cols = append(cols, Column{
		AvgVolumeColumn(cfg.VolumeWindow),
		func(r *FeatureRow) *float64 { return r.AvgVolume },
	})
	return cols
}
