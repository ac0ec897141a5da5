// Package gapfill reindexes each symbol's daily series onto a complete
// business-day calendar and interpolates the values of the introduced rows.
package gapfill

import (
	"errors"
	"log"
	"sort"
	"time"

	"equity-window-lab/internal/calendar"
	"equity-window-lab/internal/domain"
)

// ErrNoUsableRows is returned for a symbol whose series cannot be filled:
// every row still carries a null after interpolation.
var ErrNoUsableRows = errors.New("no usable rows after interpolation")

// Result is the output of the gap-filling stage.
type Result struct {
	// Bars holds every surviving row, sorted by (symbol, date).
	Bars []*domain.Bar
	// Interpolated counts rows introduced by reindexing.
	Interpolated int
	// Dropped lists symbols removed because no usable rows remained.
	Dropped []string
}

// column pairs a name with read/write access to one numeric Bar field.
type column struct {
	name string
	get  func(*domain.Bar) *float64
	set  func(*domain.Bar, *float64)
}

func numericColumns() []column {
	return []column{
		{domain.ColumnOpen, func(b *domain.Bar) *float64 { return b.Open }, func(b *domain.Bar, v *float64) { b.Open = v }},
		{domain.ColumnHigh, func(b *domain.Bar) *float64 { return b.High }, func(b *domain.Bar, v *float64) { b.High = v }},
		{domain.ColumnLow, func(b *domain.Bar) *float64 { return b.Low }, func(b *domain.Bar, v *float64) { b.Low = v }},
		{domain.ColumnClose, func(b *domain.Bar) *float64 { return b.Close }, func(b *domain.Bar, v *float64) { b.Close = v }},
		{domain.ColumnVolume, func(b *domain.Bar) *float64 { return b.Volume }, func(b *domain.Bar, v *float64) { b.Volume = v }},
	}
}

// Fill reindexes every symbol in bars onto its own business-day calendar
// spanning [min date, max date], linearly interpolates the numeric
// columns, back-fills anything still null, and drops rows that could not
// be filled. A symbol reduced to zero usable rows is dropped and
// recorded, not an error for the run. Empty input yields an empty result.
//
// Result.Bars is sorted by (symbol, date), not globally by date: every
// consumer works symbol by symbol, and keeping each symbol's rows
// contiguous means no caller has to regroup an interleaved sequence.
func Fill(bars []*domain.Bar) (*Result, error) {
	res := &Result{Bars: []*domain.Bar{}}
	if len(bars) == 0 {
		return res, nil
	}

	for _, symbol := range symbolsOf(bars) {
		var series []*domain.Bar
		for _, b := range bars {
			if b.Symbol == symbol {
				series = append(series, b)
			}
		}

		filled, added, err := FillSymbol(series)
		if err != nil {
			if errors.Is(err, ErrNoUsableRows) {
				log.Printf("[gapfill] dropping symbol %s: %v", symbol, err)
				res.Dropped = append(res.Dropped, symbol)
				continue
			}
			return nil, err
		}
		res.Bars = append(res.Bars, filled...)
		res.Interpolated += added
	}

	sort.Slice(res.Bars, func(i, j int) bool {
		if res.Bars[i].Symbol != res.Bars[j].Symbol {
			return res.Bars[i].Symbol < res.Bars[j].Symbol
		}
		return res.Bars[i].Date.Before(res.Bars[j].Date)
	})
	return res, nil
}

// FillSymbol fills one symbol's series. The input may be in any order;
// the returned rows are sorted by date and contain no date gap larger
// than one business day. The number of rows introduced by reindexing is
// returned alongside.
func FillSymbol(series []*domain.Bar) ([]*domain.Bar, int, error) {
	if len(series) == 0 {
		return nil, 0, nil
	}
	symbol := series[0].Symbol

	byDate := make(map[time.Time]*domain.Bar, len(series))
	minDate, maxDate := series[0].Date, series[0].Date
	for _, b := range series {
		d := domain.Midnight(b.Date)
		byDate[d] = b
		if d.Before(minDate) {
			minDate = d
		}
		if d.After(maxDate) {
			maxDate = d
		}
	}

	// Reindex onto the full business-day calendar. Rows on non-business
	// dates are not carried over; introduced rows start null.
	expected := calendar.Range(minDate, maxDate)
	reindexed := make([]*domain.Bar, 0, len(expected))
	interpolated := 0
	for _, d := range expected {
		if b, ok := byDate[d]; ok {
			c := b.Clone()
			c.Date = d
			reindexed = append(reindexed, c)
			continue
		}
		reindexed = append(reindexed, &domain.Bar{Symbol: symbol, Date: d, Interpolated: true})
		interpolated++
	}

	// Interpolate each column that carries at least one value: linear
	// between known neighbors, last value carried forward past the tail,
	// first value back-filled over the head.
	var present []column
	for _, col := range numericColumns() {
		if columnPresent(reindexed, col) {
			present = append(present, col)
			interpolateColumn(reindexed, col)
		}
	}

	// Safety net: drop rows still null in any present column.
	filled := reindexed[:0]
	for _, b := range reindexed {
		if rowComplete(b, present) {
			filled = append(filled, b)
		}
	}
	if len(filled) == 0 || len(present) == 0 {
		return nil, 0, ErrNoUsableRows
	}
	return filled, interpolated, nil
}

func symbolsOf(bars []*domain.Bar) []string {
	seen := make(map[string]struct{})
	var symbols []string
	for _, b := range bars {
		if _, ok := seen[b.Symbol]; !ok {
			seen[b.Symbol] = struct{}{}
			symbols = append(symbols, b.Symbol)
		}
	}
	return symbols
}

func columnPresent(bars []*domain.Bar, col column) bool {
	for _, b := range bars {
		if col.get(b) != nil {
			return true
		}
	}
	return false
}

func rowComplete(b *domain.Bar, cols []column) bool {
	for _, col := range cols {
		if col.get(b) == nil {
			return false
		}
	}
	return true
}

// interpolateColumn fills nulls in one column across a date-ordered
// series. Gaps between two known values are filled linearly by position,
// trailing nulls take the last known value, and leading nulls take the
// first known value.
func interpolateColumn(bars []*domain.Bar, col column) {
	var known []int
	for i, b := range bars {
		if col.get(b) != nil {
			known = append(known, i)
		}
	}
	if len(known) == 0 {
		return
	}

	first, last := known[0], known[len(known)-1]
	for i := 0; i < first; i++ {
		col.set(bars[i], domain.Float(*col.get(bars[first])))
	}
	for i := last + 1; i < len(bars); i++ {
		col.set(bars[i], domain.Float(*col.get(bars[last])))
	}
	for k := 0; k < len(known)-1; k++ {
		lo, hi := known[k], known[k+1]
		if hi == lo+1 {
			continue
		}
		vLo, vHi := *col.get(bars[lo]), *col.get(bars[hi])
		step := (vHi - vLo) / float64(hi-lo)
		for i := lo + 1; i < hi; i++ {
			col.set(bars[i], domain.Float(vLo+step*float64(i-lo)))
		}
	}
}
