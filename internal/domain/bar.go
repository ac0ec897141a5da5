package domain

import "time"

// Bar is one symbol's OHLCV record for one calendar date.
// Numeric fields are nullable: nil marks a value missing on input or not
// yet produced by a pipeline stage.
type Bar struct {
	Symbol string
	Date   time.Time // UTC midnight calendar date
	Open   *float64
	High   *float64
	Low    *float64
	Close  *float64
	Volume *float64

	// Interpolated marks rows introduced by the gap filler. Interpolated
	// volume may be fractional.
	Interpolated bool
}

// Day builds a UTC midnight calendar date.
func Day(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// Midnight truncates t to its UTC calendar date.
func Midnight(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Clone returns a copy of the bar.
func (b *Bar) Clone() *Bar {
	c := *b
	c.Open = clonePtr(b.Open)
	c.High = clonePtr(b.High)
	c.Low = clonePtr(b.Low)
	c.Close = clonePtr(b.Close)
	c.Volume = clonePtr(b.Volume)
	return &c
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// Float returns a pointer to v. Convenience for building nullable columns.
func Float(v float64) *float64 {
	return &v
}
