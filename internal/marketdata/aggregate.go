package marketdata

import (
	"sort"
	"time"

	"equity-window-lab/internal/domain"
)

// QuoteAggregator folds live quotes into provisional daily bars. The
// first price of a day opens the bar, every price extends high/low and
// becomes the close, and day_volume replaces the running volume. Not
// safe for concurrent use.
type QuoteAggregator struct {
	bars map[aggregateKey]*domain.Bar
}

type aggregateKey struct {
	symbol string
	date   time.Time
}

// NewQuoteAggregator creates an empty aggregator.
func NewQuoteAggregator() *QuoteAggregator {
	return &QuoteAggregator{bars: make(map[aggregateKey]*domain.Bar)}
}

// Apply folds one quote into its symbol's bar for the quote's date.
func (a *QuoteAggregator) Apply(q Quote) {
	date := domain.Midnight(time.Unix(q.Timestamp, 0))
	key := aggregateKey{symbol: q.Symbol, date: date}

	b, ok := a.bars[key]
	if !ok {
		b = &domain.Bar{
			Symbol: q.Symbol,
			Date:   date,
			Open:   domain.Float(q.Price),
			High:   domain.Float(q.Price),
			Low:    domain.Float(q.Price),
		}
		a.bars[key] = b
	}

	if q.Price > *b.High {
		b.High = domain.Float(q.Price)
	}
	if q.Price < *b.Low {
		b.Low = domain.Float(q.Price)
	}
	b.Close = domain.Float(q.Price)
	b.Volume = domain.Float(q.Volume)
}

// Len returns the number of bars accumulated so far.
func (a *QuoteAggregator) Len() int {
	return len(a.bars)
}

// Bars returns the accumulated bars sorted by symbol then date.
func (a *QuoteAggregator) Bars() []*domain.Bar {
	out := make([]*domain.Bar, 0, len(a.bars))
	for _, b := range a.bars {
		out = append(out, b.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Symbol != out[j].Symbol {
			return out[i].Symbol < out[j].Symbol
		}
		return out[i].Date.Before(out[j].Date)
	})
	return out
}
