package pipeline

import (
	"context"
	"hash/fnv"
	"math/rand"
	"time"

	"equity-window-lab/internal/calendar"
	"equity-window-lab/internal/domain"
	"equity-window-lab/internal/storage"
)

// GenerateBars produces a deterministic synthetic daily series per
// symbol: a seeded random walk over business days starting at start.
// Roughly one row in twelve loses its close, one in nine its volume,
// and one business day in fifteen is skipped outright, so the gap
// filler always has work to do.
func GenerateBars(symbols []string, start time.Time, days int) []*domain.Bar {
	var bars []*domain.Bar
	for _, symbol := range symbols {
		rng := rand.New(rand.NewSource(symbolSeed(symbol)))
		price := 50.0 + rng.Float64()*200.0

		date := domain.Midnight(start)
		if !calendar.IsBusinessDay(date) {
			date = calendar.Next(date)
		}
		for i := 0; i < days; i++ {
			price *= 1.0 + (rng.Float64()-0.49)*0.03
			spread := price * rng.Float64() * 0.02
			volume := 1e6 + rng.Float64()*9e6

			b := &domain.Bar{
				Symbol: symbol,
				Date:   date,
				Open:   domain.Float(price - spread/2),
				High:   domain.Float(price + spread),
				Low:    domain.Float(price - spread),
				Close:  domain.Float(price),
				Volume: domain.Float(volume),
			}
			if i > 0 && i%12 == 0 {
				b.Close = nil
			}
			if i > 0 && i%9 == 0 {
				b.Volume = nil
			}
			bars = append(bars, b)
			date = calendar.Next(date)
			if i%15 == 14 {
				date = calendar.Next(date)
			}
		}
	}
	return bars
}

// LoadFixtures generates synthetic bars and inserts them into the store.
func LoadFixtures(ctx context.Context, store storage.BarStore, symbols []string, start time.Time, days int) error {
	return store.InsertBulk(ctx, GenerateBars(symbols, start, days))
}

func symbolSeed(symbol string) int64 {
	h := fnv.New64a()
	h.Write([]byte(symbol))
	return int64(h.Sum64())
}
