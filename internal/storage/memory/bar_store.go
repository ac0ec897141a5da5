// Package memory provides in-memory store implementations for tests and
// single-process runs.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"equity-window-lab/internal/domain"
	"equity-window-lab/internal/storage"
)

// BarStore is an in-memory implementation of storage.BarStore.
type BarStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Bar // keyed by (symbol, date)
}

// NewBarStore creates a new in-memory bar store.
func NewBarStore() *BarStore {
	return &BarStore{
		data: make(map[string]*domain.Bar),
	}
}

// barKey generates a unique key for a bar.
func barKey(symbol string, date time.Time) string {
	return fmt.Sprintf("%s|%s", symbol, date.UTC().Format("2006-01-02"))
}

// Insert adds a new bar. Returns ErrDuplicateKey if (symbol, date) exists.
func (s *BarStore) Insert(_ context.Context, b *domain.Bar) error {
	if b == nil || b.Symbol == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := barKey(b.Symbol, b.Date)
	if _, exists := s.data[key]; exists {
		return storage.ErrDuplicateKey
	}
	s.data[key] = b.Clone()
	return nil
}

// InsertBulk adds multiple bars atomically. Fails entire batch on any duplicate.
func (s *BarStore) InsertBulk(_ context.Context, bars []*domain.Bar) error {
	if len(bars) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Track keys in this batch to detect intra-batch duplicates
	batchKeys := make(map[string]struct{}, len(bars))
	for _, b := range bars {
		if b == nil || b.Symbol == "" {
			return storage.ErrInvalidInput
		}
		key := barKey(b.Symbol, b.Date)
		if _, exists := s.data[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	for _, b := range bars {
		s.data[barKey(b.Symbol, b.Date)] = b.Clone()
	}
	return nil
}

// GetBySymbol retrieves all bars for a symbol, ordered by date ASC.
func (s *BarStore) GetBySymbol(_ context.Context, symbol string) ([]*domain.Bar, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Bar
	for _, b := range s.data {
		if b.Symbol == symbol {
			result = append(result, b.Clone())
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Date.Before(result[j].Date)
	})
	return result, nil
}

// GetByDateRange retrieves bars for a symbol within [start, end] (inclusive).
func (s *BarStore) GetByDateRange(_ context.Context, symbol string, start, end time.Time) ([]*domain.Bar, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Bar
	for _, b := range s.data {
		if b.Symbol == symbol && !b.Date.Before(start) && !b.Date.After(end) {
			result = append(result, b.Clone())
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Date.Before(result[j].Date)
	})
	return result, nil
}

// ListSymbols retrieves the distinct symbols present, sorted ASC.
func (s *BarStore) ListSymbols(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]struct{})
	var symbols []string
	for _, b := range s.data {
		if _, ok := seen[b.Symbol]; !ok {
			seen[b.Symbol] = struct{}{}
			symbols = append(symbols, b.Symbol)
		}
	}
	sort.Strings(symbols)
	return symbols, nil
}

// GetAll retrieves every bar, ordered by (symbol, date) ASC.
func (s *BarStore) GetAll(_ context.Context) ([]*domain.Bar, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.Bar, 0, len(s.data))
	for _, b := range s.data {
		result = append(result, b.Clone())
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Symbol != result[j].Symbol {
			return result[i].Symbol < result[j].Symbol
		}
		return result[i].Date.Before(result[j].Date)
	})
	return result, nil
}

var _ storage.BarStore = (*BarStore)(nil)
