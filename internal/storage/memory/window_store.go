package memory

import (
	"context"
	"sort"
	"sync"

	"equity-window-lab/internal/domain"
	"equity-window-lab/internal/storage"
)

// WindowStore is an in-memory implementation of storage.WindowStore.
type WindowStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Window // keyed by (symbol, prediction_date)
}

// NewWindowStore creates a new in-memory window store.
func NewWindowStore() *WindowStore {
	return &WindowStore{
		data: make(map[string]*domain.Window),
	}
}

func windowKey(w *domain.Window) string {
	return barKey(w.Symbol, w.PredictionDate)
}

// InsertBulk adds multiple windows. Fails entire batch on duplicate
// (symbol, prediction_date).
func (s *WindowStore) InsertBulk(_ context.Context, windows []*domain.Window) error {
	if len(windows) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[string]struct{}, len(windows))
	for _, w := range windows {
		if w == nil || w.Symbol == "" || len(w.Rows) == 0 {
			return storage.ErrInvalidInput
		}
		key := windowKey(w)
		if _, exists := s.data[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	for _, w := range windows {
		s.data[windowKey(w)] = w.Clone()
	}
	return nil
}

// GetBySymbol retrieves all windows for a symbol, ordered by prediction
// date ASC.
func (s *WindowStore) GetBySymbol(_ context.Context, symbol string) ([]*domain.Window, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Window
	for _, w := range s.data {
		if w.Symbol == symbol {
			result = append(result, w.Clone())
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].PredictionDate.Before(result[j].PredictionDate)
	})
	return result, nil
}

// CountBySymbol returns the number of stored windows per symbol.
func (s *WindowStore) CountBySymbol(_ context.Context) (map[string]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[string]int)
	for _, w := range s.data {
		counts[w.Symbol]++
	}
	return counts, nil
}

var _ storage.WindowStore = (*WindowStore)(nil)
