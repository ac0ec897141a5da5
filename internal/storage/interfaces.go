package storage

import (
	"context"
	"time"

	"equity-window-lab/internal/domain"
)

// BarStore provides access to daily_bars storage.
type BarStore interface {
	// Insert adds a new bar. Returns ErrDuplicateKey if (symbol, date) exists.
	Insert(ctx context.Context, b *domain.Bar) error

	// InsertBulk adds multiple bars atomically. Fails entire batch on any duplicate.
	InsertBulk(ctx context.Context, bars []*domain.Bar) error

	// GetBySymbol retrieves all bars for a symbol, ordered by date ASC.
	GetBySymbol(ctx context.Context, symbol string) ([]*domain.Bar, error)

	// GetByDateRange retrieves bars for a symbol within [start, end] (inclusive).
	GetByDateRange(ctx context.Context, symbol string, start, end time.Time) ([]*domain.Bar, error)

	// ListSymbols retrieves the distinct symbols present, sorted ASC.
	ListSymbols(ctx context.Context) ([]string, error)

	// GetAll retrieves every bar, ordered by (symbol, date) ASC.
	GetAll(ctx context.Context) ([]*domain.Bar, error)
}

// WindowStore provides access to training_windows storage.
type WindowStore interface {
	// InsertBulk adds multiple windows. Fails entire batch on duplicate
	// (symbol, prediction_date).
	InsertBulk(ctx context.Context, windows []*domain.Window) error

	// GetBySymbol retrieves all windows for a symbol, ordered by
	// prediction date ASC.
	GetBySymbol(ctx context.Context, symbol string) ([]*domain.Window, error)

	// CountBySymbol returns the number of stored windows per symbol.
	CountBySymbol(ctx context.Context) (map[string]int, error)
}
