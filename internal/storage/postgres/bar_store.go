// Package postgres provides PostgreSQL-backed store implementations.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"equity-window-lab/internal/domain"
	"equity-window-lab/internal/storage"
)

// BarStore implements storage.BarStore using PostgreSQL.
type BarStore struct {
	pool *Pool
}

// NewBarStore creates a new BarStore.
func NewBarStore(pool *Pool) *BarStore {
	return &BarStore{pool: pool}
}

// Compile-time interface check.
var _ storage.BarStore = (*BarStore)(nil)

const insertBarQuery = `
	INSERT INTO daily_bars (
		symbol, date, open, high, low, close, volume, interpolated
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
`

const selectBarColumns = `
	SELECT symbol, date, open, high, low, close, volume, interpolated
	FROM daily_bars
`

// Insert adds a new bar. Returns ErrDuplicateKey if (symbol, date) exists.
func (s *BarStore) Insert(ctx context.Context, b *domain.Bar) error {
	if b == nil || b.Symbol == "" {
		return storage.ErrInvalidInput
	}

	_, err := s.pool.Exec(ctx, insertBarQuery,
		b.Symbol,
		b.Date.UTC(),
		b.Open,
		b.High,
		b.Low,
		b.Close,
		b.Volume,
		b.Interpolated,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert bar: %w", err)
	}
	return nil
}

// InsertBulk adds multiple bars atomically. Fails entire batch on any duplicate.
func (s *BarStore) InsertBulk(ctx context.Context, bars []*domain.Bar) error {
	if len(bars) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, b := range bars {
		if b == nil || b.Symbol == "" {
			return storage.ErrInvalidInput
		}
		_, err := tx.Exec(ctx, insertBarQuery,
			b.Symbol,
			b.Date.UTC(),
			b.Open,
			b.High,
			b.Low,
			b.Close,
			b.Volume,
			b.Interpolated,
		)
		if err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert bar in bulk: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// GetBySymbol retrieves all bars for a symbol, ordered by date ASC.
func (s *BarStore) GetBySymbol(ctx context.Context, symbol string) ([]*domain.Bar, error) {
	query := selectBarColumns + `
		WHERE symbol = $1
		ORDER BY date ASC
	`

	rows, err := s.pool.Query(ctx, query, symbol)
	if err != nil {
		return nil, fmt.Errorf("get bars by symbol: %w", err)
	}
	defer rows.Close()

	return scanBars(rows)
}

// GetByDateRange retrieves bars for a symbol within [start, end] (inclusive).
func (s *BarStore) GetByDateRange(ctx context.Context, symbol string, start, end time.Time) ([]*domain.Bar, error) {
	query := selectBarColumns + `
		WHERE symbol = $1 AND date >= $2 AND date <= $3
		ORDER BY date ASC
	`

	rows, err := s.pool.Query(ctx, query, symbol, start.UTC(), end.UTC())
	if err != nil {
		return nil, fmt.Errorf("get bars by date range: %w", err)
	}
	defer rows.Close()

	return scanBars(rows)
}

// ListSymbols retrieves the distinct symbols present, sorted ASC.
func (s *BarStore) ListSymbols(ctx context.Context) ([]string, error) {
	query := `SELECT DISTINCT symbol FROM daily_bars ORDER BY symbol ASC`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list symbols: %w", err)
	}
	defer rows.Close()

	var symbols []string
	for rows.Next() {
		var symbol string
		if err := rows.Scan(&symbol); err != nil {
			return nil, fmt.Errorf("scan symbol row: %w", err)
		}
		symbols = append(symbols, symbol)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate symbol rows: %w", err)
	}
	return symbols, nil
}

// GetAll retrieves every bar, ordered by (symbol, date) ASC.
func (s *BarStore) GetAll(ctx context.Context) ([]*domain.Bar, error) {
	query := selectBarColumns + `
		ORDER BY symbol ASC, date ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("get all bars: %w", err)
	}
	defer rows.Close()

	return scanBars(rows)
}

// scanBars scans multiple rows into a slice of Bar.
func scanBars(rows pgx.Rows) ([]*domain.Bar, error) {
	var bars []*domain.Bar

	for rows.Next() {
		var b domain.Bar
		var date time.Time

		err := rows.Scan(
			&b.Symbol,
			&date,
			&b.Open,
			&b.High,
			&b.Low,
			&b.Close,
			&b.Volume,
			&b.Interpolated,
		)
		if err != nil {
			return nil, fmt.Errorf("scan bar row: %w", err)
		}

		b.Date = domain.Midnight(date)
		bars = append(bars, &b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bar rows: %w", err)
	}
	return bars, nil
}
