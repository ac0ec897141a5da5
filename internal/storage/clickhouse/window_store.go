package clickhouse

import (
	"context"
	"fmt"
	"sort"
	"time"

	"equity-window-lab/internal/domain"
	"equity-window-lab/internal/storage"
)

// WindowStore implements storage.WindowStore using ClickHouse. Each
// window is flattened to one row per time step; the pair (symbol,
// prediction_date) identifies the window and time_idx orders its rows.
type WindowStore struct {
	conn *Conn
}

// NewWindowStore creates a new WindowStore.
func NewWindowStore(conn *Conn) *WindowStore {
	return &WindowStore{conn: conn}
}

// Compile-time interface check.
var _ storage.WindowStore = (*WindowStore)(nil)

// InsertBulk adds multiple windows. Fails entire batch on duplicate
// (symbol, prediction_date). MergeTree does not enforce uniqueness, so
// duplicates are detected with an explicit existence check first.
func (s *WindowStore) InsertBulk(ctx context.Context, windows []*domain.Window) error {
	if len(windows) == 0 {
		return nil
	}

	type key struct {
		symbol         string
		predictionDate time.Time
	}
	seen := make(map[key]struct{}, len(windows))
	for _, w := range windows {
		if w == nil || w.Symbol == "" || len(w.Rows) == 0 {
			return storage.ErrInvalidInput
		}
		k := key{w.Symbol, w.PredictionDate}
		if _, exists := seen[k]; exists {
			return storage.ErrDuplicateKey
		}
		seen[k] = struct{}{}
	}

	for _, w := range windows {
		exists, err := s.exists(ctx, w.Symbol, w.PredictionDate)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if exists {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO training_windows (
			symbol, prediction_date, target, time_idx, date,
			open, high, low, close, volume,
			daily_return, ma_lengths, ma_values, avg_volume, interpolated
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, w := range windows {
		for _, r := range w.Rows {
			lengths, values := maArrays(&r.FeatureRow)
			err = batch.Append(
				w.Symbol, w.PredictionDate, uint8(w.Target), uint16(r.TimeIdx), r.Date,
				r.Open, r.High, r.Low, derefOrZero(r.Close), r.Volume,
				r.DailyReturn, lengths, values, r.AvgVolume, boolToUint8(r.Interpolated),
			)
			if err != nil {
				return fmt.Errorf("append to batch: %w", err)
			}
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetBySymbol retrieves all windows for a symbol, ordered by prediction
// date ASC.
func (s *WindowStore) GetBySymbol(ctx context.Context, symbol string) ([]*domain.Window, error) {
	query := `
		SELECT
			symbol, prediction_date, target, time_idx, date,
			open, high, low, close, volume,
			daily_return, ma_lengths, ma_values, avg_volume, interpolated
		FROM training_windows
		WHERE symbol = ?
		ORDER BY prediction_date ASC, time_idx ASC
	`

	rows, err := s.conn.Query(ctx, query, symbol)
	if err != nil {
		return nil, fmt.Errorf("query windows by symbol: %w", err)
	}
	defer rows.Close()

	var windows []*domain.Window
	var current *domain.Window
	for rows.Next() {
		var (
			rowSymbol            string
			predictionDate, date time.Time
			target, interpolated uint8
			timeIdx              uint16
			closeVal             float64
			lengths              []uint16
			values               []float64
		)
		row := domain.WindowRow{}

		err := rows.Scan(
			&rowSymbol, &predictionDate, &target, &timeIdx, &date,
			&row.Open, &row.High, &row.Low, &closeVal, &row.Volume,
			&row.DailyReturn, &lengths, &values, &row.AvgVolume, &interpolated,
		)
		if err != nil {
			return nil, fmt.Errorf("scan window row: %w", err)
		}

		row.Symbol = rowSymbol
		row.Date = domain.Midnight(date)
		row.Close = domain.Float(closeVal)
		row.Interpolated = interpolated != 0
		row.TimeIdx = int(timeIdx)
		if len(lengths) > 0 {
			row.MovingAvg = make(map[int]*float64, len(lengths))
			for i, l := range lengths {
				if i < len(values) {
					row.MovingAvg[int(l)] = domain.Float(values[i])
				}
			}
		}

		predictionDate = domain.Midnight(predictionDate)
		if current == nil || !current.PredictionDate.Equal(predictionDate) {
			current = &domain.Window{
				Symbol:         rowSymbol,
				PredictionDate: predictionDate,
				Target:         int(target),
			}
			windows = append(windows, current)
		}
		current.Rows = append(current.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate window rows: %w", err)
	}
	return windows, nil
}

// CountBySymbol returns the number of stored windows per symbol.
func (s *WindowStore) CountBySymbol(ctx context.Context) (map[string]int, error) {
	query := `
		SELECT symbol, uniqExact(prediction_date)
		FROM training_windows
		GROUP BY symbol
	`

	rows, err := s.conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("count windows by symbol: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var symbol string
		var count uint64
		if err := rows.Scan(&symbol, &count); err != nil {
			return nil, fmt.Errorf("scan count row: %w", err)
		}
		counts[symbol] = int(count)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate count rows: %w", err)
	}
	return counts, nil
}

// exists checks if a window with the given key exists.
func (s *WindowStore) exists(ctx context.Context, symbol string, predictionDate time.Time) (bool, error) {
	query := `
		SELECT count(*) FROM training_windows
		WHERE symbol = ? AND prediction_date = ?
	`

	var count uint64
	err := s.conn.QueryRow(ctx, query, symbol, predictionDate).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// maArrays flattens the moving-average map into parallel arrays sorted
// by length, skipping entries that were never derived.
func maArrays(r *domain.FeatureRow) ([]uint16, []float64) {
	var lengths []int
	for l, v := range r.MovingAvg {
		if v != nil {
			lengths = append(lengths, l)
		}
	}
	sort.Ints(lengths)

	outLengths := make([]uint16, len(lengths))
	outValues := make([]float64, len(lengths))
	for i, l := range lengths {
		outLengths[i] = uint16(l)
		outValues[i] = *r.MovingAvg[l]
	}
	return outLengths, outValues
}

func derefOrZero(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

func boolToUint8(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}
