package marketdata

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"equity-window-lab/internal/domain"
)

// LoadCSVDir loads every *.csv file in dir as one symbol's daily series.
// The symbol is the uppercased file name without extension. Expected
// header: date,open,high,low,close,volume. Empty cells become nulls.
func LoadCSVDir(dir string) ([]*domain.Bar, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read csv dir: %w", err)
	}

	var bars []*domain.Bar
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(strings.ToLower(entry.Name()), ".csv") {
			continue
		}
		symbol := strings.ToUpper(strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name())))

		got, err := LoadCSVFile(filepath.Join(dir, entry.Name()), symbol)
		if err != nil {
			return nil, err
		}
		bars = append(bars, got...)
	}
	return bars, nil
}

// LoadCSVFile loads one symbol's daily series from a CSV file.
func LoadCSVFile(path, symbol string) ([]*domain.Bar, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	bars, err := readCSV(f, symbol)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return bars, nil
}

// readCSV parses bar rows from r. The column order is fixed by the
// header row, which must name at least a date column.
func readCSV(r io.Reader, symbol string) ([]*domain.Bar, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	idx := make(map[string]int, len(header))
	for i, name := range header {
		idx[strings.ToLower(strings.TrimSpace(name))] = i
	}
	dateCol, ok := idx["date"]
	if !ok {
		return nil, fmt.Errorf("header has no date column")
	}

	var bars []*domain.Bar
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		line++

		date, err := time.Parse("2006-01-02", strings.TrimSpace(record[dateCol]))
		if err != nil {
			return nil, fmt.Errorf("line %d: parse date: %w", line, err)
		}
		bar := &domain.Bar{Symbol: symbol, Date: domain.Midnight(date.UTC())}

		set := func(name string, dst **float64) error {
			col, ok := idx[name]
			if !ok || col >= len(record) {
				return nil
			}
			v, err := parseOptionalFloat(strings.TrimSpace(record[col]))
			if err != nil {
				return fmt.Errorf("line %d: parse %s: %w", line, name, err)
			}
			*dst = v
			return nil
		}
		if err := set(domain.ColumnOpen, &bar.Open); err != nil {
			return nil, err
		}
		if err := set(domain.ColumnHigh, &bar.High); err != nil {
			return nil, err
		}
		if err := set(domain.ColumnLow, &bar.Low); err != nil {
			return nil, err
		}
		if err := set(domain.ColumnClose, &bar.Close); err != nil {
			return nil, err
		}
		if err := set(domain.ColumnVolume, &bar.Volume); err != nil {
			return nil, err
		}

		bars = append(bars, bar)
	}
	return bars, nil
}
