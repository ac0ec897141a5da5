// Package marketdata loads daily OHLCV bars from HTTP APIs, websocket
// quote streams, and local CSV files.
package marketdata

import (
	"fmt"
	"strconv"
	"time"

	"equity-window-lab/internal/domain"
)

// timeSeriesResponse is the daily-history API payload.
type timeSeriesResponse struct {
	Meta    timeSeriesMeta   `json:"meta"`
	Values  []timeSeriesBar  `json:"values"`
	Status  string           `json:"status"`
	Code    int              `json:"code,omitempty"`
	Message string           `json:"message,omitempty"`
}

type timeSeriesMeta struct {
	Symbol   string `json:"symbol"`
	Interval string `json:"interval"`
}

// timeSeriesBar carries one day's values as strings; empty strings mean
// the source dropped the value.
type timeSeriesBar struct {
	Datetime string `json:"datetime"`
	Open     string `json:"open"`
	High     string `json:"high"`
	Low      string `json:"low"`
	Close    string `json:"close"`
	Volume   string `json:"volume"`
}

// toBar converts one wire row into a domain bar.
func (b timeSeriesBar) toBar(symbol string) (*domain.Bar, error) {
	date, err := time.Parse("2006-01-02", b.Datetime)
	if err != nil {
		return nil, fmt.Errorf("parse datetime %q: %w", b.Datetime, err)
	}

	bar := &domain.Bar{Symbol: symbol, Date: domain.Midnight(date.UTC())}
	if bar.Open, err = parseOptionalFloat(b.Open); err != nil {
		return nil, fmt.Errorf("parse open: %w", err)
	}
	if bar.High, err = parseOptionalFloat(b.High); err != nil {
		return nil, fmt.Errorf("parse high: %w", err)
	}
	if bar.Low, err = parseOptionalFloat(b.Low); err != nil {
		return nil, fmt.Errorf("parse low: %w", err)
	}
	if bar.Close, err = parseOptionalFloat(b.Close); err != nil {
		return nil, fmt.Errorf("parse close: %w", err)
	}
	if bar.Volume, err = parseOptionalFloat(b.Volume); err != nil {
		return nil, fmt.Errorf("parse volume: %w", err)
	}
	return bar, nil
}

func parseOptionalFloat(s string) (*float64, error) {
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// Quote is one tick from the streaming API.
type Quote struct {
	Symbol    string  `json:"symbol"`
	Price     float64 `json:"price"`
	Volume    float64 `json:"day_volume"`
	Timestamp int64   `json:"timestamp"`
}
