package marketdata

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"equity-window-lab/internal/domain"
)

const sampleTimeSeries = `{
	"meta": {"symbol": "AAPL", "interval": "1day"},
	"values": [
		{"datetime": "2023-01-04", "open": "126.89", "high": "128.66", "low": "125.08", "close": "126.36", "volume": "89113600"},
		{"datetime": "2023-01-03", "open": "130.28", "high": "130.90", "low": "124.17", "close": "125.07", "volume": ""}
	],
	"status": "ok"
}`

func TestDailyHistory(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("symbol"); got != "AAPL" {
			t.Errorf("symbol = %q, want AAPL", got)
		}
		if got := r.URL.Query().Get("interval"); got != "1day" {
			t.Errorf("interval = %q, want 1day", got)
		}
		w.Write([]byte(sampleTimeSeries))
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, "test-key")
	bars, err := client.DailyHistory(context.Background(), "AAPL", domain.Day(2023, 1, 1), domain.Day(2023, 1, 31))
	if err != nil {
		t.Fatalf("DailyHistory failed: %v", err)
	}

	if len(bars) != 2 {
		t.Fatalf("Expected 2 bars, got %d", len(bars))
	}
	// Sorted date ASC regardless of wire order
	if !bars[0].Date.Equal(domain.Day(2023, 1, 3)) {
		t.Errorf("First bar date = %v, want 2023-01-03", bars[0].Date)
	}
	if bars[0].Close == nil || *bars[0].Close != 125.07 {
		t.Errorf("First bar close = %v, want 125.07", bars[0].Close)
	}
	// Empty volume cell becomes a null
	if bars[0].Volume != nil {
		t.Errorf("Expected nil volume for empty cell, got %v", *bars[0].Volume)
	}
	if bars[1].Volume == nil || *bars[1].Volume != 89113600 {
		t.Errorf("Second bar volume = %v, want 89113600", bars[1].Volume)
	}
}

func TestDailyHistory_RetriesOnServerError(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(sampleTimeSeries))
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, "",
		WithMaxRetries(3),
		WithRetryDelay(time.Millisecond),
		WithMaxDelay(5*time.Millisecond),
	)
	bars, err := client.DailyHistory(context.Background(), "AAPL", domain.Day(2023, 1, 1), domain.Day(2023, 1, 31))
	if err != nil {
		t.Fatalf("DailyHistory failed after retries: %v", err)
	}
	if len(bars) != 2 {
		t.Errorf("Expected 2 bars, got %d", len(bars))
	}
	if calls.Load() != 3 {
		t.Errorf("Expected 3 calls, got %d", calls.Load())
	}
}

func TestDailyHistory_MaxRetriesExceeded(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, "",
		WithMaxRetries(2),
		WithRetryDelay(time.Millisecond),
	)
	_, err := client.DailyHistory(context.Background(), "AAPL", domain.Day(2023, 1, 1), domain.Day(2023, 1, 31))
	if err == nil {
		t.Fatal("Expected error after exhausting retries")
	}
}

func TestDailyHistory_APIErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(`{"code": 404, "message": "symbol not found", "status": "error"}`))
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, "", WithRetryDelay(time.Millisecond))
	_, err := client.DailyHistory(context.Background(), "NOPE", domain.Day(2023, 1, 1), domain.Day(2023, 1, 31))
	if err == nil {
		t.Fatal("Expected API error")
	}
	if calls.Load() != 1 {
		t.Errorf("API error should not be retried, got %d calls", calls.Load())
	}
}

func TestDailyHistoryAll_SkipsAPIErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("symbol") == "NOPE" {
			w.Write([]byte(`{"code": 404, "message": "symbol not found", "status": "error"}`))
			return
		}
		w.Write([]byte(sampleTimeSeries))
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, "")
	bars, skipped, err := client.DailyHistoryAll(context.Background(),
		[]string{"AAPL", "NOPE"}, domain.Day(2023, 1, 1), domain.Day(2023, 1, 31))
	if err != nil {
		t.Fatalf("DailyHistoryAll failed: %v", err)
	}
	if len(bars) != 2 {
		t.Errorf("Expected 2 bars, got %d", len(bars))
	}
	if len(skipped) != 1 {
		t.Errorf("Expected 1 skipped symbol, got %v", skipped)
	}
}
