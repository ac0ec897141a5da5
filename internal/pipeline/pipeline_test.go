package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"equity-window-lab/internal/domain"
	"equity-window-lab/internal/observability"
)

func defaultOptions() Options {
	return Options{Config: domain.DefaultPrepConfig(), Workers: 2}
}

func TestRun_EndToEnd(t *testing.T) {
	bars := GenerateBars([]string{"AAPL", "MSFT"}, domain.Day(2023, 1, 2), 120)
	p := New(defaultOptions())

	res, err := p.Run(context.Background(), bars)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(res.Windows) == 0 {
		t.Fatal("Expected windows, got none")
	}
	if len(res.Stats) != 2 {
		t.Fatalf("Expected stats for 2 symbols, got %d", len(res.Stats))
	}
	if res.RowsIn != len(bars) {
		t.Errorf("RowsIn = %d, want %d", res.RowsIn, len(bars))
	}
	if res.Interpolated == 0 {
		t.Error("Expected interpolated rows from the null closes in the fixtures")
	}

	for _, w := range res.Windows {
		if len(w.Rows) != domain.DefaultWindowSize {
			t.Fatalf("Window has %d rows, want %d", len(w.Rows), domain.DefaultWindowSize)
		}
		for i, r := range w.Rows {
			if r.TimeIdx != i {
				t.Fatalf("Row %d has time_idx %d", i, r.TimeIdx)
			}
		}
		if w.Target != 0 && w.Target != 1 {
			t.Fatalf("Window target = %d, want 0 or 1", w.Target)
		}
		last := w.Rows[len(w.Rows)-1]
		if !last.Date.Equal(w.PredictionDate) {
			t.Fatal("Prediction date is not the last row's date")
		}
	}

	// Deterministic output order: (symbol, prediction_date) ASC
	for i := 1; i < len(res.Windows); i++ {
		a, b := res.Windows[i-1], res.Windows[i]
		if a.Symbol > b.Symbol {
			t.Fatal("Windows not sorted by symbol")
		}
		if a.Symbol == b.Symbol && !a.PredictionDate.Before(b.PredictionDate) {
			t.Fatal("Windows not sorted by prediction date within symbol")
		}
	}
}

func TestRun_RecordsMetrics(t *testing.T) {
	// Unique namespace: promauto registers into the default registry,
	// so a reused namespace would panic on duplicate registration.
	m := observability.NewMetrics("pipeline_metrics_test")
	opts := defaultOptions()
	opts.Metrics = m

	bars := GenerateBars([]string{"AAPL", "MSFT"}, domain.Day(2023, 1, 2), 120)
	res, err := New(opts).Run(context.Background(), bars)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if got := testutil.ToFloat64(m.BarsLoaded); got != float64(res.RowsIn) {
		t.Errorf("BarsLoaded = %v, want %d", got, res.RowsIn)
	}
	if got := testutil.ToFloat64(m.WindowsEmitted); got != float64(len(res.Windows)) {
		t.Errorf("WindowsEmitted = %v, want %d", got, len(res.Windows))
	}
	if got := testutil.ToFloat64(m.TargetsLabeled); got == 0 {
		t.Error("TargetsLabeled was never incremented")
	}

	// One histogram series per stage
	if got := testutil.CollectAndCount(m.StageDuration); got != 4 {
		t.Errorf("StageDuration series = %d, want 4 (gapfill, features, labeling, windowing)", got)
	}
	if got := testutil.CollectAndCount(m.PipelineDuration); got != 1 {
		t.Errorf("PipelineDuration series = %d, want 1", got)
	}
}

func TestRun_Deterministic(t *testing.T) {
	bars := GenerateBars([]string{"AAPL", "MSFT", "NVDA"}, domain.Day(2023, 1, 2), 90)

	first, err := New(defaultOptions()).Run(context.Background(), bars)
	if err != nil {
		t.Fatalf("First run failed: %v", err)
	}
	second, err := New(defaultOptions()).Run(context.Background(), bars)
	if err != nil {
		t.Fatalf("Second run failed: %v", err)
	}

	if len(first.Windows) != len(second.Windows) {
		t.Fatalf("Window counts differ: %d vs %d", len(first.Windows), len(second.Windows))
	}
	for i := range first.Windows {
		a, b := first.Windows[i], second.Windows[i]
		if a.Symbol != b.Symbol || !a.PredictionDate.Equal(b.PredictionDate) || a.Target != b.Target {
			t.Fatalf("Window %d differs between runs", i)
		}
	}
}

func TestRun_SymbolFailureIsolation(t *testing.T) {
	bars := GenerateBars([]string{"AAPL"}, domain.Day(2023, 1, 2), 120)
	// A symbol with nothing but nulls cannot be repaired and is dropped.
	for i := 0; i < 10; i++ {
		d := domain.Day(2023, 1, 2).AddDate(0, 0, i)
		bars = append(bars, &domain.Bar{Symbol: "JUNK", Date: d})
	}

	res, err := New(defaultOptions()).Run(context.Background(), bars)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(res.Stats) != 1 || res.Stats[0].Symbol != "AAPL" {
		t.Fatalf("Expected only AAPL to survive, got %+v", res.Stats)
	}
	if len(res.Dropped) != 1 || !strings.HasPrefix(res.Dropped[0], "JUNK") {
		t.Errorf("Expected JUNK in dropped list, got %v", res.Dropped)
	}
	if len(res.Windows) == 0 {
		t.Error("Expected AAPL windows despite the dropped symbol")
	}
}

func TestRun_ExhaustionAllDropped(t *testing.T) {
	var bars []*domain.Bar
	for i := 0; i < 10; i++ {
		d := domain.Day(2023, 1, 2).AddDate(0, 0, i)
		bars = append(bars, &domain.Bar{Symbol: "JUNK", Date: d, Volume: domain.Float(1000)})
	}
	// Close exists somewhere so the schema pre-check passes, but the
	// only close-bearing symbol is unrepairable too.
	bars = append(bars, &domain.Bar{Symbol: "LONE", Date: domain.Day(2023, 1, 2), Close: domain.Float(10)})

	_, err := New(defaultOptions()).Run(context.Background(), bars)
	if !errors.Is(err, ErrExhausted) {
		t.Fatalf("Expected ErrExhausted, got %v", err)
	}
}

func TestRun_ExhaustionNoWindows(t *testing.T) {
	// 20 rows per symbol cannot fill a 60-row window.
	bars := GenerateBars([]string{"AAPL", "MSFT"}, domain.Day(2023, 1, 2), 20)

	_, err := New(defaultOptions()).Run(context.Background(), bars)
	if !errors.Is(err, ErrExhausted) {
		t.Fatalf("Expected ErrExhausted, got %v", err)
	}
}

func TestRun_MissingCloseColumn(t *testing.T) {
	bars := []*domain.Bar{
		{Symbol: "AAPL", Date: domain.Day(2023, 1, 3), Volume: domain.Float(1000)},
		{Symbol: "AAPL", Date: domain.Day(2023, 1, 4), Volume: domain.Float(2000)},
	}

	_, err := New(defaultOptions()).Run(context.Background(), bars)
	if !domain.IsMissingColumn(err) {
		t.Fatalf("Expected MissingColumnError, got %v", err)
	}
}

func TestRun_EmptyInput(t *testing.T) {
	_, err := New(defaultOptions()).Run(context.Background(), nil)
	if !errors.Is(err, ErrExhausted) {
		t.Fatalf("Expected ErrExhausted for empty input, got %v", err)
	}
}

func TestRun_InvalidConfig(t *testing.T) {
	opts := defaultOptions()
	opts.Config.WindowSize = 0

	_, err := New(opts).Run(context.Background(), GenerateBars([]string{"AAPL"}, domain.Day(2023, 1, 2), 30))
	if err == nil {
		t.Fatal("Expected config validation error")
	}
}

func TestRun_SkippedFeaturesReported(t *testing.T) {
	bars := GenerateBars([]string{"AAPL", "NOVOL"}, domain.Day(2023, 1, 2), 120)
	for _, b := range bars {
		if b.Symbol == "NOVOL" {
			b.Volume = nil
		}
	}

	res, err := New(defaultOptions()).Run(context.Background(), bars)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	want := domain.AvgVolumeColumn(domain.DefaultVolumeWindow)
	found := false
	for _, s := range res.SkippedFeatures {
		if s == want {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected %q in skipped features, got %v", want, res.SkippedFeatures)
	}

	// The volume-less symbol still windows on its price columns.
	hasNovol := false
	for _, s := range res.Stats {
		if s.Symbol == "NOVOL" && s.Windows > 0 {
			hasNovol = true
		}
	}
	if !hasNovol {
		t.Error("Expected NOVOL to yield windows without its volume column")
	}
}

func TestRun_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	bars := GenerateBars([]string{"AAPL"}, domain.Day(2023, 1, 2), 120)
	_, err := New(defaultOptions()).Run(ctx, bars)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got %v", err)
	}
}
