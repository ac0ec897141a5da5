package features

import (
	"math"
	"testing"
	"time"

	"equity-window-lab/internal/domain"
)

func bars(symbol string, closes []float64, volumes []float64) []*domain.Bar {
	out := make([]*domain.Bar, len(closes))
	d := domain.Day(2023, time.March, 1)
	for i := range closes {
		b := &domain.Bar{Symbol: symbol, Date: d}
		b.Close = domain.Float(closes[i])
		if volumes != nil {
			b.Volume = domain.Float(volumes[i])
		}
		d = d.AddDate(0, 0, 1)
		out[i] = b
	}
	return out
}

func cfg() domain.PrepConfig {
	c := domain.DefaultPrepConfig()
	c.MovingAverageWindows = []int{3}
	c.VolumeWindow = 2
	return c
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestDerive_DailyReturn(t *testing.T) {
	res := Derive(bars("X", []float64{10, 11, 9.9}, nil), cfg())

	if res.Rows[0].DailyReturn != nil {
		t.Error("first row should have null daily return")
	}
	if r := res.Rows[1].DailyReturn; r == nil || !almostEqual(*r, 0.1) {
		t.Errorf("expected return 0.1, got %v", r)
	}
	if r := res.Rows[2].DailyReturn; r == nil || !almostEqual(*r, -0.1) {
		t.Errorf("expected return -0.1, got %v", r)
	}
}

func TestDerive_ExpandingMovingAverage(t *testing.T) {
	res := Derive(bars("X", []float64{10, 20, 30, 40}, nil), cfg())

	// Window length 3 with an expanding head: 10, 15, 20, 30.
	want := []float64{10, 15, 20, 30}
	for i, w := range want {
		got := res.Rows[i].MovingAvg[3]
		if got == nil || !almostEqual(*got, w) {
			t.Errorf("row %d: expected MA_3 %v, got %v", i, w, got)
		}
	}
}

func TestDerive_VolumeTrend(t *testing.T) {
	res := Derive(bars("X", []float64{1, 1, 1}, []float64{100, 200, 400}), cfg())

	want := []float64{100, 150, 300}
	for i, w := range want {
		got := res.Rows[i].AvgVolume
		if got == nil || !almostEqual(*got, w) {
			t.Errorf("row %d: expected avg volume %v, got %v", i, w, got)
		}
	}
}

func TestDerive_SymbolsIndependent(t *testing.T) {
	input := append(bars("A", []float64{10, 20}, nil), bars("B", []float64{1000, 2000}, nil)...)
	res := Derive(input, cfg())

	// B's first row must not see A's closes.
	for _, r := range res.Rows {
		if r.Symbol == "B" && r.DailyReturn != nil && !almostEqual(*r.DailyReturn, 1.0) {
			t.Errorf("B's return contaminated: %v", *r.DailyReturn)
		}
		if r.Symbol == "B" && r.MovingAvg[3] != nil && *r.MovingAvg[3] < 1000 {
			t.Errorf("B's moving average contaminated: %v", *r.MovingAvg[3])
		}
	}
}

func TestDerive_MissingVolumeSkipsOnlyVolumeTrend(t *testing.T) {
	res := Derive(bars("X", []float64{10, 11}, nil), cfg())

	if len(res.Skipped) != 1 || res.Skipped[0] != domain.AvgVolumeColumn(2) {
		t.Fatalf("expected only avg_volume_2 skipped, got %v", res.Skipped)
	}
	if res.Rows[1].DailyReturn == nil || res.Rows[1].MovingAvg[3] == nil {
		t.Error("close-derived columns should still be computed")
	}
	if res.Rows[0].AvgVolume != nil {
		t.Error("volume trend should not be computed")
	}
}

func TestDerive_MissingCloseSkipsCloseComputations(t *testing.T) {
	input := bars("X", []float64{10, 11}, []float64{100, 200})
	for _, b := range input {
		b.Close = nil
	}
	res := Derive(input, cfg())

	if len(res.Skipped) != 2 {
		t.Fatalf("expected daily_return and MA_3 skipped, got %v", res.Skipped)
	}
	if res.Rows[0].AvgVolume == nil {
		t.Error("volume trend should still be computed")
	}
	if res.Rows[1].DailyReturn != nil || res.Rows[1].MovingAvg != nil {
		t.Error("close-derived columns should be absent")
	}
}

func TestDerive_SortsBySymbolThenDate(t *testing.T) {
	input := bars("B", []float64{1, 2}, nil)
	input = append(input, bars("A", []float64{3, 4}, nil)...)
	// Shuffle dates within A.
	input[2], input[3] = input[3], input[2]

	res := Derive(input, cfg())
	if res.Rows[0].Symbol != "A" || res.Rows[2].Symbol != "B" {
		t.Fatal("rows not sorted by symbol")
	}
	if !res.Rows[0].Date.Before(res.Rows[1].Date) {
		t.Fatal("rows not sorted by date within symbol")
	}
}

func TestDerive_InputNotMutated(t *testing.T) {
	input := bars("X", []float64{10, 11}, []float64{1, 2})
	Derive(input, cfg())
	if *input[1].Close != 11 || input[0].Interpolated {
		t.Error("input bars mutated")
	}
}
