package labeling

import (
	"testing"
	"time"

	"equity-window-lab/internal/domain"
)

func row(symbol string, y int, m time.Month, d int, close float64) *domain.FeatureRow {
	return &domain.FeatureRow{Bar: domain.Bar{
		Symbol: symbol,
		Date:   domain.Day(y, m, d),
		Close:  domain.Float(close),
	}}
}

// rowsOverDays builds one row per consecutive calendar day.
func rowsOverDays(symbol string, start time.Time, closes []float64) []*domain.FeatureRow {
	out := make([]*domain.FeatureRow, len(closes))
	for i, c := range closes {
		out[i] = &domain.FeatureRow{Bar: domain.Bar{
			Symbol: symbol,
			Date:   start.AddDate(0, 0, i),
			Close:  domain.Float(c),
		}}
	}
	return out
}

func TestLabel_RisingSeriesAllPositive(t *testing.T) {
	// Strictly increasing closes: every row with a future row at the
	// horizon gets target 1.
	start := domain.Day(2023, time.March, 1)
	rows := rowsOverDays("X", start, []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10})

	labeled, err := Label(rows, 5)
	if err != nil {
		t.Fatalf("Label: %v", err)
	}
	for i, r := range labeled {
		if i < 5 {
			if r.Target == nil || *r.Target != 1 {
				t.Errorf("row %d: expected target 1, got %v", i, r.Target)
			}
		} else if r.Target != nil {
			t.Errorf("row %d: expected null target past the horizon, got %d", i, *r.Target)
		}
	}
}

func TestLabel_FallingClose(t *testing.T) {
	start := domain.Day(2023, time.March, 1)
	rows := rowsOverDays("X", start, []float64{10, 9, 8, 7, 6, 5})

	labeled, err := Label(rows, 3)
	if err != nil {
		t.Fatalf("Label: %v", err)
	}
	if labeled[0].Target == nil || *labeled[0].Target != 0 {
		t.Errorf("expected target 0 for falling close, got %v", labeled[0].Target)
	}
}

func TestLabel_HolidayInsideHorizon(t *testing.T) {
	// The horizon is calendar days: with prediction_days=2, a row dated
	// Friday matches the following Monday (first date >= Sunday), even
	// though no rows exist on the weekend.
	rows := []*domain.FeatureRow{
		row("X", 2023, time.March, 3, 10),  // Friday
		row("X", 2023, time.March, 6, 12),  // Monday
		row("X", 2023, time.March, 7, 8),   // Tuesday
	}

	labeled, err := Label(rows, 2)
	if err != nil {
		t.Fatalf("Label: %v", err)
	}
	if labeled[0].Target == nil || *labeled[0].Target != 1 {
		t.Errorf("Friday row should match Monday close 12 > 10, got %v", labeled[0].Target)
	}
}

func TestLabel_NeverCrossesSymbols(t *testing.T) {
	// Y has abundant future data; X's last row must still be unlabeled.
	rows := []*domain.FeatureRow{
		row("X", 2023, time.March, 1, 10),
		row("Y", 2023, time.March, 1, 1),
		row("Y", 2023, time.March, 10, 99),
		row("Y", 2023, time.March, 20, 99),
	}

	labeled, err := Label(rows, 5)
	if err != nil {
		t.Fatalf("Label: %v", err)
	}
	for _, r := range labeled {
		if r.Symbol == "X" && r.Target != nil {
			t.Errorf("X labeled against another symbol's future: %d", *r.Target)
		}
	}
}

func TestLabel_StableUnderInputOrder(t *testing.T) {
	start := domain.Day(2023, time.March, 1)
	rows := rowsOverDays("X", start, []float64{5, 4, 6, 7, 3, 8, 9, 2, 10, 11})

	shuffled := []*domain.FeatureRow{
		rows[7], rows[2], rows[9], rows[0], rows[4],
		rows[1], rows[8], rows[3], rows[6], rows[5],
	}

	a, err := Label(rows, 4)
	if err != nil {
		t.Fatalf("Label: %v", err)
	}
	b, err := Label(shuffled, 4)
	if err != nil {
		t.Fatalf("Label shuffled: %v", err)
	}
	for i := range a {
		if !a[i].Date.Equal(b[i].Date) {
			t.Fatalf("row %d: order differs", i)
		}
		av, bv := a[i].Target, b[i].Target
		if (av == nil) != (bv == nil) || (av != nil && *av != *bv) {
			t.Errorf("row %d: target differs across input orders", i)
		}
	}
}

func TestLabel_LeakageFreedom(t *testing.T) {
	// Changing a close at or past the cutoff may change the target;
	// changing one before the cutoff never does.
	start := domain.Day(2023, time.March, 1)
	closes := []float64{10, 11, 12, 13, 14, 15, 16, 17}

	base, err := Label(rowsOverDays("X", start, closes), 5)
	if err != nil {
		t.Fatalf("Label: %v", err)
	}

	// Perturb a value strictly before row 0's cutoff (day 3 < day 5).
	perturbed := append([]float64(nil), closes...)
	perturbed[3] = 0.5
	mod, err := Label(rowsOverDays("X", start, perturbed), 5)
	if err != nil {
		t.Fatalf("Label: %v", err)
	}
	if *base[0].Target != *mod[0].Target {
		t.Error("target of row 0 changed due to a pre-cutoff close")
	}

	// Perturb the row at the cutoff: row 0's target must flip.
	perturbed = append([]float64(nil), closes...)
	perturbed[5] = 1
	mod, err = Label(rowsOverDays("X", start, perturbed), 5)
	if err != nil {
		t.Fatalf("Label: %v", err)
	}
	if *base[0].Target == *mod[0].Target {
		t.Error("target of row 0 should depend on the cutoff row's close")
	}
}

func TestLabel_MissingCloseColumn(t *testing.T) {
	rows := []*domain.FeatureRow{
		{Bar: domain.Bar{Symbol: "X", Date: domain.Day(2023, time.March, 1)}},
		{Bar: domain.Bar{Symbol: "X", Date: domain.Day(2023, time.March, 2)}},
	}
	_, err := Label(rows, 5)
	if !domain.IsMissingColumn(err) {
		t.Fatalf("expected MissingColumnError, got %v", err)
	}
}

func TestLabel_InputNotMutated(t *testing.T) {
	rows := rowsOverDays("X", domain.Day(2023, time.March, 1), []float64{1, 2, 3, 4, 5, 6, 7})
	if _, err := Label(rows, 3); err != nil {
		t.Fatalf("Label: %v", err)
	}
	for i, r := range rows {
		if r.Target != nil {
			t.Errorf("row %d: input mutated", i)
		}
	}
}

func TestLabel_EmptyInput(t *testing.T) {
	labeled, err := Label(nil, 5)
	if err != nil {
		t.Fatalf("Label: %v", err)
	}
	if len(labeled) != 0 {
		t.Errorf("expected empty output, got %d", len(labeled))
	}
}
