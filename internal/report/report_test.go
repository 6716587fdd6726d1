package report

import (
	"errors"
	"testing"

	"bucks/internal/core"
)

func ref(id int64) *int64 { return &id }

func TestWindowInRange(t *testing.T) {
	now := int64(1_000_000_000_000)
	tests := []struct {
		name   string
		window Window
		ts     int64
		want   bool
	}{
		{"inside day window", Day, now - 1000, true},
		{"exactly at lower bound", Day, now - int64(Day), true},
		{"exactly at now", Day, now, true},
		{"just before lower bound", Day, now - int64(Day) - 1, false},
		{"future timestamp", Day, now + 1, false},
		{"ever accepts ancient", Ever, 0, true},
		{"ever rejects future", Ever, now + 1, false},
		{"week boundary", Week, now - int64(Week), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.window.InRange(tt.ts, now); got != tt.want {
				t.Errorf("InRange(%d, %d) = %v, want %v", tt.ts, now, got, tt.want)
			}
		})
	}
}

func TestParseWindow(t *testing.T) {
	for _, name := range []string{"day", "week", "month", "year", "ever"} {
		w, err := ParseWindow(name)
		if err != nil {
			t.Errorf("ParseWindow(%q): %v", name, err)
		}
		if w.String() != name {
			t.Errorf("round trip %q -> %q", name, w.String())
		}
	}
	if _, err := ParseWindow("fortnight"); !errors.Is(err, ErrUnknownWindow) {
		t.Errorf("expected ErrUnknownWindow, got %v", err)
	}
}

func TestComputeSeparatesExternalAndTransfers(t *testing.T) {
	now := int64(1_000_000)
	a := core.Fund{ID: 1, Title: "A"}
	b := core.Fund{ID: 2, Title: "B"}

	income := core.Movement{ID: 10, FundInID: ref(a.ID), Amount: 100, Date: now - 10}
	expense := core.Movement{ID: 11, FundOutID: ref(a.ID), Amount: 30, Date: now - 20}
	transfer := core.Movement{ID: 12, FundOutID: ref(a.ID), FundInID: ref(b.ID), Amount: 40, Date: now - 30}

	funds := []core.FundWithMovements{
		{Fund: a, MovementsIn: []core.Movement{income}, MovementsOut: []core.Movement{expense, transfer}},
		{Fund: b, MovementsIn: []core.Movement{transfer}},
	}

	rep := Compute(funds, Ever, now)

	// Global totals count external movements only; the transfer cancels out.
	if rep.Global.In != 100 || rep.Global.Out != 30 || rep.Global.Net != 70 {
		t.Errorf("global = %+v, want in=100 out=30 net=70", rep.Global)
	}

	// Per-fund totals include the transfer.
	if len(rep.Funds) != 2 {
		t.Fatalf("expected 2 fund reports, got %d", len(rep.Funds))
	}
	fa, fb := rep.Funds[0], rep.Funds[1]
	if fa.Totals.In != 100 || fa.Totals.Out != 70 || fa.Totals.Net != 30 {
		t.Errorf("fund A = %+v, want in=100 out=70 net=30", fa.Totals)
	}
	if fb.Totals.In != 40 || fb.Totals.Out != 0 || fb.Totals.Net != 40 {
		t.Errorf("fund B = %+v, want in=40 out=0 net=40", fb.Totals)
	}
}

func TestComputeRespectsWindow(t *testing.T) {
	now := int64(10 * 24 * 60 * 60 * 1000) // day 10
	a := core.Fund{ID: 1, Title: "A"}

	recent := core.Movement{ID: 1, FundInID: ref(a.ID), Amount: 10, Date: now - 1000}
	old := core.Movement{ID: 2, FundInID: ref(a.ID), Amount: 99, Date: now - int64(Week) - 1}

	funds := []core.FundWithMovements{
		{Fund: a, MovementsIn: []core.Movement{recent, old}},
	}

	rep := Compute(funds, Week, now)
	if rep.Global.In != 10 {
		t.Errorf("week window global in = %v, want 10", rep.Global.In)
	}

	rep = Compute(funds, Ever, now)
	if rep.Global.In != 109 {
		t.Errorf("ever window global in = %v, want 109", rep.Global.In)
	}
}

func TestComputeEmpty(t *testing.T) {
	rep := Compute(nil, Day, 1000)
	if rep.Global != (Totals{}) {
		t.Errorf("expected zero totals, got %+v", rep.Global)
	}
	if len(rep.Funds) != 0 {
		t.Errorf("expected no fund reports, got %d", len(rep.Funds))
	}
}

func TestNormalized(t *testing.T) {
	tests := []struct {
		name string
		in   Totals
		want Totals
	}{
		{"all zero", Totals{}, Totals{}},
		{"inflow dominates", Totals{In: 100, Out: 50, Net: 50}, Totals{In: 1, Out: 0.5, Net: 0.5}},
		{"negative net dominates", Totals{In: 10, Out: 50, Net: -40}, Totals{In: 0.2, Out: 1, Net: -0.8}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.in.Normalized(); got != tt.want {
				t.Errorf("Normalized(%+v) = %+v, want %+v", tt.in, got, tt.want)
			}
		})
	}
}
