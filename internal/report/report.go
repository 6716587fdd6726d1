// Package report computes inflow/outflow aggregates over a time
// window. It is pure: callers feed it the fund and movement graph and
// a clock reading.
package report

import (
	"errors"
	"time"

	"bucks/internal/core"
)

// Window is a lookback span in milliseconds; a movement belongs to the
// window when its timestamp lies in [now-window, now], inclusive on
// both ends.
type Window int64

const (
	Day   Window = Window(24 * time.Hour / time.Millisecond)
	Week  Window = 7 * Day
	Month Window = 28 * Day
	Year  Window = 365 * Day
	// Ever is effectively unbounded.
	Ever Window = Window(1<<63 - 1)
)

var ErrUnknownWindow = errors.New("unknown report window")

var windowNames = map[Window]string{
	Day:   "day",
	Week:  "week",
	Month: "month",
	Year:  "year",
	Ever:  "ever",
}

func (w Window) String() string {
	if name, ok := windowNames[w]; ok {
		return name
	}
	return "unknown"
}

// ParseWindow maps a preset name to its window.
func ParseWindow(name string) (Window, error) {
	for w, n := range windowNames {
		if n == name {
			return w, nil
		}
	}
	return 0, ErrUnknownWindow
}

// InRange reports whether timestamp t (ms) falls inside the window
// evaluated at now (ms).
func (w Window) InRange(t, now int64) bool {
	if w == Ever {
		return t <= now
	}
	return now-int64(w) <= t && t <= now
}

// Totals are the three aggregate buckets of a report.
type Totals struct {
	In  float64 `json:"in"`
	Out float64 `json:"out"`
	Net float64 `json:"net"`
}

// Normalized scales each bucket by the maximum of the three absolute
// values, yielding values in [0, 1] for display. A zero maximum yields
// all zeros.
func (t Totals) Normalized() Totals {
	max := t.In
	if t.Out > max {
		max = t.Out
	}
	if abs := absf(t.Net); abs > max {
		max = abs
	}
	if max == 0 {
		return Totals{}
	}
	return Totals{In: t.In / max, Out: t.Out / max, Net: t.Net / max}
}

func absf(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// FundReport carries one fund's aggregates within the window.
type FundReport struct {
	FundID int64  `json:"fundID"`
	Title  string `json:"title"`
	Totals Totals `json:"totals"`
}

// Report is the full aggregation result: global totals over external
// movements only, plus per-fund totals that include transfers between
// owned funds.
type Report struct {
	Window Window       `json:"-"`
	Global Totals       `json:"global"`
	Funds  []FundReport `json:"funds"`
}

// Compute aggregates the given fund graph at time now (ms).
//
// Global buckets count only external movements: inflow needs an
// inbound reference and no outbound one, outflow the opposite, so
// transfers between owned funds cancel out of the global picture.
// Per-fund buckets count every movement referencing the fund.
func Compute(funds []core.FundWithMovements, w Window, now int64) Report {
	rep := Report{Window: w, Funds: make([]FundReport, 0, len(funds))}

	for _, fwm := range funds {
		fr := FundReport{FundID: fwm.Fund.ID, Title: fwm.Fund.Title}
		for _, m := range fwm.MovementsIn {
			if !w.InRange(m.Date, now) {
				continue
			}
			fr.Totals.In += m.Amount
			// External movements sit in exactly one fund's partition,
			// so summing here cannot double count.
			if m.External() {
				rep.Global.In += m.Amount
			}
		}
		for _, m := range fwm.MovementsOut {
			if !w.InRange(m.Date, now) {
				continue
			}
			fr.Totals.Out += m.Amount
			if m.External() {
				rep.Global.Out += m.Amount
			}
		}
		fr.Totals.Net = fr.Totals.In - fr.Totals.Out
		rep.Funds = append(rep.Funds, fr)
	}

	rep.Global.Net = rep.Global.In - rep.Global.Out
	return rep
}
