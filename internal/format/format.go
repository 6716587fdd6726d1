// Package format renders cash amounts, card serials and timestamps
// according to the user's preference indexes.
package format

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// Currency is a display preset selected by preference index.
type Currency struct {
	Name   string
	Symbol string
}

// Currencies in preference-index order. Appends only: the index is
// persisted.
var Currencies = []Currency{
	{Name: "Euro", Symbol: "€"},
	{Name: "Dollar", Symbol: "$"},
	{Name: "Pound", Symbol: "£"},
	{Name: "Franc", Symbol: "₣"},
	{Name: "Yen", Symbol: "¥"},
	{Name: "Yuan", Symbol: "元"},
}

// DateFormat is a date/time layout preset selected by preference
// index.
type DateFormat struct {
	Date string
	Time string
}

// DateFormats in preference-index order. Appends only.
var DateFormats = []DateFormat{
	{Date: "02 Jan 2006", Time: "15:04"},
	{Date: "02 Jan 2006", Time: "03:04 PM"},
	{Date: "02/01/06", Time: "15:04"},
	{Date: "02/01/06", Time: "03:04 PM"},
	{Date: "02/01/2006", Time: "15:04"},
	{Date: "02/01/2006", Time: "03:04 PM"},
	{Date: "2006/01/02", Time: "15:04"},
	{Date: "2006/01/02", Time: "03:04 PM"},
	{Date: "2006 Jan 02", Time: "15:04"},
	{Date: "2006 Jan 02", Time: "03:04 PM"},
}

// Cash renders an amount with at most two decimals and the selected
// currency symbol, e.g. "12.5 €".
func Cash(amount float64, currencyIndex int) string {
	c := Currencies[clamp(currencyIndex, len(Currencies))]
	rounded := math.Round(amount*100) / 100
	s := strconv.FormatFloat(rounded, 'f', -1, 64)
	return s + " " + c.Symbol
}

// Serial renders a card serial in four-digit groups, e.g.
// "1234 5678 9012 3456".
func Serial(serial string) string {
	if serial == "" {
		return ""
	}
	var groups []string
	for len(serial) > 4 {
		groups = append(groups, serial[:4])
		serial = serial[4:]
	}
	groups = append(groups, serial)
	return strings.Join(groups, " ")
}

// Date renders a millisecond timestamp with the selected date layout.
func Date(ms int64, formatIndex int) string {
	f := DateFormats[clamp(formatIndex, len(DateFormats))]
	return time.UnixMilli(ms).Format(f.Date)
}

// DateTime renders a millisecond timestamp with the selected date and
// time layouts.
func DateTime(ms int64, formatIndex int) string {
	f := DateFormats[clamp(formatIndex, len(DateFormats))]
	return time.UnixMilli(ms).Format(f.Date + " " + f.Time)
}

// clamp maps out-of-range preference indexes to the first preset
// instead of panicking on stale persisted values.
func clamp(i, n int) int {
	if i < 0 || i >= n {
		return 0
	}
	return i
}
