package models

import (
	"errors"
	"time"
)

// Granularity selects the aggregation period unit.
type Granularity string

const (
	GranularityDaily   Granularity = "daily"
	GranularityMonthly Granularity = "monthly"
)

// Valid reports whether g is one of the supported granularities.
func (g Granularity) Valid() bool {
	return g == GranularityDaily || g == GranularityMonthly
}

// ItemStat is the running quantity/revenue pair for one item name within one
// accumulator period. Amounts are whole currency units.
type ItemStat struct {
	Quantity int64 `json:"quantity"`
	Total    int64 `json:"total"`
}

// StatDoc is one accumulator document: item name -> running stat.
type StatDoc map[string]ItemStat

// Clone returns a deep copy of the document.
func (d StatDoc) Clone() StatDoc {
	out := make(StatDoc, len(d))
	for name, st := range d {
		out[name] = st
	}
	return out
}

// StatDelta is one additive contribution to an accumulator cell, keyed by
// (granularity, period, item).
type StatDelta struct {
	Granularity Granularity
	Period      string
	Item        string
	Quantity    int64
	Total       int64
}

// Menu is one menu document: the current price for an item name.
type Menu struct {
	Name  string `json:"name"`
	Price int64  `json:"price"`
}

// DailyKey returns the UTC calendar-date period key for t, e.g. "2024-03-15".
func DailyKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// MonthlyKey returns the UTC year-month period key for t, e.g. "2024-03".
// It is the 7-character prefix of the daily key.
func MonthlyKey(t time.Time) string {
	return DailyKey(t)[:7]
}

var (
	ErrNoItems      = errors.New("order has no items")
	ErrItemName     = errors.New("order item without a name")
	ErrItemQuantity = errors.New("order item with negative quantity")
)
