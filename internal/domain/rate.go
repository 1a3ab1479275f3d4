package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// noData is what legacy callers observe for a coin with no quote. Kept at the
// boundary so branch-on-negative call sites keep working.
var noData = decimal.NewFromInt(-1)

// Price is a tagged quote: either a known value or "no data".
type Price struct {
	value decimal.Decimal
	known bool
}

// KnownPrice wraps a fetched quote.
func KnownPrice(value decimal.Decimal) Price {
	return Price{value: value, known: true}
}

// UnknownPrice is the "no data" quote.
func UnknownPrice() Price {
	return Price{}
}

// Known reports whether the quote carries data.
func (p Price) Known() bool {
	return p.known
}

// Value returns the quote and whether it is known.
func (p Price) Value() (decimal.Decimal, bool) {
	return p.value, p.known
}

// Decimal returns the quote, or -1 when unknown.
func (p Price) Decimal() decimal.Decimal {
	if !p.known {
		return noData
	}
	return p.value
}

// RateTable holds the quotes of all coins for one calendar day. Tables are
// built by the rate service and published whole; a published table is never
// mutated again, so readers can use it without locking.
type RateTable struct {
	day    Day
	values map[string]decimal.Decimal
}

// NewRateTable creates an empty table for the day.
func NewRateTable(day Day) *RateTable {
	return &RateTable{day: day, values: make(map[string]decimal.Decimal)}
}

// Day returns the calendar day the table describes.
func (t *RateTable) Day() Day {
	return t.day
}

// CoinValue returns the quote for the coin symbol (case-insensitive).
func (t *RateTable) CoinValue(symbol string) Price {
	if t == nil {
		return UnknownPrice()
	}
	value, ok := t.values[strings.ToUpper(symbol)]
	if !ok {
		return UnknownPrice()
	}
	return KnownPrice(value)
}

// WithValue returns a copy of the table with the coin's quote set. The
// receiver is left untouched, which is what lets published tables stay
// immutable while a refresh merges new quotes.
func (t *RateTable) WithValue(symbol string, value decimal.Decimal) *RateTable {
	next := NewRateTable(t.day)
	for coin, v := range t.values {
		next.values[coin] = v
	}
	next.values[strings.ToUpper(symbol)] = value
	return next
}

// Coins returns the symbols quoted in the table.
func (t *RateTable) Coins() []string {
	coins := make([]string, 0, len(t.values))
	for coin := range t.values {
		coins = append(coins, coin)
	}
	return coins
}

// Len returns the number of quoted coins.
func (t *RateTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.values)
}
