package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Negotiation is the kind of a ledger operation recorded in the audit log.
type Negotiation int

const (
	NegotiationUnknown Negotiation = iota
	NegotiationPurchase
	NegotiationSell
)

func (n Negotiation) String() string {
	switch n {
	case NegotiationPurchase:
		return "PURCHASE"
	case NegotiationSell:
		return "SELL"
	default:
		return "UNKNOWN"
	}
}

// NegotiationEntry is one audit record of a completed purchase or sale.
type NegotiationEntry struct {
	ID         string          `json:"id"`
	Time       time.Time       `json:"ts"`
	InvestorID string          `json:"investor_id"`
	Kind       Negotiation     `json:"kind"`
	Symbol     string          `json:"symbol"`
	Amount     decimal.Decimal `json:"amount"`
	BaseAmount decimal.Decimal `json:"base_amount"`
	NewBalance decimal.Decimal `json:"new_balance"`
}

// CachedRate is one persisted quote with the moment it was fetched. Entries
// survive restarts; freshness is judged against a configured window.
type CachedRate struct {
	Value       decimal.Decimal `json:"value"`
	LastUpdated time.Time       `json:"lastUpdated"`
}

// Fresh reports whether the entry was fetched within the window ending at now.
func (c CachedRate) Fresh(window time.Duration, now time.Time) bool {
	return c.LastUpdated.Add(window).After(now)
}
