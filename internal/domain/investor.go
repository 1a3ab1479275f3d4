package domain

import (
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
)

// Investor owns the per-coin balances of one account. Identity is the opaque
// id only; two investors with the same id are the same investor regardless of
// holdings. An Investor is safe for concurrent use: the ledger mutates it
// while ranking and persistence jobs read it.
type Investor struct {
	id string

	mu       sync.RWMutex
	balances map[string]Balance
}

// NewInvestor creates an investor with no holdings.
func NewInvestor(id string) *Investor {
	return NewInvestorWithBalances(id, nil)
}

// NewInvestorWithBalances restores an investor from persisted balances.
func NewInvestorWithBalances(id string, balances map[string]Balance) *Investor {
	owned := make(map[string]Balance, len(balances))
	for coin, b := range balances {
		owned[coin] = b
	}
	return &Investor{id: id, balances: owned}
}

// ID returns the opaque account identity.
func (i *Investor) ID() string {
	return i.id
}

// Balance returns the investor's balance for the coin, a zero balance if the
// coin was never traded. Reading never materializes an entry.
func (i *Investor) Balance(coin string) Balance {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.balances[coin]
}

// SetBalance overwrites the investor's balance for the coin.
func (i *Investor) SetBalance(coin string, b Balance) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.balances[coin] = b
}

// Balances returns a copy of all balances, including zero entries that were
// explicitly written.
func (i *Investor) Balances() map[string]Balance {
	i.mu.RLock()
	defer i.mu.RUnlock()
	out := make(map[string]Balance, len(i.balances))
	for coin, b := range i.balances {
		out[coin] = b
	}
	return out
}

// ConvertedPatrimony values every holding at the rates in the table and
// returns the sum in base currency. A nil table yields -1, mirroring the
// "no data" quote.
func (i *Investor) ConvertedPatrimony(rates *RateTable) decimal.Decimal {
	if rates == nil {
		return noData
	}
	i.mu.RLock()
	defer i.mu.RUnlock()

	patrimony := decimal.Zero
	for coin, balance := range i.balances {
		if price, ok := rates.CoinValue(coin).Value(); ok {
			patrimony = patrimony.Add(price.Mul(balance.Value()))
		}
	}
	return patrimony
}

// Equal reports identity equality: same id, regardless of balances.
func (i *Investor) Equal(other *Investor) bool {
	if other == nil {
		return false
	}
	return i.id == other.id
}

func (i *Investor) String() string {
	return fmt.Sprintf("[investor %s]", i.id)
}
