// Package wallet provides a reference in-memory base-currency wallet. The
// real deployment bridges to the host economy; this implementation backs
// local runs and tests.
package wallet

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/epconsortium/cryptomarket/internal/domain"
)

// InMemory keeps base-currency balances per holder in process memory.
type InMemory struct {
	mu       sync.Mutex
	balances map[string]decimal.Decimal
}

// NewInMemory creates an empty wallet.
func NewInMemory() *InMemory {
	return &InMemory{balances: make(map[string]decimal.Decimal)}
}

// Has reports whether the holder owns at least amount.
func (w *InMemory) Has(_ context.Context, holderID string, amount decimal.Decimal) (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.balances[holderID].GreaterThanOrEqual(amount), nil
}

// Withdraw removes amount from the holder's balance.
func (w *InMemory) Withdraw(_ context.Context, holderID string, amount decimal.Decimal) error {
	if amount.IsNegative() {
		return errors.Wrap(domain.ErrInvalidArgument, "amount cannot be negative")
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	current := w.balances[holderID]
	if current.LessThan(amount) {
		return errors.Errorf("holder %s has %s, cannot withdraw %s", holderID, current, amount)
	}
	w.balances[holderID] = current.Sub(amount)
	return nil
}

// Deposit adds amount to the holder's balance.
func (w *InMemory) Deposit(_ context.Context, holderID string, amount decimal.Decimal) error {
	if amount.IsNegative() {
		return errors.Wrap(domain.ErrInvalidArgument, "amount cannot be negative")
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.balances[holderID] = w.balances[holderID].Add(amount)
	return nil
}

// Balance returns the holder's current balance.
func (w *InMemory) Balance(holderID string) decimal.Decimal {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.balances[holderID]
}
