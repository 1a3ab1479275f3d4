package domain

import (
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// averageScale is the precision used for cost-basis division. Division always
// rounds toward negative infinity so a reported average never overstates the
// amount actually paid.
const averageScale = 8

var (
	oneHundred = decimal.NewFromInt(100)
	one        = decimal.NewFromInt(1)
)

// Balance is the cost-basis ledger entry of one investor for one coin.
// TotalPurchased is the amount of the coin held; TotalPaid is the total base
// currency spent acquiring it. Both are never negative. Balance is a value
// type: mutating methods return the new Balance and never touch the receiver.
type Balance struct {
	TotalPurchased decimal.Decimal `json:"totalPurchased"`
	TotalPaid      decimal.Decimal `json:"totalPaid"`
}

// NewBalance validates and builds a Balance.
func NewBalance(totalPurchased, totalPaid decimal.Decimal) (Balance, error) {
	if totalPurchased.IsNegative() || totalPaid.IsNegative() {
		return Balance{}, errors.Wrap(ErrInvalidArgument, "balance amounts cannot be negative")
	}
	return Balance{TotalPurchased: totalPurchased, TotalPaid: totalPaid}, nil
}

// Value returns the held amount of the coin.
func (b Balance) Value() decimal.Decimal {
	return b.TotalPurchased
}

// PurchaseAverage returns the average price paid per unit (TotalPaid /
// TotalPurchased), or zero when nothing is held.
func (b Balance) PurchaseAverage() decimal.Decimal {
	if b.TotalPurchased.IsZero() {
		return decimal.Zero
	}
	return b.TotalPaid.Div(b.TotalPurchased).RoundFloor(averageScale)
}

// Increase records a purchase of the coin: purchased units acquired for paid
// base currency. Both arguments must be positive.
func (b Balance) Increase(purchased, paid decimal.Decimal) (Balance, error) {
	if !purchased.IsPositive() || !paid.IsPositive() {
		return Balance{}, errors.Wrap(ErrInvalidArgument, "purchased and paid must be positive")
	}
	return Balance{
		TotalPurchased: b.TotalPurchased.Add(purchased),
		TotalPaid:      b.TotalPaid.Add(paid),
	}, nil
}

// Decrease records a sale of sold units for received base currency. Selling
// more than held is rejected. When the proceeds cover the entire cost basis
// the balance resets to zero on both fields, clearing any rounding residue;
// otherwise both fields are reduced. The reset keeps repeated partial sells
// from driving the cost basis negative.
func (b Balance) Decrease(sold, received decimal.Decimal) (Balance, error) {
	if !sold.IsPositive() || !received.IsPositive() {
		return Balance{}, errors.Wrap(ErrInvalidArgument, "sold and received must be positive")
	}
	if sold.GreaterThan(b.TotalPurchased) {
		return Balance{}, errors.Wrap(ErrInvalidArgument, "sold cannot exceed the held amount")
	}
	if received.GreaterThanOrEqual(b.TotalPaid) {
		return Balance{}, nil
	}
	return Balance{
		TotalPurchased: b.TotalPurchased.Sub(sold),
		TotalPaid:      b.TotalPaid.Sub(received),
	}, nil
}

// WithValue overwrites the held amount while preserving the purchase average,
// so an externally driven balance change does not distort profit reporting.
// A zero value clears the cost basis entirely.
func (b Balance) WithValue(value decimal.Decimal) (Balance, error) {
	if value.IsNegative() {
		return Balance{}, errors.Wrap(ErrInvalidArgument, "value cannot be negative")
	}
	if value.IsZero() {
		return Balance{}, nil
	}
	return Balance{
		TotalPurchased: value,
		TotalPaid:      value.Mul(b.PurchaseAverage()),
	}, nil
}

// ProfitPercentage reports the gain (or loss, negative) in percent if the
// whole balance were sold at rate. A paid total of zero is floored to one so
// a zero-cost holding (a gift) yields a finite result instead of dividing by
// zero. Returns zero when the theoretical sale value is not positive.
func (b Balance) ProfitPercentage(rate decimal.Decimal) decimal.Decimal {
	sale := rate.Mul(b.TotalPurchased)
	if !sale.IsPositive() {
		return decimal.Zero
	}
	divisor := b.TotalPaid
	if divisor.IsZero() {
		divisor = one
	}
	return sale.Div(divisor).RoundFloor(averageScale).Sub(one).Mul(oneHundred)
}

// IsZero reports whether the balance holds nothing and has no cost basis.
func (b Balance) IsZero() bool {
	return b.TotalPurchased.IsZero() && b.TotalPaid.IsZero()
}
