// Package ledger performs the monetary operations of the market: deposits,
// withdrawals, purchases, sales and transfers of coin balances, converting
// between coins and the base currency at current rates.
package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/epconsortium/cryptomarket/internal/domain"
)

// BaseWallet moves base currency on behalf of an investor. Implementations
// live outside this core (the host economy).
type BaseWallet interface {
	Has(ctx context.Context, holderID string, amount decimal.Decimal) (bool, error)
	Withdraw(ctx context.Context, holderID string, amount decimal.Decimal) error
	Deposit(ctx context.Context, holderID string, amount decimal.Decimal) error
}

// AuditSink records completed negotiations. Recording is fire-and-forget: a
// sink failure never rolls back the operation that triggered it.
type AuditSink interface {
	Record(entry domain.NegotiationEntry) error
}

// rateSource yields today's rate table.
type rateSource interface {
	Current() (*domain.RateTable, error)
}

// Ledger mutates investor balances. A single mutex serializes all mutations;
// balance reads elsewhere (ranking, persistence) go through the investor's
// own locking.
type Ledger struct {
	wallet BaseWallet
	rates  rateSource
	audit  AuditSink
	logger *zap.Logger
	now    func() time.Time

	// mu serializes every balance mutation, including the wallet round-trip
	// of a purchase or sale.
	mu sync.Mutex
}

// New builds a ledger. audit may be nil when no negotiation log is wanted.
func New(wallet BaseWallet, rates rateSource, audit AuditSink, logger *zap.Logger) (*Ledger, error) {
	if wallet == nil {
		return nil, errors.New("base wallet is required")
	}
	if rates == nil {
		return nil, errors.New("rate source is required")
	}
	return &Ledger{wallet: wallet, rates: rates, audit: audit, logger: logger, now: time.Now}, nil
}

// Has reports whether the investor holds at least amount of the coin.
func (l *Ledger) Has(coin string, investor *domain.Investor, amount decimal.Decimal) bool {
	return investor.Balance(coin).Value().GreaterThanOrEqual(amount)
}

// Withdraw removes amount of the coin from the investor's balance. The
// stored purchase average is preserved.
func (l *Ledger) Withdraw(coin string, investor *domain.Investor, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return errors.Wrap(domain.ErrInvalidArgument, "amount must be positive")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	balance := investor.Balance(coin)
	if balance.Value().LessThan(amount) {
		return errors.Wrap(domain.ErrInvalidArgument, "investor does not have enough balance")
	}
	next, err := balance.WithValue(balance.Value().Sub(amount))
	if err != nil {
		return err
	}
	investor.SetBalance(coin, next)
	l.logger.Debug("withdraw processed",
		zap.String("investor", investor.ID()), zap.String("coin", coin),
		zap.String("amount", amount.String()), zap.String("new_balance", next.Value().String()))
	return nil
}

// Deposit adds amount of the coin to the investor's balance.
func (l *Ledger) Deposit(coin string, investor *domain.Investor, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return errors.Wrap(domain.ErrInvalidArgument, "amount must be positive")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	balance := investor.Balance(coin)
	next, err := balance.WithValue(balance.Value().Add(amount))
	if err != nil {
		return err
	}
	investor.SetBalance(coin, next)
	l.logger.Debug("deposit processed",
		zap.String("investor", investor.ID()), zap.String("coin", coin),
		zap.String("amount", amount.String()), zap.String("new_balance", next.Value().String()))
	return nil
}

// Set overwrites the investor's balance of the coin.
func (l *Ledger) Set(coin string, investor *domain.Investor, amount decimal.Decimal) error {
	if amount.IsNegative() {
		return errors.Wrap(domain.ErrInvalidArgument, "amount cannot be negative")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	next, err := investor.Balance(coin).WithValue(amount)
	if err != nil {
		return err
	}
	investor.SetBalance(coin, next)
	return nil
}

// Convert values amount of the coin in base currency at today's rate. With
// no table for today every coin converts to zero; callers must check the
// rate service's error state before trusting a conversion.
func (l *Ledger) Convert(coin string, amount decimal.Decimal) decimal.Decimal {
	table, err := l.rates.Current()
	if err != nil || table == nil {
		return decimal.Zero
	}
	return table.CoinValue(coin).Decimal().Mul(amount)
}

// Buy purchases amount of the coin, paying the converted cost from the
// investor's base wallet. Insufficient funds is an expected outcome and
// reported as false, not an error. Nothing is mutated on failure.
func (l *Ledger) Buy(ctx context.Context, coin string, investor *domain.Investor, amount decimal.Decimal) (bool, error) {
	if !amount.IsPositive() {
		return false, errors.Wrap(domain.ErrInvalidArgument, "amount must be positive")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	cost := l.Convert(coin, amount)
	if !cost.IsPositive() {
		return false, errors.Errorf("no current exchange rate for %s", coin)
	}
	next, err := investor.Balance(coin).Increase(amount, cost)
	if err != nil {
		return false, errors.Wrap(err, "cannot record purchase")
	}

	enough, err := l.wallet.Has(ctx, investor.ID(), cost)
	if err != nil {
		return false, errors.Wrap(err, "check wallet balance")
	}
	if !enough {
		l.logger.Debug("purchase rejected, wallet balance too low",
			zap.String("investor", investor.ID()), zap.String("cost", cost.String()))
		return false, nil
	}
	if err := l.wallet.Withdraw(ctx, investor.ID(), cost); err != nil {
		return false, errors.Wrap(err, "debit wallet")
	}
	investor.SetBalance(coin, next)

	l.record(domain.NegotiationEntry{
		Kind: domain.NegotiationPurchase, InvestorID: investor.ID(), Symbol: coin,
		Amount: amount, BaseAmount: cost, NewBalance: next.Value(),
	})
	l.logger.Info("purchase processed",
		zap.String("investor", investor.ID()), zap.String("coin", coin),
		zap.String("amount", amount.String()), zap.String("cost", cost.String()))
	return true, nil
}

// Sell sells amount of the coin, crediting the proceeds to the investor's
// base wallet. Holding less than amount is reported as false. Nothing is
// mutated on failure.
func (l *Ledger) Sell(ctx context.Context, coin string, investor *domain.Investor, amount decimal.Decimal) (bool, error) {
	if !amount.IsPositive() {
		return false, errors.Wrap(domain.ErrInvalidArgument, "amount must be positive")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.Has(coin, investor, amount) {
		l.logger.Debug("sale rejected, balance too low",
			zap.String("investor", investor.ID()), zap.String("coin", coin), zap.String("amount", amount.String()))
		return false, nil
	}
	proceeds := l.Convert(coin, amount)
	if !proceeds.IsPositive() {
		return false, errors.Errorf("no current exchange rate for %s", coin)
	}
	next, err := investor.Balance(coin).Decrease(amount, proceeds)
	if err != nil {
		return false, errors.Wrap(err, "cannot record sale")
	}

	if err := l.wallet.Deposit(ctx, investor.ID(), proceeds); err != nil {
		return false, errors.Wrap(err, "credit wallet")
	}
	investor.SetBalance(coin, next)

	l.record(domain.NegotiationEntry{
		Kind: domain.NegotiationSell, InvestorID: investor.ID(), Symbol: coin,
		Amount: amount, BaseAmount: proceeds, NewBalance: next.Value(),
	})
	l.logger.Info("sale processed",
		zap.String("investor", investor.ID()), zap.String("coin", coin),
		zap.String("amount", amount.String()), zap.String("proceeds", proceeds.String()))
	return true, nil
}

// Transfer moves amount of the coin from debited to favored. All-or-nothing:
// if the debited side cannot cover the amount neither balance changes.
func (l *Ledger) Transfer(coin string, debited, favored *domain.Investor, amount decimal.Decimal) (bool, error) {
	if !amount.IsPositive() {
		return false, errors.Wrap(domain.ErrInvalidArgument, "amount must be positive")
	}
	if !l.Has(coin, debited, amount) {
		return false, nil
	}
	if err := l.Withdraw(coin, debited, amount); err != nil {
		return false, err
	}
	if err := l.Deposit(coin, favored, amount); err != nil {
		return false, err
	}
	return true, nil
}

func (l *Ledger) record(entry domain.NegotiationEntry) {
	if l.audit == nil {
		return
	}
	entry.ID = uuid.NewString()
	entry.Time = l.now()
	if err := l.audit.Record(entry); err != nil {
		l.logger.Warn("failed to record negotiation", zap.Error(err))
	}
}
