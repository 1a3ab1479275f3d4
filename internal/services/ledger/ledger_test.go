package ledger

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/epconsortium/cryptomarket/internal/domain"
	"github.com/epconsortium/cryptomarket/internal/services/wallet"
)

type fakeRates struct {
	table *domain.RateTable
}

func (f *fakeRates) Current() (*domain.RateTable, error) {
	return f.table, nil
}

type recordingAudit struct {
	entries []domain.NegotiationEntry
}

func (a *recordingAudit) Record(entry domain.NegotiationEntry) error {
	a.entries = append(a.entries, entry)
	return nil
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func newTestLedger(t *testing.T, table *domain.RateTable) (*Ledger, *wallet.InMemory, *recordingAudit) {
	t.Helper()
	w := wallet.NewInMemory()
	audit := &recordingAudit{}
	l, err := New(w, &fakeRates{table: table}, audit, zap.NewNop())
	require.NoError(t, err)
	return l, w, audit
}

func btcTable(price string) *domain.RateTable {
	return domain.NewRateTable(domain.Day{Year: 2026, Month: 8, Date: 31}).WithValue("BTC", dec(price))
}

func TestLedger_DepositWithdraw(t *testing.T) {
	l, _, _ := newTestLedger(t, btcTable("100"))
	inv := domain.NewInvestor("alice")

	require.ErrorIs(t, l.Deposit("BTC", inv, dec("0")), domain.ErrInvalidArgument)
	require.ErrorIs(t, l.Deposit("BTC", inv, dec("-1")), domain.ErrInvalidArgument)

	require.NoError(t, l.Deposit("BTC", inv, dec("5")))
	require.True(t, inv.Balance("BTC").Value().Equal(dec("5")))

	require.NoError(t, l.Withdraw("BTC", inv, dec("2")))
	require.True(t, inv.Balance("BTC").Value().Equal(dec("3")))

	t.Run("overdraft leaves the balance untouched", func(t *testing.T) {
		err := l.Withdraw("BTC", inv, dec("10"))
		require.ErrorIs(t, err, domain.ErrInvalidArgument)
		require.True(t, inv.Balance("BTC").Value().Equal(dec("3")))
	})
}

func TestLedger_Set(t *testing.T) {
	l, _, _ := newTestLedger(t, btcTable("100"))
	inv := domain.NewInvestor("alice")

	require.ErrorIs(t, l.Set("BTC", inv, dec("-1")), domain.ErrInvalidArgument)
	require.NoError(t, l.Set("BTC", inv, dec("7")))
	require.True(t, inv.Balance("BTC").Value().Equal(dec("7")))
	require.NoError(t, l.Set("BTC", inv, dec("0")))
	require.True(t, inv.Balance("BTC").IsZero())
}

func TestLedger_Convert(t *testing.T) {
	l, _, _ := newTestLedger(t, btcTable("100"))
	require.True(t, l.Convert("BTC", dec("2")).Equal(dec("200")))

	t.Run("no table converts to zero", func(t *testing.T) {
		l, _, _ := newTestLedger(t, nil)
		require.True(t, l.Convert("BTC", dec("2")).IsZero())
	})
}

func TestLedger_BuySellRoundTrip(t *testing.T) {
	l, w, audit := newTestLedger(t, btcTable("100"))
	inv := domain.NewInvestor("alice")
	ctx := context.Background()

	require.NoError(t, w.Deposit(ctx, "alice", dec("1000")))

	ok, err := l.Buy(ctx, "BTC", inv, dec("2"))
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, w.Balance("alice").Equal(dec("800")), "wallet debited the converted cost")
	require.True(t, inv.Balance("BTC").TotalPurchased.Equal(dec("2")))
	require.True(t, inv.Balance("BTC").TotalPaid.Equal(dec("200")))
	require.True(t, inv.Balance("BTC").ProfitPercentage(dec("100")).IsZero())

	// price moves to 150, sell one unit: partial subtraction path
	l.rates = &fakeRates{table: btcTable("150")}
	ok, err = l.Sell(ctx, "BTC", inv, dec("1"))
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, w.Balance("alice").Equal(dec("950")))
	require.True(t, inv.Balance("BTC").TotalPurchased.Equal(dec("1")))
	require.True(t, inv.Balance("BTC").TotalPaid.Equal(dec("50")))

	// price moves to 200, sell the rest: proceeds cover the basis, full reset
	l.rates = &fakeRates{table: btcTable("200")}
	ok, err = l.Sell(ctx, "BTC", inv, dec("1"))
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, w.Balance("alice").Equal(dec("1150")))
	require.True(t, inv.Balance("BTC").IsZero())

	require.Len(t, audit.entries, 3)
	require.Equal(t, domain.NegotiationPurchase, audit.entries[0].Kind)
	require.Equal(t, domain.NegotiationSell, audit.entries[1].Kind)
	require.NotEmpty(t, audit.entries[0].ID)
}

func TestLedger_BuyInsufficientFunds(t *testing.T) {
	l, w, audit := newTestLedger(t, btcTable("100"))
	inv := domain.NewInvestor("alice")
	ctx := context.Background()

	require.NoError(t, w.Deposit(ctx, "alice", dec("50")))

	ok, err := l.Buy(ctx, "BTC", inv, dec("2"))
	require.NoError(t, err, "insufficient funds is an outcome, not an error")
	require.False(t, ok)
	require.True(t, w.Balance("alice").Equal(dec("50")), "wallet untouched")
	require.True(t, inv.Balance("BTC").IsZero(), "balance untouched")
	require.Empty(t, audit.entries)
}

func TestLedger_BuyRejectsNonPositiveAmount(t *testing.T) {
	l, _, _ := newTestLedger(t, btcTable("100"))
	inv := domain.NewInvestor("alice")

	_, err := l.Buy(context.Background(), "BTC", inv, dec("0"))
	require.ErrorIs(t, err, domain.ErrInvalidArgument)
	_, err = l.Sell(context.Background(), "BTC", inv, dec("-1"))
	require.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestLedger_NegotiationWithoutRate(t *testing.T) {
	ctx := context.Background()

	t.Run("no table for today", func(t *testing.T) {
		l, w, audit := newTestLedger(t, nil)
		inv := domain.NewInvestor("alice")
		require.NoError(t, w.Deposit(ctx, "alice", dec("1000")))

		ok, err := l.Buy(ctx, "BTC", inv, dec("1"))
		require.ErrorContains(t, err, "no current exchange rate for BTC")
		require.False(t, ok)
		require.True(t, w.Balance("alice").Equal(dec("1000")))
		require.True(t, inv.Balance("BTC").IsZero())
		require.Empty(t, audit.entries)
	})

	t.Run("coin missing from the table", func(t *testing.T) {
		l, w, _ := newTestLedger(t, btcTable("100"))
		inv := domain.NewInvestor("alice")
		require.NoError(t, w.Deposit(ctx, "alice", dec("1000")))

		ok, err := l.Buy(ctx, "DOGE", inv, dec("1"))
		require.ErrorContains(t, err, "no current exchange rate for DOGE")
		require.False(t, ok)
		require.True(t, w.Balance("alice").Equal(dec("1000")))
	})

	t.Run("sell is rejected the same way", func(t *testing.T) {
		l, w, _ := newTestLedger(t, btcTable("100"))
		inv := domain.NewInvestor("alice")
		require.NoError(t, l.Deposit("BTC", inv, dec("2")))

		l.rates = &fakeRates{table: nil}
		ok, err := l.Sell(ctx, "BTC", inv, dec("1"))
		require.ErrorContains(t, err, "no current exchange rate for BTC")
		require.False(t, ok)
		require.True(t, w.Balance("alice").IsZero())
		require.True(t, inv.Balance("BTC").Value().Equal(dec("2")))
	})
}

func TestLedger_SellWithoutHoldings(t *testing.T) {
	l, w, _ := newTestLedger(t, btcTable("100"))
	inv := domain.NewInvestor("alice")

	ok, err := l.Sell(context.Background(), "BTC", inv, dec("1"))
	require.NoError(t, err)
	require.False(t, ok)
	require.True(t, w.Balance("alice").IsZero())
}

func TestLedger_Transfer(t *testing.T) {
	l, _, _ := newTestLedger(t, btcTable("100"))
	alice := domain.NewInvestor("alice")
	bob := domain.NewInvestor("bob")

	require.NoError(t, l.Deposit("BTC", alice, dec("5")))

	ok, err := l.Transfer("BTC", alice, bob, dec("2"))
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, alice.Balance("BTC").Value().Equal(dec("3")))
	require.True(t, bob.Balance("BTC").Value().Equal(dec("2")))

	t.Run("uncovered transfer mutates neither side", func(t *testing.T) {
		ok, err := l.Transfer("BTC", alice, bob, dec("10"))
		require.NoError(t, err)
		require.False(t, ok)
		require.True(t, alice.Balance("BTC").Value().Equal(dec("3")))
		require.True(t, bob.Balance("BTC").Value().Equal(dec("2")))
	})

	t.Run("non-positive amount is rejected", func(t *testing.T) {
		_, err := l.Transfer("BTC", alice, bob, dec("0"))
		require.ErrorIs(t, err, domain.ErrInvalidArgument)
	})
}
