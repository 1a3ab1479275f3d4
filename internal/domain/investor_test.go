package domain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInvestor_BalanceDefaultsToZero(t *testing.T) {
	inv := NewInvestor("a")

	b := inv.Balance("BTC")
	require.True(t, b.IsZero())
	require.Empty(t, inv.Balances(), "reading must not materialize an entry")
}

func TestInvestor_SetBalance(t *testing.T) {
	inv := NewInvestor("a")
	inv.SetBalance("BTC", Balance{TotalPurchased: dec("2"), TotalPaid: dec("200")})

	require.True(t, inv.Balance("BTC").Value().Equal(dec("2")))
	require.Len(t, inv.Balances(), 1)
}

func TestInvestor_Equal(t *testing.T) {
	a := NewInvestor("a")
	b := NewInvestor("a")
	b.SetBalance("BTC", Balance{TotalPurchased: dec("1"), TotalPaid: dec("1")})

	require.True(t, a.Equal(b), "identity is the id, not the holdings")
	require.False(t, a.Equal(NewInvestor("c")))
	require.False(t, a.Equal(nil))
}

func TestInvestor_ConvertedPatrimony(t *testing.T) {
	inv := NewInvestor("a")
	inv.SetBalance("BTC", Balance{TotalPurchased: dec("2"), TotalPaid: dec("200")})
	inv.SetBalance("ETH", Balance{TotalPurchased: dec("10"), TotalPaid: dec("100")})

	table := NewRateTable(Day{Year: 2026, Month: 8, Date: 31}).
		WithValue("BTC", dec("100")).
		WithValue("ETH", dec("10"))

	require.True(t, inv.ConvertedPatrimony(table).Equal(dec("300")))

	t.Run("nil table yields the no-data sentinel", func(t *testing.T) {
		require.True(t, inv.ConvertedPatrimony(nil).Equal(dec("-1")))
	})

	t.Run("coins without a quote are skipped", func(t *testing.T) {
		partial := NewRateTable(Day{Year: 2026, Month: 8, Date: 31}).WithValue("BTC", dec("100"))
		require.True(t, inv.ConvertedPatrimony(partial).Equal(dec("200")))
	})
}
