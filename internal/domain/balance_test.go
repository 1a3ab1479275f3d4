package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestNewBalance(t *testing.T) {
	_, err := NewBalance(dec("-1"), dec("0"))
	require.ErrorIs(t, err, ErrInvalidArgument)

	_, err = NewBalance(dec("0"), dec("-1"))
	require.ErrorIs(t, err, ErrInvalidArgument)

	b, err := NewBalance(dec("2"), dec("200"))
	require.NoError(t, err)
	require.True(t, b.Value().Equal(dec("2")))
}

func TestBalance_Increase(t *testing.T) {
	tests := []struct {
		name      string
		purchased string
		paid      string
		wantErr   bool
	}{
		{name: "valid purchase", purchased: "2", paid: "200"},
		{name: "zero purchased", purchased: "0", paid: "200", wantErr: true},
		{name: "zero paid", purchased: "2", paid: "0", wantErr: true},
		{name: "negative purchased", purchased: "-2", paid: "200", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next, err := Balance{}.Increase(dec(tt.purchased), dec(tt.paid))
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidArgument)
				return
			}
			require.NoError(t, err)
			require.True(t, next.TotalPurchased.Equal(dec(tt.purchased)))
			require.True(t, next.TotalPaid.Equal(dec(tt.paid)))
			require.False(t, next.TotalPurchased.IsNegative())
			require.False(t, next.TotalPaid.IsNegative())
		})
	}
}

func TestBalance_Decrease(t *testing.T) {
	base := Balance{TotalPurchased: dec("2"), TotalPaid: dec("200")}

	t.Run("selling more than held is rejected", func(t *testing.T) {
		_, err := base.Decrease(dec("3"), dec("100"))
		require.ErrorIs(t, err, ErrInvalidArgument)
	})

	t.Run("non-positive arguments are rejected", func(t *testing.T) {
		_, err := base.Decrease(dec("0"), dec("100"))
		require.ErrorIs(t, err, ErrInvalidArgument)
		_, err = base.Decrease(dec("1"), dec("0"))
		require.ErrorIs(t, err, ErrInvalidArgument)
	})

	t.Run("partial sale subtracts both fields", func(t *testing.T) {
		next, err := base.Decrease(dec("1"), dec("150"))
		require.NoError(t, err)
		require.True(t, next.TotalPurchased.Equal(dec("1")))
		require.True(t, next.TotalPaid.Equal(dec("50")))
	})

	t.Run("proceeds covering the cost basis reset the balance", func(t *testing.T) {
		next, err := base.Decrease(dec("1"), dec("200"))
		require.NoError(t, err)
		require.True(t, next.IsZero())

		// above the cost basis too
		next, err = base.Decrease(dec("1"), dec("500"))
		require.NoError(t, err)
		require.True(t, next.IsZero())
	})
}

func TestBalance_LiquidationScenario(t *testing.T) {
	// buy 2 at price 100, sell 1 at 150, sell the rest at 200
	b, err := Balance{}.Increase(dec("2"), dec("200"))
	require.NoError(t, err)

	b, err = b.Decrease(dec("1"), dec("150"))
	require.NoError(t, err)
	require.True(t, b.TotalPurchased.Equal(dec("1")))
	require.True(t, b.TotalPaid.Equal(dec("50")))

	b, err = b.Decrease(dec("1"), dec("200"))
	require.NoError(t, err)
	require.True(t, b.IsZero(), "full liquidation must clear the cost basis")
}

func TestBalance_WithValue(t *testing.T) {
	base := Balance{TotalPurchased: dec("2"), TotalPaid: dec("200")}

	t.Run("negative value is rejected", func(t *testing.T) {
		_, err := base.WithValue(dec("-1"))
		require.ErrorIs(t, err, ErrInvalidArgument)
	})

	t.Run("value is stored exactly and average is preserved", func(t *testing.T) {
		next, err := base.WithValue(dec("3"))
		require.NoError(t, err)
		require.True(t, next.Value().Equal(dec("3")))
		require.True(t, next.PurchaseAverage().Equal(base.PurchaseAverage()))
		require.True(t, next.TotalPaid.Equal(dec("300")))
	})

	t.Run("zero clears the cost basis", func(t *testing.T) {
		next, err := base.WithValue(dec("0"))
		require.NoError(t, err)
		require.True(t, next.IsZero())
	})
}

func TestBalance_PurchaseAverage(t *testing.T) {
	require.True(t, Balance{}.PurchaseAverage().IsZero(), "empty balance must not divide by zero")

	b := Balance{TotalPurchased: dec("3"), TotalPaid: dec("100")}
	require.True(t, b.PurchaseAverage().Equal(dec("33.33333333")), "average rounds toward negative infinity")
}

func TestBalance_ProfitPercentage(t *testing.T) {
	tests := []struct {
		name    string
		balance Balance
		rate    string
		want    string
	}{
		{name: "break even", balance: Balance{TotalPurchased: dec("2"), TotalPaid: dec("200")}, rate: "100", want: "0"},
		{name: "profit", balance: Balance{TotalPurchased: dec("2"), TotalPaid: dec("200")}, rate: "150", want: "50"},
		{name: "loss", balance: Balance{TotalPurchased: dec("2"), TotalPaid: dec("200")}, rate: "50", want: "-50"},
		{name: "empty balance", balance: Balance{}, rate: "100", want: "0"},
		{name: "zero cost basis gift", balance: Balance{TotalPurchased: dec("2")}, rate: "3", want: "500"},
		{name: "negative sale value", balance: Balance{TotalPurchased: dec("2"), TotalPaid: dec("10")}, rate: "-5", want: "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.balance.ProfitPercentage(dec(tt.rate))
			require.True(t, got.Equal(dec(tt.want)), "got %s, want %s", got, tt.want)
		})
	}
}
