package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRateTable_CoinValue(t *testing.T) {
	day := Day{Year: 2026, Month: 8, Date: 31}
	table := NewRateTable(day).WithValue("btc", dec("100"))

	price := table.CoinValue("BTC")
	require.True(t, price.Known())
	v, ok := price.Value()
	require.True(t, ok)
	require.True(t, v.Equal(dec("100")))

	t.Run("symbols are case-insensitive", func(t *testing.T) {
		require.True(t, table.CoinValue("btc").Known())
	})

	t.Run("unknown coin keeps the legacy sentinel at the boundary", func(t *testing.T) {
		price := table.CoinValue("DOGE")
		require.False(t, price.Known())
		require.True(t, price.Decimal().Equal(dec("-1")))
	})

	t.Run("nil table is safe", func(t *testing.T) {
		var nilTable *RateTable
		require.False(t, nilTable.CoinValue("BTC").Known())
	})
}

func TestRateTable_WithValueIsCopyOnWrite(t *testing.T) {
	day := Day{Year: 2026, Month: 8, Date: 31}
	original := NewRateTable(day).WithValue("BTC", dec("100"))
	updated := original.WithValue("BTC", dec("200"))

	v, _ := original.CoinValue("BTC").Value()
	require.True(t, v.Equal(dec("100")), "published table must not change")
	v, _ = updated.CoinValue("BTC").Value()
	require.True(t, v.Equal(dec("200")))
}

func TestDay(t *testing.T) {
	day := DayOf(time.Date(2026, time.August, 31, 15, 4, 5, 0, time.UTC))
	require.Equal(t, "2026-08-31", day.String())
	require.True(t, day.AddDays(1).After(day))
	require.True(t, day.Before(day.AddDays(1)))
	require.False(t, day.After(day))

	parsed, err := ParseDay("2026-08-31")
	require.NoError(t, err)
	require.Equal(t, day, parsed)

	_, err = ParseDay("31/08/2026")
	require.Error(t, err)
}

func TestDay_JSONMapKey(t *testing.T) {
	in := map[Day]string{{Year: 2026, Month: 8, Date: 31}: "x"}

	raw, err := json.Marshal(in)
	require.NoError(t, err)
	require.JSONEq(t, `{"2026-08-31":"x"}`, string(raw))

	out := make(map[Day]string)
	require.NoError(t, json.Unmarshal(raw, &out))
	require.Equal(t, in, out)
}
