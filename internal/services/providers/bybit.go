package providers

import (
	"context"
	"strconv"
	"time"

	bybit "github.com/hirokisan/bybit/v2"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/epconsortium/cryptomarket/internal/domain"
)

// Bybit fetches quotes from the Bybit V5 spot API.
type Bybit struct {
	client   *bybit.Client
	currency string
}

// NewBybit builds a Bybit-backed provider.
func NewBybit(client *bybit.Client, currency string) *Bybit {
	return &Bybit{client: client, currency: currency}
}

// FetchCurrent returns the last traded spot price of the coin.
func (b *Bybit) FetchCurrent(ctx context.Context, symbol string) (decimal.Decimal, error) {
	pair := bybit.SymbolV5(symbol + b.currency)

	result, err := b.client.V5().Market().GetTickers(bybit.V5GetTickersParam{
		Category: bybit.CategoryV5Spot,
		Symbol:   &pair,
	})
	if err != nil {
		return decimal.Decimal{}, errors.Wrapf(err, "fetch ticker for %s", symbol)
	}
	if len(result.Result.Spot.List) == 0 {
		return decimal.Decimal{}, errors.Errorf("bybit returned no prices for %s", symbol)
	}
	return decimal.NewFromString(result.Result.Spot.List[0].LastPrice)
}

// FetchHistory returns the last month of daily closing prices.
func (b *Bybit) FetchHistory(ctx context.Context, symbol string) (map[domain.Day]decimal.Decimal, error) {
	limit := historyDays

	result, err := b.client.V5().Market().GetKline(bybit.V5GetKlineParam{
		Category: bybit.CategoryV5Spot,
		Symbol:   bybit.SymbolV5(symbol + b.currency),
		Interval: bybit.IntervalD,
		Limit:    &limit,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "fetch klines for %s", symbol)
	}

	history := make(map[domain.Day]decimal.Decimal, len(result.Result.List))
	for i, k := range result.Result.List {
		price, err := decimal.NewFromString(k.Close)
		if err != nil {
			return nil, errors.Wrapf(err, "parse close price at index %d", i)
		}
		startMs, err := strconv.ParseInt(k.StartTime, 10, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "parse kline start time at index %d", i)
		}
		day := domain.DayOf(time.UnixMilli(startMs).UTC())
		history[day] = price
	}
	return history, nil
}
