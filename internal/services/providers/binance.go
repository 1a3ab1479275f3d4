package providers

import (
	"context"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/epconsortium/cryptomarket/internal/domain"
)

const historyDays = 30

// Binance fetches quotes from the Binance exchange API. The coin symbol is
// paired with the configured quote currency (e.g. BTC + USDT -> BTCUSDT).
type Binance struct {
	client   *binance.Client
	currency string
}

// NewBinance builds a Binance-backed provider.
func NewBinance(client *binance.Client, currency string) *Binance {
	return &Binance{client: client, currency: currency}
}

// FetchCurrent returns the last traded price of the coin.
func (b *Binance) FetchCurrent(ctx context.Context, symbol string) (decimal.Decimal, error) {
	prices, err := b.client.NewListPricesService().Symbol(b.pair(symbol)).Do(ctx)
	if err != nil {
		return decimal.Decimal{}, errors.Wrapf(err, "fetch price for %s", symbol)
	}
	if len(prices) == 0 {
		return decimal.Decimal{}, errors.Errorf("binance returned no prices for %s", symbol)
	}
	return decimal.NewFromString(prices[0].Price)
}

// FetchHistory returns the last month of daily closing prices.
func (b *Binance) FetchHistory(ctx context.Context, symbol string) (map[domain.Day]decimal.Decimal, error) {
	klines, err := b.client.NewKlinesService().
		Symbol(b.pair(symbol)).
		Interval("1d").
		Limit(historyDays).
		Do(ctx)
	if err != nil {
		return nil, errors.Wrapf(err, "fetch klines for %s", symbol)
	}

	history := make(map[domain.Day]decimal.Decimal, len(klines))
	for i, k := range klines {
		price, err := decimal.NewFromString(k.Close)
		if err != nil {
			return nil, errors.Wrapf(err, "parse close price at index %d", i)
		}
		day := domain.DayOf(time.UnixMilli(k.OpenTime).UTC())
		history[day] = price
	}
	return history, nil
}

func (b *Binance) pair(symbol string) string {
	return symbol + b.currency
}
