package rates

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/epconsortium/cryptomarket/internal/domain"
)

// PriceProvider fetches quotes from an external market-data source. Both
// calls count against the provider's request quota; the service gates every
// call through the shared RequestLimiter.
type PriceProvider interface {
	// FetchCurrent returns the spot price of the coin in base currency.
	FetchCurrent(ctx context.Context, symbol string) (decimal.Decimal, error)
	// FetchHistory returns past daily closing prices of the coin.
	FetchHistory(ctx context.Context, symbol string) (map[domain.Day]decimal.Decimal, error)
}

// rateCache persists fetched quotes so they survive a restart.
type rateCache interface {
	Load(symbol string) (map[domain.Day]domain.CachedRate, error)
	Save(symbol string, entries map[domain.Day]domain.CachedRate) error
}
