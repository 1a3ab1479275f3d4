// Package providers contains the market-data backends the rate service can
// fetch quotes from.
package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/PaesslerAG/jsonpath"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/epconsortium/cryptomarket/internal/domain"
)

const (
	alphaVantageBaseURL = "https://www.alphavantage.co/query"
	userAgent           = "Mozilla/5.0"
	httpTimeout         = 30 * time.Second
)

// ErrQuotaExceeded is returned when the provider answers with a throttling
// note instead of data. The refresh cycle records it like any other fetch
// failure.
var ErrQuotaExceeded = errors.New("provider request quota exceeded")

// AlphaVantage fetches quotes from the AlphaVantage HTTP API. Responses are
// plain JSON objects with verbose keys, extracted via jsonpath.
type AlphaVantage struct {
	client   *http.Client
	baseURL  string
	apiKey   string
	currency string
}

// NewAlphaVantage builds a provider quoting coins in the given physical
// currency (e.g. "USD").
func NewAlphaVantage(apiKey, currency string) *AlphaVantage {
	return &AlphaVantage{
		client:   &http.Client{Timeout: httpTimeout},
		baseURL:  alphaVantageBaseURL,
		apiKey:   apiKey,
		currency: currency,
	}
}

// FetchCurrent returns the spot exchange rate of the coin.
func (a *AlphaVantage) FetchCurrent(ctx context.Context, symbol string) (decimal.Decimal, error) {
	params := url.Values{}
	params.Set("function", "CURRENCY_EXCHANGE_RATE")
	params.Set("from_currency", symbol)
	params.Set("to_currency", a.currency)
	params.Set("apikey", a.apiKey)

	payload, err := a.get(ctx, params)
	if err != nil {
		return decimal.Decimal{}, err
	}

	raw, err := jsonpath.Get(`$["Realtime Currency Exchange Rate"]["5. Exchange Rate"]`, payload)
	if err != nil {
		return decimal.Decimal{}, quotaOrMalformed(payload, err)
	}
	str, ok := raw.(string)
	if !ok {
		return decimal.Decimal{}, errors.Errorf("unexpected exchange rate payload type %T", raw)
	}
	price, err := decimal.NewFromString(str)
	if err != nil {
		return decimal.Decimal{}, errors.Wrapf(err, "parse exchange rate %q for %s", str, symbol)
	}
	return price, nil
}

// FetchHistory returns past daily closing rates of the coin.
func (a *AlphaVantage) FetchHistory(ctx context.Context, symbol string) (map[domain.Day]decimal.Decimal, error) {
	params := url.Values{}
	params.Set("function", "DIGITAL_CURRENCY_DAILY")
	params.Set("symbol", symbol)
	params.Set("market", a.currency)
	params.Set("apikey", a.apiKey)

	payload, err := a.get(ctx, params)
	if err != nil {
		return nil, err
	}

	raw, err := jsonpath.Get(`$["Time Series (Digital Currency Daily)"]`, payload)
	if err != nil {
		return nil, quotaOrMalformed(payload, err)
	}
	series, ok := raw.(map[string]any)
	if !ok {
		return nil, errors.Errorf("unexpected time series payload type %T", raw)
	}

	closeKey := fmt.Sprintf("4a. close (%s)", a.currency)
	history := make(map[domain.Day]decimal.Decimal, len(series))
	for dateStr, entry := range series {
		day, err := domain.ParseDay(dateStr)
		if err != nil {
			return nil, err
		}
		values, ok := entry.(map[string]any)
		if !ok {
			return nil, errors.Errorf("unexpected day entry type %T for %s", entry, dateStr)
		}
		closeStr, ok := values[closeKey].(string)
		if !ok {
			return nil, errors.Errorf("missing closing price for %s on %s", symbol, dateStr)
		}
		price, err := decimal.NewFromString(closeStr)
		if err != nil {
			return nil, errors.Wrapf(err, "parse closing price %q for %s", closeStr, symbol)
		}
		history[day] = price
	}
	return history, nil
}

func (a *AlphaVantage) get(ctx context.Context, params url.Values) (any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, errors.Errorf("unexpected status %d", resp.StatusCode)
	}

	var payload any
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, errors.Wrap(err, "decode response")
	}
	return payload, nil
}

// quotaOrMalformed distinguishes the throttling "Note" answer from a payload
// that is simply broken.
func quotaOrMalformed(payload any, cause error) error {
	if obj, ok := payload.(map[string]any); ok {
		if note, ok := obj["Note"].(string); ok {
			return errors.Wrap(ErrQuotaExceeded, note)
		}
	}
	return errors.Wrap(cause, "malformed provider response")
}
