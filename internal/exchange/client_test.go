package exchange

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	ccxt "github.com/ccxt/ccxt/go/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rqe/internal/config"
)

type fakeMarketAPI struct {
	mu          sync.Mutex
	tickerCalls int
	tickerErrs  []error
	ticker      ccxt.Ticker
	funding     ccxt.FundingRate
	fundingErr  error
}

func (f *fakeMarketAPI) FetchTicker(symbol string, _ ...ccxt.FetchTickerOptions) (ccxt.Ticker, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tickerCalls++
	if len(f.tickerErrs) > 0 {
		err := f.tickerErrs[0]
		f.tickerErrs = f.tickerErrs[1:]
		if err != nil {
			return ccxt.Ticker{}, err
		}
	}
	return f.ticker, nil
}

func (f *fakeMarketAPI) FetchFundingRate(symbol string, _ ...ccxt.FetchFundingRateOptions) (ccxt.FundingRate, error) {
	if f.fundingErr != nil {
		return ccxt.FundingRate{}, f.fundingErr
	}
	return f.funding, nil
}

func ptr[T any](v T) *T { return &v }

func testExchangeConfig() config.ExchangeConfig {
	return config.ExchangeConfig{
		Retry:   config.RetryConfig{MaxAttempts: 3, MinDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond},
		Breaker: config.BreakerConfig{MaxFailures: 2, OpenTimeout: time.Minute},
	}
}

func networkErr() error {
	return &ccxt.Error{Type: ccxt.NetworkErrorErrType, Message: "connection reset"}
}

func TestClientPrice_RetriesTransientErrors(t *testing.T) {
	api := &fakeMarketAPI{
		tickerErrs: []error{networkErr()},
		ticker:     ccxt.Ticker{Last: ptr(101.5), Timestamp: ptr(int64(1_700_000_000_000))},
	}
	c := newClient(testExchangeConfig(), api, "test", nil)

	q, err := c.Price(context.Background(), "BTC/USDT")
	require.NoError(t, err)
	assert.Equal(t, 101.5, q.Price)
	assert.Equal(t, "BTC/USDT", q.Symbol)
	assert.Equal(t, time.UnixMilli(1_700_000_000_000).UTC(), q.Timestamp)
	assert.Positive(t, q.Latency)
	assert.Equal(t, 2, api.tickerCalls)
}

func TestClientPrice_FallsBackToClose(t *testing.T) {
	api := &fakeMarketAPI{ticker: ccxt.Ticker{Close: ptr(99.0)}}
	c := newClient(testExchangeConfig(), api, "test", nil)

	q, err := c.Price(context.Background(), "ETH/USDT")
	require.NoError(t, err)
	assert.Equal(t, 99.0, q.Price)

	api.ticker = ccxt.Ticker{}
	_, err = c.Price(context.Background(), "ETH/USDT")
	assert.ErrorIs(t, err, ErrNoPrice)
}

func TestClientPrice_MaintenanceIsNotRetried(t *testing.T) {
	api := &fakeMarketAPI{tickerErrs: []error{&ccxt.Error{Type: ccxt.OnMaintenanceErrType}}}
	c := newClient(testExchangeConfig(), api, "test", nil)

	_, err := c.Price(context.Background(), "BTC/USDT")
	assert.ErrorIs(t, err, ErrMaintenance)
	assert.Equal(t, 1, api.tickerCalls)
}

func TestClientPrice_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	api := &fakeMarketAPI{}
	for i := 0; i < 6; i++ {
		api.tickerErrs = append(api.tickerErrs, networkErr())
	}
	c := newClient(testExchangeConfig(), api, "test", nil)

	for i := 0; i < 2; i++ {
		_, err := c.Price(context.Background(), "BTC/USDT")
		require.Error(t, err)
		assert.False(t, errors.Is(err, ErrCircuitOpen))
	}
	calls := api.tickerCalls

	_, err := c.Price(context.Background(), "BTC/USDT")
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, calls, api.tickerCalls, "open breaker must not reach the exchange")
}

func TestClientFundingRate(t *testing.T) {
	api := &fakeMarketAPI{funding: ccxt.FundingRate{FundingRate: ptr(0.0007)}}
	c := newClient(testExchangeConfig(), api, "test", nil)

	fr, err := c.FundingRate(context.Background(), "BTC/USDT:USDT")
	require.NoError(t, err)
	assert.Equal(t, 0.0007, fr.Rate)

	api.fundingErr = &ccxt.Error{Type: ccxt.BadRequestErrType, Message: "bad symbol"}
	_, err = c.FundingRate(context.Background(), "BTC/USDT:USDT")
	assert.Error(t, err)
}

func TestClassify(t *testing.T) {
	assert.True(t, IsRetryable(networkErr()))
	assert.False(t, IsRetryable(context.Canceled))
	assert.False(t, IsRetryable(errors.New("boom")))
	assert.True(t, IsDuplicateOrder(&ccxt.Error{Type: ccxt.InvalidOrderErrType, Message: "Duplicate order sent."}))
	assert.True(t, IsOrderNotFound(&ccxt.Error{Type: ccxt.OrderNotFoundErrType}))
}
