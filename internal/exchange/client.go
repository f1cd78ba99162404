package exchange

import (
	"context"
	"errors"
	"fmt"
	"time"

	ccxt "github.com/ccxt/ccxt/go/v4"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"rqe/internal/config"
)

// marketAPI 为 ccxt 行情接口的最小子集，便于测试替换。
type marketAPI interface {
	FetchTicker(symbol string, options ...ccxt.FetchTickerOptions) (ccxt.Ticker, error)
	FetchFundingRate(symbol string, options ...ccxt.FetchFundingRateOptions) (ccxt.FundingRate, error)
}

// Client 负责与交易所交互并实现重试与熔断。
type Client struct {
	cfg     config.ExchangeConfig
	logger  *zap.Logger
	api     marketAPI
	breaker *gobreaker.CircuitBreaker
}

var (
	_ PriceSource   = (*Client)(nil)
	_ FundingSource = (*Client)(nil)
)

// NewSpotClient 构造 Binance 现货行情客户端。
func NewSpotClient(cfg config.ExchangeConfig, logger *zap.Logger) *Client {
	ex := ccxt.NewBinance(userConfig(cfg, "spot"))
	if cfg.UseSandbox {
		ex.SetSandboxMode(true)
	}
	return newClient(cfg, ex, "binance-spot", logger)
}

// NewFuturesClient 构造 Binance USDⓈ-M 客户端，用于查询资金费率。
func NewFuturesClient(cfg config.ExchangeConfig, logger *zap.Logger) *Client {
	ex := ccxt.NewBinanceusdm(userConfig(cfg, "future"))
	if cfg.UseSandbox {
		ex.SetSandboxMode(true)
	}
	return newClient(cfg, ex, "binance-usdm", logger)
}

func userConfig(cfg config.ExchangeConfig, defaultType string) map[string]interface{} {
	uc := map[string]interface{}{
		"enableRateLimit": true,
		"options": map[string]interface{}{
			"adjustForTimeDifference": true,
			"defaultType":             defaultType,
		},
	}
	if cfg.Timeout > 0 {
		uc["timeout"] = cfg.Timeout.Milliseconds()
	}
	if cfg.APIKey != "" {
		uc["apiKey"] = cfg.APIKey
	}
	if cfg.APISecret != "" {
		uc["secret"] = cfg.APISecret
	}
	return uc
}

func newClient(cfg config.ExchangeConfig, api marketAPI, name string, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("client", name))

	maxFailures := cfg.Breaker.MaxFailures
	if maxFailures == 0 {
		maxFailures = 5
	}
	openTimeout := cfg.Breaker.OpenTimeout
	if openTimeout <= 0 {
		openTimeout = 30 * time.Second
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     openTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("熔断器状态变化",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	return &Client{
		cfg:     cfg,
		logger:  logger,
		api:     api,
		breaker: breaker,
	}
}

// Price 查询 symbol 的最新成交价，并返回整次调用耗时。
func (c *Client) Price(ctx context.Context, symbol string) (Quote, error) {
	start := time.Now()

	var ticker ccxt.Ticker
	err := c.call(ctx, "fetch_ticker", func() error {
		result, err := c.api.FetchTicker(symbol)
		if err != nil {
			return err
		}
		ticker = result
		return nil
	})
	if err != nil {
		return Quote{}, err
	}

	price, ok := tickerPrice(ticker)
	if !ok {
		return Quote{}, fmt.Errorf("%w: %s", ErrNoPrice, symbol)
	}

	ts := time.Now().UTC()
	if ticker.Timestamp != nil {
		ts = time.UnixMilli(*ticker.Timestamp).UTC()
	}

	return Quote{
		Symbol:    symbol,
		Price:     price,
		Latency:   time.Since(start),
		Timestamp: ts,
	}, nil
}

// FundingRate 查询永续合约的当前资金费率。
func (c *Client) FundingRate(ctx context.Context, symbol string) (FundingRate, error) {
	var raw ccxt.FundingRate
	err := c.call(ctx, "fetch_funding_rate", func() error {
		result, err := c.api.FetchFundingRate(symbol)
		if err != nil {
			return err
		}
		raw = result
		return nil
	})
	if err != nil {
		return FundingRate{}, err
	}

	fr := FundingRate{Symbol: symbol, Timestamp: time.Now().UTC()}
	if raw.FundingRate != nil {
		fr.Rate = *raw.FundingRate
	}
	if raw.Timestamp != nil {
		fr.Timestamp = time.UnixMilli(*raw.Timestamp).UTC()
	}
	return fr, nil
}

func tickerPrice(t ccxt.Ticker) (float64, bool) {
	if t.Last != nil && *t.Last > 0 {
		return *t.Last, true
	}
	if t.Close != nil && *t.Close > 0 {
		return *t.Close, true
	}
	return 0, false
}

// call 在熔断器保护下执行带重试的调用。
func (c *Client) call(ctx context.Context, operation string, fn func() error) error {
	_, err := c.breaker.Execute(func() (interface{}, error) {
		return nil, c.callWithRetry(ctx, operation, fn)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %s", ErrCircuitOpen, operation)
	}
	return err
}

func (c *Client) callWithRetry(ctx context.Context, operation string, fn func() error) error {
	attempt := 0
	delay := c.cfg.Retry.MinDelay
	if delay <= 0 {
		delay = 200 * time.Millisecond
	}
	maxDelay := c.cfg.Retry.MaxDelay
	if maxDelay <= 0 {
		maxDelay = 2 * time.Second
	}
	maxAttempts := c.cfg.Retry.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	for {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		attempt++
		start := time.Now()
		err := fn()
		duration := time.Since(start)
		if err == nil {
			if attempt > 1 {
				c.logger.Info("交易所调用重试后成功",
					zap.String("operation", operation),
					zap.Int("attempts", attempt),
					zap.Duration("latency", duration),
				)
			}
			return nil
		}

		normalizedErr, retry := Classify(err)

		if errors.Is(normalizedErr, ErrMaintenance) {
			c.logger.Warn("交易所维护中",
				zap.String("operation", operation),
				zap.Error(normalizedErr),
			)
			return normalizedErr
		}

		if !retry || attempt >= maxAttempts {
			c.logger.Error("交易所调用失败",
				zap.String("operation", operation),
				zap.Int("attempts", attempt),
				zap.Duration("latency", duration),
				zap.Error(normalizedErr),
			)
			return normalizedErr
		}

		wait := delay
		if wait > maxDelay {
			wait = maxDelay
		}

		c.logger.Warn("交易所调用失败，等待重试",
			zap.String("operation", operation),
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(normalizedErr),
		)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		delay *= 2
		if delay > maxDelay {
			delay = maxDelay
		}
	}
}
