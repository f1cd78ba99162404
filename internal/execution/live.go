package execution

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	ccxt "github.com/ccxt/ccxt/go/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"rqe/internal/config"
	"rqe/internal/exchange"
)

type orderClient interface {
	CreateLimitOrder(symbol string, side string, amount float64, price float64, options ...ccxt.CreateLimitOrderOptions) (ccxt.Order, error)
	FetchOrder(id string, options ...ccxt.FetchOrderOptions) (ccxt.Order, error)
	CancelOrder(id string, options ...ccxt.CancelOrderOptions) (ccxt.Order, error)
}

// NewClientOrderID 生成交易所可接受的客户端订单号。
func NewClientOrderID() string {
	return "rqe" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// NewBinanceOrderClient 构造用于实盘下单的 Binance 现货客户端，节流由 Pacer 负责。
func NewBinanceOrderClient(cfg config.ExchangeConfig) *ccxt.Binance {
	userConfig := map[string]interface{}{
		"enableRateLimit": false,
		"apiKey":          cfg.APIKey,
		"secret":          cfg.APISecret,
		"options": map[string]interface{}{
			"adjustForTimeDifference": true,
			"defaultType":             "spot",
		},
	}
	if cfg.Timeout > 0 {
		userConfig["timeout"] = cfg.Timeout.Milliseconds()
	}
	ex := ccxt.NewBinance(userConfig)
	if cfg.UseSandbox {
		ex.SetSandboxMode(true)
	}
	return ex
}

// LiveBroker 通过交易所限价单执行，按客户端订单号保证幂等。
type LiveBroker struct {
	client orderClient
	pacer  *Pacer
	feeBps float64
	retry  config.RetryConfig
	logger *zap.Logger

	mu    sync.Mutex
	books map[string]*book
	fills *fillCache
	now   func() time.Time
}

// NewLiveBroker 创建实盘执行器。
func NewLiveBroker(client orderClient, cfg config.ExchangeConfig, logger *zap.Logger) *LiveBroker {
	if logger == nil {
		logger = zap.NewNop()
	}
	retry := cfg.Retry
	if retry.MaxAttempts <= 0 {
		retry.MaxAttempts = 3
	}
	if retry.MinDelay <= 0 {
		retry.MinDelay = time.Second
	}
	if retry.MaxDelay < retry.MinDelay {
		retry.MaxDelay = retry.MinDelay
	}
	return &LiveBroker{
		client: client,
		pacer:  NewPacer(cfg.RequestsPerSecond),
		feeBps: cfg.FeeBps,
		retry:  retry,
		logger: logger,
		books:  make(map[string]*book),
		fills:  newFillCache(fillCacheSize),
		now:    time.Now,
	}
}

// Mode 返回执行模式。
func (b *LiveBroker) Mode() string {
	return config.ModeLive
}

// Buy 提交可立即成交的限价买单。
func (b *LiveBroker) Buy(ctx context.Context, req OrderRequest) (Fill, error) {
	return b.submit(ctx, SideBuy, req)
}

// Sell 提交可立即成交的限价卖单。
func (b *LiveBroker) Sell(ctx context.Context, req OrderRequest) (Fill, error) {
	return b.submit(ctx, SideSell, req)
}

// Flatten 卖出本地记录的全部多头。
func (b *LiveBroker) Flatten(ctx context.Context, req OrderRequest) (Fill, error) {
	pos := b.Position(req.Symbol)
	if pos.Qty <= 0 {
		return Fill{
			Symbol:        req.Symbol,
			Side:          SideFlat,
			Price:         req.Price,
			ClientOrderID: req.ClientOrderID,
			ExecutedAt:    b.now().UTC(),
		}, nil
	}
	req.Qty = pos.Qty
	req.SlippageBps = FlattenSlippageBps
	return b.submit(ctx, SideSell, req)
}

// Position 返回 symbol 当前持仓。
func (b *LiveBroker) Position(symbol string) Position {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.bookFor(symbol).position(symbol)
}

// Cancel 按客户端订单号撤单。
func (b *LiveBroker) Cancel(ctx context.Context, symbol, clientOrderID string) error {
	if clientOrderID == "" {
		return fmt.Errorf("%w: client order id 不能为空", ErrInvalidOrder)
	}
	if err := b.pacer.Wait(ctx); err != nil {
		return err
	}
	_, err := b.client.CancelOrder("",
		ccxt.WithCancelOrderSymbol(symbol),
		ccxt.WithCancelOrderParams(map[string]interface{}{"origClientOrderId": clientOrderID}),
	)
	if err != nil {
		return fmt.Errorf("execution: 撤单失败: %w", err)
	}
	b.logger.Info("已撤单", zap.String("symbol", symbol), zap.String("client_order_id", clientOrderID))
	return nil
}

func (b *LiveBroker) submit(ctx context.Context, side Side, req OrderRequest) (Fill, error) {
	if err := validate(req); err != nil {
		return Fill{}, err
	}
	if req.ClientOrderID == "" {
		req.ClientOrderID = NewClientOrderID()
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if fill, ok := b.fills.get(req.ClientOrderID); ok {
		return fill, nil
	}

	limit := buyPrice(req.Price, req.SlippageBps)
	if side == SideSell {
		limit = sellPrice(req.Price, req.SlippageBps)
	}

	order, err := b.placeWithRetry(ctx, side, req, limit)
	if err != nil {
		return Fill{}, err
	}

	qty, err := filledQty(order, req.Qty)
	if err != nil {
		b.logger.Warn("订单未成交，不计入持仓",
			zap.String("symbol", req.Symbol),
			zap.String("client_order_id", req.ClientOrderID),
			zap.String("status", deref(order.Status)),
		)
		return Fill{}, err
	}
	if qty < req.Qty {
		b.logger.Warn("订单部分成交",
			zap.String("client_order_id", req.ClientOrderID),
			zap.Float64("requested", req.Qty),
			zap.Float64("filled", qty),
		)
	}

	fillPx := orderPrice(order, limit)
	fee := feeFor(qty*fillPx, b.feeBps)
	bk := b.bookFor(req.Symbol)

	var pnl float64
	if side == SideBuy {
		bk.buy(qty, fillPx)
	} else {
		pnl = bk.sell(qty, fillPx, fee)
	}

	fill := Fill{
		Symbol:        req.Symbol,
		Side:          side,
		Qty:           qty,
		Price:         fillPx,
		Fee:           fee,
		PnL:           pnl,
		SlippageBps:   req.SlippageBps,
		ClientOrderID: req.ClientOrderID,
		OrderID:       deref(order.Id),
		Status:        deref(order.Status),
		ExecutedAt:    b.now().UTC(),
	}
	b.fills.put(fill)

	b.logger.Info("实盘成交",
		zap.String("symbol", fill.Symbol),
		zap.String("side", string(fill.Side)),
		zap.Float64("qty", fill.Qty),
		zap.Float64("price", fill.Price),
		zap.String("client_order_id", fill.ClientOrderID),
		zap.String("order_id", fill.OrderID),
	)
	return fill, nil
}

func (b *LiveBroker) placeWithRetry(ctx context.Context, side Side, req OrderRequest, limit float64) (ccxt.Order, error) {
	// 同一请求的所有重试共用一个客户端订单号
	params := limitOrderParams(req.ClientOrderID)

	wait := b.retry.MinDelay
	var err error
	for attempt := 1; attempt <= b.retry.MaxAttempts; attempt++ {
		if waitErr := b.pacer.Wait(ctx); waitErr != nil {
			return ccxt.Order{}, waitErr
		}

		var order ccxt.Order
		order, err = b.client.CreateLimitOrder(req.Symbol, string(side), req.Qty, limit,
			ccxt.WithCreateLimitOrderParams(params))
		if err == nil {
			return order, nil
		}

		if exchange.IsDuplicateOrder(err) {
			order, found, lookupErr := b.lookup(ctx, req)
			if lookupErr != nil {
				return ccxt.Order{}, lookupErr
			}
			if found {
				return order, nil
			}
			return ccxt.Order{}, fmt.Errorf("execution: 重复订单但查询不到: %w", err)
		}

		if !exchange.IsRetryable(err) {
			return ccxt.Order{}, fmt.Errorf("execution: 下单失败: %w", err)
		}

		// 请求可能已被交易所接收，重发前先按客户端订单号确认
		if order, found, lookupErr := b.lookup(ctx, req); lookupErr == nil && found {
			return order, nil
		}

		if attempt == b.retry.MaxAttempts {
			break
		}

		b.logger.Warn("下单失败，准备重试",
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.String("client_order_id", req.ClientOrderID),
			zap.Error(err),
		)

		select {
		case <-ctx.Done():
			return ccxt.Order{}, ctx.Err()
		case <-time.After(wait):
		}

		wait *= 2
		if wait > b.retry.MaxDelay {
			wait = b.retry.MaxDelay
		}
	}

	return ccxt.Order{}, fmt.Errorf("execution: 重试后仍下单失败: %w", err)
}

func limitOrderParams(clientOrderID string) map[string]interface{} {
	return map[string]interface{}{
		"newClientOrderId": clientOrderID,
		"timeInForce":      "IOC",
	}
}

func (b *LiveBroker) lookup(ctx context.Context, req OrderRequest) (ccxt.Order, bool, error) {
	if err := b.pacer.Wait(ctx); err != nil {
		return ccxt.Order{}, false, err
	}
	order, err := b.client.FetchOrder("",
		ccxt.WithFetchOrderSymbol(req.Symbol),
		ccxt.WithFetchOrderParams(map[string]interface{}{"origClientOrderId": req.ClientOrderID}),
	)
	if err != nil {
		if exchange.IsOrderNotFound(err) {
			return ccxt.Order{}, false, nil
		}
		return ccxt.Order{}, false, err
	}
	return order, true, nil
}

func (b *LiveBroker) bookFor(symbol string) *book {
	bk, ok := b.books[symbol]
	if !ok {
		bk = &book{}
		b.books[symbol] = bk
	}
	return bk
}

// filledQty 返回交易所确认的成交数量，IOC 单未成交部分已被撤销。
func filledQty(order ccxt.Order, requested float64) (float64, error) {
	status := deref(order.Status)
	if order.Filled != nil {
		filled := *order.Filled
		if filled <= 0 {
			return 0, fmt.Errorf("%w: status=%q", ErrNotFilled, status)
		}
		return math.Min(filled, requested), nil
	}
	if status == "closed" {
		return requested, nil
	}
	return 0, fmt.Errorf("%w: status=%q", ErrNotFilled, status)
}

func orderPrice(order ccxt.Order, fallback float64) float64 {
	if order.Average != nil && *order.Average > 0 {
		return *order.Average
	}
	if order.Price != nil && *order.Price > 0 {
		return *order.Price
	}
	return fallback
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
