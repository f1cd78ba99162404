package execution

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"rqe/internal/config"
)

// PaperBroker 在本地模拟成交，按滑点调整价格并计算手续费。
type PaperBroker struct {
	feeBps float64
	logger *zap.Logger

	mu       sync.Mutex
	books    map[string]*book
	fills    *fillCache
	realized float64
	now      func() time.Time
}

// NewPaperBroker 创建模拟执行器。
func NewPaperBroker(cfg config.PaperConfig, logger *zap.Logger) *PaperBroker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PaperBroker{
		feeBps: cfg.FeeBps,
		logger: logger,
		books:  make(map[string]*book),
		fills:  newFillCache(fillCacheSize),
		now:    time.Now,
	}
}

// Mode 返回执行模式。
func (p *PaperBroker) Mode() string {
	return config.ModePaper
}

// Buy 模拟买入，买入不产生已实现盈亏。
func (p *PaperBroker) Buy(_ context.Context, req OrderRequest) (Fill, error) {
	if err := validate(req); err != nil {
		return Fill{}, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if fill, ok := p.fills.get(req.ClientOrderID); ok {
		return fill, nil
	}

	fillPx := buyPrice(req.Price, req.SlippageBps)
	fee := feeFor(req.Qty*fillPx, p.feeBps)
	p.bookFor(req.Symbol).buy(req.Qty, fillPx)

	return p.record(Fill{
		Symbol:        req.Symbol,
		Side:          SideBuy,
		Qty:           req.Qty,
		Price:         fillPx,
		Fee:           fee,
		SlippageBps:   req.SlippageBps,
		ClientOrderID: req.ClientOrderID,
		Status:        "filled",
	}), nil
}

// Sell 模拟卖出，仅对已有多头实现盈亏。
func (p *PaperBroker) Sell(_ context.Context, req OrderRequest) (Fill, error) {
	if err := validate(req); err != nil {
		return Fill{}, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if fill, ok := p.fills.get(req.ClientOrderID); ok {
		return fill, nil
	}

	return p.sellLocked(req), nil
}

// Flatten 清空 symbol 的多头。
func (p *PaperBroker) Flatten(_ context.Context, req OrderRequest) (Fill, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if fill, ok := p.fills.get(req.ClientOrderID); ok {
		return fill, nil
	}

	b := p.bookFor(req.Symbol)
	if b.qty <= 0 {
		return Fill{
			Symbol:        req.Symbol,
			Side:          SideFlat,
			Price:         req.Price,
			ClientOrderID: req.ClientOrderID,
			ExecutedAt:    p.now().UTC(),
		}, nil
	}

	req.Qty = b.qty
	req.SlippageBps = FlattenSlippageBps
	return p.sellLocked(req), nil
}

// Position 返回 symbol 当前持仓。
func (p *PaperBroker) Position(symbol string) Position {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.bookFor(symbol).position(symbol)
}

// Realized 返回累计已实现盈亏。
func (p *PaperBroker) Realized() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.realized
}

func (p *PaperBroker) sellLocked(req OrderRequest) Fill {
	fillPx := sellPrice(req.Price, req.SlippageBps)
	fee := feeFor(req.Qty*fillPx, p.feeBps)
	pnl := p.bookFor(req.Symbol).sell(req.Qty, fillPx, fee)

	return p.record(Fill{
		Symbol:        req.Symbol,
		Side:          SideSell,
		Qty:           req.Qty,
		Price:         fillPx,
		Fee:           fee,
		PnL:           pnl,
		SlippageBps:   req.SlippageBps,
		ClientOrderID: req.ClientOrderID,
		Status:        "filled",
	})
}

func (p *PaperBroker) record(fill Fill) Fill {
	fill.ExecutedAt = p.now().UTC()
	p.realized += fill.PnL
	p.fills.put(fill)
	p.logger.Debug("模拟成交",
		zap.String("symbol", fill.Symbol),
		zap.String("side", string(fill.Side)),
		zap.Float64("qty", fill.Qty),
		zap.Float64("price", fill.Price),
		zap.Float64("fee", fill.Fee),
		zap.Float64("pnl", fill.PnL),
	)
	return fill
}

func (p *PaperBroker) bookFor(symbol string) *book {
	b, ok := p.books[symbol]
	if !ok {
		b = &book{}
		p.books[symbol] = b
	}
	return b
}
