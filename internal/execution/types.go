package execution

import (
	"errors"
	"time"
)

// ErrInvalidOrder 表示委托参数非法。
var ErrInvalidOrder = errors.New("execution: invalid order")

// ErrNotFilled 表示订单在交易所未成交。
var ErrNotFilled = errors.New("execution: order not filled")

// FlattenSlippageBps 平仓时使用的固定滑点。
const FlattenSlippageBps = 10.0

// Side 表示成交方向。
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
	SideFlat Side = "flat"
)

// OrderRequest 为一次按数量下单的请求。
type OrderRequest struct {
	Symbol        string
	Qty           float64
	Price         float64 // 参考价格，成交价在此基础上加减滑点
	SlippageBps   float64
	ClientOrderID string
}

// Fill 为一次执行的不可变结果。
type Fill struct {
	Symbol        string    `json:"symbol"`
	Side          Side      `json:"side"`
	Qty           float64   `json:"qty"`
	Price         float64   `json:"price"`
	Fee           float64   `json:"fee"`
	PnL           float64   `json:"pnl"`
	SlippageBps   float64   `json:"slippage_bps"`
	ClientOrderID string    `json:"client_order_id"`
	OrderID       string    `json:"order_id,omitempty"`
	Status        string    `json:"status,omitempty"`
	ExecutedAt    time.Time `json:"executed_at"`
}

// Position 为单个交易对的持仓快照。
type Position struct {
	Symbol  string  `json:"symbol"`
	Qty     float64 `json:"qty"`
	AvgCost float64 `json:"avg_cost"`
}

func validate(req OrderRequest) error {
	if req.Symbol == "" {
		return errors.Join(ErrInvalidOrder, errors.New("symbol 不能为空"))
	}
	if req.Qty <= 0 {
		return errors.Join(ErrInvalidOrder, errors.New("qty 必须大于0"))
	}
	if req.Price <= 0 {
		return errors.Join(ErrInvalidOrder, errors.New("price 必须大于0"))
	}
	if req.SlippageBps < 0 {
		return errors.Join(ErrInvalidOrder, errors.New("slippage 不能为负"))
	}
	return nil
}

func buyPrice(price, slipBps float64) float64 {
	return price * (1 + slipBps/10_000)
}

func sellPrice(price, slipBps float64) float64 {
	return price * (1 - slipBps/10_000)
}

func feeFor(notional, feeBps float64) float64 {
	return notional * (feeBps / 10_000)
}
