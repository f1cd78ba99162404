package execution

import "math"

const qtyEpsilon = 1e-12

// book 跟踪单个交易对的持仓数量与加权平均成本，只做多，卖出不会开空。
type book struct {
	qty float64
	avg float64
}

func (b *book) buy(qty, fillPrice float64) {
	newQty := b.qty + qty
	if newQty > 0 {
		b.avg = (b.avg*b.qty + fillPrice*qty) / newQty
	} else {
		b.avg = 0
	}
	b.qty = newQty
}

// sell 返回已实现盈亏，无持仓时卖出只计手续费。
func (b *book) sell(qty, fillPrice, fee float64) float64 {
	if b.qty <= 0 {
		return -fee
	}
	closed := math.Min(qty, b.qty)
	pnl := (fillPrice-b.avg)*closed - fee
	b.qty -= closed
	if b.qty <= qtyEpsilon {
		b.qty = 0
		b.avg = 0
	}
	return pnl
}

func (b *book) position(symbol string) Position {
	return Position{Symbol: symbol, Qty: b.qty, AvgCost: b.avg}
}
