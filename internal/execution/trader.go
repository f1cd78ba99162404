package execution

import "context"

// Broker 抽象执行端，便于切换模拟与实盘。
type Broker interface {
	Mode() string
	Buy(ctx context.Context, req OrderRequest) (Fill, error)
	Sell(ctx context.Context, req OrderRequest) (Fill, error)
	// Flatten 以固定滑点卖出 symbol 的全部多头，无持仓时返回零数量的 flat 成交。
	Flatten(ctx context.Context, req OrderRequest) (Fill, error)
	Position(symbol string) Position
}

var (
	_ Broker = (*PaperBroker)(nil)
	_ Broker = (*LiveBroker)(nil)
)
