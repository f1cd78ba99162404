package exchange

import (
	"context"
	"time"
)

// Quote 为一次报价查询结果，Latency 为整次调用耗时。
type Quote struct {
	Symbol    string
	Price     float64
	Latency   time.Duration
	Timestamp time.Time
}

// FundingRate 为永续合约的当前资金费率。
type FundingRate struct {
	Symbol    string
	Rate      float64
	Timestamp time.Time
}

// PriceSource 提供最新成交价。
type PriceSource interface {
	Price(ctx context.Context, symbol string) (Quote, error)
}

// FundingSource 提供资金费率。
type FundingSource interface {
	FundingRate(ctx context.Context, symbol string) (FundingRate, error)
}

// SnapshotRequest 描述一次决策周期需要的全部行情。
type SnapshotRequest struct {
	Spot  string
	PairA string
	PairB string
	// Perp 为空时不查询资金费率。
	Perp string
}

// MarketSnapshot 为一次决策周期使用的行情快照。
type MarketSnapshot struct {
	Spot        Quote
	PairA       Quote
	PairB       Quote
	Funding     float64
	HasFunding  bool
	Latency     time.Duration // 所有报价中的最大耗时
	RetrievedAt time.Time
}
