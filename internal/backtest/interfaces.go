package backtest

import (
	"context"
	"time"
)

// Bar 为一个回放时点的行情。
type Bar struct {
	TS      time.Time
	Spot    float64
	PairA   float64
	PairB   float64
	Funding float64
}

// Provider 按时间顺序提供行情。
type Provider interface {
	Next(ctx context.Context) (Bar, bool, error)
}
