package backtest

import (
	"math"

	"rqe/internal/indicator"
)

// Metrics 记录回测绩效指标。
type Metrics struct {
	TotalReturn float64
	MaxDrawdown float64
	SharpeRatio float64
	Volatility  float64 // 年化收益波动
}

func calculateMetrics(equity []float64, returns []float64, periodsPerYear float64) Metrics {
	if len(equity) == 0 {
		return Metrics{}
	}

	m := Metrics{MaxDrawdown: computeDrawdown(equity)}
	if first := equity[0]; first > 0 {
		m.TotalReturn = equity[len(equity)-1]/first - 1
	}
	if len(returns) >= 2 {
		_, std := indicator.SampleStdDev(returns)
		m.Volatility = std * math.Sqrt(periodsPerYear)
	}
	m.SharpeRatio = computeSharpe(returns, periodsPerYear)
	return m
}

// computeDrawdown 返回相对历史峰值的最大回撤比例。
func computeDrawdown(equity []float64) float64 {
	peak := math.Inf(-1)
	worst := 0.0
	for _, v := range equity {
		peak = math.Max(peak, v)
		if peak <= 0 {
			continue
		}
		worst = math.Max(worst, (peak-v)/peak)
	}
	return worst
}

// computeSharpe 以无风险利率为0计算年化夏普。
func computeSharpe(returns []float64, periodsPerYear float64) float64 {
	if len(returns) < 2 {
		return 0
	}
	mean, std := indicator.SampleStdDev(returns)
	if std == 0 {
		return 0
	}
	return mean / std * math.Sqrt(periodsPerYear)
}
