package portfolio

import "math"

// 策略名称，同时用作资金分配与流水中的标识。
const (
	StrategyTrend   = "trend"
	StrategyPairs   = "pairs"
	StrategyFunding = "funding"
)

const weightEpsilon = 1e-9

// Weights 为未归一化的策略权重。
type Weights struct {
	Trend   float64
	Pairs   float64
	Funding float64
}

// Allocation 为各策略分得的美元预算。
type Allocation map[string]float64

// Total 返回分配总额。
func (a Allocation) Total() float64 {
	total := 0.0
	for _, v := range a {
		total += v
	}
	return total
}

// Normalize 将权重归一化，权重和低于 epsilon 时按 epsilon 处理，全零权重得到全零结果。
func Normalize(w Weights) Weights {
	sum := math.Max(weightEpsilon, w.Trend+w.Pairs+w.Funding)
	return Weights{
		Trend:   w.Trend / sum,
		Pairs:   w.Pairs / sum,
		Funding: w.Funding / sum,
	}
}

// Allocate 按归一化权重拆分已封顶的名义金额。
func Allocate(cappedNotionalUSD float64, w Weights) Allocation {
	n := Normalize(w)
	return Allocation{
		StrategyTrend:   cappedNotionalUSD * n.Trend,
		StrategyPairs:   cappedNotionalUSD * n.Pairs,
		StrategyFunding: cappedNotionalUSD * n.Funding,
	}
}
