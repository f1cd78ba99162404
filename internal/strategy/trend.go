package strategy

import (
	"math"

	"rqe/internal/indicator"
)

// TrendSignal 为均线趋势信号，Strength 为 (fast-slow)/slow。
type TrendSignal struct {
	Action   Action  `json:"action"`
	Strength float64 `json:"strength"`
}

// Trend 为只做多的双均线趋势跟随。
type Trend struct {
	fast   int
	slow   int
	prices *indicator.Window
	long   bool
}

// NewTrend 创建趋势策略。
func NewTrend(fast, slow int) *Trend {
	return &Trend{
		fast:   fast,
		slow:   slow,
		prices: indicator.NewWindow(max(fast, slow)),
	}
}

// OnPrice 输入最新价格并返回信号。
func (t *Trend) OnPrice(price float64) TrendSignal {
	t.prices.Push(price)
	if t.prices.Len() < t.slow {
		return TrendSignal{Action: ActionHold}
	}

	values := t.prices.Values()
	fastMA := indicator.SMA(values, t.fast)
	slowMA := indicator.SMA(values, t.slow)

	strength := 0.0
	if slowMA != 0 && !math.IsNaN(slowMA) {
		strength = (fastMA - slowMA) / slowMA
	}

	if fastMA > slowMA && !t.long {
		t.long = true
		return TrendSignal{Action: ActionBuy, Strength: strength}
	}

	if fastMA < slowMA && t.long {
		t.long = false
		return TrendSignal{Action: ActionFlat, Strength: strength}
	}

	return TrendSignal{Action: ActionHold, Strength: strength}
}

// Long 返回是否持有多头。
func (t *Trend) Long() bool {
	return t.long
}
