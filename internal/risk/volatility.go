package risk

import "rqe/internal/indicator"

const (
	baselineDecay  = 0.98
	baselineWeight = 0.02
)

// Volatility 维护收益率滚动窗口与指数平滑的基线波动率，仅存在于进程内。
type Volatility struct {
	returns    *indicator.Window
	minSamples int
	lastPrice  float64
	current    float64
	baseline   float64
}

// NewVolatility 创建波动率状态，样本数少于 minSamples 时当前波动率视为0。
func NewVolatility(window, minSamples int) *Volatility {
	return &Volatility{
		returns:    indicator.NewWindow(window),
		minSamples: minSamples,
	}
}

// Observe 记录最新价格，返回当前波动率与更新后的基线。
func (v *Volatility) Observe(price float64) (float64, float64) {
	if price > 0 {
		if v.lastPrice > 0 {
			v.returns.Push((price - v.lastPrice) / v.lastPrice)
		}
		v.lastPrice = price
	}

	v.current = v.realized()
	v.UpdateBaseline(v.current)
	return v.current, v.baseline
}

// UpdateBaseline 以首个非零样本作为种子，之后按 0.98/0.02 指数平滑。
func (v *Volatility) UpdateBaseline(current float64) float64 {
	if current <= 0 {
		return v.baseline
	}
	if v.baseline == 0 {
		v.baseline = current
		return v.baseline
	}
	v.baseline = baselineDecay*v.baseline + baselineWeight*current
	return v.baseline
}

// Current 返回最近一次计算的波动率。
func (v *Volatility) Current() float64 {
	return v.current
}

// Baseline 返回基线波动率。
func (v *Volatility) Baseline() float64 {
	return v.baseline
}

// Samples 返回窗口中的收益率样本数。
func (v *Volatility) Samples() int {
	return v.returns.Len()
}

func (v *Volatility) realized() float64 {
	if v.returns.Len() < v.minSamples {
		return 0
	}
	_, sd := indicator.SampleStdDev(v.returns.Values())
	return sd
}
