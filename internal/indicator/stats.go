package indicator

import (
	"math"

	talib "github.com/markcheno/go-talib"
)

// SMA 计算末尾 period 个样本的简单均线，样本不足时对全部样本取均值。
func SMA(values []float64, period int) float64 {
	tail := SliceTail(values, period)
	if len(tail) == 0 {
		return 0
	}
	out := talib.Sma(tail, len(tail))
	return out[len(out)-1]
}

// Mean 计算算术平均。
func Mean(values []float64) float64 {
	return SMA(values, len(values))
}

// SampleStdDev 计算样本标准差（n-1 分母），返回均值与标准差。
func SampleStdDev(values []float64) (float64, float64) {
	n := len(values)
	if n == 0 {
		return 0, 0
	}
	mean := Mean(values)

	variance := 0.0
	for _, v := range values {
		diff := v - mean
		variance += diff * diff
	}
	denom := n - 1
	if denom < 1 {
		denom = 1
	}
	variance /= float64(denom)
	if variance <= 0 {
		return mean, 0
	}
	return mean, math.Sqrt(variance)
}
