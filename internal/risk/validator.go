package risk

// Validator 识别波动率冲击。
type Validator struct {
	mult float64
}

// NewValidator 创建波动率校验器，mult 为相对基线的倍数阈值。
func NewValidator(mult float64) *Validator {
	return &Validator{mult: mult}
}

// VolSpike 判断当前波动率是否超过基线的 mult 倍。
// 基线尚未建立时直接放行。
func (v *Validator) VolSpike(current, baseline float64) Result {
	if baseline <= 0 {
		return Result{OK: true, Reason: ReasonNoBaseline}
	}
	if current >= v.mult*baseline {
		return Result{OK: false, Reason: ReasonVolSpike}
	}
	return Result{OK: true, Reason: ReasonOK}
}
