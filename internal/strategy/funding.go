package strategy

import "time"

// FundingSignal 为资金费率信号。
type FundingSignal struct {
	Action  Action  `json:"action"`
	Funding float64 `json:"funding"`
}

// Funding 资金费率套息开关，启用后至少保持 hold 时长。
type Funding struct {
	minRate float64
	hold    time.Duration
	enabled bool
	until   time.Time
	now     Clock
}

// NewFunding 创建资金费率策略。
func NewFunding(minRate float64, hold time.Duration, clock Clock) *Funding {
	if clock == nil {
		clock = systemClock
	}
	return &Funding{
		minRate: minRate,
		hold:    hold,
		now:     clock,
	}
}

// OnFunding 输入最新资金费率并返回信号。
func (f *Funding) OnFunding(rate float64) FundingSignal {
	now := f.now()

	if f.enabled && now.Before(f.until) {
		return FundingSignal{Action: ActionHold, Funding: rate}
	}

	if rate >= f.minRate {
		f.enabled = true
		f.until = now.Add(f.hold)
		return FundingSignal{Action: ActionEnable, Funding: rate}
	}

	f.enabled = false
	return FundingSignal{Action: ActionDisable, Funding: rate}
}

// Enabled 返回当前是否启用。
func (f *Funding) Enabled() bool {
	return f.enabled
}
