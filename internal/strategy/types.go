package strategy

import "time"

// Action 为策略输出的离散信号。
type Action string

const (
	ActionHold Action = "hold"

	// 趋势策略
	ActionBuy  Action = "buy"
	ActionFlat Action = "flat"

	// 配对策略
	ActionEnterLongSpread  Action = "enter_long_spread"
	ActionEnterShortSpread Action = "enter_short_spread"
	ActionExit             Action = "exit"

	// 资金费率策略
	ActionEnable  Action = "enable"
	ActionDisable Action = "disable"
)

// Actionable 判断信号是否需要处理。
func (a Action) Actionable() bool {
	return a != ActionHold && a != ""
}

// Clock 返回当前时间，测试中可替换。
type Clock func() time.Time

func systemClock() time.Time {
	return time.Now()
}
