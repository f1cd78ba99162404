package risk

// Reason 描述风控判定结果，各原因互斥。
type Reason string

const (
	ReasonOK              Reason = "ok"
	ReasonHalted          Reason = "halted"
	ReasonMaxTrades       Reason = "max_trades_per_day"
	ReasonDailyStopLoss   Reason = "daily_stop_loss"
	ReasonDailyTakeProfit Reason = "daily_take_profit"
	ReasonNoBaseline      Reason = "no_baseline"
	ReasonVolSpike        Reason = "vol_spike"
)

// State 为单个周期内的风控快照，由日度聚合与运行时派生。
type State struct {
	EquityUSD      float64 // 基准权益，固定配置值，不随持仓盯市
	TradesToday    int
	RealizedPnLUSD float64
	Halted         bool
}

// Result 为门控判定结果。
type Result struct {
	OK     bool
	Reason Reason
}
