package risk

import (
	"math"

	"rqe/internal/config"
)

// Manager 负责日度风控门控。
type Manager struct {
	cfg config.RiskConfig
}

// NewManager 创建风险管理器。
func NewManager(cfg config.RiskConfig) *Manager {
	return &Manager{cfg: cfg}
}

// Config 返回风控配置。
func (m *Manager) Config() config.RiskConfig {
	return m.cfg
}

// DailyLimitsOK 按固定顺序检查日度限制，首个命中的条件决定原因。
func (m *Manager) DailyLimitsOK(st State) Result {
	if st.Halted {
		return Result{OK: false, Reason: ReasonHalted}
	}

	if st.TradesToday >= m.cfg.MaxTradesPerDay {
		return Result{OK: false, Reason: ReasonMaxTrades}
	}

	lossLimit := -math.Abs(m.cfg.MaxDailyLossPct) * st.EquityUSD
	if st.RealizedPnLUSD <= lossLimit {
		return Result{OK: false, Reason: ReasonDailyStopLoss}
	}

	takeProfit := math.Abs(m.cfg.DailyTakeProfitPct) * st.EquityUSD
	if st.RealizedPnLUSD >= takeProfit {
		return Result{OK: false, Reason: ReasonDailyTakeProfit}
	}

	return Result{OK: true, Reason: ReasonOK}
}

// CapNotional 将期望名义金额限制在单笔上限内。
func (m *Manager) CapNotional(desiredUSD float64) float64 {
	return math.Min(desiredUSD, m.cfg.MaxNotionalUSD)
}

// SlippageBps 返回不超过配置上限的滑点。
func (m *Manager) SlippageBps(preferred float64) float64 {
	return math.Min(preferred, m.cfg.MaxSlippageBps)
}
