package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"rqe/internal/config"
)

func testRiskConfig() config.RiskConfig {
	return config.RiskConfig{
		EquityUSD:          1000,
		MaxNotionalUSD:     100,
		MaxDailyLossPct:    0.02,
		DailyTakeProfitPct: 0.03,
		MaxTradesPerDay:    20,
		MaxSlippageBps:     15,
		HaltOnVolSpike:     true,
		VolSpikeMult:       3,
	}
}

func TestDailyLimitsOK_Order(t *testing.T) {
	m := NewManager(testRiskConfig())

	tests := []struct {
		name  string
		state State
		want  Result
	}{
		{
			name:  "halted wins over everything",
			state: State{EquityUSD: 1000, TradesToday: 99, RealizedPnLUSD: -500, Halted: true},
			want:  Result{OK: false, Reason: ReasonHalted},
		},
		{
			name:  "trade cap reached",
			state: State{EquityUSD: 1000, TradesToday: 20},
			want:  Result{OK: false, Reason: ReasonMaxTrades},
		},
		{
			name:  "trade cap precedes stop loss",
			state: State{EquityUSD: 1000, TradesToday: 25, RealizedPnLUSD: -100},
			want:  Result{OK: false, Reason: ReasonMaxTrades},
		},
		{
			name:  "stop loss at exact boundary",
			state: State{EquityUSD: 1000, TradesToday: 1, RealizedPnLUSD: -20},
			want:  Result{OK: false, Reason: ReasonDailyStopLoss},
		},
		{
			name:  "take profit at exact boundary",
			state: State{EquityUSD: 1000, TradesToday: 1, RealizedPnLUSD: 30},
			want:  Result{OK: false, Reason: ReasonDailyTakeProfit},
		},
		{
			name:  "inside limits",
			state: State{EquityUSD: 1000, TradesToday: 19, RealizedPnLUSD: 29.99},
			want:  Result{OK: true, Reason: ReasonOK},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, m.DailyLimitsOK(tc.state))
		})
	}
}

func TestDailyLimitsOK_StopLossPrecedesTakeProfit(t *testing.T) {
	// 零权益时止损与止盈阈值均为0，两个条件同时成立
	m := NewManager(testRiskConfig())

	st := State{EquityUSD: 0, TradesToday: 0, RealizedPnLUSD: 0}
	assert.Equal(t, Result{OK: false, Reason: ReasonDailyStopLoss}, m.DailyLimitsOK(st))
}

func TestDailyLimitsOK_HaltedIgnoresOtherFields(t *testing.T) {
	m := NewManager(testRiskConfig())
	for _, pnl := range []float64{-1e6, -20, 0, 30, 1e6} {
		for _, trades := range []int{0, 19, 20, 1000} {
			res := m.DailyLimitsOK(State{EquityUSD: 1000, TradesToday: trades, RealizedPnLUSD: pnl, Halted: true})
			assert.Equal(t, Result{OK: false, Reason: ReasonHalted}, res)
		}
	}
}

func TestCapNotional(t *testing.T) {
	m := NewManager(testRiskConfig())
	assert.Equal(t, 50.0, m.CapNotional(50))
	assert.Equal(t, 100.0, m.CapNotional(100))
	assert.Equal(t, 100.0, m.CapNotional(1e6))
	assert.Equal(t, 10.0, m.SlippageBps(10))
	assert.Equal(t, 15.0, m.SlippageBps(40))
}

func TestValidatorVolSpike(t *testing.T) {
	v := NewValidator(3)

	assert.Equal(t, Result{OK: true, Reason: ReasonNoBaseline}, v.VolSpike(10, 0))
	assert.Equal(t, Result{OK: true, Reason: ReasonNoBaseline}, v.VolSpike(10, -1))
	assert.Equal(t, Result{OK: false, Reason: ReasonVolSpike}, v.VolSpike(0.03, 0.01))
	assert.Equal(t, Result{OK: false, Reason: ReasonVolSpike}, v.VolSpike(0.05, 0.01))
	assert.Equal(t, Result{OK: true, Reason: ReasonOK}, v.VolSpike(0.0299, 0.01))
}

func TestVolatility_BaselineSeedAndDecay(t *testing.T) {
	v := NewVolatility(10, 2)

	assert.Equal(t, 0.0, v.UpdateBaseline(0))
	assert.Equal(t, 0.0, v.Baseline())

	assert.Equal(t, 0.01, v.UpdateBaseline(0.01))

	samples := []float64{0.02, 0, 0.005, 0.03}
	want := 0.01
	for _, s := range samples {
		got := v.UpdateBaseline(s)
		if s > 0 {
			want = 0.98*want + 0.02*s
		}
		assert.Equal(t, want, got)
	}
}

func TestVolatility_ObserveNeedsMinSamples(t *testing.T) {
	v := NewVolatility(5, 3)

	cur, base := v.Observe(100)
	assert.Equal(t, 0.0, cur)
	assert.Equal(t, 0.0, base)

	v.Observe(101)
	cur, base = v.Observe(100)
	assert.Equal(t, 2, v.Samples())
	assert.Equal(t, 0.0, cur)
	assert.Equal(t, 0.0, base)

	cur, base = v.Observe(102)
	assert.Equal(t, 3, v.Samples())
	assert.Greater(t, cur, 0.0)
	assert.Equal(t, cur, base)

	for i := 0; i < 10; i++ {
		v.Observe(100 + float64(i%2))
	}
	assert.Equal(t, 5, v.Samples())
	assert.Greater(t, v.Baseline(), 0.0)
}
