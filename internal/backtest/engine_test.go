package backtest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rqe/internal/config"
	"rqe/internal/execution"
)

func testAppConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Markets = config.MarketsConfig{Spot: "BTC/USDT", Perp: "BTC/USDT:USDT", PairA: "SOL/USDT", PairB: "ETH/USDT"}
	cfg.Strategy.Trend = config.TrendConfig{Fast: 2, Slow: 4}
	cfg.Portfolio.Weights = config.WeightsConfig{Trend: 1}
	cfg.Risk.HaltOnVolSpike = false
	return cfg
}

func hourlyBars(start time.Time, spots ...float64) []Bar {
	bars := make([]Bar, 0, len(spots))
	for i, px := range spots {
		bars = append(bars, Bar{TS: start.Add(time.Duration(i) * time.Hour), Spot: px, PairA: 20, PairB: 5})
	}
	return bars
}

func TestEngine_RunReplaysThroughDecisionLoop(t *testing.T) {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	bars := hourlyBars(start, 10, 10, 10, 10, 12, 5, 5)
	// 次日行情，停机状态不应延续
	bars = append(bars, Bar{TS: start.Add(24 * time.Hour), Spot: 5, PairA: 20, PairB: 5})

	engine, err := NewEngine(Config{}, testAppConfig(t), NewSliceProvider(bars), nil)
	require.NoError(t, err)

	res, err := engine.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, len(bars), res.Bars)
	assert.Equal(t, 2, res.Trades)
	assert.Equal(t, 1, res.HaltedDays, "stop loss halts the first day only")
	assert.Less(t, res.RealizedPnLUSD, -20.0)
	assert.InDelta(t, 1000+res.RealizedPnLUSD, res.FinalEquity, 1e-9)
	assert.Len(t, res.EquityCurve, len(bars)+1)
	assert.Len(t, res.ReturnSeries, len(bars))
	assert.Greater(t, res.Metrics.MaxDrawdown, 0.0)
	assert.Less(t, res.Metrics.TotalReturn, 0.0)
}

func TestEngine_EmptyProvider(t *testing.T) {
	engine, err := NewEngine(Config{InitialEquity: 500}, testAppConfig(t), NewSliceProvider(nil), nil)
	require.NoError(t, err)

	res, err := engine.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, res.Bars)
	assert.Equal(t, 500.0, res.FinalEquity)
	assert.Equal(t, []float64{500}, res.EquityCurve)
}

func TestNewEngine_RequiresProviderAndConfig(t *testing.T) {
	_, err := NewEngine(Config{}, testAppConfig(t), nil, nil)
	assert.Error(t, err)
	_, err = NewEngine(Config{}, nil, NewSliceProvider(nil), nil)
	assert.Error(t, err)
}

func TestSimulator_MarkToMarket(t *testing.T) {
	sim := NewSimulator(1000)
	sim.Mark(0, []execution.Position{{Symbol: "BTC/USDT", Qty: 1, AvgCost: 100}}, map[string]float64{"BTC/USDT": 110})
	assert.Equal(t, 1010.0, sim.Equity())

	sim.Mark(5, nil, nil)
	assert.Equal(t, 1005.0, sim.Equity())

	assert.Equal(t, []float64{1000, 1010, 1005}, sim.EquityHistory())
	returns := sim.ReturnHistory()
	require.Len(t, returns, 2)
	assert.InDelta(t, 0.01, returns[0], 1e-12)
	assert.InDelta(t, 1005.0/1010-1, returns[1], 1e-12)
}

func TestCalculateMetrics(t *testing.T) {
	m := calculateMetrics([]float64{100, 120, 90, 110}, []float64{0.2, -0.25, 0.2222}, 24*365)
	assert.InDelta(t, 0.1, m.TotalReturn, 1e-12)
	assert.InDelta(t, 0.25, m.MaxDrawdown, 1e-12)
	assert.Greater(t, m.SharpeRatio, 0.0)

	assert.Equal(t, Metrics{}, calculateMetrics(nil, nil, 1))
	assert.Equal(t, 0.0, computeSharpe([]float64{0, 0}, 1))
}
