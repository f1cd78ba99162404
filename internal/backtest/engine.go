package backtest

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"rqe/internal/app"
	"rqe/internal/config"
	"rqe/internal/exchange"
	"rqe/internal/execution"
	"rqe/internal/store"
)

// Result 汇总回测结果。
type Result struct {
	Metrics        Metrics
	EquityCurve    []float64
	ReturnSeries   []float64
	Bars           int
	Trades         int
	HaltedDays     int
	RealizedPnLUSD float64
	FinalEquity    float64
}

// replayMarket 将当前回放行情作为快照返回。
type replayMarket struct {
	bar Bar
}

func (m *replayMarket) GetSnapshot(_ context.Context, req exchange.SnapshotRequest) (exchange.MarketSnapshot, error) {
	q := func(symbol string, price float64) exchange.Quote {
		return exchange.Quote{Symbol: symbol, Price: price, Timestamp: m.bar.TS}
	}
	return exchange.MarketSnapshot{
		Spot:        q(req.Spot, m.bar.Spot),
		PairA:       q(req.PairA, m.bar.PairA),
		PairB:       q(req.PairB, m.bar.PairB),
		Funding:     m.bar.Funding,
		HasFunding:  req.Perp != "",
		RetrievedAt: m.bar.TS,
	}, nil
}

// Engine 将历史行情逐条送入与实盘相同的决策循环，使用模拟执行与内存存储。
type Engine struct {
	cfg      Config
	appCfg   config.Config
	provider Provider
	logger   *zap.Logger
}

// NewEngine 构建回测引擎。
func NewEngine(cfg Config, appCfg *config.Config, provider Provider, logger *zap.Logger) (*Engine, error) {
	if provider == nil {
		return nil, fmt.Errorf("backtest: provider 不能为空")
	}
	if appCfg == nil {
		return nil, fmt.Errorf("backtest: config 不能为空")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	replayCfg := *appCfg
	replayCfg.App.Mode = config.ModePaper
	// 回放数据已给出资金费率列，缺失时按0处理
	replayCfg.Exchange.FundingEnabled = replayCfg.Markets.Perp != ""

	return &Engine{
		cfg:      cfg.normalize(appCfg.Risk.EquityUSD),
		appCfg:   replayCfg,
		provider: provider,
		logger:   logger,
	}, nil
}

// Run 执行完整回测流程。
func (e *Engine) Run(ctx context.Context) (Result, error) {
	st, err := store.NewSQLite(config.DatabaseConfig{InMemory: true})
	if err != nil {
		return Result{}, err
	}
	defer func() { _ = st.Close() }()

	var now time.Time
	market := &replayMarket{}
	broker := execution.NewPaperBroker(e.appCfg.Paper, e.logger)

	orch, err := app.NewOrchestrator(&e.appCfg, app.Deps{
		Market: market,
		Broker: broker,
		Store:  st,
		Clock:  func() time.Time { return now },
		Logger: e.logger,
	})
	if err != nil {
		return Result{}, err
	}

	sim := NewSimulator(e.cfg.InitialEquity)
	markets := e.appCfg.Markets
	symbols := exchange.UniqueSymbols(markets.Spot, markets.PairA)

	var (
		result  Result
		lastDay string
		prev    store.DailyState
	)
	closeDay := func() {
		result.Trades += prev.Trades
		if prev.Halted {
			result.HaltedDays++
		}
	}

	for {
		bar, ok, err := e.provider.Next(ctx)
		if err != nil {
			return Result{}, err
		}
		if !ok {
			break
		}

		now = bar.TS
		market.bar = bar

		day := store.DayKey(bar.TS)
		if lastDay != "" && day != lastDay {
			closeDay()
		}
		lastDay = day

		if err := orch.Tick(ctx); err != nil {
			return Result{}, err
		}
		prev = orch.Daily()
		result.Bars++

		positions := make([]execution.Position, 0, len(symbols))
		for _, s := range symbols {
			positions = append(positions, broker.Position(s))
		}
		sim.Mark(broker.Realized(), positions, map[string]float64{
			markets.Spot:  bar.Spot,
			markets.PairA: bar.PairA,
		})
	}
	if lastDay != "" {
		closeDay()
	}

	result.EquityCurve = sim.EquityHistory()
	result.ReturnSeries = sim.ReturnHistory()
	result.Metrics = calculateMetrics(result.EquityCurve, result.ReturnSeries, e.cfg.PeriodsPerYear)
	result.RealizedPnLUSD = broker.Realized()
	result.FinalEquity = sim.Equity()

	e.logger.Info("回测完成",
		zap.Int("bars", result.Bars),
		zap.Int("trades", result.Trades),
		zap.Int("halted_days", result.HaltedDays),
		zap.Float64("pnl", result.RealizedPnLUSD),
		zap.Float64("total_return", result.Metrics.TotalReturn),
		zap.Float64("max_drawdown", result.Metrics.MaxDrawdown),
		zap.Float64("sharpe", result.Metrics.SharpeRatio),
		zap.Float64("volatility", result.Metrics.Volatility),
	)
	return result, nil
}
