package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"rqe/internal/config"
	"rqe/internal/exchange"
	"rqe/internal/execution"
	"rqe/internal/metrics"
	"rqe/internal/monitor"
	"rqe/internal/portfolio"
	"rqe/internal/risk"
	"rqe/internal/store"
	"rqe/internal/strategy"
)

// ErrFatal 标记无法安全继续的错误，决策循环遇到后立即退出。
var ErrFatal = errors.New("app: fatal")

const (
	trendSlippageBps = 10.0
	pairsSlippageBps = 12.0
)

// MarketData 提供一个周期所需的行情快照。
type MarketData interface {
	GetSnapshot(ctx context.Context, req exchange.SnapshotRequest) (exchange.MarketSnapshot, error)
}

// DailyStore 为决策循环依赖的持久化接口。
type DailyStore interface {
	LoadDailyState(ctx context.Context, day string) (store.DailyState, error)
	SaveDailyState(ctx context.Context, state store.DailyState) error
	SaveDailyProgress(ctx context.Context, day string, trades int, pnl float64) error
	AppendFill(ctx context.Context, rec store.FillRecord) error
}

// EventRecorder 记录监控事件，写入失败只告警。
type EventRecorder interface {
	RecordHalt(ctx context.Context, payload monitor.HaltPayload)
	RecordFill(ctx context.Context, mode, strategy string, fill execution.Fill)
	RecordFunding(ctx context.Context, payload monitor.FundingPayload)
	RecordSkip(ctx context.Context, payload monitor.SkipPayload)
	RecordError(ctx context.Context, msg string, err error, ctxMap map[string]interface{})
}

// Deps 为决策循环的外部协作者。
type Deps struct {
	Market  MarketData
	Broker  execution.Broker
	Store   DailyStore
	Monitor EventRecorder
	Metrics metrics.Sink
	Clock   strategy.Clock
	Logger  *zap.Logger
}

// loopContext 为跨周期保留的当日状态，日期变化时整体重置。
type loopContext struct {
	day   string
	daily store.DailyState
}

// Orchestrator 驱动单个决策周期：加载日度状态、风控闸门、资金分配、策略执行与持久化。
type Orchestrator struct {
	markets   config.MarketsConfig
	riskCfg   config.RiskConfig
	weights   portfolio.Weights
	request   exchange.SnapshotRequest
	risk      *risk.Manager
	validator *risk.Validator
	vol       *risk.Volatility
	trend     *strategy.Trend
	pairs     *strategy.Pairs
	funding   *strategy.Funding

	market  MarketData
	broker  execution.Broker
	store   DailyStore
	monitor EventRecorder
	metrics metrics.Sink
	now     strategy.Clock
	logger  *zap.Logger

	lc loopContext
}

// NewOrchestrator 根据配置构造决策循环。
func NewOrchestrator(cfg *config.Config, deps Deps) (*Orchestrator, error) {
	if cfg == nil {
		return nil, errors.New("app: config 不能为空")
	}
	if deps.Market == nil || deps.Broker == nil || deps.Store == nil {
		return nil, errors.New("app: market/broker/store 不能为空")
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Monitor == nil {
		deps.Monitor = nopRecorder{}
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.Nop{}
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}

	req := exchange.SnapshotRequest{
		Spot:  cfg.Markets.Spot,
		PairA: cfg.Markets.PairA,
		PairB: cfg.Markets.PairB,
	}
	if cfg.Exchange.FundingEnabled {
		req.Perp = cfg.Markets.Perp
	}

	sc := cfg.Strategy
	return &Orchestrator{
		markets: cfg.Markets,
		riskCfg: cfg.Risk,
		weights: portfolio.Weights{
			Trend:   cfg.Portfolio.Weights.Trend,
			Pairs:   cfg.Portfolio.Weights.Pairs,
			Funding: cfg.Portfolio.Weights.Funding,
		},
		request:   req,
		risk:      risk.NewManager(cfg.Risk),
		validator: risk.NewValidator(cfg.Risk.VolSpikeMult),
		vol:       risk.NewVolatility(cfg.Volatility.Window, cfg.Volatility.MinSamples),
		trend:     strategy.NewTrend(sc.Trend.Fast, sc.Trend.Slow),
		pairs: strategy.NewPairs(strategy.PairsConfig{
			Lookback: sc.Pairs.Lookback,
			ZEnter:   sc.Pairs.ZEnter,
			ZExit:    sc.Pairs.ZExit,
			MaxHold:  sc.Pairs.MaxHold,
		}, deps.Clock),
		funding: strategy.NewFunding(sc.Funding.MinRate, sc.Funding.Hold, deps.Clock),
		market:  deps.Market,
		broker:  deps.Broker,
		store:   deps.Store,
		monitor: deps.Monitor,
		metrics: deps.Metrics,
		now:     deps.Clock,
		logger:  deps.Logger,
	}, nil
}

// Daily 返回最近一次周期结束时的日度聚合。
func (o *Orchestrator) Daily() store.DailyState {
	return o.lc.daily
}

// Tick 执行一个完整的决策周期。
// 闸门拒绝与行情/下单失败都不是错误，仅持久化失败返回包装了 ErrFatal 的错误。
func (o *Orchestrator) Tick(ctx context.Context) error {
	if ctx.Err() != nil {
		return nil
	}
	now := o.now().UTC()
	o.rollover(store.DayKey(now))

	daily, err := o.store.LoadDailyState(ctx, o.lc.day)
	if err != nil {
		if ctx.Err() != nil {
			// 退出过程中被取消，本周期尚未产生任何写入
			return nil
		}
		return o.fatal(ctx, "加载日度状态失败", err)
	}
	o.lc.daily = daily
	o.metrics.SetHalted(daily.Halted)
	o.metrics.SetRealizedPnL(daily.RealizedPnLUSD)

	snap, err := o.market.GetSnapshot(ctx, o.request)
	if err != nil {
		o.transportFailure(ctx, "获取行情失败", err)
		return nil
	}
	o.metrics.ObserveLatency(snap.Latency)
	curVol, baseVol := o.vol.Observe(snap.Spot.Price)

	gate := o.risk.DailyLimitsOK(risk.State{
		EquityUSD:      o.riskCfg.EquityUSD,
		TradesToday:    daily.Trades,
		RealizedPnLUSD: daily.RealizedPnLUSD,
		Halted:         daily.Halted,
	})
	if !gate.OK {
		return o.halt(ctx, gate.Reason)
	}

	if o.riskCfg.MaxAPILatency > 0 && snap.Latency > o.riskCfg.MaxAPILatency {
		o.logger.Warn("行情延迟超限，跳过本周期",
			zap.Duration("latency", snap.Latency),
			zap.Duration("max", o.riskCfg.MaxAPILatency),
		)
		o.monitor.RecordSkip(ctx, monitor.SkipPayload{
			Reason:    "api_latency",
			LatencyMs: float64(snap.Latency) / float64(time.Millisecond),
		})
		return nil
	}

	if o.riskCfg.HaltOnVolSpike {
		if vr := o.validator.VolSpike(curVol, baseVol); !vr.OK {
			return o.halt(ctx, vr.Reason)
		}
	}

	alloc := portfolio.Allocate(o.risk.CapNotional(o.riskCfg.MaxNotionalUSD), o.weights)

	trendSig, pairsSig, execErr := o.execute(ctx, snap, alloc)
	if errors.Is(execErr, ErrFatal) {
		return execErr
	}

	// 退出信号不影响已完成成交的落盘
	if err := o.store.SaveDailyProgress(context.WithoutCancel(ctx), o.lc.day, o.lc.daily.Trades, o.lc.daily.RealizedPnLUSD); err != nil {
		return o.fatal(ctx, "保存日度状态失败", err)
	}
	o.metrics.SetRealizedPnL(o.lc.daily.RealizedPnLUSD)

	o.logger.Info("决策周期完成",
		zap.String("day", o.lc.day),
		zap.Float64("price", snap.Spot.Price),
		zap.Float64("pnl", o.lc.daily.RealizedPnLUSD),
		zap.Int("trades", o.lc.daily.Trades),
		zap.Float64("vol", curVol),
		zap.Float64("vol_baseline", baseVol),
		zap.String("trend", string(trendSig.Action)),
		zap.String("pairs", string(pairsSig.Action)),
		zap.Float64("z", pairsSig.Z),
	)
	return nil
}

// rollover 在日期变化时重置跨周期状态。
func (o *Orchestrator) rollover(day string) {
	if o.lc.day == day {
		return
	}
	if o.lc.day != "" {
		o.logger.Info("交易日切换，重置日度状态",
			zap.String("from", o.lc.day),
			zap.String("to", day),
		)
	}
	o.lc = loopContext{day: day, daily: store.DailyState{Day: day}}
}

// halt 将当日标记为停机，当日已停机时不重复计数。
func (o *Orchestrator) halt(ctx context.Context, reason risk.Reason) error {
	if o.lc.daily.Halted {
		o.logger.Debug("当日已停机，跳过本周期", zap.String("reason", string(reason)))
		return nil
	}

	ctx = context.WithoutCancel(ctx)
	o.lc.daily.Halted = true
	if err := o.store.SaveDailyState(ctx, o.lc.daily); err != nil {
		return o.fatal(ctx, "保存停机状态失败", err)
	}

	o.metrics.Halted(string(reason))
	o.metrics.SetHalted(true)
	o.monitor.RecordHalt(ctx, monitor.HaltPayload{
		Day:            o.lc.day,
		Reason:         string(reason),
		Trades:         o.lc.daily.Trades,
		RealizedPnLUSD: o.lc.daily.RealizedPnLUSD,
		Source:         "risk",
	})
	o.logger.Warn("触发风控，当日停止交易",
		zap.String("day", o.lc.day),
		zap.String("reason", string(reason)),
		zap.Int("trades", o.lc.daily.Trades),
		zap.Float64("pnl", o.lc.daily.RealizedPnLUSD),
	)
	return nil
}

// execute 依次运行各策略；下单失败时停止后续策略，已完成的成交仍计入当日聚合。
func (o *Orchestrator) execute(ctx context.Context, snap exchange.MarketSnapshot, alloc portfolio.Allocation) (strategy.TrendSignal, strategy.PairsSignal, error) {
	spot := snap.Spot.Price
	trendSig := o.trend.OnPrice(spot)
	if trendSig.Action.Actionable() {
		if err := o.runTrend(ctx, trendSig, spot, alloc[portfolio.StrategyTrend]); err != nil {
			return trendSig, strategy.PairsSignal{}, err
		}
	}

	// 收到退出信号后不再发出新委托
	if ctx.Err() != nil {
		return trendSig, strategy.PairsSignal{}, nil
	}

	pairsSig := o.pairs.OnPrices(snap.PairA.Price, snap.PairB.Price)
	if pairsSig.Action.Actionable() {
		if err := o.runPairs(ctx, pairsSig, snap.PairA.Price, alloc[portfolio.StrategyPairs]); err != nil {
			return trendSig, pairsSig, err
		}
	}

	rate := 0.0
	if snap.HasFunding {
		rate = snap.Funding
	}
	if err := o.runFunding(ctx, rate); err != nil {
		return trendSig, pairsSig, err
	}

	return trendSig, pairsSig, nil
}

func (o *Orchestrator) runTrend(ctx context.Context, sig strategy.TrendSignal, price, budget float64) error {
	symbol := o.markets.Spot
	switch sig.Action {
	case strategy.ActionBuy:
		qty := budget / price
		if qty <= 0 {
			return nil
		}
		fill, err := o.broker.Buy(ctx, execution.OrderRequest{
			Symbol:        symbol,
			Qty:           qty,
			Price:         price,
			SlippageBps:   o.risk.SlippageBps(trendSlippageBps),
			ClientOrderID: execution.NewClientOrderID(),
		})
		if err != nil {
			return o.orderFailure(ctx, portfolio.StrategyTrend, symbol, err)
		}
		return o.recordFill(ctx, portfolio.StrategyTrend, fill, "trend entry")
	case strategy.ActionFlat:
		fill, err := o.broker.Flatten(ctx, execution.OrderRequest{
			Symbol:        symbol,
			Price:         price,
			ClientOrderID: execution.NewClientOrderID(),
		})
		if err != nil {
			return o.orderFailure(ctx, portfolio.StrategyTrend, symbol, err)
		}
		return o.recordFill(ctx, portfolio.StrategyTrend, fill, "trend exit")
	}
	return nil
}

func (o *Orchestrator) runPairs(ctx context.Context, sig strategy.PairsSignal, price, budget float64) error {
	symbol := o.markets.PairA
	req := execution.OrderRequest{
		Symbol:        symbol,
		Qty:           budget / price,
		Price:         price,
		SlippageBps:   o.risk.SlippageBps(pairsSlippageBps),
		ClientOrderID: execution.NewClientOrderID(),
	}
	note := fmt.Sprintf("%s z=%.4f", sig.Action, sig.Z)

	var (
		fill execution.Fill
		err  error
	)
	switch sig.Action {
	case strategy.ActionEnterLongSpread:
		if req.Qty <= 0 {
			return nil
		}
		fill, err = o.broker.Buy(ctx, req)
	case strategy.ActionEnterShortSpread:
		if req.Qty <= 0 {
			return nil
		}
		fill, err = o.broker.Sell(ctx, req)
	case strategy.ActionExit:
		fill, err = o.broker.Flatten(ctx, req)
	default:
		return nil
	}
	if err != nil {
		return o.orderFailure(ctx, portfolio.StrategyPairs, symbol, err)
	}
	return o.recordFill(ctx, portfolio.StrategyPairs, fill, note)
}

// runFunding 资金费率策略只产生信号，状态切换写入零数量流水且不计入成交次数。
func (o *Orchestrator) runFunding(ctx context.Context, rate float64) error {
	wasEnabled := o.funding.Enabled()
	sig := o.funding.OnFunding(rate)
	if o.funding.Enabled() == wasEnabled {
		return nil
	}

	ctx = context.WithoutCancel(ctx)
	rec := store.FillRecord{
		TS:       store.Timestamp(o.now()),
		Mode:     o.broker.Mode(),
		Strategy: portfolio.StrategyFunding,
		Symbol:   o.markets.Perp,
		Side:     string(sig.Action),
		Note:     fmt.Sprintf("funding=%.6f", sig.Funding),
	}
	if err := o.store.AppendFill(ctx, rec); err != nil {
		return o.fatal(ctx, "写入资金费率流水失败", err)
	}
	o.monitor.RecordFunding(ctx, monitor.FundingPayload{
		Action: string(sig.Action),
		Rate:   sig.Funding,
		Symbol: o.markets.Perp,
	})
	o.logger.Info("资金费率信号切换",
		zap.String("action", string(sig.Action)),
		zap.Float64("funding", sig.Funding),
	)
	return nil
}

// recordFill 使用不可取消的 ctx 写入流水，保证交易所已成交的订单进入当日聚合。
func (o *Orchestrator) recordFill(ctx context.Context, strategyName string, fill execution.Fill, note string) error {
	ctx = context.WithoutCancel(ctx)
	mode := o.broker.Mode()
	ts := fill.ExecutedAt
	if ts.IsZero() {
		ts = o.now()
	}
	rec := store.FillRecord{
		TS:            store.Timestamp(ts),
		Mode:          mode,
		Strategy:      strategyName,
		Symbol:        fill.Symbol,
		Side:          string(fill.Side),
		Qty:           fill.Qty,
		Price:         fill.Price,
		Fee:           fill.Fee,
		PnL:           fill.PnL,
		SlippageBps:   fill.SlippageBps,
		ClientOrderID: fill.ClientOrderID,
		Note:          note,
	}
	if err := o.store.AppendFill(ctx, rec); err != nil {
		return o.fatal(ctx, "写入成交流水失败", err)
	}

	o.lc.daily.Trades++
	o.lc.daily.RealizedPnLUSD += fill.PnL

	o.metrics.TradeExecuted(mode, strategyName)
	o.metrics.ObserveSlippage(fill.SlippageBps)
	o.monitor.RecordFill(ctx, mode, strategyName, fill)
	return nil
}

func (o *Orchestrator) orderFailure(ctx context.Context, strategyName, symbol string, err error) error {
	o.transportFailure(ctx, "下单失败", err, zap.String("strategy", strategyName), zap.String("symbol", symbol))
	return err
}

func (o *Orchestrator) transportFailure(ctx context.Context, msg string, err error, fields ...zap.Field) {
	o.logger.Warn(msg+"，跳过本周期剩余步骤", append(fields, zap.Error(err))...)
	o.monitor.RecordError(ctx, msg, err, nil)
}

func (o *Orchestrator) fatal(ctx context.Context, msg string, err error) error {
	o.logger.Error(msg, zap.Error(err))
	o.monitor.RecordError(ctx, msg, err, nil)
	return fmt.Errorf("%w: %s: %w", ErrFatal, msg, err)
}

type nopRecorder struct{}

func (nopRecorder) RecordHalt(context.Context, monitor.HaltPayload) {}
func (nopRecorder) RecordFill(context.Context, string, string, execution.Fill) {}
func (nopRecorder) RecordFunding(context.Context, monitor.FundingPayload) {}
func (nopRecorder) RecordSkip(context.Context, monitor.SkipPayload) {}
func (nopRecorder) RecordError(context.Context, string, error, map[string]interface{}) {}
