package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"rqe/internal/config"
	"rqe/internal/exchange"
	"rqe/internal/execution"
	"rqe/internal/metrics"
	"rqe/internal/monitor"
	"rqe/internal/store"
)

// App 聚合核心依赖并驱动系统生命周期。
type App struct {
	cfg     *config.Config
	logger  *zap.Logger
	store   *store.Store
	metrics *metrics.Prometheus
}

// New 创建 App 实例。
func New(cfg *config.Config, logger *zap.Logger, store *store.Store) *App {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &App{
		cfg:     cfg,
		logger:  logger,
		store:   store,
		metrics: metrics.NewPrometheus(),
	}
}

// Run 启动决策循环，启用时同时提供控制接口，直到 ctx 结束或出现致命错误。
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("交易系统已初始化",
		zap.String("environment", a.cfg.App.Environment),
		zap.String("exchange", a.cfg.Exchange.Name),
		zap.String("spot", a.cfg.Markets.Spot),
		zap.String("pair_a", a.cfg.Markets.PairA),
		zap.String("pair_b", a.cfg.Markets.PairB),
	)

	monitorSvc, err := monitor.NewService(a.store, a.logger)
	if err != nil {
		return fmt.Errorf("初始化监控服务失败: %w", err)
	}

	var funding exchange.FundingSource
	if a.cfg.Exchange.FundingEnabled {
		funding = exchange.NewFuturesClient(a.cfg.Exchange, a.logger)
	}
	market := exchange.NewMarketDataService(exchange.NewSpotClient(a.cfg.Exchange, a.logger), funding, a.logger)

	orch, err := NewOrchestrator(a.cfg, Deps{
		Market:  market,
		Broker:  a.newBroker(),
		Store:   a.store,
		Monitor: monitorSvc,
		Metrics: a.metrics,
		Clock:   time.Now,
		Logger:  a.logger,
	})
	if err != nil {
		return err
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return a.loop(groupCtx, orch)
	})
	if a.cfg.API.Enabled {
		api := a.newAPI(monitorSvc, true)
		group.Go(func() error {
			return serveHTTP(groupCtx, a.cfg.API.Addr, api.handler(), a.logger)
		})
	}

	return group.Wait()
}

// ServeAPI 仅运行控制接口，供决策循环在其他进程运行时查询与干预。
// 本进程没有决策循环写入指标，因此不提供 /metrics，指标由运行循环的进程暴露。
func (a *App) ServeAPI(ctx context.Context) error {
	monitorSvc, err := monitor.NewService(a.store, a.logger)
	if err != nil {
		return fmt.Errorf("初始化监控服务失败: %w", err)
	}
	api := a.newAPI(monitorSvc, false)
	return serveHTTP(ctx, a.cfg.API.Addr, api.handler(), a.logger)
}

func (a *App) newAPI(events eventLog, withMetrics bool) *apiServer {
	var metricsHandler http.Handler
	if withMetrics {
		metricsHandler = a.metrics.Handler()
	}
	return newAPIServer(a.store, events, metricsHandler, a.cfg.App.Mode, a.logger)
}

func (a *App) newBroker() execution.Broker {
	if a.cfg.IsLive() {
		a.logger.Warn("执行器处于实盘模式", zap.String("exchange", a.cfg.Exchange.Name))
		return execution.NewLiveBroker(execution.NewBinanceOrderClient(a.cfg.Exchange), a.cfg.Exchange, a.logger)
	}
	a.logger.Info("执行器处于模拟模式")
	return execution.NewPaperBroker(a.cfg.Paper, a.logger)
}

func (a *App) loop(ctx context.Context, orch *Orchestrator) error {
	loopInterval := a.cfg.Scheduler.LoopInterval
	if loopInterval <= 0 {
		loopInterval = 2 * time.Second
	}

	if err := orch.Tick(ctx); err != nil {
		if errors.Is(err, ErrFatal) {
			return err
		}
		a.logger.Error("首次执行失败", zap.Error(err))
	}

	ticker := time.NewTicker(loopInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if err := ctx.Err(); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("系统异常退出: %w", err)
			}
			a.logger.Info("系统收到退出信号，正在停止")
			return nil
		case <-ticker.C:
			if ctx.Err() != nil {
				continue
			}
			if err := orch.Tick(ctx); err != nil {
				if errors.Is(err, ErrFatal) {
					return err
				}
				a.logger.Error("执行调度失败", zap.Error(err))
			}
		}
	}
}
