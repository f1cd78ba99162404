package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"rqe/internal/app"
	"rqe/internal/backtest"
	"rqe/internal/config"
	"rqe/internal/log"
	"rqe/internal/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "rqe",
		Short:         "风险约束的量化交易引擎",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "配置文件路径，默认使用 configs/config.yaml")

	root.AddCommand(runCmd(&configPath))
	root.AddCommand(apiCmd(&configPath))
	root.AddCommand(replayCmd(&configPath))
	return root
}

func runCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "启动决策循环",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(*configPath, func(a *app.App, logger *zap.Logger) error {
				if err := a.Run(cmd.Context()); err != nil {
					logger.Error("系统运行异常", zap.Error(err))
					return err
				}
				logger.Info("系统已安全退出")
				return nil
			})
		},
	}
}

func apiCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "api",
		Short: "仅启动控制接口",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(*configPath, func(a *app.App, _ *zap.Logger) error {
				return a.ServeAPI(cmd.Context())
			})
		},
	}
}

func replayCmd(configPath *string) *cobra.Command {
	var (
		file   string
		equity float64
	)
	cmd := &cobra.Command{
		Use:   "replay",
		Short: "使用历史行情CSV回放决策循环",
		RunE: func(cmd *cobra.Command, _ []string) (err error) {
			cfg, logger, err := bootstrap(*configPath)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			f, err := os.Open(file)
			if err != nil {
				return fmt.Errorf("打开回放文件失败: %w", err)
			}
			defer func() { err = multierr.Append(err, f.Close()) }()

			engine, err := backtest.NewEngine(backtest.Config{InitialEquity: equity}, cfg, backtest.NewCSVProvider(f), logger)
			if err != nil {
				return err
			}
			res, err := engine.Run(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "bars=%d trades=%d halted_days=%d\n", res.Bars, res.Trades, res.HaltedDays)
			fmt.Fprintf(out, "realized_pnl=%.4f final_equity=%.4f\n", res.RealizedPnLUSD, res.FinalEquity)
			fmt.Fprintf(out, "total_return=%.4f max_drawdown=%.4f sharpe=%.4f\n",
				res.Metrics.TotalReturn, res.Metrics.MaxDrawdown, res.Metrics.SharpeRatio)
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "行情CSV：ts,spot,pair_a,pair_b[,funding]")
	cmd.Flags().Float64Var(&equity, "equity", 0, "初始净值，默认取 risk.equity_usd")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func bootstrap(configPath string) (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("加载配置失败: %w", err)
	}

	logger, err := log.NewLogger(cfg.Logging, cfg.App.Mode)
	if err != nil {
		return nil, nil, fmt.Errorf("初始化日志失败: %w", err)
	}
	return cfg, logger, nil
}

func withApp(configPath string, fn func(*app.App, *zap.Logger) error) (err error) {
	cfg, logger, err := bootstrap(configPath)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	sqliteStore, err := store.NewSQLite(cfg.Database)
	if err != nil {
		logger.Error("初始化数据库失败", zap.Error(err))
		return err
	}
	defer func() {
		if closeErr := sqliteStore.Close(); closeErr != nil {
			logger.Warn("关闭数据库失败", zap.Error(closeErr))
			err = multierr.Append(err, closeErr)
		}
	}()

	return fn(app.New(cfg, logger, sqliteStore), logger)
}
