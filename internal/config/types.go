package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/multierr"
)

const (
	// ModePaper 使用本地模拟撮合。
	ModePaper = "paper"
	// ModeLive 使用真实交易所下单。
	ModeLive = "live"
)

// Config 聚合了系统运行所需的全部配置项。
type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Exchange   ExchangeConfig   `mapstructure:"exchange"`
	Markets    MarketsConfig    `mapstructure:"markets"`
	Risk       RiskConfig       `mapstructure:"risk"`
	Volatility VolatilityConfig `mapstructure:"volatility"`
	Portfolio  PortfolioConfig  `mapstructure:"portfolio"`
	Strategy   StrategyConfig   `mapstructure:"strategy"`
	Paper      PaperConfig      `mapstructure:"paper"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Scheduler  SchedulerConfig  `mapstructure:"scheduler"`
	API        APIConfig        `mapstructure:"api"`
}

// AppConfig 控制应用级参数。
type AppConfig struct {
	Environment string `mapstructure:"environment"`
	Mode        string `mapstructure:"mode"`
}

// ExchangeConfig 描述交易所连接信息。
type ExchangeConfig struct {
	Name              string        `mapstructure:"name"`
	APIKey            string        `mapstructure:"api_key"`
	APISecret         string        `mapstructure:"api_secret"`
	UseSandbox        bool          `mapstructure:"use_sandbox"`
	Timeout           time.Duration `mapstructure:"timeout"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	FeeBps            float64       `mapstructure:"fee_bps"`
	FundingEnabled    bool          `mapstructure:"funding_enabled"`
	Retry             RetryConfig   `mapstructure:"retry"`
	Breaker           BreakerConfig `mapstructure:"breaker"`
}

// RetryConfig 统一控制重试机制。
type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	MinDelay    time.Duration `mapstructure:"min_delay"`
	MaxDelay    time.Duration `mapstructure:"max_delay"`
}

// BreakerConfig 控制行情请求的熔断。
type BreakerConfig struct {
	MaxFailures uint32        `mapstructure:"max_failures"`
	OpenTimeout time.Duration `mapstructure:"open_timeout"`
}

// MarketsConfig 描述各策略使用的交易对。
type MarketsConfig struct {
	Spot  string `mapstructure:"spot"`
	Perp  string `mapstructure:"perp"`
	PairA string `mapstructure:"pair_a"`
	PairB string `mapstructure:"pair_b"`
}

// RiskConfig 管理风控参数，启动后只读。
type RiskConfig struct {
	EquityUSD          float64       `mapstructure:"equity_usd"`
	MaxNotionalUSD     float64       `mapstructure:"max_notional_usd"`
	MaxDailyLossPct    float64       `mapstructure:"max_daily_loss_pct"`
	DailyTakeProfitPct float64       `mapstructure:"daily_take_profit_pct"`
	MaxTradesPerDay    int           `mapstructure:"max_trades_per_day"`
	MaxSlippageBps     float64       `mapstructure:"max_slippage_bps"`
	MaxAPILatency      time.Duration `mapstructure:"max_api_latency"`
	HaltOnVolSpike     bool          `mapstructure:"halt_on_vol_spike"`
	VolSpikeMult       float64       `mapstructure:"vol_spike_mult"`
}

// VolatilityConfig 控制收益率窗口。
type VolatilityConfig struct {
	Window     int `mapstructure:"window"`
	MinSamples int `mapstructure:"min_samples"`
}

// PortfolioConfig 为各策略资金权重。
type PortfolioConfig struct {
	Weights WeightsConfig `mapstructure:"weights"`
}

// WeightsConfig 为未归一化的策略权重。
type WeightsConfig struct {
	Trend   float64 `mapstructure:"trend"`
	Pairs   float64 `mapstructure:"pairs"`
	Funding float64 `mapstructure:"funding"`
}

// StrategyConfig 聚合三个策略的参数。
type StrategyConfig struct {
	Trend   TrendConfig   `mapstructure:"trend"`
	Pairs   PairsConfig   `mapstructure:"pairs"`
	Funding FundingConfig `mapstructure:"funding"`
}

// TrendConfig 均线参数。
type TrendConfig struct {
	Fast int `mapstructure:"fast"`
	Slow int `mapstructure:"slow"`
}

// PairsConfig 价差均值回归参数。
type PairsConfig struct {
	Lookback int           `mapstructure:"lookback"`
	ZEnter   float64       `mapstructure:"z_enter"`
	ZExit    float64       `mapstructure:"z_exit"`
	MaxHold  time.Duration `mapstructure:"max_hold"`
}

// FundingConfig 资金费率套息参数。
type FundingConfig struct {
	MinRate float64       `mapstructure:"min_rate"`
	Hold    time.Duration `mapstructure:"hold"`
}

// PaperConfig 模拟撮合参数。
type PaperConfig struct {
	FeeBps float64 `mapstructure:"fee_bps"`
}

// DatabaseConfig 管理数据库连接。
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	InMemory        bool          `mapstructure:"in_memory"`
}

// LoggingConfig 控制日志输出。
type LoggingConfig struct {
	Level            string   `mapstructure:"level"`
	Encoding         string   `mapstructure:"encoding"`
	Development      bool     `mapstructure:"development"`
	OutputPaths      []string `mapstructure:"output_paths"`
	ErrorOutputPaths []string `mapstructure:"error_output_paths"`
}

// SchedulerConfig 控制主循环节奏。
type SchedulerConfig struct {
	LoopInterval time.Duration `mapstructure:"loop_interval"`
}

// APIConfig 控制查询/控制接口。
type APIConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// Validate 对配置进行基本校验。
func (c *Config) Validate() error {
	var err error

	if c.App.Environment == "" {
		err = multierr.Append(err, errors.New("app.environment 不能为空"))
	}
	switch strings.ToLower(c.App.Mode) {
	case ModePaper:
	case ModeLive:
		if c.Exchange.APIKey == "" || c.Exchange.APISecret == "" {
			err = multierr.Append(err, errors.New("live 模式需要配置 exchange.api_key 与 exchange.api_secret"))
		}
	default:
		err = multierr.Append(err, fmt.Errorf("app.mode 仅支持 paper|live，当前为 %q", c.App.Mode))
	}

	if c.Exchange.Name == "" {
		err = multierr.Append(err, errors.New("exchange.name 不能为空"))
	}
	if c.Exchange.Timeout <= 0 {
		err = multierr.Append(err, errors.New("exchange.timeout 必须大于0"))
	}
	if c.Exchange.RequestsPerSecond <= 0 {
		err = multierr.Append(err, errors.New("exchange.requests_per_second 必须大于0"))
	}
	if c.Exchange.FeeBps < 0 {
		err = multierr.Append(err, errors.New("exchange.fee_bps 不能为负"))
	}
	if c.Exchange.Retry.MaxAttempts <= 0 {
		err = multierr.Append(err, errors.New("exchange.retry.max_attempts 必须大于0"))
	}
	if c.Exchange.Retry.MinDelay <= 0 || c.Exchange.Retry.MaxDelay <= 0 {
		err = multierr.Append(err, errors.New("exchange.retry.delay 必须为正"))
	}
	if c.Exchange.Retry.MinDelay > c.Exchange.Retry.MaxDelay {
		err = multierr.Append(err, errors.New("exchange.retry.min_delay 不能大于 max_delay"))
	}
	if c.Exchange.Breaker.MaxFailures == 0 {
		err = multierr.Append(err, errors.New("exchange.breaker.max_failures 必须大于0"))
	}
	if c.Exchange.Breaker.OpenTimeout <= 0 {
		err = multierr.Append(err, errors.New("exchange.breaker.open_timeout 必须大于0"))
	}

	if c.Markets.Spot == "" {
		err = multierr.Append(err, errors.New("markets.spot 不能为空"))
	}
	if c.Markets.PairA == "" || c.Markets.PairB == "" {
		err = multierr.Append(err, errors.New("markets.pair_a 与 markets.pair_b 不能为空"))
	}
	if c.Exchange.FundingEnabled && c.Markets.Perp == "" {
		err = multierr.Append(err, errors.New("启用资金费率时 markets.perp 不能为空"))
	}

	if c.Risk.EquityUSD <= 0 {
		err = multierr.Append(err, errors.New("risk.equity_usd 必须大于0"))
	}
	if c.Risk.MaxNotionalUSD <= 0 {
		err = multierr.Append(err, errors.New("risk.max_notional_usd 必须大于0"))
	}
	if c.Risk.MaxDailyLossPct <= 0 || c.Risk.MaxDailyLossPct > 1 {
		err = multierr.Append(err, errors.New("risk.max_daily_loss_pct 必须位于(0,1]"))
	}
	if c.Risk.DailyTakeProfitPct <= 0 {
		err = multierr.Append(err, errors.New("risk.daily_take_profit_pct 必须大于0"))
	}
	if c.Risk.MaxTradesPerDay <= 0 {
		err = multierr.Append(err, errors.New("risk.max_trades_per_day 必须大于0"))
	}
	if c.Risk.MaxSlippageBps < 0 {
		err = multierr.Append(err, errors.New("risk.max_slippage_bps 不能为负"))
	}
	if c.Risk.MaxAPILatency <= 0 {
		err = multierr.Append(err, errors.New("risk.max_api_latency 必须大于0"))
	}
	if c.Risk.VolSpikeMult <= 1 {
		err = multierr.Append(err, errors.New("risk.vol_spike_mult 必须大于1"))
	}

	if c.Volatility.Window < 2 {
		err = multierr.Append(err, errors.New("volatility.window 至少为2"))
	}
	if c.Volatility.MinSamples < 2 || c.Volatility.MinSamples > c.Volatility.Window {
		err = multierr.Append(err, errors.New("volatility.min_samples 必须位于[2,window]"))
	}

	w := c.Portfolio.Weights
	if w.Trend < 0 || w.Pairs < 0 || w.Funding < 0 {
		err = multierr.Append(err, errors.New("portfolio.weights 不能为负"))
	}

	if c.Strategy.Trend.Fast <= 0 || c.Strategy.Trend.Slow <= 0 {
		err = multierr.Append(err, errors.New("strategy.trend.fast/slow 必须大于0"))
	}
	if c.Strategy.Trend.Fast >= c.Strategy.Trend.Slow {
		err = multierr.Append(err, errors.New("strategy.trend.fast 必须小于 slow"))
	}
	if c.Strategy.Pairs.Lookback < 2 {
		err = multierr.Append(err, errors.New("strategy.pairs.lookback 至少为2"))
	}
	if c.Strategy.Pairs.ZEnter <= 0 || c.Strategy.Pairs.ZExit < 0 {
		err = multierr.Append(err, errors.New("strategy.pairs.z_enter 必须为正，z_exit 不能为负"))
	}
	if c.Strategy.Pairs.ZExit >= c.Strategy.Pairs.ZEnter {
		err = multierr.Append(err, errors.New("strategy.pairs.z_exit 必须小于 z_enter"))
	}
	if c.Strategy.Pairs.MaxHold <= 0 {
		err = multierr.Append(err, errors.New("strategy.pairs.max_hold 必须大于0"))
	}
	if c.Strategy.Funding.Hold <= 0 {
		err = multierr.Append(err, errors.New("strategy.funding.hold 必须大于0"))
	}

	if c.Paper.FeeBps < 0 {
		err = multierr.Append(err, errors.New("paper.fee_bps 不能为负"))
	}

	if c.Database.Path == "" && !c.Database.InMemory {
		err = multierr.Append(err, errors.New("database.path 不能为空"))
	}
	if c.Database.MaxOpenConns <= 0 {
		err = multierr.Append(err, errors.New("database.max_open_conns 必须大于0"))
	}
	if c.Database.MaxIdleConns < 0 {
		err = multierr.Append(err, errors.New("database.max_idle_conns 不能为负"))
	}
	if c.Database.ConnMaxLifetime < 0 {
		err = multierr.Append(err, errors.New("database.conn_max_lifetime 不能为负"))
	}

	if c.Logging.Level == "" {
		err = multierr.Append(err, errors.New("logging.level 不能为空"))
	}
	if c.Logging.Encoding == "" {
		err = multierr.Append(err, errors.New("logging.encoding 不能为空"))
	}
	if len(c.Logging.OutputPaths) == 0 {
		err = multierr.Append(err, errors.New("logging.output_paths 至少包含一个输出目标"))
	}
	if len(c.Logging.ErrorOutputPaths) == 0 {
		err = multierr.Append(err, errors.New("logging.error_output_paths 至少包含一个输出目标"))
	}

	if c.Scheduler.LoopInterval <= 0 {
		err = multierr.Append(err, errors.New("scheduler.loop_interval 必须大于0"))
	}
	if c.API.Enabled && c.API.Addr == "" {
		err = multierr.Append(err, errors.New("api.addr 不能为空"))
	}

	if err != nil {
		return fmt.Errorf("配置校验失败: %w", err)
	}

	return nil
}

// IsLive 判断是否为实盘模式。
func (c *Config) IsLive() bool {
	return strings.EqualFold(c.App.Mode, ModeLive)
}
