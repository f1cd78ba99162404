package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	mapstructure "github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

const (
	defaultConfigPath = "configs/config.yaml"
	envPrefix         = "rqe"
)

// Load 读取配置文件并结合环境变量返回 Config。
// 未显式指定路径且默认文件不存在时，仅使用默认值与环境变量。
func Load(path string) (*Config, error) {
	v := viper.New()

	explicit := path != ""
	if !explicit {
		path = defaultConfigPath
	}

	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetEnvPrefix(envPrefix)
	replacer := strings.NewReplacer(".", "_")
	v.SetEnvKeyReplacer(replacer)
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		switch {
		case !explicit && (errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist)):
		case errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist):
			return nil, fmt.Errorf("未找到配置文件 %q: %w", path, err)
		default:
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.mode", ModePaper)

	v.SetDefault("exchange.name", "binance")
	v.SetDefault("exchange.api_key", "")
	v.SetDefault("exchange.api_secret", "")
	v.SetDefault("exchange.use_sandbox", false)
	v.SetDefault("exchange.timeout", "5s")
	v.SetDefault("exchange.requests_per_second", 8.0)
	v.SetDefault("exchange.fee_bps", 10.0)
	v.SetDefault("exchange.funding_enabled", false)
	v.SetDefault("exchange.retry.max_attempts", 3)
	v.SetDefault("exchange.retry.min_delay", "200ms")
	v.SetDefault("exchange.retry.max_delay", "2s")
	v.SetDefault("exchange.breaker.max_failures", 5)
	v.SetDefault("exchange.breaker.open_timeout", "30s")

	v.SetDefault("markets.spot", "BTC/USDT")
	v.SetDefault("markets.perp", "BTC/USDT:USDT")
	v.SetDefault("markets.pair_a", "BTC/USDT")
	v.SetDefault("markets.pair_b", "ETH/USDT")

	v.SetDefault("risk.equity_usd", 1000.0)
	v.SetDefault("risk.max_notional_usd", 100.0)
	v.SetDefault("risk.max_daily_loss_pct", 0.02)
	v.SetDefault("risk.daily_take_profit_pct", 0.03)
	v.SetDefault("risk.max_trades_per_day", 20)
	v.SetDefault("risk.max_slippage_bps", 15.0)
	v.SetDefault("risk.max_api_latency", "800ms")
	v.SetDefault("risk.halt_on_vol_spike", true)
	v.SetDefault("risk.vol_spike_mult", 3.0)

	v.SetDefault("volatility.window", 240)
	v.SetDefault("volatility.min_samples", 30)

	v.SetDefault("portfolio.weights.trend", 0.35)
	v.SetDefault("portfolio.weights.pairs", 0.35)
	v.SetDefault("portfolio.weights.funding", 0.30)

	v.SetDefault("strategy.trend.fast", 50)
	v.SetDefault("strategy.trend.slow", 200)
	v.SetDefault("strategy.pairs.lookback", 240)
	v.SetDefault("strategy.pairs.z_enter", 2.2)
	v.SetDefault("strategy.pairs.z_exit", 0.7)
	v.SetDefault("strategy.pairs.max_hold", "240m")
	v.SetDefault("strategy.funding.min_rate", 0.0005)
	v.SetDefault("strategy.funding.hold", "8h")

	v.SetDefault("paper.fee_bps", 10.0)

	v.SetDefault("database.path", "data/rqe.sqlite")
	v.SetDefault("database.max_open_conns", 1)
	v.SetDefault("database.max_idle_conns", 1)
	v.SetDefault("database.conn_max_lifetime", "1h")
	v.SetDefault("database.in_memory", false)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.encoding", "console")
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.output_paths", []string{"stdout"})
	v.SetDefault("logging.error_output_paths", []string{"stderr"})

	v.SetDefault("scheduler.loop_interval", "2s")

	v.SetDefault("api.enabled", true)
	v.SetDefault("api.addr", ":8080")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}
