package backtest

// Config 定义回测参数。
type Config struct {
	InitialEquity  float64 // 初始净值，默认取 risk.equity_usd
	PeriodsPerYear float64 // 年化夏普使用的每年步数
}

func (c *Config) normalize(defaultEquity float64) Config {
	cfg := *c
	if cfg.InitialEquity <= 0 {
		cfg.InitialEquity = defaultEquity
	}
	if cfg.InitialEquity <= 0 {
		cfg.InitialEquity = 1000
	}
	if cfg.PeriodsPerYear <= 0 {
		// 默认按小时K线
		cfg.PeriodsPerYear = 24 * 365
	}
	return cfg
}
