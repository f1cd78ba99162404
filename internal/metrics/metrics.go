package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Sink 接收决策循环产生的指标。
type Sink interface {
	TradeExecuted(mode, strategy string)
	Halted(reason string)
	SetHalted(halted bool)
	SetRealizedPnL(usd float64)
	ObserveLatency(d time.Duration)
	ObserveSlippage(bps float64)
}

// Nop 丢弃所有指标。
type Nop struct{}

func (Nop) TradeExecuted(string, string) {}
func (Nop) Halted(string) {}
func (Nop) SetHalted(bool) {}
func (Nop) SetRealizedPnL(float64) {}
func (Nop) ObserveLatency(time.Duration) {}
func (Nop) ObserveSlippage(float64) {}

// Prometheus 使用独立注册表暴露指标，避免污染全局 DefaultRegisterer。
type Prometheus struct {
	registry *prometheus.Registry

	trades   *prometheus.CounterVec
	halts    *prometheus.CounterVec
	halted   prometheus.Gauge
	pnl      prometheus.Gauge
	latency  prometheus.Histogram
	slippage prometheus.Histogram
}

var (
	_ Sink = Nop{}
	_ Sink = (*Prometheus)(nil)
)

// NewPrometheus 创建并注册全部指标。
func NewPrometheus() *Prometheus {
	p := &Prometheus{
		registry: prometheus.NewRegistry(),
		trades: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rqe_trades_total",
			Help: "Executed trades by mode and strategy.",
		}, []string{"mode", "strategy"}),
		halts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rqe_halts_total",
			Help: "Daily halts by reason.",
		}, []string{"reason"}),
		halted: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rqe_halted",
			Help: "1 when trading is halted for the current day.",
		}),
		pnl: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rqe_realized_pnl_usd",
			Help: "Realized PnL for the current day in USD.",
		}),
		latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "rqe_api_latency_ms",
			Help:    "Market data latency in milliseconds.",
			Buckets: []float64{25, 50, 100, 200, 400, 800, 1600, 3200},
		}),
		slippage: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "rqe_slippage_bps",
			Help:    "Slippage applied to executed orders in basis points.",
			Buckets: []float64{1, 2, 5, 10, 12, 15, 25, 50},
		}),
	}

	p.registry.MustRegister(p.trades, p.halts, p.halted, p.pnl, p.latency, p.slippage)
	return p
}

// Registry 返回底层注册表。
func (p *Prometheus) Registry() *prometheus.Registry {
	return p.registry
}

// Handler 返回 /metrics 处理器。
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

func (p *Prometheus) TradeExecuted(mode, strategy string) {
	p.trades.WithLabelValues(mode, strategy).Inc()
}

func (p *Prometheus) Halted(reason string) {
	p.halts.WithLabelValues(reason).Inc()
}

func (p *Prometheus) SetHalted(halted bool) {
	if halted {
		p.halted.Set(1)
		return
	}
	p.halted.Set(0)
}

func (p *Prometheus) SetRealizedPnL(usd float64) {
	p.pnl.Set(usd)
}

func (p *Prometheus) ObserveLatency(d time.Duration) {
	p.latency.Observe(float64(d) / float64(time.Millisecond))
}

func (p *Prometheus) ObserveSlippage(bps float64) {
	p.slippage.Observe(bps)
}
