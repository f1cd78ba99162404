package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheus_Counters(t *testing.T) {
	p := NewPrometheus()

	p.TradeExecuted("paper", "trend")
	p.TradeExecuted("paper", "trend")
	p.TradeExecuted("paper", "pairs")
	p.Halted("max_trades_per_day")
	p.SetHalted(true)
	p.SetRealizedPnL(-3.5)

	assert.Equal(t, 2.0, testutil.ToFloat64(p.trades.WithLabelValues("paper", "trend")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.trades.WithLabelValues("paper", "pairs")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.halts.WithLabelValues("max_trades_per_day")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.halted))
	assert.Equal(t, -3.5, testutil.ToFloat64(p.pnl))

	p.SetHalted(false)
	assert.Equal(t, 0.0, testutil.ToFloat64(p.halted))
}

func TestPrometheus_Handler(t *testing.T) {
	p := NewPrometheus()
	p.ObserveLatency(120 * time.Millisecond)
	p.ObserveSlippage(10)

	rec := httptest.NewRecorder()
	p.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "rqe_api_latency_ms_count 1")
	assert.Contains(t, string(body), "rqe_slippage_bps_sum 10")
}

func TestNop(t *testing.T) {
	var s Sink = Nop{}
	s.TradeExecuted("paper", "trend")
	s.ObserveLatency(time.Second)
}
