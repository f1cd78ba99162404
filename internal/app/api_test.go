package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rqe/internal/config"
	"rqe/internal/metrics"
	"rqe/internal/monitor"
	"rqe/internal/store"
)

func newTestAPI(t *testing.T) (http.Handler, *store.Store) {
	t.Helper()
	st, err := store.NewSQLite(config.DatabaseConfig{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	mon, err := monitor.NewService(st, nil)
	require.NoError(t, err)

	api := newAPIServer(st, mon, metrics.NewPrometheus().Handler(), config.ModePaper, nil)
	api.now = func() time.Time { return time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC) }
	return api.handler(), st
}

func do(t *testing.T, h http.Handler, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func decodeStatus(t *testing.T, rec *httptest.ResponseRecorder) statusResponse {
	t.Helper()
	var resp statusResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func TestAPI_HealthAndStatus(t *testing.T) {
	h, st := newTestAPI(t)

	rec := do(t, h, http.MethodGet, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = do(t, h, http.MethodGet, "/status")
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeStatus(t, rec)
	assert.Equal(t, "2024-03-01", resp.Day)
	assert.Equal(t, config.ModePaper, resp.Mode)
	assert.False(t, resp.Halted)

	require.NoError(t, st.SaveDailyState(context.Background(), store.DailyState{Day: "2024-03-01", Trades: 5, RealizedPnLUSD: 2.5}))
	resp = decodeStatus(t, do(t, h, http.MethodGet, "/status"))
	assert.Equal(t, 5, resp.Trades)
	assert.Equal(t, 2.5, resp.RealizedPnLUSD)
}

func TestAPI_HaltAndResume(t *testing.T) {
	h, st := newTestAPI(t)
	ctx := context.Background()

	rec := do(t, h, http.MethodPost, "/halt")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decodeStatus(t, rec).Halted)

	state, err := st.GetDailyState(ctx, "2024-03-01")
	require.NoError(t, err)
	assert.True(t, state.Halted)

	rec = do(t, h, http.MethodGet, "/events?type=HALT")
	require.Equal(t, http.StatusOK, rec.Code)
	var events []monitor.Event
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&events))
	assert.Len(t, events, 1)

	rec = do(t, h, http.MethodPost, "/resume")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decodeStatus(t, rec).Halted)

	assert.Equal(t, http.StatusMethodNotAllowed, do(t, h, http.MethodGet, "/halt").Code)
}

func TestAPI_FillsLimit(t *testing.T) {
	h, st := newTestAPI(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, st.AppendFill(ctx, store.FillRecord{
			Mode: "paper", Strategy: "trend", Symbol: "BTC/USDT", Side: "buy", Qty: 1, Price: 100,
		}))
	}

	var fills []store.FillRecord
	rec := do(t, h, http.MethodGet, "/fills?limit=2")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&fills))
	assert.Len(t, fills, 2)

	rec = do(t, h, http.MethodGet, "/fills?limit=abc")
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&fills))
	assert.Len(t, fills, 3)
}

func TestAPI_PreflightAndMetrics(t *testing.T) {
	h, _ := newTestAPI(t)

	rec := do(t, h, http.MethodOptions, "/halt")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "POST")

	rec = do(t, h, http.MethodGet, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "rqe_halted")
}

func TestParseLimit(t *testing.T) {
	assert.Equal(t, 50, parseLimit("", 50))
	assert.Equal(t, 50, parseLimit("-3", 50))
	assert.Equal(t, 7, parseLimit("7", 50))
	assert.Equal(t, maxListLimit, parseLimit("5000", 50))
}

func TestApp_MetricsRouteOnlyWithDecisionLoop(t *testing.T) {
	st, err := store.NewSQLite(config.DatabaseConfig{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	mon, err := monitor.NewService(st, nil)
	require.NoError(t, err)

	a := New(testConfig(t), nil, st)

	rec := do(t, a.newAPI(mon, false).handler(), http.MethodGet, "/metrics")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, a.newAPI(mon, true).handler(), http.MethodGet, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
}
