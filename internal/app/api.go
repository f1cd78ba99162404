package app

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"rqe/internal/monitor"
	"rqe/internal/store"
)

const (
	defaultFillsLimit  = 50
	defaultEventsLimit = 200
	maxListLimit       = 1000
)

type controlStore interface {
	GetDailyState(ctx context.Context, day string) (store.DailyState, error)
	SetHalted(ctx context.Context, day string, halted bool) error
	ListFills(ctx context.Context, limit int) ([]store.FillRecord, error)
}

type eventLog interface {
	ListEvents(ctx context.Context, eventType monitor.EventType, limit int) ([]monitor.Event, error)
	RecordHalt(ctx context.Context, payload monitor.HaltPayload)
	RecordResume(ctx context.Context, day string)
}

type statusResponse struct {
	store.DailyState
	Mode       string    `json:"mode"`
	ServerTime time.Time `json:"server_time"`
}

type apiServer struct {
	store   controlStore
	events  eventLog
	metrics http.Handler
	mode    string
	now     func() time.Time
	logger  *zap.Logger
}

func newAPIServer(st controlStore, events eventLog, metricsHandler http.Handler, mode string, logger *zap.Logger) *apiServer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &apiServer{
		store:   st,
		events:  events,
		metrics: metricsHandler,
		mode:    mode,
		now:     time.Now,
		logger:  logger,
	}
}

func (s *apiServer) handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/health", s.health).Methods(http.MethodGet)
	r.HandleFunc("/status", s.status).Methods(http.MethodGet)
	r.HandleFunc("/fills", s.fills).Methods(http.MethodGet)
	r.HandleFunc("/events", s.listEvents).Methods(http.MethodGet)
	r.HandleFunc("/halt", s.setHalted(true)).Methods(http.MethodPost)
	r.HandleFunc("/resume", s.setHalted(false)).Methods(http.MethodPost)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics).Methods(http.MethodGet)
	}
	return withCORS(r)
}

func (s *apiServer) health(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"time":   s.now().UTC(),
	})
}

func (s *apiServer) status(w http.ResponseWriter, r *http.Request) {
	now := s.now().UTC()
	state, err := s.store.GetDailyState(r.Context(), store.DayKey(now))
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, statusResponse{DailyState: state, Mode: s.mode, ServerTime: now})
}

func (s *apiServer) fills(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r.URL.Query().Get("limit"), defaultFillsLimit)
	fills, err := s.store.ListFills(r.Context(), limit)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, fills)
}

func (s *apiServer) listEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := parseLimit(q.Get("limit"), defaultEventsLimit)

	eventType := monitor.EventType("")
	if typ := strings.TrimSpace(q.Get("type")); typ != "" {
		eventType = monitor.EventType(strings.ToLower(typ))
	}

	events, err := s.events.ListEvents(r.Context(), eventType, limit)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, events)
}

// setHalted 人工停机或恢复当日交易，决策循环在下一周期读取新状态。
func (s *apiServer) setHalted(halted bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		day := store.DayKey(s.now())
		if err := s.store.SetHalted(ctx, day, halted); err != nil {
			s.writeError(w, http.StatusInternalServerError, err)
			return
		}

		state, err := s.store.GetDailyState(ctx, day)
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, err)
			return
		}

		if halted {
			s.events.RecordHalt(ctx, monitor.HaltPayload{
				Day:            day,
				Reason:         "manual",
				Trades:         state.Trades,
				RealizedPnLUSD: state.RealizedPnLUSD,
				Source:         "api",
			})
		} else {
			s.events.RecordResume(ctx, day)
		}
		s.logger.Warn("人工修改停机状态", zap.String("day", day), zap.Bool("halted", halted))

		s.writeJSON(w, http.StatusOK, statusResponse{DailyState: state, Mode: s.mode, ServerTime: s.now().UTC()})
	}
}

func (s *apiServer) writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("写入接口响应失败", zap.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, code int, err error) {
	s.logger.Error("接口处理失败", zap.Error(err))
	s.writeJSON(w, code, map[string]string{"error": err.Error()})
}

func parseLimit(raw string, def int) int {
	limit := def
	if raw == "" {
		return limit
	}
	if v, err := strconv.Atoi(raw); err == nil && v > 0 {
		limit = v
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	return limit
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// serveHTTP 阻塞运行 HTTP 服务，ctx 结束后优雅关闭。
func serveHTTP(ctx context.Context, addr string, handler http.Handler, logger *zap.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	logger.Info("控制接口已启动", zap.String("addr", addr))

	select {
	case err, ok := <-errCh:
		if ok {
			logger.Error("控制接口异常", zap.Error(err))
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Warn("关闭控制接口失败", zap.Error(err))
		return err
	}
	return nil
}
