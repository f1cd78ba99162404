package monitor

import (
	"time"

	"rqe/internal/execution"
)

// EventType 表示监控事件类型。
type EventType string

const (
	EventHalt          EventType = "halt"
	EventResume        EventType = "resume"
	EventFill          EventType = "fill"
	EventFundingSignal EventType = "funding_signal"
	EventCycleSkip     EventType = "cycle_skip"
	EventError         EventType = "error"
)

// Event 封装通用监控事件。
type Event struct {
	Type      EventType   `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// HaltPayload 记录当日停机。
type HaltPayload struct {
	Day            string  `json:"day"`
	Reason         string  `json:"reason"`
	Trades         int     `json:"trades"`
	RealizedPnLUSD float64 `json:"realized_pnl_usd"`
	Source         string  `json:"source"`
}

// FillPayload 记录一次成交。
type FillPayload struct {
	Mode     string         `json:"mode"`
	Strategy string         `json:"strategy"`
	Fill     execution.Fill `json:"fill"`
}

// FundingPayload 记录资金费率信号切换。
type FundingPayload struct {
	Action string  `json:"action"`
	Rate   float64 `json:"rate"`
	Symbol string  `json:"symbol"`
}

// SkipPayload 记录被跳过的周期。
type SkipPayload struct {
	Reason    string  `json:"reason"`
	LatencyMs float64 `json:"latency_ms,omitempty"`
}

// ErrorPayload 记录异常。
type ErrorPayload struct {
	Message string                 `json:"message"`
	Error   string                 `json:"error"`
	Context map[string]interface{} `json:"context,omitempty"`
}
