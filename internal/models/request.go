package models

import "time"

// CallLog represents one logged provider call
type CallLog struct {
	Timestamp  time.Time `json:"ts"`
	CallID     string    `json:"call_id"`
	MessageID  string    `json:"message_id"`
	UserID     string    `json:"user_id"`
	Source     string    `json:"source"`
	Service    string    `json:"service"`
	Model      string    `json:"model"`
	RawInput   string    `json:"raw_input"`
	Response   string    `json:"response_text"`
	InputLen   int       `json:"input_len"`
	TokensIn   int       `json:"tokens_in"`
	TokensOut  int       `json:"tokens_out"`
	Cost       float64   `json:"cost"`
	DurationMs int64     `json:"dur_ms"`
	Status     string    `json:"status"`
	Error      string    `json:"error"`
}

// Call statuses
const (
	CallOK    = "ok"
	CallError = "error"
	CallPanic = "panic"
)

// ServiceTotals aggregates the call log for one service
type ServiceTotals struct {
	Service      string  `json:"service"`
	Calls        int     `json:"calls"`
	Errors       int     `json:"errors"`
	TotalCost    float64 `json:"total_cost"`
	TokensIn     int     `json:"tokens_in"`
	TokensOut    int     `json:"tokens_out"`
	AvgLatencyMs float64 `json:"avg_latency_ms"`
}
