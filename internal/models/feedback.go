package models

import "time"

// Feedback values
const (
	FeedbackPositive = "positive"
	FeedbackNegative = "negative"
)

// Feedback is a thumbs up/down for one (message, service) pair
type Feedback struct {
	MessageID string    `json:"message_id" validate:"required"`
	Service   string    `json:"service" validate:"required"`
	Feedback  string    `json:"feedback" validate:"required"`
	UserID    string    `json:"user_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// FeedbackSummary tallies votes
type FeedbackSummary struct {
	Positive int `json:"positive"`
	Negative int `json:"negative"`
}

// ServiceMetrics is the per-service part of the metrics display
type ServiceMetrics struct {
	Calls        int     `json:"calls"`
	Errors       int     `json:"errors"`
	TotalCost    float64 `json:"total_cost"`
	TokensIn     int     `json:"tokens_in"`
	TokensOut    int     `json:"tokens_out"`
	AvgLatencyMs float64 `json:"avg_latency_ms"`
	Positive     int     `json:"positive"`
	Negative     int     `json:"negative"`
}

// Metrics is the payload of GET /api/metrics
type Metrics struct {
	TotalCalls      int                       `json:"total_calls"`
	TotalCost       float64                   `json:"total_cost"`
	FeedbackSummary FeedbackSummary           `json:"feedback_summary"`
	Services        map[string]ServiceMetrics `json:"services"`
	GeneratedAt     time.Time                 `json:"generated_at"`
}
