package client

import "time"

// ServiceKeys overrides the server's keys and models for one request
type ServiceKeys struct {
	OpenAI string            `json:"openai,omitempty"`
	Gemini string            `json:"gemini,omitempty"`
	Grok   string            `json:"grok,omitempty"`
	Models map[string]string `json:"models,omitempty"`
}

// ChatRequest represents a chat sent to every model
type ChatRequest struct {
	ReqID       string       `json:"req_id"`
	Message     string       `json:"message"`
	UserID      string       `json:"user_id,omitempty"`
	ServiceKeys *ServiceKeys `json:"service_keys,omitempty"`
	ReplyTo     string       `json:"reply_to,omitempty"`
}

// ResponseDetail describes how one panel was produced
type ResponseDetail struct {
	Service    string  `json:"service"`
	Model      string  `json:"model,omitempty"`
	TokensIn   int     `json:"tokens_in"`
	TokensOut  int     `json:"tokens_out"`
	Cost       float64 `json:"cost"`
	DurationMs int64   `json:"duration_ms"`
	Status     string  `json:"status"`
	Error      string  `json:"error,omitempty"`
}

// ChatResponse carries one answer per model
type ChatResponse struct {
	MessageID string                    `json:"message_id"`
	ReqID     string                    `json:"req_id"`
	ChatGPT   string                    `json:"chatgpt"`
	Gemini    string                    `json:"gemini"`
	Grok      string                    `json:"grok"`
	Details   map[string]ResponseDetail `json:"details"`
	Error     string                    `json:"error,omitempty"`
}

// ProviderHealth reports one configured model service
type ProviderHealth struct {
	Name          string `json:"name"`
	ResponseKey   string `json:"response_key"`
	FreeModel     string `json:"free_model"`
	PaidModel     string `json:"paid_model,omitempty"`
	DefaultKeySet bool   `json:"default_key_set"`
}

// HealthStatus represents service health information
type HealthStatus struct {
	ServiceName  string           `json:"service_name"`
	Status       string           `json:"status"`
	LastActivity time.Time        `json:"last_activity"`
	Providers    []ProviderHealth `json:"providers"`
	Endpoint     string           `json:"endpoint"`
	NATSTopic    string           `json:"nats_topic"`
	Version      string           `json:"version"`
}

// ServiceMetrics is one model's share of the metrics
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

// Metrics is a published metrics snapshot
type Metrics struct {
	TotalCalls      int     `json:"total_calls"`
	TotalCost       float64 `json:"total_cost"`
	FeedbackSummary struct {
		Positive int `json:"positive"`
		Negative int `json:"negative"`
	} `json:"feedback_summary"`
	Services    map[string]ServiceMetrics `json:"services"`
	GeneratedAt time.Time                 `json:"generated_at"`
}
