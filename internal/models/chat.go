package models

import "time"

// History entry types
const (
	EntryUser = "user"
	EntryAI   = "ai"
)

// HistoryEntry is one line of a user's conversation
type HistoryEntry struct {
	Type      string    `json:"type" validate:"required,oneof=user ai assistant"`
	Message   string    `json:"message" validate:"required"`
	Source    string    `json:"source,omitempty"`
	UserID    string    `json:"user_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ServiceKeys carries per-request API keys and model overrides
type ServiceKeys struct {
	OpenAI string            `json:"openai,omitempty"`
	Gemini string            `json:"gemini,omitempty"`
	Grok   string            `json:"grok,omitempty"`
	Models map[string]string `json:"models,omitempty"`
}

// Key returns the request key for a service name
func (k *ServiceKeys) Key(service string) string {
	if k == nil {
		return ""
	}
	switch service {
	case "openai":
		return k.OpenAI
	case "gemini":
		return k.Gemini
	case "grok":
		return k.Grok
	}
	return ""
}

// Model returns the requested model override for a service
func (k *ServiceKeys) Model(service string) string {
	if k == nil || k.Models == nil {
		return ""
	}
	return k.Models[service]
}

// ChatRequest is the body of POST /api/chat and of NATS chat messages
type ChatRequest struct {
	ReqID       string       `json:"req_id,omitempty"`
	TraceID     string       `json:"trace_id,omitempty"`
	Message     string       `json:"message" validate:"required"`
	UserID      string       `json:"user_id,omitempty"`
	ServiceKeys *ServiceKeys `json:"service_keys,omitempty"`
	ReplyTo     string       `json:"reply_to,omitempty"`
}

// ResponseDetail describes how one panel's text was produced
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

// Panel statuses beyond the call statuses
const StatusSkipped = "skipped"

// ChatResponse carries one text per model panel
type ChatResponse struct {
	MessageID string                    `json:"message_id"`
	ReqID     string                    `json:"req_id,omitempty"`
	ChatGPT   string                    `json:"chatgpt"`
	Gemini    string                    `json:"gemini"`
	Grok      string                    `json:"grok"`
	Details   map[string]ResponseDetail `json:"details"`
	Error     string                    `json:"error,omitempty"`
}

// SetPanel stores text under the panel for a response key
func (r *ChatResponse) SetPanel(responseKey, text string) {
	switch responseKey {
	case "chatgpt":
		r.ChatGPT = text
	case "gemini":
		r.Gemini = text
	case "grok":
		r.Grok = text
	}
}

// Panel returns the text for a response key
func (r *ChatResponse) Panel(responseKey string) string {
	switch responseKey {
	case "chatgpt":
		return r.ChatGPT
	case "gemini":
		return r.Gemini
	case "grok":
		return r.Grok
	}
	return ""
}

// SaveKeysRequest is the body of POST /api/save-api-keys
type SaveKeysRequest struct {
	OpenAIKey string `json:"openai_key"`
	GeminiKey string `json:"gemini_key"`
	GrokKey   string `json:"grok_key"`
}

// ByService maps the request onto service names
func (r SaveKeysRequest) ByService() map[string]string {
	return map[string]string{
		"openai": r.OpenAIKey,
		"gemini": r.GeminiKey,
		"grok":   r.GrokKey,
	}
}

// KeyStatus reports whether a user has a stored key for a service
type KeyStatus struct {
	Configured bool   `json:"configured"`
	Hint       string `json:"hint,omitempty"`
}
