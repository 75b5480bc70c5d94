package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/aigoflow/multichat-service/internal/config"
	"github.com/aigoflow/multichat-service/internal/prompt"
)

// Provider sends one conversation to one chat backend
type Provider interface {
	Name() string
	Complete(ctx context.Context, req Request) (*Completion, error)
}

// Request is the provider-neutral chat request
type Request struct {
	Model  string
	APIKey string
	Turns  []prompt.Turn
}

// Completion is the provider-neutral result
type Completion struct {
	Text      string
	Model     string
	TokensIn  int
	TokensOut int
}

// StatusError is a non-2xx reply from a provider API
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("status %d: %s", e.StatusCode, e.Message)
}

const rateLimitText = "Rate limit reached. Please try again later or use your own API key."

// MissingKeyText is shown in a panel when no key is available
func MissingKeyText(displayName string) string {
	return fmt.Sprintf("Please configure a valid %s API key", displayName)
}

// Describe turns a provider failure into panel text
func Describe(displayName string, err error) string {
	if IsRateLimit(err) {
		return rateLimitText
	}
	return fmt.Sprintf("Error with %s: %v", displayName, err)
}

// IsNotice reports whether text is one of the panel notices shown in
// place of an answer from the named service
func IsNotice(displayName, text string) bool {
	text = strings.TrimSpace(text)
	return text == rateLimitText ||
		text == MissingKeyText(displayName) ||
		strings.HasPrefix(text, "Error with "+displayName+":")
}

// IsRateLimit reports whether err means the caller is over quota
func IsRateLimit(err error) bool {
	if err == nil {
		return false
	}
	if StatusCode(err) == http.StatusTooManyRequests {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"429", "quota", "rate limit", "billing"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// StatusCode extracts the HTTP status of a provider error, or 0
func StatusCode(err error) int {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	return 0
}

// Registry holds one provider per configured service
type Registry struct {
	providers map[string]Provider
}

// NewRegistry builds providers from the service catalog
func NewRegistry(services config.Services, timeout time.Duration) *Registry {
	client := &http.Client{Timeout: timeout}
	r := &Registry{providers: make(map[string]Provider)}
	for _, name := range services.Names() {
		svc, _ := services.Get(name)
		switch svc.Kind {
		case config.KindGemini:
			r.providers[name] = NewGeminiProvider(name, svc.BaseURL, client)
		default:
			r.providers[name] = NewOpenAIProvider(name, svc.BaseURL, client)
		}
	}
	return r
}

// NewStaticRegistry wraps already built providers
func NewStaticRegistry(providers ...Provider) *Registry {
	r := &Registry{providers: make(map[string]Provider)}
	for _, p := range providers {
		r.providers[p.Name()] = p
	}
	return r
}

func (r *Registry) Get(name string) (Provider, bool) {
	p, ok := r.providers[name]
	return p, ok
}
