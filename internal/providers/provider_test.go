package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aigoflow/multichat-service/internal/config"
	"github.com/aigoflow/multichat-service/internal/prompt"
)

func TestOpenAIProviderComplete(t *testing.T) {
	var gotAuth string
	var gotBody map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"id":"x","object":"chat.completion","model":"grok-2","choices":[{"index":0,"message":{"role":"assistant","content":"hello from grok"},"finish_reason":"stop"}],"usage":{"prompt_tokens":12,"completion_tokens":4,"total_tokens":16}}`)
	}))
	defer srv.Close()

	p := NewOpenAIProvider("grok", srv.URL+"/v1", srv.Client())
	turns := prompt.Turns(nil, "hi")
	c, err := p.Complete(context.Background(), Request{Model: "grok-2", APIKey: "xai-key", Turns: turns})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}

	if gotAuth != "Bearer xai-key" {
		t.Errorf("Unexpected auth header %q", gotAuth)
	}
	if gotBody["model"] != "grok-2" {
		t.Errorf("Unexpected model in body: %v", gotBody["model"])
	}
	if c.Text != "hello from grok" || c.TokensIn != 12 || c.TokensOut != 4 {
		t.Errorf("Unexpected completion %+v", c)
	}
}

func TestOpenAIProviderRateLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		io.WriteString(w, `{"error":{"message":"slow down","type":"requests","code":"rate_limit_exceeded"}}`)
	}))
	defer srv.Close()

	p := NewOpenAIProvider("openai", srv.URL+"/v1", srv.Client())
	_, err := p.Complete(context.Background(), Request{Model: "gpt-4", APIKey: "k", Turns: prompt.Turns(nil, "hi")})
	if err == nil {
		t.Fatal("Expected an error")
	}
	if StatusCode(err) != http.StatusTooManyRequests {
		t.Errorf("Expected status 429, got %d (%v)", StatusCode(err), err)
	}
	if got := Describe("OpenAI", err); got != rateLimitText {
		t.Errorf("Unexpected description %q", got)
	}
}

func TestGeminiProviderComplete(t *testing.T) {
	var gotKey string
	var gotReq geminiRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1beta/models/gemini-pro:generateContent" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		gotKey = r.Header.Get("x-goog-api-key")
		json.NewDecoder(r.Body).Decode(&gotReq)
		io.WriteString(w, `{"candidates":[{"content":{"role":"model","parts":[{"text":"Hello"},{"text":" there"}]},"finishReason":"STOP"}],"usageMetadata":{"promptTokenCount":7,"candidatesTokenCount":2}}`)
	}))
	defer srv.Close()

	p := NewGeminiProvider("gemini", srv.URL+"/v1beta/", srv.Client())
	history := []prompt.Turn{{Role: prompt.RoleUser, Content: "a"}, {Role: prompt.RoleAssistant, Content: "b"}, {Role: prompt.RoleUser, Content: "c"}}
	c, err := p.Complete(context.Background(), Request{Model: "gemini-pro", APIKey: "g-key", Turns: history})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}

	if gotKey != "g-key" {
		t.Errorf("Unexpected api key header %q", gotKey)
	}
	if len(gotReq.Contents) != 3 || gotReq.Contents[1].Role != "model" {
		t.Errorf("Unexpected contents %+v", gotReq.Contents)
	}
	if c.Text != "Hello there" || c.TokensIn != 7 || c.TokensOut != 2 || c.Model != "gemini-pro" {
		t.Errorf("Unexpected completion %+v", c)
	}
}

func TestGeminiProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, `{"error":{"code":400,"message":"API key not valid","status":"INVALID_ARGUMENT"}}`)
	}))
	defer srv.Close()

	p := NewGeminiProvider("gemini", srv.URL, srv.Client())
	_, err := p.Complete(context.Background(), Request{Model: "gemini-pro", APIKey: "bad", Turns: prompt.Turns(nil, "hi")})
	if StatusCode(err) != http.StatusBadRequest {
		t.Fatalf("Expected 400 status error, got %v", err)
	}
	if got := Describe("Gemini", err); got != "Error with Gemini: status 400: API key not valid" {
		t.Errorf("Unexpected description %q", got)
	}
}

func TestIsRateLimit(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("Quota exceeded for project"), true},
		{errors.New("billing not enabled"), true},
		{fmt.Errorf("wrapped: %w", &StatusError{StatusCode: 429, Message: "x"}), true},
		{errors.New("failed to generate content"), false},
		{&StatusError{StatusCode: 500, Message: "internal"}, false},
	}
	for _, c := range cases {
		if got := IsRateLimit(c.err); got != c.want {
			t.Errorf("IsRateLimit(%v) = %v, want %v", c.err, got, c.want)
		}
	}
}

func TestMissingKeyText(t *testing.T) {
	if got := MissingKeyText("Grok"); got != "Please configure a valid Grok API key" {
		t.Errorf("Unexpected text %q", got)
	}
}

func TestCost(t *testing.T) {
	svc := config.ServiceConfig{InputPer1K: 0.01, OutputPer1K: 0.03}
	if got := Cost(svc, 1000, 2000); math.Abs(got-0.07) > 1e-9 {
		t.Errorf("Expected 0.07, got %v", got)
	}
	if Cost(config.ServiceConfig{}, 5000, 5000) != 0 {
		t.Error("Free service should cost nothing")
	}
}

func TestRegistryKinds(t *testing.T) {
	r := NewRegistry(config.DefaultServices(), 0)

	if p, ok := r.Get("gemini"); !ok {
		t.Error("gemini missing")
	} else if _, isGemini := p.(*GeminiProvider); !isGemini {
		t.Errorf("gemini should use the REST provider, got %T", p)
	}
	if p, ok := r.Get("grok"); !ok {
		t.Error("grok missing")
	} else if _, isOpenAI := p.(*OpenAIProvider); !isOpenAI {
		t.Errorf("grok should use the OpenAI-compatible provider, got %T", p)
	}
}
