package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/aigoflow/multichat-service/internal/config"
	"github.com/aigoflow/multichat-service/internal/models"
	"github.com/aigoflow/multichat-service/internal/providers"
	"github.com/aigoflow/multichat-service/internal/repository"
	"github.com/aigoflow/multichat-service/internal/secrets"
	"github.com/aigoflow/multichat-service/internal/services"
	"github.com/aigoflow/multichat-service/internal/store"
)

type echoProvider struct{ name string }

func (p echoProvider) Name() string { return p.name }

func (p echoProvider) Complete(ctx context.Context, req providers.Request) (*providers.Completion, error) {
	last := req.Turns[len(req.Turns)-1].Content
	return &providers.Completion{Text: p.name + " says " + last, Model: req.Model, TokensIn: 10, TokensOut: 5}, nil
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "test.sqlite"))
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	cfg := &config.Config{
		Services:        config.DefaultServices(),
		DefaultKeys:     map[string]string{"openai": "sk-server"},
		ProviderTimeout: 5 * time.Second,
		HistoryWindow:   5,
		SessionCookie:   "mc_session",
		SessionTTL:      time.Hour,
		GuestLogin:      true,
	}
	repo := repository.NewSQLiteRepository(db)
	collectors := services.NewCollectors(prometheus.NewRegistry())

	var key [32]byte
	creds := services.NewCredentialService(repo, secrets.NewSealer(key), cfg.Services)
	registry := providers.NewStaticRegistry(echoProvider{"openai"}, echoProvider{"gemini"}, echoProvider{"grok"})
	auth := services.NewAuthService(cfg, repo)

	mux := http.NewServeMux()
	NewAuthHandler(auth, cfg.SessionCookie).RegisterRoutes(mux)
	NewKeysHandler(creds).RegisterRoutes(mux)
	NewChatHandler(services.NewChatService(cfg, repo, registry, creds, collectors)).RegisterRoutes(mux)
	NewFeedbackHandler(services.NewFeedbackService(repo, cfg.Services, collectors)).RegisterRoutes(mux)
	NewMetricsHandler(services.NewMetricsService(repo, cfg)).RegisterRoutes(mux)

	srv := httptest.NewServer(WithSession(auth, cfg.SessionCookie, mux))
	t.Cleanup(srv.Close)
	return srv
}

func newClient(t *testing.T) *http.Client {
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatal(err)
	}
	return &http.Client{Jar: jar}
}

func doJSON(t *testing.T, c *http.Client, method, url string, body interface{}, out interface{}) int {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req, _ := http.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.Do(req)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, url, err)
	}
	defer resp.Body.Close()
	if out != nil {
		json.NewDecoder(resp.Body).Decode(out)
	}
	return resp.StatusCode
}

func TestChatFlow(t *testing.T) {
	srv := newTestServer(t)
	c := newClient(t)

	var login models.LoginResult
	if code := doJSON(t, c, http.MethodGet, srv.URL+"/login", nil, &login); code != http.StatusOK {
		t.Fatalf("Login returned %d", code)
	}
	if login.Status != "ok" || !login.Guest || login.UserID == "" {
		t.Fatalf("Unexpected login %+v", login)
	}

	var again models.LoginResult
	doJSON(t, c, http.MethodGet, srv.URL+"/login", nil, &again)
	if again.UserID != login.UserID {
		t.Errorf("Second login should reuse the session, got %s want %s", again.UserID, login.UserID)
	}

	var saved struct {
		Status string   `json:"status"`
		Saved  []string `json:"saved"`
	}
	code := doJSON(t, c, http.MethodPost, srv.URL+"/api/save-api-keys",
		models.SaveKeysRequest{GrokKey: "xai-secret-5678"}, &saved)
	if code != http.StatusOK || saved.Status != "success" || len(saved.Saved) != 1 {
		t.Fatalf("Unexpected save response %d %+v", code, saved)
	}

	var status map[string]models.KeyStatus
	doJSON(t, c, http.MethodGet, srv.URL+"/api/api-keys", nil, &status)
	if !status["grok"].Configured || status["grok"].Hint != "…5678" || status["openai"].Configured {
		t.Errorf("Unexpected key status %+v", status)
	}

	var chat models.ChatResponse
	if code := doJSON(t, c, http.MethodPost, srv.URL+"/api/chat", map[string]string{"message": "hello"}, &chat); code != http.StatusOK {
		t.Fatalf("Chat returned %d", code)
	}
	if chat.ChatGPT != "openai says hello" || chat.Grok != "grok says hello" {
		t.Errorf("Unexpected panels %+v", chat)
	}
	if chat.Gemini != "Please configure a valid Gemini API key" {
		t.Errorf("Unexpected gemini panel %q", chat.Gemini)
	}
	if chat.Details["grok"].Model != "grok-2" {
		t.Errorf("Saved key should select the paid grok model, got %+v", chat.Details["grok"])
	}

	fb := map[string]string{"message_id": chat.MessageID, "service": "chatgpt", "feedback": "positive"}
	if code := doJSON(t, c, http.MethodPost, srv.URL+"/api/feedback", fb, nil); code != http.StatusOK {
		t.Errorf("Feedback returned %d", code)
	}
	q := "/api/feedback?message_id=" + chat.MessageID + "&service=grok&feedback=negative"
	if code := doJSON(t, c, http.MethodPost, srv.URL+q, nil, nil); code != http.StatusOK {
		t.Errorf("Query feedback returned %d", code)
	}

	var metrics models.Metrics
	doJSON(t, c, http.MethodGet, srv.URL+"/api/metrics", nil, &metrics)
	if metrics.TotalCalls != 2 || metrics.FeedbackSummary.Positive != 1 || metrics.FeedbackSummary.Negative != 1 {
		t.Errorf("Unexpected metrics %+v", metrics)
	}

	sel := models.HistoryEntry{Type: "ai", Message: chat.Grok, Source: "grok"}
	if code := doJSON(t, c, http.MethodPost, srv.URL+"/api/select_response", sel, nil); code != http.StatusOK {
		t.Errorf("Select returned %d", code)
	}

	var history []models.HistoryEntry
	doJSON(t, c, http.MethodGet, srv.URL+"/api/history", nil, &history)
	if len(history) != 2 || history[0].Message != "hello" || history[1].Source != "grok" {
		t.Errorf("Unexpected history %+v", history)
	}

	var calls []models.CallLog
	doJSON(t, c, http.MethodGet, srv.URL+"/api/calls?limit=1", nil, &calls)
	if len(calls) != 1 {
		t.Errorf("Expected one call with limit=1, got %d", len(calls))
	}

	if code := doJSON(t, c, http.MethodPost, srv.URL+"/logout", nil, nil); code != http.StatusOK {
		t.Errorf("Logout returned %d", code)
	}
	if code := doJSON(t, c, http.MethodGet, srv.URL+"/api/session", nil, nil); code != http.StatusUnauthorized {
		t.Errorf("Expected 401 after logout, got %d", code)
	}
}

func TestRequestErrors(t *testing.T) {
	srv := newTestServer(t)
	c := newClient(t)

	cases := []struct {
		name   string
		method string
		path   string
		body   interface{}
		status int
	}{
		{"chat wrong method", http.MethodGet, "/api/chat", nil, http.StatusMethodNotAllowed},
		{"metrics wrong method", http.MethodPost, "/api/metrics", nil, http.StatusMethodNotAllowed},
		{"empty message", http.MethodPost, "/api/chat", map[string]string{"message": ""}, http.StatusBadRequest},
		{"blank message", http.MethodPost, "/api/chat", map[string]string{"message": "   "}, http.StatusBadRequest},
		{"keys without session", http.MethodPost, "/api/save-api-keys", models.SaveKeysRequest{OpenAIKey: "k"}, http.StatusUnauthorized},
		{"feedback missing fields", http.MethodPost, "/api/feedback", map[string]string{"service": "grok"}, http.StatusBadRequest},
		{"feedback unknown value", http.MethodPost, "/api/feedback", map[string]string{"message_id": "m", "service": "grok", "feedback": "meh"}, http.StatusBadRequest},
		{"feedback unknown service", http.MethodPost, "/api/feedback", map[string]string{"message_id": "m", "service": "claude", "feedback": "up"}, http.StatusBadRequest},
		{"select bad type", http.MethodPost, "/api/select_response", map[string]string{"type": "robot", "message": "x"}, http.StatusBadRequest},
		{"no session", http.MethodGet, "/api/session", nil, http.StatusUnauthorized},
		{"callback without google", http.MethodGet, "/api/oauth/google/callback?code=x&state=y", nil, http.StatusUnauthorized},
	}
	for _, tc := range cases {
		if code := doJSON(t, c, tc.method, srv.URL+tc.path, tc.body, nil); code != tc.status {
			t.Errorf("%s: expected %d, got %d", tc.name, tc.status, code)
		}
	}

	resp, err := c.Post(srv.URL+"/api/chat", "application/json", bytes.NewBufferString("{not json"))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Malformed JSON: expected 400, got %d", resp.StatusCode)
	}
}

func TestClientUserIDIsIgnored(t *testing.T) {
	srv := newTestServer(t)
	alice := newClient(t)
	other := newClient(t)

	var login models.LoginResult
	doJSON(t, alice, http.MethodGet, srv.URL+"/login", nil, &login)
	doJSON(t, alice, http.MethodPost, srv.URL+"/api/save-api-keys", models.SaveKeysRequest{GrokKey: "xai-alice-1234"}, nil)
	doJSON(t, alice, http.MethodPost, srv.URL+"/api/chat", map[string]string{"message": "alice private question"}, nil)

	var chat models.ChatResponse
	body := map[string]string{"message": "hi", "user_id": login.UserID}
	if code := doJSON(t, other, http.MethodPost, srv.URL+"/api/chat", body, &chat); code != http.StatusOK {
		t.Fatalf("Chat returned %d", code)
	}
	if chat.Grok != "Please configure a valid Grok API key" || chat.Details["grok"].Status != models.StatusSkipped {
		t.Errorf("Stored key of another user must not be used, got %q %+v", chat.Grok, chat.Details["grok"])
	}

	var history []models.HistoryEntry
	doJSON(t, other, http.MethodGet, srv.URL+"/api/history?user_id="+login.UserID, nil, &history)
	for _, e := range history {
		if e.Message == "alice private question" {
			t.Fatalf("History of another user was returned: %+v", history)
		}
	}

	sel := map[string]string{"type": "ai", "message": "injected", "source": "grok", "user_id": login.UserID}
	doJSON(t, other, http.MethodPost, srv.URL+"/api/select_response", sel, nil)

	// a session user writing with a foreign user_id still writes to their own history
	sel = map[string]string{"type": "ai", "message": "alice pick", "source": "grok", "user_id": "someone-else"}
	doJSON(t, alice, http.MethodPost, srv.URL+"/api/select_response", sel, nil)

	var own []models.HistoryEntry
	doJSON(t, alice, http.MethodGet, srv.URL+"/api/history", nil, &own)
	if len(own) != 2 || own[0].Message != "alice private question" || own[1].Message != "alice pick" {
		t.Errorf("Unexpected history for the session user %+v", own)
	}
}

func TestSelectRejectsPanelNotice(t *testing.T) {
	srv := newTestServer(t)
	c := newClient(t)

	sel := map[string]string{"type": "ai", "message": "Please configure a valid Gemini API key", "source": "gemini"}
	if code := doJSON(t, c, http.MethodPost, srv.URL+"/api/select_response", sel, nil); code != http.StatusBadRequest {
		t.Errorf("Expected 400 for a notice selection, got %d", code)
	}
}
