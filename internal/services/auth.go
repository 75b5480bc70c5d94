package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/aigoflow/multichat-service/internal/config"
	"github.com/aigoflow/multichat-service/internal/models"
	"github.com/aigoflow/multichat-service/internal/repository"
)

const (
	googleUserInfoURL = "https://openidconnect.googleapis.com/v1/userinfo"
	oauthStateTTL     = 10 * time.Minute
)

// AuthService issues sessions, either through Google sign-in or as guests
type AuthService struct {
	repo        repository.Repository
	cfg         *config.Config
	oauth       *oauth2.Config
	userInfoURL string

	mu     sync.Mutex
	states map[string]time.Time
}

func NewAuthService(cfg *config.Config, repo repository.Repository) *AuthService {
	s := &AuthService{
		repo:        repo,
		cfg:         cfg,
		userInfoURL: googleUserInfoURL,
		states:      make(map[string]time.Time),
	}
	if cfg.GoogleEnabled() {
		s.oauth = &oauth2.Config{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.GoogleRedirectURL,
			Scopes:       []string{"openid", "email"},
			Endpoint:     google.Endpoint,
		}
	}
	return s
}

// SetEndpoint points Google sign-in at another authorization server
func (s *AuthService) SetEndpoint(endpoint oauth2.Endpoint, userInfoURL string) {
	if s.oauth != nil {
		s.oauth.Endpoint = endpoint
	}
	s.userInfoURL = userInfoURL
}

// Login starts a sign-in. With Google configured it returns the consent
// URL; otherwise it issues a guest session when guests are allowed.
func (s *AuthService) Login(ctx context.Context) (*models.LoginResult, error) {
	if s.oauth != nil {
		state := uuid.NewString()
		s.rememberState(state)
		return &models.LoginResult{
			Status:  "redirect",
			AuthURL: s.oauth.AuthCodeURL(state, oauth2.AccessTypeOffline),
			State:   state,
		}, nil
	}

	if !s.cfg.GuestLogin {
		return nil, fmt.Errorf("%w: no sign-in method configured", models.ErrUnauthorized)
	}

	sess, err := s.createSession(ctx, "guest-"+uuid.NewString(), "", true)
	if err != nil {
		return nil, err
	}
	slog.Info("Guest session created", "user_id", sess.UserID)

	return &models.LoginResult{
		Status:  "ok",
		UserID:  sess.UserID,
		Guest:   true,
		Session: sess,
	}, nil
}

// Callback finishes Google sign-in and opens a session for the email
func (s *AuthService) Callback(ctx context.Context, state, code string) (*models.Session, error) {
	if s.oauth == nil {
		return nil, fmt.Errorf("%w: google sign-in is not configured", models.ErrUnauthorized)
	}
	if !s.consumeState(state) {
		return nil, fmt.Errorf("%w: unknown or expired state", models.ErrUnauthorized)
	}
	if code == "" {
		return nil, fmt.Errorf("%w: missing code", models.ErrUnauthorized)
	}

	tok, err := s.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange code: %w", err)
	}

	email, err := s.fetchEmail(ctx, tok)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Sessions().SaveToken(ctx, &models.OAuthToken{
		Email:        email,
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.TokenType,
		Expiry:       tok.Expiry,
	}); err != nil {
		return nil, fmt.Errorf("failed to save token: %w", err)
	}

	sess, err := s.createSession(ctx, email, email, false)
	if err != nil {
		return nil, err
	}

	slog.Info("Google sign-in completed", "user_id", email)
	s.repo.Event().LogEvent(ctx, "info", "auth.login", "Google sign-in", map[string]interface{}{"email": email})
	return sess, nil
}

func (s *AuthService) fetchEmail(ctx context.Context, tok *oauth2.Token) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.userInfoURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := s.oauth.Client(ctx, tok).Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch user info: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("user info returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var info struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return "", fmt.Errorf("failed to decode user info: %w", err)
	}
	if info.Email == "" {
		return "", fmt.Errorf("%w: user info has no email", models.ErrUnauthorized)
	}
	return strings.ToLower(info.Email), nil
}

func (s *AuthService) createSession(ctx context.Context, userID, email string, guest bool) (*models.Session, error) {
	now := time.Now()
	sess := &models.Session{
		Token:     uuid.NewString(),
		UserID:    userID,
		Email:     email,
		Guest:     guest,
		CreatedAt: now,
		ExpiresAt: now.Add(s.cfg.SessionTTL),
	}
	if err := s.repo.Sessions().Create(ctx, sess); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return sess, nil
}

// Session returns the live session for a cookie token
func (s *AuthService) Session(ctx context.Context, token string) (*models.Session, error) {
	if token == "" {
		return nil, models.ErrUnauthorized
	}
	sess, err := s.repo.Sessions().Get(ctx, token)
	if errors.Is(err, models.ErrNotFound) {
		return nil, models.ErrUnauthorized
	}
	return sess, err
}

func (s *AuthService) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return s.repo.Sessions().Delete(ctx, token)
}

func (s *AuthService) rememberState(state string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for k, exp := range s.states {
		if now.After(exp) {
			delete(s.states, k)
		}
	}
	s.states[state] = now.Add(oauthStateTTL)
}

func (s *AuthService) consumeState(state string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	exp, ok := s.states[state]
	delete(s.states, state)
	return ok && time.Now().Before(exp)
}
