package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/aigoflow/multichat-service/internal/config"
	"github.com/aigoflow/multichat-service/internal/models"
	"github.com/aigoflow/multichat-service/internal/prompt"
	"github.com/aigoflow/multichat-service/internal/providers"
	"github.com/aigoflow/multichat-service/internal/repository"
)

// AnonymousUser owns history written without a session or user_id
const AnonymousUser = "anonymous"

// Notifier is told when the metrics display has changed
type Notifier interface {
	Notify()
}

type ChatService struct {
	cfg        *config.Config
	repo       repository.Repository
	registry   *providers.Registry
	creds      *CredentialService
	collectors *Collectors
	limiters   map[string]*rate.Limiter
	notifier   Notifier
	monitor    *MonitoringService
}

func NewChatService(cfg *config.Config, repo repository.Repository, registry *providers.Registry, creds *CredentialService, collectors *Collectors) *ChatService {
	limiters := make(map[string]*rate.Limiter)
	for _, name := range cfg.Services.Names() {
		if cfg.ProviderRPS > 0 {
			limiters[name] = rate.NewLimiter(rate.Limit(cfg.ProviderRPS), max(cfg.ProviderBurst, 1))
		}
	}

	return &ChatService{
		cfg:        cfg,
		repo:       repo,
		registry:   registry,
		creds:      creds,
		collectors: collectors,
		limiters:   limiters,
	}
}

// SetNotifier registers who to tell after calls were logged
func (s *ChatService) SetNotifier(n Notifier) {
	s.notifier = n
}

// SetMonitor counts chats as active work for backpressure reports
func (s *ChatService) SetMonitor(m *MonitoringService) {
	s.monitor = m
}

// panelCall is one provider dispatch within a chat
type panelCall struct {
	svc     config.ServiceConfig
	key     string
	ownKey  bool
	model   string
	turns   []prompt.Turn
	userID  string
	msgID   string
	source  string
	message string
}

type panelResult struct {
	text   string
	detail models.ResponseDetail
}

// ProcessChat sends the message to every configured service in parallel
// and returns one text per panel. Provider failures become panel text.
func (s *ChatService) ProcessChat(ctx context.Context, req models.ChatRequest, source string) (*models.ChatResponse, error) {
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return nil, models.ErrEmptyMessage
	}

	userID := req.UserID
	if userID == "" {
		userID = AnonymousUser
	}

	if s.collectors != nil {
		s.collectors.ChatsInFlight.Inc()
		defer s.collectors.ChatsInFlight.Dec()
	}
	if s.monitor != nil {
		s.monitor.IncrementActive()
		defer s.monitor.DecrementActive()
	}

	var history []models.HistoryEntry
	if s.cfg.HistoryWindow > 0 {
		var err error
		history, err = s.repo.History().List(ctx, userID, s.cfg.HistoryWindow)
		if err != nil {
			return nil, fmt.Errorf("failed to load history: %w", err)
		}
	}
	turns := prompt.Turns(prompt.Window(history, s.cfg.HistoryWindow), message)

	response := &models.ChatResponse{
		MessageID: ulid.Make().String(),
		ReqID:     req.ReqID,
		Details:   make(map[string]models.ResponseDetail),
	}

	names := s.cfg.Services.Names()
	results := make([]panelResult, len(names))

	var g errgroup.Group
	for i, name := range names {
		svc, _ := s.cfg.Services.Get(name)
		key, ownKey := s.resolveKey(ctx, userID, name, req.ServiceKeys)
		if key == "" {
			results[i] = panelResult{
				text:   providers.MissingKeyText(svc.DisplayName),
				detail: models.ResponseDetail{Service: name, Status: models.StatusSkipped},
			}
			continue
		}

		call := panelCall{
			svc:     svc,
			key:     key,
			ownKey:  ownKey,
			model:   s.chooseModel(svc, ownKey, req.ServiceKeys),
			turns:   turns,
			userID:  userID,
			msgID:   response.MessageID,
			source:  source,
			message: message,
		}
		g.Go(func() error {
			results[i] = s.dispatch(ctx, call)
			return nil
		})
	}
	_ = g.Wait()

	for i, name := range names {
		svc, _ := s.cfg.Services.Get(name)
		response.SetPanel(svc.ResponseKey, results[i].text)
		response.Details[svc.ResponseKey] = results[i].detail
	}

	if err := s.repo.History().Append(ctx, userID, models.HistoryEntry{
		Type:      models.EntryUser,
		Message:   message,
		Timestamp: time.Now(),
	}); err != nil {
		slog.Warn("Failed to save history", "user_id", userID, "error", err)
		s.repo.Event().LogEvent(ctx, "warn", "history.failed", "History append failed", map[string]interface{}{
			"user_id": userID,
			"error":   err.Error(),
		})
	}

	if s.notifier != nil {
		s.notifier.Notify()
	}

	slog.Info("Chat dispatched",
		"message_id", response.MessageID,
		"user_id", userID,
		"source", source)

	return response, nil
}

// resolveKey picks the request key, then the stored key, then the
// server default. ownKey is false only for the server default.
func (s *ChatService) resolveKey(ctx context.Context, userID, service string, keys *models.ServiceKeys) (string, bool) {
	if k := usableKey(keys.Key(service)); k != "" {
		return k, true
	}
	if s.creds != nil {
		stored, err := s.creds.Resolve(ctx, userID, service)
		if err == nil && usableKey(stored) != "" {
			return stored, true
		}
		if err != nil && !errors.Is(err, models.ErrNotFound) {
			slog.Warn("Failed to resolve stored key", "user_id", userID, "service", service, "error", err)
		}
	}
	return usableKey(s.cfg.DefaultKeys[service]), false
}

// usableKey drops blanks and template placeholders such as YOUR_TEST_OPENAI_KEY
func usableKey(k string) string {
	k = strings.TrimSpace(k)
	if strings.HasPrefix(k, "YOUR_") {
		return ""
	}
	return k
}

func (s *ChatService) chooseModel(svc config.ServiceConfig, ownKey bool, keys *models.ServiceKeys) string {
	if m := keys.Model(svc.Name); m != "" {
		return m
	}
	if ownKey && svc.PaidModel != "" {
		return svc.PaidModel
	}
	return svc.FreeModel
}

// dispatch runs one provider call, logs it and converts it to panel text
func (s *ChatService) dispatch(ctx context.Context, call panelCall) panelResult {
	start := time.Now()
	name := call.svc.Name

	completion, err, panicked := s.complete(ctx, call)
	duration := time.Since(start)

	status := models.CallOK
	text := ""
	errStr := ""
	var tokensIn, tokensOut int
	model := call.model

	switch {
	case panicked:
		status = models.CallPanic
		errStr = err.Error()
		text = providers.Describe(call.svc.DisplayName, err)
	case err != nil:
		status = models.CallError
		errStr = err.Error()
		text = providers.Describe(call.svc.DisplayName, err)
	default:
		text = completion.Text
		tokensIn, tokensOut = completion.TokensIn, completion.TokensOut
		if tokensIn == 0 && tokensOut == 0 {
			tokensIn = providers.EstimateTokens(prompt.Transcript(call.turns))
			tokensOut = providers.EstimateTokens(completion.Text)
		}
		if completion.Model != "" {
			model = completion.Model
		}
	}

	cost := providers.Cost(call.svc, tokensIn, tokensOut)

	callLog := &models.CallLog{
		Timestamp:  start,
		CallID:     ulid.Make().String(),
		MessageID:  call.msgID,
		UserID:     call.userID,
		Source:     call.source,
		Service:    name,
		Model:      model,
		RawInput:   call.message,
		Response:   text,
		TokensIn:   tokensIn,
		TokensOut:  tokensOut,
		Cost:       cost,
		DurationMs: duration.Milliseconds(),
		Status:     status,
		Error:      errStr,
	}
	// the request context may already be gone; the call still happened
	if logErr := s.repo.Calls().Log(context.WithoutCancel(ctx), callLog); logErr != nil {
		slog.Error("Failed to log call", "service", name, "error", logErr)
	}

	if s.collectors != nil {
		s.collectors.CallsTotal.WithLabelValues(name, status).Inc()
		s.collectors.CallDuration.WithLabelValues(name).Observe(duration.Seconds())
		s.collectors.CostTotal.WithLabelValues(name).Add(cost)
		s.collectors.TokensTotal.WithLabelValues(name, "in").Add(float64(tokensIn))
		s.collectors.TokensTotal.WithLabelValues(name, "out").Add(float64(tokensOut))
	}

	if err != nil {
		slog.Error("Provider call failed",
			"service", name,
			"model", model,
			"message_id", call.msgID,
			"duration_ms", duration.Milliseconds(),
			"error", err)
		s.repo.Event().LogEvent(ctx, "error", "provider.error", "Provider call failed", map[string]interface{}{
			"service":    name,
			"model":      model,
			"message_id": call.msgID,
			"status":     status,
			"error":      errStr,
		})
	} else {
		slog.Debug("Provider call completed",
			"service", name,
			"model", model,
			"duration_ms", duration.Milliseconds(),
			"tokens_in", tokensIn,
			"tokens_out", tokensOut)
	}

	return panelResult{
		text: text,
		detail: models.ResponseDetail{
			Service:    name,
			Model:      model,
			TokensIn:   tokensIn,
			TokensOut:  tokensOut,
			Cost:       cost,
			DurationMs: duration.Milliseconds(),
			Status:     status,
			Error:      errStr,
		},
	}
}

// complete waits for the rate limiter and calls the provider with
// panic recovery
func (s *ChatService) complete(ctx context.Context, call panelCall) (completion *providers.Completion, err error, panicked bool) {
	defer func() {
		if r := recover(); r != nil {
			completion = nil
			err = fmt.Errorf("provider panic: %v", r)
			panicked = true
		}
	}()

	provider, ok := s.registry.Get(call.svc.Name)
	if !ok {
		return nil, fmt.Errorf("no provider registered for %s", call.svc.Name), false
	}

	if lim := s.limiters[call.svc.Name]; lim != nil {
		if err := lim.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err), false
		}
	}

	callCtx := ctx
	if s.cfg.ProviderTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, s.cfg.ProviderTimeout)
		defer cancel()
	}

	completion, err = provider.Complete(callCtx, providers.Request{
		Model:  call.model,
		APIKey: call.key,
		Turns:  call.turns,
	})
	return completion, err, false
}

// SelectResponse records the panel the user picked in their history
func (s *ChatService) SelectResponse(ctx context.Context, entry models.HistoryEntry) error {
	userID := entry.UserID
	if userID == "" {
		userID = AnonymousUser
	}
	if entry.Type == "assistant" {
		entry.Type = models.EntryAI
	}
	if entry.Type == models.EntryAI {
		for _, name := range s.cfg.Services.Names() {
			svc, _ := s.cfg.Services.Get(name)
			if providers.IsNotice(svc.DisplayName, entry.Message) {
				return models.ErrInvalidEntry
			}
		}
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	return s.repo.History().Append(ctx, userID, entry)
}

// History returns the whole conversation of a user
func (s *ChatService) History(ctx context.Context, userID string) ([]models.HistoryEntry, error) {
	if userID == "" {
		userID = AnonymousUser
	}
	return s.repo.History().List(ctx, userID, 0)
}

// GetRequestLogs retrieves recent provider calls
func (s *ChatService) GetRequestLogs(ctx context.Context, limit int) ([]*models.CallLog, error) {
	return s.repo.Calls().Recent(ctx, limit)
}
