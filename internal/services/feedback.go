package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aigoflow/multichat-service/internal/config"
	"github.com/aigoflow/multichat-service/internal/models"
	"github.com/aigoflow/multichat-service/internal/repository"
)

// FeedbackTopic is the NATS subject feedback events are published on
const FeedbackTopic = "chat.feedback"

// EventPublisher sends domain events to subscribers outside the process
type EventPublisher interface {
	Publish(topic string, payload interface{}) error
}

type FeedbackService struct {
	repo       repository.Repository
	services   config.Services
	collectors *Collectors
	publisher  EventPublisher
	notifier   Notifier
}

func NewFeedbackService(repo repository.Repository, services config.Services, collectors *Collectors) *FeedbackService {
	return &FeedbackService{
		repo:       repo,
		services:   services,
		collectors: collectors,
	}
}

// SetPublisher registers the NATS side of feedback events
func (s *FeedbackService) SetPublisher(p EventPublisher) {
	s.publisher = p
}

func (s *FeedbackService) SetNotifier(n Notifier) {
	s.notifier = n
}

// Record validates and stores one vote. A later vote for the same
// message and service replaces the earlier one.
func (s *FeedbackService) Record(ctx context.Context, fb models.Feedback) (*models.Feedback, error) {
	fb.MessageID = strings.TrimSpace(fb.MessageID)
	if fb.MessageID == "" {
		return nil, fmt.Errorf("%w: message_id is required", models.ErrInvalidFeedback)
	}

	svc, ok := s.services.Resolve(strings.ToLower(strings.TrimSpace(fb.Service)))
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrInvalidService, fb.Service)
	}
	fb.Service = svc.Name

	value, ok := NormalizeFeedback(fb.Feedback)
	if !ok {
		return nil, fmt.Errorf("%w: %q", models.ErrInvalidFeedback, fb.Feedback)
	}
	fb.Feedback = value

	if fb.UserID == "" {
		fb.UserID = AnonymousUser
	}
	if fb.CreatedAt.IsZero() {
		fb.CreatedAt = time.Now()
	}

	if err := s.repo.Feedback().Record(ctx, fb); err != nil {
		return nil, fmt.Errorf("failed to record feedback: %w", err)
	}

	if s.collectors != nil {
		s.collectors.FeedbackTotal.WithLabelValues(fb.Service, fb.Feedback).Inc()
	}

	slog.Info("Feedback recorded",
		"message_id", fb.MessageID,
		"service", fb.Service,
		"feedback", fb.Feedback,
		"user_id", fb.UserID)

	if s.publisher != nil {
		if err := s.publisher.Publish(FeedbackTopic, fb); err != nil {
			slog.Warn("Failed to publish feedback event", "message_id", fb.MessageID, "error", err)
		}
	}
	if s.notifier != nil {
		s.notifier.Notify()
	}

	return &fb, nil
}

// NormalizeFeedback maps the accepted vote spellings onto positive or negative
func NormalizeFeedback(v string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "positive", "up", "thumbs_up", "like", "+1", "good":
		return models.FeedbackPositive, true
	case "negative", "down", "thumbs_down", "dislike", "-1", "bad":
		return models.FeedbackNegative, true
	}
	return "", false
}
