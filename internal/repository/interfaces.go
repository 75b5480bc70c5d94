package repository

import (
	"context"

	"github.com/aigoflow/multichat-service/internal/models"
)

// Repository aggregates all repository interfaces
type Repository interface {
	History() HistoryRepositoryInterface
	Credentials() CredentialRepositoryInterface
	Feedback() FeedbackRepositoryInterface
	Calls() CallRepositoryInterface
	Sessions() SessionRepositoryInterface
	Event() EventRepositoryInterface
}

// HistoryRepositoryInterface defines conversation history storage
type HistoryRepositoryInterface interface {
	Append(ctx context.Context, userID string, entry models.HistoryEntry) error
	// List returns the last limit entries oldest first; limit <= 0 returns all
	List(ctx context.Context, userID string, limit int) ([]models.HistoryEntry, error)
}

// CredentialRepositoryInterface stores sealed API keys
type CredentialRepositoryInterface interface {
	Save(ctx context.Context, userID, service, sealedKey string) error
	Get(ctx context.Context, userID, service string) (string, error)
	List(ctx context.Context, userID string) (map[string]string, error)
}

// FeedbackRepositoryInterface stores one vote per (message, service)
type FeedbackRepositoryInterface interface {
	Record(ctx context.Context, fb models.Feedback) error
	Summary(ctx context.Context) (map[string]models.FeedbackSummary, error)
}

// CallRepositoryInterface defines provider call logging operations
type CallRepositoryInterface interface {
	Log(ctx context.Context, call *models.CallLog) error
	Totals(ctx context.Context) ([]models.ServiceTotals, error)
	Recent(ctx context.Context, limit int) ([]*models.CallLog, error)
}

// SessionRepositoryInterface stores login sessions and OAuth tokens
type SessionRepositoryInterface interface {
	Create(ctx context.Context, s *models.Session) error
	Get(ctx context.Context, token string) (*models.Session, error)
	Delete(ctx context.Context, token string) error
	SaveToken(ctx context.Context, tok *models.OAuthToken) error
	GetToken(ctx context.Context, email string) (*models.OAuthToken, error)
}

// EventRepositoryInterface defines event logging operations
type EventRepositoryInterface interface {
	LogEvent(ctx context.Context, level, code, msg string, meta map[string]interface{}) error
}
