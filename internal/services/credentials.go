package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aigoflow/multichat-service/internal/config"
	"github.com/aigoflow/multichat-service/internal/models"
	"github.com/aigoflow/multichat-service/internal/repository"
	"github.com/aigoflow/multichat-service/internal/secrets"
)

// CredentialService stores per-user provider keys sealed at rest
type CredentialService struct {
	repo     repository.Repository
	sealer   *secrets.Sealer
	services config.Services
}

func NewCredentialService(repo repository.Repository, sealer *secrets.Sealer, services config.Services) *CredentialService {
	return &CredentialService{
		repo:     repo,
		sealer:   sealer,
		services: services,
	}
}

// SaveKeys stores every non-empty key of the request and returns the
// services that were saved
func (s *CredentialService) SaveKeys(ctx context.Context, userID string, req models.SaveKeysRequest) ([]string, error) {
	keys := req.ByService()

	var saved []string
	for _, name := range s.services.Names() {
		key := strings.TrimSpace(keys[name])
		if key == "" {
			continue
		}
		if err := s.SaveKey(ctx, userID, name, key); err != nil {
			return saved, err
		}
		saved = append(saved, name)
	}

	if len(saved) == 0 {
		return nil, models.ErrNoKeys
	}
	return saved, nil
}

// SaveKey stores one key for a catalog service
func (s *CredentialService) SaveKey(ctx context.Context, userID, service, key string) error {
	if _, ok := s.services.Get(service); !ok {
		return fmt.Errorf("%w: %s", models.ErrInvalidService, service)
	}

	sealed, err := s.sealer.Seal(key)
	if err != nil {
		return err
	}
	if err := s.repo.Credentials().Save(ctx, userID, service, sealed); err != nil {
		return err
	}

	slog.Info("API key saved", "user_id", userID, "service", service)
	return nil
}

// Status reports which services have a stored key, with a masked hint
func (s *CredentialService) Status(ctx context.Context, userID string) (map[string]models.KeyStatus, error) {
	stored, err := s.repo.Credentials().List(ctx, userID)
	if err != nil {
		return nil, err
	}

	out := make(map[string]models.KeyStatus, len(s.services.Names()))
	for _, name := range s.services.Names() {
		status := models.KeyStatus{}
		if sealed, ok := stored[name]; ok {
			if plain, err := s.sealer.Open(sealed); err == nil {
				status = models.KeyStatus{Configured: true, Hint: secrets.Mask(plain)}
			}
		}
		out[name] = status
	}
	return out, nil
}

// Resolve returns the plain stored key, or models.ErrNotFound
func (s *CredentialService) Resolve(ctx context.Context, userID, service string) (string, error) {
	sealed, err := s.repo.Credentials().Get(ctx, userID, service)
	if err != nil {
		return "", err
	}
	plain, err := s.sealer.Open(sealed)
	if err != nil {
		// a key sealed under a previous secret is as good as missing
		slog.Warn("Stored API key cannot be opened", "user_id", userID, "service", service)
		return "", errors.Join(models.ErrNotFound, err)
	}
	return plain, nil
}
