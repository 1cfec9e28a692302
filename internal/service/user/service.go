package user

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/pulse-ai/pulse/internal/identity"
	"github.com/pulse-ai/pulse/internal/model/user"
	"github.com/pulse-ai/pulse/internal/store"
)

var ErrTokenRequired = errors.New("access token is required")

// Service mirrors identity-provider accounts into the backend.
type Service struct {
	repo     store.UserRepository
	verifier identity.Verifier
	logger   *zap.Logger
}

// NewService wires the user service.
func NewService(repo store.UserRepository, verifier identity.Verifier, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{repo: repo, verifier: verifier, logger: logger.Named("user")}
}

// Sync verifies token and upserts the user it belongs to.
func (s *Service) Sync(ctx context.Context, token string) (user.User, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return user.User{}, ErrTokenRequired
	}

	id, err := s.verifier.Verify(ctx, token)
	if err != nil {
		return user.User{}, err
	}

	displayName := id.DisplayName
	if displayName == "" {
		displayName = id.Email
	}

	u, err := s.repo.UpsertUser(ctx, user.User{ID: id.ID, Email: id.Email, DisplayName: displayName})
	if err != nil {
		return user.User{}, fmt.Errorf("upsert user: %w", err)
	}

	s.logger.Info("user synced", zap.String("user_id", u.ID))
	return u, nil
}

// Get returns a stored user.
func (s *Service) Get(ctx context.Context, id string) (user.User, error) {
	return s.repo.GetUser(ctx, id)
}
