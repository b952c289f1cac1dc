// Package users serves author profiles. The author name is copied into every
// recipe document, so renaming re-syncs the author's recipes.
package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	apperrors "github.com/zfogg/recipebook/internal/errors"
	"github.com/zfogg/recipebook/internal/logger"
	"github.com/zfogg/recipebook/internal/metrics"
	"github.com/zfogg/recipebook/internal/models"
	"github.com/zfogg/recipebook/internal/recipes"
	"github.com/zfogg/recipebook/internal/repository"
	"github.com/zfogg/recipebook/internal/search"
	"go.uber.org/zap"
)

const MaxNameLength = 100

// ProfileInput is a profile update. A nil Name leaves it alone; a blank
// one clears it.
type ProfileInput struct {
	Name *string `json:"name"`
}

// Service reads and updates user profiles
type Service struct {
	repo repository.UserRepository
	sync recipes.Syncer
}

// NewService creates a profile service. sync may be nil when no index is
// configured.
func NewService(repo repository.UserRepository, sync recipes.Syncer) *Service {
	return &Service{repo: repo, sync: sync}
}

// Get returns a user's public profile
func (s *Service) Get(ctx context.Context, userID string) (*models.User, error) {
	if userID == "" {
		return nil, apperrors.ValidationError("user_id", "user id is required")
	}
	user, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		return nil, storeError(err, "get user")
	}
	return user, nil
}

// UpdateProfile applies in to the caller's profile. When the name changes,
// each recipe the user authored is re-synced so search shows the new name.
func (s *Service) UpdateProfile(ctx context.Context, userID string, in ProfileInput) (*models.User, error) {
	if userID == "" {
		return nil, apperrors.Unauthorized("user not authenticated")
	}

	user, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		return nil, storeError(err, "get user")
	}
	if in.Name == nil {
		return user, nil
	}

	name, err := normalizeName(*in.Name)
	if err != nil {
		return nil, err
	}
	if sameName(user.Name, name) {
		return user, nil
	}

	if err := s.repo.UpdateUserName(ctx, userID, name); err != nil {
		metrics.ProfileUpdatesTotal.WithLabelValues("error").Inc()
		return nil, storeError(err, "update user")
	}
	metrics.ProfileUpdatesTotal.WithLabelValues("success").Inc()
	user.Name = name

	s.resyncAuthored(ctx, userID)
	return user, nil
}

func (s *Service) resyncAuthored(ctx context.Context, userID string) {
	if s.sync == nil {
		return
	}
	ids, err := s.repo.AuthoredRecipeIDs(ctx, userID)
	if err != nil {
		// Reconciliation repairs the stale author names
		logger.Log.Warn("Failed to list recipes for author re-sync",
			logger.WithUserID(userID), zap.Error(err))
		return
	}
	for _, id := range ids {
		s.sync.AfterMutation(ctx, search.OpUpdate, id)
	}
	logger.Log.Debug("Re-synced authored recipes",
		logger.WithUserID(userID), zap.Int("recipes", len(ids)))
}

func normalizeName(raw string) (*string, error) {
	name := strings.TrimSpace(raw)
	if name == "" {
		return nil, nil
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		metrics.ValidationFailures.WithLabelValues("name").Inc()
		return nil, apperrors.ValidationError("name", fmt.Sprintf("name cannot exceed %d characters", MaxNameLength))
	}
	return &name, nil
}

func sameName(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func storeError(err error, action string) error {
	switch {
	case errors.Is(err, repository.ErrUserNotFound):
		return apperrors.NotFound("user")
	case errors.Is(err, repository.ErrInvalidInput):
		return apperrors.BadRequest("invalid user data")
	default:
		return fmt.Errorf("failed to %s: %w", action, err)
	}
}
