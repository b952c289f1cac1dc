package repository

import (
	"context"
	"errors"

	"github.com/zfogg/recipebook/internal/models"
	"gorm.io/gorm"
)

// UserRepository reads and updates the profile fields copied into recipe
// documents
type UserRepository interface {
	GetUser(ctx context.Context, userID string) (*models.User, error)
	// UpdateUserName sets or, with a nil name, clears the display name
	UpdateUserName(ctx context.Context, userID string, name *string) error
	// AuthoredRecipeIDs lists the recipes whose documents carry the user's name
	AuthoredRecipeIDs(ctx context.Context, userID string) ([]string, error)
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) GetUser(ctx context.Context, userID string) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).Where("id = ?", userID).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) UpdateUserName(ctx context.Context, userID string, name *string) error {
	if userID == "" {
		return ErrInvalidInput
	}

	result := r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", userID).
		Update("name", name)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *userRepository) AuthoredRecipeIDs(ctx context.Context, userID string) ([]string, error) {
	ids := []string{}
	err := r.db.WithContext(ctx).
		Model(&models.Recipe{}).
		Where("author_id = ?", userID).
		Order("created_at ASC").
		Pluck("id", &ids).Error
	return ids, err
}
