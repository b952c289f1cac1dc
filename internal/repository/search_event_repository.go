package repository

import (
	"context"

	"github.com/zfogg/recipebook/internal/models"
	"gorm.io/gorm"
)

// SearchEventRepository persists search analytics rows
type SearchEventRepository interface {
	CreateSearchEvent(ctx context.Context, event *models.SearchEvent) error
}

type searchEventRepository struct {
	db *gorm.DB
}

// NewSearchEventRepository creates a new search event repository
func NewSearchEventRepository(db *gorm.DB) SearchEventRepository {
	return &searchEventRepository{db: db}
}

func (r *searchEventRepository) CreateSearchEvent(ctx context.Context, event *models.SearchEvent) error {
	if event == nil {
		return ErrInvalidInput
	}
	return r.db.WithContext(ctx).Create(event).Error
}
