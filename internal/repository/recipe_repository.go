package repository

import (
	"context"
	"errors"
	"time"

	"github.com/zfogg/recipebook/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RecipeUpdate describes a partial recipe update. Nil scalar fields are left
// untouched. A nil Ingredients/Instructions slice leaves that list alone; a
// non-nil slice (even empty) replaces the list wholesale.
type RecipeUpdate struct {
	Title              *string
	Description        *string
	Cuisine            *string
	Difficulty         *string
	CookingTimeMinutes *int
	Ingredients        []models.RecipeIngredient
	Instructions       []models.Instruction
}

// RecipeRepository handles all primary-store operations for the recipe aggregate
type RecipeRepository interface {
	CreateRecipe(ctx context.Context, recipe *models.Recipe) error
	GetRecipe(ctx context.Context, recipeID string) (*models.Recipe, error)
	UpdateRecipe(ctx context.Context, recipeID string, update RecipeUpdate) error
	DeleteRecipe(ctx context.Context, recipeID string) error

	// GetAggregate loads the recipe with author, ingredients (by position),
	// instructions (by step), ratings and comments joined.
	GetAggregate(ctx context.Context, recipeID string) (*models.Recipe, error)
	// ListRecipes returns one page of aggregates, newest first.
	ListRecipes(ctx context.Context, offset, limit int) ([]models.Recipe, error)
	// EachAggregateBatch streams every recipe aggregate in batches of batchSize.
	EachAggregateBatch(ctx context.Context, batchSize int, fn func([]models.Recipe) error) error
	SampleRecipeIDs(ctx context.Context, limit int) ([]string, error)
	CountRecipes(ctx context.Context) (int64, error)
	// ExistingRecipeIDs returns the subset of ids that are stored recipes.
	ExistingRecipeIDs(ctx context.Context, ids []string) ([]string, error)

	UpsertRating(ctx context.Context, rating *models.Rating) error
	CreateComment(ctx context.Context, comment *models.Comment) error
}

// recipeRepository implements RecipeRepository interface
type recipeRepository struct {
	db *gorm.DB
}

// NewRecipeRepository creates a new recipe repository
func NewRecipeRepository(db *gorm.DB) RecipeRepository {
	return &recipeRepository{db: db}
}

// CreateRecipe inserts the recipe together with its ingredients and instructions
func (r *recipeRepository) CreateRecipe(ctx context.Context, recipe *models.Recipe) error {
	if recipe == nil || recipe.Title == "" || recipe.AuthorID == "" {
		return ErrInvalidInput
	}

	for i := range recipe.Ingredients {
		recipe.Ingredients[i].Position = i
	}

	return r.db.WithContext(ctx).
		Omit("Author", "Ratings", "Comments").
		Create(recipe).Error
}

// GetRecipe gets the bare recipe row by ID
func (r *recipeRepository) GetRecipe(ctx context.Context, recipeID string) (*models.Recipe, error) {
	var recipe models.Recipe
	err := r.db.WithContext(ctx).Where("id = ?", recipeID).First(&recipe).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRecipeNotFound
	}
	if err != nil {
		return nil, err
	}

	return &recipe, nil
}

// UpdateRecipe applies field changes and list replacements in one transaction
func (r *recipeRepository) UpdateRecipe(ctx context.Context, recipeID string, update RecipeUpdate) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.Recipe
		if err := tx.Select("id").Where("id = ?", recipeID).First(&existing).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrRecipeNotFound
			}
			return err
		}

		fields := map[string]interface{}{"updated_at": time.Now().UTC()}
		if update.Title != nil {
			fields["title"] = *update.Title
		}
		if update.Description != nil {
			fields["description"] = *update.Description
		}
		if update.Cuisine != nil {
			fields["cuisine"] = *update.Cuisine
		}
		if update.Difficulty != nil {
			fields["difficulty"] = *update.Difficulty
		}
		if update.CookingTimeMinutes != nil {
			fields["cooking_time_minutes"] = *update.CookingTimeMinutes
		}

		if err := tx.Model(&models.Recipe{}).Where("id = ?", recipeID).Updates(fields).Error; err != nil {
			return err
		}

		if update.Ingredients != nil {
			if err := tx.Where("recipe_id = ?", recipeID).Delete(&models.RecipeIngredient{}).Error; err != nil {
				return err
			}
			if len(update.Ingredients) > 0 {
				ingredients := make([]models.RecipeIngredient, len(update.Ingredients))
				for i, ing := range update.Ingredients {
					ingredients[i] = models.RecipeIngredient{
						RecipeID: recipeID,
						Position: i,
						Name:     ing.Name,
						Quantity: ing.Quantity,
					}
				}
				if err := tx.Create(&ingredients).Error; err != nil {
					return err
				}
			}
		}

		if update.Instructions != nil {
			if err := tx.Where("recipe_id = ?", recipeID).Delete(&models.Instruction{}).Error; err != nil {
				return err
			}
			if len(update.Instructions) > 0 {
				instructions := make([]models.Instruction, len(update.Instructions))
				for i, ins := range update.Instructions {
					instructions[i] = models.Instruction{
						RecipeID:   recipeID,
						StepNumber: ins.StepNumber,
						Text:       ins.Text,
					}
				}
				if err := tx.Create(&instructions).Error; err != nil {
					return err
				}
			}
		}

		return nil
	})
}

// DeleteRecipe removes the recipe and every dependent row
func (r *recipeRepository) DeleteRecipe(ctx context.Context, recipeID string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("id = ?", recipeID).Limit(1).Find(&models.Recipe{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrRecipeNotFound
		}

		for _, child := range []interface{}{
			&models.Comment{},
			&models.Rating{},
			&models.Instruction{},
			&models.RecipeIngredient{},
		} {
			if err := tx.Where("recipe_id = ?", recipeID).Delete(child).Error; err != nil {
				return err
			}
		}

		return tx.Where("id = ?", recipeID).Delete(&models.Recipe{}).Error
	})
}

func preloadAggregate(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Author").
		Preload("Ingredients", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		Preload("Instructions", func(db *gorm.DB) *gorm.DB {
			return db.Order("step_number ASC")
		}).
		Preload("Ratings").
		Preload("Comments", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC")
		})
}

// GetAggregate loads a fresh, complete snapshot of the recipe aggregate
func (r *recipeRepository) GetAggregate(ctx context.Context, recipeID string) (*models.Recipe, error) {
	var recipe models.Recipe
	err := preloadAggregate(r.db.WithContext(ctx)).
		Where("id = ?", recipeID).
		First(&recipe).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRecipeNotFound
	}
	if err != nil {
		return nil, err
	}

	return &recipe, nil
}

// ListRecipes pages through recipe aggregates by creation time, newest first
func (r *recipeRepository) ListRecipes(ctx context.Context, offset, limit int) ([]models.Recipe, error) {
	if offset < 0 || limit <= 0 {
		return nil, ErrInvalidInput
	}

	recipes := []models.Recipe{}
	err := preloadAggregate(r.db.WithContext(ctx)).
		Order("created_at DESC").
		Order("id DESC").
		Offset(offset).
		Limit(limit).
		Find(&recipes).Error
	return recipes, err
}

// EachAggregateBatch walks the whole recipe table in primary-key order
func (r *recipeRepository) EachAggregateBatch(ctx context.Context, batchSize int, fn func([]models.Recipe) error) error {
	if batchSize <= 0 {
		return ErrInvalidInput
	}

	var batch []models.Recipe
	return preloadAggregate(r.db.WithContext(ctx)).
		FindInBatches(&batch, batchSize, func(tx *gorm.DB, _ int) error {
			return fn(batch)
		}).Error
}

// SampleRecipeIDs returns up to limit random recipe IDs
func (r *recipeRepository) SampleRecipeIDs(ctx context.Context, limit int) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).
		Model(&models.Recipe{}).
		Order("RANDOM()"). // random sample gives even coverage over time
		Limit(limit).
		Pluck("id", &ids).Error
	return ids, err
}

// CountRecipes returns the total number of recipes
func (r *recipeRepository) CountRecipes(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Recipe{}).Count(&count).Error
	return count, err
}

// ExistingRecipeIDs filters ids down to the recipes that still exist
func (r *recipeRepository) ExistingRecipeIDs(ctx context.Context, ids []string) ([]string, error) {
	existing := []string{}
	if len(ids) == 0 {
		return existing, nil
	}
	err := r.db.WithContext(ctx).
		Model(&models.Recipe{}).
		Where("id IN ?", ids).
		Pluck("id", &existing).Error
	return existing, err
}

// UpsertRating creates the user's rating or replaces their previous one.
// On return rating holds the stored row.
func (r *recipeRepository) UpsertRating(ctx context.Context, rating *models.Rating) error {
	if rating == nil || rating.UserID == "" || rating.RecipeID == "" {
		return ErrInvalidInput
	}

	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "recipe_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"score", "review", "updated_at"}),
	}).Create(rating).Error
	if err != nil {
		return err
	}

	// The generated ID is discarded on conflict, so reload the stored row.
	var stored models.Rating
	err = r.db.WithContext(ctx).
		Where("user_id = ? AND recipe_id = ?", rating.UserID, rating.RecipeID).
		First(&stored).Error
	if err != nil {
		return err
	}
	*rating = stored
	return nil
}

// CreateComment appends a comment to a recipe
func (r *recipeRepository) CreateComment(ctx context.Context, comment *models.Comment) error {
	if comment == nil || comment.UserID == "" || comment.RecipeID == "" {
		return ErrInvalidInput
	}

	return r.db.WithContext(ctx).Omit("User").Create(comment).Error
}
