// Package recipes implements the recipe write path: validate, commit to the
// primary store, then hand the recipe to the index sync exactly once.
package recipes

import (
	"context"
	"errors"
	"fmt"
	"strings"

	apperrors "github.com/zfogg/recipebook/internal/errors"
	"github.com/zfogg/recipebook/internal/logger"
	"github.com/zfogg/recipebook/internal/metrics"
	"github.com/zfogg/recipebook/internal/models"
	"github.com/zfogg/recipebook/internal/repository"
	"github.com/zfogg/recipebook/internal/search"
	"go.uber.org/zap"
)

const (
	MinScore = 1
	MaxScore = 5
)

// Listing page sizes
const (
	DefaultListPerPage = 20
	MaxListPerPage     = 100
)

// Syncer is told about every committed mutation. *search.Coordinator
// implements it; it must never fail the mutation.
type Syncer interface {
	AfterMutation(ctx context.Context, op search.Operation, recipeID string)
}

// IngredientInput is one ingredient line as submitted
type IngredientInput struct {
	Name     string  `json:"name"`
	Quantity *string `json:"quantity,omitempty"`
}

// InstructionInput is one step as submitted. A zero StepNumber takes the
// step's 1-based position in the list.
type InstructionInput struct {
	StepNumber int    `json:"step_number,omitempty"`
	Text       string `json:"text"`
}

// CreateInput is the payload for a new recipe
type CreateInput struct {
	Title              string             `json:"title"`
	Description        *string            `json:"description,omitempty"`
	Cuisine            *string            `json:"cuisine,omitempty"`
	Difficulty         *string            `json:"difficulty,omitempty"`
	CookingTimeMinutes *int               `json:"cooking_time_minutes,omitempty"`
	Ingredients        []IngredientInput  `json:"ingredients"`
	Instructions       []InstructionInput `json:"instructions"`
}

// UpdateInput is a partial update. Omitted (nil) fields are left alone; a
// present ingredient or instruction list replaces the stored one.
type UpdateInput struct {
	Title              *string            `json:"title,omitempty"`
	Description        *string            `json:"description,omitempty"`
	Cuisine            *string            `json:"cuisine,omitempty"`
	Difficulty         *string            `json:"difficulty,omitempty"`
	CookingTimeMinutes *int               `json:"cooking_time_minutes,omitempty"`
	Ingredients        []IngredientInput  `json:"ingredients,omitempty"`
	Instructions       []InstructionInput `json:"instructions,omitempty"`
}

// RatingInput is a user's score for a recipe
type RatingInput struct {
	Score  int     `json:"score"`
	Review *string `json:"review,omitempty"`
}

// Service owns recipe mutations
type Service struct {
	repo repository.RecipeRepository
	sync Syncer
}

// NewService creates a recipe service. sync may be nil when no index is
// configured.
func NewService(repo repository.RecipeRepository, sync Syncer) *Service {
	return &Service{repo: repo, sync: sync}
}

// Create validates and stores a new recipe authored by authorID
func (s *Service) Create(ctx context.Context, authorID string, in CreateInput) (*models.Recipe, error) {
	if authorID == "" {
		return nil, apperrors.Unauthorized("user not authenticated")
	}

	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, invalid("title", "title is required")
	}
	difficulty, err := normalizeDifficulty(in.Difficulty)
	if err != nil {
		return nil, err
	}
	if err := validateCookingTime(in.CookingTimeMinutes); err != nil {
		return nil, err
	}
	ingredients, err := buildIngredients(in.Ingredients)
	if err != nil {
		return nil, err
	}
	instructions, err := buildInstructions(in.Instructions)
	if err != nil {
		return nil, err
	}

	recipe := &models.Recipe{
		Title:              title,
		Description:        in.Description,
		AuthorID:           authorID,
		Cuisine:            normalizeCuisine(in.Cuisine),
		Difficulty:         difficulty,
		CookingTimeMinutes: in.CookingTimeMinutes,
		Ingredients:        ingredients,
		Instructions:       instructions,
	}
	if err := s.repo.CreateRecipe(ctx, recipe); err != nil {
		return nil, s.fail("create", storeError(err, "create recipe"))
	}

	s.afterCommit(ctx, search.OpCreate, recipe.ID)
	return recipe, nil
}

// Get returns the full recipe aggregate
func (s *Service) Get(ctx context.Context, recipeID string) (*models.Recipe, error) {
	if recipeID == "" {
		return nil, invalid("recipe_id", "recipe id is required")
	}
	recipe, err := s.repo.GetAggregate(ctx, recipeID)
	if err != nil {
		return nil, storeError(err, "get recipe")
	}
	return recipe, nil
}

// ListPage clamps listing pagination: page < 1 is the first page, perPage
// defaults to 20 and is capped at 100
func ListPage(page, perPage int) (int, int) {
	if page < 1 {
		page = 1
	}
	if perPage <= 0 {
		perPage = DefaultListPerPage
	}
	return page, min(perPage, MaxListPerPage)
}

// List returns one page of recipe aggregates, newest first, with the
// pagination clamped by ListPage
func (s *Service) List(ctx context.Context, page, perPage int) ([]models.Recipe, error) {
	page, perPage = ListPage(page, perPage)

	recipes, err := s.repo.ListRecipes(ctx, (page-1)*perPage, perPage)
	if err != nil {
		return nil, storeError(err, "list recipes")
	}
	return recipes, nil
}

// Update applies in to a recipe owned by userID and returns the result
func (s *Service) Update(ctx context.Context, userID, recipeID string, in UpdateInput) (*models.Recipe, error) {
	if err := s.authorize(ctx, userID, recipeID); err != nil {
		return nil, err
	}

	update := repository.RecipeUpdate{
		Description:        in.Description,
		Cuisine:            normalizeCuisine(in.Cuisine),
		CookingTimeMinutes: in.CookingTimeMinutes,
	}
	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		if title == "" {
			return nil, invalid("title", "title cannot be empty")
		}
		update.Title = &title
	}
	difficulty, err := normalizeDifficulty(in.Difficulty)
	if err != nil {
		return nil, err
	}
	update.Difficulty = difficulty
	if err := validateCookingTime(in.CookingTimeMinutes); err != nil {
		return nil, err
	}
	if in.Ingredients != nil {
		if update.Ingredients, err = buildIngredients(in.Ingredients); err != nil {
			return nil, err
		}
	}
	if in.Instructions != nil {
		if update.Instructions, err = buildInstructions(in.Instructions); err != nil {
			return nil, err
		}
	}

	if err := s.repo.UpdateRecipe(ctx, recipeID, update); err != nil {
		return nil, s.fail("update", storeError(err, "update recipe"))
	}

	s.afterCommit(ctx, search.OpUpdate, recipeID)
	return s.Get(ctx, recipeID)
}

// Delete removes a recipe owned by userID together with its dependents
func (s *Service) Delete(ctx context.Context, userID, recipeID string) error {
	if err := s.authorize(ctx, userID, recipeID); err != nil {
		return err
	}

	if err := s.repo.DeleteRecipe(ctx, recipeID); err != nil {
		return s.fail("delete", storeError(err, "delete recipe"))
	}

	s.afterCommit(ctx, search.OpDelete, recipeID)
	return nil
}

// AddRating stores userID's score for the recipe, replacing any earlier one
func (s *Service) AddRating(ctx context.Context, userID, recipeID string, in RatingInput) (*models.Rating, error) {
	if userID == "" {
		return nil, apperrors.Unauthorized("user not authenticated")
	}
	if recipeID == "" {
		return nil, invalid("recipe_id", "recipe id is required")
	}
	if in.Score < MinScore || in.Score > MaxScore {
		return nil, invalid("score", fmt.Sprintf("score must be between %d and %d", MinScore, MaxScore))
	}
	if _, err := s.repo.GetRecipe(ctx, recipeID); err != nil {
		return nil, storeError(err, "get recipe")
	}

	rating := &models.Rating{
		UserID:   userID,
		RecipeID: recipeID,
		Score:    in.Score,
		Review:   in.Review,
	}
	if err := s.repo.UpsertRating(ctx, rating); err != nil {
		return nil, s.fail("rate", storeError(err, "save rating"))
	}

	s.afterCommit(ctx, search.OpRate, recipeID)
	return rating, nil
}

// AddComment appends a comment by userID to the recipe
func (s *Service) AddComment(ctx context.Context, userID, recipeID, content string) (*models.Comment, error) {
	if userID == "" {
		return nil, apperrors.Unauthorized("user not authenticated")
	}
	if recipeID == "" {
		return nil, invalid("recipe_id", "recipe id is required")
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, invalid("content", "content is required")
	}
	if _, err := s.repo.GetRecipe(ctx, recipeID); err != nil {
		return nil, storeError(err, "get recipe")
	}

	comment := &models.Comment{
		UserID:   userID,
		RecipeID: recipeID,
		Content:  content,
	}
	if err := s.repo.CreateComment(ctx, comment); err != nil {
		return nil, s.fail("comment", storeError(err, "save comment"))
	}

	s.afterCommit(ctx, search.OpComment, recipeID)
	return comment, nil
}

// authorize loads the recipe and checks userID authored it
func (s *Service) authorize(ctx context.Context, userID, recipeID string) error {
	if userID == "" {
		return apperrors.Unauthorized("user not authenticated")
	}
	if recipeID == "" {
		return invalid("recipe_id", "recipe id is required")
	}
	recipe, err := s.repo.GetRecipe(ctx, recipeID)
	if err != nil {
		return storeError(err, "get recipe")
	}
	if recipe.AuthorID != userID {
		return apperrors.Forbidden("only the author can modify this recipe")
	}
	return nil
}

func (s *Service) afterCommit(ctx context.Context, op search.Operation, recipeID string) {
	metrics.RecipeMutationsTotal.WithLabelValues(string(op), "success").Inc()
	if s.sync == nil {
		return
	}
	s.sync.AfterMutation(ctx, op, recipeID)
}

func (s *Service) fail(op string, err error) error {
	metrics.RecipeMutationsTotal.WithLabelValues(op, "error").Inc()
	if _, ok := apperrors.AsAPIError(err); !ok {
		logger.Log.Error("Recipe mutation failed", logger.WithOperation(op), zap.Error(err))
	}
	return err
}

// storeError maps repository failures onto API errors; anything unexpected
// is wrapped and left for the transport to report as internal
func storeError(err error, action string) error {
	switch {
	case errors.Is(err, repository.ErrRecipeNotFound):
		return apperrors.NotFound("recipe")
	case errors.Is(err, repository.ErrInvalidInput):
		return apperrors.BadRequest("invalid recipe data")
	default:
		return fmt.Errorf("failed to %s: %w", action, err)
	}
}

func invalid(field, message string) error {
	metrics.ValidationFailures.WithLabelValues(field).Inc()
	return apperrors.ValidationError(field, message)
}

func normalizeCuisine(cuisine *string) *string {
	if cuisine == nil {
		return nil
	}
	c := strings.ToLower(strings.TrimSpace(*cuisine))
	return &c
}

func normalizeDifficulty(difficulty *string) (*string, error) {
	if difficulty == nil {
		return nil, nil
	}
	d := strings.ToLower(strings.TrimSpace(*difficulty))
	switch d {
	case models.DifficultyEasy, models.DifficultyMedium, models.DifficultyHard:
		return &d, nil
	default:
		return nil, invalid("difficulty", "difficulty must be easy, medium or hard")
	}
}

func validateCookingTime(minutes *int) error {
	if minutes != nil && *minutes < 0 {
		return invalid("cooking_time_minutes", "cooking time cannot be negative")
	}
	return nil
}

// buildIngredients returns a non-nil slice so an empty list still replaces
// the stored one on update
func buildIngredients(in []IngredientInput) ([]models.RecipeIngredient, error) {
	out := make([]models.RecipeIngredient, 0, len(in))
	for i, ing := range in {
		name := strings.TrimSpace(ing.Name)
		if name == "" {
			return nil, invalid(fmt.Sprintf("ingredients[%d].name", i), "ingredient name is required")
		}
		out = append(out, models.RecipeIngredient{
			Position: i,
			Name:     name,
			Quantity: ing.Quantity,
		})
	}
	return out, nil
}

func buildInstructions(in []InstructionInput) ([]models.Instruction, error) {
	out := make([]models.Instruction, 0, len(in))
	seen := make(map[int]bool, len(in))
	for i, step := range in {
		text := strings.TrimSpace(step.Text)
		if text == "" {
			return nil, invalid(fmt.Sprintf("instructions[%d].text", i), "instruction text is required")
		}
		number := step.StepNumber
		if number == 0 {
			number = i + 1
		}
		if number < 0 {
			return nil, invalid(fmt.Sprintf("instructions[%d].step_number", i), "step number must be positive")
		}
		if seen[number] {
			return nil, invalid("instructions", fmt.Sprintf("step number %d is used more than once", number))
		}
		seen[number] = true
		out = append(out, models.Instruction{StepNumber: number, Text: text})
	}
	return out, nil
}
