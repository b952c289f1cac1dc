package recipes

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/zfogg/recipebook/internal/database"
	apperrors "github.com/zfogg/recipebook/internal/errors"
	"github.com/zfogg/recipebook/internal/models"
	"github.com/zfogg/recipebook/internal/repository"
	"github.com/zfogg/recipebook/internal/search"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func strPtr(s string) *string { return &s }

type syncCall struct {
	op        search.Operation
	recipeID  string
	committed bool
}

// recordingSyncer notes each notification and whether the mutation was
// already visible in the primary store when it arrived
type recordingSyncer struct {
	mu    sync.Mutex
	repo  repository.RecipeRepository
	calls []syncCall
}

func (r *recordingSyncer) AfterMutation(ctx context.Context, op search.Operation, recipeID string) {
	_, err := r.repo.GetAggregate(ctx, recipeID)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, syncCall{op: op, recipeID: recipeID, committed: (err == nil) != (op == search.OpDelete)})
}

type ServiceTestSuite struct {
	suite.Suite
	db      *gorm.DB
	repo    repository.RecipeRepository
	syncer  *recordingSyncer
	service *Service
	ctx     context.Context
	author  *models.User
	other   *models.User
}

func (s *ServiceTestSuite) SetupTest() {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	s.Require().NoError(err)
	sqlDB, err := db.DB()
	s.Require().NoError(err)
	sqlDB.SetMaxOpenConns(1)
	s.Require().NoError(database.Migrate(db))

	s.db = db
	s.repo = repository.NewRecipeRepository(db)
	s.syncer = &recordingSyncer{repo: s.repo}
	s.service = NewService(s.repo, s.syncer)
	s.ctx = context.Background()

	s.author = &models.User{Email: "author@example.com", Name: strPtr("Ann")}
	s.Require().NoError(db.Create(s.author).Error)
	s.other = &models.User{Email: "other@example.com"}
	s.Require().NoError(db.Create(s.other).Error)
}

func (s *ServiceTestSuite) TearDownTest() {
	_ = database.Close(s.db)
}

func (s *ServiceTestSuite) createPancakes() *models.Recipe {
	recipe, err := s.service.Create(s.ctx, s.author.ID, CreateInput{
		Title:      " Pancakes ",
		Cuisine:    strPtr("American"),
		Difficulty: strPtr("Easy"),
		Ingredients: []IngredientInput{
			{Name: "Egg"},
			{Name: "Flour", Quantity: strPtr("2 cups")},
		},
		Instructions: []InstructionInput{
			{Text: "Mix"},
			{Text: "Cook"},
		},
	})
	s.Require().NoError(err)
	return recipe
}

func (s *ServiceTestSuite) assertValidation(err error, field string) {
	s.Require().Error(err)
	apiErr, ok := apperrors.AsAPIError(err)
	s.Require().True(ok, "expected an API error, got %v", err)
	s.Equal(apperrors.ErrValidation, apiErr.Code)
	s.Equal(field, apiErr.Field)
}

func (s *ServiceTestSuite) TestCreate() {
	recipe := s.createPancakes()

	s.NotEmpty(recipe.ID)
	s.Equal("Pancakes", recipe.Title)
	s.Equal("american", *recipe.Cuisine)
	s.Equal(models.DifficultyEasy, *recipe.Difficulty)

	agg, err := s.service.Get(s.ctx, recipe.ID)
	s.Require().NoError(err)
	s.Require().Len(agg.Instructions, 2)
	s.Equal(1, agg.Instructions[0].StepNumber)
	s.Equal("Mix", agg.Instructions[0].Text)
	s.Equal(2, agg.Instructions[1].StepNumber)

	s.Require().Len(s.syncer.calls, 1)
	s.Equal(syncCall{op: search.OpCreate, recipeID: recipe.ID, committed: true}, s.syncer.calls[0])
}

func (s *ServiceTestSuite) TestCreate_Validation() {
	_, err := s.service.Create(s.ctx, s.author.ID, CreateInput{Title: "  "})
	s.assertValidation(err, "title")

	_, err = s.service.Create(s.ctx, s.author.ID, CreateInput{Title: "Soup", Difficulty: strPtr("extreme")})
	s.assertValidation(err, "difficulty")

	_, err = s.service.Create(s.ctx, s.author.ID, CreateInput{
		Title:        "Soup",
		Instructions: []InstructionInput{{StepNumber: 1, Text: "Boil"}, {StepNumber: 1, Text: "Serve"}},
	})
	s.assertValidation(err, "instructions")

	_, err = s.service.Create(s.ctx, s.author.ID, CreateInput{
		Title:       "Soup",
		Ingredients: []IngredientInput{{Name: ""}},
	})
	s.assertValidation(err, "ingredients[0].name")

	s.Empty(s.syncer.calls)
}

func (s *ServiceTestSuite) TestCreate_RequiresUser() {
	_, err := s.service.Create(s.ctx, "", CreateInput{Title: "Soup"})
	s.True(apperrors.IsCode(err, apperrors.ErrUnauthorized))
}

func (s *ServiceTestSuite) TestList() {
	older := s.createPancakes()
	s.Require().NoError(s.db.Model(&models.Recipe{}).Where("id = ?", older.ID).
		UpdateColumn("created_at", time.Now().Add(-time.Hour)).Error)
	newer := s.createPancakes()

	list, err := s.service.List(s.ctx, 0, 0)
	s.Require().NoError(err)
	s.Require().Len(list, 2)
	s.Equal(newer.ID, list[0].ID)
	s.Equal(older.ID, list[1].ID)
	s.Len(list[0].Ingredients, 2)

	list, err = s.service.List(s.ctx, 2, 1)
	s.Require().NoError(err)
	s.Require().Len(list, 1)
	s.Equal(older.ID, list[0].ID)
}

func TestListPage(t *testing.T) {
	page, perPage := ListPage(0, 0)
	assert.Equal(t, 1, page)
	assert.Equal(t, DefaultListPerPage, perPage)

	page, perPage = ListPage(3, 500)
	assert.Equal(t, 3, page)
	assert.Equal(t, MaxListPerPage, perPage)
}

func (s *ServiceTestSuite) TestGet_NotFound() {
	_, err := s.service.Get(s.ctx, "11111111-1111-1111-1111-111111111111")
	s.True(apperrors.IsCode(err, apperrors.ErrNotFound))
}

func (s *ServiceTestSuite) TestUpdate() {
	recipe := s.createPancakes()

	updated, err := s.service.Update(s.ctx, s.author.ID, recipe.ID, UpdateInput{
		Title:       strPtr("Buttermilk Pancakes"),
		Ingredients: []IngredientInput{{Name: "Buttermilk"}},
	})
	s.Require().NoError(err)

	s.Equal("Buttermilk Pancakes", updated.Title)
	s.Require().Len(updated.Ingredients, 1)
	s.Equal("Buttermilk", updated.Ingredients[0].Name)
	s.Len(updated.Instructions, 2)

	s.Require().Len(s.syncer.calls, 2)
	s.Equal(search.OpUpdate, s.syncer.calls[1].op)
}

func (s *ServiceTestSuite) TestUpdate_OnlyAuthor() {
	recipe := s.createPancakes()

	_, err := s.service.Update(s.ctx, s.other.ID, recipe.ID, UpdateInput{Title: strPtr("Mine now")})
	s.True(apperrors.IsCode(err, apperrors.ErrForbidden))

	err = s.service.Delete(s.ctx, s.other.ID, recipe.ID)
	s.True(apperrors.IsCode(err, apperrors.ErrForbidden))

	s.Len(s.syncer.calls, 1)
}

func (s *ServiceTestSuite) TestUpdate_EmptyTitle() {
	recipe := s.createPancakes()

	_, err := s.service.Update(s.ctx, s.author.ID, recipe.ID, UpdateInput{Title: strPtr("")})
	s.assertValidation(err, "title")
}

func (s *ServiceTestSuite) TestDelete() {
	recipe := s.createPancakes()

	s.Require().NoError(s.service.Delete(s.ctx, s.author.ID, recipe.ID))

	_, err := s.service.Get(s.ctx, recipe.ID)
	s.True(apperrors.IsCode(err, apperrors.ErrNotFound))

	s.Require().Len(s.syncer.calls, 2)
	s.Equal(syncCall{op: search.OpDelete, recipeID: recipe.ID, committed: true}, s.syncer.calls[1])

	err = s.service.Delete(s.ctx, s.author.ID, recipe.ID)
	s.True(apperrors.IsCode(err, apperrors.ErrNotFound))
}

func (s *ServiceTestSuite) TestAddRating_ReplacesPrevious() {
	recipe := s.createPancakes()

	first, err := s.service.AddRating(s.ctx, s.other.ID, recipe.ID, RatingInput{Score: 4})
	s.Require().NoError(err)
	second, err := s.service.AddRating(s.ctx, s.other.ID, recipe.ID, RatingInput{Score: 2})
	s.Require().NoError(err)
	s.Equal(first.ID, second.ID)

	agg, err := s.service.Get(s.ctx, recipe.ID)
	s.Require().NoError(err)
	s.Require().Len(agg.Ratings, 1)
	s.Equal(2, agg.Ratings[0].Score)
	s.Equal(2.0, search.AverageRating(agg.Ratings))

	s.Require().Len(s.syncer.calls, 3)
	s.Equal(search.OpRate, s.syncer.calls[2].op)
}

func (s *ServiceTestSuite) TestAddRating_Validation() {
	recipe := s.createPancakes()

	for _, score := range []int{0, 6, -1} {
		_, err := s.service.AddRating(s.ctx, s.other.ID, recipe.ID, RatingInput{Score: score})
		s.assertValidation(err, "score")
	}

	_, err := s.service.AddRating(s.ctx, s.other.ID, "", RatingInput{Score: 3})
	s.assertValidation(err, "recipe_id")

	_, err = s.service.AddRating(s.ctx, s.other.ID, "11111111-1111-1111-1111-111111111111", RatingInput{Score: 3})
	s.True(apperrors.IsCode(err, apperrors.ErrNotFound))
}

func (s *ServiceTestSuite) TestAddComment() {
	recipe := s.createPancakes()

	_, err := s.service.AddComment(s.ctx, s.other.ID, recipe.ID, "   ")
	s.assertValidation(err, "content")

	comment, err := s.service.AddComment(s.ctx, s.other.ID, recipe.ID, " Delicious ")
	s.Require().NoError(err)
	s.Equal("Delicious", comment.Content)

	agg, err := s.service.Get(s.ctx, recipe.ID)
	s.Require().NoError(err)
	s.Len(agg.Comments, 1)

	s.Require().Len(s.syncer.calls, 2)
	s.Equal(search.OpComment, s.syncer.calls[1].op)
}

func TestServiceTestSuite(t *testing.T) {
	suite.Run(t, new(ServiceTestSuite))
}

func TestService_WithoutSyncer(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, database.Migrate(db))

	author := &models.User{Email: "solo@example.com"}
	require.NoError(t, db.Create(author).Error)

	service := NewService(repository.NewRecipeRepository(db), nil)
	recipe, err := service.Create(context.Background(), author.ID, CreateInput{Title: "Toast"})
	require.NoError(t, err)
	assert.NotEmpty(t, recipe.ID)
}

func TestBuildInstructions(t *testing.T) {
	steps, err := buildInstructions([]InstructionInput{
		{Text: "first"},
		{StepNumber: 5, Text: "fifth"},
		{Text: "third"},
	})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 5, 3}, []int{steps[0].StepNumber, steps[1].StepNumber, steps[2].StepNumber})

	_, err = buildInstructions([]InstructionInput{{Text: "a"}, {StepNumber: 1, Text: "b"}})
	assert.Error(t, err)

	empty, err := buildIngredients([]IngredientInput{})
	require.NoError(t, err)
	assert.NotNil(t, empty)
}
