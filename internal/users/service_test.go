package users

import (
	"context"
	"strings"
	"sync"
	"testing"

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
	op       search.Operation
	recipeID string
}

type recordingSyncer struct {
	mu    sync.Mutex
	calls []syncCall
}

func (r *recordingSyncer) AfterMutation(_ context.Context, op search.Operation, recipeID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, syncCall{op: op, recipeID: recipeID})
}

type ServiceTestSuite struct {
	suite.Suite
	db      *gorm.DB
	syncer  *recordingSyncer
	service *Service
	ctx     context.Context
	author  *models.User
	recipes []string
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
	s.syncer = &recordingSyncer{}
	s.service = NewService(repository.NewUserRepository(db), s.syncer)
	s.ctx = context.Background()

	s.author = &models.User{Email: "ann@example.com", Name: strPtr("Ann")}
	s.Require().NoError(db.Create(s.author).Error)

	s.recipes = nil
	for _, title := range []string{"Pancakes", "Waffles"} {
		recipe := &models.Recipe{Title: title, AuthorID: s.author.ID}
		s.Require().NoError(db.Create(recipe).Error)
		s.recipes = append(s.recipes, recipe.ID)
	}
}

func (s *ServiceTestSuite) TearDownTest() {
	_ = database.Close(s.db)
}

func (s *ServiceTestSuite) TestGet() {
	user, err := s.service.Get(s.ctx, s.author.ID)
	s.Require().NoError(err)
	s.Equal("Ann", *user.Name)

	_, err = s.service.Get(s.ctx, "missing")
	s.True(apperrors.IsCode(err, apperrors.ErrNotFound))

	_, err = s.service.Get(s.ctx, "")
	s.True(apperrors.IsCode(err, apperrors.ErrValidation))
}

func (s *ServiceTestSuite) TestRenameResyncsAuthoredRecipes() {
	user, err := s.service.UpdateProfile(s.ctx, s.author.ID, ProfileInput{Name: strPtr("  Ann Lee ")})
	s.Require().NoError(err)
	s.Equal("Ann Lee", *user.Name)

	var stored models.User
	s.Require().NoError(s.db.First(&stored, "id = ?", s.author.ID).Error)
	s.Equal("Ann Lee", *stored.Name)

	s.ElementsMatch([]syncCall{
		{op: search.OpUpdate, recipeID: s.recipes[0]},
		{op: search.OpUpdate, recipeID: s.recipes[1]},
	}, s.syncer.calls)
}

func (s *ServiceTestSuite) TestUnchangedNameSkipsResync() {
	_, err := s.service.UpdateProfile(s.ctx, s.author.ID, ProfileInput{Name: strPtr("Ann")})
	s.Require().NoError(err)
	_, err = s.service.UpdateProfile(s.ctx, s.author.ID, ProfileInput{})
	s.Require().NoError(err)

	s.Empty(s.syncer.calls)
}

func (s *ServiceTestSuite) TestBlankNameClears() {
	user, err := s.service.UpdateProfile(s.ctx, s.author.ID, ProfileInput{Name: strPtr("   ")})
	s.Require().NoError(err)
	s.Nil(user.Name)

	var stored models.User
	s.Require().NoError(s.db.First(&stored, "id = ?", s.author.ID).Error)
	s.Nil(stored.Name)
	s.Len(s.syncer.calls, 2)
}

func (s *ServiceTestSuite) TestUpdateRejects() {
	_, err := s.service.UpdateProfile(s.ctx, "", ProfileInput{Name: strPtr("x")})
	s.True(apperrors.IsCode(err, apperrors.ErrUnauthorized))

	_, err = s.service.UpdateProfile(s.ctx, "missing", ProfileInput{Name: strPtr("x")})
	s.True(apperrors.IsCode(err, apperrors.ErrNotFound))

	_, err = s.service.UpdateProfile(s.ctx, s.author.ID, ProfileInput{Name: strPtr(strings.Repeat("a", MaxNameLength+1))})
	s.True(apperrors.IsCode(err, apperrors.ErrValidation))
	s.Empty(s.syncer.calls)
}

func (s *ServiceTestSuite) TestWithoutSyncer() {
	service := NewService(repository.NewUserRepository(s.db), nil)

	user, err := service.UpdateProfile(s.ctx, s.author.ID, ProfileInput{Name: strPtr("Bea")})
	s.Require().NoError(err)
	s.Equal("Bea", *user.Name)
}

func TestServiceTestSuite(t *testing.T) {
	suite.Run(t, new(ServiceTestSuite))
}
