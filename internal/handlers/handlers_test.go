package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/suite"
	"github.com/zfogg/recipebook/internal/database"
	"github.com/zfogg/recipebook/internal/metrics"
	"github.com/zfogg/recipebook/internal/middleware"
	"github.com/zfogg/recipebook/internal/models"
	"github.com/zfogg/recipebook/internal/recipes"
	"github.com/zfogg/recipebook/internal/repository"
	"github.com/zfogg/recipebook/internal/search"
	"github.com/zfogg/recipebook/internal/users"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// stubSearcher answers every query with canned results and keeps the last
// request body
type stubSearcher struct {
	mu       sync.Mutex
	result   *search.RawSearchResult
	keys     []string
	err      error
	lastBody map[string]interface{}
	calls    int
}

func (s *stubSearcher) Search(_ context.Context, body map[string]interface{}) (*search.RawSearchResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.lastBody = body
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

func (s *stubSearcher) Aggregate(_ context.Context, body map[string]interface{}, _ ...string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.lastBody = body
	if s.err != nil {
		return nil, s.err
	}
	return s.keys, nil
}

type fakePinger bool

func (p fakePinger) Ping(context.Context) bool { return bool(p) }

type HandlersTestSuite struct {
	suite.Suite
	db       *gorm.DB
	searcher *stubSearcher
	handlers *Handlers
	router   *gin.Engine
	author   *models.User
	other    *models.User
}

func (s *HandlersTestSuite) SetupTest() {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	s.Require().NoError(err)
	sqlDB, err := db.DB()
	s.Require().NoError(err)
	sqlDB.SetMaxOpenConns(1)
	s.Require().NoError(database.Migrate(db))
	s.db = db

	s.author = &models.User{Email: "author@example.com"}
	s.Require().NoError(db.Create(s.author).Error)
	s.other = &models.User{Email: "other@example.com"}
	s.Require().NoError(db.Create(s.other).Error)

	s.searcher = &stubSearcher{result: &search.RawSearchResult{Hits: []search.RawHit{}}}
	engine := search.NewEngine(s.searcher, search.WithSearchMetrics(metrics.NewSearchMetrics()))
	service := recipes.NewService(repository.NewRecipeRepository(db), nil)

	profiles := users.NewService(repository.NewUserRepository(db), nil)

	s.handlers = NewHandlers(service, profiles, engine)
	s.handlers.SetHealthChecks(db, fakePinger(true))

	gin.SetMode(gin.TestMode)
	s.router = gin.New()
	s.router.GET("/health", s.handlers.Health)
	s.handlers.RegisterRoutes(s.router)
}

func (s *HandlersTestSuite) TearDownTest() {
	_ = database.Close(s.db)
}

func (s *HandlersTestSuite) do(method, path, userID string, body interface{}) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		s.Require().NoError(err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set(middleware.UserIDHeader, userID)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *HandlersTestSuite) decode(w *httptest.ResponseRecorder) map[string]interface{} {
	var out map[string]interface{}
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func (s *HandlersTestSuite) createRecipe() string {
	w := s.do(http.MethodPost, "/api/v1/recipes", s.author.ID, map[string]interface{}{
		"title":       "Pancakes",
		"ingredients": []map[string]string{{"name": "Egg"}, {"name": "Flour"}},
	})
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	return s.decode(w)["id"].(string)
}

func (s *HandlersTestSuite) TestCreateRecipe_RequiresUser() {
	w := s.do(http.MethodPost, "/api/v1/recipes", "", map[string]string{"title": "Soup"})
	s.Equal(http.StatusUnauthorized, w.Code)
}

func (s *HandlersTestSuite) TestCreateAndGetRecipe() {
	id := s.createRecipe()

	w := s.do(http.MethodGet, "/api/v1/recipes/"+id, "", nil)
	s.Require().Equal(http.StatusOK, w.Code)
	body := s.decode(w)
	s.Equal("Pancakes", body["title"])
	s.Len(body["ingredients"], 2)
}

func (s *HandlersTestSuite) TestCreateRecipe_Validation() {
	w := s.do(http.MethodPost, "/api/v1/recipes", s.author.ID, map[string]string{"title": ""})
	s.Equal(http.StatusUnprocessableEntity, w.Code)

	body := s.decode(w)
	s.Equal("VALIDATION_ERROR", body["code"])
	s.Equal("title", body["field"])
}

func (s *HandlersTestSuite) TestCreateRecipe_MalformedBody() {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/recipes", bytes.NewBufferString("{not json"))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(middleware.UserIDHeader, s.author.ID)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	s.Equal(http.StatusBadRequest, w.Code)
}

func (s *HandlersTestSuite) TestGetRecipe_NotFound() {
	w := s.do(http.MethodGet, "/api/v1/recipes/11111111-1111-1111-1111-111111111111", "", nil)
	s.Equal(http.StatusNotFound, w.Code)
	s.Equal("NOT_FOUND", s.decode(w)["code"])
}

func (s *HandlersTestSuite) TestUpdateAndDelete_OnlyAuthor() {
	id := s.createRecipe()

	w := s.do(http.MethodPut, "/api/v1/recipes/"+id, s.other.ID, map[string]string{"title": "Stolen"})
	s.Equal(http.StatusForbidden, w.Code)

	w = s.do(http.MethodDelete, "/api/v1/recipes/"+id, s.other.ID, nil)
	s.Equal(http.StatusForbidden, w.Code)

	w = s.do(http.MethodPut, "/api/v1/recipes/"+id, s.author.ID, map[string]string{"title": "Crepes"})
	s.Require().Equal(http.StatusOK, w.Code)
	s.Equal("Crepes", s.decode(w)["title"])

	w = s.do(http.MethodDelete, "/api/v1/recipes/"+id, s.author.ID, nil)
	s.Equal(http.StatusOK, w.Code)

	w = s.do(http.MethodGet, "/api/v1/recipes/"+id, "", nil)
	s.Equal(http.StatusNotFound, w.Code)
}

func (s *HandlersTestSuite) TestRateAndComment() {
	id := s.createRecipe()

	w := s.do(http.MethodPost, "/api/v1/recipes/"+id+"/ratings", s.other.ID, map[string]int{"score": 9})
	s.Equal(http.StatusUnprocessableEntity, w.Code)

	w = s.do(http.MethodPost, "/api/v1/recipes/"+id+"/ratings", s.other.ID, map[string]int{"score": 4})
	s.Require().Equal(http.StatusOK, w.Code)
	s.Equal(float64(4), s.decode(w)["score"])

	w = s.do(http.MethodPost, "/api/v1/recipes/"+id+"/comments", s.other.ID, map[string]string{"content": "Lovely"})
	s.Require().Equal(http.StatusCreated, w.Code)
	s.Equal("Lovely", s.decode(w)["content"])
}

func (s *HandlersTestSuite) TestSearchRecipes() {
	source, _ := json.Marshal(search.Document{Title: "Pancakes", Ingredients: []search.IngredientDoc{}})
	s.searcher.result = &search.RawSearchResult{
		Total: 11,
		Hits:  []search.RawHit{{ID: "r1", Score: 1.5, Source: source}},
	}

	w := s.do(http.MethodGet, "/api/v1/search/recipes?q=pancakes&ingredients=Egg,flour&ingredients=milk&page=2&per_page=10&sort_by=rating&min_time=5", "", nil)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())

	body := s.decode(w)
	s.Equal(float64(11), body["total"])
	results := body["results"].([]interface{})
	s.Require().Len(results, 1)
	hit := results[0].(map[string]interface{})
	s.Equal("r1", hit["id"])
	s.Equal("Pancakes", hit["title"])
	s.Equal(1.5, hit["score"])

	s.Equal(10, s.searcher.lastBody["from"])
	s.Equal(10, s.searcher.lastBody["size"])
	filters := s.searcher.lastBody["query"].(map[string]interface{})["bool"].(map[string]interface{})["filter"].([]interface{})
	s.Len(filters, 4)
}

func (s *HandlersTestSuite) TestSearchRecipes_BadTimeBound() {
	w := s.do(http.MethodGet, "/api/v1/search/recipes?max_time=soon", "", nil)
	s.Equal(http.StatusUnprocessableEntity, w.Code)
	s.Equal(0, s.searcher.calls)
}

func (s *HandlersTestSuite) TestSearchRecipes_Unavailable() {
	s.searcher.err = errors.New("connection refused")

	w := s.do(http.MethodGet, "/api/v1/search/recipes?q=soup", "", nil)
	s.Equal(http.StatusServiceUnavailable, w.Code)
	s.Equal("SERVICE_UNAVAILABLE", s.decode(w)["code"])
}

func (s *HandlersTestSuite) TestSearchRecipes_EmptyIsOK() {
	w := s.do(http.MethodGet, "/api/v1/search/recipes?q=nothing", "", nil)
	s.Require().Equal(http.StatusOK, w.Code)

	body := s.decode(w)
	s.Equal(float64(0), body["total"])
	s.Empty(body["results"])
}

func (s *HandlersTestSuite) TestAutocomplete() {
	s.searcher.keys = []string{"tomato", "tofu"}

	w := s.do(http.MethodGet, "/api/v1/search/ingredients/autocomplete?prefix=to&size=2", "", nil)
	s.Require().Equal(http.StatusOK, w.Code)
	s.JSONEq(`["tomato","tofu"]`, w.Body.String())

	w = s.do(http.MethodGet, "/api/v1/search/ingredients/autocomplete?prefix=%20%20", "", nil)
	s.Require().Equal(http.StatusOK, w.Code)
	s.JSONEq(`[]`, w.Body.String())
	s.Equal(1, s.searcher.calls)
}

func (s *HandlersTestSuite) TestCookWith() {
	w := s.do(http.MethodGet, "/api/v1/search/cook-with", "", nil)
	s.Equal(http.StatusUnprocessableEntity, w.Code)

	w = s.do(http.MethodGet, "/api/v1/search/cook-with?ingredients=egg,spinach&limit=5", "", nil)
	s.Require().Equal(http.StatusOK, w.Code)
	s.Equal(5, s.searcher.lastBody["size"])
}

func (s *HandlersTestSuite) TestListRecipes() {
	first := s.createRecipe()
	s.Require().NoError(s.db.Model(&models.Recipe{}).Where("id = ?", first).
		UpdateColumn("created_at", time.Now().Add(-time.Hour)).Error)
	second := s.createRecipe()

	w := s.do(http.MethodGet, "/api/v1/recipes", "", nil)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	body := s.decode(w)
	s.Equal(float64(1), body["page"])
	s.Equal(float64(recipes.DefaultListPerPage), body["per_page"])
	list := body["recipes"].([]interface{})
	s.Require().Len(list, 2)
	s.Equal(second, list[0].(map[string]interface{})["id"])
	s.Equal(first, list[1].(map[string]interface{})["id"])

	w = s.do(http.MethodGet, "/api/v1/recipes?page=2&per_page=1", "", nil)
	s.Require().Equal(http.StatusOK, w.Code)
	list = s.decode(w)["recipes"].([]interface{})
	s.Require().Len(list, 1)
	s.Equal(first, list[0].(map[string]interface{})["id"])

	w = s.do(http.MethodGet, "/api/v1/recipes?per_page=1000", "", nil)
	s.Require().Equal(http.StatusOK, w.Code)
	s.Equal(float64(recipes.MaxListPerPage), s.decode(w)["per_page"])
}

func (s *HandlersTestSuite) TestUserProfile() {
	w := s.do(http.MethodPut, "/api/v1/users/me", s.author.ID, map[string]string{"name": " Ann "})
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	s.Equal("Ann", s.decode(w)["name"])

	w = s.do(http.MethodGet, "/api/v1/users/"+s.author.ID, "", nil)
	s.Require().Equal(http.StatusOK, w.Code)
	s.Equal("Ann", s.decode(w)["name"])

	w = s.do(http.MethodGet, "/api/v1/users/missing", "", nil)
	s.Equal(http.StatusNotFound, w.Code)

	w = s.do(http.MethodPut, "/api/v1/users/me", "", map[string]string{"name": "Ann"})
	s.Equal(http.StatusUnauthorized, w.Code)
}

func (s *HandlersTestSuite) TestSearchStats() {
	w := s.do(http.MethodGet, "/api/v1/search/stats", "", nil)
	s.Require().Equal(http.StatusOK, w.Code)
	s.Contains(s.decode(w), "total_queries")
}

func (s *HandlersTestSuite) TestHealth() {
	w := s.do(http.MethodGet, "/health", "", nil)
	s.Require().Equal(http.StatusOK, w.Code)
	body := s.decode(w)
	s.Equal("ok", body["status"])

	s.handlers.SetHealthChecks(s.db, fakePinger(false))
	w = s.do(http.MethodGet, "/health", "", nil)
	s.Require().Equal(http.StatusOK, w.Code)
	body = s.decode(w)
	s.Equal("degraded", body["status"])
	s.Equal("unavailable", body["checks"].(map[string]interface{})["elasticsearch"])
}

func TestHandlersTestSuite(t *testing.T) {
	suite.Run(t, new(HandlersTestSuite))
}
