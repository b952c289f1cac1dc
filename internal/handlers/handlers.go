package handlers

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/zfogg/recipebook/internal/middleware"
	"github.com/zfogg/recipebook/internal/recipes"
	"github.com/zfogg/recipebook/internal/search"
	"github.com/zfogg/recipebook/internal/users"
	"gorm.io/gorm"
)

// IndexPinger reports whether the search cluster answers. *search.Client
// implements it.
type IndexPinger interface {
	Ping(ctx context.Context) bool
}

// Handlers contains all HTTP handlers for the API
type Handlers struct {
	recipes *recipes.Service
	users   *users.Service
	search  *search.Engine
	db      *gorm.DB
	index   IndexPinger
}

// NewHandlers creates a new handlers instance
func NewHandlers(recipeService *recipes.Service, userService *users.Service, engine *search.Engine) *Handlers {
	return &Handlers{
		recipes: recipeService,
		users:   userService,
		search:  engine,
	}
}

// SetHealthChecks sets the dependencies probed by /health
func (h *Handlers) SetHealthChecks(db *gorm.DB, index IndexPinger) {
	h.db = db
	h.index = index
}

// RegisterRoutes mounts the versioned API on r
func (h *Handlers) RegisterRoutes(r gin.IRouter) {
	api := r.Group("/api/v1")
	api.Use(middleware.UserIDMiddleware())
	{
		recipeGroup := api.Group("/recipes")
		{
			recipeGroup.GET("", h.ListRecipes)
			recipeGroup.GET("/:id", h.GetRecipe)

			recipeGroup.POST("", middleware.RequireUser(), h.CreateRecipe)
			recipeGroup.PUT("/:id", middleware.RequireUser(), h.UpdateRecipe)
			recipeGroup.DELETE("/:id", middleware.RequireUser(), h.DeleteRecipe)
			recipeGroup.POST("/:id/ratings", middleware.RequireUser(), h.RateRecipe)
			recipeGroup.POST("/:id/comments", middleware.RequireUser(), h.CommentOnRecipe)
		}

		userGroup := api.Group("/users")
		{
			userGroup.GET("/:id", h.GetUser)
			userGroup.PUT("/me", middleware.RequireUser(), h.UpdateProfile)
		}

		searchGroup := api.Group("/search")
		{
			searchGroup.GET("/recipes", h.SearchRecipes)
			searchGroup.GET("/ingredients/autocomplete", h.AutocompleteIngredients)
			searchGroup.GET("/cook-with", h.CookWith)
			searchGroup.GET("/stats", h.SearchStats)
		}
	}
}
