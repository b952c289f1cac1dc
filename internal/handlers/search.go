package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/zfogg/recipebook/internal/metrics"
	"github.com/zfogg/recipebook/internal/search"
	"github.com/zfogg/recipebook/internal/util"
)

// SearchRecipes runs a full-text and faceted recipe search
// GET /api/v1/search/recipes?q=&ingredients=&cuisine=&difficulty=&min_time=&max_time=&sort_by=&page=&per_page=
func (h *Handlers) SearchRecipes(c *gin.Context) {
	minTime, err := util.ParseOptionalInt(c.Query("min_time"))
	if err != nil {
		util.RespondValidationError(c, "min_time", "min_time must be an integer")
		return
	}
	maxTime, err := util.ParseOptionalInt(c.Query("max_time"))
	if err != nil {
		util.RespondValidationError(c, "max_time", "max_time must be an integer")
		return
	}

	params := search.SearchParams{
		Query:          c.Query("q"),
		Ingredients:    util.ParseList(c.QueryArray("ingredients")),
		Cuisine:        c.Query("cuisine"),
		Difficulty:     c.Query("difficulty"),
		CookingTimeMin: minTime,
		CookingTimeMax: maxTime,
		SortBy:         search.ParseSortBy(c.Query("sort_by")),
		Page:           util.ParseInt(c.Query("page"), 1),
		PerPage:        util.ParseInt(c.Query("per_page"), search.DefaultPerPage),
		UserID:         util.OptionalUserID(c),
	}

	result, err := h.search.SearchRecipes(c.Request.Context(), params)
	if err != nil {
		respondSearchError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// AutocompleteIngredients suggests ingredient names for a prefix
// GET /api/v1/search/ingredients/autocomplete?prefix=&size=
func (h *Handlers) AutocompleteIngredients(c *gin.Context) {
	size := util.ParseInt(c.Query("size"), search.DefaultAutocompleteSize)

	suggestions, err := h.search.AutocompleteIngredient(c.Request.Context(), c.Query("prefix"), size)
	if err != nil {
		respondSearchError(c, err)
		return
	}

	c.JSON(http.StatusOK, suggestions)
}

// CookWith finds the best-rated recipes that use every listed ingredient
// GET /api/v1/search/cook-with?ingredients=&limit=
func (h *Handlers) CookWith(c *gin.Context) {
	ingredients := util.ParseList(c.QueryArray("ingredients"))
	if len(ingredients) == 0 {
		util.RespondValidationError(c, "ingredients", "at least one ingredient is required")
		return
	}
	limit := util.ParseInt(c.Query("limit"), search.DefaultCookWithLimit)

	result, err := h.search.CookWith(c.Request.Context(), ingredients, limit)
	if err != nil {
		respondSearchError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// SearchStats returns in-process query statistics
// GET /api/v1/search/stats
func (h *Handlers) SearchStats(c *gin.Context) {
	c.JSON(http.StatusOK, metrics.GetManager().GetSearchStats())
}

func respondSearchError(c *gin.Context, err error) {
	if errors.Is(err, search.ErrSearchUnavailable) {
		util.RespondServiceUnavailable(c, "search")
		return
	}
	util.RespondWithError(c, err)
}
