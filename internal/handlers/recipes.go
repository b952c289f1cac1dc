package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/zfogg/recipebook/internal/recipes"
	"github.com/zfogg/recipebook/internal/util"
)

// CreateRecipe creates a recipe authored by the caller
// POST /api/v1/recipes
func (h *Handlers) CreateRecipe(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}

	var req recipes.CreateInput
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondBadRequest(c, err.Error())
		return
	}

	recipe, err := h.recipes.Create(c.Request.Context(), userID, req)
	if err != nil {
		util.RespondWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, recipe)
}

// ListRecipes returns recipes newest first
// GET /api/v1/recipes?page=&per_page=
func (h *Handlers) ListRecipes(c *gin.Context) {
	page, perPage := recipes.ListPage(
		util.ParseInt(c.Query("page"), 1),
		util.ParseInt(c.Query("per_page"), recipes.DefaultListPerPage),
	)

	list, err := h.recipes.List(c.Request.Context(), page, perPage)
	if err != nil {
		util.RespondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"recipes":  list,
		"page":     page,
		"per_page": perPage,
	})
}

// GetRecipe returns a recipe with its ingredients, steps, ratings and comments
// GET /api/v1/recipes/:id
func (h *Handlers) GetRecipe(c *gin.Context) {
	recipe, err := h.recipes.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		util.RespondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, recipe)
}

// UpdateRecipe applies a partial update; only the author may call it
// PUT /api/v1/recipes/:id
func (h *Handlers) UpdateRecipe(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}

	var req recipes.UpdateInput
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondBadRequest(c, err.Error())
		return
	}

	recipe, err := h.recipes.Update(c.Request.Context(), userID, c.Param("id"), req)
	if err != nil {
		util.RespondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, recipe)
}

// DeleteRecipe deletes a recipe; only the author may call it
// DELETE /api/v1/recipes/:id
func (h *Handlers) DeleteRecipe(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}

	recipeID := c.Param("id")
	if err := h.recipes.Delete(c.Request.Context(), userID, recipeID); err != nil {
		util.RespondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    "deleted",
		"recipe_id": recipeID,
	})
}

// RateRecipe sets the caller's 1-5 rating, replacing any earlier one
// POST /api/v1/recipes/:id/ratings
func (h *Handlers) RateRecipe(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}

	var req recipes.RatingInput
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondBadRequest(c, err.Error())
		return
	}

	rating, err := h.recipes.AddRating(c.Request.Context(), userID, c.Param("id"), req)
	if err != nil {
		util.RespondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, rating)
}

// CommentOnRecipe adds a comment
// POST /api/v1/recipes/:id/comments
func (h *Handlers) CommentOnRecipe(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}

	var req struct {
		Content string `json:"content"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondBadRequest(c, err.Error())
		return
	}

	comment, err := h.recipes.AddComment(c.Request.Context(), userID, c.Param("id"), req.Content)
	if err != nil {
		util.RespondWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, comment)
}
