package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/zfogg/recipebook/internal/users"
	"github.com/zfogg/recipebook/internal/util"
)

// GetUser returns a user's profile
// GET /api/v1/users/:id
func (h *Handlers) GetUser(c *gin.Context) {
	user, err := h.users.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		util.RespondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, user)
}

// UpdateProfile updates the caller's profile
// PUT /api/v1/users/me
func (h *Handlers) UpdateProfile(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}

	var req users.ProfileInput
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondBadRequest(c, err.Error())
		return
	}

	user, err := h.users.UpdateProfile(c.Request.Context(), userID, req)
	if err != nil {
		util.RespondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, user)
}
