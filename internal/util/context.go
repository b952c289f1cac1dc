package util

import (
	"github.com/gin-gonic/gin"
)

// ContextUserIDKey is the gin context key holding the caller's user ID
const ContextUserIDKey = "user_id"

// GetUserIDFromContext extracts the user ID from the Gin context.
// If the caller is not authenticated it responds with 401 and returns false.
func GetUserIDFromContext(c *gin.Context) (string, bool) {
	userID := OptionalUserID(c)
	if userID == "" {
		RespondUnauthorized(c)
		return "", false
	}
	return userID, true
}

// OptionalUserID returns the caller's user ID, or "" for anonymous requests
func OptionalUserID(c *gin.Context) string {
	userID, exists := c.Get(ContextUserIDKey)
	if !exists {
		return ""
	}
	userIDStr, _ := userID.(string)
	return userIDStr
}
