package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/zfogg/recipebook/internal/util"
)

// UserIDHeader carries the caller identity. Sessions are owned by the
// upstream gateway, which sets this header after authenticating the request.
const UserIDHeader = "X-User-ID"

// UserIDMiddleware copies the gateway-supplied user ID into the gin context.
// Requests without the header continue as anonymous.
func UserIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if userID := strings.TrimSpace(c.GetHeader(UserIDHeader)); userID != "" {
			c.Set(util.ContextUserIDKey, userID)
		}
		c.Next()
	}
}

// RequireUser aborts anonymous requests with 401
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := util.GetUserIDFromContext(c); !ok {
			c.Abort()
			return
		}
		c.Next()
	}
}
