package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zfogg/recipebook/internal/logger"
	"github.com/zfogg/recipebook/internal/util"
	"go.uber.org/zap"
)

// quietRoutes are polled by infrastructure and only logged at debug
var quietRoutes = map[string]bool{
	"/health":  true,
	"/metrics": true,
}

// GinLoggerMiddleware logs one structured line per request. The level
// follows the status: 5xx at error, 4xx at warn, everything else at info.
func GinLoggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		status := c.Writer.Status()
		route := c.FullPath()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.String("route", route),
			zap.String("query", c.Request.URL.RawQuery),
			zap.String("client_ip", c.ClientIP()),
			logger.WithStatus(status),
			zap.Int("response_size", c.Writer.Size()),
			logger.WithDuration(time.Since(start)),
		}

		if requestID := RequestID(c); requestID != "" {
			fields = append(fields, logger.WithRequestID(requestID))
		}
		if userID := util.OptionalUserID(c); userID != "" {
			fields = append(fields, logger.WithUserID(userID))
		}
		if recipeID := c.Param("id"); recipeID != "" {
			fields = append(fields, logger.WithRecipeID(recipeID))
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}

		switch {
		case status >= 500:
			logger.Log.Error("HTTP request", fields...)
		case status >= 400:
			logger.Log.Warn("HTTP request", fields...)
		case quietRoutes[route]:
			logger.Log.Debug("HTTP request", fields...)
		default:
			logger.Log.Info("HTTP request", fields...)
		}
	}
}
