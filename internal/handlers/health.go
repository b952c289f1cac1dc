package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zfogg/recipebook/internal/database"
)

const healthTimeout = 2 * time.Second

// Health reports server, database and search cluster status. Degraded
// dependencies still answer 200 so the process is not restarted for an
// index outage.
// GET /health
func (h *Handlers) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()

	checks := gin.H{"server": "ok"}
	status := "ok"

	if h.db != nil {
		if err := database.Health(h.db); err != nil {
			checks["database"] = "unavailable"
			status = "degraded"
		} else {
			checks["database"] = "ok"
		}
	}

	if h.index != nil {
		if h.index.Ping(ctx) {
			checks["elasticsearch"] = "ok"
		} else {
			checks["elasticsearch"] = "unavailable"
			status = "degraded"
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    status,
		"checks":    checks,
		"timestamp": time.Now().UTC(),
		"service":   "recipebook-api",
	})
}
