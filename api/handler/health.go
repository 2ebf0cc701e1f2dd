package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/gridsight/models"
	"github.com/use-agent/gridsight/scraper"
)

// Health returns a handler for GET /api/v1/health.
//
// Reports page pool utilisation and degrades status when more than 80%
// of the pool is busy. Extractions hold a tab for the full sampling
// run, so a nearly-full pool is the early warning worth surfacing.
func Health(sc *scraper.Scraper, startTime time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats := sc.Stats()

		status := "healthy"
		if stats.MaxPages > 0 && stats.ActivePages > int(float64(stats.MaxPages)*0.8) {
			status = "degraded"
		}

		c.JSON(http.StatusOK, models.HealthResponse{
			Status:    status,
			Uptime:    time.Since(startTime).Round(time.Second).String(),
			PoolStats: stats,
			Version:   "0.1.0",
		})
	}
}
