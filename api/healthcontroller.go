package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"reviewbot/config"
	"reviewbot/monitor"
)

// RegisterHealthRoutes registers the health endpoint.
func RegisterHealthRoutes(r *gin.Engine, m *monitor.Monitor, cfg *config.Config) {
	r.GET("/health", handleHealth(m, cfg))
}

// handleHealth reports liveness plus the knobs operators ask about
// first when a group fails to aggregate.
func handleHealth(m *monitor.Monitor, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":                  "healthy",
			"service":                 "review-aggregation-monitor",
			"timestamp":               time.Now().UTC().Format(time.RFC3339),
			"pending_queries":         m.PendingCount(c.Request.Context()),
			"source_bucket":           cfg.SourceBucket,
			"wait_time_minutes":       cfg.WaitWindow.Minutes(),
			"min_completion_rate":     cfg.MinCompletionRate,
			"min_reviews_per_product": cfg.MinReviewsPerProduct,
		})
	}
}
