package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/marisel-vam/ai-inbox-zero/internal/store"
)

const defaultAnalyticsDays = 7

// AnalyticsHandler handles daily processing statistics requests
type AnalyticsHandler struct {
	gateway *store.Gateway
}

// NewAnalyticsHandler creates a new AnalyticsHandler instance
func NewAnalyticsHandler(gateway *store.Gateway) *AnalyticsHandler {
	return &AnalyticsHandler{gateway: gateway}
}

// GetAnalytics returns per-day counters and totals for the last N days
// GET /api/analytics?days=7
func (h *AnalyticsHandler) GetAnalytics(c *gin.Context) {
	days := defaultAnalyticsDays
	if v := c.Query("days"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "VALIDATION_ERROR",
					"message": "days must be a positive integer",
				},
			})
			return
		}
		days = parsed
	}

	summary, daily, err := h.gateway.AggregateRange(c.Request.Context(), days)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INTERNAL_ERROR",
				"message": "Failed to retrieve analytics",
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"days":    days,
			"summary": summary,
			"daily":   daily,
		},
	})
}
