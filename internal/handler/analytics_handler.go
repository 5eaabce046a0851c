package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/safecommute/safecommute-backend-go/internal/service"
	"github.com/safecommute/safecommute-backend-go/pkg/response"
)

// AnalyticsHandler handles the network analytics endpoints
type AnalyticsHandler struct {
	analyticsService *service.AnalyticsService
}

// NewAnalyticsHandler creates a new analytics handler
func NewAnalyticsHandler(analyticsService *service.AnalyticsService) *AnalyticsHandler {
	return &AnalyticsHandler{analyticsService: analyticsService}
}

// Overview handles GET /api/v1/analytics/overview?timeframe=24h
func (h *AnalyticsHandler) Overview(c *gin.Context) {
	overview, err := h.analyticsService.Overview(c.Request.Context(), c.Query("timeframe"))
	if err != nil {
		response.FromError(c, err, "Failed to fetch analytics overview")
		return
	}

	response.Success(c, overview)
}

// Routes handles GET /api/v1/analytics/routes
func (h *AnalyticsHandler) Routes(c *gin.Context) {
	routes, err := h.analyticsService.Routes(c.Request.Context())
	if err != nil {
		response.FromError(c, err, "Failed to fetch route analytics")
		return
	}

	response.Success(c, routes)
}

// CrowdTrends handles GET /api/v1/analytics/crowd-trends?locationId=&hours=24
func (h *AnalyticsHandler) CrowdTrends(c *gin.Context) {
	hours, err := strconv.Atoi(c.DefaultQuery("hours", "24"))
	if err != nil || hours < 1 {
		response.BadRequest(c, "hours must be a positive number")
		return
	}

	trends, err := h.analyticsService.CrowdTrends(c.Request.Context(), c.Query("locationId"), hours)
	if err != nil {
		response.FromError(c, err, "Failed to fetch crowd trends")
		return
	}

	response.Success(c, trends)
}

// AlertPatterns handles GET /api/v1/analytics/alert-patterns?days=7
func (h *AnalyticsHandler) AlertPatterns(c *gin.Context) {
	days, err := strconv.Atoi(c.DefaultQuery("days", "7"))
	if err != nil || days < 1 {
		response.BadRequest(c, "days must be a positive number")
		return
	}

	patterns, err := h.analyticsService.AlertPatterns(c.Request.Context(), days)
	if err != nil {
		response.FromError(c, err, "Failed to fetch alert patterns")
		return
	}

	response.Success(c, patterns)
}

// Predictions handles GET /api/v1/analytics/predictions
func (h *AnalyticsHandler) Predictions(c *gin.Context) {
	predictions, err := h.analyticsService.Predictions(c.Request.Context())
	if err != nil {
		response.FromError(c, err, "Failed to generate predictions")
		return
	}

	response.Success(c, predictions)
}
