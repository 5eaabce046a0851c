package handler

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/safecommute/safecommute-backend-go/internal/models"
	"github.com/safecommute/safecommute-backend-go/internal/service"
	"github.com/safecommute/safecommute-backend-go/pkg/response"
)

// OptimizationHandler handles route optimization requests
type OptimizationHandler struct {
	routeService *service.RouteService
}

// NewOptimizationHandler creates a new optimization handler
func NewOptimizationHandler(routeService *service.RouteService) *OptimizationHandler {
	return &OptimizationHandler{routeService: routeService}
}

// Routes handles POST /api/v1/optimization/routes
func (h *OptimizationHandler) Routes(c *gin.Context) {
	var req models.OptimizationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Origin and destination coordinates required")
		return
	}

	result, err := h.routeService.Optimize(c.Request.Context(), req)
	if err != nil {
		response.FromError(c, err, "Failed to optimize routes")
		return
	}

	response.Success(c, result)
}

// Insights handles GET /api/v1/optimization/insights?origin=lat,lng&destination=lat,lng
func (h *OptimizationHandler) Insights(c *gin.Context) {
	if c.Query("origin") == "" || c.Query("destination") == "" {
		response.BadRequest(c, "Origin and destination coordinates required")
		return
	}
	origin, okOrigin := parseLatLng(c.Query("origin"))
	destination, okDest := parseLatLng(c.Query("destination"))
	if !okOrigin || !okDest {
		response.BadRequest(c, "Invalid coordinate format. Use: lat,lng")
		return
	}

	insights, err := h.routeService.Insights(c.Request.Context(), origin, destination)
	if err != nil {
		response.FromError(c, err, "Failed to fetch travel insights")
		return
	}

	response.Success(c, insights)
}

// CrowdAware handles POST /api/v1/optimization/crowd-aware
func (h *OptimizationHandler) CrowdAware(c *gin.Context) {
	var req models.CrowdAwareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Origin and destination coordinates required")
		return
	}

	result, err := h.routeService.CrowdAware(c.Request.Context(), req)
	if err != nil {
		response.FromError(c, err, "Failed to generate crowd-aware routes")
		return
	}

	response.Success(c, result)
}

// parseLatLng reads "lat,lng" into [lng, lat]
func parseLatLng(raw string) (models.Coordinates, bool) {
	parts := strings.Split(raw, ",")
	if len(parts) != 2 {
		return nil, false
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return nil, false
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return nil, false
	}
	return models.Coordinates{lng, lat}, true
}
