package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/safecommute/safecommute-backend-go/internal/models"
	"github.com/safecommute/safecommute-backend-go/internal/service"
	"github.com/safecommute/safecommute-backend-go/pkg/response"
)

// TransitRouteHandler handles HTTP requests for the route network
type TransitRouteHandler struct {
	routeService *service.TransitRouteService
}

// NewTransitRouteHandler creates a new transit route handler
func NewTransitRouteHandler(routeService *service.TransitRouteService) *TransitRouteHandler {
	return &TransitRouteHandler{routeService: routeService}
}

// List handles GET /api/v1/routes
func (h *TransitRouteHandler) List(c *gin.Context) {
	var filter models.TransitRouteFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		response.BadRequest(c, "Invalid query parameters")
		return
	}

	page, err := h.routeService.List(c.Request.Context(), filter)
	if err != nil {
		response.FromError(c, err, "Failed to fetch routes")
		return
	}

	response.Success(c, page)
}

// Get handles GET /api/v1/routes/:routeId
func (h *TransitRouteHandler) Get(c *gin.Context) {
	detail, err := h.routeService.Get(c.Request.Context(), c.Param("routeId"))
	if err != nil {
		response.FromError(c, err, "Failed to fetch route")
		return
	}

	response.Success(c, detail)
}

// Upsert handles POST /api/v1/routes
func (h *TransitRouteHandler) Upsert(c *gin.Context) {
	var in models.TransitRouteUpsert
	if err := c.ShouldBindJSON(&in); err != nil {
		response.BadRequest(c, "Invalid route: "+err.Error())
		return
	}

	route, err := h.routeService.Upsert(c.Request.Context(), in)
	if err != nil {
		response.FromError(c, err, "Failed to store route")
		return
	}

	response.Success(c, route)
}

// Schedule handles GET /api/v1/routes/:routeId/schedule?stopId=
func (h *TransitRouteHandler) Schedule(c *gin.Context) {
	schedule, err := h.routeService.Schedule(c.Request.Context(), c.Param("routeId"), c.Query("stopId"))
	if err != nil {
		response.FromError(c, err, "Failed to fetch route schedule")
		return
	}

	response.Success(c, schedule)
}

// Stops handles GET /api/v1/routes/:routeId/stops
func (h *TransitRouteHandler) Stops(c *gin.Context) {
	stops, err := h.routeService.Stops(c.Request.Context(), c.Param("routeId"))
	if err != nil {
		response.FromError(c, err, "Failed to fetch route stops")
		return
	}

	response.Success(c, stops)
}

// Performance handles GET /api/v1/routes/:routeId/performance?days=7
func (h *TransitRouteHandler) Performance(c *gin.Context) {
	days, err := strconv.Atoi(c.DefaultQuery("days", "7"))
	if err != nil || days < 1 || days > 90 {
		response.BadRequest(c, "days must be between 1 and 90")
		return
	}

	report, err := h.routeService.Performance(c.Request.Context(), c.Param("routeId"), days)
	if err != nil {
		response.FromError(c, err, "Failed to fetch route performance")
		return
	}

	response.Success(c, report)
}
