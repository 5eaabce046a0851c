package handler

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/safecommute/safecommute-backend-go/internal/models"
	"github.com/safecommute/safecommute-backend-go/internal/service"
	"github.com/safecommute/safecommute-backend-go/pkg/response"
)

// CrowdHandler handles HTTP requests for crowd readings
type CrowdHandler struct {
	crowdService *service.CrowdService
}

// NewCrowdHandler creates a new crowd handler
func NewCrowdHandler(crowdService *service.CrowdService) *CrowdHandler {
	return &CrowdHandler{crowdService: crowdService}
}

// List handles GET /api/v1/crowd
func (h *CrowdHandler) List(c *gin.Context) {
	var filter models.CrowdFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		response.BadRequest(c, "Invalid query parameters")
		return
	}

	page, err := h.crowdService.List(c.Request.Context(), filter)
	if err != nil {
		response.FromError(c, err, "Failed to fetch crowd data")
		return
	}

	response.Success(c, page)
}

// Ingest handles POST /api/v1/crowd
func (h *CrowdHandler) Ingest(c *gin.Context) {
	var in models.CrowdIngest
	if err := c.ShouldBindJSON(&in); err != nil {
		response.BadRequest(c, "Invalid crowd reading: "+err.Error())
		return
	}

	reading, err := h.crowdService.Ingest(c.Request.Context(), in)
	if err != nil {
		response.FromError(c, err, "Failed to store crowd data")
		return
	}

	response.Created(c, reading, "Crowd data updated successfully")
}

// Nearby handles GET /api/v1/crowd/nearby
func (h *CrowdHandler) Nearby(c *gin.Context) {
	q, ok := bindNearby(c)
	if !ok {
		return
	}

	readings, err := h.crowdService.Nearby(c.Request.Context(), q)
	if err != nil {
		response.FromError(c, err, "Failed to fetch nearby crowd data")
		return
	}

	response.Success(c, readings)
}

// Location handles GET /api/v1/crowd/location/:locationId
func (h *CrowdHandler) Location(c *gin.Context) {
	hours, err := strconv.Atoi(c.DefaultQuery("hours", "24"))
	if err != nil || hours < 1 || hours > 168 {
		response.BadRequest(c, "hours must be between 1 and 168")
		return
	}

	history, err := h.crowdService.LocationHistory(c.Request.Context(), c.Param("locationId"), hours)
	if err != nil {
		response.FromError(c, err, "Failed to fetch location data")
		return
	}

	response.Success(c, history)
}

// Stats handles GET /api/v1/crowd/stats/overview
func (h *CrowdHandler) Stats(c *gin.Context) {
	st, err := h.crowdService.Stats(c.Request.Context())
	if err != nil {
		response.FromError(c, err, "Failed to fetch crowd statistics")
		return
	}

	response.Success(c, st)
}

// Predict handles GET /api/v1/crowd/predictions/:locationId
func (h *CrowdHandler) Predict(c *gin.Context) {
	forecast, err := h.crowdService.Predict(c.Request.Context(), c.Param("locationId"))
	if err != nil {
		response.FromError(c, err, "Failed to generate predictions")
		return
	}

	response.Success(c, forecast)
}

// SegmentForecast handles GET /api/v1/crowd/segments/forecast?segment=a&segment=b
func (h *CrowdHandler) SegmentForecast(c *gin.Context) {
	var segments []string
	for _, v := range c.QueryArray("segment") {
		segments = append(segments, strings.Split(v, ",")...)
	}
	if len(segments) == 0 {
		response.BadRequest(c, "At least one segment is required")
		return
	}

	forecasts, err := h.crowdService.ForecastSegments(c.Request.Context(), segments)
	if err != nil {
		response.FromError(c, err, "Failed to forecast segments")
		return
	}

	response.Success(c, forecasts)
}

// bindNearby parses lat/lng/radius, answering 400 itself on failure
func bindNearby(c *gin.Context) (models.NearbyQuery, bool) {
	var q models.NearbyQuery
	if c.Query("lat") == "" || c.Query("lng") == "" {
		response.BadRequest(c, "lat and lng are required")
		return q, false
	}
	if err := c.ShouldBindQuery(&q); err != nil {
		response.BadRequest(c, "Invalid coordinates or radius")
		return q, false
	}
	return q, true
}
