package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/safecommute/safecommute-backend-go/internal/models"
	"github.com/safecommute/safecommute-backend-go/internal/service"
	"github.com/safecommute/safecommute-backend-go/pkg/response"
)

// AlertHandler handles HTTP requests for service alerts
type AlertHandler struct {
	alertService *service.AlertService
}

// NewAlertHandler creates a new alert handler
func NewAlertHandler(alertService *service.AlertService) *AlertHandler {
	return &AlertHandler{alertService: alertService}
}

// List handles GET /api/v1/alerts
func (h *AlertHandler) List(c *gin.Context) {
	var filter models.AlertFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		response.BadRequest(c, "Invalid query parameters")
		return
	}

	page, err := h.alertService.List(c.Request.Context(), filter)
	if err != nil {
		response.FromError(c, err, "Failed to fetch alerts")
		return
	}

	response.Success(c, page)
}

// Nearby handles GET /api/v1/alerts/nearby
func (h *AlertHandler) Nearby(c *gin.Context) {
	q, ok := bindNearby(c)
	if !ok {
		return
	}

	alerts, err := h.alertService.Nearby(c.Request.Context(), q)
	if err != nil {
		response.FromError(c, err, "Failed to fetch nearby alerts")
		return
	}

	response.Success(c, alerts)
}

// Get handles GET /api/v1/alerts/:alertId
func (h *AlertHandler) Get(c *gin.Context) {
	alert, err := h.alertService.Get(c.Request.Context(), c.Param("alertId"))
	if err != nil {
		response.FromError(c, err, "Failed to fetch alert")
		return
	}

	response.Success(c, alert)
}

// Create handles POST /api/v1/alerts
func (h *AlertHandler) Create(c *gin.Context) {
	var in models.AlertCreate
	if err := c.ShouldBindJSON(&in); err != nil {
		response.BadRequest(c, "Invalid alert: "+err.Error())
		return
	}

	alert, err := h.alertService.Create(c.Request.Context(), in)
	if err != nil {
		response.FromError(c, err, "Failed to create alert")
		return
	}

	response.Created(c, alert, "Alert created successfully")
}

// UpdateStatus handles PATCH /api/v1/alerts/:alertId/status
func (h *AlertHandler) UpdateStatus(c *gin.Context) {
	var in models.AlertStatusUpdate
	if err := c.ShouldBindJSON(&in); err != nil {
		response.BadRequest(c, "Invalid status update: "+err.Error())
		return
	}

	alert, err := h.alertService.UpdateStatus(c.Request.Context(), c.Param("alertId"), in)
	if err != nil {
		response.FromError(c, err, "Failed to update alert status")
		return
	}

	response.Success(c, alert)
}

// Emergency handles POST /api/v1/alerts/emergency
func (h *AlertHandler) Emergency(c *gin.Context) {
	var in models.EmergencyBroadcast
	if err := c.ShouldBindJSON(&in); err != nil {
		response.BadRequest(c, "Invalid emergency broadcast: "+err.Error())
		return
	}

	sent, err := h.alertService.Emergency(c.Request.Context(), in)
	if err != nil {
		response.FromError(c, err, "Failed to broadcast emergency")
		return
	}

	response.Success(c, sent)
}

// Stats handles GET /api/v1/alerts/stats/overview
func (h *AlertHandler) Stats(c *gin.Context) {
	st, err := h.alertService.Stats(c.Request.Context())
	if err != nil {
		response.FromError(c, err, "Failed to fetch alert statistics")
		return
	}

	response.Success(c, st)
}
