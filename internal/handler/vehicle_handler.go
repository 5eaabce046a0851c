package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/safecommute/safecommute-backend-go/internal/models"
	"github.com/safecommute/safecommute-backend-go/internal/service"
	"github.com/safecommute/safecommute-backend-go/pkg/response"
)

// VehicleHandler handles HTTP requests for tracked vehicles
type VehicleHandler struct {
	vehicleService *service.VehicleService
}

// NewVehicleHandler creates a new vehicle handler
func NewVehicleHandler(vehicleService *service.VehicleService) *VehicleHandler {
	return &VehicleHandler{vehicleService: vehicleService}
}

// List handles GET /api/v1/vehicles
func (h *VehicleHandler) List(c *gin.Context) {
	var filter models.VehicleFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		response.BadRequest(c, "Invalid query parameters")
		return
	}

	page, err := h.vehicleService.List(c.Request.Context(), filter)
	if err != nil {
		response.FromError(c, err, "Failed to fetch vehicles")
		return
	}

	response.Success(c, page)
}

// Nearby handles GET /api/v1/vehicles/nearby
func (h *VehicleHandler) Nearby(c *gin.Context) {
	q, ok := bindNearby(c)
	if !ok {
		return
	}

	vehicles, err := h.vehicleService.Nearby(c.Request.Context(), q)
	if err != nil {
		response.FromError(c, err, "Failed to fetch nearby vehicles")
		return
	}

	response.Success(c, vehicles)
}

// Get handles GET /api/v1/vehicles/:vehicleId
func (h *VehicleHandler) Get(c *gin.Context) {
	v, err := h.vehicleService.Get(c.Request.Context(), c.Param("vehicleId"))
	if err != nil {
		response.FromError(c, err, "Failed to fetch vehicle")
		return
	}

	response.Success(c, v)
}

// Upsert handles POST /api/v1/vehicles
func (h *VehicleHandler) Upsert(c *gin.Context) {
	var in models.VehicleUpsert
	if err := c.ShouldBindJSON(&in); err != nil {
		response.BadRequest(c, "Invalid vehicle: "+err.Error())
		return
	}

	v, err := h.vehicleService.Upsert(c.Request.Context(), in)
	if err != nil {
		response.FromError(c, err, "Failed to update vehicle")
		return
	}

	response.Success(c, v)
}

// UpdateLocation handles PATCH /api/v1/vehicles/:vehicleId/location
func (h *VehicleHandler) UpdateLocation(c *gin.Context) {
	var in models.VehicleLocationUpdate
	if err := c.ShouldBindJSON(&in); err != nil {
		response.BadRequest(c, "Invalid location update: "+err.Error())
		return
	}

	v, err := h.vehicleService.UpdateLocation(c.Request.Context(), c.Param("vehicleId"), in)
	if err != nil {
		response.FromError(c, err, "Failed to update vehicle location")
		return
	}

	response.Success(c, v)
}

// UpdateOccupancy handles PATCH /api/v1/vehicles/:vehicleId/occupancy
func (h *VehicleHandler) UpdateOccupancy(c *gin.Context) {
	var in models.VehicleOccupancyUpdate
	if err := c.ShouldBindJSON(&in); err != nil {
		response.BadRequest(c, "Invalid occupancy update: "+err.Error())
		return
	}

	v, err := h.vehicleService.UpdateOccupancy(c.Request.Context(), c.Param("vehicleId"), in)
	if err != nil {
		response.FromError(c, err, "Failed to update vehicle occupancy")
		return
	}

	response.Success(c, v)
}

// Stats handles GET /api/v1/vehicles/stats/overview
func (h *VehicleHandler) Stats(c *gin.Context) {
	st, err := h.vehicleService.Stats(c.Request.Context())
	if err != nil {
		response.FromError(c, err, "Failed to fetch vehicle statistics")
		return
	}

	response.Success(c, st)
}
