package models

import "time"

// Vehicle statuses
const (
	VehicleOnTime      = "on-time"
	VehicleDelayed     = "delayed"
	VehicleCrowded     = "crowded"
	VehicleIncident    = "incident"
	VehicleMaintenance = "maintenance"
)

// Vehicle is a tracked bus, train, metro or tram
type Vehicle struct {
	VehicleID   string           `json:"vehicleId" db:"vehicle_id"`
	Type        string           `json:"type" db:"type"`
	Route       string           `json:"route" db:"route"`
	Coordinates Coordinates      `json:"coordinates"`
	Occupancy   OccupancyReading `json:"occupancy"`
	Percentage  int              `json:"percentage" db:"percentage"`
	Status      string           `json:"status" db:"status"`
	Speed       float64          `json:"speed" db:"speed"`
	Heading     float64          `json:"heading" db:"heading"`
	LastUpdated time.Time        `json:"lastUpdated" db:"last_updated"`
	CreatedAt   time.Time        `json:"createdAt" db:"created_at"`
}

// VehicleUpsert is the request body for registering or replacing a vehicle
type VehicleUpsert struct {
	VehicleID   string           `json:"vehicleId" binding:"required"`
	Type        string           `json:"type" binding:"required,oneof=bus train metro tram"`
	Route       string           `json:"route" binding:"required"`
	Coordinates Coordinates      `json:"coordinates" binding:"required"`
	Occupancy   OccupancyReading `json:"occupancy"`
	Status      string           `json:"status" binding:"omitempty,oneof=on-time delayed crowded incident maintenance"`
	Speed       float64          `json:"speed" binding:"min=0"`
	Heading     float64          `json:"heading" binding:"min=0,max=360"`
}

// VehicleLocationUpdate is the request body for a position report
type VehicleLocationUpdate struct {
	Coordinates Coordinates `json:"coordinates" binding:"required"`
	Speed       *float64    `json:"speed"`
	Heading     *float64    `json:"heading"`
}

// VehicleStats is the aggregate overview across the fleet
type VehicleStats struct {
	TotalVehicles     int     `json:"totalVehicles"`
	AverageOccupancy  float64 `json:"averageOccupancy"`
	OnTimeVehicles    int     `json:"onTimeVehicles"`
	DelayedVehicles   int     `json:"delayedVehicles"`
	CrowdedVehicles   int     `json:"crowdedVehicles"`
	OnTimePerformance int     `json:"onTimePerformance"`
}

// VehicleOccupancyUpdate is the request body for a head count report.
// A zero capacity keeps the registered capacity.
type VehicleOccupancyUpdate struct {
	Current  int `json:"current" binding:"min=0"`
	Capacity int `json:"capacity" binding:"min=0"`
}
