package models

import "time"

// Transit route statuses
const (
	RouteStatusActive      = "active"
	RouteStatusSuspended   = "suspended"
	RouteStatusMaintenance = "maintenance"
	RouteStatusLimited     = "limited"
)

// FacilityWheelchair marks a step-free stop
const FacilityWheelchair = "wheelchair"

// DefaultRouteColor is used when a route is registered without one
const DefaultRouteColor = "#0066CC"

// Stop is one call on a transit route
type Stop struct {
	StopID           string      `json:"stopId" binding:"required"`
	Name             string      `json:"name" binding:"required"`
	Coordinates      Coordinates `json:"coordinates" binding:"required"`
	Order            int         `json:"order" binding:"min=0"`
	EstimatedMinutes int         `json:"estimatedTime" binding:"min=0"` // from the first stop
	Facilities       []string    `json:"facilities"`
}

// HasFacility reports whether the stop lists the facility
func (s Stop) HasFacility(name string) bool {
	for _, f := range s.Facilities {
		if f == name {
			return true
		}
	}
	return false
}

// ServicePattern is the timetable for one kind of day. Times are HH:MM.
type ServicePattern struct {
	FirstDeparture string `json:"firstDeparture"`
	LastDeparture  string `json:"lastDeparture"`
	Frequency      int    `json:"frequency" binding:"min=0"` // minutes between services
	PeakFrequency  int    `json:"peakFrequency,omitempty" binding:"min=0"`
}

// Schedule holds the weekday and weekend patterns
type Schedule struct {
	Weekday ServicePattern `json:"weekday"`
	Weekend ServicePattern `json:"weekend"`
}

// RoutePerformance is the operator-reported service record
type RoutePerformance struct {
	OnTimePerformance float64 `json:"onTimePerformance" binding:"min=0,max=100"`
	AverageDelay      float64 `json:"averageDelay" binding:"min=0"` // minutes
	Reliability       float64 `json:"reliability" binding:"min=0,max=100"`
}

// DefaultRoutePerformance applies to routes registered without a record
var DefaultRoutePerformance = RoutePerformance{OnTimePerformance: 90, Reliability: 95}

// RouteCapacity describes the rolling stock on a route
type RouteCapacity struct {
	VehicleCapacity  int     `json:"vehicleCapacity" binding:"min=0"`
	PeakHourCapacity int     `json:"peakHourCapacity,omitempty" binding:"min=0"`
	AverageOccupancy float64 `json:"averageOccupancy" binding:"min=0,max=100"`
}

// TransitRoute is a line in the network with its ordered stops
type TransitRoute struct {
	RouteID     string           `json:"routeId" db:"route_id"`
	Name        string           `json:"name" db:"name"`
	Type        string           `json:"type" db:"type"`
	Color       string           `json:"color" db:"color"`
	Status      string           `json:"status" db:"status"`
	Stops       []Stop           `json:"stops"`
	Schedule    Schedule         `json:"schedule"`
	Performance RoutePerformance `json:"performance"`
	Capacity    RouteCapacity    `json:"capacity"`
	CreatedAt   time.Time        `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time        `json:"updatedAt" db:"updated_at"`
}

// Stop returns the stop with the given id
func (r TransitRoute) Stop(id string) (Stop, bool) {
	for _, s := range r.Stops {
		if s.StopID == id {
			return s, true
		}
	}
	return Stop{}, false
}

// TransitRouteUpsert is the request body for registering or replacing a route
type TransitRouteUpsert struct {
	RouteID     string            `json:"routeId" binding:"required"`
	Name        string            `json:"name" binding:"required"`
	Type        string            `json:"type" binding:"required,oneof=bus train metro tram"`
	Color       string            `json:"color"`
	Status      string            `json:"status" binding:"omitempty,oneof=active suspended maintenance limited"`
	Stops       []Stop            `json:"stops" binding:"dive"`
	Schedule    Schedule          `json:"schedule"`
	Performance *RoutePerformance `json:"performance"`
	Capacity    RouteCapacity     `json:"capacity"`
}

// TransitRouteFilter represents filter parameters for listing routes
type TransitRouteFilter struct {
	Type   string `form:"type"`
	Status string `form:"status"`
	Sort   string `form:"sort"`  // name, routeId, type
	Order  string `form:"order"` // asc, desc
	Page   int    `form:"page"`
	Limit  int    `form:"limit"`
}

// RouteMetrics is the live state of the vehicles serving a route
type RouteMetrics struct {
	ActiveVehicles    int `json:"activeVehicles"`
	AverageOccupancy  int `json:"averageOccupancy"`
	OnTimeVehicles    int `json:"onTimeVehicles"`
	DelayedVehicles   int `json:"delayedVehicles"`
	CrowdedVehicles   int `json:"crowdedVehicles"`
	OnTimePerformance int `json:"onTimePerformance"`
}

// RouteVehicle is a vehicle as shown on a route page
type RouteVehicle struct {
	VehicleID   string           `json:"vehicleId"`
	Coordinates Coordinates      `json:"coordinates"`
	Occupancy   OccupancyReading `json:"occupancy"`
	Percentage  int              `json:"percentage"`
	Status      string           `json:"status"`
	LastUpdated time.Time        `json:"lastUpdated"`
}

// RouteDetail is a route with its live metrics
type RouteDetail struct {
	TransitRoute
	RealTimeMetrics RouteMetrics   `json:"realTimeMetrics"`
	Vehicles        []RouteVehicle `json:"vehicles"`
}

// Departure is one upcoming service at a stop
type Departure struct {
	ScheduledTime time.Time `json:"scheduledTime"`
	EstimatedTime time.Time `json:"estimatedTime"`
	Status        string    `json:"status"`
}

// RouteSchedule is the timetable of a route, with departures when a stop was asked for
type RouteSchedule struct {
	RouteID        string      `json:"routeId"`
	Schedule       Schedule    `json:"schedule"`
	StopID         string      `json:"stopId,omitempty"`
	NextDepartures []Departure `json:"nextDepartures"`
	GeneratedAt    time.Time   `json:"generatedAt"`
}

// ApproachingVehicle is a vehicle whose closest stop is the one listed
type ApproachingVehicle struct {
	VehicleID        string           `json:"vehicleId"`
	DistanceMeters   int              `json:"distanceMeters"`
	EstimatedArrival time.Time        `json:"estimatedArrival"`
	Occupancy        OccupancyReading `json:"occupancy"`
	Status           string           `json:"status"`
}

// StopStatus is a stop with the vehicles heading for it
type StopStatus struct {
	Stop
	ApproachingVehicles []ApproachingVehicle `json:"approachingVehicles"`
}

// RouteStops lists every stop of a route with live vehicles
type RouteStops struct {
	RouteID    string       `json:"routeId"`
	Stops      []StopStatus `json:"stops"`
	TotalStops int          `json:"totalStops"`
}

// ServiceQuality scores a route from 0 to 100 on each axis
type ServiceQuality struct {
	Punctuality   int `json:"punctuality"`
	Comfort       int `json:"comfort"`
	Frequency     int `json:"frequency"`
	Accessibility int `json:"accessibility"`
}

// RoutePerformanceReport combines the stored record with recently observed vehicles
type RoutePerformanceReport struct {
	RouteID           string         `json:"routeId"`
	Days              int            `json:"days"`
	OnTimePerformance float64        `json:"onTimePerformance"`
	AverageDelay      float64        `json:"averageDelay"`
	Reliability       float64        `json:"reliability"`
	AverageOccupancy  float64        `json:"averageOccupancy"`
	ObservedVehicles  int            `json:"observedVehicles"`
	ServiceQuality    ServiceQuality `json:"serviceQuality"`
	GeneratedAt       time.Time      `json:"generatedAt"`
}

// NearbyRoute is an active route calling close to a journey endpoint
type NearbyRoute struct {
	RouteID        string `json:"routeId"`
	Name           string `json:"name"`
	Type           string `json:"type"`
	Stop           string `json:"stop"`
	DistanceMeters int    `json:"distanceMeters"`
}
