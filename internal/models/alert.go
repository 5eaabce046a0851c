package models

import "time"

// Alert types
const (
	AlertEmergency   = "emergency"
	AlertWarning     = "warning"
	AlertInfo        = "info"
	AlertMaintenance = "maintenance"
)

// Alert severities
const (
	SeverityLow      = "low"
	SeverityMedium   = "medium"
	SeverityHigh     = "high"
	SeverityCritical = "critical"
)

// Alert statuses
const (
	AlertStatusActive        = "active"
	AlertStatusInvestigating = "investigating"
	AlertStatusResolved      = "resolved"
	AlertStatusCancelled     = "cancelled"
)

// AlertLocation is where an alert applies
type AlertLocation struct {
	Name        string      `json:"name" binding:"required"`
	Coordinates Coordinates `json:"coordinates,omitempty"`
	StopID      string      `json:"stopId,omitempty"`
	RouteID     string      `json:"routeId,omitempty"`
}

// Resolution records how an alert was closed
type Resolution struct {
	ResolvedAt *time.Time `json:"resolvedAt,omitempty"`
	Text       string     `json:"resolution,omitempty"`
}

// Alert is a service disruption or safety notice
type Alert struct {
	ID                  string        `json:"alertId" db:"id"`
	Type                string        `json:"type" db:"type"`
	Severity            string        `json:"severity" db:"severity"`
	Title               string        `json:"title" db:"title"`
	Description         string        `json:"description" db:"description"`
	Location            AlertLocation `json:"location"`
	Status              string        `json:"status" db:"status"`
	EstimatedPassengers int           `json:"estimatedPassengers" db:"estimated_passengers"`
	Resolution          Resolution    `json:"resolution"`
	CreatedAt           time.Time     `json:"createdAt" db:"created_at"`
	UpdatedAt           time.Time     `json:"updatedAt" db:"updated_at"`
}

// IsLive reports whether the alert still affects travel
func (a Alert) IsLive() bool {
	return a.Status == AlertStatusActive || a.Status == AlertStatusInvestigating
}

// IsStale reports an active alert older than 24 hours
func (a Alert) IsStale(now time.Time) bool {
	return a.Status == AlertStatusActive && now.Sub(a.CreatedAt) > 24*time.Hour
}

// AlertCreate is the request body for raising an alert
type AlertCreate struct {
	Type                string        `json:"type" binding:"required,oneof=emergency warning info maintenance"`
	Severity            string        `json:"severity" binding:"required,oneof=low medium high critical"`
	Title               string        `json:"title" binding:"required,max=200"`
	Description         string        `json:"description" binding:"required,max=1000"`
	Location            AlertLocation `json:"location" binding:"required"`
	EstimatedPassengers int           `json:"estimatedPassengers" binding:"min=0"`
}

// AlertStatusUpdate is the request body for moving an alert between statuses
type AlertStatusUpdate struct {
	Status     string `json:"status" binding:"required,oneof=active investigating resolved cancelled"`
	Resolution string `json:"resolution"`
}

// EmergencyBroadcast is a one-off emergency notice pushed to every client
type EmergencyBroadcast struct {
	Location    string    `json:"location" binding:"required"`
	AlertType   string    `json:"alertType" binding:"required"`
	Description string    `json:"description"`
	Timestamp   time.Time `json:"timestamp"`
	Source      string    `json:"source,omitempty"`
}

// AlertStats is the aggregate overview across stored alerts
type AlertStats struct {
	TotalAlerts         int `json:"totalAlerts"`
	ActiveAlerts        int `json:"activeAlerts"`
	EmergencyAlerts     int `json:"emergencyAlerts"`
	ResolvedAlerts      int `json:"resolvedAlerts"`
	AverageResponseTime int `json:"averageResponseTime"` // minutes
}
