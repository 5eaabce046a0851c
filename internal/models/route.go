package models

import "time"

// Route archetypes
const (
	RouteFastest      = "fastest"
	RouteLeastCrowded = "least-crowded"
	RouteMostReliable = "most-reliable"
)

// Ranking priorities
const (
	PriorityFastest      = "fastest"
	PriorityLeastCrowded = "least-crowded"
	PriorityMostReliable = "most-reliable"
	PriorityBalanced     = "balanced"
)

// Crowd levels used on route options
const (
	CrowdLow    = "low"
	CrowdMedium = "medium"
	CrowdHigh   = "high"
)

// Alert impacts on a route
const (
	ImpactMajor = "major"
	ImpactMinor = "minor"
)

// Preferences is the caller's stated travel priority
type Preferences struct {
	Priority                 string  `json:"priority" binding:"omitempty,oneof=fastest least-crowded most-reliable balanced"`
	MaxWalkingDistanceMeters float64 `json:"maxWalkingDistanceMeters" binding:"min=0,max=2000"`
	AvoidCrowded             bool    `json:"avoidCrowded"`
	AccessibilityRequired    bool    `json:"accessibilityRequired"`
}

// SegmentCrowd is the expected load on one leg of a route
type SegmentCrowd struct {
	Segment    string `json:"segment"`
	Level      string `json:"level"`
	Percentage int    `json:"percentage"`
}

// Accessibility describes step-free access along a route
type Accessibility struct {
	WheelchairAccessible bool `json:"wheelchairAccessible"`
	ElevatorRequired     bool `json:"elevatorRequired"`
}

// RouteAlert is an alert attached to a route option
type RouteAlert struct {
	Type     string `json:"type"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
	Impact   string `json:"impact"`
}

// RouteOption is one scored candidate journey. Built fresh per request.
type RouteOption struct {
	ID                    string         `json:"id"`
	Name                  string         `json:"name"`
	Type                  string         `json:"type"`
	DurationMinutes       int            `json:"durationMinutes"`
	WalkingMinutes        int            `json:"walkingMinutes"`
	TransitMinutes        int            `json:"transitMinutes"`
	Transfers             int            `json:"transfers"`
	WalkingDistanceMeters int            `json:"walkingDistanceMeters"`
	CrowdLevel            string         `json:"crowdLevel"`
	Reliability           float64        `json:"reliability"`
	Steps                 []string       `json:"steps"`
	CrowdForecast         []SegmentCrowd `json:"crowdForecast"`
	Cost                  float64        `json:"cost"`
	CarbonFootprintKg     float64        `json:"carbonFootprintKg"`
	Accessibility         Accessibility  `json:"accessibility"`
	Alerts                []RouteAlert   `json:"alerts"`
	Recommended           bool           `json:"recommended"`
	Demoted               bool           `json:"demoted,omitempty"`
	Reason                string         `json:"reason,omitempty"`
	AdjustedForDelays     bool           `json:"adjustedForDelays"`
	Savings               string         `json:"savings,omitempty"`
	SavingsMinutes        int            `json:"savingsMinutes"`
}

// OptimizationRequest is the body of a route optimization call
type OptimizationRequest struct {
	Origin        Place       `json:"origin" binding:"required"`
	Destination   Place       `json:"destination" binding:"required"`
	Preferences   Preferences `json:"preferences"`
	DepartureTime *time.Time  `json:"departureTime,omitempty"`
}

// OptimizationResult is the ranked answer plus the echoed request
type OptimizationResult struct {
	Routes      []RouteOption `json:"routes"`
	Origin      Place         `json:"origin"`
	Destination Place         `json:"destination"`
	Preferences Preferences   `json:"preferences"`
	// NearbyRoutes are active network routes calling near either endpoint
	NearbyRoutes []NearbyRoute `json:"nearbyRoutes"`
	GeneratedAt  time.Time     `json:"generatedAt"`
}

// Insight condition kinds and recommendation priorities
const (
	ConditionCrowding = "crowding"
	ConditionService  = "service"

	PriorityHigh   = "high"
	PriorityMedium = "medium"
	PriorityLow    = "low"
)

// TravelCondition is one factor currently affecting a journey
type TravelCondition struct {
	Type        string `json:"type"`
	Status      string `json:"status"`
	Impact      string `json:"impact"`
	Description string `json:"description"`
}

// TravelRecommendation is advice derived from current conditions
type TravelRecommendation struct {
	Type     string `json:"type"`
	Priority string `json:"priority"`
	Message  string `json:"message"`
}

// InsightAlert is a live alert near a journey
type InsightAlert struct {
	Severity       string   `json:"severity"`
	Message        string   `json:"message"`
	AffectedRoutes []string `json:"affectedRoutes"`
}

// TravelInsights summarises what currently affects travel between two points
type TravelInsights struct {
	Conditions      []TravelCondition      `json:"conditions"`
	Recommendations []TravelRecommendation `json:"recommendations"`
	Alerts          []InsightAlert         `json:"alerts"`
	NearbyRoutes    []NearbyRoute          `json:"nearbyRoutes"`
	UpdatedAt       time.Time              `json:"updatedAt"`
}

// CrowdAwareRequest asks for routes that stay under a crowd level
type CrowdAwareRequest struct {
	Origin        Place       `json:"origin" binding:"required"`
	Destination   Place       `json:"destination" binding:"required"`
	MaxCrowdLevel string      `json:"maxCrowdLevel" binding:"omitempty,oneof=low medium high"`
	Preferences   Preferences `json:"preferences"`
}

// AlternativeRoute is a route option with why it was not chosen
type AlternativeRoute struct {
	Route  RouteOption `json:"route"`
	Reason string      `json:"reason"`
}

// CrowdAlert flags a crowded place at a journey endpoint
type CrowdAlert struct {
	Location       string    `json:"location"`
	Level          RiskLevel `json:"level"`
	Percentage     int       `json:"percentage"`
	Recommendation string    `json:"recommendation"`
}

// CrowdAwareResult is the best route under the crowd limit and the rest
type CrowdAwareResult struct {
	PrimaryRoute      RouteOption        `json:"primaryRoute"`
	WithinLimit       bool               `json:"withinLimit"`
	MaxCrowdLevel     string             `json:"maxCrowdLevel"`
	AlternativeRoutes []AlternativeRoute `json:"alternativeRoutes"`
	CrowdAlerts       []CrowdAlert       `json:"crowdAlerts"`
	GeneratedAt       time.Time          `json:"generatedAt"`
}
