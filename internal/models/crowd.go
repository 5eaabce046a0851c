package models

import "time"

// DensityTier buckets an occupancy percentage
type DensityTier string

// RiskLevel is the operational danger attached to a crowd reading
type RiskLevel string

const (
	DensityLow      DensityTier = "low"
	DensityMedium   DensityTier = "medium"
	DensityHigh     DensityTier = "high"
	DensityCritical DensityTier = "critical"
)

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// Location types
const (
	LocationStation  = "station"
	LocationPlatform = "platform"
	LocationVehicle  = "vehicle"
	LocationStop     = "stop"
)

// Trend directions
const (
	TrendIncreasing = "increasing"
	TrendDecreasing = "decreasing"
	TrendStable     = "stable"
)

// Risk factors and recommendation codes
const (
	FactorCrowdDensity     = "crowd_density"
	RecommendAvoidLocation = "avoid_location"
	RecommendAlternative   = "use_alternative_route"
	RecommendMonitor       = "monitor_situation"
)

// OccupancyReading is a head count against a capacity
type OccupancyReading struct {
	Current  int `json:"current"`
	Capacity int `json:"capacity"`
}

// Trend describes how a location's occupancy is moving
type Trend struct {
	Direction     string  `json:"direction,omitempty"`
	RatePerMinute float64 `json:"ratePerMinute"`
	Confidence    float64 `json:"confidence"`
}

// Predictions holds short-horizon head count estimates
type Predictions struct {
	Next15Min int `json:"next15min"`
	Next30Min int `json:"next30min"`
	Next60Min int `json:"next60min"`
}

// RiskAssessment is the derived risk block stored with a reading
type RiskAssessment struct {
	Level           RiskLevel `json:"level"`
	Factors         []string  `json:"factors"`
	Recommendations []string  `json:"recommendations"`
	Score           int       `json:"score"`
}

// CrowdReading is a single occupancy observation at a location.
// Percentage, Density and Risk are derived once at creation and never rewritten.
type CrowdReading struct {
	ID           string           `json:"id" db:"id"`
	LocationID   string           `json:"locationId" db:"location_id"`
	LocationName string           `json:"locationName" db:"location_name"`
	LocationType string           `json:"locationType" db:"location_type"`
	Coordinates  Coordinates      `json:"coordinates"`
	Occupancy    OccupancyReading `json:"occupancy"`
	Percentage   int              `json:"percentage" db:"percentage"`
	Density      DensityTier      `json:"density" db:"density"`
	Risk         RiskAssessment   `json:"risk"`
	Trend        Trend            `json:"trend"`
	Predictions  Predictions      `json:"predictions"`
	DataSource   string           `json:"dataSource" db:"data_source"`
	Accuracy     float64          `json:"accuracy" db:"accuracy"`
	CreatedAt    time.Time        `json:"createdAt" db:"created_at"`
}

// CrowdIngest is the collaborator-supplied part of a reading
type CrowdIngest struct {
	LocationID   string           `json:"locationId" binding:"required"`
	LocationName string           `json:"locationName" binding:"required"`
	LocationType string           `json:"locationType" binding:"required,oneof=station platform vehicle stop"`
	Coordinates  Coordinates      `json:"coordinates" binding:"required"`
	Occupancy    OccupancyReading `json:"occupancy"`
	Trend        *Trend           `json:"trend,omitempty"`
	Predictions  *Predictions     `json:"predictions,omitempty"`
	DataSource   string           `json:"dataSource,omitempty" binding:"omitempty,oneof=camera sensor manual estimated"`
	Accuracy     *float64         `json:"accuracy,omitempty"` // nil means unknown
}

// LocationTrends summarises a location's recent history
type LocationTrends struct {
	Average int         `json:"average"`
	Peak    CountAtTime `json:"peak"`
	Low     CountAtTime `json:"low"`
}

// CountAtTime pairs a head count with when it was observed
type CountAtTime struct {
	Time  time.Time `json:"time"`
	Count int       `json:"count"`
}

// LocationHistory is the response of the per-location endpoint
type LocationHistory struct {
	Latest     CrowdReading   `json:"latest"`
	Historical []CrowdReading `json:"historical"`
	Trends     LocationTrends `json:"trends"`
	Count      int            `json:"count"`
}

// CrowdForecast is a short-horizon prediction for one location
type CrowdForecast struct {
	LocationID     string    `json:"locationId"`
	Next15Min      int       `json:"next15min"`
	Next30Min      int       `json:"next30min"`
	Next60Min      int       `json:"next60min"`
	Confidence     float64   `json:"confidence"`
	Trend          string    `json:"trend"`
	BasedOnSamples int       `json:"basedOnSamples"`
	GeneratedAt    time.Time `json:"generatedAt"`
}

// SegmentForecast is the predicted crowd level on a named route segment
type SegmentForecast struct {
	Segment    string  `json:"segment"`
	Level      string  `json:"predictedLevel"`
	Confidence float64 `json:"confidence"`
	Percentage int     `json:"percentage"`
	Samples    int     `json:"samples"`
}

// CrowdStats is the aggregate overview across stored readings
type CrowdStats struct {
	TotalLocations        int     `json:"totalLocations"`
	AverageOccupancy      float64 `json:"averageOccupancy"`
	P95Occupancy          float64 `json:"p95Occupancy"`
	HighRiskLocations     int     `json:"highRiskLocations"`
	CriticalRiskLocations int     `json:"criticalRiskLocations"`
	TotalPassengers       int     `json:"totalPassengers"`
}
