package models

import "time"

// FleetSummary aggregates vehicle states
type FleetSummary struct {
	TotalVehicles    int     `json:"totalVehicles"`
	ActiveVehicles   int     `json:"activeVehicles"`
	AverageOccupancy float64 `json:"averageOccupancy"`
	OnTimeVehicles   int     `json:"onTimeVehicles"`
	DelayedVehicles  int     `json:"delayedVehicles"`
	CrowdedVehicles  int     `json:"crowdedVehicles"`
}

// CrowdSummary aggregates the readings taken in a window
type CrowdSummary struct {
	TotalReadings        int     `json:"totalReadings"`
	AverageCrowdLevel    float64 `json:"averageCrowdLevel"`
	PeakCrowdLevel       int     `json:"peakCrowdLevel"`
	P95CrowdLevel        float64 `json:"p95CrowdLevel"`
	HighRiskReadings     int     `json:"highRiskReadings"`
	CriticalRiskReadings int     `json:"criticalRiskReadings"`
}

// AlertTypeSummary counts one alert type in a window
type AlertTypeSummary struct {
	Count                  int `json:"count"`
	AverageResponseMinutes int `json:"averageResponseTime"`
}

// AnalyticsOverview is the system-wide picture for a timeframe
type AnalyticsOverview struct {
	Timeframe         string                      `json:"timeframe"`
	Vehicles          FleetSummary                `json:"vehicles"`
	Crowd             CrowdSummary                `json:"crowd"`
	Alerts            map[string]AlertTypeSummary `json:"alerts"`
	OnTimePerformance int                         `json:"onTimePerformance"`
	GeneratedAt       time.Time                   `json:"generatedAt"`
}

// RouteAnalytics is the fleet performance on one route
type RouteAnalytics struct {
	Route             string  `json:"route"`
	TotalVehicles     int     `json:"totalVehicles"`
	AverageOccupancy  float64 `json:"averageOccupancy"`
	OnTimePerformance float64 `json:"onTimePerformance"`
	DelayedCount      int     `json:"delayedCount"`
	CrowdedCount      int     `json:"crowdedCount"`
}

// HourlyCrowd summarises one hour of readings at a location
type HourlyCrowd struct {
	Hour     int     `json:"hour"`
	Average  float64 `json:"average"`
	Peak     int     `json:"peak"`
	Min      int     `json:"min"`
	Readings int     `json:"readings"`
}

// LocationCrowdTrend is the hour by hour occupancy of a location
type LocationCrowdTrend struct {
	LocationID     string        `json:"locationId"`
	LocationName   string        `json:"locationName"`
	HourlyData     []HourlyCrowd `json:"hourlyData"`
	OverallAverage float64       `json:"overallAverage"`
	OverallPeak    int           `json:"overallPeak"`
}

// HourCount is a count bucketed by hour of day
type HourCount struct {
	Hour  int `json:"hour"`
	Count int `json:"count"`
}

// DayCount is a count bucketed by day of week
type DayCount struct {
	Day   string `json:"day"`
	Count int    `json:"count"`
}

// AlertPattern describes when alerts of one type and severity occur
type AlertPattern struct {
	Type                   string      `json:"type"`
	Severity               string      `json:"severity"`
	TotalCount             int         `json:"totalCount"`
	HourlyDistribution     []HourCount `json:"hourlyDistribution"`
	WeeklyDistribution     []DayCount  `json:"weeklyDistribution"`
	AverageResponseMinutes float64     `json:"averageResponseTime"`
}

// LevelPrediction is an expected crowd level
type LevelPrediction struct {
	Level      string `json:"level"`
	Percentage int    `json:"percentage"`
}

// PeakPrediction names the expected busiest time of day
type PeakPrediction struct {
	Time        string `json:"time"`
	Description string `json:"description"`
}

// CrowdOutlook is the rule-based crowd prediction
type CrowdOutlook struct {
	Next1Hour  LevelPrediction `json:"next1Hour"`
	Next3Hours LevelPrediction `json:"next3Hours"`
	PeakTime   PeakPrediction  `json:"peakTime"`
	Confidence float64         `json:"confidence"`
}

// DelayOutlook is the expected delay risk
type DelayOutlook struct {
	Probability    float64  `json:"probability"`
	ExpectedRoutes []string `json:"expectedRoutes"`
}

// AlertOutlook is the expected alert load for the coming hour
type AlertOutlook struct {
	ExpectedCount int      `json:"expectedCount"`
	LikelyTypes   []string `json:"likelyTypes"`
	RiskLevel     string   `json:"riskLevel"`
}

// SystemPredictions bundles the network-wide outlooks
type SystemPredictions struct {
	CrowdLevels CrowdOutlook `json:"crowdLevels"`
	Delays      DelayOutlook `json:"delays"`
	Alerts      AlertOutlook `json:"alerts"`
	GeneratedAt time.Time    `json:"generatedAt"`
}
