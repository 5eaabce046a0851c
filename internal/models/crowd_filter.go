package models

import "time"

// CrowdFilter represents filter parameters for listing crowd readings
type CrowdFilter struct {
	LocationType string `form:"locationType"`
	RiskLevel    string `form:"riskLevel"`
	Order        string `form:"order"` // asc, desc
	Page         int    `form:"page"`
	Limit        int    `form:"limit"`
}

// AlertFilter represents filter parameters for listing alerts
type AlertFilter struct {
	Type     string `form:"type"`
	Severity string `form:"severity"`
	Status   string `form:"status"`
	Page     int    `form:"page"`
	Limit    int    `form:"limit"`
}

// VehicleFilter represents filter parameters for listing vehicles
type VehicleFilter struct {
	Route  string `form:"route"`
	Status string `form:"status"`
	Type   string `form:"type"`
	Page   int    `form:"page"`
	Limit  int    `form:"limit"`
}

// NearbyQuery is a radius search around a point
type NearbyQuery struct {
	Lat    float64 `form:"lat" binding:"min=-90,max=90"`
	Lng    float64 `form:"lng" binding:"min=-180,max=180"`
	Radius float64 `form:"radius" binding:"min=0,max=50000"` // meters
}

// Normalize clamps paging values to the API limits
func Normalize(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	return page, limit
}

// Page is a paginated result set
type Page[T any] struct {
	Data  []T `json:"data"`
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
	Pages int `json:"pages"`
}

// NewPage computes the page count for a result set
func NewPage[T any](data []T, page, limit, total int) Page[T] {
	pages := 0
	if limit > 0 {
		pages = (total + limit - 1) / limit
	}
	if data == nil {
		data = []T{}
	}
	return Page[T]{Data: data, Page: page, Limit: limit, Total: total, Pages: pages}
}

// DailyStats is the per-day analytics report
type DailyStats struct {
	Date     string         `json:"date"`
	Vehicles VehicleStats   `json:"vehicles"`
	Crowd    DailyCrowd     `json:"crowd"`
	Alerts   map[string]int `json:"alerts"`
	Built    time.Time      `json:"generatedAt"`
}

// DailyCrowd summarises one day of crowd readings
type DailyCrowd struct {
	TotalReadings  int     `json:"totalReadings"`
	AverageCrowd   float64 `json:"averageCrowd"`
	PeakCrowd      int     `json:"peakCrowd"`
	CriticalEvents int     `json:"criticalEvents"`
}
