package service

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/safecommute/safecommute-backend-go/internal/logger"
	"github.com/safecommute/safecommute-backend-go/internal/models"
	"github.com/safecommute/safecommute-backend-go/internal/stats"
)

// Analytics windows
const (
	DefaultTimeframe       = "24h"
	DefaultTrendHours      = 24
	maxTrendHours          = 30 * 24
	DefaultPatternDays     = 7
	maxPatternDays         = 90
	predictionLookbackDays = 7
	predictionConfidence   = 0.75
)

var timeframes = map[string]time.Duration{
	"1h":  time.Hour,
	"24h": 24 * time.Hour,
	"7d":  7 * 24 * time.Hour,
	"30d": 30 * 24 * time.Hour,
}

// AnalyticsCrowd supplies readings for a window
type AnalyticsCrowd interface {
	Since(ctx context.Context, from, to time.Time) ([]models.CrowdReading, error)
}

// AnalyticsAlerts supplies alerts raised in a window
type AnalyticsAlerts interface {
	Between(ctx context.Context, from, to time.Time) ([]models.Alert, error)
}

// AnalyticsService computes network-wide reports from stored data
type AnalyticsService struct {
	fleet  RouteFleet
	crowd  AnalyticsCrowd
	alerts AnalyticsAlerts
	log    logger.Logger
	clock  func() time.Time
}

// NewAnalyticsService creates a new analytics service
func NewAnalyticsService(fleet RouteFleet, crowd AnalyticsCrowd, alerts AnalyticsAlerts, log logger.Logger, clock func() time.Time) *AnalyticsService {
	if clock == nil {
		clock = time.Now
	}
	return &AnalyticsService{fleet: fleet, crowd: crowd, alerts: alerts, log: log.With("component", "analytics"), clock: clock}
}

// Overview summarises the fleet now, plus readings and alerts in the timeframe
func (s *AnalyticsService) Overview(ctx context.Context, timeframe string) (*models.AnalyticsOverview, error) {
	if timeframe == "" {
		timeframe = DefaultTimeframe
	}
	window, ok := timeframes[timeframe]
	if !ok {
		return nil, fmt.Errorf("%w: timeframe must be one of 1h, 24h, 7d, 30d", models.ErrInvalidInput)
	}

	now := s.clock()
	from, to := upTo(now, window)

	vehicles, err := s.fleet.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load vehicles: %w", err)
	}
	readings, err := s.crowd.Since(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to load crowd readings: %w", err)
	}
	alerts, err := s.alerts.Between(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to load alerts: %w", err)
	}

	overview := &models.AnalyticsOverview{
		Timeframe:   timeframe,
		Vehicles:    summarizeFleet(vehicles),
		Crowd:       summarizeCrowd(readings),
		Alerts:      make(map[string]models.AlertTypeSummary),
		GeneratedAt: now,
	}
	if overview.Vehicles.TotalVehicles > 0 {
		overview.OnTimePerformance = int(math.Round(
			float64(overview.Vehicles.OnTimeVehicles) / float64(overview.Vehicles.TotalVehicles) * 100))
	}

	byType := make(map[string][]models.Alert)
	for _, a := range alerts {
		byType[a.Type] = append(byType[a.Type], a)
	}
	for t, group := range byType {
		overview.Alerts[t] = models.AlertTypeSummary{
			Count:                  len(group),
			AverageResponseMinutes: int(math.Round(responseMinutes(group))),
		}
	}
	return overview, nil
}

// upTo is the window of length d ending at now, with now included. Stored
// timestamps have millisecond precision.
func upTo(now time.Time, d time.Duration) (time.Time, time.Time) {
	return now.Add(-d), now.Add(time.Millisecond)
}

func summarizeFleet(vehicles []models.Vehicle) models.FleetSummary {
	sum := models.FleetSummary{TotalVehicles: len(vehicles)}
	percentages := make([]float64, 0, len(vehicles))
	for _, v := range vehicles {
		percentages = append(percentages, float64(v.Percentage))
		if v.Status != models.VehicleMaintenance {
			sum.ActiveVehicles++
		}
		switch v.Status {
		case models.VehicleOnTime:
			sum.OnTimeVehicles++
		case models.VehicleDelayed:
			sum.DelayedVehicles++
		case models.VehicleCrowded:
			sum.CrowdedVehicles++
		}
	}
	sum.AverageOccupancy = round1(stats.Mean(percentages))
	return sum
}

func summarizeCrowd(readings []models.CrowdReading) models.CrowdSummary {
	sum := models.CrowdSummary{TotalReadings: len(readings)}
	if len(readings) == 0 {
		return sum
	}
	percentages := make([]float64, 0, len(readings))
	for _, r := range readings {
		percentages = append(percentages, float64(r.Percentage))
		if r.Percentage > sum.PeakCrowdLevel {
			sum.PeakCrowdLevel = r.Percentage
		}
		switch r.Risk.Level {
		case models.RiskHigh:
			sum.HighRiskReadings++
		case models.RiskCritical:
			sum.CriticalRiskReadings++
		}
	}
	sum.AverageCrowdLevel = round1(stats.Mean(percentages))
	sum.P95CrowdLevel = round1(stats.Percentile(percentages, 95))
	return sum
}

// responseMinutes is the mean time to resolution of the resolved alerts, 0 when none are
func responseMinutes(alerts []models.Alert) float64 {
	var minutes []float64
	for _, a := range alerts {
		if a.Status == models.AlertStatusResolved && a.Resolution.ResolvedAt != nil {
			minutes = append(minutes, a.Resolution.ResolvedAt.Sub(a.CreatedAt).Minutes())
		}
	}
	return stats.Mean(minutes)
}

// Routes reports fleet performance per vehicle route, best on-time first
func (s *AnalyticsService) Routes(ctx context.Context) ([]models.RouteAnalytics, error) {
	vehicles, err := s.fleet.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load vehicles: %w", err)
	}

	byRoute := make(map[string][]models.Vehicle)
	for _, v := range vehicles {
		byRoute[v.Route] = append(byRoute[v.Route], v)
	}

	out := make([]models.RouteAnalytics, 0, len(byRoute))
	for route, group := range byRoute {
		ra := models.RouteAnalytics{Route: route, TotalVehicles: len(group)}
		percentages := make([]float64, 0, len(group))
		onTime := 0
		for _, v := range group {
			percentages = append(percentages, float64(v.Percentage))
			switch v.Status {
			case models.VehicleOnTime:
				onTime++
			case models.VehicleDelayed:
				ra.DelayedCount++
			case models.VehicleCrowded:
				ra.CrowdedCount++
			}
		}
		ra.AverageOccupancy = round1(stats.Mean(percentages))
		ra.OnTimePerformance = round1(float64(onTime) / float64(len(group)) * 100)
		out = append(out, ra)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].OnTimePerformance != out[j].OnTimePerformance {
			return out[i].OnTimePerformance > out[j].OnTimePerformance
		}
		return out[i].Route < out[j].Route
	})
	return out, nil
}

// CrowdTrends buckets the readings of the last hours by location and hour of
// day, in the clock's zone. An empty locationID covers every location.
func (s *AnalyticsService) CrowdTrends(ctx context.Context, locationID string, hours int) ([]models.LocationCrowdTrend, error) {
	if hours == 0 {
		hours = DefaultTrendHours
	}
	if hours < 0 || hours > maxTrendHours {
		return nil, fmt.Errorf("%w: hours must be within 1..%d", models.ErrInvalidInput, maxTrendHours)
	}

	now := s.clock()
	from, to := upTo(now, time.Duration(hours)*time.Hour)
	readings, err := s.crowd.Since(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to load crowd readings: %w", err)
	}

	type bucket struct {
		name  string
		hours map[int][]int
	}
	locations := make(map[string]*bucket)
	for _, r := range readings {
		if locationID != "" && r.LocationID != locationID {
			continue
		}
		b, ok := locations[r.LocationID]
		if !ok {
			b = &bucket{name: r.LocationName, hours: make(map[int][]int)}
			locations[r.LocationID] = b
		}
		h := r.CreatedAt.In(now.Location()).Hour()
		b.hours[h] = append(b.hours[h], r.Percentage)
	}

	out := make([]models.LocationCrowdTrend, 0, len(locations))
	for id, b := range locations {
		trend := models.LocationCrowdTrend{LocationID: id, LocationName: b.name}
		var averages []float64
		for h, values := range b.hours {
			hc := models.HourlyCrowd{Hour: h, Peak: values[0], Min: values[0], Readings: len(values)}
			fv := make([]float64, 0, len(values))
			for _, v := range values {
				fv = append(fv, float64(v))
				hc.Peak = max(hc.Peak, v)
				hc.Min = min(hc.Min, v)
			}
			avg := stats.Mean(fv)
			hc.Average = round1(avg)
			averages = append(averages, avg)
			trend.OverallPeak = max(trend.OverallPeak, hc.Peak)
			trend.HourlyData = append(trend.HourlyData, hc)
		}
		sort.Slice(trend.HourlyData, func(i, j int) bool { return trend.HourlyData[i].Hour < trend.HourlyData[j].Hour })
		trend.OverallAverage = round1(stats.Mean(averages))
		out = append(out, trend)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].LocationName != out[j].LocationName {
			return out[i].LocationName < out[j].LocationName
		}
		return out[i].LocationID < out[j].LocationID
	})
	return out, nil
}

// AlertPatterns groups the alerts of the last days by type and severity with
// their hour and weekday distribution, most frequent first
func (s *AnalyticsService) AlertPatterns(ctx context.Context, days int) ([]models.AlertPattern, error) {
	if days == 0 {
		days = DefaultPatternDays
	}
	if days < 0 || days > maxPatternDays {
		return nil, fmt.Errorf("%w: days must be within 1..%d", models.ErrInvalidInput, maxPatternDays)
	}

	now := s.clock()
	from, to := upTo(now, time.Duration(days)*24*time.Hour)
	alerts, err := s.alerts.Between(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to load alerts: %w", err)
	}

	type key struct{ typ, severity string }
	groups := make(map[key][]models.Alert)
	for _, a := range alerts {
		k := key{a.Type, a.Severity}
		groups[k] = append(groups[k], a)
	}

	out := make([]models.AlertPattern, 0, len(groups))
	for k, group := range groups {
		byHour := make(map[int]int)
		byDay := make(map[time.Weekday]int)
		for _, a := range group {
			at := a.CreatedAt.In(now.Location())
			byHour[at.Hour()]++
			byDay[at.Weekday()]++
		}

		p := models.AlertPattern{
			Type:                   k.typ,
			Severity:               k.severity,
			TotalCount:             len(group),
			HourlyDistribution:     make([]models.HourCount, 0, len(byHour)),
			WeeklyDistribution:     make([]models.DayCount, 0, len(byDay)),
			AverageResponseMinutes: round1(responseMinutes(group)),
		}
		for h := 0; h < 24; h++ {
			if n := byHour[h]; n > 0 {
				p.HourlyDistribution = append(p.HourlyDistribution, models.HourCount{Hour: h, Count: n})
			}
		}
		for d := time.Sunday; d <= time.Saturday; d++ {
			if n := byDay[d]; n > 0 {
				p.WeeklyDistribution = append(p.WeeklyDistribution, models.DayCount{Day: d.String(), Count: n})
			}
		}
		out = append(out, p)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalCount != out[j].TotalCount {
			return out[i].TotalCount > out[j].TotalCount
		}
		if out[i].Type != out[j].Type {
			return out[i].Type < out[j].Type
		}
		return out[i].Severity < out[j].Severity
	})
	return out, nil
}

// Predictions gives the rule-based outlook for the coming hours. Crowd levels
// and delay odds follow the time of day in the clock's zone; expected alerts
// and delayed routes come from stored data.
func (s *AnalyticsService) Predictions(ctx context.Context) (*models.SystemPredictions, error) {
	now := s.clock()
	hour := now.Hour()

	vehicles, err := s.fleet.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load vehicles: %w", err)
	}
	from, to := upTo(now, predictionLookbackDays*24*time.Hour)
	alerts, err := s.alerts.Between(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to load alerts: %w", err)
	}

	out := &models.SystemPredictions{
		CrowdLevels: models.CrowdOutlook{
			Next1Hour:  CrowdLevelAt((hour + 1) % 24),
			Next3Hours: CrowdLevelAt((hour + 3) % 24),
			PeakTime:   PeakTimeOn(now.Weekday()),
			Confidence: predictionConfidence,
		},
		Delays: models.DelayOutlook{
			Probability:    DelayProbability(hour, now.Weekday()),
			ExpectedRoutes: []string{},
		},
		GeneratedAt: now,
	}

	seen := make(map[string]bool)
	for _, v := range vehicles {
		if (v.Status == models.VehicleDelayed || v.Status == models.VehicleCrowded) && !seen[v.Route] {
			seen[v.Route] = true
			out.Delays.ExpectedRoutes = append(out.Delays.ExpectedRoutes, v.Route)
		}
	}
	sort.Strings(out.Delays.ExpectedRoutes)

	// mean alerts per day raised in the coming hour of the day
	next := (hour + 1) % 24
	inHour := 0
	typeCounts := make(map[string]int)
	for _, a := range alerts {
		typeCounts[a.Type]++
		if a.CreatedAt.In(now.Location()).Hour() == next {
			inHour++
		}
	}
	expected := int(math.Round(float64(inHour) / predictionLookbackDays))
	out.Alerts = models.AlertOutlook{
		ExpectedCount: expected,
		LikelyTypes:   topKeys(typeCounts, 2),
		RiskLevel:     alertRisk(expected),
	}
	return out, nil
}

func isRushHour(hour int) bool {
	return (hour >= 7 && hour <= 9) || (hour >= 17 && hour <= 19)
}

// CrowdLevelAt is the typical network load at an hour of day
func CrowdLevelAt(hour int) models.LevelPrediction {
	switch {
	case isRushHour(hour):
		return models.LevelPrediction{Level: models.CrowdHigh, Percentage: 85}
	case hour >= 10 && hour <= 16:
		return models.LevelPrediction{Level: models.CrowdMedium, Percentage: 60}
	default:
		return models.LevelPrediction{Level: models.CrowdLow, Percentage: 30}
	}
}

// PeakTimeOn is the usual busiest time on a day of the week
func PeakTimeOn(day time.Weekday) models.PeakPrediction {
	if day == time.Saturday || day == time.Sunday {
		return models.PeakPrediction{Time: "14:00", Description: "Weekend afternoon peak"}
	}
	return models.PeakPrediction{Time: "18:00", Description: "Weekday evening rush hour"}
}

// DelayProbability is 0.15, 0.35 in rush hour, plus 0.1 on weekdays, capped at 0.8
func DelayProbability(hour int, day time.Weekday) float64 {
	p := 0.15
	if isRushHour(hour) {
		p = 0.35
	}
	if day >= time.Monday && day <= time.Friday {
		p += 0.1
	}
	return math.Round(math.Min(0.8, p)*100) / 100
}

func alertRisk(expected int) string {
	switch {
	case expected >= 5:
		return models.PriorityHigh
	case expected >= 2:
		return models.PriorityMedium
	default:
		return models.PriorityLow
	}
}

// topKeys returns up to n keys with the highest counts, ties by name
func topKeys(counts map[string]int, n int) []string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return keys[i] < keys[j]
	})
	if len(keys) > n {
		keys = keys[:n]
	}
	return keys
}
