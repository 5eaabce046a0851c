package service

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/safecommute/safecommute-backend-go/internal/logger"
	"github.com/safecommute/safecommute-backend-go/internal/models"
	"github.com/safecommute/safecommute-backend-go/internal/repository"
)

type analyticsFixture struct {
	crowd  *repository.CrowdRepository
	alerts *repository.AlertRepository
}

func newAnalyticsFixture(t *testing.T) analyticsFixture {
	t.Helper()
	db := setupDB(t)
	return analyticsFixture{crowd: repository.NewCrowdRepository(db), alerts: repository.NewAlertRepository(db)}
}

func (f analyticsFixture) service(fleet stubFleet, clock func() time.Time) *AnalyticsService {
	return NewAnalyticsService(fleet, f.crowd, f.alerts, logger.Nop(), clock)
}

func (f analyticsFixture) reading(t *testing.T, id, location, name string, pct int, level models.RiskLevel, at time.Time) {
	t.Helper()
	err := f.crowd.Create(context.Background(), &models.CrowdReading{
		ID:           id,
		LocationID:   location,
		LocationName: name,
		LocationType: models.LocationPlatform,
		Coordinates:  centralStation,
		Occupancy:    models.OccupancyReading{Current: pct, Capacity: 100},
		Percentage:   pct,
		Risk:         models.RiskAssessment{Level: level, Factors: []string{}, Recommendations: []string{}},
		CreatedAt:    at,
	})
	if err != nil {
		t.Fatalf("Create(%s) error = %v", id, err)
	}
}

func (f analyticsFixture) alert(t *testing.T, id, typ, severity string, at time.Time, resolvedAfter time.Duration) {
	t.Helper()
	a := &models.Alert{
		ID:        id,
		Type:      typ,
		Severity:  severity,
		Title:     typ + " " + id,
		Status:    models.AlertStatusActive,
		CreatedAt: at,
		UpdatedAt: at,
	}
	if resolvedAfter > 0 {
		resolved := at.Add(resolvedAfter)
		a.Status = models.AlertStatusResolved
		a.Resolution.ResolvedAt = &resolved
	}
	if err := f.alerts.Create(context.Background(), a); err != nil {
		t.Fatalf("Create(%s) error = %v", id, err)
	}
}

func TestAnalyticsOverview(t *testing.T) {
	f := newAnalyticsFixture(t)
	f.reading(t, "r1", "central", "Central Station", 50, models.RiskMedium, now.Add(-30*time.Minute))
	f.reading(t, "r2", "central", "Central Station", 90, models.RiskHigh, now.Add(-2*time.Hour))
	f.reading(t, "r3", "hub", "Downtown Hub", 96, models.RiskCritical, now)
	f.reading(t, "r4", "hub", "Downtown Hub", 10, models.RiskLow, now.Add(-48*time.Hour))
	f.alert(t, "a1", models.AlertWarning, models.SeverityHigh, now.Add(-3*time.Hour), 30*time.Minute)
	f.alert(t, "a2", models.AlertWarning, models.SeverityMedium, now.Add(-90*time.Minute), 0)
	f.alert(t, "a3", models.AlertEmergency, models.SeverityCritical, now, 0)

	fleet := stubFleet{
		{VehicleID: "BUS-001", Route: "Route 42", Percentage: 40, Status: models.VehicleOnTime},
		{VehicleID: "BUS-002", Route: "Route 42", Percentage: 80, Status: models.VehicleDelayed},
		{VehicleID: "BUS-003", Route: "Route 42", Percentage: 0, Status: models.VehicleMaintenance},
	}
	svc := f.service(fleet, fixedClock)
	ctx := context.Background()

	got, err := svc.Overview(ctx, "")
	if err != nil {
		t.Fatalf("Overview() error = %v", err)
	}
	if got.Timeframe != DefaultTimeframe {
		t.Errorf("Timeframe = %s", got.Timeframe)
	}
	wantFleet := models.FleetSummary{TotalVehicles: 3, ActiveVehicles: 2, AverageOccupancy: 40, OnTimeVehicles: 1, DelayedVehicles: 1}
	if got.Vehicles != wantFleet {
		t.Errorf("Vehicles = %+v, want %+v", got.Vehicles, wantFleet)
	}
	if got.OnTimePerformance != 33 {
		t.Errorf("OnTimePerformance = %d, want 33", got.OnTimePerformance)
	}
	c := got.Crowd
	if c.TotalReadings != 3 || c.AverageCrowdLevel != 78.7 || c.PeakCrowdLevel != 96 || c.HighRiskReadings != 1 || c.CriticalRiskReadings != 1 {
		t.Errorf("Crowd = %+v", c)
	}
	wantAlerts := map[string]models.AlertTypeSummary{
		models.AlertWarning:   {Count: 2, AverageResponseMinutes: 30},
		models.AlertEmergency: {Count: 1},
	}
	if !reflect.DeepEqual(got.Alerts, wantAlerts) {
		t.Errorf("Alerts = %+v, want %+v", got.Alerts, wantAlerts)
	}

	got, err = svc.Overview(ctx, "1h")
	if err != nil {
		t.Fatal(err)
	}
	if got.Crowd.TotalReadings != 2 || len(got.Alerts) != 1 {
		t.Errorf("1h overview = %+v", got)
	}

	if _, err := svc.Overview(ctx, "2w"); !errors.Is(err, models.ErrInvalidInput) {
		t.Errorf("Overview(2w) error = %v, want ErrInvalidInput", err)
	}
}

func TestAnalyticsRoutes(t *testing.T) {
	fleet := stubFleet{
		{VehicleID: "BUS-001", Route: "Route 42", Percentage: 40, Status: models.VehicleOnTime},
		{VehicleID: "BUS-002", Route: "Route 42", Percentage: 80, Status: models.VehicleDelayed},
		{VehicleID: "TRAIN-A1", Route: "Blue Line", Percentage: 90, Status: models.VehicleOnTime},
		{VehicleID: "TRAIN-A2", Route: "Blue Line", Percentage: 70, Status: models.VehicleOnTime},
	}
	svc := newAnalyticsFixture(t).service(fleet, fixedClock)

	got, err := svc.Routes(context.Background())
	if err != nil {
		t.Fatalf("Routes() error = %v", err)
	}
	want := []models.RouteAnalytics{
		{Route: "Blue Line", TotalVehicles: 2, AverageOccupancy: 80, OnTimePerformance: 100},
		{Route: "Route 42", TotalVehicles: 2, AverageOccupancy: 60, OnTimePerformance: 50, DelayedCount: 1},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Routes() = %+v, want %+v", got, want)
	}
}

func TestAnalyticsCrowdTrends(t *testing.T) {
	f := newAnalyticsFixture(t)
	day := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	f.reading(t, "r1", "central", "Central Station", 50, models.RiskMedium, day.Add(8*time.Hour+10*time.Minute))
	f.reading(t, "r2", "central", "Central Station", 70, models.RiskMedium, day.Add(8*time.Hour+20*time.Minute))
	f.reading(t, "r3", "central", "Central Station", 30, models.RiskLow, day.Add(7*time.Hour+15*time.Minute))
	f.reading(t, "r4", "hub", "Downtown Hub", 90, models.RiskHigh, day.Add(8*time.Hour))
	svc := f.service(nil, fixedClock)
	ctx := context.Background()

	got, err := svc.CrowdTrends(ctx, "", 0)
	if err != nil {
		t.Fatalf("CrowdTrends() error = %v", err)
	}
	if len(got) != 2 || got[0].LocationName != "Central Station" || got[1].LocationName != "Downtown Hub" {
		t.Fatalf("CrowdTrends() = %+v", got)
	}
	wantHours := []models.HourlyCrowd{
		{Hour: 7, Average: 30, Peak: 30, Min: 30, Readings: 1},
		{Hour: 8, Average: 60, Peak: 70, Min: 50, Readings: 2},
	}
	if !reflect.DeepEqual(got[0].HourlyData, wantHours) {
		t.Errorf("HourlyData = %+v, want %+v", got[0].HourlyData, wantHours)
	}
	if got[0].OverallAverage != 45 || got[0].OverallPeak != 70 {
		t.Errorf("overall = %v / %d, want 45 / 70", got[0].OverallAverage, got[0].OverallPeak)
	}

	only, err := svc.CrowdTrends(ctx, "hub", 24)
	if err != nil || len(only) != 1 || only[0].OverallPeak != 90 {
		t.Errorf("CrowdTrends(hub) = %+v, %v", only, err)
	}

	// hours follow the clock's zone
	aest := time.FixedZone("AEST", 10*3600)
	local, err := f.service(nil, func() time.Time { return now.In(aest) }).CrowdTrends(ctx, "central", 24)
	if err != nil || len(local) != 1 {
		t.Fatalf("CrowdTrends(AEST) = %+v, %v", local, err)
	}
	if local[0].HourlyData[0].Hour != 17 || local[0].HourlyData[1].Hour != 18 {
		t.Errorf("AEST hours = %+v, want 17 and 18", local[0].HourlyData)
	}

	if _, err := svc.CrowdTrends(ctx, "", maxTrendHours+1); !errors.Is(err, models.ErrInvalidInput) {
		t.Errorf("CrowdTrends(too long) error = %v, want ErrInvalidInput", err)
	}
}

func TestAnalyticsAlertPatterns(t *testing.T) {
	f := newAnalyticsFixture(t)
	f.alert(t, "a1", models.AlertWarning, models.SeverityHigh, now.Add(-30*time.Minute), 20*time.Minute)
	f.alert(t, "a2", models.AlertWarning, models.SeverityHigh, now.Add(-24*time.Hour-20*time.Minute), 40*time.Minute)
	f.alert(t, "a3", models.AlertInfo, models.SeverityLow, now.Add(-2*time.Hour), 0)
	f.alert(t, "a4", models.AlertInfo, models.SeverityLow, now.Add(-8*24*time.Hour), 0)
	svc := f.service(nil, fixedClock)
	ctx := context.Background()

	got, err := svc.AlertPatterns(ctx, 0)
	if err != nil {
		t.Fatalf("AlertPatterns() error = %v", err)
	}
	want := []models.AlertPattern{
		{
			Type:                   models.AlertWarning,
			Severity:               models.SeverityHigh,
			TotalCount:             2,
			HourlyDistribution:     []models.HourCount{{Hour: 8, Count: 2}},
			WeeklyDistribution:     []models.DayCount{{Day: "Sunday", Count: 1}, {Day: "Monday", Count: 1}},
			AverageResponseMinutes: 30,
		},
		{
			Type:               models.AlertInfo,
			Severity:           models.SeverityLow,
			TotalCount:         1,
			HourlyDistribution: []models.HourCount{{Hour: 6, Count: 1}},
			WeeklyDistribution: []models.DayCount{{Day: "Monday", Count: 1}},
		},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("AlertPatterns() = %+v, want %+v", got, want)
	}

	if _, err := svc.AlertPatterns(ctx, maxPatternDays+1); !errors.Is(err, models.ErrInvalidInput) {
		t.Errorf("AlertPatterns(too long) error = %v, want ErrInvalidInput", err)
	}
}

func TestAnalyticsPredictions(t *testing.T) {
	f := newAnalyticsFixture(t)
	// two alerts at 09:15 on each of the last seven days
	for d := 1; d <= 7; d++ {
		at := time.Date(2025, 3, 10-d, 9, 15, 0, 0, time.UTC)
		f.alert(t, fmt.Sprintf("w%d", d), models.AlertWarning, models.SeverityMedium, at, 0)
		f.alert(t, fmt.Sprintf("m%d", d), models.AlertMaintenance, models.SeverityLow, at, 0)
	}
	f.alert(t, "i1", models.AlertInfo, models.SeverityLow, now.Add(-time.Hour), 0)

	fleet := stubFleet{
		{VehicleID: "BUS-001", Route: "Route 42", Status: models.VehicleDelayed},
		{VehicleID: "BUS-002", Route: "Route 42", Status: models.VehicleCrowded},
		{VehicleID: "TRAIN-A1", Route: "Blue Line", Status: models.VehicleCrowded},
		{VehicleID: "TRAIN-R1", Route: "Red Line", Status: models.VehicleOnTime},
	}
	got, err := f.service(fleet, fixedClock).Predictions(context.Background())
	if err != nil {
		t.Fatalf("Predictions() error = %v", err)
	}

	wantCrowd := models.CrowdOutlook{
		Next1Hour:  models.LevelPrediction{Level: models.CrowdHigh, Percentage: 85},
		Next3Hours: models.LevelPrediction{Level: models.CrowdMedium, Percentage: 60},
		PeakTime:   models.PeakPrediction{Time: "18:00", Description: "Weekday evening rush hour"},
		Confidence: predictionConfidence,
	}
	if got.CrowdLevels != wantCrowd {
		t.Errorf("CrowdLevels = %+v, want %+v", got.CrowdLevels, wantCrowd)
	}
	wantDelays := models.DelayOutlook{Probability: 0.45, ExpectedRoutes: []string{"Blue Line", "Route 42"}}
	if !reflect.DeepEqual(got.Delays, wantDelays) {
		t.Errorf("Delays = %+v, want %+v", got.Delays, wantDelays)
	}
	wantAlerts := models.AlertOutlook{
		ExpectedCount: 2,
		LikelyTypes:   []string{models.AlertMaintenance, models.AlertWarning},
		RiskLevel:     models.PriorityMedium,
	}
	if !reflect.DeepEqual(got.Alerts, wantAlerts) {
		t.Errorf("Alerts = %+v, want %+v", got.Alerts, wantAlerts)
	}
}

func TestDelayProbabilityAndCrowdLevel(t *testing.T) {
	probabilities := []struct {
		hour int
		day  time.Weekday
		want float64
	}{
		{8, time.Monday, 0.45},
		{18, time.Friday, 0.45},
		{8, time.Saturday, 0.35},
		{12, time.Wednesday, 0.25},
		{12, time.Sunday, 0.15},
	}
	for _, tt := range probabilities {
		if got := DelayProbability(tt.hour, tt.day); got != tt.want {
			t.Errorf("DelayProbability(%d, %s) = %v, want %v", tt.hour, tt.day, got, tt.want)
		}
	}

	levels := []struct {
		hour int
		want string
	}{
		{7, models.CrowdHigh}, {19, models.CrowdHigh},
		{10, models.CrowdMedium}, {16, models.CrowdMedium},
		{6, models.CrowdLow}, {20, models.CrowdLow}, {0, models.CrowdLow},
	}
	for _, tt := range levels {
		if got := CrowdLevelAt(tt.hour); got.Level != tt.want {
			t.Errorf("CrowdLevelAt(%d) = %s, want %s", tt.hour, got.Level, tt.want)
		}
	}

	if got := PeakTimeOn(time.Sunday); got.Time != "14:00" {
		t.Errorf("PeakTimeOn(Sunday) = %+v", got)
	}
}
