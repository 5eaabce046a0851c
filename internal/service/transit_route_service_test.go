package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/safecommute/safecommute-backend-go/internal/logger"
	"github.com/safecommute/safecommute-backend-go/internal/models"
	"github.com/safecommute/safecommute-backend-go/internal/repository"
)

var (
	centralStation = models.Coordinates{-74.0060, 40.7128}
	downtownHub    = models.Coordinates{-73.9851, 40.7589}
	airport        = models.Coordinates{-73.7781, 40.6413}
)

type stubFleet []models.Vehicle

func (f stubFleet) All(context.Context) ([]models.Vehicle, error) { return f, nil }

func route42() models.TransitRouteUpsert {
	return models.TransitRouteUpsert{
		RouteID: "route-42",
		Name:    "Route 42",
		Type:    "bus",
		Stops: []models.Stop{
			{StopID: "s2", Name: "Downtown Hub", Coordinates: downtownHub, Order: 2, EstimatedMinutes: 12},
			{StopID: "s1", Name: "Central Station", Coordinates: centralStation, Order: 1, Facilities: []string{models.FacilityWheelchair}},
		},
		Schedule: models.Schedule{
			Weekday: models.ServicePattern{FirstDeparture: "05:30", LastDeparture: "23:30", Frequency: 10, PeakFrequency: 5},
			Weekend: models.ServicePattern{FirstDeparture: "07:00", LastDeparture: "23:00", Frequency: 20},
		},
		Performance: &models.RoutePerformance{OnTimePerformance: 88, AverageDelay: 2.4, Reliability: 93},
		Capacity:    models.RouteCapacity{VehicleCapacity: 50, AverageOccupancy: 40},
	}
}

func newNetwork(t *testing.T, fleet stubFleet, clock func() time.Time, routes ...models.TransitRouteUpsert) *TransitRouteService {
	t.Helper()
	svc := NewTransitRouteService(repository.NewTransitRouteRepository(setupDB(t)), fleet, logger.Nop(), clock)
	for _, r := range routes {
		if _, err := svc.Upsert(context.Background(), r); err != nil {
			t.Fatalf("Upsert(%s) error = %v", r.RouteID, err)
		}
	}
	return svc
}

func TestTransitRouteUpsert(t *testing.T) {
	svc := newNetwork(t, nil, fixedClock)
	ctx := context.Background()

	got, err := svc.Upsert(ctx, route42())
	if err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if got.Stops[0].StopID != "s1" || got.Stops[1].StopID != "s2" {
		t.Errorf("stops not in travel order: %+v", got.Stops)
	}
	if got.Color != models.DefaultRouteColor || got.Status != models.RouteStatusActive {
		t.Errorf("defaults = %s / %s", got.Color, got.Status)
	}
	if got.Performance.AverageDelay != 2.4 {
		t.Errorf("Performance = %+v", got.Performance)
	}

	plain := route42()
	plain.RouteID = "route-7"
	plain.Performance = nil
	got, err = svc.Upsert(ctx, plain)
	if err != nil {
		t.Fatal(err)
	}
	if got.Performance != models.DefaultRoutePerformance {
		t.Errorf("Performance = %+v, want defaults", got.Performance)
	}

	tests := []struct {
		name   string
		mutate func(*models.TransitRouteUpsert)
	}{
		{"duplicate stop", func(r *models.TransitRouteUpsert) { r.Stops[1].StopID = "s2" }},
		{"blank stop id", func(r *models.TransitRouteUpsert) { r.Stops[0].StopID = " " }},
		{"stop off the map", func(r *models.TransitRouteUpsert) { r.Stops[0].Coordinates = models.Coordinates{200, 10} }},
		{"bad departure time", func(r *models.TransitRouteUpsert) { r.Schedule.Weekday.FirstDeparture = "25:00" }},
		{"negative frequency", func(r *models.TransitRouteUpsert) { r.Schedule.Weekend.Frequency = -5 }},
		{"blank name", func(r *models.TransitRouteUpsert) { r.Name = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := route42()
			tt.mutate(&in)
			if _, err := svc.Upsert(ctx, in); !errors.Is(err, models.ErrInvalidInput) {
				t.Errorf("Upsert() error = %v, want ErrInvalidInput", err)
			}
		})
	}
}

func TestTransitRouteGetMetrics(t *testing.T) {
	fleet := stubFleet{
		{VehicleID: "BUS-001", Route: "route 42", Percentage: 40, Status: models.VehicleOnTime, Coordinates: centralStation},
		{VehicleID: "BUS-002", Route: "route-42", Percentage: 80, Status: models.VehicleDelayed, Coordinates: downtownHub},
		{VehicleID: "BUS-003", Route: "route-42", Status: models.VehicleMaintenance, Coordinates: centralStation},
		{VehicleID: "TRAIN-A1", Route: "Blue Line", Percentage: 90, Status: models.VehicleCrowded, Coordinates: downtownHub},
	}
	empty := route42()
	empty.RouteID, empty.Name = "route-7", "Route 7"
	svc := newNetwork(t, fleet, fixedClock, route42(), empty)
	ctx := context.Background()

	got, err := svc.Get(ctx, "route-42")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	want := models.RouteMetrics{
		ActiveVehicles:    2,
		AverageOccupancy:  60,
		OnTimeVehicles:    1,
		DelayedVehicles:   1,
		OnTimePerformance: 50,
	}
	if got.RealTimeMetrics != want {
		t.Errorf("RealTimeMetrics = %+v, want %+v", got.RealTimeMetrics, want)
	}
	if len(got.Vehicles) != 2 {
		t.Errorf("Vehicles = %+v", got.Vehicles)
	}

	got, err = svc.Get(ctx, "route-7")
	if err != nil {
		t.Fatal(err)
	}
	if got.RealTimeMetrics.ActiveVehicles != 0 || got.RealTimeMetrics.OnTimePerformance != 88 {
		t.Errorf("idle route metrics = %+v, want stored on-time 88", got.RealTimeMetrics)
	}

	if _, err := svc.Get(ctx, "missing"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("Get(missing) error = %v, want ErrNotFound", err)
	}
}

func TestTransitRouteSchedule(t *testing.T) {
	saturday := time.Date(2025, 3, 15, 10, 0, 0, 0, time.UTC)
	tests := []struct {
		name        string
		clock       time.Time
		wantGap     time.Duration
		firstOffset time.Duration
	}{
		{"weekday pattern", now, 10 * time.Minute, 12 * time.Minute},
		{"weekend pattern", saturday, 20 * time.Minute, 12 * time.Minute},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newNetwork(t, nil, func() time.Time { return tt.clock }, route42())
			got, err := svc.Schedule(context.Background(), "route-42", "s2")
			if err != nil {
				t.Fatalf("Schedule() error = %v", err)
			}
			if len(got.NextDepartures) != upcomingDepartures {
				t.Fatalf("NextDepartures = %d, want %d", len(got.NextDepartures), upcomingDepartures)
			}
			first, second := got.NextDepartures[0], got.NextDepartures[1]
			if !first.ScheduledTime.Equal(tt.clock.Add(tt.firstOffset)) {
				t.Errorf("first departure = %v, want %v", first.ScheduledTime, tt.clock.Add(tt.firstOffset))
			}
			if gap := second.ScheduledTime.Sub(first.ScheduledTime); gap != tt.wantGap {
				t.Errorf("headway = %v, want %v", gap, tt.wantGap)
			}
			if first.EstimatedTime.Sub(first.ScheduledTime) != 2*time.Minute || first.Status != departureDelayed {
				t.Errorf("first departure = %+v, want 2 min late and delayed", first)
			}
		})
	}

	punctual := route42()
	punctual.Performance = &models.RoutePerformance{OnTimePerformance: 99, Reliability: 99}
	idle := route42()
	idle.RouteID = "route-0"
	idle.Schedule = models.Schedule{}
	svc := newNetwork(t, nil, fixedClock, punctual, idle)
	ctx := context.Background()

	got, err := svc.Schedule(ctx, "route-42", "s1")
	if err != nil {
		t.Fatal(err)
	}
	if d := got.NextDepartures[0]; d.Status != departureOnTime || !d.EstimatedTime.Equal(d.ScheduledTime) || !d.ScheduledTime.Equal(now) {
		t.Errorf("punctual departure = %+v", d)
	}

	got, err = svc.Schedule(ctx, "route-42", "")
	if err != nil || len(got.NextDepartures) != 0 || got.Schedule.Weekday.Frequency != 10 {
		t.Errorf("Schedule(no stop) = %+v, %v", got, err)
	}
	if _, err := svc.Schedule(ctx, "route-42", "s9"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("Schedule(missing stop) error = %v, want ErrNotFound", err)
	}
	if _, err := svc.Schedule(ctx, "route-0", "s1"); !errors.Is(err, models.ErrInvalidInput) {
		t.Errorf("Schedule(no frequency) error = %v, want ErrInvalidInput", err)
	}
}

func TestTransitRouteStops(t *testing.T) {
	fleet := stubFleet{
		{VehicleID: "BUS-001", Route: "route-42", Coordinates: models.Coordinates{-73.9852, 40.7589}, Speed: 30, Status: models.VehicleOnTime},
		{VehicleID: "BUS-002", Route: "Route 42", Coordinates: centralStation, Status: models.VehicleDelayed},
	}
	svc := newNetwork(t, fleet, fixedClock, route42())

	got, err := svc.Stops(context.Background(), "route-42")
	if err != nil {
		t.Fatalf("Stops() error = %v", err)
	}
	if got.TotalStops != 2 || got.Stops[0].StopID != "s1" {
		t.Fatalf("Stops() = %+v", got)
	}

	atCentral := got.Stops[0].ApproachingVehicles
	if len(atCentral) != 1 || atCentral[0].VehicleID != "BUS-002" || atCentral[0].DistanceMeters != 0 || !atCentral[0].EstimatedArrival.Equal(now) {
		t.Errorf("Central Station vehicles = %+v", atCentral)
	}
	atHub := got.Stops[1].ApproachingVehicles
	if len(atHub) != 1 || atHub[0].VehicleID != "BUS-001" {
		t.Fatalf("Downtown Hub vehicles = %+v", atHub)
	}
	if atHub[0].DistanceMeters < 5 || atHub[0].DistanceMeters > 15 {
		t.Errorf("DistanceMeters = %d, want about 8", atHub[0].DistanceMeters)
	}
	if eta := atHub[0].EstimatedArrival.Sub(now); eta <= 0 || eta > 5*time.Second {
		t.Errorf("ETA = %v, want a second or two at 30 km/h", eta)
	}
}

func TestTransitRoutePerformance(t *testing.T) {
	fleet := stubFleet{
		{VehicleID: "BUS-001", Route: "route-42", Percentage: 40, Status: models.VehicleOnTime, LastUpdated: now.Add(-time.Hour)},
		{VehicleID: "BUS-002", Route: "route-42", Percentage: 80, Status: models.VehicleDelayed, LastUpdated: now.Add(-48 * time.Hour)},
		{VehicleID: "BUS-003", Route: "route-42", Percentage: 0, Status: models.VehicleMaintenance, LastUpdated: now.Add(-72 * time.Hour)},
		{VehicleID: "BUS-004", Route: "route-42", Percentage: 10, Status: models.VehicleOnTime, LastUpdated: now.Add(-10 * 24 * time.Hour)},
	}
	idle := route42()
	idle.RouteID, idle.Name = "route-7", "Route 7"
	svc := newNetwork(t, fleet, fixedClock, route42(), idle)
	ctx := context.Background()

	tests := []struct {
		name      string
		routeID   string
		days      int
		observed  int
		onTime    float64
		occupancy float64
		quality   models.ServiceQuality
	}{
		{"default window", "route-42", 0, 3, 33.3, 40, models.ServiceQuality{Punctuality: 33, Comfort: 60, Frequency: 90, Accessibility: 50}},
		{"last day", "route-42", 1, 1, 100, 40, models.ServiceQuality{Punctuality: 100, Comfort: 60, Frequency: 90, Accessibility: 50}},
		{"stored record", "route-7", 7, 0, 88, 40, models.ServiceQuality{Punctuality: 88, Comfort: 60, Frequency: 90, Accessibility: 50}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.Performance(ctx, tt.routeID, tt.days)
			if err != nil {
				t.Fatalf("Performance() error = %v", err)
			}
			if got.ObservedVehicles != tt.observed || got.OnTimePerformance != tt.onTime || got.AverageOccupancy != tt.occupancy {
				t.Errorf("Performance() = %+v", got)
			}
			if got.ServiceQuality != tt.quality {
				t.Errorf("ServiceQuality = %+v, want %+v", got.ServiceQuality, tt.quality)
			}
		})
	}

	for _, days := range []int{-1, maxPerformanceDays + 1} {
		if _, err := svc.Performance(ctx, "route-42", days); !errors.Is(err, models.ErrInvalidInput) {
			t.Errorf("Performance(days=%d) error = %v, want ErrInvalidInput", days, err)
		}
	}
}

func TestFrequencyAndAccessibilityScores(t *testing.T) {
	tests := []struct {
		name     string
		schedule models.Schedule
		want     int
	}{
		{"peak headway", models.Schedule{Weekday: models.ServicePattern{Frequency: 10, PeakFrequency: 5}}, 90},
		{"off-peak only", models.Schedule{Weekday: models.ServicePattern{Frequency: 15}}, 70},
		{"sparse", models.Schedule{Weekday: models.ServicePattern{Frequency: 60}}, 0},
		{"no service", models.Schedule{}, 0},
	}
	for _, tt := range tests {
		if got := FrequencyScore(tt.schedule); got != tt.want {
			t.Errorf("FrequencyScore(%s) = %d, want %d", tt.name, got, tt.want)
		}
	}

	stops := route42().Stops
	if got := AccessibilityScore(stops); got != 50 {
		t.Errorf("AccessibilityScore() = %d, want 50", got)
	}
	if got := AccessibilityScore(nil); got != 0 {
		t.Errorf("AccessibilityScore(nil) = %d, want 0", got)
	}
}

func TestTransitRouteNearbyActive(t *testing.T) {
	suspended := route42()
	suspended.RouteID, suspended.Name, suspended.Status = "route-9", "Route 9", models.RouteStatusSuspended
	svc := newNetwork(t, nil, fixedClock, route42(), suspended)
	ctx := context.Background()

	got, err := svc.NearbyActive(ctx, NearbyRouteRadius, airport, models.Coordinates{-74.0061, 40.7128})
	if err != nil {
		t.Fatalf("NearbyActive() error = %v", err)
	}
	if len(got) != 1 || got[0].RouteID != "route-42" || got[0].Stop != "Central Station" || got[0].DistanceMeters > 10 {
		t.Errorf("NearbyActive() = %+v, want route-42 via Central Station", got)
	}

	got, err = svc.NearbyActive(ctx, NearbyRouteRadius, airport)
	if err != nil || len(got) != 0 {
		t.Errorf("NearbyActive(airport) = %+v, %v, want none", got, err)
	}
}
