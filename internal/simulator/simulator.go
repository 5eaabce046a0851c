// Package simulator produces synthetic crowd and fleet activity for demo and
// development deployments, and schedules the housekeeping jobs.
package simulator

import (
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/safecommute/safecommute-backend-go/internal/models"
	"github.com/safecommute/safecommute-backend-go/internal/service"
)

// Location is a monitored platform the simulator reports on
type Location struct {
	ID          string
	Name        string
	Coordinates models.Coordinates
	Capacity    int
}

// Locations is the fixed set of simulated platforms
var Locations = []Location{
	{ID: "central-station-platform-a", Name: "Central Station - Platform A", Coordinates: models.Coordinates{-74.0060, 40.7128}, Capacity: 300},
	{ID: "downtown-hub-east-exit", Name: "Downtown Hub - East Exit", Coordinates: models.Coordinates{-73.9851, 40.7589}, Capacity: 150},
	{ID: "university-stop-main", Name: "University Stop - Main Platform", Coordinates: models.Coordinates{-73.9934, 40.7505}, Capacity: 200},
	{ID: "airport-terminal-gate-b", Name: "Airport Terminal - Gate B", Coordinates: models.Coordinates{-73.7781, 40.6413}, Capacity: 350},
}

// SeedFleet is registered at startup when the fleet is empty
var SeedFleet = []models.VehicleUpsert{
	{VehicleID: "BUS-001", Type: "bus", Route: "Route 42", Coordinates: models.Coordinates{-74.0060, 40.7128}, Occupancy: models.OccupancyReading{Current: 25, Capacity: 50}, Status: models.VehicleOnTime},
	{VehicleID: "TRAIN-A1", Type: "train", Route: "Blue Line", Coordinates: models.Coordinates{-73.9851, 40.7589}, Occupancy: models.OccupancyReading{Current: 120, Capacity: 200}, Status: models.VehicleOnTime},
}

// SeedNetwork is registered at startup when no routes exist. Stops sit on the
// simulated platforms and route names match the seed fleet.
var SeedNetwork = []models.TransitRouteUpsert{
	{
		RouteID: "route-42",
		Name:    "Route 42",
		Type:    "bus",
		Color:   "#E4572E",
		Stops: []models.Stop{
			{StopID: "central-station", Name: "Central Station", Coordinates: Locations[0].Coordinates, Order: 1, Facilities: []string{models.FacilityWheelchair}},
			{StopID: "university", Name: "University Stop", Coordinates: Locations[2].Coordinates, Order: 2, EstimatedMinutes: 9, Facilities: []string{models.FacilityWheelchair}},
			{StopID: "downtown-hub", Name: "Downtown Hub", Coordinates: Locations[1].Coordinates, Order: 3, EstimatedMinutes: 14},
		},
		Schedule: models.Schedule{
			Weekday: models.ServicePattern{FirstDeparture: "05:30", LastDeparture: "23:30", Frequency: 12, PeakFrequency: 6},
			Weekend: models.ServicePattern{FirstDeparture: "07:00", LastDeparture: "23:00", Frequency: 20},
		},
		Capacity: models.RouteCapacity{VehicleCapacity: 50, PeakHourCapacity: 500},
	},
	{
		RouteID: "blue-line",
		Name:    "Blue Line",
		Type:    "train",
		Stops: []models.Stop{
			{StopID: "downtown-hub", Name: "Downtown Hub", Coordinates: Locations[1].Coordinates, Order: 1, Facilities: []string{models.FacilityWheelchair}},
			{StopID: "central-station", Name: "Central Station", Coordinates: Locations[0].Coordinates, Order: 2, EstimatedMinutes: 8, Facilities: []string{models.FacilityWheelchair}},
			{StopID: "airport-terminal", Name: "Airport Terminal", Coordinates: Locations[3].Coordinates, Order: 3, EstimatedMinutes: 35, Facilities: []string{models.FacilityWheelchair}},
		},
		Schedule: models.Schedule{
			Weekday: models.ServicePattern{FirstDeparture: "05:00", LastDeparture: "00:30", Frequency: 8, PeakFrequency: 4},
			Weekend: models.ServicePattern{FirstDeparture: "06:00", LastDeparture: "00:30", Frequency: 12},
		},
		Capacity: models.RouteCapacity{VehicleCapacity: 200, PeakHourCapacity: 3000},
	},
}

const (
	crowdVariation = 0.3 // full width of the uniform noise band
	minLoad        = 0.1
	maxLoad        = 1.0
	positionJitter = 0.001 // degrees
	occupancyDelta = 10
	delayChance    = 0.05
)

// BaseLoad is the expected share of capacity in use at an hour of day
func BaseLoad(hour int) float64 {
	switch {
	case (hour >= 7 && hour <= 9) || (hour >= 17 && hour <= 19):
		return 0.8
	case hour >= 10 && hour <= 16:
		return 0.5
	case hour >= 20 || hour <= 6:
		return 0.2
	default:
		return 0.3
	}
}

// Simulator draws synthetic readings from a seeded source
type Simulator struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// New creates a simulator. A nil source is seeded from the clock.
func New(rng *rand.Rand) *Simulator {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Simulator{rng: rng}
}

func (s *Simulator) float() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Float64()
}

// CrowdSample produces a reading for loc at now. Derived fields are left to the ingest path.
func (s *Simulator) CrowdSample(loc Location, now time.Time) models.CrowdIngest {
	load := BaseLoad(now.Hour()) + (s.float()-0.5)*crowdVariation
	load = math.Max(minLoad, math.Min(maxLoad, load))
	current := int(math.Floor(float64(loc.Capacity) * load))

	direction := models.TrendDecreasing
	if s.float() > 0.5 {
		direction = models.TrendIncreasing
	}

	return models.CrowdIngest{
		LocationID:   loc.ID,
		LocationName: loc.Name,
		LocationType: models.LocationPlatform,
		Coordinates:  loc.Coordinates,
		Occupancy:    models.OccupancyReading{Current: current, Capacity: loc.Capacity},
		Trend: &models.Trend{
			Direction:     direction,
			RatePerMinute: math.Floor((s.float() - 0.5) * 10),
			Confidence:    0.7 + s.float()*0.3,
		},
		Predictions: &models.Predictions{
			Next15Min: int(math.Floor(float64(current) * (1 + (s.float()-0.5)*0.2))),
			Next30Min: int(math.Floor(float64(current) * (1 + (s.float()-0.5)*0.3))),
			Next60Min: int(math.Floor(float64(current) * (1 + (s.float()-0.5)*0.4))),
		},
		DataSource: "camera",
		Accuracy:   floatPtr(0.85 + s.float()*0.15),
	}
}

// VehicleStep moves a vehicle a little and changes its head count by up to five either way
func (s *Simulator) VehicleStep(v models.Vehicle) models.VehicleUpsert {
	lng := v.Coordinates.Lng() + (s.float()-0.5)*positionJitter
	lat := v.Coordinates.Lat() + (s.float()-0.5)*positionJitter

	capacity := v.Occupancy.Capacity
	change := int((s.float() - 0.5) * occupancyDelta)
	current := v.Occupancy.Current + change
	if current < 0 {
		current = 0
	}
	if current > capacity {
		current = capacity
	}

	status := models.VehicleOnTime
	switch {
	case capacity > 0 && float64(current)/float64(capacity)*100 > service.CrowdedVehiclePercentage:
		status = models.VehicleCrowded
	case s.float() < delayChance:
		status = models.VehicleDelayed
	}

	return models.VehicleUpsert{
		VehicleID:   v.VehicleID,
		Type:        v.Type,
		Route:       v.Route,
		Coordinates: models.Coordinates{lng, lat},
		Occupancy:   models.OccupancyReading{Current: current, Capacity: capacity},
		Status:      status,
		Speed:       v.Speed,
		Heading:     v.Heading,
	}
}

func floatPtr(v float64) *float64 {
	return &v
}
