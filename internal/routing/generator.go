// Package routing generates, adjusts and ranks candidate journeys between
// two places. It scores a fixed set of route archetypes; it does not search
// a transit graph.
package routing

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/safecommute/safecommute-backend-go/internal/models"
	"github.com/safecommute/safecommute-backend-go/internal/spatial"
)

const (
	// MinDurationMinutes is the floor applied to every generated route
	MinDurationMinutes  = 15
	transferMinutes     = 2
	walkingMetersPerMin = 80
	offPeakTolerance    = time.Minute
)

// GeneratorConfig tunes the base duration estimate
type GeneratorConfig struct {
	AvgSpeedKmh    float64 `mapstructure:"avg_speed_kmh"`
	AccessMinutes  int     `mapstructure:"access_minutes"`
	MinBaseMinutes int     `mapstructure:"min_base_minutes"`
}

// DefaultGeneratorConfig returns the estimate used by the dashboard
func DefaultGeneratorConfig() GeneratorConfig {
	return GeneratorConfig{
		AvgSpeedKmh:    45,
		AccessMinutes:  5,
		MinBaseMinutes: 25,
	}
}

type leg struct {
	line   string
	stop   string // empty means the destination
	weight float64
}

type archetype struct {
	id            string
	name          string
	kind          string
	offset        int
	crowd         string
	reliability   float64
	walking       int
	station       string
	legs          []leg
	forecast      []models.SegmentCrowd
	cost          float64
	carbonKg      float64
	accessibility models.Accessibility
}

var archetypes = []archetype{
	{
		id:          "fastest-route",
		name:        "Express Route",
		kind:        models.RouteFastest,
		offset:      -10,
		crowd:       models.CrowdHigh,
		reliability: 92,
		walking:     5,
		station:     "Blue Line Station",
		legs: []leg{
			{line: "Blue Line Express", stop: "Downtown Hub", weight: 0.65},
			{line: "Airport Express", weight: 0.35},
		},
		forecast: []models.SegmentCrowd{
			{Segment: "Blue Line", Level: models.CrowdHigh, Percentage: 85},
			{Segment: "Downtown Hub", Level: models.CrowdMedium, Percentage: 65},
			{Segment: "Airport Express", Level: models.CrowdMedium, Percentage: 70},
		},
		cost:          3.50,
		carbonKg:      2.1,
		accessibility: models.Accessibility{WheelchairAccessible: true},
	},
	{
		id:          "comfort-route",
		name:        "Comfort Route",
		kind:        models.RouteLeastCrowded,
		offset:      8,
		crowd:       models.CrowdLow,
		reliability: 97,
		walking:     8,
		station:     "Green Line Station",
		legs: []leg{
			{line: "Green Line", stop: "University", weight: 0.45},
			{line: "Bus 45", stop: "Transit Center", weight: 0.30},
			{line: "Airport Shuttle", weight: 0.25},
		},
		forecast: []models.SegmentCrowd{
			{Segment: "Green Line", Level: models.CrowdLow, Percentage: 35},
			{Segment: "Bus 45", Level: models.CrowdLow, Percentage: 40},
			{Segment: "Airport Shuttle", Level: models.CrowdMedium, Percentage: 55},
		},
		cost:          4.25,
		carbonKg:      2.8,
		accessibility: models.Accessibility{WheelchairAccessible: true, ElevatorRequired: true},
	},
	{
		id:          "reliable-route",
		name:        "Reliable Route",
		kind:        models.RouteMostReliable,
		offset:      3,
		crowd:       models.CrowdMedium,
		reliability: 98,
		walking:     6,
		station:     "Red Line Station",
		legs: []leg{
			{line: "Red Line Direct", weight: 1},
		},
		forecast: []models.SegmentCrowd{
			{Segment: "Red Line", Level: models.CrowdMedium, Percentage: 68},
		},
		cost:          4.00,
		carbonKg:      1.9,
		accessibility: models.Accessibility{WheelchairAccessible: true},
	},
}

// Generator builds the three candidate routes for a journey
type Generator struct {
	cfg   GeneratorConfig
	clock func() time.Time
}

// NewGenerator creates a generator. A nil clock uses time.Now.
func NewGenerator(cfg GeneratorConfig, clock func() time.Time) *Generator {
	defaults := DefaultGeneratorConfig()
	if cfg.AvgSpeedKmh <= 0 {
		cfg.AvgSpeedKmh = defaults.AvgSpeedKmh
	}
	if cfg.AccessMinutes < 0 {
		cfg.AccessMinutes = defaults.AccessMinutes
	}
	if cfg.MinBaseMinutes <= 0 {
		cfg.MinBaseMinutes = defaults.MinBaseMinutes
	}
	if clock == nil {
		clock = time.Now
	}
	return &Generator{cfg: cfg, clock: clock}
}

// BaseDuration estimates door-to-door minutes from the great-circle distance
func (g *Generator) BaseDuration(origin, destination models.Place) int {
	meters := spatial.HaversineDistance(
		origin.Coordinates.Lat(), origin.Coordinates.Lng(),
		destination.Coordinates.Lat(), destination.Coordinates.Lng(),
	)
	km := meters / 1000
	base := int(math.Round(km/g.cfg.AvgSpeedKmh*60)) + g.cfg.AccessMinutes
	if base < g.cfg.MinBaseMinutes {
		base = g.cfg.MinBaseMinutes
	}
	return base
}

// IsOffPeak reports whether a departure is an explicit time other than now
func (g *Generator) IsOffPeak(departure *time.Time) bool {
	if departure == nil {
		return false
	}
	diff := departure.Sub(g.clock())
	return diff > offPeakTolerance || diff < -offPeakTolerance
}

// Generate returns fastest, least-crowded and most-reliable candidates, in that order
func (g *Generator) Generate(origin, destination models.Place, prefs models.Preferences, departure *time.Time) []models.RouteOption {
	base := g.BaseDuration(origin, destination)
	offPeak := g.IsOffPeak(departure)

	routes := make([]models.RouteOption, 0, len(archetypes))
	for _, a := range archetypes {
		r := a.build(base, destination)
		if offPeak {
			demoteHighCrowd(&r)
		}
		routes = append(routes, r)
	}
	return routes
}

func (a archetype) build(base int, destination models.Place) models.RouteOption {
	duration := base + a.offset
	if duration < MinDurationMinutes {
		duration = MinDurationMinutes
	}
	transfers := len(a.legs) - 1

	forecast := make([]models.SegmentCrowd, len(a.forecast))
	copy(forecast, a.forecast)

	return models.RouteOption{
		ID:                    a.id,
		Name:                  a.name,
		Type:                  a.kind,
		DurationMinutes:       duration,
		WalkingMinutes:        a.walking,
		TransitMinutes:        duration - a.walking,
		Transfers:             transfers,
		WalkingDistanceMeters: a.walking * walkingMetersPerMin,
		CrowdLevel:            a.crowd,
		Reliability:           a.reliability,
		Steps:                 a.steps(duration, destinationName(destination)),
		CrowdForecast:         forecast,
		Cost:                  a.cost,
		CarbonFootprintKg:     a.carbonKg,
		Accessibility:         a.accessibility,
		Alerts:                []models.RouteAlert{},
	}
}

// steps renders the itinerary; step minutes always sum to duration
func (a archetype) steps(duration int, destination string) []string {
	transfers := len(a.legs) - 1
	riding := duration - a.walking - transfers*transferMinutes

	steps := []string{fmt.Sprintf("Walk to %s (%d min)", a.station, a.walking)}
	used := 0
	for i, l := range a.legs {
		minutes := int(math.Round(float64(riding) * l.weight))
		if i == len(a.legs)-1 {
			minutes = riding - used
		}
		if minutes < 1 {
			minutes = 1
		}
		used += minutes

		stop := l.stop
		if stop == "" {
			stop = destination
		}
		if i > 0 {
			steps = append(steps, fmt.Sprintf("Transfer to %s (%d min)", l.line, transferMinutes))
		}
		steps = append(steps, fmt.Sprintf("%s to %s (%d min)", l.line, stop, minutes))
	}
	return steps
}

func destinationName(p models.Place) string {
	if name := strings.TrimSpace(p.Name); name != "" {
		return name
	}
	return "destination"
}

func demoteHighCrowd(r *models.RouteOption) {
	if r.CrowdLevel == models.CrowdHigh {
		r.CrowdLevel = models.CrowdMedium
	}
	for i := range r.CrowdForecast {
		if r.CrowdForecast[i].Level == models.CrowdHigh {
			r.CrowdForecast[i].Level = models.CrowdMedium
		}
	}
}
