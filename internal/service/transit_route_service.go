package service

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/safecommute/safecommute-backend-go/internal/logger"
	"github.com/safecommute/safecommute-backend-go/internal/models"
	"github.com/safecommute/safecommute-backend-go/internal/spatial"
	"github.com/safecommute/safecommute-backend-go/internal/stats"
)

// Route network defaults
const (
	NearbyRouteRadius      = 1000.0 // meters from a journey endpoint to a stop
	DefaultPerformanceDays = 7
	maxPerformanceDays     = 90
	upcomingDepartures     = 5
	fallbackSpeedKmh       = 25.0
	departureOnTime        = "on-time"
	departureDelayed       = "delayed"
)

// TransitRouteStore is the persistence the route network service needs
type TransitRouteStore interface {
	Upsert(ctx context.Context, route *models.TransitRoute) error
	Get(ctx context.Context, id string) (*models.TransitRoute, error)
	List(ctx context.Context, filter models.TransitRouteFilter) ([]models.TransitRoute, int, error)
	Active(ctx context.Context) ([]models.TransitRoute, error)
}

// RouteFleet supplies the vehicles matched against routes
type RouteFleet interface {
	All(ctx context.Context) ([]models.Vehicle, error)
}

// TransitRouteService handles the route network: stops, timetables and live service
type TransitRouteService struct {
	store TransitRouteStore
	fleet RouteFleet
	log   logger.Logger
	clock func() time.Time
}

// NewTransitRouteService creates a new transit route service
func NewTransitRouteService(store TransitRouteStore, fleet RouteFleet, log logger.Logger, clock func() time.Time) *TransitRouteService {
	if clock == nil {
		clock = time.Now
	}
	return &TransitRouteService{store: store, fleet: fleet, log: log.With("component", "network"), clock: clock}
}

// Upsert registers a route or replaces it. Stops are kept in travel order.
func (s *TransitRouteService) Upsert(ctx context.Context, in models.TransitRouteUpsert) (*models.TransitRoute, error) {
	if strings.TrimSpace(in.RouteID) == "" || strings.TrimSpace(in.Name) == "" {
		return nil, fmt.Errorf("%w: routeId and name are required", models.ErrInvalidInput)
	}

	seen := make(map[string]bool, len(in.Stops))
	for _, stop := range in.Stops {
		if strings.TrimSpace(stop.StopID) == "" {
			return nil, fmt.Errorf("%w: every stop needs a stopId", models.ErrInvalidInput)
		}
		if seen[stop.StopID] {
			return nil, fmt.Errorf("%w: duplicate stop %s", models.ErrInvalidInput, stop.StopID)
		}
		seen[stop.StopID] = true
		if err := stop.Coordinates.Validate(); err != nil {
			return nil, fmt.Errorf("stop %s: %w", stop.StopID, err)
		}
	}
	if err := validatePattern(in.Schedule.Weekday); err != nil {
		return nil, fmt.Errorf("weekday schedule: %w", err)
	}
	if err := validatePattern(in.Schedule.Weekend); err != nil {
		return nil, fmt.Errorf("weekend schedule: %w", err)
	}

	stops := make([]models.Stop, len(in.Stops))
	copy(stops, in.Stops)
	sort.SliceStable(stops, func(i, j int) bool { return stops[i].Order < stops[j].Order })

	route := &models.TransitRoute{
		RouteID:     in.RouteID,
		Name:        in.Name,
		Type:        in.Type,
		Color:       in.Color,
		Status:      in.Status,
		Stops:       stops,
		Schedule:    in.Schedule,
		Performance: models.DefaultRoutePerformance,
		Capacity:    in.Capacity,
	}
	if route.Color == "" {
		route.Color = models.DefaultRouteColor
	}
	if route.Status == "" {
		route.Status = models.RouteStatusActive
	}
	if in.Performance != nil {
		route.Performance = *in.Performance
	}

	now := s.clock().UTC()
	route.CreatedAt, route.UpdatedAt = now, now
	if err := s.store.Upsert(ctx, route); err != nil {
		return nil, fmt.Errorf("failed to store route: %w", err)
	}

	s.log.Info("Route stored", "routeId", route.RouteID, "stops", len(stops), "status", route.Status)
	return s.store.Get(ctx, route.RouteID)
}

func validatePattern(p models.ServicePattern) error {
	for _, hhmm := range []string{p.FirstDeparture, p.LastDeparture} {
		if hhmm == "" {
			continue
		}
		if _, err := time.Parse("15:04", hhmm); err != nil {
			return fmt.Errorf("%w: departure time %q is not HH:MM", models.ErrInvalidInput, hhmm)
		}
	}
	if p.Frequency < 0 || p.PeakFrequency < 0 {
		return fmt.Errorf("%w: frequency cannot be negative", models.ErrInvalidInput)
	}
	return nil
}

// List returns a page of routes
func (s *TransitRouteService) List(ctx context.Context, filter models.TransitRouteFilter) (*models.Page[models.TransitRoute], error) {
	filter.Page, filter.Limit = models.Normalize(filter.Page, filter.Limit)

	routes, total, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list routes: %w", err)
	}

	page := models.NewPage(routes, filter.Page, filter.Limit, total)
	return &page, nil
}

// Get returns a route with the live metrics of the vehicles serving it.
// Vehicles in maintenance are left out.
func (s *TransitRouteService) Get(ctx context.Context, id string) (*models.RouteDetail, error) {
	route, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	vehicles, err := s.vehiclesOn(ctx, *route, false)
	if err != nil {
		return nil, err
	}

	detail := &models.RouteDetail{
		TransitRoute: *route,
		Vehicles:     make([]models.RouteVehicle, 0, len(vehicles)),
	}
	m := &detail.RealTimeMetrics
	m.ActiveVehicles = len(vehicles)

	percentages := make([]float64, 0, len(vehicles))
	for _, v := range vehicles {
		percentages = append(percentages, float64(v.Percentage))
		switch v.Status {
		case models.VehicleOnTime:
			m.OnTimeVehicles++
		case models.VehicleDelayed:
			m.DelayedVehicles++
		case models.VehicleCrowded:
			m.CrowdedVehicles++
		}
		detail.Vehicles = append(detail.Vehicles, models.RouteVehicle{
			VehicleID:   v.VehicleID,
			Coordinates: v.Coordinates,
			Occupancy:   v.Occupancy,
			Percentage:  v.Percentage,
			Status:      v.Status,
			LastUpdated: v.LastUpdated,
		})
	}

	if len(vehicles) > 0 {
		m.AverageOccupancy = int(math.Round(stats.Mean(percentages)))
		m.OnTimePerformance = int(math.Round(float64(m.OnTimeVehicles) / float64(len(vehicles)) * 100))
	} else {
		m.OnTimePerformance = int(math.Round(route.Performance.OnTimePerformance))
	}
	return detail, nil
}

// ActivePattern picks the weekend pattern on Saturday and Sunday when one is
// defined, the weekday pattern otherwise. The day is read in now's zone.
func ActivePattern(schedule models.Schedule, now time.Time) models.ServicePattern {
	switch now.Weekday() {
	case time.Saturday, time.Sunday:
		if schedule.Weekend.Frequency > 0 {
			return schedule.Weekend
		}
	}
	return schedule.Weekday
}

// Schedule returns a route's timetable. With a stop it also lists the next
// departures there, shifted by the route's average delay.
func (s *TransitRouteService) Schedule(ctx context.Context, routeID, stopID string) (*models.RouteSchedule, error) {
	route, err := s.store.Get(ctx, routeID)
	if err != nil {
		return nil, err
	}

	now := s.clock()
	out := &models.RouteSchedule{
		RouteID:        route.RouteID,
		Schedule:       route.Schedule,
		StopID:         stopID,
		NextDepartures: []models.Departure{},
		GeneratedAt:    now,
	}
	if stopID == "" {
		return out, nil
	}

	stop, ok := route.Stop(stopID)
	if !ok {
		return nil, fmt.Errorf("stop %s on route %s: %w", stopID, routeID, models.ErrNotFound)
	}
	pattern := ActivePattern(route.Schedule, now)
	if pattern.Frequency <= 0 {
		return nil, fmt.Errorf("%w: route %s has no service frequency", models.ErrInvalidInput, routeID)
	}

	delay := time.Duration(math.Round(route.Performance.AverageDelay)) * time.Minute
	status := departureOnTime
	if delay > 0 {
		status = departureDelayed
	}
	for i := 0; i < upcomingDepartures; i++ {
		scheduled := now.Add(time.Duration(i*pattern.Frequency+stop.EstimatedMinutes) * time.Minute)
		out.NextDepartures = append(out.NextDepartures, models.Departure{
			ScheduledTime: scheduled,
			EstimatedTime: scheduled.Add(delay),
			Status:        status,
		})
	}
	return out, nil
}

// Stops lists a route's stops, each with the vehicles whose closest stop it is
func (s *TransitRouteService) Stops(ctx context.Context, routeID string) (*models.RouteStops, error) {
	route, err := s.store.Get(ctx, routeID)
	if err != nil {
		return nil, err
	}
	vehicles, err := s.vehiclesOn(ctx, *route, false)
	if err != nil {
		return nil, err
	}

	out := &models.RouteStops{
		RouteID:    route.RouteID,
		Stops:      make([]models.StopStatus, len(route.Stops)),
		TotalStops: len(route.Stops),
	}
	for i, stop := range route.Stops {
		out.Stops[i] = models.StopStatus{Stop: stop, ApproachingVehicles: []models.ApproachingVehicle{}}
	}
	if len(route.Stops) == 0 {
		return out, nil
	}

	now := s.clock()
	for _, v := range vehicles {
		idx, dist := nearestStop(route.Stops, v.Coordinates)
		speed := v.Speed
		if speed <= 0 {
			speed = fallbackSpeedKmh
		}
		eta := time.Duration(dist / (speed * 1000) * float64(time.Hour)).Round(time.Second)
		out.Stops[idx].ApproachingVehicles = append(out.Stops[idx].ApproachingVehicles, models.ApproachingVehicle{
			VehicleID:        v.VehicleID,
			DistanceMeters:   int(math.Round(dist)),
			EstimatedArrival: now.Add(eta),
			Occupancy:        v.Occupancy,
			Status:           v.Status,
		})
	}
	return out, nil
}

// Performance combines a route's stored record with vehicles seen on it over
// the last days. Without recent vehicles the stored figures are reported.
func (s *TransitRouteService) Performance(ctx context.Context, routeID string, days int) (*models.RoutePerformanceReport, error) {
	if days == 0 {
		days = DefaultPerformanceDays
	}
	if days < 0 || days > maxPerformanceDays {
		return nil, fmt.Errorf("%w: days must be within 1..%d", models.ErrInvalidInput, maxPerformanceDays)
	}

	route, err := s.store.Get(ctx, routeID)
	if err != nil {
		return nil, err
	}
	vehicles, err := s.vehiclesOn(ctx, *route, true)
	if err != nil {
		return nil, err
	}

	now := s.clock()
	since := now.Add(-time.Duration(days) * 24 * time.Hour)
	var percentages []float64
	onTime := 0
	for _, v := range vehicles {
		if v.LastUpdated.Before(since) {
			continue
		}
		percentages = append(percentages, float64(v.Percentage))
		if v.Status == models.VehicleOnTime {
			onTime++
		}
	}

	report := &models.RoutePerformanceReport{
		RouteID:           route.RouteID,
		Days:              days,
		OnTimePerformance: route.Performance.OnTimePerformance,
		AverageDelay:      route.Performance.AverageDelay,
		Reliability:       route.Performance.Reliability,
		AverageOccupancy:  route.Capacity.AverageOccupancy,
		ObservedVehicles:  len(percentages),
		GeneratedAt:       now,
	}
	if n := len(percentages); n > 0 {
		report.AverageOccupancy = round1(stats.Mean(percentages))
		report.OnTimePerformance = round1(float64(onTime) / float64(n) * 100)
	}

	report.ServiceQuality = models.ServiceQuality{
		Punctuality:   int(math.Round(report.OnTimePerformance)),
		Comfort:       max(0, 100-int(math.Round(report.AverageOccupancy))),
		Frequency:     FrequencyScore(route.Schedule),
		Accessibility: AccessibilityScore(route.Stops),
	}
	return report, nil
}

// FrequencyScore rewards short peak headways: 100 minus two points per minute
func FrequencyScore(schedule models.Schedule) int {
	headway := schedule.Weekday.PeakFrequency
	if headway == 0 {
		headway = schedule.Weekday.Frequency
	}
	if headway <= 0 {
		return 0
	}
	return max(0, 100-headway*2)
}

// AccessibilityScore is the share of stops with wheelchair access, in percent
func AccessibilityScore(stops []models.Stop) int {
	if len(stops) == 0 {
		return 0
	}
	accessible := 0
	for _, s := range stops {
		if s.HasFacility(models.FacilityWheelchair) {
			accessible++
		}
	}
	return int(math.Round(float64(accessible) / float64(len(stops)) * 100))
}

// NearbyActive returns active routes with a stop closer than radius meters to
// any of the points, nearest first.
func (s *TransitRouteService) NearbyActive(ctx context.Context, radius float64, points ...models.Coordinates) ([]models.NearbyRoute, error) {
	routes, err := s.store.Active(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load active routes: %w", err)
	}

	nearby := []models.NearbyRoute{}
	for _, route := range routes {
		best := -1.0
		var bestStop string
		for _, stop := range route.Stops {
			for _, p := range points {
				d := spatial.HaversineDistance(p.Lat(), p.Lng(), stop.Coordinates.Lat(), stop.Coordinates.Lng())
				if d < radius && (best < 0 || d < best) {
					best, bestStop = d, stop.Name
				}
			}
		}
		if best < 0 {
			continue
		}
		nearby = append(nearby, models.NearbyRoute{
			RouteID:        route.RouteID,
			Name:           route.Name,
			Type:           route.Type,
			Stop:           bestStop,
			DistanceMeters: int(math.Round(best)),
		})
	}

	sort.SliceStable(nearby, func(i, j int) bool {
		return nearby[i].DistanceMeters < nearby[j].DistanceMeters
	})
	return nearby, nil
}

// vehiclesOn returns the fleet serving a route, matched by route id or name
func (s *TransitRouteService) vehiclesOn(ctx context.Context, route models.TransitRoute, withMaintenance bool) ([]models.Vehicle, error) {
	fleet, err := s.fleet.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load vehicles: %w", err)
	}

	var out []models.Vehicle
	for _, v := range fleet {
		if v.Route != route.RouteID && !strings.EqualFold(v.Route, route.Name) {
			continue
		}
		if !withMaintenance && v.Status == models.VehicleMaintenance {
			continue
		}
		out = append(out, v)
	}
	return out, nil
}

func nearestStop(stops []models.Stop, at models.Coordinates) (int, float64) {
	idx, best := 0, math.Inf(1)
	for i, s := range stops {
		d := spatial.HaversineDistance(at.Lat(), at.Lng(), s.Coordinates.Lat(), s.Coordinates.Lng())
		if d < best {
			idx, best = i, d
		}
	}
	return idx, best
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
