package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/safecommute/safecommute-backend-go/internal/crowd"
	"github.com/safecommute/safecommute-backend-go/internal/logger"
	"github.com/safecommute/safecommute-backend-go/internal/models"
	"github.com/safecommute/safecommute-backend-go/internal/routing"
	"github.com/safecommute/safecommute-backend-go/internal/spatial"
)

// insightAlertRadius is how far from a journey endpoint a located alert still counts
const insightAlertRadius = 2000.0

// LiveAlerts supplies the alert snapshot a route request is adjusted against
type LiveAlerts interface {
	Live(ctx context.Context) ([]models.Alert, error)
}

// CrowdSignals supplies recent readings and segment forecasts
type CrowdSignals interface {
	Nearby(ctx context.Context, q models.NearbyQuery) ([]models.CrowdReading, error)
	ForecastSegments(ctx context.Context, segments []string) ([]models.SegmentForecast, error)
}

// RouteNetwork finds network routes calling near journey endpoints
type RouteNetwork interface {
	NearbyActive(ctx context.Context, radius float64, points ...models.Coordinates) ([]models.NearbyRoute, error)
}

// RouteService runs route optimization against the current alerts and crowd
// data. signals and network are optional.
type RouteService struct {
	alerts    LiveAlerts
	signals   CrowdSignals
	network   RouteNetwork
	optimizer *routing.Optimizer
	log       logger.Logger
	clock     func() time.Time
}

// NewRouteService creates a new route service
func NewRouteService(alerts LiveAlerts, signals CrowdSignals, network RouteNetwork, optimizer *routing.Optimizer, log logger.Logger, clock func() time.Time) *RouteService {
	if clock == nil {
		clock = time.Now
	}
	return &RouteService{
		alerts:    alerts,
		signals:   signals,
		network:   network,
		optimizer: optimizer,
		log:       log.With("component", "routing"),
		clock:     clock,
	}
}

// Optimize returns ranked route options for a journey
func (s *RouteService) Optimize(ctx context.Context, req models.OptimizationRequest) (*models.OptimizationResult, error) {
	if err := routing.ValidateRequest(req); err != nil {
		return nil, err
	}

	alerts, err := s.alerts.Live(ctx)
	if err != nil {
		return nil, err
	}

	result, err := s.optimizer.Optimize(req, alerts)
	if err != nil {
		return nil, err
	}
	result.NearbyRoutes = s.nearbyRoutes(ctx, req.Origin.Coordinates, req.Destination.Coordinates)

	s.log.Debug("Routes optimized",
		"origin", req.Origin.Name,
		"destination", req.Destination.Name,
		"priority", result.Preferences.Priority,
		"alerts", len(alerts),
		"nearbyRoutes", len(result.NearbyRoutes))
	return result, nil
}

func (s *RouteService) nearbyRoutes(ctx context.Context, points ...models.Coordinates) []models.NearbyRoute {
	if s.network == nil {
		return []models.NearbyRoute{}
	}
	nearby, err := s.network.NearbyActive(ctx, NearbyRouteRadius, points...)
	if err != nil {
		s.log.Warn("Failed to find nearby routes", "error", err)
		return []models.NearbyRoute{}
	}
	return nearby
}

// readingsNear returns recent readings around the points, one per location,
// busiest first
func (s *RouteService) readingsNear(ctx context.Context, points ...models.Coordinates) ([]models.CrowdReading, error) {
	if s.signals == nil {
		return nil, nil
	}

	byLocation := make(map[string]models.CrowdReading)
	for _, p := range points {
		readings, err := s.signals.Nearby(ctx, models.NearbyQuery{Lat: p.Lat(), Lng: p.Lng(), Radius: NearbyRouteRadius})
		if err != nil {
			return nil, err
		}
		for _, r := range readings {
			if cur, ok := byLocation[r.LocationID]; !ok || r.CreatedAt.After(cur.CreatedAt) {
				byLocation[r.LocationID] = r
			}
		}
	}

	out := make([]models.CrowdReading, 0, len(byLocation))
	for _, r := range byLocation {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Percentage != out[j].Percentage {
			return out[i].Percentage > out[j].Percentage
		}
		return out[i].LocationID < out[j].LocationID
	})
	return out, nil
}

var severityRank = map[string]int{
	models.SeverityLow:      1,
	models.SeverityMedium:   2,
	models.SeverityHigh:     3,
	models.SeverityCritical: 4,
}

// Insights reports the crowding, alerts and nearby lines currently affecting
// travel between two points, with advice derived from them
func (s *RouteService) Insights(ctx context.Context, origin, destination models.Coordinates) (*models.TravelInsights, error) {
	if err := origin.Validate(); err != nil {
		return nil, fmt.Errorf("origin: %w", err)
	}
	if err := destination.Validate(); err != nil {
		return nil, fmt.Errorf("destination: %w", err)
	}

	readings, err := s.readingsNear(ctx, origin, destination)
	if err != nil {
		return nil, fmt.Errorf("failed to load crowd readings: %w", err)
	}
	live, err := s.alerts.Live(ctx)
	if err != nil {
		return nil, err
	}

	insights := &models.TravelInsights{
		Conditions:      []models.TravelCondition{},
		Recommendations: []models.TravelRecommendation{},
		Alerts:          []models.InsightAlert{},
		NearbyRoutes:    s.nearbyRoutes(ctx, origin, destination),
		UpdatedAt:       s.clock(),
	}

	// crowding
	busy := false
	if len(readings) == 0 {
		insights.Conditions = append(insights.Conditions, models.TravelCondition{
			Type:        models.ConditionCrowding,
			Status:      "unknown",
			Impact:      models.PriorityLow,
			Description: "No recent crowd readings near this journey",
		})
	} else {
		peak := readings[0]
		density, err := crowd.Classify(peak.Percentage)
		if err != nil {
			return nil, err
		}
		impact := models.PriorityLow
		switch density {
		case models.DensityHigh, models.DensityCritical:
			impact = models.PriorityHigh
			busy = true
		case models.DensityMedium:
			impact = models.PriorityMedium
		}
		insights.Conditions = append(insights.Conditions, models.TravelCondition{
			Type:        models.ConditionCrowding,
			Status:      string(density),
			Impact:      impact,
			Description: fmt.Sprintf("%s at %d%% of capacity", peak.LocationName, peak.Percentage),
		})
	}

	// alerts near either endpoint or on a nearby line
	onNearbyRoute := make(map[string]bool, len(insights.NearbyRoutes))
	for _, r := range insights.NearbyRoutes {
		onNearbyRoute[r.RouteID] = true
	}
	worst := 0
	var worstTitle string
	for _, a := range live {
		if !alertNear(a, origin, destination) && !onNearbyRoute[a.Location.RouteID] {
			continue
		}
		affected := []string{}
		if a.Location.RouteID != "" {
			affected = append(affected, a.Location.RouteID)
		}
		insights.Alerts = append(insights.Alerts, models.InsightAlert{
			Severity:       a.Severity,
			Message:        a.Title,
			AffectedRoutes: affected,
		})
		if severityRank[a.Severity] > worst {
			worst, worstTitle = severityRank[a.Severity], a.Title
		}
	}

	disruption := models.TravelCondition{
		Type:        models.ConditionService,
		Status:      "normal",
		Impact:      models.PriorityLow,
		Description: "No live alerts near this journey",
	}
	if n := len(insights.Alerts); n > 0 {
		disruption.Status = "disrupted"
		disruption.Description = fmt.Sprintf("%d live alerts near this journey", n)
		switch {
		case worst >= severityRank[models.SeverityHigh]:
			disruption.Impact = models.PriorityHigh
		case worst == severityRank[models.SeverityMedium]:
			disruption.Impact = models.PriorityMedium
		}
	}
	insights.Conditions = append(insights.Conditions, disruption)

	if busy {
		insights.Recommendations = append(insights.Recommendations, models.TravelRecommendation{
			Type:     "timing",
			Priority: models.PriorityHigh,
			Message:  "Consider departing 15 minutes later to avoid peak crowds",
		})
	}
	if worst >= severityRank[models.SeverityHigh] {
		insights.Recommendations = append(insights.Recommendations, models.TravelRecommendation{
			Type:     "route",
			Priority: models.PriorityMedium,
			Message:  "Check alternative routes: " + worstTitle,
		})
	}
	if len(insights.NearbyRoutes) > 0 {
		names := make([]string, 0, len(insights.NearbyRoutes))
		for _, r := range insights.NearbyRoutes {
			names = append(names, r.Name)
		}
		insights.Recommendations = append(insights.Recommendations, models.TravelRecommendation{
			Type:     "route",
			Priority: models.PriorityLow,
			Message:  "Lines serving this journey: " + strings.Join(names, ", "),
		})
	}
	if len(insights.Recommendations) == 0 {
		insights.Recommendations = append(insights.Recommendations, models.TravelRecommendation{
			Type:     "timing",
			Priority: models.PriorityLow,
			Message:  "Conditions are normal for this journey",
		})
	}
	return insights, nil
}

func alertNear(a models.Alert, points ...models.Coordinates) bool {
	if len(a.Location.Coordinates) != 2 {
		return false
	}
	for _, p := range points {
		if spatial.WithinRadius(p.Lat(), p.Lng(), a.Location.Coordinates.Lat(), a.Location.Coordinates.Lng(), insightAlertRadius) {
			return true
		}
	}
	return false
}

// CrowdAware ranks routes with observed segment loads and picks the best one
// whose crowd level stays at or under the requested limit. When none does,
// the best route is still returned with WithinLimit false.
func (s *RouteService) CrowdAware(ctx context.Context, req models.CrowdAwareRequest) (*models.CrowdAwareResult, error) {
	limit := req.MaxCrowdLevel
	if limit == "" {
		limit = models.CrowdMedium
	}
	if routing.CrowdRank(limit) == 0 {
		return nil, fmt.Errorf("%w: unknown crowd level %q", models.ErrInvalidInput, limit)
	}

	prefs := req.Preferences
	if prefs.Priority == "" {
		prefs.Priority = models.PriorityLeastCrowded
	}
	result, err := s.Optimize(ctx, models.OptimizationRequest{
		Origin:      req.Origin,
		Destination: req.Destination,
		Preferences: prefs,
	})
	if err != nil {
		return nil, err
	}

	routes := result.Routes
	if s.signals != nil {
		var segments []string
		seen := make(map[string]bool)
		for _, r := range routes {
			for _, seg := range r.CrowdForecast {
				if !seen[seg.Segment] {
					seen[seg.Segment] = true
					segments = append(segments, seg.Segment)
				}
			}
		}
		forecasts, err := s.signals.ForecastSegments(ctx, segments)
		if err != nil {
			return nil, err
		}
		for i := range routes {
			routes[i] = routing.ApplySegmentForecasts(routes[i], forecasts)
		}
		routes = routing.Rank(routes, prefs.Priority)
	}
	if len(routes) == 0 {
		return nil, fmt.Errorf("no routes generated")
	}

	primary := 0
	within := false
	for i, r := range routes {
		if routing.WithinCrowdLimit(r.CrowdLevel, limit) {
			primary, within = i, true
			break
		}
	}

	out := &models.CrowdAwareResult{
		PrimaryRoute:      routes[primary],
		WithinLimit:       within,
		MaxCrowdLevel:     limit,
		AlternativeRoutes: make([]models.AlternativeRoute, 0, len(routes)-1),
		CrowdAlerts:       []models.CrowdAlert{},
		GeneratedAt:       result.GeneratedAt,
	}
	for i, r := range routes {
		if i == primary {
			continue
		}
		out.AlternativeRoutes = append(out.AlternativeRoutes, models.AlternativeRoute{
			Route:  r,
			Reason: alternativeReason(r, routes[primary], limit),
		})
	}

	readings, err := s.readingsNear(ctx, req.Origin.Coordinates, req.Destination.Coordinates)
	if err != nil {
		return nil, fmt.Errorf("failed to load crowd readings: %w", err)
	}
	for _, r := range readings {
		var advice string
		switch r.Risk.Level {
		case models.RiskCritical:
			advice = "Avoid this location if possible"
		case models.RiskHigh:
			advice = "Allow extra time and use less busy entrances"
		default:
			continue
		}
		out.CrowdAlerts = append(out.CrowdAlerts, models.CrowdAlert{
			Location:       r.LocationName,
			Level:          r.Risk.Level,
			Percentage:     r.Percentage,
			Recommendation: advice,
		})
	}
	return out, nil
}

func alternativeReason(r, primary models.RouteOption, limit string) string {
	if !routing.WithinCrowdLimit(r.CrowdLevel, limit) {
		if saved := primary.DurationMinutes - r.DurationMinutes; saved > 0 {
			return fmt.Sprintf("%d min faster but %s crowding is above the %s limit", saved, r.CrowdLevel, limit)
		}
		return fmt.Sprintf("%s crowding is above the %s limit", r.CrowdLevel, limit)
	}
	if r.Demoted {
		return r.Reason
	}
	return "Within the crowd limit but ranked lower"
}
