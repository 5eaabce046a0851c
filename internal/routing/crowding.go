package routing

import (
	"strings"

	"github.com/safecommute/safecommute-backend-go/internal/crowd"
	"github.com/safecommute/safecommute-backend-go/internal/models"
)

// CrowdRank orders crowd levels from low (1) to high (3). Unknown levels rank 0.
func CrowdRank(level string) int {
	return crowdOrder[level]
}

// WithinCrowdLimit reports whether level is known and does not exceed limit
func WithinCrowdLimit(level, limit string) bool {
	r := crowdOrder[level]
	return r > 0 && r <= crowdOrder[limit]
}

// ApplySegmentForecasts overwrites the expected load of every segment that
// has observed history. With history on every segment the route level follows
// their mean; with partial history it can only rise to the busiest observed one.
func ApplySegmentForecasts(route models.RouteOption, forecasts []models.SegmentForecast) models.RouteOption {
	observed := make(map[string]models.SegmentForecast, len(forecasts))
	for _, f := range forecasts {
		if f.Samples > 0 {
			observed[strings.ToLower(strings.TrimSpace(f.Segment))] = f
		}
	}
	if len(observed) == 0 || len(route.CrowdForecast) == 0 {
		return route
	}

	segments := make([]models.SegmentCrowd, len(route.CrowdForecast))
	copy(segments, route.CrowdForecast)

	var percentages []float64
	busiest := ""
	for i, seg := range segments {
		f, ok := observed[strings.ToLower(strings.TrimSpace(seg.Segment))]
		if !ok {
			continue
		}
		segments[i].Level = f.Level
		segments[i].Percentage = f.Percentage
		percentages = append(percentages, float64(f.Percentage))
		if crowdOrder[f.Level] > crowdOrder[busiest] {
			busiest = f.Level
		}
	}
	if len(percentages) == 0 {
		return route
	}

	route.CrowdForecast = segments
	switch {
	case len(percentages) == len(segments):
		route.CrowdLevel = crowd.ForecastSegment("", percentages).Level
	case crowdOrder[busiest] > crowdOrder[route.CrowdLevel]:
		route.CrowdLevel = busiest
	}
	return route
}
