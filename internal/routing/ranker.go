package routing

import (
	"sort"

	"github.com/safecommute/safecommute-backend-go/internal/models"
)

var crowdOrder = map[string]int{
	models.CrowdLow:    1,
	models.CrowdMedium: 2,
	models.CrowdHigh:   3,
}

// Rank orders routes by priority with a stable sort, then marks the first
// route that was not demoted as recommended. Balanced and unknown priorities
// rank by reliability, the same as most-reliable.
func Rank(routes []models.RouteOption, priority string) []models.RouteOption {
	ranked := make([]models.RouteOption, len(routes))
	copy(ranked, routes)

	less := lessFor(priority)
	sort.SliceStable(ranked, func(i, j int) bool {
		return less(ranked[i], ranked[j])
	})

	marked := false
	for i := range ranked {
		ranked[i].Recommended = false
		if !marked && !ranked[i].Demoted {
			ranked[i].Recommended = true
			marked = true
		}
	}
	return ranked
}

func lessFor(priority string) func(a, b models.RouteOption) bool {
	switch priority {
	case models.PriorityFastest:
		return func(a, b models.RouteOption) bool {
			return a.DurationMinutes < b.DurationMinutes
		}
	case models.PriorityLeastCrowded:
		return func(a, b models.RouteOption) bool {
			return crowdOrder[a.CrowdLevel] < crowdOrder[b.CrowdLevel]
		}
	default:
		return func(a, b models.RouteOption) bool {
			return a.Reliability > b.Reliability
		}
	}
}
