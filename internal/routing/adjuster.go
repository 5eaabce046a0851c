package routing

import (
	"fmt"
	"strings"

	"github.com/safecommute/safecommute-backend-go/internal/models"
)

const (
	// DelayPenaltyMinutes is added once to a route hit by a delay-causing alert
	DelayPenaltyMinutes = 5
	// BaselineMinutes is the journey time savings are measured against
	BaselineMinutes = 40

	reasonHighCrowd     = "High crowd levels detected"
	delayStep           = "Allow for service delays (%d min)"
	reasonNotAccessible = "Route is not wheelchair accessible"
)

// Adjust applies live alerts and preference flags to a route. The route is
// never dropped, and re-applying the same alerts leaves it unchanged.
func Adjust(route models.RouteOption, alerts []models.Alert, prefs models.Preferences) models.RouteOption {
	matched := MatchAlerts(route, alerts)

	route.Alerts = make([]models.RouteAlert, 0, len(matched))
	delayed := false
	for _, a := range matched {
		route.Alerts = append(route.Alerts, models.RouteAlert{
			Type:     a.Type,
			Severity: a.Severity,
			Message:  a.Title,
			Impact:   impact(a.Severity),
		})
		if causesDelay(a) {
			delayed = true
		}
	}

	// adjustedForDelays doubles as the guard against a second penalty
	if delayed && !route.AdjustedForDelays {
		route.DurationMinutes += DelayPenaltyMinutes
		route.TransitMinutes += DelayPenaltyMinutes
		route.AdjustedForDelays = true
		steps := make([]string, 0, len(route.Steps)+1)
		steps = append(steps, route.Steps...)
		route.Steps = append(steps, fmt.Sprintf(delayStep, DelayPenaltyMinutes))
	}

	var reasons []string
	if prefs.AvoidCrowded && route.CrowdLevel == models.CrowdHigh {
		reasons = append(reasons, reasonHighCrowd)
	}
	if prefs.AccessibilityRequired && !route.Accessibility.WheelchairAccessible {
		reasons = append(reasons, reasonNotAccessible)
	}
	if len(reasons) > 0 {
		route.Recommended = false
		route.Demoted = true
		route.Reason = strings.Join(reasons, "; ")
	}

	route.SavingsMinutes = 0
	route.Savings = ""
	if saved := BaselineMinutes - route.DurationMinutes; saved > 0 {
		route.SavingsMinutes = saved
		route.Savings = fmt.Sprintf("%d minutes faster", saved)
	}

	return route
}

// MatchAlerts returns the live alerts whose location name appears in any step
func MatchAlerts(route models.RouteOption, alerts []models.Alert) []models.Alert {
	var matched []models.Alert
	for _, a := range alerts {
		if !a.IsLive() {
			continue
		}
		name := strings.ToLower(strings.TrimSpace(a.Location.Name))
		if name == "" {
			continue
		}
		for _, step := range route.Steps {
			if strings.Contains(strings.ToLower(step), name) {
				matched = append(matched, a)
				break
			}
		}
	}
	return matched
}

func causesDelay(a models.Alert) bool {
	return a.Severity == models.SeverityHigh || a.Type == models.AlertWarning
}

func impact(severity string) string {
	if severity == models.SeverityHigh {
		return models.ImpactMajor
	}
	return models.ImpactMinor
}
