// Package crowd derives density tiers, risk levels and short-horizon
// forecasts from occupancy readings. Every function here is pure.
package crowd

import (
	"fmt"
	"math"

	"github.com/safecommute/safecommute-backend-go/internal/models"
)

// Tier thresholds, inclusive on the lower bound
const (
	MediumThreshold   = 30
	HighThreshold     = 60
	CriticalThreshold = 85
)

// Classify maps an occupancy percentage to a density tier.
// Percentages above 100 are legal and classify as critical.
func Classify(percentage int) (models.DensityTier, error) {
	switch {
	case percentage < 0:
		return "", fmt.Errorf("%w: negative occupancy percentage %d", models.ErrInvalidInput, percentage)
	case percentage < MediumThreshold:
		return models.DensityLow, nil
	case percentage < HighThreshold:
		return models.DensityMedium, nil
	case percentage < CriticalThreshold:
		return models.DensityHigh, nil
	default:
		return models.DensityCritical, nil
	}
}

// Percentage returns round(current/capacity*100), unbounded above 100
func Percentage(occ models.OccupancyReading) (int, error) {
	if occ.Capacity <= 0 {
		return 0, fmt.Errorf("%w: capacity %d", models.ErrDivision, occ.Capacity)
	}
	if occ.Current < 0 {
		return 0, fmt.Errorf("%w: negative head count %d", models.ErrInvalidInput, occ.Current)
	}
	return int(math.Round(float64(occ.Current) / float64(occ.Capacity) * 100)), nil
}
