package routing

import (
	"fmt"
	"strings"
	"time"

	"github.com/safecommute/safecommute-backend-go/internal/models"
	"github.com/safecommute/safecommute-backend-go/internal/spatial"
)

// samePlaceMeters is how close two endpoints must be to count as one place
const samePlaceMeters = 1.0

// Optimizer runs generate, adjust and rank for one request
type Optimizer struct {
	generator *Generator
	clock     func() time.Time
}

// NewOptimizer creates an optimizer. A nil clock uses time.Now.
func NewOptimizer(generator *Generator, clock func() time.Time) *Optimizer {
	if clock == nil {
		clock = time.Now
	}
	return &Optimizer{generator: generator, clock: clock}
}

// Optimize validates the request and returns ranked route options.
// alerts is a snapshot owned by the caller; it is only read.
func (o *Optimizer) Optimize(req models.OptimizationRequest, alerts []models.Alert) (*models.OptimizationResult, error) {
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}

	prefs := req.Preferences
	if prefs.Priority == "" {
		prefs.Priority = models.PriorityBalanced
	}

	candidates := o.generator.Generate(req.Origin, req.Destination, prefs, req.DepartureTime)
	for i := range candidates {
		candidates[i] = Adjust(candidates[i], alerts, prefs)
	}

	return &models.OptimizationResult{
		Routes:       Rank(candidates, prefs.Priority),
		Origin:       req.Origin,
		Destination:  req.Destination,
		Preferences:  prefs,
		NearbyRoutes: []models.NearbyRoute{},
		GeneratedAt:  o.clock(),
	}, nil
}

// ValidateRequest rejects malformed endpoints and journeys to the same place
func ValidateRequest(req models.OptimizationRequest) error {
	if err := req.Origin.Coordinates.Validate(); err != nil {
		return fmt.Errorf("origin: %w", err)
	}
	if err := req.Destination.Coordinates.Validate(); err != nil {
		return fmt.Errorf("destination: %w", err)
	}
	if SamePlace(req.Origin, req.Destination) {
		return fmt.Errorf("%w: origin and destination are the same place", models.ErrInvalidInput)
	}
	if w := req.Preferences.MaxWalkingDistanceMeters; w < 0 || w > 2000 {
		return fmt.Errorf("%w: maxWalkingDistanceMeters must be within 0..2000", models.ErrInvalidInput)
	}
	return nil
}

// SamePlace reports whether two endpoints share a name or sit within a metre of each other
func SamePlace(a, b models.Place) bool {
	an := strings.TrimSpace(a.Name)
	bn := strings.TrimSpace(b.Name)
	if an != "" && strings.EqualFold(an, bn) {
		return true
	}
	d := spatial.HaversineDistance(
		a.Coordinates.Lat(), a.Coordinates.Lng(),
		b.Coordinates.Lat(), b.Coordinates.Lng(),
	)
	return d < samePlaceMeters
}
