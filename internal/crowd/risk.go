package crowd

import (
	"strings"

	"github.com/safecommute/safecommute-backend-go/internal/models"
)

const (
	// RecommendationThreshold is the percentage above which travellers are steered away
	RecommendationThreshold = 75
	maxRiskScore            = 100
)

// RiskContext carries the facts a risk scorer may weigh beyond density
type RiskContext struct {
	LocationType   string
	TrendDirection string
}

// RiskScorer turns a density tier into a risk level
type RiskScorer interface {
	Level(density models.DensityTier, rc RiskContext) models.RiskLevel
}

// DensityRiskScorer copies the density tier into the risk level
type DensityRiskScorer struct{}

// Level implements RiskScorer
func (DensityRiskScorer) Level(density models.DensityTier, _ RiskContext) models.RiskLevel {
	switch density {
	case models.DensityCritical:
		return models.RiskCritical
	case models.DensityHigh:
		return models.RiskHigh
	case models.DensityMedium:
		return models.RiskMedium
	default:
		return models.RiskLow
	}
}

// Assessment is the full derived view of an occupancy reading
type Assessment struct {
	Percentage      int                `json:"percentage"`
	Density         models.DensityTier `json:"density"`
	Risk            models.RiskLevel   `json:"risk"`
	Factors         []string           `json:"factors"`
	Recommendations []string           `json:"recommendations"`
	RiskScore       int                `json:"riskScore"`
}

// RiskAssessment converts the assessment into the block stored with a reading
func (a Assessment) RiskAssessment() models.RiskAssessment {
	return models.RiskAssessment{
		Level:           a.Risk,
		Factors:         a.Factors,
		Recommendations: a.Recommendations,
		Score:           a.RiskScore,
	}
}

// Assessor builds risk assessments from occupancy readings
type Assessor struct {
	scorer RiskScorer
}

// NewAssessor creates an assessor. A nil scorer falls back to DensityRiskScorer.
func NewAssessor(scorer RiskScorer) *Assessor {
	if scorer == nil {
		scorer = DensityRiskScorer{}
	}
	return &Assessor{scorer: scorer}
}

// Assess derives density, risk, factors, recommendations and score.
// Extra factors are appended after the base crowd_density factor.
func (a *Assessor) Assess(occ models.OccupancyReading, rc RiskContext, factors ...string) (Assessment, error) {
	percentage, err := Percentage(occ)
	if err != nil {
		return Assessment{}, err
	}

	density, err := Classify(percentage)
	if err != nil {
		return Assessment{}, err
	}

	return Assessment{
		Percentage:      percentage,
		Density:         density,
		Risk:            a.scorer.Level(density, rc),
		Factors:         mergeFactors(factors),
		Recommendations: Recommendations(percentage),
		RiskScore:       RiskScore(percentage),
	}, nil
}

// Recommendations returns the traveller advice for a percentage
func Recommendations(percentage int) []string {
	if percentage > RecommendationThreshold {
		return []string{models.RecommendAvoidLocation, models.RecommendAlternative}
	}
	return []string{models.RecommendMonitor}
}

// RiskScore is min(100, floor(percentage*1.2))
func RiskScore(percentage int) int {
	if percentage <= 0 {
		return 0
	}
	// floor(p*1.2) in integer arithmetic
	score := percentage * 6 / 5
	if score > maxRiskScore {
		return maxRiskScore
	}
	return score
}

func mergeFactors(extra []string) []string {
	factors := []string{models.FactorCrowdDensity}
	seen := map[string]bool{models.FactorCrowdDensity: true}
	for _, f := range extra {
		f = strings.TrimSpace(f)
		if f == "" || seen[f] {
			continue
		}
		seen[f] = true
		factors = append(factors, f)
	}
	return factors
}

// TrendFactor names the factor contributed by a trend direction, if any
func TrendFactor(direction string) string {
	switch direction {
	case models.TrendIncreasing, models.TrendDecreasing:
		return "trend_" + direction
	default:
		return ""
	}
}
