package crowd

import (
	"math"
	"time"

	"github.com/safecommute/safecommute-backend-go/internal/models"
	"github.com/safecommute/safecommute-backend-go/internal/stats"
)

// Forecast window and growth factors for the similar-time heuristic
const (
	ForecastLookback      = 7 * 24 * time.Hour
	defaultConfidence     = 0.7
	maxForecastConfidence = 0.9
)

// ForecastLocation predicts head counts 15/30/60 minutes ahead from readings
// taken on the same weekday within an hour of now.
func ForecastLocation(locationID string, history []models.CrowdReading, now time.Time) models.CrowdForecast {
	forecast := models.CrowdForecast{
		LocationID:  locationID,
		Confidence:  defaultConfidence,
		Trend:       models.TrendStable,
		GeneratedAt: now,
	}

	var counts []float64
	for _, r := range history {
		if now.Sub(r.CreatedAt) > ForecastLookback {
			continue
		}
		// weekday and hour are compared in the caller's zone
		at := r.CreatedAt.In(now.Location())
		if at.Weekday() != now.Weekday() {
			continue
		}
		if abs(at.Hour()-now.Hour()) > 1 {
			continue
		}
		counts = append(counts, float64(r.Occupancy.Current))
	}

	forecast.BasedOnSamples = len(counts)
	if len(counts) == 0 {
		return forecast
	}

	avg := stats.Mean(counts)
	forecast.Next15Min = int(math.Round(avg * 1.05))
	forecast.Next30Min = int(math.Round(avg * 1.10))
	forecast.Next60Min = int(math.Round(avg * 1.15))
	forecast.Confidence = math.Min(maxForecastConfidence, float64(len(counts))/10)
	return forecast
}

// ForecastSegment predicts the crowd level on a route segment from the
// occupancy percentages historically observed there.
func ForecastSegment(segment string, percentages []float64) models.SegmentForecast {
	if len(percentages) == 0 {
		return models.SegmentForecast{
			Segment:    segment,
			Level:      models.CrowdMedium,
			Confidence: 0.5,
			Percentage: 60,
		}
	}

	avg := stats.Mean(percentages)
	level := models.CrowdHigh
	switch {
	case avg < 50:
		level = models.CrowdLow
	case avg < 75:
		level = models.CrowdMedium
	}

	return models.SegmentForecast{
		Segment:    segment,
		Level:      level,
		Confidence: math.Min(maxForecastConfidence, float64(len(percentages))/50),
		Percentage: int(math.Round(avg)),
		Samples:    len(percentages),
	}
}

// Trends computes average, peak and low head counts. Readings are expected newest first.
func Trends(readings []models.CrowdReading) models.LocationTrends {
	var t models.LocationTrends
	if len(readings) == 0 {
		return t
	}

	counts := make([]float64, 0, len(readings))
	t.Peak = models.CountAtTime{Count: -1}
	t.Low = models.CountAtTime{Count: math.MaxInt}
	for _, r := range readings {
		c := r.Occupancy.Current
		counts = append(counts, float64(c))
		if c > t.Peak.Count {
			t.Peak = models.CountAtTime{Time: r.CreatedAt, Count: c}
		}
		if c < t.Low.Count {
			t.Low = models.CountAtTime{Time: r.CreatedAt, Count: c}
		}
	}
	t.Average = int(math.Round(stats.Mean(counts)))
	return t
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
