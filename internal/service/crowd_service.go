package service

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/safecommute/safecommute-backend-go/internal/broadcast"
	"github.com/safecommute/safecommute-backend-go/internal/crowd"
	"github.com/safecommute/safecommute-backend-go/internal/logger"
	"github.com/safecommute/safecommute-backend-go/internal/models"
	"github.com/safecommute/safecommute-backend-go/internal/stats"
)

// Crowd query defaults
const (
	DefaultNearbyRadius    = 1000.0
	DefaultHistoryHours    = 24
	segmentLookback        = 30 * 24 * time.Hour
	defaultDataSource      = "camera"
	defaultReadingAccuracy = 0.9
)

// CrowdStore is the persistence the crowd service needs
type CrowdStore interface {
	Create(ctx context.Context, c *models.CrowdReading) error
	List(ctx context.Context, filter models.CrowdFilter) ([]models.CrowdReading, int, error)
	Nearby(ctx context.Context, lat, lng, radius float64, since time.Time) ([]models.CrowdReading, error)
	ByLocation(ctx context.Context, locationID string, since time.Time) ([]models.CrowdReading, error)
	Latest(ctx context.Context) ([]models.CrowdReading, error)
	SegmentPercentages(ctx context.Context, segment string, since time.Time) ([]float64, error)
}

// CrowdService handles business logic for crowd readings
type CrowdService struct {
	store        CrowdStore
	assessor     *crowd.Assessor
	pub          broadcast.Publisher
	log          logger.Logger
	clock        func() time.Time
	recentWindow time.Duration
}

// NewCrowdService creates a new crowd service
func NewCrowdService(store CrowdStore, assessor *crowd.Assessor, pub broadcast.Publisher, log logger.Logger, clock func() time.Time, recentWindow time.Duration) *CrowdService {
	if clock == nil {
		clock = time.Now
	}
	if pub == nil {
		pub = broadcast.Nop{}
	}
	return &CrowdService{
		store:        store,
		assessor:     assessor,
		pub:          pub,
		log:          log.With("component", "crowd"),
		clock:        clock,
		recentWindow: recentWindow,
	}
}

// Ingest assesses a reading, persists it and announces it to subscribers
func (s *CrowdService) Ingest(ctx context.Context, in models.CrowdIngest) (*models.CrowdReading, error) {
	if strings.TrimSpace(in.LocationID) == "" || strings.TrimSpace(in.LocationName) == "" {
		return nil, fmt.Errorf("%w: locationId and locationName are required", models.ErrInvalidInput)
	}
	if err := in.Coordinates.Validate(); err != nil {
		return nil, err
	}
	accuracy := defaultReadingAccuracy
	if in.Accuracy != nil {
		accuracy = *in.Accuracy
	}
	if accuracy < 0 || accuracy > 1 {
		return nil, fmt.Errorf("%w: accuracy must be within [0,1]", models.ErrInvalidInput)
	}

	var trend models.Trend
	if in.Trend != nil {
		trend = *in.Trend
	}

	assessment, err := s.assessor.Assess(
		in.Occupancy,
		crowd.RiskContext{LocationType: in.LocationType, TrendDirection: trend.Direction},
		crowd.TrendFactor(trend.Direction),
	)
	if err != nil {
		return nil, err
	}

	reading := &models.CrowdReading{
		ID:           uuid.NewString(),
		LocationID:   in.LocationID,
		LocationName: in.LocationName,
		LocationType: in.LocationType,
		Coordinates:  in.Coordinates,
		Occupancy:    in.Occupancy,
		Percentage:   assessment.Percentage,
		Density:      assessment.Density,
		Risk:         assessment.RiskAssessment(),
		Trend:        trend,
		DataSource:   in.DataSource,
		Accuracy:     accuracy,
		CreatedAt:    s.clock().UTC(),
	}
	if in.Predictions != nil {
		reading.Predictions = *in.Predictions
	}
	if reading.DataSource == "" {
		reading.DataSource = defaultDataSource
	}

	if err := s.store.Create(ctx, reading); err != nil {
		return nil, fmt.Errorf("failed to store crowd reading: %w", err)
	}

	s.publish(ctx, broadcast.EventCrowdUpdate, reading)
	if reading.Risk.Level == models.RiskCritical {
		s.log.Warn("Critical crowd level", "location", reading.LocationName, "percentage", reading.Percentage)
		s.publish(ctx, broadcast.EventCriticalCrowd, reading)
	}
	return reading, nil
}

func (s *CrowdService) publish(ctx context.Context, eventType string, r *models.CrowdReading) {
	err := s.pub.Publish(ctx, broadcast.Event{
		Topic:      broadcast.TopicCrowd,
		Type:       eventType,
		LocationID: r.LocationID,
		Data:       r,
		Timestamp:  r.CreatedAt,
	})
	if err != nil {
		s.log.Warn("Failed to publish crowd event", "type", eventType, "error", err)
	}
}

// List returns a page of readings
func (s *CrowdService) List(ctx context.Context, filter models.CrowdFilter) (*models.Page[models.CrowdReading], error) {
	filter.Page, filter.Limit = models.Normalize(filter.Page, filter.Limit)

	readings, total, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list crowd readings: %w", err)
	}

	page := models.NewPage(readings, filter.Page, filter.Limit, total)
	return &page, nil
}

// Nearby returns the latest recent reading of each location within radius meters
func (s *CrowdService) Nearby(ctx context.Context, q models.NearbyQuery) ([]models.CrowdReading, error) {
	if q.Radius <= 0 {
		q.Radius = DefaultNearbyRadius
	}
	readings, err := s.store.Nearby(ctx, q.Lat, q.Lng, q.Radius, s.clock().Add(-s.recentWindow))
	if err != nil {
		return nil, fmt.Errorf("failed to find nearby readings: %w", err)
	}
	if readings == nil {
		readings = []models.CrowdReading{}
	}
	return readings, nil
}

// LocationHistory returns the latest reading, the history and its trends for a location
func (s *CrowdService) LocationHistory(ctx context.Context, locationID string, hours int) (*models.LocationHistory, error) {
	if hours <= 0 {
		hours = DefaultHistoryHours
	}

	readings, err := s.store.ByLocation(ctx, locationID, s.clock().Add(-time.Duration(hours)*time.Hour))
	if err != nil {
		return nil, fmt.Errorf("failed to get location history: %w", err)
	}
	if len(readings) == 0 {
		return nil, fmt.Errorf("location %s: %w", locationID, models.ErrNotFound)
	}

	return &models.LocationHistory{
		Latest:     readings[0],
		Historical: readings,
		Trends:     crowd.Trends(readings),
		Count:      len(readings),
	}, nil
}

// Stats aggregates the latest reading of every location
func (s *CrowdService) Stats(ctx context.Context) (*models.CrowdStats, error) {
	latest, err := s.store.Latest(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get latest readings: %w", err)
	}

	result := &models.CrowdStats{TotalLocations: len(latest)}
	if len(latest) == 0 {
		return result, nil
	}

	percentages := make([]float64, 0, len(latest))
	for _, r := range latest {
		percentages = append(percentages, float64(r.Percentage))
		result.TotalPassengers += r.Occupancy.Current
		switch r.Risk.Level {
		case models.RiskHigh:
			result.HighRiskLocations++
		case models.RiskCritical:
			result.CriticalRiskLocations++
		}
	}

	result.AverageOccupancy = math.Round(stats.Mean(percentages)*10) / 10
	result.P95Occupancy = math.Round(stats.Percentile(percentages, 95)*10) / 10
	return result, nil
}

// Predict forecasts a location's head count from similar past times
func (s *CrowdService) Predict(ctx context.Context, locationID string) (*models.CrowdForecast, error) {
	now := s.clock()
	history, err := s.store.ByLocation(ctx, locationID, now.Add(-crowd.ForecastLookback))
	if err != nil {
		return nil, fmt.Errorf("failed to get prediction history: %w", err)
	}
	if len(history) == 0 {
		return nil, fmt.Errorf("location %s: %w", locationID, models.ErrNotFound)
	}

	forecast := crowd.ForecastLocation(locationID, history, now)
	return &forecast, nil
}

// ForecastSegments predicts the crowd level on each named segment
func (s *CrowdService) ForecastSegments(ctx context.Context, segments []string) ([]models.SegmentForecast, error) {
	since := s.clock().Add(-segmentLookback)
	forecasts := make([]models.SegmentForecast, 0, len(segments))
	for _, seg := range segments {
		seg = strings.TrimSpace(seg)
		if seg == "" {
			continue
		}
		percentages, err := s.store.SegmentPercentages(ctx, seg, since)
		if err != nil {
			return nil, fmt.Errorf("failed to forecast segment %s: %w", seg, err)
		}
		forecasts = append(forecasts, crowd.ForecastSegment(seg, percentages))
	}
	return forecasts, nil
}
