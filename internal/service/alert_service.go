package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/safecommute/safecommute-backend-go/internal/broadcast"
	"github.com/safecommute/safecommute-backend-go/internal/logger"
	"github.com/safecommute/safecommute-backend-go/internal/models"
)

// AlertStore is the persistence the alert service needs
type AlertStore interface {
	Create(ctx context.Context, a *models.Alert) error
	Get(ctx context.Context, id string) (*models.Alert, error)
	List(ctx context.Context, filter models.AlertFilter) ([]models.Alert, int, error)
	Live(ctx context.Context) ([]models.Alert, error)
	Nearby(ctx context.Context, lat, lng, radius float64) ([]models.Alert, error)
	UpdateStatus(ctx context.Context, id, status, resolution string, resolvedAt *time.Time, now time.Time) (*models.Alert, error)
	Stats(ctx context.Context) (models.AlertStats, error)
}

// AlertService handles business logic for service alerts
type AlertService struct {
	store AlertStore
	pub   broadcast.Publisher
	log   logger.Logger
	clock func() time.Time
}

// NewAlertService creates a new alert service
func NewAlertService(store AlertStore, pub broadcast.Publisher, log logger.Logger, clock func() time.Time) *AlertService {
	if clock == nil {
		clock = time.Now
	}
	if pub == nil {
		pub = broadcast.Nop{}
	}
	return &AlertService{store: store, pub: pub, log: log.With("component", "alerts"), clock: clock}
}

// Create raises a new active alert
func (s *AlertService) Create(ctx context.Context, in models.AlertCreate) (*models.Alert, error) {
	if strings.TrimSpace(in.Title) == "" || strings.TrimSpace(in.Location.Name) == "" {
		return nil, fmt.Errorf("%w: title and location name are required", models.ErrInvalidInput)
	}
	if len(in.Location.Coordinates) > 0 {
		if err := in.Location.Coordinates.Validate(); err != nil {
			return nil, err
		}
	}

	now := s.clock().UTC()
	alert := &models.Alert{
		ID:                  uuid.NewString(),
		Type:                in.Type,
		Severity:            in.Severity,
		Title:               in.Title,
		Description:         in.Description,
		Location:            in.Location,
		Status:              models.AlertStatusActive,
		EstimatedPassengers: in.EstimatedPassengers,
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	if err := s.store.Create(ctx, alert); err != nil {
		return nil, fmt.Errorf("failed to store alert: %w", err)
	}

	s.log.Info("Alert raised", "alertId", alert.ID, "type", alert.Type, "severity", alert.Severity, "location", alert.Location.Name)
	s.publish(ctx, broadcast.EventNewAlert, alert)
	return alert, nil
}

// Get retrieves an alert
func (s *AlertService) Get(ctx context.Context, id string) (*models.Alert, error) {
	return s.store.Get(ctx, id)
}

// List returns a page of alerts
func (s *AlertService) List(ctx context.Context, filter models.AlertFilter) (*models.Page[models.Alert], error) {
	filter.Page, filter.Limit = models.Normalize(filter.Page, filter.Limit)

	alerts, total, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}

	page := models.NewPage(alerts, filter.Page, filter.Limit, total)
	return &page, nil
}

// Live returns the snapshot of active and investigating alerts used for routing
func (s *AlertService) Live(ctx context.Context) ([]models.Alert, error) {
	alerts, err := s.store.Live(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get live alerts: %w", err)
	}
	return alerts, nil
}

// Nearby returns live alerts within radius meters
func (s *AlertService) Nearby(ctx context.Context, q models.NearbyQuery) ([]models.Alert, error) {
	if q.Radius <= 0 {
		q.Radius = DefaultNearbyRadius
	}
	alerts, err := s.store.Nearby(ctx, q.Lat, q.Lng, q.Radius)
	if err != nil {
		return nil, fmt.Errorf("failed to find nearby alerts: %w", err)
	}
	if alerts == nil {
		alerts = []models.Alert{}
	}
	return alerts, nil
}

// UpdateStatus moves an alert to a new status; resolving records when and how
func (s *AlertService) UpdateStatus(ctx context.Context, id string, in models.AlertStatusUpdate) (*models.Alert, error) {
	switch in.Status {
	case models.AlertStatusActive, models.AlertStatusInvestigating, models.AlertStatusResolved, models.AlertStatusCancelled:
	default:
		return nil, fmt.Errorf("%w: unknown status %q", models.ErrInvalidInput, in.Status)
	}

	now := s.clock().UTC()
	var resolvedAt *time.Time
	resolution := ""
	if in.Status == models.AlertStatusResolved {
		resolvedAt = &now
		resolution = in.Resolution
	}

	alert, err := s.store.UpdateStatus(ctx, id, in.Status, resolution, resolvedAt, now)
	if err != nil {
		return nil, err
	}

	s.log.Info("Alert status changed", "alertId", id, "status", in.Status)
	s.publish(ctx, broadcast.EventAlertStatusUpdate, alert)
	return alert, nil
}

// Emergency pushes a one-off emergency notice to every client
func (s *AlertService) Emergency(ctx context.Context, in models.EmergencyBroadcast) (*models.EmergencyBroadcast, error) {
	if strings.TrimSpace(in.Location) == "" || strings.TrimSpace(in.AlertType) == "" {
		return nil, fmt.Errorf("%w: location and alertType are required", models.ErrInvalidInput)
	}
	in.Timestamp = s.clock().UTC()

	s.log.Warn("Emergency broadcast", "location", in.Location, "alertType", in.AlertType)
	err := s.pub.Publish(ctx, broadcast.Event{
		Topic:     broadcast.TopicAlerts,
		Type:      broadcast.EventEmergencyBroadcast,
		Data:      in,
		Timestamp: in.Timestamp,
	})
	if err != nil {
		s.log.Warn("Failed to publish emergency broadcast", "error", err)
	}
	return &in, nil
}

// Stats returns the alert overview
func (s *AlertService) Stats(ctx context.Context) (*models.AlertStats, error) {
	st, err := s.store.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get alert stats: %w", err)
	}
	return &st, nil
}

func (s *AlertService) publish(ctx context.Context, eventType string, a *models.Alert) {
	err := s.pub.Publish(ctx, broadcast.Event{
		Topic:     broadcast.TopicAlerts,
		Type:      eventType,
		Data:      a,
		Timestamp: a.UpdatedAt,
	})
	if err != nil {
		s.log.Warn("Failed to publish alert event", "type", eventType, "error", err)
	}
}
