package service

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/safecommute/safecommute-backend-go/internal/broadcast"
	"github.com/safecommute/safecommute-backend-go/internal/crowd"
	"github.com/safecommute/safecommute-backend-go/internal/logger"
	"github.com/safecommute/safecommute-backend-go/internal/models"
)

// CrowdedVehiclePercentage is the occupancy above which a vehicle is reported crowded
const CrowdedVehiclePercentage = 90

// VehicleStore is the persistence the vehicle service needs
type VehicleStore interface {
	Upsert(ctx context.Context, v *models.Vehicle) error
	Get(ctx context.Context, id string) (*models.Vehicle, error)
	List(ctx context.Context, filter models.VehicleFilter) ([]models.Vehicle, int, error)
	All(ctx context.Context) ([]models.Vehicle, error)
	Nearby(ctx context.Context, lat, lng, radius float64) ([]models.Vehicle, error)
	UpdateLocation(ctx context.Context, id string, coords models.Coordinates, speed, heading float64, now time.Time) error
	UpdateOccupancy(ctx context.Context, id string, occ models.OccupancyReading, percentage int, status string, now time.Time) error
	Stats(ctx context.Context) (models.VehicleStats, error)
}

// VehicleService handles business logic for the tracked fleet
type VehicleService struct {
	store VehicleStore
	pub   broadcast.Publisher
	log   logger.Logger
	clock func() time.Time
}

// NewVehicleService creates a new vehicle service
func NewVehicleService(store VehicleStore, pub broadcast.Publisher, log logger.Logger, clock func() time.Time) *VehicleService {
	if clock == nil {
		clock = time.Now
	}
	if pub == nil {
		pub = broadcast.Nop{}
	}
	return &VehicleService{store: store, pub: pub, log: log.With("component", "vehicles"), clock: clock}
}

// StatusFor derives a vehicle status from its occupancy. Incident and
// maintenance are operator-set and survive occupancy changes.
func StatusFor(current string, percentage int) string {
	switch current {
	case models.VehicleIncident, models.VehicleMaintenance:
		return current
	}
	if percentage > CrowdedVehiclePercentage {
		return models.VehicleCrowded
	}
	if current == models.VehicleCrowded || current == "" {
		return models.VehicleOnTime
	}
	return current
}

// Upsert registers a vehicle or replaces its state
func (s *VehicleService) Upsert(ctx context.Context, in models.VehicleUpsert) (*models.Vehicle, error) {
	if strings.TrimSpace(in.VehicleID) == "" {
		return nil, fmt.Errorf("%w: vehicleId is required", models.ErrInvalidInput)
	}
	if err := in.Coordinates.Validate(); err != nil {
		return nil, err
	}
	percentage, err := crowd.Percentage(in.Occupancy)
	if err != nil {
		return nil, err
	}

	now := s.clock().UTC()
	v := &models.Vehicle{
		VehicleID:   in.VehicleID,
		Type:        in.Type,
		Route:       in.Route,
		Coordinates: in.Coordinates,
		Occupancy:   in.Occupancy,
		Percentage:  percentage,
		Status:      StatusFor(in.Status, percentage),
		Speed:       in.Speed,
		Heading:     in.Heading,
		LastUpdated: now,
		CreatedAt:   now,
	}

	if err := s.store.Upsert(ctx, v); err != nil {
		return nil, fmt.Errorf("failed to store vehicle: %w", err)
	}
	return s.refresh(ctx, v.VehicleID)
}

// Get retrieves a vehicle
func (s *VehicleService) Get(ctx context.Context, id string) (*models.Vehicle, error) {
	return s.store.Get(ctx, id)
}

// List returns a page of vehicles
func (s *VehicleService) List(ctx context.Context, filter models.VehicleFilter) (*models.Page[models.Vehicle], error) {
	filter.Page, filter.Limit = models.Normalize(filter.Page, filter.Limit)

	vehicles, total, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list vehicles: %w", err)
	}

	page := models.NewPage(vehicles, filter.Page, filter.Limit, total)
	return &page, nil
}

// All returns the whole fleet
func (s *VehicleService) All(ctx context.Context) ([]models.Vehicle, error) {
	return s.store.All(ctx)
}

// Nearby returns vehicles within radius meters
func (s *VehicleService) Nearby(ctx context.Context, q models.NearbyQuery) ([]models.Vehicle, error) {
	if q.Radius <= 0 {
		q.Radius = DefaultNearbyRadius
	}
	vehicles, err := s.store.Nearby(ctx, q.Lat, q.Lng, q.Radius)
	if err != nil {
		return nil, fmt.Errorf("failed to find nearby vehicles: %w", err)
	}
	if vehicles == nil {
		vehicles = []models.Vehicle{}
	}
	return vehicles, nil
}

// UpdateLocation stores a position report. Missing speed or heading keeps the previous value.
func (s *VehicleService) UpdateLocation(ctx context.Context, id string, in models.VehicleLocationUpdate) (*models.Vehicle, error) {
	if err := in.Coordinates.Validate(); err != nil {
		return nil, err
	}

	current, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	speed, heading := current.Speed, current.Heading
	if in.Speed != nil {
		if *in.Speed < 0 {
			return nil, fmt.Errorf("%w: speed must not be negative", models.ErrInvalidInput)
		}
		speed = *in.Speed
	}
	if in.Heading != nil {
		if *in.Heading < 0 || *in.Heading > 360 {
			return nil, fmt.Errorf("%w: heading must be within 0..360", models.ErrInvalidInput)
		}
		heading = *in.Heading
	}

	if err := s.store.UpdateLocation(ctx, id, in.Coordinates, speed, heading, s.clock().UTC()); err != nil {
		return nil, err
	}
	return s.refresh(ctx, id)
}

// UpdateOccupancy stores a head count; status follows occupancy
func (s *VehicleService) UpdateOccupancy(ctx context.Context, id string, in models.VehicleOccupancyUpdate) (*models.Vehicle, error) {
	current, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	occ := models.OccupancyReading{Current: in.Current, Capacity: in.Capacity}
	if occ.Capacity == 0 {
		occ.Capacity = current.Occupancy.Capacity
	}
	percentage, err := crowd.Percentage(occ)
	if err != nil {
		return nil, err
	}

	status := StatusFor(current.Status, percentage)
	if err := s.store.UpdateOccupancy(ctx, id, occ, percentage, status, s.clock().UTC()); err != nil {
		return nil, err
	}
	return s.refresh(ctx, id)
}

// Stats returns the fleet overview
func (s *VehicleService) Stats(ctx context.Context) (*models.VehicleStats, error) {
	st, err := s.store.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get vehicle stats: %w", err)
	}
	st.AverageOccupancy = math.Round(st.AverageOccupancy*10) / 10
	if st.TotalVehicles > 0 {
		st.OnTimePerformance = int(math.Round(float64(st.OnTimeVehicles) / float64(st.TotalVehicles) * 100))
	}
	return &st, nil
}

func (s *VehicleService) refresh(ctx context.Context, id string) (*models.Vehicle, error) {
	v, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	err = s.pub.Publish(ctx, broadcast.Event{
		Topic:      broadcast.TopicVehicles,
		Type:       broadcast.EventVehicleUpdate,
		LocationID: v.VehicleID,
		Data:       v,
		Timestamp:  v.LastUpdated,
	})
	if err != nil {
		s.log.Warn("Failed to publish vehicle update", "vehicleId", v.VehicleID, "error", err)
	}
	return v, nil
}
