package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/safecommute/safecommute-backend-go/internal/database"
	"github.com/safecommute/safecommute-backend-go/internal/models"
	"github.com/safecommute/safecommute-backend-go/internal/spatial"
)

const vehicleColumns = `vehicle_id, type, route, lng, lat, current_count, capacity, percentage,
	status, speed, heading, last_updated, created_at`

// VehicleRepository handles database operations for tracked vehicles
type VehicleRepository struct {
	db *database.DB
}

// NewVehicleRepository creates a new vehicle repository
func NewVehicleRepository(db *database.DB) *VehicleRepository {
	return &VehicleRepository{db: db}
}

// Upsert inserts a vehicle or replaces its mutable state, keeping created_at
func (r *VehicleRepository) Upsert(ctx context.Context, v *models.Vehicle) error {
	query := r.db.Rebind(`INSERT INTO vehicles (` + vehicleColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (vehicle_id) DO UPDATE SET
			type = excluded.type,
			route = excluded.route,
			lng = excluded.lng,
			lat = excluded.lat,
			current_count = excluded.current_count,
			capacity = excluded.capacity,
			percentage = excluded.percentage,
			status = excluded.status,
			speed = excluded.speed,
			heading = excluded.heading,
			last_updated = excluded.last_updated`)

	_, err := r.db.ExecContext(ctx, query,
		v.VehicleID, v.Type, v.Route, v.Coordinates.Lng(), v.Coordinates.Lat(),
		v.Occupancy.Current, v.Occupancy.Capacity, v.Percentage, v.Status, v.Speed, v.Heading,
		toMillis(v.LastUpdated), toMillis(v.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert vehicle: %w", err)
	}
	return nil
}

// Get retrieves a vehicle by ID
func (r *VehicleRepository) Get(ctx context.Context, id string) (*models.Vehicle, error) {
	vehicles, err := r.query(ctx, "SELECT "+vehicleColumns+" FROM vehicles WHERE vehicle_id = ?", id)
	if err != nil {
		return nil, err
	}
	if len(vehicles) == 0 {
		return nil, fmt.Errorf("vehicle %s: %w", id, models.ErrNotFound)
	}
	return &vehicles[0], nil
}

// List retrieves vehicles with filtering and pagination
func (r *VehicleRepository) List(ctx context.Context, filter models.VehicleFilter) ([]models.Vehicle, int, error) {
	var conditions []string
	var args []interface{}

	if filter.Route != "" {
		conditions = append(conditions, "route = ?")
		args = append(args, filter.Route)
	}
	if filter.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, filter.Status)
	}
	if filter.Type != "" {
		conditions = append(conditions, "type = ?")
		args = append(args, filter.Type)
	}

	var total int
	countQuery := r.db.Rebind("SELECT COUNT(*) FROM vehicles" + where(conditions))
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count vehicles: %w", err)
	}

	page, limit := models.Normalize(filter.Page, filter.Limit)
	query := "SELECT " + vehicleColumns + " FROM vehicles" + where(conditions) +
		" ORDER BY vehicle_id LIMIT ? OFFSET ?"
	args = append(args, limit, offset(page, limit))

	vehicles, err := r.query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	return vehicles, total, nil
}

// All returns the whole fleet
func (r *VehicleRepository) All(ctx context.Context) ([]models.Vehicle, error) {
	return r.query(ctx, "SELECT "+vehicleColumns+" FROM vehicles ORDER BY vehicle_id")
}

// Nearby returns vehicles within radius meters
func (r *VehicleRepository) Nearby(ctx context.Context, lat, lng, radius float64) ([]models.Vehicle, error) {
	inBox, args := bboxCondition(spatial.BoundingBoxAround(lat, lng, radius))
	query := "SELECT " + vehicleColumns + " FROM vehicles WHERE " + inBox + " ORDER BY vehicle_id"

	candidates, err := r.query(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	var result []models.Vehicle
	for _, v := range candidates {
		if spatial.WithinRadius(lat, lng, v.Coordinates.Lat(), v.Coordinates.Lng(), radius) {
			result = append(result, v)
		}
	}
	return result, nil
}

// UpdateLocation stores a position report
func (r *VehicleRepository) UpdateLocation(ctx context.Context, id string, coords models.Coordinates, speed, heading float64, now time.Time) error {
	query := r.db.Rebind(`UPDATE vehicles SET lng = ?, lat = ?, speed = ?, heading = ?, last_updated = ?
		WHERE vehicle_id = ?`)
	return r.exec(ctx, id, query, coords.Lng(), coords.Lat(), speed, heading, toMillis(now), id)
}

// UpdateOccupancy stores a head count with its derived percentage and status
func (r *VehicleRepository) UpdateOccupancy(ctx context.Context, id string, occ models.OccupancyReading, percentage int, status string, now time.Time) error {
	query := r.db.Rebind(`UPDATE vehicles SET current_count = ?, capacity = ?, percentage = ?, status = ?, last_updated = ?
		WHERE vehicle_id = ?`)
	return r.exec(ctx, id, query, occ.Current, occ.Capacity, percentage, status, toMillis(now), id)
}

// Stats aggregates fleet status counts and the mean occupancy percentage
func (r *VehicleRepository) Stats(ctx context.Context) (models.VehicleStats, error) {
	var s models.VehicleStats
	query := r.db.Rebind(`SELECT
		COUNT(*),
		COALESCE(AVG(percentage), 0),
		COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0)
		FROM vehicles`)

	err := r.db.QueryRowContext(ctx, query,
		models.VehicleOnTime, models.VehicleDelayed, models.VehicleCrowded,
	).Scan(&s.TotalVehicles, &s.AverageOccupancy, &s.OnTimeVehicles, &s.DelayedVehicles, &s.CrowdedVehicles)
	if err != nil {
		return s, fmt.Errorf("failed to aggregate vehicles: %w", err)
	}
	return s, nil
}

func (r *VehicleRepository) exec(ctx context.Context, id, query string, args ...interface{}) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update vehicle %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("vehicle %s: %w", id, models.ErrNotFound)
	}
	return nil
}

func (r *VehicleRepository) query(ctx context.Context, query string, args ...interface{}) ([]models.Vehicle, error) {
	rows, err := r.db.QueryContext(ctx, r.db.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query vehicles: %w", err)
	}
	defer rows.Close()

	var vehicles []models.Vehicle
	for rows.Next() {
		var (
			v                      models.Vehicle
			lng, lat               float64
			lastUpdated, createdAt int64
		)
		err := rows.Scan(
			&v.VehicleID, &v.Type, &v.Route, &lng, &lat, &v.Occupancy.Current, &v.Occupancy.Capacity,
			&v.Percentage, &v.Status, &v.Speed, &v.Heading, &lastUpdated, &createdAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan vehicle: %w", err)
		}
		v.Coordinates = models.Coordinates{lng, lat}
		v.LastUpdated = fromMillis(lastUpdated)
		v.CreatedAt = fromMillis(createdAt)
		vehicles = append(vehicles, v)
	}
	return vehicles, rows.Err()
}
