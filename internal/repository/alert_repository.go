package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/safecommute/safecommute-backend-go/internal/database"
	"github.com/safecommute/safecommute-backend-go/internal/models"
	"github.com/safecommute/safecommute-backend-go/internal/spatial"
)

const alertColumns = `id, type, severity, title, description, location_name, lng, lat, stop_id, route_id,
	status, estimated_passengers, resolved_at, resolution, created_at, updated_at`

// AlertRepository handles database operations for alerts
type AlertRepository struct {
	db *database.DB
}

// NewAlertRepository creates a new alert repository
func NewAlertRepository(db *database.DB) *AlertRepository {
	return &AlertRepository{db: db}
}

// Create inserts an alert
func (r *AlertRepository) Create(ctx context.Context, a *models.Alert) error {
	var lng, lat sql.NullFloat64
	if len(a.Location.Coordinates) == 2 {
		lng = sql.NullFloat64{Float64: a.Location.Coordinates.Lng(), Valid: true}
		lat = sql.NullFloat64{Float64: a.Location.Coordinates.Lat(), Valid: true}
	}

	query := r.db.Rebind(`INSERT INTO alerts (` + alertColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := r.db.ExecContext(ctx, query,
		a.ID, a.Type, a.Severity, a.Title, a.Description, a.Location.Name, lng, lat,
		a.Location.StopID, a.Location.RouteID, a.Status, a.EstimatedPassengers,
		nullMillis(a.Resolution.ResolvedAt), a.Resolution.Text, toMillis(a.CreatedAt), toMillis(a.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert alert: %w", err)
	}
	return nil
}

// Get retrieves an alert by ID
func (r *AlertRepository) Get(ctx context.Context, id string) (*models.Alert, error) {
	alerts, err := r.query(ctx, "SELECT "+alertColumns+" FROM alerts WHERE id = ?", id)
	if err != nil {
		return nil, err
	}
	if len(alerts) == 0 {
		return nil, fmt.Errorf("alert %s: %w", id, models.ErrNotFound)
	}
	return &alerts[0], nil
}

// List retrieves alerts with filtering and pagination, newest first
func (r *AlertRepository) List(ctx context.Context, filter models.AlertFilter) ([]models.Alert, int, error) {
	var conditions []string
	var args []interface{}

	if filter.Type != "" {
		conditions = append(conditions, "type = ?")
		args = append(args, filter.Type)
	}
	if filter.Severity != "" {
		conditions = append(conditions, "severity = ?")
		args = append(args, filter.Severity)
	}
	if filter.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, filter.Status)
	}

	var total int
	countQuery := r.db.Rebind("SELECT COUNT(*) FROM alerts" + where(conditions))
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count alerts: %w", err)
	}

	page, limit := models.Normalize(filter.Page, filter.Limit)
	query := "SELECT " + alertColumns + " FROM alerts" + where(conditions) +
		" ORDER BY created_at DESC, id LIMIT ? OFFSET ?"
	args = append(args, limit, offset(page, limit))

	alerts, err := r.query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	return alerts, total, nil
}

// Live returns every active or investigating alert
func (r *AlertRepository) Live(ctx context.Context) ([]models.Alert, error) {
	query := "SELECT " + alertColumns + " FROM alerts WHERE status IN (?, ?) ORDER BY created_at DESC"
	return r.query(ctx, query, models.AlertStatusActive, models.AlertStatusInvestigating)
}

// Nearby returns live alerts with coordinates within radius meters
func (r *AlertRepository) Nearby(ctx context.Context, lat, lng, radius float64) ([]models.Alert, error) {
	inBox, boxArgs := bboxCondition(spatial.BoundingBoxAround(lat, lng, radius))
	query := "SELECT " + alertColumns + " FROM alerts WHERE status IN (?, ?) AND " + inBox +
		" ORDER BY created_at DESC"

	args := append([]interface{}{models.AlertStatusActive, models.AlertStatusInvestigating}, boxArgs...)
	candidates, err := r.query(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	var result []models.Alert
	for _, a := range candidates {
		c := a.Location.Coordinates
		if spatial.WithinRadius(lat, lng, c.Lat(), c.Lng(), radius) {
			result = append(result, a)
		}
	}
	return result, nil
}

// UpdateStatus moves an alert to a new status. A resolution is only recorded when resolvedAt is set.
func (r *AlertRepository) UpdateStatus(ctx context.Context, id, status, resolution string, resolvedAt *time.Time, now time.Time) (*models.Alert, error) {
	query := r.db.Rebind(`UPDATE alerts SET status = ?, updated_at = ?,
		resolved_at = COALESCE(?, resolved_at),
		resolution = CASE WHEN ? <> '' THEN ? ELSE resolution END
		WHERE id = ?`)

	res, err := r.db.ExecContext(ctx, query,
		status, toMillis(now), nullMillis(resolvedAt), resolution, resolution, id)
	if err != nil {
		return nil, fmt.Errorf("failed to update alert status: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, fmt.Errorf("alert %s: %w", id, models.ErrNotFound)
	}
	return r.Get(ctx, id)
}

// DeleteResolvedBefore removes alerts resolved before cutoff
func (r *AlertRepository) DeleteResolvedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	query := r.db.Rebind("DELETE FROM alerts WHERE status = ? AND resolved_at IS NOT NULL AND resolved_at < ?")
	res, err := r.db.ExecContext(ctx, query, models.AlertStatusResolved, toMillis(cutoff))
	if err != nil {
		return 0, fmt.Errorf("failed to delete resolved alerts: %w", err)
	}
	return res.RowsAffected()
}

// Stats aggregates alert counts and the mean minutes from creation to resolution
func (r *AlertRepository) Stats(ctx context.Context) (models.AlertStats, error) {
	var s models.AlertStats
	query := r.db.Rebind(`SELECT
		COUNT(*),
		COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN type = ? THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0)
		FROM alerts`)

	err := r.db.QueryRowContext(ctx, query,
		models.AlertStatusActive, models.AlertEmergency, models.AlertStatusResolved,
	).Scan(&s.TotalAlerts, &s.ActiveAlerts, &s.EmergencyAlerts, &s.ResolvedAlerts)
	if err != nil {
		return s, fmt.Errorf("failed to aggregate alerts: %w", err)
	}

	var avgMillis sql.NullFloat64
	avgQuery := r.db.Rebind(`SELECT AVG(resolved_at - created_at) FROM alerts
		WHERE status = ? AND resolved_at IS NOT NULL`)
	if err := r.db.QueryRowContext(ctx, avgQuery, models.AlertStatusResolved).Scan(&avgMillis); err != nil {
		return s, fmt.Errorf("failed to average response time: %w", err)
	}
	if avgMillis.Valid {
		s.AverageResponseTime = int(time.Duration(avgMillis.Float64 * float64(time.Millisecond)).Round(time.Minute).Minutes())
	}
	return s, nil
}

// Between returns alerts raised in [from, to), oldest first
func (r *AlertRepository) Between(ctx context.Context, from, to time.Time) ([]models.Alert, error) {
	return r.query(ctx, "SELECT "+alertColumns+" FROM alerts WHERE created_at >= ? AND created_at < ? ORDER BY created_at",
		toMillis(from), toMillis(to))
}

// CountByType counts alerts created in [from, to) per alert type
func (r *AlertRepository) CountByType(ctx context.Context, from, to time.Time) (map[string]int, error) {
	query := r.db.Rebind(`SELECT type, COUNT(*) FROM alerts
		WHERE created_at >= ? AND created_at < ? GROUP BY type`)
	rows, err := r.db.QueryContext(ctx, query, toMillis(from), toMillis(to))
	if err != nil {
		return nil, fmt.Errorf("failed to count alerts by type: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var t string
		var n int
		if err := rows.Scan(&t, &n); err != nil {
			return nil, fmt.Errorf("failed to scan alert count: %w", err)
		}
		counts[t] = n
	}
	return counts, rows.Err()
}

func (r *AlertRepository) query(ctx context.Context, query string, args ...interface{}) ([]models.Alert, error) {
	rows, err := r.db.QueryContext(ctx, r.db.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query alerts: %w", err)
	}
	defer rows.Close()

	var alerts []models.Alert
	for rows.Next() {
		var (
			a                    models.Alert
			lng, lat             sql.NullFloat64
			resolvedAt           sql.NullInt64
			createdAt, updatedAt int64
		)
		err := rows.Scan(
			&a.ID, &a.Type, &a.Severity, &a.Title, &a.Description, &a.Location.Name, &lng, &lat,
			&a.Location.StopID, &a.Location.RouteID, &a.Status, &a.EstimatedPassengers,
			&resolvedAt, &a.Resolution.Text, &createdAt, &updatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		if lng.Valid && lat.Valid {
			a.Location.Coordinates = models.Coordinates{lng.Float64, lat.Float64}
		}
		if resolvedAt.Valid {
			t := fromMillis(resolvedAt.Int64)
			a.Resolution.ResolvedAt = &t
		}
		a.CreatedAt = fromMillis(createdAt)
		a.UpdatedAt = fromMillis(updatedAt)
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}
