package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/safecommute/safecommute-backend-go/internal/database"
	"github.com/safecommute/safecommute-backend-go/internal/models"
	"github.com/safecommute/safecommute-backend-go/internal/spatial"
)

const crowdColumns = `id, location_id, location_name, location_type, lng, lat,
	current_count, capacity, percentage, density, risk_level, risk_factors, recommendations, risk_score,
	trend_direction, trend_rate, trend_confidence, next15, next30, next60, data_source, accuracy, created_at`

// CrowdRepository handles database operations for crowd readings
type CrowdRepository struct {
	db *database.DB
}

// NewCrowdRepository creates a new crowd repository
func NewCrowdRepository(db *database.DB) *CrowdRepository {
	return &CrowdRepository{db: db}
}

// Create inserts a reading. Readings are never updated afterwards.
func (r *CrowdRepository) Create(ctx context.Context, c *models.CrowdReading) error {
	query := r.db.Rebind(`INSERT INTO crowd_readings (` + crowdColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)

	_, err := r.db.ExecContext(ctx, query,
		c.ID, c.LocationID, c.LocationName, c.LocationType, c.Coordinates.Lng(), c.Coordinates.Lat(),
		c.Occupancy.Current, c.Occupancy.Capacity, c.Percentage, string(c.Density), string(c.Risk.Level),
		encodeList(c.Risk.Factors), encodeList(c.Risk.Recommendations), c.Risk.Score,
		c.Trend.Direction, c.Trend.RatePerMinute, c.Trend.Confidence,
		c.Predictions.Next15Min, c.Predictions.Next30Min, c.Predictions.Next60Min,
		c.DataSource, c.Accuracy, toMillis(c.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert crowd reading: %w", err)
	}
	return nil
}

// List retrieves readings with filtering and pagination, newest first unless order=asc
func (r *CrowdRepository) List(ctx context.Context, filter models.CrowdFilter) ([]models.CrowdReading, int, error) {
	var conditions []string
	var args []interface{}

	if filter.LocationType != "" {
		conditions = append(conditions, "location_type = ?")
		args = append(args, filter.LocationType)
	}
	if filter.RiskLevel != "" {
		conditions = append(conditions, "risk_level = ?")
		args = append(args, filter.RiskLevel)
	}

	var total int
	countQuery := r.db.Rebind("SELECT COUNT(*) FROM crowd_readings" + where(conditions))
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count crowd readings: %w", err)
	}

	page, limit := models.Normalize(filter.Page, filter.Limit)
	direction := "DESC"
	if strings.EqualFold(filter.Order, "asc") {
		direction = "ASC"
	}

	query := "SELECT " + crowdColumns + " FROM crowd_readings" + where(conditions) +
		" ORDER BY created_at " + direction + ", id LIMIT ? OFFSET ?"
	args = append(args, limit, offset(page, limit))

	readings, err := r.query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	return readings, total, nil
}

// Nearby returns the latest reading of every location within radius meters, observed since the given time
func (r *CrowdRepository) Nearby(ctx context.Context, lat, lng, radius float64, since time.Time) ([]models.CrowdReading, error) {
	inBox, args := bboxCondition(spatial.BoundingBoxAround(lat, lng, radius))
	query := "SELECT " + crowdColumns + " FROM crowd_readings WHERE " + inBox +
		" AND created_at >= ? ORDER BY created_at DESC"

	candidates, err := r.query(ctx, query, append(args, toMillis(since))...)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var result []models.CrowdReading
	for _, c := range candidates {
		if seen[c.LocationID] {
			continue
		}
		if !spatial.WithinRadius(lat, lng, c.Coordinates.Lat(), c.Coordinates.Lng(), radius) {
			continue
		}
		seen[c.LocationID] = true
		result = append(result, c)
	}
	return result, nil
}

// ByLocation returns a location's readings since the given time, newest first
func (r *CrowdRepository) ByLocation(ctx context.Context, locationID string, since time.Time) ([]models.CrowdReading, error) {
	query := "SELECT " + crowdColumns + ` FROM crowd_readings
		WHERE location_id = ? AND created_at >= ? ORDER BY created_at DESC`
	return r.query(ctx, query, locationID, toMillis(since))
}

// Since returns every reading in [from, to), oldest first
func (r *CrowdRepository) Since(ctx context.Context, from, to time.Time) ([]models.CrowdReading, error) {
	query := "SELECT " + crowdColumns + ` FROM crowd_readings
		WHERE created_at >= ? AND created_at < ? ORDER BY created_at ASC`
	return r.query(ctx, query, toMillis(from), toMillis(to))
}

// Latest returns the most recent reading of every location
func (r *CrowdRepository) Latest(ctx context.Context) ([]models.CrowdReading, error) {
	query := "SELECT " + crowdColumns + ` FROM crowd_readings c
		WHERE created_at = (SELECT MAX(created_at) FROM crowd_readings WHERE location_id = c.location_id)
		ORDER BY location_id`

	readings, err := r.query(ctx, query)
	if err != nil {
		return nil, err
	}

	// two readings may share a timestamp
	seen := make(map[string]bool, len(readings))
	latest := readings[:0]
	for _, c := range readings {
		if seen[c.LocationID] {
			continue
		}
		seen[c.LocationID] = true
		latest = append(latest, c)
	}
	return latest, nil
}

// SegmentPercentages returns historical percentages of readings whose location name contains segment
func (r *CrowdRepository) SegmentPercentages(ctx context.Context, segment string, since time.Time) ([]float64, error) {
	query := r.db.Rebind(`SELECT percentage FROM crowd_readings
		WHERE LOWER(location_name) LIKE ? AND created_at >= ?`)

	rows, err := r.db.QueryContext(ctx, query, "%"+strings.ToLower(segment)+"%", toMillis(since))
	if err != nil {
		return nil, fmt.Errorf("failed to query segment percentages: %w", err)
	}
	defer rows.Close()

	var values []float64
	for rows.Next() {
		var p int
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("failed to scan percentage: %w", err)
		}
		values = append(values, float64(p))
	}
	return values, rows.Err()
}

// DeleteOlderThan removes readings created before cutoff
func (r *CrowdRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	query := r.db.Rebind("DELETE FROM crowd_readings WHERE created_at < ?")
	res, err := r.db.ExecContext(ctx, query, toMillis(cutoff))
	if err != nil {
		return 0, fmt.Errorf("failed to delete crowd readings: %w", err)
	}
	return res.RowsAffected()
}

func (r *CrowdRepository) query(ctx context.Context, query string, args ...interface{}) ([]models.CrowdReading, error) {
	rows, err := r.db.QueryContext(ctx, r.db.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query crowd readings: %w", err)
	}
	defer rows.Close()

	var readings []models.CrowdReading
	for rows.Next() {
		var (
			c              models.CrowdReading
			lng, lat       float64
			density, level string
			factors, recs  string
			createdAt      int64
		)
		err := rows.Scan(
			&c.ID, &c.LocationID, &c.LocationName, &c.LocationType, &lng, &lat,
			&c.Occupancy.Current, &c.Occupancy.Capacity, &c.Percentage, &density, &level,
			&factors, &recs, &c.Risk.Score,
			&c.Trend.Direction, &c.Trend.RatePerMinute, &c.Trend.Confidence,
			&c.Predictions.Next15Min, &c.Predictions.Next30Min, &c.Predictions.Next60Min,
			&c.DataSource, &c.Accuracy, &createdAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan crowd reading: %w", err)
		}
		c.Coordinates = models.Coordinates{lng, lat}
		c.Density = models.DensityTier(density)
		c.Risk.Level = models.RiskLevel(level)
		if c.Risk.Factors, err = decodeList(factors); err != nil {
			return nil, fmt.Errorf("failed to decode risk factors of reading %s: %w", c.ID, err)
		}
		if c.Risk.Recommendations, err = decodeList(recs); err != nil {
			return nil, fmt.Errorf("failed to decode recommendations of reading %s: %w", c.ID, err)
		}
		c.CreatedAt = fromMillis(createdAt)
		readings = append(readings, c)
	}
	return readings, rows.Err()
}
