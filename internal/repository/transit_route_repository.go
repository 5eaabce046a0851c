package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/safecommute/safecommute-backend-go/internal/database"
	"github.com/safecommute/safecommute-backend-go/internal/models"
)

const transitRouteColumns = `route_id, name, type, color, status, stops, schedule, performance, capacity,
	created_at, updated_at`

var transitRouteSort = map[string]string{
	"":        "name",
	"name":    "name",
	"routeId": "route_id",
	"type":    "type",
}

// TransitRouteRepository handles database operations for network routes.
// Stops, schedule, performance and capacity are stored as JSON documents.
type TransitRouteRepository struct {
	db *database.DB
}

// NewTransitRouteRepository creates a new transit route repository
func NewTransitRouteRepository(db *database.DB) *TransitRouteRepository {
	return &TransitRouteRepository{db: db}
}

// Upsert inserts a route or replaces it, keeping created_at
func (r *TransitRouteRepository) Upsert(ctx context.Context, route *models.TransitRoute) error {
	docs := make([]string, 0, 4)
	for _, v := range []interface{}{route.Stops, route.Schedule, route.Performance, route.Capacity} {
		doc, err := encodeJSON(v)
		if err != nil {
			return fmt.Errorf("failed to encode route %s: %w", route.RouteID, err)
		}
		docs = append(docs, doc)
	}

	query := r.db.Rebind(`INSERT INTO transit_routes (` + transitRouteColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (route_id) DO UPDATE SET
			name = excluded.name,
			type = excluded.type,
			color = excluded.color,
			status = excluded.status,
			stops = excluded.stops,
			schedule = excluded.schedule,
			performance = excluded.performance,
			capacity = excluded.capacity,
			updated_at = excluded.updated_at`)

	_, err := r.db.ExecContext(ctx, query,
		route.RouteID, route.Name, route.Type, route.Color, route.Status,
		docs[0], docs[1], docs[2], docs[3],
		toMillis(route.CreatedAt), toMillis(route.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert route: %w", err)
	}
	return nil
}

// Get retrieves a route by ID
func (r *TransitRouteRepository) Get(ctx context.Context, id string) (*models.TransitRoute, error) {
	routes, err := r.query(ctx, "SELECT "+transitRouteColumns+" FROM transit_routes WHERE route_id = ?", id)
	if err != nil {
		return nil, err
	}
	if len(routes) == 0 {
		return nil, fmt.Errorf("route %s: %w", id, models.ErrNotFound)
	}
	return &routes[0], nil
}

// List retrieves routes with filtering, sorting and pagination
func (r *TransitRouteRepository) List(ctx context.Context, filter models.TransitRouteFilter) ([]models.TransitRoute, int, error) {
	var conditions []string
	var args []interface{}

	if filter.Type != "" {
		conditions = append(conditions, "type = ?")
		args = append(args, filter.Type)
	}
	if filter.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, filter.Status)
	}

	var total int
	countQuery := r.db.Rebind("SELECT COUNT(*) FROM transit_routes" + where(conditions))
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count routes: %w", err)
	}

	column, ok := transitRouteSort[filter.Sort]
	if !ok {
		return nil, 0, fmt.Errorf("%w: cannot sort routes by %q", models.ErrInvalidInput, filter.Sort)
	}
	order := "ASC"
	if filter.Order == "desc" {
		order = "DESC"
	}

	page, limit := models.Normalize(filter.Page, filter.Limit)
	query := "SELECT " + transitRouteColumns + " FROM transit_routes" + where(conditions) +
		" ORDER BY " + column + " " + order + ", route_id LIMIT ? OFFSET ?"
	args = append(args, limit, offset(page, limit))

	routes, err := r.query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	return routes, total, nil
}

// Active returns every route currently in service
func (r *TransitRouteRepository) Active(ctx context.Context) ([]models.TransitRoute, error) {
	return r.query(ctx, "SELECT "+transitRouteColumns+" FROM transit_routes WHERE status = ? ORDER BY route_id",
		models.RouteStatusActive)
}

func (r *TransitRouteRepository) query(ctx context.Context, query string, args ...interface{}) ([]models.TransitRoute, error) {
	rows, err := r.db.QueryContext(ctx, r.db.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query routes: %w", err)
	}
	defer rows.Close()

	var routes []models.TransitRoute
	for rows.Next() {
		var (
			t                                      models.TransitRoute
			stops, schedule, performance, capacity string
			createdAt, updatedAt                   int64
		)
		err := rows.Scan(
			&t.RouteID, &t.Name, &t.Type, &t.Color, &t.Status,
			&stops, &schedule, &performance, &capacity, &createdAt, &updatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan route: %w", err)
		}

		docs := []struct {
			raw string
			dst interface{}
		}{
			{stops, &t.Stops},
			{schedule, &t.Schedule},
			{performance, &t.Performance},
			{capacity, &t.Capacity},
		}
		for _, d := range docs {
			if err := json.Unmarshal([]byte(d.raw), d.dst); err != nil {
				return nil, fmt.Errorf("failed to decode route %s: %w", t.RouteID, err)
			}
		}
		if t.Stops == nil {
			t.Stops = []models.Stop{}
		}

		t.CreatedAt = fromMillis(createdAt)
		t.UpdatedAt = fromMillis(updatedAt)
		routes = append(routes, t)
	}
	return routes, rows.Err()
}
