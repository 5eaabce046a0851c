package repository

import (
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/safecommute/safecommute-backend-go/internal/spatial"
)

// Timestamps are stored as unix milliseconds so both drivers agree on the column type.
func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func nullMillis(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixMilli(), Valid: true}
}

func encodeList(values []string) string {
	if values == nil {
		values = []string{}
	}
	b, _ := json.Marshal(values)
	return string(b)
}

func decodeList(raw string) ([]string, error) {
	out := []string{}
	if raw == "" {
		return out, nil
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func encodeJSON(v interface{}) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// bboxCondition filters lat/lng columns to a bounding box, splitting the
// longitude range when the box wraps the antimeridian
func bboxCondition(box spatial.BoundingBox) (string, []interface{}) {
	if box.CrossesAntimeridian() {
		return "lat BETWEEN ? AND ? AND (lng >= ? OR lng <= ?)",
			[]interface{}{box.MinLat, box.MaxLat, box.MinLng, box.MaxLng}
	}
	return "lat BETWEEN ? AND ? AND lng BETWEEN ? AND ?",
		[]interface{}{box.MinLat, box.MaxLat, box.MinLng, box.MaxLng}
}

func where(conditions []string) string {
	if len(conditions) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(conditions, " AND ")
}

func offset(page, limit int) int {
	return (page - 1) * limit
}
