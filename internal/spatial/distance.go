package spatial

import (
	"math"

	"github.com/golang/geo/s1"
	"github.com/golang/geo/s2"
)

// HaversineDistance calculates the great-circle distance between two points in meters
func HaversineDistance(lat1, lon1, lat2, lon2 float64) float64 {
	p1 := s2.LatLngFromDegrees(lat1, lon1)
	p2 := s2.LatLngFromDegrees(lat2, lon2)
	return p1.Distance(p2).Radians() * EarthRadiusMeters
}

// BoundingBox is a lat/lng rectangle in degrees. When it crosses the
// antimeridian MinLng is greater than MaxLng.
type BoundingBox struct {
	MinLat, MaxLat float64
	MinLng, MaxLng float64
}

// CrossesAntimeridian reports whether the longitude range wraps past ±180
func (b BoundingBox) CrossesAntimeridian() bool {
	return b.MinLng > b.MaxLng
}

// Contains reports whether (lat, lng) lies inside the box
func (b BoundingBox) Contains(lat, lng float64) bool {
	if lat < b.MinLat || lat > b.MaxLat {
		return false
	}
	if b.CrossesAntimeridian() {
		return lng >= b.MinLng || lng <= b.MaxLng
	}
	return lng >= b.MinLng && lng <= b.MaxLng
}

// BoundingBoxAround returns a rectangle that contains the circle of radius
// meters around (lat, lng). Used to prefilter rows before exact distance checks.
func BoundingBoxAround(lat, lng, radiusMeters float64) BoundingBox {
	center := s2.LatLngFromDegrees(lat, lng)
	angle := s1.Angle(radiusMeters / EarthRadiusMeters)
	rect := s2.RectFromCenterSize(center, s2.LatLngFromAngles(2*angle, 2*angle))

	box := BoundingBox{
		MinLat: math.Max(-90, rect.Lo().Lat.Degrees()),
		MaxLat: math.Min(90, rect.Hi().Lat.Degrees()),
		MinLng: -180,
		MaxLng: 180,
	}

	// a circle over a pole covers every longitude
	if lat+angle.Degrees() >= 90 || lat-angle.Degrees() <= -90 {
		return box
	}

	// longitude degrees shrink towards the poles
	lngPad := angle.Degrees() / math.Cos(center.Lat.Radians())
	if lngPad >= 180 {
		return box
	}
	box.MinLng = wrapLng(lng - lngPad)
	box.MaxLng = wrapLng(lng + lngPad)
	return box
}

func wrapLng(lng float64) float64 {
	switch {
	case lng < -180:
		return lng + 360
	case lng > 180:
		return lng - 360
	default:
		return lng
	}
}

// WithinRadius reports whether (lat2, lng2) lies within radius meters of (lat1, lng1)
func WithinRadius(lat1, lng1, lat2, lng2, radiusMeters float64) bool {
	return HaversineDistance(lat1, lng1, lat2, lng2) <= radiusMeters
}

// Constants
const (
	EarthRadiusMeters = 6371000.0 // Earth's mean radius in meters
)
