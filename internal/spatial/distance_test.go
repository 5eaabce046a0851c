package spatial

import (
	"math"
	"testing"
)

func TestHaversineDistance(t *testing.T) {
	tests := []struct {
		name                   string
		lat1, lng1, lat2, lng2 float64
		want                   float64
		tolerance              float64
	}{
		{"same point", 40.7128, -74.0060, 40.7128, -74.0060, 0, 1e-6},
		{"one degree of latitude", 0, 0, 1, 0, 111195, 5},
		{"new york to london", 40.7128, -74.0060, 51.5074, -0.1278, 5570000, 10000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := HaversineDistance(tt.lat1, tt.lng1, tt.lat2, tt.lng2)
			if math.Abs(got-tt.want) > tt.tolerance {
				t.Errorf("HaversineDistance() = %.1f, want %.1f ± %.1f", got, tt.want, tt.tolerance)
			}
		})
	}
}

func TestBoundingBoxAround(t *testing.T) {
	lat, lng := 40.7128, -74.0060
	box := BoundingBoxAround(lat, lng, 1000)

	if !(box.MinLat < lat && lat < box.MaxLat && box.MinLng < lng && lng < box.MaxLng) {
		t.Fatalf("box %+v does not contain its center", box)
	}

	// every point on the circle must fall inside the box
	for deg := 0; deg < 360; deg += 15 {
		rad := float64(deg) * math.Pi / 180
		dLat := 1000 / EarthRadiusMeters * math.Cos(rad) * 180 / math.Pi
		dLng := 1000 / EarthRadiusMeters * math.Sin(rad) * 180 / math.Pi / math.Cos(lat*math.Pi/180)
		pLat, pLng := lat+dLat*0.999, lng+dLng*0.999
		if pLat < box.MinLat || pLat > box.MaxLat || pLng < box.MinLng || pLng > box.MaxLng {
			t.Errorf("bearing %d: (%f, %f) outside %+v", deg, pLat, pLng, box)
		}
	}

	polar := BoundingBoxAround(89.999, 0, 5000)
	if polar.MaxLat > 90 || polar.MinLng < -180 || polar.MaxLng > 180 {
		t.Errorf("polar box not clamped: %+v", polar)
	}
}

func TestBoundingBoxAroundAntimeridian(t *testing.T) {
	box := BoundingBoxAround(-18.14, 179.9999, 1000)
	if !box.CrossesAntimeridian() {
		t.Fatalf("box %+v does not wrap", box)
	}

	tests := []struct {
		name     string
		lat, lng float64
		want     bool
	}{
		{"center", -18.14, 179.9999, true},
		{"east of the line", -18.14, 179.9995, true},
		{"west of the line", -18.14, -179.9995, true},
		{"far west", -18.14, -179.5, false},
		{"far east", -18.14, 179.5, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := box.Contains(tt.lat, tt.lng); got != tt.want {
				t.Errorf("Contains(%v, %v) = %v, want %v", tt.lat, tt.lng, got, tt.want)
			}
		})
	}

	plain := BoundingBoxAround(40.7128, -74.0060, 1000)
	if plain.CrossesAntimeridian() || !plain.Contains(40.7128, -74.0060) {
		t.Errorf("plain box %+v", plain)
	}
}

func TestWithinRadius(t *testing.T) {
	if !WithinRadius(0, 0, 0.008, 0, 1000) {
		t.Error("890m point reported outside a 1km radius")
	}
	if WithinRadius(0, 0, 0.01, 0, 1000) {
		t.Error("1.1km point reported inside a 1km radius")
	}
}
