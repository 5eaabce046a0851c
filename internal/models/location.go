package models

import "fmt"

// Coordinates is a GeoJSON-style position: [lng, lat]
type Coordinates []float64

// Lng returns the longitude, or 0 when the position is malformed
func (c Coordinates) Lng() float64 {
	if len(c) != 2 {
		return 0
	}
	return c[0]
}

// Lat returns the latitude, or 0 when the position is malformed
func (c Coordinates) Lat() float64 {
	if len(c) != 2 {
		return 0
	}
	return c[1]
}

// Validate checks length and WGS84 ranges
func (c Coordinates) Validate() error {
	if len(c) != 2 {
		return fmt.Errorf("%w: coordinates must be [lng, lat]", ErrInvalidInput)
	}
	if c[0] < -180 || c[0] > 180 {
		return fmt.Errorf("%w: longitude %.6f out of range", ErrInvalidInput, c[0])
	}
	if c[1] < -90 || c[1] > 90 {
		return fmt.Errorf("%w: latitude %.6f out of range", ErrInvalidInput, c[1])
	}
	return nil
}

// Place is a named point used as a journey endpoint
type Place struct {
	Name        string      `json:"name,omitempty"`
	Coordinates Coordinates `json:"coordinates" binding:"required"`
}
