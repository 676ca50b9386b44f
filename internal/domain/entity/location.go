// Package entity contains the core business objects of the project.
package entity

import (
	"math"
	"time"

	"github.com/paulmach/orb"
)

// Location is an immutable snapshot of a device position, produced by a
// location source (real or simulated).
type Location struct {
	Latitude  float64   `json:"latitude"`            // The geographic latitude in degrees.
	Longitude float64   `json:"longitude"`           // The geographic longitude in degrees.
	Accuracy  float64   `json:"accuracy"`            // The horizontal accuracy radius in meters.
	Heading   *float64  `json:"heading,omitempty"`   // Direction of travel in degrees from north, if known.
	Speed     *float64  `json:"speed,omitempty"`     // Ground speed in meters per second, if known.
	Timestamp time.Time `json:"timestamp"`           // When the fix was observed.
}

// Point returns the location as an orb.Point in lon/lat order, matching the
// GeoJSON-style wire format used by the location server.
func (l Location) Point() orb.Point {
	return orb.Point{l.Longitude, l.Latitude}
}

// IsValid checks that the coordinates are within Earth bounds and not NaN/Inf.
func (l Location) IsValid() bool {
	if math.IsNaN(l.Latitude) || math.IsNaN(l.Longitude) ||
		math.IsInf(l.Latitude, 0) || math.IsInf(l.Longitude, 0) {
		return false
	}

	return l.Latitude >= -90 && l.Latitude <= 90 &&
		l.Longitude >= -180 && l.Longitude <= 180
}
