// Package geo provides great-circle distance helpers for the proximity
// subsystem. All distances in this codebase are meters; call sites that need
// kilometers convert at the edge.
package geo

import (
	"math"

	"github.com/paulmach/orb"
)

// EarthRadiusMeters is the mean Earth radius used by the Haversine formula.
const EarthRadiusMeters = 6371000.0

// Distance returns the Haversine great-circle distance in meters between two
// points in lon/lat order.
func Distance(a, b orb.Point) float64 {
	return DistanceCoords(a.Lat(), a.Lon(), b.Lat(), b.Lon())
}

// DistanceCoords returns the Haversine great-circle distance in meters between
// two lat/lon coordinate pairs in degrees.
func DistanceCoords(lat1, lon1, lat2, lon2 float64) float64 {
	lat1Rad := lat1 * math.Pi / 180
	lat2Rad := lat2 * math.Pi / 180
	deltaLat := (lat2 - lat1) * math.Pi / 180
	deltaLon := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(deltaLat/2)*math.Sin(deltaLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Sin(deltaLon/2)*math.Sin(deltaLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadiusMeters * c
}
