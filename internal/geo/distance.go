// Package geo holds great-circle distance math for listings.
package geo

import (
	"math"

	"github.com/5w1tchy/book-thrift/internal/models"
)

// EarthRadiusMeters is the mean Earth radius used by Haversine.
const EarthRadiusMeters = 6_371_000.0

func radians(deg float64) float64 { return deg * math.Pi / 180 }

// Haversine returns the great-circle distance between a and b in meters.
func Haversine(a, b models.Coordinates) float64 {
	lat1, lon1 := radians(a.Lat), radians(a.Lon)
	lat2, lon2 := radians(b.Lat), radians(b.Lon)

	dLat := lat2 - lat1
	dLon := lon2 - lon1
	h := math.Pow(math.Sin(dLat/2), 2) + math.Cos(lat1)*math.Cos(lat2)*math.Pow(math.Sin(dLon/2), 2)
	return 2 * math.Asin(math.Sqrt(h)) * EarthRadiusMeters
}

// Distance is Haversine over optional inputs: nil if any of them is missing.
func Distance(lat1, lon1, lat2, lon2 *float64) *float64 {
	if lat1 == nil || lon1 == nil || lat2 == nil || lon2 == nil {
		return nil
	}
	d := Haversine(
		models.Coordinates{Lat: *lat1, Lon: *lon1},
		models.Coordinates{Lat: *lat2, Lon: *lon2},
	)
	return &d
}

// Between is Distance for optional points.
func Between(a, b *models.Coordinates) *float64 {
	if a == nil || b == nil {
		return nil
	}
	d := Haversine(*a, *b)
	return &d
}
