// Package geofence provides great-circle distance helpers used to advise
// whether a courier is standing at the store before completing a delivery.
package geofence

import (
	"math"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// EarthRadiusMeters is the mean Earth radius used by the haversine formula.
const EarthRadiusMeters = 6371000.0

// DefaultRadiusMeters is the radius applied when no radius is configured.
const DefaultRadiusMeters = 100.0

// CalculateDistance returns the haversine distance in meters between two coordinates.
func CalculateDistance(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := toRadians(lat1)
	phi2 := toRadians(lat2)
	dPhi := toRadians(lat2 - lat1)
	dLambda := toRadians(lon2 - lon1)

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return EarthRadiusMeters * c
}

// IsWithinRadius reports whether the two coordinates are at most radiusMeters apart.
// The boundary is inclusive.
func IsWithinRadius(lat1, lon1, lat2, lon2, radiusMeters float64) bool {
	return CalculateDistance(lat1, lon1, lat2, lon2) <= radiusMeters
}

var printer = message.NewPrinter(language.English)

// FormatDistance renders a distance for display, switching to kilometers above 1000 m.
func FormatDistance(meters float64) string {
	if meters < 0 {
		meters = 0
	}
	if meters <= 1000 {
		return printer.Sprintf("%d m", int64(math.Round(meters)))
	}
	return printer.Sprintf("%.1f km", meters/1000)
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}
