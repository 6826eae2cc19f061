package delivery

import "github.com/odyssey-erp/fieldops/internal/geofence"

// GeofenceResult is the advisory outcome of checking a courier's position
// against the store. Verifiable is false when the store has no coordinates;
// the caller may always proceed regardless of Within.
type GeofenceResult struct {
	Verifiable   bool    `json:"verifiable"`
	Within       bool    `json:"within"`
	Distance     float64 `json:"distanceMeters"`
	Formatted    string  `json:"distance"`
	RadiusMeters float64 `json:"radiusMeters"`
}

// VerifyLocation compares the courier's position with the order's store.
func VerifyLocation(o Order, lat, lon, radiusMeters float64) GeofenceResult {
	if radiusMeters <= 0 {
		radiusMeters = geofence.DefaultRadiusMeters
	}
	res := GeofenceResult{RadiusMeters: radiusMeters}
	if !o.HasCoordinates() {
		return res
	}
	res.Verifiable = true
	res.Distance = geofence.CalculateDistance(lat, lon, *o.StoreLatitude, *o.StoreLongitude)
	res.Within = geofence.IsWithinRadius(lat, lon, *o.StoreLatitude, *o.StoreLongitude, radiusMeters)
	res.Formatted = geofence.FormatDistance(res.Distance)
	return res
}
