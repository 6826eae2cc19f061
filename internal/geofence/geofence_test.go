package geofence

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// Roughly 0.0009 degrees of latitude is 100 m.
const metersPerDegreeLat = EarthRadiusMeters * 3.141592653589793 / 180

func offsetLat(lat, meters float64) float64 {
	return lat + meters/metersPerDegreeLat
}

func TestCalculateDistance_SamePoint(t *testing.T) {
	assert.Equal(t, 0.0, CalculateDistance(24.8607, 67.0011, 24.8607, 67.0011))
}

func TestCalculateDistance_KnownPair(t *testing.T) {
	// Karachi to Lahore is roughly 1,030 km.
	d := CalculateDistance(24.8607, 67.0011, 31.5204, 74.3587)
	assert.InDelta(t, 1030000, d, 15000)
}

func TestCalculateDistance_Symmetric(t *testing.T) {
	a := CalculateDistance(24.86, 67.00, 24.87, 67.02)
	b := CalculateDistance(24.87, 67.02, 24.86, 67.00)
	assert.InDelta(t, a, b, 1e-9)
}

func TestIsWithinRadius(t *testing.T) {
	storeLat, storeLon := 24.8607, 67.0011

	t.Run("50m away is inside 100m", func(t *testing.T) {
		assert.True(t, IsWithinRadius(offsetLat(storeLat, 50), storeLon, storeLat, storeLon, 100))
	})

	t.Run("150m away is outside 100m", func(t *testing.T) {
		assert.False(t, IsWithinRadius(offsetLat(storeLat, 150), storeLon, storeLat, storeLon, 100))
	})

	t.Run("boundary is inclusive", func(t *testing.T) {
		lat := offsetLat(storeLat, 80)
		exact := CalculateDistance(lat, storeLon, storeLat, storeLon)
		assert.True(t, IsWithinRadius(lat, storeLon, storeLat, storeLon, exact))
	})
}

func TestFormatDistance(t *testing.T) {
	tests := []struct {
		name   string
		meters float64
		want   string
	}{
		{"zero", 0, "0 m"},
		{"rounds meters", 149.6, "150 m"},
		{"threshold stays meters", 1000, "1,000 m"},
		{"kilometers", 1500, "1.5 km"},
		{"large kilometers grouped", 1234567, "1,234.6 km"},
		{"negative clamps", -5, "0 m"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatDistance(tt.meters))
		})
	}
}
