package routing

import (
	"context"
	"math"
)

const earthRadiusMeters = 6371000.0

// DefaultUrbanSpeedMps is the assumed average urban driving speed (40 km/h)
// used to turn straight-line distances into durations.
const DefaultUrbanSpeedMps = 40.0 * 1000 / 3600

// PlaneRouter estimates routes from great-circle distance at a fixed average
// speed. It never fails and is fully deterministic, which makes it both the
// offline/test backend and the degraded fallback when the road oracle is down.
type PlaneRouter struct {
	// SpeedMps is the assumed travel speed in meters per second.
	// Zero means DefaultUrbanSpeedMps.
	SpeedMps float64
	// DetourFactor inflates the straight-line distance to approximate road
	// geometry. Zero means 1.0 (no inflation).
	DetourFactor float64
}

func (p *PlaneRouter) Route(_ context.Context, from, to Point) (Leg, error) {
	speed := p.SpeedMps
	if speed <= 0 {
		speed = DefaultUrbanSpeedMps
	}
	factor := p.DetourFactor
	if factor <= 0 {
		factor = 1.0
	}
	dist := Haversine(from, to) * factor
	return Leg{
		DistanceMeters: dist,
		DurationSecs:   dist / speed,
		Approximate:    true,
	}, nil
}

// Haversine returns the great-circle distance in meters between two points.
func Haversine(a, b Point) float64 {
	dLat := radians(b.Lat - a.Lat)
	dLon := radians(b.Lon - a.Lon)

	rLat1 := radians(a.Lat)
	rLat2 := radians(b.Lat)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rLat1)*math.Cos(rLat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return earthRadiusMeters * c
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180.0
}
