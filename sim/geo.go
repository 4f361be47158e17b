package sim

import "github.com/ridepool-sim/ridepool-sim/sim/routing"

// Point is a geographic coordinate. It is shared with the routing package so
// simulation entities can be handed to routers without conversion.
type Point = routing.Point

// distanceMeters returns the great-circle distance between two points.
func distanceMeters(a, b Point) float64 {
	return routing.Haversine(a, b)
}
