// Package routing wraps the external travel-time/distance oracle behind a
// small Router interface, with caching, retry and fallback layers.
package routing

import (
	"context"
	"errors"
	"fmt"
)

// Point is a geographic coordinate in decimal degrees.
type Point struct {
	Lat float64 `json:"lat" yaml:"lat"`
	Lon float64 `json:"lon" yaml:"lon"`
}

// Leg is the result of a single origin->destination routing query.
// Approximate is set when the value came from the straight-line fallback
// rather than the road network oracle.
type Leg struct {
	DistanceMeters float64
	DurationSecs   float64
	Approximate    bool
}

// Router resolves travel distance and duration between two coordinates.
// Implementations must be safe for concurrent use: both policy simulators
// issue lookups in parallel.
type Router interface {
	Route(ctx context.Context, from, to Point) (Leg, error)
}

// ErrUnavailable is returned when the routing oracle cannot be reached or
// rejects the query. Callers recover via RetryRouter.
var ErrUnavailable = errors.New("routing unavailable")

// RoundCoord rounds a coordinate to 5 decimal places (~1m), the precision
// used for cache keys.
func RoundCoord(v float64) float64 {
	if v < 0 {
		return float64(int(v*100000-0.5)) / 100000
	}
	return float64(int(v*100000+0.5)) / 100000
}

// CacheKey builds the canonical cache key for an origin/destination pair.
func CacheKey(from, to Point) string {
	return fmt.Sprintf("%.5f,%.5f->%.5f,%.5f",
		RoundCoord(from.Lat), RoundCoord(from.Lon),
		RoundCoord(to.Lat), RoundCoord(to.Lon))
}
