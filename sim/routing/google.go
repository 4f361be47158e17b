package routing

import (
	"context"
	"fmt"

	"googlemaps.github.io/maps"
)

// GoogleRouter resolves routes through the Google Maps Directions API.
// It is an alternative oracle backend to OSRM for deployments without a
// self-hosted routing server.
type GoogleRouter struct {
	client *maps.Client
}

// NewGoogleRouter creates a GoogleRouter with the given API key.
func NewGoogleRouter(apiKey string) (*GoogleRouter, error) {
	client, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create maps client: %w", err)
	}
	return &GoogleRouter{client: client}, nil
}

func (g *GoogleRouter) Route(ctx context.Context, from, to Point) (Leg, error) {
	req := &maps.DirectionsRequest{
		Origin:      fmt.Sprintf("%f,%f", from.Lat, from.Lon),
		Destination: fmt.Sprintf("%f,%f", to.Lat, to.Lon),
		Mode:        maps.TravelModeDriving,
	}

	routes, _, err := g.client.Directions(ctx, req)
	if err != nil {
		return Leg{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(routes) == 0 || len(routes[0].Legs) == 0 {
		return Leg{}, fmt.Errorf("%w: no route found", ErrUnavailable)
	}

	leg := routes[0].Legs[0]
	return Leg{
		DistanceMeters: float64(leg.Distance.Meters),
		DurationSecs:   leg.Duration.Seconds(),
	}, nil
}
