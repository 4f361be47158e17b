package sim

import (
	"context"

	"github.com/ridepool-sim/ridepool-sim/sim/routing"
)

// Shared fixtures. Geometry lives on the equator so longitude degrees map to
// a fixed ~111.3 km and distances are easy to reason about.

const testSpeedMps = 10.0

func pt(lon float64) Point {
	return Point{Lat: 0, Lon: lon}
}

func testModel(cfg CostConfig) *CostModel {
	return NewCostModel(&routing.PlaneRouter{SpeedMps: testSpeedMps}, cfg)
}

func defaultCostConfig() CostConfig {
	return CostConfig{
		WaitingCostPerSec:   0.02,
		DetourMax:           1.5,
		DetourPenaltyOnset:  1.25,
		DetourPenaltyPerSec: 0.05,
		PenaltyCurve:        PenaltyLinear,
		ExpiryPenalty:       50.0,
	}
}

func testTier() Tier {
	return Tier{ID: "normal", Name: "Normal", CostPerMin: 6.0, ArrivalRate: 0.005, SpeedFactor: 1.0}
}

func makeDriver(id string, pos Point) *Driver {
	return &Driver{ID: id, Tier: testTier(), Position: pos, Status: DriverIdle}
}

func makeRequest(id string, origin, dest Point, arrival float64) *Request {
	return &Request{
		ID:          id,
		Origin:      origin,
		Destination: dest,
		ArrivalTime: arrival,
		Patience:    3600,
		DetourMax:   1.5,
		Status:      RequestWaiting,
	}
}

// settledTrip builds a mid-flight trip that has already dropped one passenger
// off: the driver sits at the visited drop-off with one rider still onboard
// and a seat to spare.
func settledTrip() (*Driver, *Trip) {
	settled := makeRequest("settled", pt(73.0), pt(73.05), 0)
	settled.Status = RequestCompleted
	settled.CompletionTime = 10
	onboard := makeRequest("onboard", pt(73.0), pt(73.1), 0)
	onboard.Status = RequestInTrip
	d := makeDriver("d1", pt(73.05))
	d.Status = DriverInTrip
	trip := &Trip{
		ID:       "t1",
		Driver:   d,
		Capacity: 3,
		Stops: []Stop{
			{Kind: StopDropoff, RequestID: onboard.ID, Pos: onboard.Destination},
		},
		Visited: []Stop{
			{Kind: StopPickup, RequestID: settled.ID, Pos: settled.Origin},
			{Kind: StopPickup, RequestID: onboard.ID, Pos: onboard.Origin},
			{Kind: StopDropoff, RequestID: settled.ID, Pos: settled.Destination},
		},
		Passengers: []*Request{settled, onboard},
	}
	return d, trip
}

func testSimulator(policy AssignmentPolicy, model *CostModel) *Simulator {
	return NewSimulator(context.Background(), policy, model, 3, 0, nil)
}

func testScenario() *Config {
	cfg := DefaultConfig()
	cfg.Duration = 600
	cfg.MetricsInterval = 100
	cfg.Region = Region{LatMin: -0.05, LatMax: 0.05, LonMin: 73.0, LonMax: 73.1}
	return cfg
}
