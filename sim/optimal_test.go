package sim

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func optimalPolicy() *OptimalPolicy {
	return NewOptimalPolicy(testModel(defaultCostConfig()), &Clusterer{RadiusKm: 5}, 0)
}

func TestOptimal_MatchesSingleRequestToSingleDriver(t *testing.T) {
	p := optimalPolicy()
	r := makeRequest("r1", pt(73.0), pt(73.1), 0)
	d := makeDriver("d1", pt(73.01))

	as, err := p.ProposeAssignments(context.Background(), 0, []*Request{r}, []Host{{Driver: d}})

	assert.NoError(t, err)
	assert.Len(t, as, 1)
	assert.Equal(t, "r1", as[0].Request.ID)
	assert.Nil(t, as[0].Trip)
	assert.False(t, as[0].Dynamic)
}

func TestOptimal_PoolsAdjacentDestinationsViaDynamicInsertion(t *testing.T) {
	// A trip already heading to 73.1 can absorb a rider bound for 73.11 far
	// more cheaply than dispatching the distant idle driver.
	p := optimalPolicy()
	d1 := makeDriver("d1", pt(73.0))
	r1 := makeRequest("r1", pt(73.0), pt(73.1), 0)
	trip := &Trip{
		ID: "t1", Driver: d1, Capacity: 3,
		Stops: []Stop{
			{Kind: StopPickup, RequestID: "r1", Pos: r1.Origin},
			{Kind: StopDropoff, RequestID: "r1", Pos: r1.Destination},
		},
		Passengers: []*Request{r1},
	}
	d2 := makeDriver("d2", pt(74.0))
	r2 := makeRequest("r2", pt(73.0), pt(73.11), 1)

	as, err := p.ProposeAssignments(context.Background(), 1, []*Request{r2},
		[]Host{{Driver: d1, Trip: trip}, {Driver: d2}})

	assert.NoError(t, err)
	assert.Len(t, as, 1)
	a := as[0]
	assert.True(t, a.Dynamic)
	assert.Equal(t, "t1", a.Trip.ID)
	assert.Equal(t, "d1", a.Driver.ID)
	assert.Len(t, a.Stops, 4)
}

func TestOptimal_ClusterPruningSkipsFarTrips(t *testing.T) {
	// The only host trip heads ~100 km from the rider's destination, outside
	// the 5 km clustering radius, so no assignment is possible.
	p := optimalPolicy()
	d1 := makeDriver("d1", pt(73.0))
	r1 := makeRequest("r1", pt(73.0), pt(73.1), 0)
	trip := &Trip{
		ID: "t1", Driver: d1, Capacity: 3,
		Stops: []Stop{
			{Kind: StopPickup, RequestID: "r1", Pos: r1.Origin},
			{Kind: StopDropoff, RequestID: "r1", Pos: r1.Destination},
		},
		Passengers: []*Request{r1},
	}
	r2 := makeRequest("r2", pt(73.0), pt(74.0), 1)

	as, err := p.ProposeAssignments(context.Background(), 1, []*Request{r2},
		[]Host{{Driver: d1, Trip: trip}})

	assert.NoError(t, err)
	assert.Empty(t, as)
}

func TestOptimal_PicksCheapestWaitingRequest(t *testing.T) {
	// With one idle driver and two candidates, the globally cheapest
	// insertion wins regardless of arrival order.
	p := optimalPolicy()
	d := makeDriver("d1", pt(73.0))
	expensive := makeRequest("expensive", pt(73.5), pt(73.9), 0)
	cheap := makeRequest("cheap", pt(73.0), pt(73.05), 1)

	as, err := p.ProposeAssignments(context.Background(), 1, []*Request{expensive, cheap},
		[]Host{{Driver: d}})

	assert.NoError(t, err)
	assert.Len(t, as, 1)
	assert.Equal(t, "cheap", as[0].Request.ID)
}

func TestOptimal_InsertionKeepsSequenceValid(t *testing.T) {
	// Every proposed sequence must satisfy the pickup-before-dropoff and
	// capacity invariants for the existing passengers too.
	p := optimalPolicy()
	d := makeDriver("d1", pt(73.0))
	r1 := makeRequest("r1", pt(73.0), pt(73.1), 0)
	trip := &Trip{
		ID: "t1", Driver: d, Capacity: 2,
		Stops: []Stop{
			{Kind: StopPickup, RequestID: "r1", Pos: r1.Origin},
			{Kind: StopDropoff, RequestID: "r1", Pos: r1.Destination},
		},
		Passengers: []*Request{r1},
	}
	r2 := makeRequest("r2", pt(73.0), pt(73.11), 1)

	as, err := p.ProposeAssignments(context.Background(), 1, []*Request{r2},
		[]Host{{Driver: d, Trip: trip}})

	assert.NoError(t, err)
	assert.Len(t, as, 1)
	assert.True(t, validStopSequence(as[0].Stops, nil, 2))
}

func TestOptimal_RespectsFullTrips(t *testing.T) {
	p := optimalPolicy()
	d := makeDriver("d1", pt(73.0))
	trip := &Trip{
		ID: "t1", Driver: d, Capacity: 2,
		Stops: []Stop{
			{Kind: StopDropoff, RequestID: "a", Pos: pt(73.1)},
			{Kind: StopDropoff, RequestID: "b", Pos: pt(73.11)},
		},
		Passengers: []*Request{{ID: "a"}, {ID: "b"}},
	}
	r := makeRequest("r1", pt(73.0), pt(73.1), 0)

	as, err := p.ProposeAssignments(context.Background(), 0, []*Request{r}, []Host{{Driver: d, Trip: trip}})

	assert.NoError(t, err)
	assert.Empty(t, as)
}

func TestOptimal_InsertionBoundLimitsSearch(t *testing.T) {
	// With a bound of 0 positions beyond the head this degenerates to trying
	// the front insertions only; the policy must still return something
	// feasible rather than fail.
	bounded := NewOptimalPolicy(testModel(defaultCostConfig()), &Clusterer{RadiusKm: 5}, 1)
	d := makeDriver("d1", pt(73.0))
	r1 := makeRequest("r1", pt(73.0), pt(73.1), 0)
	trip := &Trip{
		ID: "t1", Driver: d, Capacity: 3,
		Stops: []Stop{
			{Kind: StopPickup, RequestID: "r1", Pos: r1.Origin},
			{Kind: StopDropoff, RequestID: "r1", Pos: r1.Destination},
		},
		Passengers: []*Request{r1},
	}
	r2 := makeRequest("r2", pt(73.0), pt(73.1), 1)

	as, err := bounded.ProposeAssignments(context.Background(), 1, []*Request{r2},
		[]Host{{Driver: d, Trip: trip}})

	assert.NoError(t, err)
	assert.Len(t, as, 1)
}

func TestOptimal_TripWithDroppedPassengerStillHostsNewRiders(t *testing.T) {
	// A capacity-3 trip that already dropped one rider off keeps serving:
	// the settled rider must not block evaluation of the remaining plan.
	p := optimalPolicy()
	d, trip := settledTrip()
	r := makeRequest("r3", pt(73.05), pt(73.1), 5)

	as, err := p.ProposeAssignments(context.Background(), 10, []*Request{r},
		[]Host{{Driver: d, Trip: trip}})

	assert.NoError(t, err)
	assert.Len(t, as, 1)
	a := as[0]
	assert.True(t, a.Dynamic)
	assert.Equal(t, "t1", a.Trip.ID)
	assert.Equal(t, "r3", a.Request.ID)
}

func TestOptimal_ClusterCentroidDrivesTripPruning(t *testing.T) {
	// Pruning goes through the destination partition of the waiting set, not
	// through each request alone: a rider whose destination sits just outside
	// the radius of the trip's drop-off is admitted once a fellow waiting
	// rider pulls their shared cluster centroid back within range.
	p := NewOptimalPolicy(testModel(defaultCostConfig()), &Clusterer{RadiusKm: 10}, 0)
	d := makeDriver("d1", pt(73.0))
	r1 := makeRequest("r1", pt(73.0), pt(74.0), 0)
	trip := &Trip{
		ID: "t1", Driver: d, Capacity: 3,
		Stops: []Stop{
			{Kind: StopPickup, RequestID: "r1", Pos: r1.Origin},
			{Kind: StopDropoff, RequestID: "r1", Pos: r1.Destination},
		},
		Passengers: []*Request{r1},
	}
	// ~10.6 km from the trip's drop-off, outside the radius on its own.
	far := makeRequest("far", pt(73.0), pt(74.095), 1)
	// Nearby destination, but unservable under its strict personal ceiling.
	near := makeRequest("near", pt(73.0), pt(74.01), 1)
	near.DetourMax = 0.5

	as, err := p.ProposeAssignments(context.Background(), 1, []*Request{far},
		[]Host{{Driver: d, Trip: trip}})
	assert.NoError(t, err)
	assert.Empty(t, as)

	as, err = p.ProposeAssignments(context.Background(), 1, []*Request{far, near},
		[]Host{{Driver: d, Trip: trip}})
	assert.NoError(t, err)
	assert.Len(t, as, 1)
	assert.Equal(t, "far", as[0].Request.ID)
}
