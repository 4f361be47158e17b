package sim

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func recordKinds(records []Record) []RecordKind {
	out := make([]RecordKind, len(records))
	for i, r := range records {
		out[i] = r.Kind
	}
	return out
}

func TestSimulator_SingleRequestLifecycle(t *testing.T) {
	m := testModel(defaultCostConfig())
	s := testSimulator(NewFCFSPolicy(m), m)

	d := makeDriver("d1", pt(73.0))
	r := makeRequest("r1", pt(73.0), pt(73.1), 0)
	s.Schedule(&DriverArrivalEvent{At: 0, Driver: d})
	s.Schedule(&RequestArrivalEvent{At: 5, Request: r})

	s.Run(100000)

	assert.Equal(t, RequestCompleted, r.Status)
	assert.Equal(t, "d1", r.AssignedDriver)
	assert.Equal(t, DriverIdle, d.Status)
	assert.Len(t, s.CompletedTrips, 1)
	assert.Equal(t, 1, len(s.CompletedTrips[0].Passengers))

	kinds := recordKinds(s.Records())
	assert.Equal(t, []RecordKind{
		RecordDriverArrived,
		RecordRequestArrived,
		RecordMatched,
		RecordPickup,
		RecordDropoff,
		RecordTripCompleted,
	}, kinds)

	snap := s.Metrics.Snapshot(s.Clock, s.Live())
	assert.Equal(t, 1.0, snap.MatchRate)
	assert.Equal(t, 1.0, snap.AvgPoolSize)
}

func TestSimulator_RequestExpiresWithoutDrivers(t *testing.T) {
	m := testModel(defaultCostConfig())
	s := testSimulator(NewFCFSPolicy(m), m)

	r := makeRequest("r1", pt(73.0), pt(73.1), 0)
	r.Patience = 120
	s.Schedule(&RequestArrivalEvent{At: 0, Request: r})

	s.Run(1000)

	assert.Equal(t, RequestExpired, r.Status)
	assert.Empty(t, s.Waiting)
	snap := s.Metrics.Snapshot(s.Clock, s.Live())
	assert.Equal(t, 1, snap.Expired)
	assert.Equal(t, 0.0, snap.MatchRate)
}

func TestSimulator_ExpiryIsStaleAfterMatch(t *testing.T) {
	m := testModel(defaultCostConfig())
	s := testSimulator(NewFCFSPolicy(m), m)

	d := makeDriver("d1", pt(73.0))
	r := makeRequest("r1", pt(73.0), pt(73.1), 0)
	r.Patience = 60
	s.Schedule(&DriverArrivalEvent{At: 0, Driver: d})
	s.Schedule(&RequestArrivalEvent{At: 0, Request: r})

	s.Run(100000)

	// The expiry event fired at t=60 but the request had long been matched.
	assert.Equal(t, RequestCompleted, r.Status)
	snap := s.Metrics.Snapshot(s.Clock, s.Live())
	assert.Equal(t, 0, snap.Expired)
}

func TestSimulator_DriverCapDropsExtraArrivals(t *testing.T) {
	m := testModel(defaultCostConfig())
	s := NewSimulator(context.Background(), NewFCFSPolicy(m), m, 3, 2, nil)

	for i := 0; i < 5; i++ {
		s.Schedule(&DriverArrivalEvent{At: float64(i), Driver: makeDriver(string(rune('a'+i)), pt(73.0))})
	}
	s.Run(100)

	assert.Len(t, s.IdleDrivers, 2)
	snap := s.Metrics.Snapshot(s.Clock, s.Live())
	assert.Equal(t, 2, snap.Drivers)
}

func TestSimulator_ClockNeverRewinds(t *testing.T) {
	m := testModel(defaultCostConfig())
	s := testSimulator(NewFCFSPolicy(m), m)

	s.AdvanceTo(500)
	assert.Equal(t, 500.0, s.Clock)

	// An event behind the clock is dropped, not executed.
	s.Schedule(&RequestArrivalEvent{At: 100, Request: makeRequest("r1", pt(73.0), pt(73.1), 100)})
	s.Run(1000)

	assert.Empty(t, s.Waiting)
	assert.Empty(t, s.Records())
	assert.Equal(t, 1000.0, s.Clock)
}

func TestEventQueue_OrdersByTimeThenInsertion(t *testing.T) {
	m := testModel(defaultCostConfig())
	s := testSimulator(NewFCFSPolicy(m), m)

	// Three requests, two at the same timestamp. No drivers, so arrival
	// order is directly visible in the records.
	s.Schedule(&RequestArrivalEvent{At: 20, Request: makeRequest("late", pt(73.0), pt(73.1), 20)})
	s.Schedule(&RequestArrivalEvent{At: 10, Request: makeRequest("first", pt(73.0), pt(73.1), 10)})
	s.Schedule(&RequestArrivalEvent{At: 10, Request: makeRequest("second", pt(73.0), pt(73.1), 10)})

	s.Run(50)

	records := s.Records()
	assert.Len(t, records, 3)
	assert.Equal(t, "first", records[0].RequestID)
	assert.Equal(t, "second", records[1].RequestID)
	assert.Equal(t, "late", records[2].RequestID)
}

func TestSimulator_PoolingEmitsDynamicInsertion(t *testing.T) {
	m := testModel(defaultCostConfig())
	clusterer := &Clusterer{RadiusKm: 5}
	s := testSimulator(NewOptimalPolicy(m, clusterer, 0), m)

	// One driver, two riders with adjacent destinations arriving while the
	// first trip is underway.
	s.Schedule(&DriverArrivalEvent{At: 0, Driver: makeDriver("d1", pt(73.0))})
	s.Schedule(&RequestArrivalEvent{At: 0, Request: makeRequest("r1", pt(73.0), pt(73.1), 0)})
	s.Schedule(&RequestArrivalEvent{At: 10, Request: makeRequest("r2", pt(73.0), pt(73.11), 10)})

	s.Run(100000)

	kinds := recordKinds(s.Records())
	assert.Contains(t, kinds, RecordDynamicInsertion)
	assert.Len(t, s.CompletedTrips, 1)
	assert.Len(t, s.CompletedTrips[0].Passengers, 2)

	snap := s.Metrics.Snapshot(s.Clock, s.Live())
	assert.Equal(t, 1.0, snap.MatchRate)
	assert.Equal(t, 2.0, snap.AvgPoolSize)
	assert.Equal(t, 1, snap.DynamicInsertions)
}

func TestSimulator_CostSharesSumToTripCost(t *testing.T) {
	m := testModel(defaultCostConfig())
	clusterer := &Clusterer{RadiusKm: 5}
	s := testSimulator(NewOptimalPolicy(m, clusterer, 0), m)

	s.Schedule(&DriverArrivalEvent{At: 0, Driver: makeDriver("d1", pt(73.0))})
	s.Schedule(&RequestArrivalEvent{At: 0, Request: makeRequest("r1", pt(73.0), pt(73.1), 0)})
	s.Schedule(&RequestArrivalEvent{At: 10, Request: makeRequest("r2", pt(73.0), pt(73.11), 10)})

	s.Run(100000)

	assert.Len(t, s.CompletedTrips, 1)
	trip := s.CompletedTrips[0]
	var sum float64
	for _, share := range trip.CostShares {
		sum += share
	}
	assert.InDelta(t, trip.TotalCost, sum, 1e-6)
}
