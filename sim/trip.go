package sim

import "fmt"

// StopKind tags a waypoint in a trip's stop sequence.
type StopKind string

const (
	StopPickup  StopKind = "pickup"
	StopDropoff StopKind = "dropoff"
)

// Stop is one waypoint in a trip: a pickup or drop-off for a specific request.
type Stop struct {
	Kind      StopKind
	RequestID string
	Pos       Point
}

// Trip is a pooled vehicle run. It is owned exclusively by its driver for its
// lifetime and is destroyed once the last passenger is dropped off.
type Trip struct {
	ID       string
	Driver   *Driver
	Capacity int

	// Stops is the remaining stop sequence in visit order. Visited stops are
	// moved to Visited as the driver reaches them.
	Stops   []Stop
	Visited []Stop

	// Passengers holds every request on this trip (matched or on board),
	// in commit order.
	Passengers []*Request
	Onboard    int

	CreatedAt   float64
	CompletedAt float64

	// TotalCost is the committed cost of the trip as last evaluated by the
	// cost model (waiting + routing + detour penalty).
	TotalCost    float64
	CostShares   map[string]float64
	DetourRatios map[string]float64

	// plan increments every time the remaining stop sequence is replaced,
	// invalidating stop-arrival events scheduled against the old sequence.
	plan uint64
}

// SpareCapacity returns the number of additional passengers the trip can take.
func (t *Trip) SpareCapacity() int {
	return t.Capacity - len(t.Passengers)
}

// NextStop returns the stop the driver is currently heading to, or nil when
// the sequence is exhausted.
func (t *Trip) NextStop() *Stop {
	if len(t.Stops) == 0 {
		return nil
	}
	return &t.Stops[0]
}

// passenger returns the trip's request with the given id, or nil.
func (t *Trip) passenger(id string) *Request {
	for _, p := range t.Passengers {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (t Trip) String() string {
	return fmt.Sprintf("Trip(ID: %s, Driver: %s, Passengers: %d/%d, RemainingStops: %d)",
		t.ID, t.Driver.ID, len(t.Passengers), t.Capacity, len(t.Stops))
}

// onboardIDs returns the set of passengers currently in the vehicle.
func (t *Trip) onboardIDs() map[string]bool {
	ids := make(map[string]bool)
	for _, s := range t.Visited {
		if s.Kind == StopPickup {
			ids[s.RequestID] = true
		}
	}
	for _, s := range t.Visited {
		if s.Kind == StopDropoff {
			delete(ids, s.RequestID)
		}
	}
	return ids
}

// activePassengers returns the passengers whose drop-off has not been visited
// yet. Settled passengers stay in Passengers for cost accounting but have no
// stake in candidate stop sequences.
func (t *Trip) activePassengers() []*Request {
	dropped := make(map[string]bool)
	for _, s := range t.Visited {
		if s.Kind == StopDropoff {
			dropped[s.RequestID] = true
		}
	}
	var out []*Request
	for _, p := range t.Passengers {
		if !dropped[p.ID] {
			out = append(out, p)
		}
	}
	return out
}

// validStopSequence checks the structural invariants of a candidate remaining
// stop sequence: every pickup precedes its own drop-off, a drop-off without a
// prior pickup is only valid for a passenger already on board, and the
// on-board count never exceeds capacity at any point.
func validStopSequence(stops []Stop, onboard map[string]bool, capacity int) bool {
	picked := make(map[string]bool, len(onboard))
	for id := range onboard {
		picked[id] = true
	}
	count := len(onboard)
	dropped := make(map[string]bool)
	for _, s := range stops {
		switch s.Kind {
		case StopPickup:
			if picked[s.RequestID] {
				return false
			}
			picked[s.RequestID] = true
			count++
			if count > capacity {
				return false
			}
		case StopDropoff:
			if !picked[s.RequestID] || dropped[s.RequestID] {
				return false
			}
			dropped[s.RequestID] = true
			count--
		default:
			return false
		}
	}
	return count == 0
}
