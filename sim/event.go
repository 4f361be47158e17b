// Discrete events and the record feed. Events mutate simulator state at a
// virtual timestamp; records are the externally visible trace of what
// happened, tagged by policy at the coordinator level.

package sim

import log "github.com/sirupsen/logrus"

// Event is a scheduled state transition at a virtual time.
type Event interface {
	Time() float64
	Execute(s *Simulator)
}

// RecordKind enumerates the observable simulation occurrences.
type RecordKind string

const (
	RecordRequestArrived   RecordKind = "request_arrived"
	RecordDriverArrived    RecordKind = "driver_arrived"
	RecordMatched          RecordKind = "matched"
	RecordDynamicInsertion RecordKind = "dynamic_insertion"
	RecordPickup           RecordKind = "pickup"
	RecordDropoff          RecordKind = "dropoff"
	RecordTripCompleted    RecordKind = "trip_completed"
	RecordRequestExpired   RecordKind = "request_expired"
)

// Record is one entry in the simulation trace.
type Record struct {
	Kind      RecordKind `json:"kind"`
	Time      float64    `json:"time"`
	Seq       uint64     `json:"seq"`
	Policy    string     `json:"policy,omitempty"`
	RequestID string     `json:"request_id,omitempty"`
	DriverID  string     `json:"driver_id,omitempty"`
	TripID    string     `json:"trip_id,omitempty"`
	PoolSize  int        `json:"pool_size,omitempty"`
	Cost      float64    `json:"cost,omitempty"`
	Detour    float64    `json:"detour,omitempty"`
}

// RequestArrivalEvent adds a rider request to the waiting set and schedules
// its patience expiry.
type RequestArrivalEvent struct {
	At      float64
	Request *Request
}

func (e *RequestArrivalEvent) Time() float64 { return e.At }

func (e *RequestArrivalEvent) Execute(s *Simulator) {
	r := e.Request
	r.Status = RequestWaiting
	s.Waiting = append(s.Waiting, r)
	s.requests[r.ID] = r
	s.emit(Record{Kind: RecordRequestArrived, Time: s.Clock, RequestID: r.ID})
	if r.Patience > 0 {
		s.Schedule(&RequestExpiryEvent{At: e.At + r.Patience, RequestID: r.ID})
	}
	s.matchPass()
}

// DriverArrivalEvent brings a new driver online, subject to the fleet cap.
type DriverArrivalEvent struct {
	At     float64
	Driver *Driver
}

func (e *DriverArrivalEvent) Time() float64 { return e.At }

func (e *DriverArrivalEvent) Execute(s *Simulator) {
	if s.MaxDrivers > 0 && len(s.drivers) >= s.MaxDrivers {
		log.Debugf("sim %s: driver %s dropped, fleet at cap %d", s.Policy.Name(), e.Driver.ID, s.MaxDrivers)
		return
	}
	d := e.Driver
	d.Status = DriverIdle
	d.AvailableSince = e.At
	s.drivers[d.ID] = d
	s.IdleDrivers = append(s.IdleDrivers, d)
	s.emit(Record{Kind: RecordDriverArrived, Time: s.Clock, DriverID: d.ID})
	s.matchPass()
}

// RequestExpiryEvent removes a request that ran out of patience. Stale when
// the request was matched in the meantime.
type RequestExpiryEvent struct {
	At        float64
	RequestID string
}

func (e *RequestExpiryEvent) Time() float64 { return e.At }

func (e *RequestExpiryEvent) Execute(s *Simulator) {
	r, ok := s.requests[e.RequestID]
	if !ok || r.Status != RequestWaiting {
		return
	}
	r.Status = RequestExpired
	s.removeWaiting(r.ID)
	s.emit(Record{Kind: RecordRequestExpired, Time: s.Clock, RequestID: r.ID})
}

// StopArrivalEvent fires when a driver reaches the next stop of its trip.
// The event carries the stop it was scheduled for; if the trip's plan changed
// since (a dynamic insertion re-sequenced the stops), the event is stale and
// a fresh one has already been scheduled.
type StopArrivalEvent struct {
	At     float64
	TripID string
	Stop   Stop
	Plan   uint64 // trip plan version this event was scheduled against
}

func (e *StopArrivalEvent) Time() float64 { return e.At }

func (e *StopArrivalEvent) Execute(s *Simulator) {
	t, ok := s.trips[e.TripID]
	if !ok {
		return
	}
	if t.plan != e.Plan {
		return
	}
	s.arriveAtStop(t, e.Stop)
}
