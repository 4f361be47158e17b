// Defines the Request struct that models a single ride request's lifecycle in
// the simulation, from arrival through matching to completion or expiry.

package sim

import "fmt"

// RequestStatus represents the lifecycle state of a request.
type RequestStatus string

const (
	RequestWaiting   RequestStatus = "waiting"
	RequestMatched   RequestStatus = "matched"
	RequestInTrip    RequestStatus = "in_trip"
	RequestCompleted RequestStatus = "completed"
	RequestExpired   RequestStatus = "expired"
)

// Request models a passenger ride request. Identity, endpoints and arrival
// time are immutable after creation; only status and assignment fields change.
type Request struct {
	ID          string
	Origin      Point
	Destination Point
	ArrivalTime float64 // virtual seconds
	Patience    float64 // seconds the passenger waits before expiring
	DetourMax   float64 // max acceptable detour ratio for this passenger

	Status         RequestStatus
	AssignedDriver string
	TripID         string
	MatchTime      float64
	PickupTime     float64
	CompletionTime float64

	// SoloDuration is the direct origin->destination travel time, resolved
	// lazily by the cost model and cached here.
	SoloDuration float64

	DetourRatio float64
	CostShare   float64
}

// WaitingTime returns how long the request has waited for a match.
func (r *Request) WaitingTime(now float64) float64 {
	if r.Status != RequestWaiting && r.MatchTime > 0 {
		return r.MatchTime - r.ArrivalTime
	}
	return now - r.ArrivalTime
}

func (r Request) String() string {
	return fmt.Sprintf("Request(ID: %s, Status: %s, ArrivalTime: %.1f)", r.ID, r.Status, r.ArrivalTime)
}
