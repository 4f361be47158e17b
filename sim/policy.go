package sim

import "context"

// Host is a driver that can absorb a waiting request, either by starting a
// fresh trip (Trip nil, driver idle) or by inserting into an active trip.
type Host struct {
	Driver *Driver
	Trip   *Trip // nil when the driver is idle
}

// Assignment is a single committed match proposal: one request bound to one
// host with the host's full new remaining stop sequence.
type Assignment struct {
	Request *Request
	Driver  *Driver
	Trip    *Trip  // nil when a new trip must be created
	Stops   []Stop // complete remaining sequence after the insertion
	Cost    Cost
	Detours map[string]float64 // request id -> detour ratio under the new sequence
	Dynamic bool               // insertion into an already moving trip
}

// AssignmentPolicy decides matches. ProposeAssignments returns at most one
// assignment per invocation; the simulator re-invokes it until it returns
// nothing, so a contested driver is only ever granted once per pass.
type AssignmentPolicy interface {
	Name() string
	ProposeAssignments(ctx context.Context, now float64, waiting []*Request, hosts []Host) ([]Assignment, error)
}
