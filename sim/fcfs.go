package sim

import (
	"context"
	"sort"

	log "github.com/sirupsen/logrus"
)

// FCFSPolicy matches the oldest waiting request to the nearest feasible host.
// Trips are append-only under this policy: a joining request's pickup and
// drop-off go to the end of the remaining stop sequence, never reordering the
// commitments already made to earlier passengers.
type FCFSPolicy struct {
	Model *CostModel
}

// NewFCFSPolicy creates the first-come-first-served policy.
func NewFCFSPolicy(model *CostModel) *FCFSPolicy {
	return &FCFSPolicy{Model: model}
}

func (p *FCFSPolicy) Name() string { return "fcfs" }

// ProposeAssignments serves the oldest waiting request, trying hosts in
// increasing distance from the request's origin and committing to the first
// feasible one.
func (p *FCFSPolicy) ProposeAssignments(ctx context.Context, now float64, waiting []*Request, hosts []Host) ([]Assignment, error) {
	for _, req := range waiting {
		a, err := p.serve(ctx, now, req, hosts)
		if err != nil {
			return nil, err
		}
		if a != nil {
			return []Assignment{*a}, nil
		}
	}
	return nil, nil
}

func (p *FCFSPolicy) serve(ctx context.Context, now float64, req *Request, hosts []Host) (*Assignment, error) {
	ordered := make([]Host, len(hosts))
	copy(ordered, hosts)
	sort.SliceStable(ordered, func(i, j int) bool {
		return distanceMeters(ordered[i].Driver.Position, req.Origin) <
			distanceMeters(ordered[j].Driver.Position, req.Origin)
	})

	for _, h := range ordered {
		if h.Trip != nil && h.Trip.SpareCapacity() <= 0 {
			continue
		}

		stops, passengers, onboard := appendCandidate(h, req)
		ev, err := p.Model.Evaluate(ctx, now, h.Driver, stops, passengers, onboard)
		if err != nil {
			log.Debugf("fcfs: skipping host %s for %s: %v", h.Driver.ID, req.ID, err)
			continue
		}
		if !ev.Feasible {
			continue
		}
		return &Assignment{
			Request: req,
			Driver:  h.Driver,
			Trip:    h.Trip,
			Stops:   stops,
			Cost:    ev.Cost,
			Detours: ev.Detours,
			Dynamic: h.Trip != nil,
		}, nil
	}
	return nil, nil
}

// appendCandidate builds the candidate sequence for appending req to a host:
// the host's remaining stops followed by the request's pickup and drop-off.
func appendCandidate(h Host, req *Request) ([]Stop, []*Request, map[string]bool) {
	var stops []Stop
	var passengers []*Request
	onboard := map[string]bool{}
	if h.Trip != nil {
		stops = append(stops, h.Trip.Stops...)
		passengers = append(passengers, h.Trip.activePassengers()...)
		for id := range h.Trip.onboardIDs() {
			onboard[id] = true
		}
	}
	stops = append(stops,
		Stop{Kind: StopPickup, RequestID: req.ID, Pos: req.Origin},
		Stop{Kind: StopDropoff, RequestID: req.ID, Pos: req.Destination},
	)
	passengers = append(passengers, req)
	return stops, passengers, onboard
}
