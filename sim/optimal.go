package sim

import (
	"context"
	"math"

	log "github.com/sirupsen/logrus"
)

// OptimalPolicy performs a cluster-pruned insertion search: for every waiting
// request it enumerates pickup and drop-off insertion positions across all
// compatible hosts, scores each candidate sequence, and commits the single
// assignment with the lowest marginal cost over the host's current plan.
type OptimalPolicy struct {
	Model     *CostModel
	Clusterer *Clusterer
	// InsertionBound caps the insertion positions tried per host. Zero means
	// the full remaining sequence is searched.
	InsertionBound int
}

// NewOptimalPolicy creates the cost-optimal policy.
func NewOptimalPolicy(model *CostModel, clusterer *Clusterer, insertionBound int) *OptimalPolicy {
	return &OptimalPolicy{Model: model, Clusterer: clusterer, InsertionBound: insertionBound}
}

func (p *OptimalPolicy) Name() string { return "optimal" }

// ProposeAssignments returns the globally cheapest feasible insertion across
// all waiting requests, or nothing when no feasible insertion exists. The
// waiting set is partitioned into destination clusters first; a request is
// matched against an active trip through its cluster centroid, so requests
// heading the same way share one pruning decision.
func (p *OptimalPolicy) ProposeAssignments(ctx context.Context, now float64, waiting []*Request, hosts []Host) ([]Assignment, error) {
	var best *Assignment
	bestMarginal := math.Inf(1)

	centroids := make(map[string]Point, len(waiting))
	for _, cl := range p.Clusterer.Cluster(waiting) {
		for _, member := range cl.Requests {
			centroids[member.ID] = cl.Centroid
		}
	}

	for _, req := range waiting {
		for i := range hosts {
			h := hosts[i]
			if h.Trip != nil {
				if h.Trip.SpareCapacity() <= 0 {
					continue
				}
				if !p.compatible(centroids[req.ID], h.Trip) {
					continue
				}
			}

			baseline, err := p.baselineCost(ctx, now, h)
			if err != nil {
				log.Debugf("optimal: baseline for host %s: %v", h.Driver.ID, err)
				continue
			}

			a, marginal, err := p.bestInsertion(ctx, now, req, h, baseline)
			if err != nil {
				log.Debugf("optimal: insertion search %s into %s: %v", req.ID, h.Driver.ID, err)
				continue
			}
			if a != nil && marginal < bestMarginal {
				best, bestMarginal = a, marginal
			}
		}
	}

	if best == nil {
		return nil, nil
	}
	return []Assignment{*best}, nil
}

// compatible prunes active trips whose remaining drop-offs are all outside
// the clustering radius of the given cluster centroid.
func (p *OptimalPolicy) compatible(centroid Point, t *Trip) bool {
	for _, s := range t.Stops {
		if s.Kind == StopDropoff && p.Clusterer.Compatible(centroid, s.Pos) {
			return true
		}
	}
	return false
}

// baselineCost scores the host's current remaining plan. An idle driver has
// no plan and a zero baseline.
func (p *OptimalPolicy) baselineCost(ctx context.Context, now float64, h Host) (float64, error) {
	if h.Trip == nil || len(h.Trip.Stops) == 0 {
		return 0, nil
	}
	onboard := map[string]bool{}
	for id := range h.Trip.onboardIDs() {
		onboard[id] = true
	}
	ev, err := p.Model.Evaluate(ctx, now, h.Driver, h.Trip.Stops, h.Trip.activePassengers(), onboard)
	if err != nil {
		return 0, err
	}
	return ev.Cost.Total, nil
}

// bestInsertion tries every (pickup, drop-off) position pair within the
// bound and returns the cheapest feasible candidate with its marginal cost.
func (p *OptimalPolicy) bestInsertion(ctx context.Context, now float64, req *Request, h Host, baseline float64) (*Assignment, float64, error) {
	var current []Stop
	var passengers []*Request
	onboard := map[string]bool{}
	capacity := 0
	if h.Trip != nil {
		current = h.Trip.Stops
		passengers = h.Trip.activePassengers()
		capacity = h.Trip.Capacity
		for id := range h.Trip.onboardIDs() {
			onboard[id] = true
		}
	}

	maxPos := len(current)
	if p.InsertionBound > 0 && maxPos > p.InsertionBound {
		maxPos = p.InsertionBound
	}

	var best *Assignment
	bestMarginal := math.Inf(1)
	newPassengers := append(append([]*Request{}, passengers...), req)

	for i := 0; i <= maxPos; i++ {
		for j := i; j <= maxPos; j++ {
			stops := insertStops(current, req, i, j)
			if capacity > 0 && !validStopSequence(stops, onboard, capacity) {
				continue
			}
			ev, err := p.Model.Evaluate(ctx, now, h.Driver, stops, newPassengers, onboard)
			if err != nil {
				return nil, 0, err
			}
			if !ev.Feasible {
				continue
			}
			marginal := ev.Cost.Total - baseline
			if marginal < bestMarginal {
				bestMarginal = marginal
				best = &Assignment{
					Request: req,
					Driver:  h.Driver,
					Trip:    h.Trip,
					Stops:   stops,
					Cost:    ev.Cost,
					Detours: ev.Detours,
					Dynamic: h.Trip != nil,
				}
			}
		}
	}
	return best, bestMarginal, nil
}

// insertStops places the request's pickup before index i and its drop-off
// before original index j (pickup always preceding drop-off).
func insertStops(current []Stop, req *Request, i, j int) []Stop {
	pickup := Stop{Kind: StopPickup, RequestID: req.ID, Pos: req.Origin}
	dropoff := Stop{Kind: StopDropoff, RequestID: req.ID, Pos: req.Destination}

	out := make([]Stop, 0, len(current)+2)
	out = append(out, current[:i]...)
	out = append(out, pickup)
	out = append(out, current[i:j]...)
	out = append(out, dropoff)
	out = append(out, current[j:]...)
	return out
}
