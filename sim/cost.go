// Cost model for candidate assignments: waiting cost, routing cost and detour
// penalty, plus the hard detour feasibility check applied before costing.

package sim

import (
	"context"
	"fmt"
	"math"

	"github.com/ridepool-sim/ridepool-sim/sim/routing"
)

// PenaltyCurve selects the shape of the detour penalty.
type PenaltyCurve string

const (
	// PenaltyLinear charges proportionally to the excess trip seconds beyond
	// the penalty onset ratio.
	PenaltyLinear PenaltyCurve = "linear"
	// PenaltyStepped charges in staircase increments of 0.1 detour ratio
	// beyond the onset.
	PenaltyStepped PenaltyCurve = "stepped"
)

// CostConfig holds the tunable parameters of the cost model. The penalty
// curve and onset are configuration-exposed rather than fixed.
type CostConfig struct {
	WaitingCostPerSec   float64      `yaml:"waiting_cost_per_sec"`
	DetourMax           float64      `yaml:"detour_max"`            // hard feasibility ceiling
	DetourPenaltyOnset  float64      `yaml:"detour_penalty_onset"`  // ratio at which the penalty starts
	DetourPenaltyPerSec float64      `yaml:"detour_penalty_per_sec"`
	PenaltyCurve        PenaltyCurve `yaml:"penalty_curve"`
	ExpiryPenalty       float64      `yaml:"expiry_penalty"`
}

// Cost is the breakdown of a candidate assignment's cost. Total is the scalar
// used to compare competing assignments; lower is better.
type Cost struct {
	Waiting       float64
	Routing       float64
	DetourPenalty float64
	Total         float64
	Approximate   bool // set when any leg came from the straight-line fallback
}

// Evaluation is the result of scoring one candidate stop sequence.
type Evaluation struct {
	Cost          Cost
	Detours       map[string]float64 // request id -> realized detour ratio
	Feasible      bool               // all detour ratios within each passenger's ceiling
	TotalDuration float64            // driver travel time through the whole sequence
}

// CostModel scores candidate stop sequences via the routing adapter.
type CostModel struct {
	router routing.Router
	cfg    CostConfig
}

// NewCostModel creates a cost model over the given router.
func NewCostModel(router routing.Router, cfg CostConfig) *CostModel {
	if cfg.DetourPenaltyOnset <= 0 {
		cfg.DetourPenaltyOnset = cfg.DetourMax
	}
	return &CostModel{router: router, cfg: cfg}
}

// SoloDuration resolves and caches a request's direct origin->destination
// travel time.
func (m *CostModel) SoloDuration(ctx context.Context, r *Request) (float64, error) {
	if r.SoloDuration > 0 {
		return r.SoloDuration, nil
	}
	leg, err := m.router.Route(ctx, r.Origin, r.Destination)
	if err != nil {
		return 0, fmt.Errorf("solo duration for %s: %w", r.ID, err)
	}
	r.SoloDuration = leg.DurationSecs
	return r.SoloDuration, nil
}

// Leg resolves a single origin->destination leg through the routing adapter.
func (m *CostModel) Leg(ctx context.Context, from, to routing.Point) (routing.Leg, error) {
	return m.router.Route(ctx, from, to)
}

// Evaluate scores a candidate remaining stop sequence for a driver.
//
// passengers must contain every request referenced by stops; onboard is the
// set of passengers already in the vehicle (their pickup is in the past, so
// their realized trip time includes the in-vehicle time elapsed so far).
// Feasibility (detour ratio <= ceiling for every passenger) is checked before
// any penalty is computed; infeasible candidates carry no meaningful Cost.
func (m *CostModel) Evaluate(ctx context.Context, now float64, d *Driver, stops []Stop, passengers []*Request, onboard map[string]bool) (Evaluation, error) {
	ev := Evaluation{Detours: make(map[string]float64, len(passengers))}

	// Leg durations: driver position -> stops[0] -> stops[1] -> ...
	legs := make([]float64, len(stops))
	prev := d.Position
	approx := false
	for i, s := range stops {
		leg, err := m.router.Route(ctx, prev, s.Pos)
		if err != nil {
			return Evaluation{}, err
		}
		legs[i] = d.travelTime(leg.DurationSecs)
		approx = approx || leg.Approximate
		prev = s.Pos
	}
	for _, t := range legs {
		ev.TotalDuration += t
	}

	// Realized trip duration per passenger.
	for _, p := range passengers {
		solo, err := m.SoloDuration(ctx, p)
		if err != nil {
			return Evaluation{}, err
		}
		if solo <= 0 {
			ev.Detours[p.ID] = 1.0
			continue
		}

		actual, ok := realizedDuration(p, stops, legs, onboard, now)
		if !ok {
			return Evaluation{}, fmt.Errorf("passenger %s has no drop-off in candidate sequence", p.ID)
		}
		ev.Detours[p.ID] = actual / solo
	}

	// Hard feasibility: every passenger within their ceiling. Exactly equal
	// is accepted.
	ev.Feasible = true
	for _, p := range passengers {
		ceiling := p.DetourMax
		if ceiling <= 0 {
			ceiling = m.cfg.DetourMax
		}
		if ev.Detours[p.ID] > ceiling {
			ev.Feasible = false
			return ev, nil
		}
	}

	ev.Cost = m.cost(now, d, passengers, ev.Detours, ev.TotalDuration)
	ev.Cost.Approximate = approx
	return ev, nil
}

// realizedDuration computes a passenger's pickup-to-dropoff travel time along
// the candidate sequence. Returns false when the passenger's drop-off is
// missing from the sequence.
func realizedDuration(p *Request, stops []Stop, legs []float64, onboard map[string]bool, now float64) (float64, bool) {
	pickupIdx := -1
	dropoffIdx := -1
	for i, s := range stops {
		if s.RequestID != p.ID {
			continue
		}
		switch s.Kind {
		case StopPickup:
			pickupIdx = i
		case StopDropoff:
			dropoffIdx = i
		}
	}
	if dropoffIdx < 0 {
		return 0, false
	}

	if pickupIdx < 0 {
		// Already on board: elapsed in-vehicle time plus the remaining legs
		// up to the drop-off.
		elapsed := 0.0
		if onboard[p.ID] {
			elapsed = now - p.PickupTime
		}
		remaining := 0.0
		for i := 0; i <= dropoffIdx; i++ {
			remaining += legs[i]
		}
		return elapsed + remaining, true
	}

	d := 0.0
	for i := pickupIdx + 1; i <= dropoffIdx; i++ {
		d += legs[i]
	}
	return d, true
}

func (m *CostModel) cost(now float64, d *Driver, passengers []*Request, detours map[string]float64, totalDuration float64) Cost {
	var c Cost
	for _, p := range passengers {
		c.Waiting += p.WaitingTime(now) * m.cfg.WaitingCostPerSec
		c.DetourPenalty += m.detourPenalty(p, detours[p.ID])
	}
	c.Routing = totalDuration / 60.0 * d.Tier.CostPerMin
	c.Total = c.Waiting + c.Routing + c.DetourPenalty
	return c
}

// detourPenalty charges for detour ratios above the configured onset. The
// hard ceiling was already enforced by Evaluate.
func (m *CostModel) detourPenalty(p *Request, ratio float64) float64 {
	onset := m.cfg.DetourPenaltyOnset
	if ratio <= onset || p.SoloDuration <= 0 {
		return 0
	}
	excessSecs := (ratio - onset) * p.SoloDuration
	switch m.cfg.PenaltyCurve {
	case PenaltyStepped:
		steps := math.Floor((ratio-onset)/0.1) + 1
		return m.cfg.DetourPenaltyPerSec * steps * 0.1 * p.SoloDuration
	default:
		return m.cfg.DetourPenaltyPerSec * excessSecs
	}
}
