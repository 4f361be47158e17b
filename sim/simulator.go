// Per-policy discrete-event simulator. Each policy runs inside its own
// Simulator instance; the coordinator advances two of them in lockstep over
// a shared arrival stream.

package sim

import (
	"container/heap"
	"context"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// queuedEvent pairs an event with its insertion sequence for stable ordering.
type queuedEvent struct {
	event Event
	seq   uint64
}

// EventQueue is a min-heap ordered by event time, ties broken by insertion
// order so simultaneous events execute in the order they were scheduled.
type EventQueue []queuedEvent

func (q EventQueue) Len() int { return len(q) }
func (q EventQueue) Less(i, j int) bool {
	if q[i].event.Time() != q[j].event.Time() {
		return q[i].event.Time() < q[j].event.Time()
	}
	return q[i].seq < q[j].seq
}
func (q EventQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *EventQueue) Push(x any) { *q = append(*q, x.(queuedEvent)) }
func (q *EventQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[:n-1]
	return item
}

// LiveState is a point-in-time view of a simulator's mutable counts, consumed
// by the metrics aggregator when projecting a snapshot.
type LiveState struct {
	Clock       float64
	Waiting     int
	IdleDrivers int
	ActiveTrips int
	Onboard     int
	IdleByTier  map[string]int
}

// TripView is a renderable summary of an active trip.
type TripView struct {
	ID             string   `json:"id"`
	DriverID       string   `json:"driver_id"`
	DriverPos      Point    `json:"driver_pos"`
	Passengers     []string `json:"passengers"`
	Onboard        int      `json:"onboard"`
	RemainingStops []Stop   `json:"remaining_stops"`
}

// WorldState carries copies of a simulator's live entities, enough to render
// positions without touching simulator internals.
type WorldState struct {
	Clock       float64    `json:"clock"`
	Waiting     []Request  `json:"waiting"`
	IdleDrivers []Driver   `json:"idle_drivers"`
	ActiveTrips []TripView `json:"active_trips"`
}

// Simulator runs one matching policy over a stream of arrival events.
type Simulator struct {
	Policy AssignmentPolicy
	Model  *CostModel

	Clock      float64
	Capacity   int
	MaxDrivers int

	Waiting     []*Request
	IdleDrivers []*Driver

	queue    EventQueue
	eventSeq uint64

	requests map[string]*Request
	drivers  map[string]*Driver
	trips    map[string]*Trip

	// ActiveTrips mirrors trips in creation order so host enumeration is
	// deterministic across runs with the same seed.
	ActiveTrips []*Trip

	CompletedTrips []*Trip

	Metrics *Metrics

	recordSeq uint64
	records   []Record
	out       chan<- Record

	ctx context.Context
}

// NewSimulator creates a simulator for one policy. out may be nil; when set,
// records are forwarded to it without blocking (the feed drops what the
// consumer cannot keep up with, the internal buffer stays complete).
func NewSimulator(ctx context.Context, policy AssignmentPolicy, model *CostModel, capacity, maxDrivers int, out chan<- Record) *Simulator {
	return &Simulator{
		Policy:     policy,
		Model:      model,
		Capacity:   capacity,
		MaxDrivers: maxDrivers,
		requests:   make(map[string]*Request),
		drivers:    make(map[string]*Driver),
		trips:      make(map[string]*Trip),
		Metrics:    NewMetrics(policy.Name()),
		out:        out,
		ctx:        ctx,
	}
}

// Schedule enqueues an event. Events in the past relative to the clock are
// dropped with a warning rather than allowed to rewind virtual time.
func (s *Simulator) Schedule(e Event) {
	if e.Time() < s.Clock {
		log.Warnf("sim %s: dropping stale event at t=%.2f (clock %.2f)", s.Policy.Name(), e.Time(), s.Clock)
		return
	}
	s.eventSeq++
	heap.Push(&s.queue, queuedEvent{event: e, seq: s.eventSeq})
}

// AdvanceTo executes every pending event with timestamp <= t, then sets the
// clock to t. The clock never moves backwards.
func (s *Simulator) AdvanceTo(t float64) {
	for s.queue.Len() > 0 && s.queue[0].event.Time() <= t {
		qe := heap.Pop(&s.queue).(queuedEvent)
		if s.ctx.Err() != nil {
			return
		}
		s.Clock = qe.event.Time()
		qe.event.Execute(s)
	}
	if t > s.Clock {
		s.Clock = t
	}
}

// Run drains the queue up to the horizon in one call, for single-policy use
// outside the dual-run coordinator.
func (s *Simulator) Run(horizon float64) {
	s.AdvanceTo(horizon)
}

// hosts collects the candidate hosts: idle drivers and drivers whose active
// trip has spare capacity.
func (s *Simulator) hosts() []Host {
	hosts := make([]Host, 0, len(s.IdleDrivers)+len(s.ActiveTrips))
	for _, d := range s.IdleDrivers {
		hosts = append(hosts, Host{Driver: d})
	}
	for _, t := range s.ActiveTrips {
		if t.SpareCapacity() > 0 {
			hosts = append(hosts, Host{Driver: t.Driver, Trip: t})
		}
	}
	return hosts
}

// matchPass invokes the policy until it stops producing assignments. Each
// committed assignment changes the host set, so the policy sees fresh state
// on every invocation and a driver can never be granted twice in one pass.
func (s *Simulator) matchPass() {
	for {
		if len(s.Waiting) == 0 {
			return
		}
		assignments, err := s.Policy.ProposeAssignments(s.ctx, s.Clock, s.Waiting, s.hosts())
		if err != nil {
			if s.ctx.Err() == nil {
				log.Errorf("sim %s: match pass aborted: %v", s.Policy.Name(), err)
			}
			return
		}
		if len(assignments) == 0 {
			return
		}
		for _, a := range assignments {
			s.apply(a)
		}
	}
}

// apply commits an assignment: binds the request, creates or re-sequences the
// trip, and schedules the next stop arrival.
func (s *Simulator) apply(a Assignment) {
	r := a.Request
	r.Status = RequestMatched
	r.AssignedDriver = a.Driver.ID
	r.MatchTime = s.Clock
	s.removeWaiting(r.ID)

	t := a.Trip
	if t == nil {
		t = &Trip{
			ID:           uuid.NewString(),
			Driver:       a.Driver,
			Capacity:     s.Capacity,
			CreatedAt:    s.Clock,
			CostShares:   make(map[string]float64),
			DetourRatios: make(map[string]float64),
		}
		s.trips[t.ID] = t
		s.ActiveTrips = append(s.ActiveTrips, t)
		a.Driver.Status = DriverEnRoutePickup
		a.Driver.TripID = t.ID
		s.removeIdle(a.Driver.ID)
	}
	r.TripID = t.ID

	t.Stops = a.Stops
	t.Passengers = append(t.Passengers, r)
	t.TotalCost = a.Cost.Total
	for id, ratio := range a.Detours {
		t.DetourRatios[id] = ratio
	}
	t.plan++

	kind := RecordMatched
	if a.Dynamic {
		kind = RecordDynamicInsertion
	}
	s.emit(Record{
		Kind:      kind,
		Time:      s.Clock,
		RequestID: r.ID,
		DriverID:  a.Driver.ID,
		TripID:    t.ID,
		PoolSize:  len(t.Passengers),
		Cost:      a.Cost.Total,
		Detour:    a.Detours[r.ID],
	})

	s.scheduleNextLeg(t)
}

// scheduleNextLeg routes the driver from its last known position to the head
// of the remaining stop sequence.
func (s *Simulator) scheduleNextLeg(t *Trip) {
	next := t.NextStop()
	if next == nil {
		return
	}
	leg, err := s.Model.Leg(s.ctx, t.Driver.Position, next.Pos)
	if err != nil {
		if s.ctx.Err() == nil {
			log.Errorf("sim %s: routing leg for trip %s: %v", s.Policy.Name(), t.ID, err)
		}
		return
	}
	at := s.Clock + t.Driver.travelTime(leg.DurationSecs)
	s.Schedule(&StopArrivalEvent{At: at, TripID: t.ID, Stop: *next, Plan: t.plan})
}

// arriveAtStop processes the driver reaching the head stop of its trip.
func (s *Simulator) arriveAtStop(t *Trip, stop Stop) {
	next := t.NextStop()
	if next == nil || next.Kind != stop.Kind || next.RequestID != stop.RequestID {
		log.Warnf("sim %s: dropping stop arrival for trip %s, stop no longer at head", s.Policy.Name(), t.ID)
		return
	}
	t.Stops = t.Stops[1:]
	t.Visited = append(t.Visited, stop)
	t.Driver.Position = stop.Pos

	p := t.passenger(stop.RequestID)
	if p == nil {
		log.Warnf("sim %s: trip %s stop references unknown request %s", s.Policy.Name(), t.ID, stop.RequestID)
		return
	}

	switch stop.Kind {
	case StopPickup:
		p.Status = RequestInTrip
		p.PickupTime = s.Clock
		t.Onboard++
		t.Driver.Status = DriverInTrip
		s.emit(Record{Kind: RecordPickup, Time: s.Clock, RequestID: p.ID, DriverID: t.Driver.ID, TripID: t.ID})
	case StopDropoff:
		p.Status = RequestCompleted
		p.CompletionTime = s.Clock
		t.Onboard--
		if p.SoloDuration > 0 {
			p.DetourRatio = (s.Clock - p.PickupTime) / p.SoloDuration
			t.DetourRatios[p.ID] = p.DetourRatio
		}
		s.emit(Record{Kind: RecordDropoff, Time: s.Clock, RequestID: p.ID, DriverID: t.Driver.ID, TripID: t.ID, Detour: p.DetourRatio})
	}

	if len(t.Stops) == 0 {
		s.completeTrip(t)
		return
	}
	s.scheduleNextLeg(t)
}

// completeTrip settles the trip, splits its cost across passengers in
// proportion to realized detour, and returns the driver to the idle pool.
func (s *Simulator) completeTrip(t *Trip) {
	t.CompletedAt = s.Clock
	s.splitCost(t)
	delete(s.trips, t.ID)
	for i, at := range s.ActiveTrips {
		if at.ID == t.ID {
			s.ActiveTrips = append(s.ActiveTrips[:i], s.ActiveTrips[i+1:]...)
			break
		}
	}
	s.CompletedTrips = append(s.CompletedTrips, t)

	d := t.Driver
	d.Status = DriverIdle
	d.TripID = ""
	d.AvailableSince = s.Clock
	s.IdleDrivers = append(s.IdleDrivers, d)

	s.emit(Record{
		Kind:     RecordTripCompleted,
		Time:     s.Clock,
		DriverID: d.ID,
		TripID:   t.ID,
		PoolSize: len(t.Passengers),
		Cost:     t.TotalCost,
	})

	s.matchPass()
}

// splitCost apportions the trip's total cost across its passengers, weighted
// by each passenger's realized detour ratio.
func (s *Simulator) splitCost(t *Trip) {
	var weightSum float64
	for _, p := range t.Passengers {
		w := t.DetourRatios[p.ID]
		if w <= 0 {
			w = 1.0
		}
		weightSum += w
	}
	if weightSum <= 0 {
		return
	}
	for _, p := range t.Passengers {
		w := t.DetourRatios[p.ID]
		if w <= 0 {
			w = 1.0
		}
		p.CostShare = t.TotalCost * w / weightSum
		t.CostShares[p.ID] = p.CostShare
	}
}

func (s *Simulator) removeWaiting(id string) {
	for i, r := range s.Waiting {
		if r.ID == id {
			s.Waiting = append(s.Waiting[:i], s.Waiting[i+1:]...)
			return
		}
	}
}

func (s *Simulator) removeIdle(id string) {
	for i, d := range s.IdleDrivers {
		if d.ID == id {
			s.IdleDrivers = append(s.IdleDrivers[:i], s.IdleDrivers[i+1:]...)
			return
		}
	}
}

// emit records an occurrence: the internal buffer is complete, the metrics
// aggregator observes it, and the optional feed receives it best-effort.
func (s *Simulator) emit(r Record) {
	s.recordSeq++
	r.Seq = s.recordSeq
	r.Policy = s.Policy.Name()
	s.records = append(s.records, r)
	s.Metrics.Observe(r)
	if s.out != nil {
		select {
		case s.out <- r:
		default:
		}
	}
}

// Records returns the complete trace so far.
func (s *Simulator) Records() []Record {
	out := make([]Record, len(s.records))
	copy(out, s.records)
	return out
}

// Live returns the current mutable counts for snapshot projection.
func (s *Simulator) Live() LiveState {
	onboard := 0
	for _, t := range s.trips {
		onboard += t.Onboard
	}
	byTier := make(map[string]int)
	for _, d := range s.IdleDrivers {
		byTier[d.Tier.ID]++
	}
	return LiveState{
		Clock:       s.Clock,
		Waiting:     len(s.Waiting),
		IdleDrivers: len(s.IdleDrivers),
		ActiveTrips: len(s.trips),
		Onboard:     onboard,
		IdleByTier:  byTier,
	}
}

// World returns deep copies of the live entities for rendering.
func (s *Simulator) World() WorldState {
	w := WorldState{Clock: s.Clock}
	for _, r := range s.Waiting {
		w.Waiting = append(w.Waiting, *r)
	}
	for _, d := range s.IdleDrivers {
		w.IdleDrivers = append(w.IdleDrivers, *d)
	}
	for _, t := range s.ActiveTrips {
		tv := TripView{
			ID:             t.ID,
			DriverID:       t.Driver.ID,
			DriverPos:      t.Driver.Position,
			Onboard:        t.Onboard,
			RemainingStops: append([]Stop{}, t.Stops...),
		}
		for _, p := range t.Passengers {
			tv.Passengers = append(tv.Passengers, p.ID)
		}
		w.ActiveTrips = append(w.ActiveTrips, tv)
	}
	return w
}
