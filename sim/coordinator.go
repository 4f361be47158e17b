// Dual-run coordination. One seeded arrival stream feeds two simulators, one
// per policy, advanced in virtual-time lockstep so every metrics snapshot
// compares the policies at the same instant over the same world.

package sim

import (
	"context"
	"sync"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// RunState is the coordinator lifecycle state.
type RunState string

const (
	StateCreated  RunState = "created"
	StateRunning  RunState = "running"
	StatePaused   RunState = "paused"
	StateFinished RunState = "finished"
)

// DualRunner drives the FCFS and optimal simulators over a shared world.
type DualRunner struct {
	RunID string

	cfg    *Config
	model  *CostModel
	stream *ArrivalStream

	mu      sync.Mutex
	cond    *sync.Cond
	state   RunState
	clock   float64
	cancel  context.CancelFunc
	loopEnd chan struct{}
	done    chan struct{}

	fcfs    *Simulator
	optimal *Simulator

	records  chan Record
	fanEnd   chan struct{}
	subsMu   sync.Mutex
	subs     []chan Record
	subsDone bool

	snapshots []SnapshotPair
	worlds    WorldPair
	prom      *PromSink
}

// SnapshotPair holds the two policies' snapshots taken at one virtual time.
type SnapshotPair struct {
	FCFS    Snapshot `json:"fcfs"`
	Optimal Snapshot `json:"optimal"`
}

// WorldPair holds both policies' renderable entity states at one virtual time.
type WorldPair struct {
	FCFS    WorldState `json:"fcfs"`
	Optimal WorldState `json:"optimal"`
}

// NewDualRunner validates the scenario, generates the shared arrival stream
// and prepares both simulators.
func NewDualRunner(cfg *Config, model *CostModel) (*DualRunner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	r := &DualRunner{
		RunID:  uuid.NewString(),
		cfg:    cfg,
		model:  model,
		stream: GenerateStream(cfg),
		state:  StateCreated,
		done:   make(chan struct{}),
	}
	r.cond = sync.NewCond(&r.mu)
	return r, nil
}

// SetPromSink attaches a Prometheus sink updated at every snapshot boundary.
func (r *DualRunner) SetPromSink(p *PromSink) {
	r.mu.Lock()
	r.prom = p
	r.mu.Unlock()
}

// Start launches the lockstep run. Starting anything but a freshly created
// or reset runner is a state conflict.
func (r *DualRunner) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != StateCreated {
		return ErrStateConflict
	}

	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	r.records = make(chan Record, 1024)
	r.fanEnd = make(chan struct{})
	r.subsMu.Lock()
	r.subsDone = false
	r.subsMu.Unlock()
	go r.fanOut(r.records, r.fanEnd)
	r.buildSimulators(ctx)
	r.state = StateRunning
	r.loopEnd = make(chan struct{})
	go r.loop(ctx, r.records)
	log.Infof("run %s started: seed=%d duration=%.0fs requests=%d drivers=%d",
		r.RunID, r.cfg.Seed, r.cfg.Duration, len(r.stream.Requests), len(r.stream.Drivers))
	return nil
}

// Pause halts the lockstep loop at the next tick boundary. Pausing a paused
// run is a no-op; pausing a finished or unstarted run is a state conflict.
func (r *DualRunner) Pause() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch r.state {
	case StatePaused:
		return nil
	case StateRunning:
		r.state = StatePaused
		return nil
	default:
		return ErrStateConflict
	}
}

// Resume continues a paused run.
func (r *DualRunner) Resume() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != StatePaused {
		return ErrStateConflict
	}
	r.state = StateRunning
	r.cond.Broadcast()
	return nil
}

// Reset aborts any in-flight run and returns the runner to its created
// state over the same arrival stream. Resetting a created runner is a no-op,
// so Reset is idempotent.
func (r *DualRunner) Reset() error {
	r.mu.Lock()
	if r.state == StateCreated {
		r.mu.Unlock()
		return nil
	}
	if r.cancel != nil {
		r.cancel()
	}
	r.cond.Broadcast()
	loopEnd := r.loopEnd
	fanEnd := r.fanEnd
	r.mu.Unlock()

	if loopEnd != nil {
		<-loopEnd
	}
	if fanEnd != nil {
		<-fanEnd
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = StateCreated
	r.clock = 0
	r.fcfs = nil
	r.optimal = nil
	r.snapshots = nil
	r.worlds = WorldPair{}
	r.done = make(chan struct{})
	return nil
}

// Done is closed when the run reaches its horizon.
func (r *DualRunner) Done() <-chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.done
}

// State returns the lifecycle state and the shared virtual clock.
func (r *DualRunner) State() (RunState, float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state, r.clock
}

// Worlds returns both policies' entity states as of the last completed tick
// boundary, enough for a consumer to render request, driver and trip
// positions.
func (r *DualRunner) Worlds() WorldPair {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.worlds
}

// Records returns both policies' cumulative traces, for consumers that poll
// instead of subscribing.
func (r *DualRunner) Records() (fcfs, optimal []Record) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fcfs == nil {
		return nil, nil
	}
	return r.fcfs.Records(), r.optimal.Records()
}

// Subscribe returns a channel receiving policy-tagged records from both
// simulators. Slow subscribers miss records rather than stall the run. The
// channel is closed once the run finishes or is reset; a subscription taken
// after that point is returned already closed, so consumers may range over
// it either way. Each started run needs fresh subscriptions.
func (r *DualRunner) Subscribe() <-chan Record {
	ch := make(chan Record, 256)
	r.subsMu.Lock()
	defer r.subsMu.Unlock()
	if r.subsDone {
		close(ch)
		return ch
	}
	r.subs = append(r.subs, ch)
	return ch
}

// Metrics returns the latest snapshot pair, or a fresh projection when no
// boundary snapshot has been taken yet.
func (r *DualRunner) Metrics() SnapshotPair {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n := len(r.snapshots); n > 0 {
		return r.snapshots[n-1]
	}
	if r.fcfs == nil {
		return SnapshotPair{
			FCFS:    Snapshot{Policy: "fcfs"},
			Optimal: Snapshot{Policy: "optimal"},
		}
	}
	return SnapshotPair{
		FCFS:    r.fcfs.Metrics.Snapshot(r.clock, r.fcfs.Live()),
		Optimal: r.optimal.Metrics.Snapshot(r.clock, r.optimal.Live()),
	}
}

// Snapshots returns every boundary snapshot pair taken so far.
func (r *DualRunner) Snapshots() []SnapshotPair {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]SnapshotPair, len(r.snapshots))
	copy(out, r.snapshots)
	return out
}

func (r *DualRunner) buildSimulators(ctx context.Context) {
	clusterer := &Clusterer{RadiusKm: r.cfg.ClusterRadiusKm}
	r.fcfs = NewSimulator(ctx, NewFCFSPolicy(r.model), r.model, r.cfg.Capacity, r.cfg.MaxDrivers, r.records)
	r.optimal = NewSimulator(ctx, NewOptimalPolicy(r.model, clusterer, r.cfg.InsertionBound), r.model, r.cfg.Capacity, r.cfg.MaxDrivers, r.records)
	r.fcfs.Metrics.SetExpiryPenalty(r.cfg.ExpiryPenalty)
	r.optimal.Metrics.SetExpiryPenalty(r.cfg.ExpiryPenalty)
	r.stream.ScheduleInto(r.fcfs)
	r.stream.ScheduleInto(r.optimal)
}

// loop advances both simulators tick by tick. Commands take effect at tick
// boundaries only, so the two runs are always observed at the same instant.
func (r *DualRunner) loop(ctx context.Context, records chan<- Record) {
	defer close(r.loopEnd)
	// Both simulators emit only inside AdvanceTo, and every AdvanceTo is
	// awaited below before this function can return, so closing here cannot
	// race a send.
	defer close(records)

	nextSnapshot := r.cfg.MetricsInterval
	for t := r.cfg.Tick; ; t += r.cfg.Tick {
		if t > r.cfg.Duration {
			t = r.cfg.Duration
		}
		if !r.gate(ctx) {
			return
		}

		var wg sync.WaitGroup
		wg.Add(2)
		go func() { defer wg.Done(); r.fcfs.AdvanceTo(t) }()
		go func() { defer wg.Done(); r.optimal.AdvanceTo(t) }()
		wg.Wait()

		if ctx.Err() != nil {
			return
		}

		r.mu.Lock()
		r.clock = t
		r.worlds = WorldPair{FCFS: r.fcfs.World(), Optimal: r.optimal.World()}
		if r.cfg.MetricsInterval > 0 && t >= nextSnapshot {
			r.takeSnapshotLocked(t)
			nextSnapshot += r.cfg.MetricsInterval
		}
		if t >= r.cfg.Duration {
			if n := len(r.snapshots); n == 0 || r.snapshots[n-1].FCFS.Time < t {
				r.takeSnapshotLocked(t)
			}
			r.state = StateFinished
			close(r.done)
			r.mu.Unlock()
			log.Infof("run %s finished at t=%.0fs", r.RunID, t)
			return
		}
		r.mu.Unlock()
	}
}

// gate blocks while paused and reports whether the loop should keep going.
func (r *DualRunner) gate(ctx context.Context) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for r.state == StatePaused && ctx.Err() == nil {
		r.cond.Wait()
	}
	return ctx.Err() == nil
}

func (r *DualRunner) takeSnapshotLocked(t float64) {
	pair := SnapshotPair{
		FCFS:    r.fcfs.Metrics.Snapshot(t, r.fcfs.Live()),
		Optimal: r.optimal.Metrics.Snapshot(t, r.optimal.Live()),
	}
	r.snapshots = append(r.snapshots, pair)
	if r.prom != nil {
		r.prom.Update(pair.FCFS)
		r.prom.Update(pair.Optimal)
	}
}

// fanOut copies the shared record feed to every subscriber without blocking,
// then closes every subscriber channel once the feed is drained.
func (r *DualRunner) fanOut(in <-chan Record, end chan<- struct{}) {
	defer close(end)
	for rec := range in {
		r.subsMu.Lock()
		for _, ch := range r.subs {
			select {
			case ch <- rec:
			default:
			}
		}
		r.subsMu.Unlock()
	}
	r.subsMu.Lock()
	for _, ch := range r.subs {
		close(ch)
	}
	r.subs = nil
	r.subsDone = true
	r.subsMu.Unlock()
}
