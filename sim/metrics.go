// Metrics aggregation. The aggregator folds the record feed into counters
// and series; snapshots are pure projections of that state plus the live
// counts handed in by the caller, so taking one never disturbs a run.

package sim

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"gonum.org/v1/gonum/stat"
)

const recentRecords = 256

// Snapshot is a point-in-time metrics projection for one policy.
type Snapshot struct {
	Policy string  `json:"policy"`
	Time   float64 `json:"time"`

	Requests          int `json:"requests"`
	Matched           int `json:"matched"`
	Expired           int `json:"expired"`
	DynamicInsertions int `json:"dynamic_insertions"`
	CompletedTrips    int `json:"completed_trips"`
	Drivers           int `json:"drivers"`

	MatchRate   float64 `json:"match_rate"`    // matched / requests
	AvgPoolSize float64 `json:"avg_pool_size"` // passengers per completed trip
	TotalCost   float64 `json:"total_cost"`    // trip cost plus expiry penalties

	TripCost      float64 `json:"trip_cost"`
	ExpiryPenalty float64 `json:"expiry_penalty"`

	AvgWait   float64 `json:"avg_wait"`
	P90Wait   float64 `json:"p90_wait"`
	AvgDetour float64 `json:"avg_detour"`

	Waiting     int            `json:"waiting"`
	IdleDrivers int            `json:"idle_drivers"`
	IdleByTier  map[string]int `json:"idle_by_tier,omitempty"`
	ActiveTrips int            `json:"active_trips"`
	Onboard     int            `json:"onboard"`
}

// Metrics accumulates the record feed of one policy run.
type Metrics struct {
	mu sync.Mutex

	policy        string
	expiryPenalty float64

	requests          int
	matched           int
	expired           int
	dynamicInsertions int
	completedTrips    int
	drivers           int

	tripCost  float64
	poolSizes []float64
	waits     []float64
	detours   []float64

	arrivals map[string]float64 // request id -> arrival time, for wait measurement

	recent []Record
}

// NewMetrics creates an empty aggregator for a policy.
func NewMetrics(policy string) *Metrics {
	return &Metrics{
		policy:   policy,
		arrivals: make(map[string]float64),
	}
}

// SetExpiryPenalty sets the per-expiry cost charged into TotalCost.
func (m *Metrics) SetExpiryPenalty(p float64) {
	m.mu.Lock()
	m.expiryPenalty = p
	m.mu.Unlock()
}

// Observe folds one record into the aggregate.
func (m *Metrics) Observe(r Record) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch r.Kind {
	case RecordRequestArrived:
		m.requests++
		m.arrivals[r.RequestID] = r.Time
	case RecordDriverArrived:
		m.drivers++
	case RecordMatched, RecordDynamicInsertion:
		m.matched++
		if r.Kind == RecordDynamicInsertion {
			m.dynamicInsertions++
		}
		if arrived, ok := m.arrivals[r.RequestID]; ok {
			m.waits = append(m.waits, r.Time-arrived)
		}
	case RecordRequestExpired:
		m.expired++
	case RecordDropoff:
		if r.Detour > 0 {
			m.detours = append(m.detours, r.Detour)
		}
	case RecordTripCompleted:
		m.completedTrips++
		m.tripCost += r.Cost
		m.poolSizes = append(m.poolSizes, float64(r.PoolSize))
	}

	m.recent = append(m.recent, r)
	if len(m.recent) > recentRecords {
		m.recent = m.recent[len(m.recent)-recentRecords:]
	}
}

// Snapshot projects the current aggregate. live carries the counts only the
// simulator knows; passing its zero value is fine for a finished run.
func (m *Metrics) Snapshot(now float64, live LiveState) Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := Snapshot{
		Policy:            m.policy,
		Time:              now,
		Requests:          m.requests,
		Matched:           m.matched,
		Expired:           m.expired,
		DynamicInsertions: m.dynamicInsertions,
		CompletedTrips:    m.completedTrips,
		Drivers:           m.drivers,
		TripCost:          m.tripCost,
		ExpiryPenalty:     float64(m.expired) * m.expiryPenalty,
		Waiting:           live.Waiting,
		IdleDrivers:       live.IdleDrivers,
		IdleByTier:        live.IdleByTier,
		ActiveTrips:       live.ActiveTrips,
		Onboard:           live.Onboard,
	}
	s.TotalCost = s.TripCost + s.ExpiryPenalty

	if m.requests > 0 {
		s.MatchRate = float64(m.matched) / float64(m.requests)
	}
	if len(m.poolSizes) > 0 {
		s.AvgPoolSize = stat.Mean(m.poolSizes, nil)
	}
	if len(m.waits) > 0 {
		s.AvgWait = stat.Mean(m.waits, nil)
		sorted := append([]float64{}, m.waits...)
		sort.Float64s(sorted)
		s.P90Wait = stat.Quantile(0.9, stat.Empirical, sorted, nil)
	}
	if len(m.detours) > 0 {
		s.AvgDetour = stat.Mean(m.detours, nil)
	}
	return s
}

// Recent returns the tail of the record feed for display.
func (m *Metrics) Recent() []Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Record, len(m.recent))
	copy(out, m.recent)
	return out
}

// ComparisonReport renders a side-by-side summary of the two policy runs.
func ComparisonReport(a, b Snapshot) string {
	var sb strings.Builder
	row := func(label, fa, fb string) {
		fmt.Fprintf(&sb, "%-22s %14s %14s\n", label, fa, fb)
	}
	fmt.Fprintf(&sb, "%-22s %14s %14s\n", "", a.Policy, b.Policy)
	row("requests", fmt.Sprintf("%d", a.Requests), fmt.Sprintf("%d", b.Requests))
	row("matched", fmt.Sprintf("%d", a.Matched), fmt.Sprintf("%d", b.Matched))
	row("expired", fmt.Sprintf("%d", a.Expired), fmt.Sprintf("%d", b.Expired))
	row("match rate", fmt.Sprintf("%.3f", a.MatchRate), fmt.Sprintf("%.3f", b.MatchRate))
	row("completed trips", fmt.Sprintf("%d", a.CompletedTrips), fmt.Sprintf("%d", b.CompletedTrips))
	row("avg pool size", fmt.Sprintf("%.2f", a.AvgPoolSize), fmt.Sprintf("%.2f", b.AvgPoolSize))
	row("dynamic insertions", fmt.Sprintf("%d", a.DynamicInsertions), fmt.Sprintf("%d", b.DynamicInsertions))
	row("avg wait (s)", fmt.Sprintf("%.1f", a.AvgWait), fmt.Sprintf("%.1f", b.AvgWait))
	row("p90 wait (s)", fmt.Sprintf("%.1f", a.P90Wait), fmt.Sprintf("%.1f", b.P90Wait))
	row("avg detour ratio", fmt.Sprintf("%.3f", a.AvgDetour), fmt.Sprintf("%.3f", b.AvgDetour))
	row("total cost", fmt.Sprintf("%.2f", a.TotalCost), fmt.Sprintf("%.2f", b.TotalCost))
	if a.TotalCost > 0 {
		saving := (a.TotalCost - b.TotalCost) / a.TotalCost * 100
		fmt.Fprintf(&sb, "\ncost delta (%s vs %s): %.1f%%\n", b.Policy, a.Policy, saving)
	}
	return sb.String()
}

// WriteSnapshotsJSON exports a series of snapshots to a JSON file.
func WriteSnapshotsJSON(path string, snaps []Snapshot) error {
	data, err := json.MarshalIndent(snaps, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding snapshots: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
