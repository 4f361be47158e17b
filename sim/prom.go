package sim

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// PromSink publishes per-policy metrics snapshots as Prometheus gauges.
type PromSink struct {
	matchRate   *prometheus.GaugeVec
	avgPoolSize *prometheus.GaugeVec
	totalCost   *prometheus.GaugeVec
	waiting     *prometheus.GaugeVec
	activeTrips *prometheus.GaugeVec
	idleDrivers *prometheus.GaugeVec
	requests    *prometheus.GaugeVec
	expired     *prometheus.GaugeVec
}

// NewPromSink builds the sink and registers its collectors, reusing any
// collector a previous sink already registered.
func NewPromSink(reg prometheus.Registerer) *PromSink {
	gauge := func(name, help string) *prometheus.GaugeVec {
		g := prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "ridepool",
			Name:      name,
			Help:      help,
		}, []string{"policy"})
		if err := reg.Register(g); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				g = are.ExistingCollector.(*prometheus.GaugeVec)
			} else {
				panic(err)
			}
		}
		return g
	}
	return &PromSink{
		matchRate:   gauge("match_rate", "Fraction of settled requests that were matched."),
		avgPoolSize: gauge("avg_pool_size", "Mean passengers per completed trip."),
		totalCost:   gauge("total_cost", "Cumulative trip cost plus expiry penalties."),
		waiting:     gauge("waiting_requests", "Requests currently waiting for a match."),
		activeTrips: gauge("active_trips", "Trips currently in progress."),
		idleDrivers: gauge("idle_drivers", "Drivers currently idle."),
		requests:    gauge("requests_total", "Requests that have arrived."),
		expired:     gauge("expired_total", "Requests that expired unmatched."),
	}
}

// Update pushes one snapshot's values under its policy label.
func (p *PromSink) Update(s Snapshot) {
	labels := prometheus.Labels{"policy": s.Policy}
	p.matchRate.With(labels).Set(s.MatchRate)
	p.avgPoolSize.With(labels).Set(s.AvgPoolSize)
	p.totalCost.With(labels).Set(s.TotalCost)
	p.waiting.With(labels).Set(float64(s.Waiting))
	p.activeTrips.With(labels).Set(float64(s.ActiveTrips))
	p.idleDrivers.With(labels).Set(float64(s.IdleDrivers))
	p.requests.With(labels).Set(float64(s.Requests))
	p.expired.With(labels).Set(float64(s.Expired))
}
