// Workload generation. The arrival stream is generated once per run from the
// scenario seed and holds immutable specs; each policy's simulator
// materializes its own request and driver objects from the same stream, so
// both runs face an identical world.

package sim

import (
	"fmt"
	"math"
	"math/rand"
)

// RequestSpec is an immutable rider arrival.
type RequestSpec struct {
	ID          string
	Time        float64
	Origin      Point
	Destination Point
	Patience    float64
	DetourMax   float64
}

// DriverSpec is an immutable driver arrival.
type DriverSpec struct {
	ID       string
	Time     float64
	Tier     Tier
	Position Point
}

// ArrivalStream is the pre-generated world both policy runs share.
type ArrivalStream struct {
	Requests []RequestSpec
	Drivers  []DriverSpec
}

// GenerateStream draws the full arrival stream for a scenario. Requests
// arrive as a Poisson process at cfg.RequestRate; each tier contributes its
// own Poisson driver arrivals; cfg.InitialDrivers are placed at t=0, cycling
// through the tiers. Patience is Weibull-distributed.
func GenerateStream(cfg *Config) *ArrivalStream {
	prng := NewPartitionedRNG(cfg.Seed)
	st := &ArrivalStream{}

	reqRNG := prng.ForSubsystem(SubsystemRequests)
	patRNG := prng.ForSubsystem(SubsystemPatience)
	n := 0
	for t := nextArrival(reqRNG, cfg.RequestRate, 0); t < cfg.Duration; t = nextArrival(reqRNG, cfg.RequestRate, t) {
		st.Requests = append(st.Requests, RequestSpec{
			ID:          fmt.Sprintf("r_%06d", n),
			Time:        t,
			Origin:      randomPoint(reqRNG, cfg.Region),
			Destination: randomPoint(reqRNG, cfg.Region),
			Patience:    weibull(patRNG, cfg.Patience.Shape, cfg.Patience.Scale),
			DetourMax:   cfg.DetourMax,
		})
		n++
	}

	drvRNG := prng.ForSubsystem(SubsystemDrivers)
	d := 0
	for i := 0; i < cfg.InitialDrivers; i++ {
		tier := cfg.Tiers[i%len(cfg.Tiers)]
		st.Drivers = append(st.Drivers, DriverSpec{
			ID:       fmt.Sprintf("d_%06d", d),
			Time:     0,
			Tier:     tier,
			Position: randomPoint(drvRNG, cfg.Region),
		})
		d++
	}
	for _, tier := range cfg.Tiers {
		for t := nextArrival(drvRNG, tier.ArrivalRate, 0); t < cfg.Duration; t = nextArrival(drvRNG, tier.ArrivalRate, t) {
			st.Drivers = append(st.Drivers, DriverSpec{
				ID:       fmt.Sprintf("d_%06d", d),
				Time:     t,
				Tier:     tier,
				Position: randomPoint(drvRNG, cfg.Region),
			})
			d++
		}
	}
	return st
}

// ScheduleInto materializes fresh request and driver objects from the stream
// and enqueues their arrival events. Each simulator gets its own objects so
// per-run mutable state never leaks across policies.
func (st *ArrivalStream) ScheduleInto(s *Simulator) {
	for _, spec := range st.Requests {
		s.Schedule(&RequestArrivalEvent{At: spec.Time, Request: &Request{
			ID:          spec.ID,
			Origin:      spec.Origin,
			Destination: spec.Destination,
			ArrivalTime: spec.Time,
			Patience:    spec.Patience,
			DetourMax:   spec.DetourMax,
			Status:      RequestWaiting,
		}})
	}
	for _, spec := range st.Drivers {
		s.Schedule(&DriverArrivalEvent{At: spec.Time, Driver: &Driver{
			ID:       spec.ID,
			Tier:     spec.Tier,
			Position: spec.Position,
			Status:   DriverIdle,
		}})
	}
}

// nextArrival advances a Poisson process: exponential inter-arrival at the
// given rate. A zero rate yields no arrivals.
func nextArrival(rng *rand.Rand, rate, after float64) float64 {
	if rate <= 0 {
		return math.Inf(1)
	}
	return after + rng.ExpFloat64()/rate
}

func randomPoint(rng *rand.Rand, r Region) Point {
	return Point{
		Lat: r.LatMin + rng.Float64()*(r.LatMax-r.LatMin),
		Lon: r.LonMin + rng.Float64()*(r.LonMax-r.LonMin),
	}
}

// weibull draws via inverse CDF: scale * (-ln U)^(1/shape).
func weibull(rng *rand.Rand, shape, scale float64) float64 {
	u := rng.Float64()
	for u == 0 {
		u = rng.Float64()
	}
	return scale * math.Pow(-math.Log(u), 1.0/shape)
}
