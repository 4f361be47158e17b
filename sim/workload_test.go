package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerateStream_SameSeedSameStream(t *testing.T) {
	cfg := testScenario()

	a := GenerateStream(cfg)
	b := GenerateStream(cfg)

	assert.Equal(t, a.Requests, b.Requests)
	assert.Equal(t, a.Drivers, b.Drivers)
}

func TestGenerateStream_DifferentSeedsDiffer(t *testing.T) {
	cfg1 := testScenario()
	cfg2 := testScenario()
	cfg2.Seed = cfg1.Seed + 1

	a := GenerateStream(cfg1)
	b := GenerateStream(cfg2)

	assert.NotEqual(t, a.Requests, b.Requests)
}

func TestGenerateStream_ArrivalsWithinHorizonAndRegion(t *testing.T) {
	cfg := testScenario()
	st := GenerateStream(cfg)

	assert.NotEmpty(t, st.Requests)
	for _, r := range st.Requests {
		assert.GreaterOrEqual(t, r.Time, 0.0)
		assert.Less(t, r.Time, cfg.Duration)
		assert.GreaterOrEqual(t, r.Origin.Lat, cfg.Region.LatMin)
		assert.LessOrEqual(t, r.Origin.Lat, cfg.Region.LatMax)
		assert.GreaterOrEqual(t, r.Origin.Lon, cfg.Region.LonMin)
		assert.LessOrEqual(t, r.Origin.Lon, cfg.Region.LonMax)
		assert.Greater(t, r.Patience, 0.0)
		assert.Equal(t, cfg.DetourMax, r.DetourMax)
	}
}

func TestGenerateStream_InitialDriversAtTimeZero(t *testing.T) {
	cfg := testScenario()
	cfg.InitialDrivers = 6
	st := GenerateStream(cfg)

	initial := 0
	for _, d := range st.Drivers {
		if d.Time == 0 {
			initial++
		}
	}
	assert.GreaterOrEqual(t, initial, 6)

	// The first entries cycle through the configured tiers.
	assert.Equal(t, cfg.Tiers[0].ID, st.Drivers[0].Tier.ID)
	assert.Equal(t, cfg.Tiers[1].ID, st.Drivers[1].Tier.ID)
	assert.Equal(t, cfg.Tiers[2].ID, st.Drivers[2].Tier.ID)
	assert.Equal(t, cfg.Tiers[0].ID, st.Drivers[3].Tier.ID)
}

func TestGenerateStream_ZeroRateYieldsNoRequests(t *testing.T) {
	cfg := testScenario()
	cfg.RequestRate = 0
	st := GenerateStream(cfg)

	assert.Empty(t, st.Requests)
}

func TestGenerateStream_UniqueIDs(t *testing.T) {
	cfg := testScenario()
	st := GenerateStream(cfg)

	seen := map[string]bool{}
	for _, r := range st.Requests {
		assert.False(t, seen[r.ID], "duplicate request id %s", r.ID)
		seen[r.ID] = true
	}
	for _, d := range st.Drivers {
		assert.False(t, seen[d.ID], "duplicate driver id %s", d.ID)
		seen[d.ID] = true
	}
}

func TestScheduleInto_MaterializesIndependentObjects(t *testing.T) {
	cfg := testScenario()
	st := GenerateStream(cfg)
	m := testModel(cfg.CostConfig)

	s1 := testSimulator(NewFCFSPolicy(m), m)
	s2 := testSimulator(NewFCFSPolicy(m), m)
	st.ScheduleInto(s1)
	st.ScheduleInto(s2)

	s1.Run(cfg.Duration)
	s2.Run(cfg.Duration)

	// Identical worlds, identical policies: both runs see the same requests
	// and settle them identically.
	snap1 := s1.Metrics.Snapshot(s1.Clock, s1.Live())
	snap2 := s2.Metrics.Snapshot(s2.Clock, s2.Live())
	assert.Equal(t, snap1.Requests, snap2.Requests)
	assert.Equal(t, snap1.Matched, snap2.Matched)
	assert.Equal(t, snap1.Expired, snap2.Expired)
	assert.InDelta(t, snap1.TotalCost, snap2.TotalCost, 1e-6)
}

func TestWeibull_PositiveAndSeedStable(t *testing.T) {
	rng1 := NewPartitionedRNG(7).ForSubsystem(SubsystemPatience)
	rng2 := NewPartitionedRNG(7).ForSubsystem(SubsystemPatience)

	for i := 0; i < 100; i++ {
		v1 := weibull(rng1, 1.5, 600)
		v2 := weibull(rng2, 1.5, 600)
		assert.Greater(t, v1, 0.0)
		assert.Equal(t, v1, v2)
	}
}
