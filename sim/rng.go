package sim

import (
	"hash/fnv"
	"math/rand"
)

// RNG subsystem names. Each subsystem draws from its own deterministically
// derived stream so adding draws to one subsystem cannot perturb another.
const (
	SubsystemRequests = "requests"
	SubsystemDrivers  = "drivers"
	SubsystemPatience = "patience"
)

// PartitionedRNG provides deterministic, isolated RNG instances per
// subsystem. Two runs with the same seed produce identical streams.
//
// Thread-safety: NOT thread-safe. Arrival generation happens once, up front,
// on a single goroutine.
type PartitionedRNG struct {
	seed       int64
	subsystems map[string]*rand.Rand
}

// NewPartitionedRNG creates a PartitionedRNG from a master seed.
func NewPartitionedRNG(seed int64) *PartitionedRNG {
	return &PartitionedRNG{
		seed:       seed,
		subsystems: make(map[string]*rand.Rand),
	}
}

// ForSubsystem returns the RNG for the named subsystem, derived as
// masterSeed XOR fnv1a64(name). The same name always returns the same cached
// instance. Never returns nil.
func (p *PartitionedRNG) ForSubsystem(name string) *rand.Rand {
	if rng, ok := p.subsystems[name]; ok {
		return rng
	}
	rng := rand.New(rand.NewSource(p.seed ^ fnv1a64(name)))
	p.subsystems[name] = rng
	return rng
}

// Seed returns the master seed.
func (p *PartitionedRNG) Seed() int64 {
	return p.seed
}

// fnv1a64 computes a 64-bit FNV-1a hash of the input string.
func fnv1a64(s string) int64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return int64(h.Sum64())
}
