package sim

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Region is the bounding box riders and drivers appear in.
type Region struct {
	LatMin float64 `yaml:"lat_min"`
	LatMax float64 `yaml:"lat_max"`
	LonMin float64 `yaml:"lon_min"`
	LonMax float64 `yaml:"lon_max"`
}

// WeibullParams shape rider patience. Scale is in seconds.
type WeibullParams struct {
	Shape float64 `yaml:"shape"`
	Scale float64 `yaml:"scale"`
}

// Config is the full scenario description shared by both policy runs.
type Config struct {
	Seed     int64   `yaml:"seed"`
	Duration float64 `yaml:"duration"` // virtual seconds
	Tick     float64 `yaml:"tick"`     // lockstep advance granularity, virtual seconds

	RequestRate float64       `yaml:"request_rate"` // requests per virtual second
	Region      Region        `yaml:"region"`
	Patience    WeibullParams `yaml:"patience"`

	Capacity       int    `yaml:"capacity"` // seats per vehicle, 2 to 4
	InitialDrivers int    `yaml:"initial_drivers"`
	MaxDrivers     int    `yaml:"max_drivers"` // 0 means unbounded
	Tiers          []Tier `yaml:"tiers"`

	ClusterRadiusKm float64 `yaml:"cluster_radius_km"`
	InsertionBound  int     `yaml:"insertion_bound"` // 0 means unbounded

	CostConfig `yaml:",inline"`

	MetricsInterval float64 `yaml:"metrics_interval"` // virtual seconds between snapshots
}

// DefaultConfig returns a runnable scenario covering central India, matching
// the defaults the CLI falls back to when no scenario file is given.
func DefaultConfig() *Config {
	return &Config{
		Seed:        42,
		Duration:    3600,
		Tick:        1.0,
		RequestRate: 0.05,
		Region: Region{
			LatMin: 15.6, LatMax: 22.1,
			LonMin: 72.6, LonMax: 80.9,
		},
		Patience:       WeibullParams{Shape: 1.5, Scale: 600},
		Capacity:       3,
		InitialDrivers: 10,
		MaxDrivers:     50,
		Tiers: []Tier{
			{ID: "fast", Name: "Fast", CostPerMin: 12.0, ArrivalRate: 0.002, SpeedFactor: 1.3},
			{ID: "normal", Name: "Normal", CostPerMin: 8.0, ArrivalRate: 0.005, SpeedFactor: 1.0},
			{ID: "economy", Name: "Economy", CostPerMin: 5.0, ArrivalRate: 0.008, SpeedFactor: 0.8},
		},
		ClusterRadiusKm: 25.0,
		InsertionBound:  8,
		CostConfig: CostConfig{
			WaitingCostPerSec:   0.02,
			DetourMax:           1.5,
			DetourPenaltyOnset:  1.25,
			DetourPenaltyPerSec: 0.05,
			PenaltyCurve:        PenaltyLinear,
			ExpiryPenalty:       50.0,
		},
		MetricsInterval: 60,
	}
}

// Validate rejects scenarios the simulators cannot run.
func (c *Config) Validate() error {
	if c.Duration <= 0 {
		return fmt.Errorf("%w: duration must be positive, got %.2f", ErrInvalidConfig, c.Duration)
	}
	if c.Tick <= 0 {
		return fmt.Errorf("%w: tick must be positive, got %.2f", ErrInvalidConfig, c.Tick)
	}
	if c.DetourMax <= 1.0 {
		return fmt.Errorf("%w: detour_max must exceed 1.0, got %.3f", ErrInvalidConfig, c.DetourMax)
	}
	if c.DetourPenaltyOnset > 0 && c.DetourPenaltyOnset > c.DetourMax {
		return fmt.Errorf("%w: detour_penalty_onset %.3f exceeds detour_max %.3f", ErrInvalidConfig, c.DetourPenaltyOnset, c.DetourMax)
	}
	if c.Capacity < 2 || c.Capacity > 4 {
		return fmt.Errorf("%w: capacity must be 2, 3 or 4, got %d", ErrInvalidConfig, c.Capacity)
	}
	if c.ClusterRadiusKm <= 0 {
		return fmt.Errorf("%w: cluster_radius_km must be positive, got %.2f", ErrInvalidConfig, c.ClusterRadiusKm)
	}
	if c.RequestRate < 0 {
		return fmt.Errorf("%w: request_rate must be non-negative, got %.4f", ErrInvalidConfig, c.RequestRate)
	}
	if c.Region.LatMin >= c.Region.LatMax || c.Region.LonMin >= c.Region.LonMax {
		return fmt.Errorf("%w: region bounds are empty", ErrInvalidConfig)
	}
	if len(c.Tiers) == 0 {
		return fmt.Errorf("%w: at least one driver tier is required", ErrInvalidConfig)
	}
	for _, t := range c.Tiers {
		if t.SpeedFactor <= 0 {
			return fmt.Errorf("%w: tier %s has non-positive speed factor", ErrInvalidConfig, t.ID)
		}
	}
	if c.Patience.Shape <= 0 || c.Patience.Scale <= 0 {
		return fmt.Errorf("%w: patience shape and scale must be positive", ErrInvalidConfig)
	}
	return nil
}

// LoadConfig reads a YAML scenario file over the defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario %s: %w", path, err)
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing scenario %s: %w", path, err)
	}
	return cfg, nil
}
