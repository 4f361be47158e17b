package sim

import "fmt"

// DriverStatus represents the lifecycle state of a driver.
type DriverStatus string

const (
	DriverIdle          DriverStatus = "idle"
	DriverEnRoutePickup DriverStatus = "en_route_pickup"
	DriverInTrip        DriverStatus = "in_trip"
)

// Tier describes a class of driver (economy/normal/fast). The tier determines
// the per-minute cost rate charged for driving time, the Poisson rate at which
// drivers of this tier enter the system, and a speed multiplier applied to
// oracle travel times.
type Tier struct {
	ID          string  `yaml:"id"`
	Name        string  `yaml:"name"`
	CostPerMin  float64 `yaml:"cost_per_min"`
	ArrivalRate float64 `yaml:"arrival_rate"` // drivers per virtual second
	SpeedFactor float64 `yaml:"speed_factor"` // >1 is faster than the oracle baseline
}

// Driver models a vehicle in the system. A driver is idle until matched,
// exclusively owns its trip while one is active, and returns to idle at the
// trip's final drop-off location.
type Driver struct {
	ID       string
	Tier     Tier
	Position Point
	Status   DriverStatus

	TripID         string
	AvailableSince float64
}

// travelTime converts an oracle duration into this driver's travel time.
func (d *Driver) travelTime(oracleDuration float64) float64 {
	if d.Tier.SpeedFactor > 0 {
		return oracleDuration / d.Tier.SpeedFactor
	}
	return oracleDuration
}

func (d Driver) String() string {
	return fmt.Sprintf("Driver(ID: %s, Tier: %s, Status: %s)", d.ID, d.Tier.Name, d.Status)
}
