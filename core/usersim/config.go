package usersim

import (
	"fmt"

	"github.com/gridpulse/evsim/core/model"
)

// Hotspot is a named destination area users travel to between charges.
type Hotspot struct {
	Name     string         `json:"name"`
	Position model.Position `json:"position"`
	// Weight biases destination sampling; business areas pull commercial
	// users during working hours and so on.
	Weight float64 `json:"weight"`
}

// Config drives user behaviour.
type Config struct {
	// ForceChargeSoC is the hard floor: at or below it the charge decision
	// is always true.
	ForceChargeSoC float64 `json:"force_charge_soc_threshold"`
	// MinChargeDeficit suppresses charge seeking when the SoC gap is too
	// small to be worth a trip.
	MinChargeDeficit float64 `json:"min_charge_threshold"`

	SigmoidMidpoint float64 `json:"sigmoid_midpoint"`
	SigmoidSlope    float64 `json:"sigmoid_slope"`

	// TravelEnergyPerKm is the base consumption in kWh/km before
	// vehicle/style/condition multipliers.
	TravelEnergyPerKm float64 `json:"travel_energy_per_km"`

	// IdleDrainPerHour maps vehicle type to %SoC lost per hour at rest.
	IdleDrainPerHour map[model.VehicleType]float64 `json:"idle_drain_per_hour"`

	Hotspots []Hotspot `json:"hotspots"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.ForceChargeSoC == 0 {
		c.ForceChargeSoC = 20
	}
	if c.MinChargeDeficit == 0 {
		c.MinChargeDeficit = 25
	}
	if c.SigmoidMidpoint == 0 {
		c.SigmoidMidpoint = 40
	}
	if c.SigmoidSlope == 0 {
		c.SigmoidSlope = 0.1
	}
	if c.TravelEnergyPerKm == 0 {
		c.TravelEnergyPerKm = 0.25
	}
	if c.IdleDrainPerHour == nil {
		c.IdleDrainPerHour = map[model.VehicleType]float64{
			model.VehicleSedan:   0.8,
			model.VehicleSUV:     1.2,
			model.VehicleTruck:   2.0,
			model.VehicleLuxury:  1.0,
			model.VehicleCompact: 0.6,
		}
	}
	if len(c.Hotspots) == 0 {
		c.Hotspots = []Hotspot{
			{Name: "residential", Position: model.Position{Lat: 30.75, Lng: 114.25}, Weight: 1.0},
			{Name: "business", Position: model.Position{Lat: 30.60, Lng: 114.30}, Weight: 0.9},
			{Name: "industrial", Position: model.Position{Lat: 30.55, Lng: 114.40}, Weight: 0.6},
			{Name: "entertainment", Position: model.Position{Lat: 30.65, Lng: 114.20}, Weight: 0.7},
			{Name: "suburban", Position: model.Position{Lat: 30.80, Lng: 114.45}, Weight: 0.5},
		}
	}
}

// Validate checks threshold coherence.
func (c Config) Validate() error {
	if c.ForceChargeSoC < 0 || c.ForceChargeSoC > 100 {
		return fmt.Errorf("usersim: force_charge_soc_threshold %f out of range", c.ForceChargeSoC)
	}
	if c.MinChargeDeficit < 0 || c.MinChargeDeficit > 100 {
		return fmt.Errorf("usersim: min_charge_threshold %f out of range", c.MinChargeDeficit)
	}
	return nil
}
