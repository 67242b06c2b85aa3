package sim

import (
	"testing"

	"github.com/gridpulse/evsim/core/model"
)

func TestPopulationSizes(t *testing.T) {
	env := newTestEnv(t, func(c *Config) {
		c.StationCount = 3
		c.ChargersPerStation = 4
		c.UserCount = 25
	})
	if len(env.users) != 25 || len(env.userOrder) != 25 {
		t.Fatalf("users = %d, want 25", len(env.users))
	}
	if len(env.chargers) != 12 || len(env.chargerOrder) != 12 {
		t.Fatalf("chargers = %d, want 12", len(env.chargers))
	}

	stations := make(map[string]int)
	for _, id := range env.chargerOrder {
		stations[env.chargers[id].StationID]++
	}
	if len(stations) != 3 {
		t.Fatalf("stations = %d, want 3", len(stations))
	}
	for id, n := range stations {
		if n != 4 {
			t.Fatalf("station %s has %d chargers, want 4", id, n)
		}
	}
}

func TestPopulationWithinBoundsAndCatalog(t *testing.T) {
	env := newTestEnv(t, func(c *Config) { c.UserCount = 200 })
	b := env.cfg.MapBounds

	for _, id := range env.userOrder {
		u := env.users[id]
		if u.Position.Lat < b.LatMin || u.Position.Lat > b.LatMax ||
			u.Position.Lng < b.LngMin || u.Position.Lng > b.LngMax {
			t.Fatalf("user %s outside service area: %+v", id, u.Position)
		}
		spec, ok := vehicleCatalog[u.VehicleType]
		if !ok {
			t.Fatalf("user %s has unknown vehicle type %q", id, u.VehicleType)
		}
		if u.BatteryCapacityKWh != spec.batteryKWh || u.MaxRangeKm != spec.rangeKm {
			t.Fatalf("user %s deviates from the %s catalog entry", id, u.VehicleType)
		}
		if u.SoC < 10 || u.SoC > 95 {
			t.Fatalf("user %s starts at %f%% SoC, want [10,95]", id, u.SoC)
		}
		if u.ChargingEfficiency < 0.85 || u.ChargingEfficiency > 0.95 {
			t.Fatalf("user %s efficiency %f out of range", id, u.ChargingEfficiency)
		}
		if u.PrefersFastCharger != (u.FastChargePref > 0.6) {
			t.Fatalf("user %s fast-charge preference flag inconsistent", id)
		}
	}
}

func TestChargerPowersMatchType(t *testing.T) {
	env := newTestEnv(t, func(c *Config) {
		c.StationCount = 10
		c.ChargersPerStation = 10
	})
	typed := make(map[model.ChargerType]int)
	for _, id := range env.chargerOrder {
		c := env.chargers[id]
		typed[c.Type]++
		switch c.Type {
		case model.ChargerSuperfast:
			if c.MaxPowerKW < 250 || c.MaxPowerKW > 400 || c.PriceMultiplier != 1.5 {
				t.Fatalf("superfast charger %s out of range: %f kW x%f", id, c.MaxPowerKW, c.PriceMultiplier)
			}
		case model.ChargerFast:
			if c.MaxPowerKW < 60 || c.MaxPowerKW > 120 || c.PriceMultiplier != 1.2 {
				t.Fatalf("fast charger %s out of range: %f kW x%f", id, c.MaxPowerKW, c.PriceMultiplier)
			}
		default:
			if c.MaxPowerKW < 7 || c.MaxPowerKW > 20 || c.PriceMultiplier != 1.0 {
				t.Fatalf("normal charger %s out of range: %f kW x%f", id, c.MaxPowerKW, c.PriceMultiplier)
			}
		}
		if c.Region == "" {
			t.Fatalf("charger %s has no region", id)
		}
		if c.QueueCapacity != env.cfg.QueueCapacity {
			t.Fatalf("charger %s queue capacity %d, want %d", id, c.QueueCapacity, env.cfg.QueueCapacity)
		}
	}
	// With 100 chargers all three classes should be present.
	if len(typed) != 3 {
		t.Fatalf("charger classes present = %v, want all three", typed)
	}
}

func TestResetReproducibleFromSeed(t *testing.T) {
	env := newTestEnv(t, nil)
	first := make(map[string]float64, len(env.users))
	for id, u := range env.users {
		first[id] = u.SoC
	}
	env.Reset()
	for id, soc := range first {
		u, ok := env.users[id]
		if !ok {
			t.Fatalf("user %s missing after reset", id)
		}
		if u.SoC != soc {
			t.Fatalf("user %s SoC %f after reset, want %f", id, u.SoC, soc)
		}
	}
}
