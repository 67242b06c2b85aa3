package sim

import (
	"fmt"
	"time"
)

// Bounds is the rectangular service area users and stations live in.
type Bounds struct {
	LatMin float64 `json:"lat_min"`
	LatMax float64 `json:"lat_max"`
	LngMin float64 `json:"lng_min"`
	LngMax float64 `json:"lng_max"`
}

// Config sizes the simulated world and the step loop.
type Config struct {
	StationCount       int `json:"station_count"`
	ChargersPerStation int `json:"chargers_per_station"`
	UserCount          int `json:"user_count"`
	QueueCapacity      int `json:"queue_capacity"`

	// SuperfastRatio and FastRatio split the charger fleet by type; the
	// remainder is normal speed.
	SuperfastRatio float64 `json:"superfast_ratio"`
	FastRatio      float64 `json:"fast_ratio"`

	TimeStepMinutes int    `json:"time_step_minutes"`
	SimulationDays  int    `json:"simulation_days"`
	StartTime       string `json:"start_time"`

	// HistorySize bounds the snapshot history kept for reward windows.
	HistorySize int `json:"history_size"`

	// ManualTargetSoC is the session target pinned to manually routed
	// users, replacing the per-session default step.
	ManualTargetSoC float64 `json:"manual_target_soc"`

	Seed int64 `json:"seed"`

	MapBounds Bounds `json:"map_bounds"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.StationCount == 0 {
		c.StationCount = 20
	}
	if c.ChargersPerStation == 0 {
		c.ChargersPerStation = 10
	}
	if c.UserCount == 0 {
		c.UserCount = 1000
	}
	if c.QueueCapacity == 0 {
		c.QueueCapacity = 10
	}
	if c.SuperfastRatio == 0 {
		c.SuperfastRatio = 0.1
	}
	if c.FastRatio == 0 {
		c.FastRatio = 0.4
	}
	if c.TimeStepMinutes == 0 {
		c.TimeStepMinutes = 15
	}
	if c.SimulationDays == 0 {
		c.SimulationDays = 7
	}
	if c.HistorySize == 0 {
		c.HistorySize = 96
	}
	if c.ManualTargetSoC == 0 {
		c.ManualTargetSoC = 85
	}
	if c.Seed == 0 {
		c.Seed = 42
	}
	if c.MapBounds == (Bounds{}) {
		c.MapBounds = Bounds{LatMin: 30.5, LatMax: 31.0, LngMin: 114.0, LngMax: 114.5}
	}
}

// Validate checks structural coherence.
func (c Config) Validate() error {
	if c.StationCount < 1 || c.ChargersPerStation < 1 {
		return fmt.Errorf("sim: need at least one station with one charger")
	}
	if c.UserCount < 1 {
		return fmt.Errorf("sim: user_count must be positive, got %d", c.UserCount)
	}
	if c.SuperfastRatio < 0 || c.FastRatio < 0 || c.SuperfastRatio+c.FastRatio > 1 {
		return fmt.Errorf("sim: charger type ratios invalid (%f superfast, %f fast)", c.SuperfastRatio, c.FastRatio)
	}
	if c.TimeStepMinutes < 1 {
		return fmt.Errorf("sim: time_step_minutes must be positive, got %d", c.TimeStepMinutes)
	}
	if c.StartTime != "" {
		if _, err := time.Parse(time.RFC3339, c.StartTime); err != nil {
			return fmt.Errorf("sim: invalid start_time: %w", err)
		}
	}
	if c.MapBounds.LatMin >= c.MapBounds.LatMax || c.MapBounds.LngMin >= c.MapBounds.LngMax {
		return fmt.Errorf("sim: degenerate map bounds")
	}
	if c.ManualTargetSoC < 0 || c.ManualTargetSoC > 100 {
		return fmt.Errorf("sim: manual_target_soc %f out of range", c.ManualTargetSoC)
	}
	return nil
}

func (c Config) startTime() time.Time {
	if c.StartTime != "" {
		if t, err := time.Parse(time.RFC3339, c.StartTime); err == nil {
			return t
		}
	}
	return time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)
}
