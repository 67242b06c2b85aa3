package grid

import "fmt"

// RegionConfig describes one grid zone. Profiles are hour-indexed; a
// missing or malformed profile falls back to the built-in defaults.
type RegionConfig struct {
	ID              string    `json:"id"`
	BaseLoadProfile []float64 `json:"base_load_profile"`
	SolarProfile    []float64 `json:"solar_profile"`
	WindProfile     []float64 `json:"wind_profile"`
	CapacityKW      float64   `json:"system_capacity_kw"`
}

// Config drives the regional grid model.
type Config struct {
	Regions []RegionConfig `json:"regions"`
	// RegionCount is used to generate default regions when Regions is empty.
	RegionCount int `json:"region_count"`

	PeakHours   []int `json:"peak_hours"`
	ValleyHours []int `json:"valley_hours"`

	NormalPrice float64 `json:"normal_price"`
	PeakPrice   float64 `json:"peak_price"`
	ValleyPrice float64 `json:"valley_price"`

	// CarbonBase is the gCO2/kWh intensity at zero renewable share.
	CarbonBase       float64 `json:"carbon_base"`
	NightCarbonScale float64 `json:"night_carbon_scale"`

	TransferCapacityKW float64 `json:"transfer_capacity_kw"`

	// HistorySize bounds the time-series ring buffer.
	HistorySize int `json:"history_size"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.RegionCount == 0 {
		c.RegionCount = 5
	}
	if len(c.PeakHours) == 0 {
		c.PeakHours = []int{7, 8, 9, 10, 18, 19, 20, 21}
	}
	if len(c.ValleyHours) == 0 {
		c.ValleyHours = []int{0, 1, 2, 3, 4, 5}
	}
	if c.NormalPrice == 0 {
		c.NormalPrice = 0.85
	}
	if c.PeakPrice == 0 {
		c.PeakPrice = 1.2
	}
	if c.ValleyPrice == 0 {
		c.ValleyPrice = 0.4
	}
	if c.CarbonBase == 0 {
		c.CarbonBase = 800
	}
	if c.NightCarbonScale == 0 {
		c.NightCarbonScale = 1.1
	}
	if c.TransferCapacityKW == 0 {
		c.TransferCapacityKW = 1000
	}
	if c.HistorySize == 0 {
		c.HistorySize = 288
	}
}

// Validate checks the configuration can produce at least one region.
func (c Config) Validate() error {
	if len(c.Regions) == 0 && c.RegionCount <= 0 {
		return fmt.Errorf("grid: no regions configured and region_count is %d", c.RegionCount)
	}
	if c.HistorySize < 1 {
		return fmt.Errorf("grid: history_size must be positive, got %d", c.HistorySize)
	}
	for _, r := range c.Regions {
		if r.ID == "" {
			return fmt.Errorf("grid: region with empty id")
		}
	}
	return nil
}
