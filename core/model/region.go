package model

// RegionState holds the derived electrical state of a region, recomputed
// every tick.
type RegionState struct {
	BaseLoadKW      float64 `json:"base_load"`
	EVLoadKW        float64 `json:"ev_load"`
	TotalLoadKW     float64 `json:"total_load"`
	SolarKW         float64 `json:"solar_generation"`
	WindKW          float64 `json:"wind_generation"`
	LoadPercent     float64 `json:"grid_load_percentage"`
	RenewableRatio  float64 `json:"renewable_ratio"`
	CarbonIntensity float64 `json:"carbon_intensity"`
}

// Region models one zone of the grid with 24-hour generation and load
// profiles.
type Region struct {
	ID string `json:"id"`

	BaseLoadProfile [24]float64 `json:"base_load_profile"`
	SolarProfile    [24]float64 `json:"solar_profile"`
	WindProfile     [24]float64 `json:"wind_profile"`
	CapacityKW      float64     `json:"system_capacity_kw"`

	// Adjacent lists neighbouring region ids for transfer bookkeeping.
	Adjacent []string `json:"adjacent,omitempty"`

	Current RegionState `json:"current_state"`
}

// Connection tracks power exchange between two adjacent regions.
type Connection struct {
	From               string  `json:"from"`
	To                 string  `json:"to"`
	TransferCapacityKW float64 `json:"transfer_capacity"`
	CurrentTransferKW  float64 `json:"current_transfer"`
}

// TimeBand classifies an hour against the tariff schedule.
type TimeBand int

const (
	BandShoulder TimeBand = iota
	BandPeak
	BandValley
)

// String returns the band name.
func (b TimeBand) String() string {
	switch b {
	case BandPeak:
		return "peak"
	case BandValley:
		return "valley"
	default:
		return "shoulder"
	}
}

// BandOf classifies hour using the given peak and valley hour sets.
func BandOf(hour int, peak, valley []int) TimeBand {
	for _, h := range peak {
		if h == hour {
			return BandPeak
		}
	}
	for _, h := range valley {
		if h == hour {
			return BandValley
		}
	}
	return BandShoulder
}
