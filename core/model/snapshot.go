package model

import "time"

// Decisions maps user id to the charger id it should head to. Each user
// appears at most once per tick.
type Decisions map[string]string

// GridSnapshot is the read-only grid view handed to strategies and the
// reward engine.
type GridSnapshot struct {
	Time        time.Time `json:"timestamp"`
	PeakHours   []int     `json:"peak_hours"`
	ValleyHours []int     `json:"valley_hours"`

	CurrentPrice    float64 `json:"current_price"`
	LoadPercent     float64 `json:"grid_load_percentage"`
	RenewableRatio  float64 `json:"renewable_ratio"`
	CarbonIntensity float64 `json:"carbon_intensity"`
	TotalLoadKW     float64 `json:"current_total_load"`
	EVLoadKW        float64 `json:"current_ev_load"`
	V2GDispatchedKW float64 `json:"v2g_dispatched_kw"`
	TotalCapacityKW float64 `json:"total_capacity"`

	Regions     map[string]RegionState `json:"regional_current_state"`
	Connections map[string]Connection  `json:"regional_connections"`
}

// Band classifies the snapshot's hour.
func (g GridSnapshot) Band() TimeBand {
	return BandOf(g.Time.Hour(), g.PeakHours, g.ValleyHours)
}

// Snapshot is a value copy of the whole simulation state at one tick.
// Strategies and the reward engine treat it as immutable.
type Snapshot struct {
	Time     time.Time    `json:"timestamp"`
	Users    []User       `json:"users"`
	Chargers []Charger    `json:"chargers"`
	Grid     GridSnapshot `json:"grid_status"`
}

// UserByID returns a pointer into the snapshot's user slice, or nil.
func (s *Snapshot) UserByID(id string) *User {
	for i := range s.Users {
		if s.Users[i].ID == id {
			return &s.Users[i]
		}
	}
	return nil
}

// ChargerByID returns a pointer into the snapshot's charger slice, or nil.
func (s *Snapshot) ChargerByID(id string) *Charger {
	for i := range s.Chargers {
		if s.Chargers[i].ID == id {
			return &s.Chargers[i]
		}
	}
	return nil
}
