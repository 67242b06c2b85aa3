package model

import "time"

// ChargerType identifies the hardware class of a charging point.
type ChargerType int

const (
	ChargerNormal ChargerType = iota
	ChargerFast
	ChargerSuperfast
)

// String returns the charger type name.
func (t ChargerType) String() string {
	switch t {
	case ChargerNormal:
		return "normal"
	case ChargerFast:
		return "fast"
	case ChargerSuperfast:
		return "superfast"
	default:
		return "unknown"
	}
}

// MaxSessionMinutes returns the per-type charging time cap.
func (t ChargerType) MaxSessionMinutes() float64 {
	switch t {
	case ChargerSuperfast:
		return 30
	case ChargerFast:
		return 60
	default:
		return 180
	}
}

// ChargerStatus describes charging point availability.
type ChargerStatus int

const (
	ChargerAvailable ChargerStatus = iota
	ChargerOccupied
	ChargerFailure
)

// String returns the status name.
func (s ChargerStatus) String() string {
	switch s {
	case ChargerAvailable:
		return "available"
	case ChargerOccupied:
		return "occupied"
	case ChargerFailure:
		return "failure"
	default:
		return "unknown"
	}
}

// Charger is a single charging point. The queue holds user ids in admission
// order; its length never exceeds QueueCapacity except for a force-inserted
// locked override.
type Charger struct {
	ID        string      `json:"charger_id"`
	StationID string      `json:"station_id"`
	Region    string      `json:"region,omitempty"`
	Type      ChargerType `json:"-"`

	MaxPowerKW      float64 `json:"max_power"`
	PriceMultiplier float64 `json:"price_multiplier"`

	Status      ChargerStatus `json:"-"`
	Position    Position      `json:"position"`
	CurrentUser string        `json:"current_user,omitempty"`

	Queue         []string `json:"queue"`
	QueueCapacity int      `json:"queue_capacity"`

	DailyRevenue   float64 `json:"daily_revenue"`
	DailyEnergyKWh float64 `json:"daily_energy"`

	// Session accumulators, reset when a new session starts.
	SessionStart       time.Time `json:"-"`
	SessionBaseEnergy  float64   `json:"-"`
	SessionBaseRevenue float64   `json:"-"`
	FailureUntilRepair int       `json:"-"`
}

// QueueFull reports whether the queue is at or above capacity.
func (c *Charger) QueueFull() bool { return len(c.Queue) >= c.QueueCapacity }

// InQueue reports whether the user is already queued here.
func (c *Charger) InQueue(userID string) bool {
	for _, id := range c.Queue {
		if id == userID {
			return true
		}
	}
	return false
}

// RemoveFromQueue drops the user from the queue if present.
func (c *Charger) RemoveFromQueue(userID string) {
	for i, id := range c.Queue {
		if id == userID {
			c.Queue = append(c.Queue[:i], c.Queue[i+1:]...)
			return
		}
	}
}

// EffectiveLoad counts queued users plus the one charging, used by
// strategies to compare expected waiting.
func (c *Charger) EffectiveLoad() int {
	n := len(c.Queue)
	if c.Status == ChargerOccupied {
		n++
	}
	return n
}
