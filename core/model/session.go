package model

import "time"

// TerminationReason explains why a charging session ended.
type TerminationReason int

const (
	TargetReached TerminationReason = iota
	TimeLimitExceeded
)

// String returns the reason name.
func (r TerminationReason) String() string {
	switch r {
	case TargetReached:
		return "target_reached"
	case TimeLimitExceeded:
		return "time_limit_exceeded"
	default:
		return "unknown"
	}
}

// ChargingSession is the immutable record emitted when a session completes.
// It is handed to the persistence collaborator by value.
type ChargingSession struct {
	ID              string            `json:"session_id"`
	UserID          string            `json:"user_id"`
	ChargerID       string            `json:"charger_id"`
	StationID       string            `json:"station_id"`
	StartTime       time.Time         `json:"start_time"`
	EndTime         time.Time         `json:"end_time"`
	DurationMinutes float64           `json:"duration_minutes"`
	InitialSoC      float64           `json:"initial_soc"`
	FinalSoC        float64           `json:"final_soc"`
	EnergyKWh       float64           `json:"energy_charged_grid"`
	Revenue         float64           `json:"cost"`
	Reason          TerminationReason `json:"-"`
	Manual          bool              `json:"manual_decision"`
}
