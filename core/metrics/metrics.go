// Package metrics defines the recording interfaces the simulation core
// emits into. Implementations live under infra/metrics.
package metrics

import (
	"time"

	"github.com/gridpulse/evsim/core/model"
	"github.com/gridpulse/evsim/core/rewards"
)

// TickResult is the per-tick observation handed to sinks.
type TickResult struct {
	Time              time.Time
	Algorithm         string
	Assignments       int
	SessionsCompleted int
	Rewards           rewards.Rewards
	Grid              model.GridSnapshot
}

// TickRecorder records per-tick simulation results.
type TickRecorder interface {
	RecordTick(t TickResult) error
}

// SessionRecorder records completed charging sessions.
type SessionRecorder interface {
	RecordSession(s model.ChargingSession) error
}

// Sink combines the recorders the simulation loop feeds.
type Sink interface {
	TickRecorder
	SessionRecorder
}

// NopSink discards everything.
type NopSink struct{}

func (NopSink) RecordTick(TickResult) error               { return nil }
func (NopSink) RecordSession(model.ChargingSession) error { return nil }
