package metrics

import (
	coremetrics "github.com/gridpulse/evsim/core/metrics"
	"github.com/gridpulse/evsim/core/model"
)

// MultiSink fans records out to multiple sinks.
type MultiSink struct {
	Sinks []coremetrics.Sink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...coremetrics.Sink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordTick forwards the record to all sinks, returning the first error.
func (m *MultiSink) RecordTick(t coremetrics.TickResult) error {
	for _, s := range m.Sinks {
		if err := s.RecordTick(t); err != nil {
			return err
		}
	}
	return nil
}

// RecordSession forwards the record to all sinks, returning the first error.
func (m *MultiSink) RecordSession(sess model.ChargingSession) error {
	for _, s := range m.Sinks {
		if err := s.RecordSession(sess); err != nil {
			return err
		}
	}
	return nil
}
