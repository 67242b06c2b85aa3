package metrics

import (
	"errors"
	"testing"

	coremetrics "github.com/gridpulse/evsim/core/metrics"
	"github.com/gridpulse/evsim/core/model"
)

type recordingSink struct {
	ticks    int
	sessions int
	err      error
}

func (s *recordingSink) RecordTick(coremetrics.TickResult) error {
	s.ticks++
	return s.err
}

func (s *recordingSink) RecordSession(model.ChargingSession) error {
	s.sessions++
	return s.err
}

func TestMultiSinkFansOut(t *testing.T) {
	a, b := &recordingSink{}, &recordingSink{}
	m := NewMultiSink(a, b)

	if err := m.RecordTick(coremetrics.TickResult{}); err != nil {
		t.Fatalf("record tick: %v", err)
	}
	if err := m.RecordSession(model.ChargingSession{UserID: "u1"}); err != nil {
		t.Fatalf("record session: %v", err)
	}
	if a.ticks != 1 || b.ticks != 1 || a.sessions != 1 || b.sessions != 1 {
		t.Fatalf("fan-out incomplete: %+v %+v", a, b)
	}
}

func TestMultiSinkReturnsFirstError(t *testing.T) {
	boom := errors.New("boom")
	a := &recordingSink{err: boom}
	b := &recordingSink{}
	m := NewMultiSink(a, b)

	if err := m.RecordTick(coremetrics.TickResult{}); !errors.Is(err, boom) {
		t.Fatalf("error = %v, want boom", err)
	}
	if b.ticks != 0 {
		t.Fatal("later sinks must not run after a failure")
	}
}

func TestEmptyMultiSink(t *testing.T) {
	m := NewMultiSink()
	if err := m.RecordTick(coremetrics.TickResult{}); err != nil {
		t.Fatalf("empty sink errored: %v", err)
	}
}
