package grid

import (
	"testing"
	"time"

	"github.com/gridpulse/evsim/infra/logger"
)

func newTestModel(t *testing.T) *Model {
	t.Helper()
	m, err := New(Config{}, logger.NopLogger{})
	if err != nil {
		t.Fatalf("new model: %v", err)
	}
	return m
}

func TestStagedDischargeNetsAgainstLoad(t *testing.T) {
	m := newTestModel(t)
	if err := m.StageDischarge(50); err != nil {
		t.Fatalf("stage: %v", err)
	}
	if got := m.PendingDischarge(); got != 50 {
		t.Fatalf("pending = %f, want 50", got)
	}

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	m.UpdateStep(now, 80)

	snap := m.Snapshot()
	if diff := snap.EVLoadKW - 30; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("net EV load = %f, want 30", snap.EVLoadKW)
	}
	if snap.V2GDispatchedKW != 50 {
		t.Fatalf("dispatched = %f, want 50", snap.V2GDispatchedKW)
	}
	if m.PendingDischarge() != 0 {
		t.Fatalf("staging not reset after consume")
	}

	// Nothing staged now: the next tick sees the raw charging load.
	m.UpdateStep(now.Add(15*time.Minute), 80)
	snap = m.Snapshot()
	if diff := snap.EVLoadKW - 80; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("EV load after settle = %f, want 80", snap.EVLoadKW)
	}
}

func TestStageDischargeAccumulates(t *testing.T) {
	m := newTestModel(t)
	if err := m.StageDischarge(20); err != nil {
		t.Fatalf("stage: %v", err)
	}
	if err := m.StageDischarge(30); err != nil {
		t.Fatalf("stage again: %v", err)
	}
	if got := m.PendingDischarge(); got != 50 {
		t.Fatalf("pending = %f, want 50", got)
	}
}

func TestStageDischargeRejectsNegative(t *testing.T) {
	m := newTestModel(t)
	if err := m.StageDischarge(-5); err == nil {
		t.Fatal("expected error for negative discharge")
	}
}

func TestPriceFollowsTimeBand(t *testing.T) {
	m := newTestModel(t)
	cases := []struct {
		hour  int
		price float64
	}{
		{8, 1.2},   // peak
		{3, 0.4},   // valley
		{14, 0.85}, // shoulder
	}
	for _, tc := range cases {
		now := time.Date(2025, 6, 1, tc.hour, 0, 0, 0, time.UTC)
		m.UpdateStep(now, 0)
		if got := m.CurrentPrice(); got != tc.price {
			t.Fatalf("hour %d: price = %f, want %f", tc.hour, got, tc.price)
		}
	}
}

func TestCarbonIntensityNightUplift(t *testing.T) {
	m := newTestModel(t)
	day := m.carbonIntensity(12, 0)
	night := m.carbonIntensity(23, 0)
	if night <= day {
		t.Fatalf("night intensity %f not above day %f", night, day)
	}
	if day != 800 {
		t.Fatalf("day intensity at 0%% renewables = %f, want 800", day)
	}
}

func TestHistoryBounded(t *testing.T) {
	m, err := New(Config{HistorySize: 4}, logger.NopLogger{})
	if err != nil {
		t.Fatalf("new model: %v", err)
	}
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 10; i++ {
		m.UpdateStep(now.Add(time.Duration(i)*15*time.Minute), float64(i))
	}
	series := m.History(0)
	if len(series.Timestamps) != 4 {
		t.Fatalf("history length = %d, want 4", len(series.Timestamps))
	}
	// Oldest first.
	if !series.Timestamps[0].Before(series.Timestamps[3]) {
		t.Fatal("history not ordered oldest first")
	}
}

func TestMalformedProfileFallsBack(t *testing.T) {
	cfg := Config{Regions: []RegionConfig{{
		ID:              "r1",
		BaseLoadProfile: []float64{1, 2, 3}, // wrong length
	}}}
	m, err := New(cfg, logger.NopLogger{})
	if err != nil {
		t.Fatalf("new model: %v", err)
	}
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	m.UpdateStep(now, 0)
	snap := m.Snapshot()
	if snap.Regions["r1"].BaseLoadKW <= 0 {
		t.Fatal("expected default base load profile")
	}
}

func TestRegionIDsStable(t *testing.T) {
	m := newTestModel(t)
	ids := m.RegionIDs()
	if len(ids) != 5 {
		t.Fatalf("region count = %d, want 5", len(ids))
	}
	if ids[0] != "region_0" {
		t.Fatalf("first region = %s, want region_0", ids[0])
	}
}
