package scheduler

import (
	"math/rand"
	"testing"
	"time"

	"github.com/gridpulse/evsim/core/model"
	"github.com/gridpulse/evsim/core/strategy"
	"github.com/gridpulse/evsim/infra/logger"
)

func newScheduler(t *testing.T, algorithm string) *Scheduler {
	t.Helper()
	s, err := New(Config{Algorithm: algorithm}, logger.NopLogger{}, rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}
	return s
}

func schedSnapshot() *model.Snapshot {
	ts := time.Date(2025, 6, 1, 13, 0, 0, 0, time.UTC)
	return &model.Snapshot{
		Time: ts,
		Users: []model.User{
			{
				ID: "u1", SoC: 18, NeedsCharge: true, Status: model.UserIdle,
				Position: model.Position{Lat: 30.6, Lng: 114.3},
				BatteryCapacityKWh: 60, MaxRangeKm: 400,
			},
			{
				ID: "u2", SoC: 60, Status: model.UserIdle,
				Position: model.Position{Lat: 30.61, Lng: 114.31},
				BatteryCapacityKWh: 60, MaxRangeKm: 400,
			},
		},
		Chargers: []model.Charger{
			{
				ID: "c1", Status: model.ChargerAvailable, Type: model.ChargerFast,
				MaxPowerKW: 120, PriceMultiplier: 1.2, QueueCapacity: 10,
				Position: model.Position{Lat: 30.601, Lng: 114.301},
			},
			{
				ID: "c2", Status: model.ChargerFailure, Type: model.ChargerNormal,
				MaxPowerKW: 20, PriceMultiplier: 1.0, QueueCapacity: 10,
				Position: model.Position{Lat: 30.62, Lng: 114.32},
			},
		},
		Grid: model.GridSnapshot{
			Time:        ts,
			PeakHours:   []int{7, 8, 9, 10, 18, 19, 20, 21},
			ValleyHours: []int{0, 1, 2, 3, 4, 5},
		},
	}
}

func TestNewRejectsUnknownAlgorithm(t *testing.T) {
	if _, err := New(Config{Algorithm: "genetic"}, logger.NopLogger{}, rand.New(rand.NewSource(1))); err == nil {
		t.Fatal("unknown algorithm must be rejected")
	}
}

func TestManualOverridesStrategy(t *testing.T) {
	s := newScheduler(t, AlgoRuleBased)
	snap := schedSnapshot()

	decisions, meta := s.Decide(snap, model.Decisions{"u2": "c1"}, strategy.Preferences{})
	if decisions["u2"] != "c1" {
		t.Fatalf("manual decision lost: %v", decisions)
	}
	if meta.Assignments != len(decisions) {
		t.Fatalf("assignments metadata %d != %d decisions", meta.Assignments, len(decisions))
	}
}

func TestManualRejectsInvalidTargets(t *testing.T) {
	s := newScheduler(t, AlgoRuleBased)
	snap := schedSnapshot()

	decisions, _ := s.Decide(snap, model.Decisions{
		"ghost": "c1", // unknown user
		"u2":    "c9", // unknown charger
	}, strategy.Preferences{})
	if _, ok := decisions["ghost"]; ok {
		t.Fatal("unknown user accepted")
	}
	if decisions["u2"] == "c9" {
		t.Fatal("unknown charger accepted")
	}
}

func TestManualRejectsFailedCharger(t *testing.T) {
	s := newScheduler(t, AlgoRuleBased)
	snap := schedSnapshot()

	decisions, _ := s.Decide(snap, model.Decisions{"u2": "c2"}, strategy.Preferences{})
	if decisions["u2"] == "c2" {
		t.Fatal("failed charger accepted for a manual decision")
	}
}

func TestLockedUserShieldedFromStrategy(t *testing.T) {
	s := newScheduler(t, AlgoRuleBased)
	snap := schedSnapshot()
	snap.Users[0].ManualLocked = true

	decisions, _ := s.Decide(snap, nil, strategy.Preferences{})
	if _, ok := decisions["u1"]; ok {
		t.Fatal("locked user must not receive a strategy decision")
	}
}

func TestNilSnapshotDegrades(t *testing.T) {
	s := newScheduler(t, AlgoRuleBased)
	decisions, meta := s.Decide(nil, model.Decisions{"u1": "c1"}, strategy.Preferences{})
	if len(decisions) != 0 {
		t.Fatalf("decisions = %v, want empty", decisions)
	}
	if meta.Error == "" {
		t.Fatal("metadata must carry the error")
	}
}

type failingStrategy struct{}

func (failingStrategy) Name() string { return "failing" }
func (failingStrategy) Decide(*model.Snapshot, strategy.Preferences) (model.Decisions, strategy.Metadata, error) {
	return nil, strategy.Metadata{Algorithm: "failing"}, strategy.ErrNoCandidates
}

func TestFallbackOnStrategyError(t *testing.T) {
	s := newScheduler(t, AlgoRuleBased)
	s.active = failingStrategy{}
	snap := schedSnapshot()

	decisions, meta := s.Decide(snap, nil, strategy.Preferences{})
	if meta.Error == "" {
		t.Fatal("fallback result must record the original error")
	}
	// The rule-based fallback still schedules the needy user.
	if decisions["u1"] != "c1" {
		t.Fatalf("fallback decisions = %v, want u1 on c1", decisions)
	}
}

func TestApplyLabelSwitchesMode(t *testing.T) {
	s := newScheduler(t, AlgoRuleBased)
	if s.Mode() != strategy.ModeV1G {
		t.Fatalf("initial mode = %v, want v1g", s.Mode())
	}
	s.ApplyLabel(LabelV2GActive)
	if s.Mode() != strategy.ModeV2G {
		t.Fatalf("mode = %v, want v2g", s.Mode())
	}
	s.ApplyLabel("nonsense") // ignored
	if s.Mode() != strategy.ModeV2G {
		t.Fatal("unknown label must not change the mode")
	}
	s.ApplyLabel(LabelSmartV1G)
	if s.Mode() != strategy.ModeV1G {
		t.Fatalf("mode = %v, want v1g", s.Mode())
	}
}

type countingStore struct {
	saves int
	loads int
}

func (s *countingStore) Save(strategy.AgentTables) error { s.saves++; return nil }
func (s *countingStore) Load() (strategy.AgentTables, error) {
	s.loads++
	return strategy.AgentTables{}, nil
}

func TestTableOpsNoopWithoutMARL(t *testing.T) {
	s := newScheduler(t, AlgoRuleBased)
	store := &countingStore{}
	if err := s.SaveTables(store); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := s.LoadTables(store); err != nil {
		t.Fatalf("load: %v", err)
	}
	if store.saves != 0 || store.loads != 0 {
		t.Fatal("store must not be touched without the learning strategy")
	}
	s.Learn(schedSnapshot()) // must not panic
}

func TestTableOpsForwardWithMARL(t *testing.T) {
	s := newScheduler(t, AlgoMARL)
	store := &countingStore{}
	if err := s.SaveTables(store); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := s.LoadTables(store); err != nil {
		t.Fatalf("load: %v", err)
	}
	if store.saves != 1 || store.loads != 1 {
		t.Fatalf("saves = %d loads = %d, want 1 each", store.saves, store.loads)
	}
}
