package strategy

import (
	"math/rand"
	"testing"
	"time"

	"github.com/gridpulse/evsim/core/model"
	"github.com/gridpulse/evsim/infra/logger"
)

// testSnapshot builds a small world: two users near two chargers at noon
// on a shoulder band.
func testSnapshot() *model.Snapshot {
	return &model.Snapshot{
		Time: time.Date(2025, 6, 1, 13, 0, 0, 0, time.UTC),
		Users: []model.User{
			{
				ID: "low", SoC: 18, NeedsCharge: true, Status: model.UserIdle,
				Position: model.Position{Lat: 30.60, Lng: 114.30},
				BatteryCapacityKWh: 60, MaxRangeKm: 400,
			},
			{
				ID: "mid", SoC: 35, Status: model.UserIdle,
				Position: model.Position{Lat: 30.61, Lng: 114.31},
				BatteryCapacityKWh: 60, MaxRangeKm: 400,
			},
			{
				ID: "full", SoC: 92, Status: model.UserIdle,
				Position: model.Position{Lat: 30.62, Lng: 114.32},
				BatteryCapacityKWh: 60, MaxRangeKm: 400,
			},
		},
		Chargers: []model.Charger{
			{
				ID: "near", Status: model.ChargerAvailable, Type: model.ChargerFast,
				MaxPowerKW: 120, PriceMultiplier: 1.2, QueueCapacity: 10,
				Position: model.Position{Lat: 30.601, Lng: 114.301},
			},
			{
				ID: "far", Status: model.ChargerAvailable, Type: model.ChargerNormal,
				MaxPowerKW: 20, PriceMultiplier: 1.0, QueueCapacity: 10,
				Position: model.Position{Lat: 30.70, Lng: 114.40},
			},
		},
		Grid: model.GridSnapshot{
			Time:         time.Date(2025, 6, 1, 13, 0, 0, 0, time.UTC),
			PeakHours:    []int{7, 8, 9, 10, 18, 19, 20, 21},
			ValleyHours:  []int{0, 1, 2, 3, 4, 5},
			CurrentPrice: 0.85,
			LoadPercent:  40,
		},
	}
}

func TestUncoordinatedUrgentPicksNearest(t *testing.T) {
	s := NewUncoordinated(UncoordinatedConfig{}, logger.NopLogger{}, rand.New(rand.NewSource(1)))
	snap := testSnapshot()
	decisions, meta, err := s.Decide(snap, Preferences{})
	if err != nil {
		t.Fatalf("decide: %v", err)
	}
	if decisions["low"] != "near" {
		t.Fatalf("urgent user assigned %q, want nearest charger", decisions["low"])
	}
	if _, ok := decisions["full"]; ok {
		t.Fatal("user at 92% SoC must not be assigned")
	}
	if meta.Algorithm != "uncoordinated" {
		t.Fatalf("algorithm = %s", meta.Algorithm)
	}
}

func TestUncoordinatedSkipsFullQueues(t *testing.T) {
	s := NewUncoordinated(UncoordinatedConfig{MaxQueue: 1}, logger.NopLogger{}, rand.New(rand.NewSource(1)))
	snap := testSnapshot()
	snap.Chargers[0].Queue = []string{"x"} // near is at the limit
	decisions, _, err := s.Decide(snap, Preferences{})
	if err != nil {
		t.Fatalf("decide: %v", err)
	}
	for user, charger := range decisions {
		if charger == "near" {
			t.Fatalf("user %s assigned to saturated charger", user)
		}
	}
}

func TestRuleBasedCandidateThresholds(t *testing.T) {
	r := NewRuleBased(RuleBasedConfig{}, logger.NopLogger{})
	snap := testSnapshot()
	candidates := r.collectCandidates(snap, 13)

	ids := make(map[string]bool)
	for _, c := range candidates {
		ids[c.user.ID] = true
	}
	if !ids["low"] || !ids["mid"] {
		t.Fatalf("expected low and mid as candidates, got %v", ids)
	}
	if ids["full"] {
		t.Fatal("user above threshold must not be a candidate")
	}
}

func TestRuleBasedExcludesFailedChargers(t *testing.T) {
	r := NewRuleBased(RuleBasedConfig{}, logger.NopLogger{})
	snap := testSnapshot()
	snap.Chargers[0].Status = model.ChargerFailure

	decisions, _, err := r.Decide(snap, Preferences{})
	if err != nil {
		t.Fatalf("decide: %v", err)
	}
	for user, charger := range decisions {
		if charger == "near" {
			t.Fatalf("user %s assigned to failed charger", user)
		}
	}
	if decisions["low"] != "far" {
		t.Fatalf("urgent user should fall back to the working charger, got %q", decisions["low"])
	}
}

func TestRuleBasedSkipsBoundUsers(t *testing.T) {
	r := NewRuleBased(RuleBasedConfig{}, logger.NopLogger{})
	snap := testSnapshot()
	snap.Users[0].Status = model.UserCharging
	snap.Users[1].TargetCharger = "near"

	decisions, _, err := r.Decide(snap, Preferences{})
	if err != nil {
		t.Fatalf("decide: %v", err)
	}
	if len(decisions) != 0 {
		t.Fatalf("bound users must not be reassigned, got %v", decisions)
	}
}

func TestRuleBasedDynamicWeightsNormalized(t *testing.T) {
	r := NewRuleBased(RuleBasedConfig{}, logger.NopLogger{})
	for _, band := range []model.TimeBand{model.BandShoulder, model.BandPeak, model.BandValley} {
		u, p, g := r.dynamicWeights(band)
		if sum := u + p + g; sum < 0.999 || sum > 1.001 {
			t.Fatalf("band %v: weights sum to %f", band, sum)
		}
	}
	_, _, gShoulder := r.dynamicWeights(model.BandShoulder)
	_, _, gPeak := r.dynamicWeights(model.BandPeak)
	if gPeak <= gShoulder {
		t.Fatal("peak hours must weight the grid heavier")
	}
}

func TestMASCurtailsToFleetCap(t *testing.T) {
	m := NewCoordinatedMAS(MASConfig{}, logger.NopLogger{})
	snap := testSnapshot()
	// 0.1 MW sits below a single fast-charger assignment, so any plan
	// using the 120 kW unit must shed load.
	decisions, meta, err := m.Decide(snap, Preferences{MaxFleetLoadMW: 0.1})
	if err != nil {
		t.Fatalf("decide: %v", err)
	}
	if meta.CandidateCount < 2 {
		t.Fatalf("candidate count = %d, want the two seeking users", meta.CandidateCount)
	}
	total := 0.0
	for _, chargerID := range decisions {
		total += snap.ChargerByID(chargerID).MaxPowerKW
	}
	if total > 100 {
		t.Fatalf("fleet load %f kW exceeds the 100 kW cap", total)
	}
	if meta.Assignments != len(decisions) {
		t.Fatalf("assignments metadata %d != %d decisions", meta.Assignments, len(decisions))
	}
}

// fullChargerSnapshot puts the only nearby charger at queue capacity with a
// session in progress: no strategy may send anyone there.
func fullChargerSnapshot() *model.Snapshot {
	snap := testSnapshot()
	snap.Users = snap.Users[:1] // just the seeking user
	snap.Chargers[0].Status = model.ChargerOccupied
	snap.Chargers[0].CurrentUser = "x0"
	snap.Chargers[0].Queue = []string{"x1", "x2", "x3"}
	snap.Chargers[0].QueueCapacity = 3
	return snap
}

func TestNoStrategyAssignsToFullCharger(t *testing.T) {
	// Generous per-round bounds so queue capacity is the only limit left.
	strategies := []Strategy{
		NewUncoordinated(UncoordinatedConfig{MaxQueue: 50}, logger.NopLogger{}, rand.New(rand.NewSource(1))),
		NewRuleBased(RuleBasedConfig{MaxQueueShoulder: 50}, logger.NopLogger{}),
		NewCoordinatedMAS(MASConfig{MaxQueue: 50}, logger.NopLogger{}),
		NewMARL(MARLConfig{ExplorationRate: 1}, logger.NopLogger{}, rand.New(rand.NewSource(2))),
	}
	for _, s := range strategies {
		for i := 0; i < 25; i++ {
			decisions, _, err := s.Decide(fullChargerSnapshot(), Preferences{})
			if err != nil {
				t.Fatalf("%s: decide: %v", s.Name(), err)
			}
			for user, charger := range decisions {
				if charger == "near" {
					t.Fatalf("%s assigned %s to a charger at queue capacity", s.Name(), user)
				}
			}
		}
	}
}

func TestMASFullChargerFallsToRunnerUp(t *testing.T) {
	m := NewCoordinatedMAS(MASConfig{}, logger.NopLogger{})
	snap := testSnapshot()
	snap.Users = snap.Users[:1]
	// Near wins the satisfaction and profit votes but sits at capacity;
	// the runner-up must take the assignment instead.
	snap.Users[0].TimeSensitivity = 0.01
	snap.Chargers[0].Type = model.ChargerSuperfast
	snap.Chargers[0].PriceMultiplier = 1.5
	snap.Chargers[0].Queue = []string{"x1", "x2", "x3"}
	snap.Chargers[0].QueueCapacity = 3
	snap.Chargers[1].Position = model.Position{Lat: 31.0, Lng: 114.8}

	decisions, _, err := m.Decide(snap, Preferences{})
	if err != nil {
		t.Fatalf("decide: %v", err)
	}
	if got := decisions["low"]; got != "far" {
		t.Fatalf("user assigned %q, want the runner-up charger", got)
	}
}

func TestMASVoteWeightsByPriority(t *testing.T) {
	m := NewCoordinatedMAS(MASConfig{}, logger.NopLogger{})
	u, p, g := m.voteWeights(PriorityRenewables)
	if g <= u || g <= p {
		t.Fatal("renewables priority must favour the grid agent")
	}
	u, p, g = m.voteWeights(PriorityCost)
	if p <= u || p <= g {
		t.Fatal("cost priority must favour the profit agent")
	}
	u, p, g = m.voteWeights("")
	if sum := u + p + g; sum < 0.999 || sum > 1.001 {
		t.Fatalf("default weights sum to %f", sum)
	}
}

func TestMASAssignsSeekingUser(t *testing.T) {
	m := NewCoordinatedMAS(MASConfig{}, logger.NopLogger{})
	snap := testSnapshot()
	decisions, meta, err := m.Decide(snap, Preferences{})
	if err != nil {
		t.Fatalf("decide: %v", err)
	}
	if _, ok := decisions["low"]; !ok {
		t.Fatalf("low-SoC user not assigned: %v (candidates %d)", decisions, meta.CandidateCount)
	}
	if _, ok := decisions["full"]; ok {
		t.Fatal("full user must not be assigned")
	}
}
