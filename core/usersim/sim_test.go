package usersim

import (
	"math/rand"
	"testing"
	"time"

	"github.com/gridpulse/evsim/core/model"
	"github.com/gridpulse/evsim/infra/logger"
)

func newTestSim(seed int64) *Simulator {
	return New(Config{}, logger.NopLogger{}, rand.New(rand.NewSource(seed)))
}

func TestForceChargeBelowFloor(t *testing.T) {
	s := newTestSim(1)
	u := &model.User{
		ID: "u1", SoC: 15, BatteryCapacityKWh: 60, MaxRangeKm: 400,
		Status: model.UserIdle, VehicleType: model.VehicleSedan,
	}
	s.Step(u, time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC), 15)
	if !u.NeedsCharge {
		t.Fatal("user at 15% SoC must flag charge need")
	}
}

func TestSmallDeficitSuppressesSeeking(t *testing.T) {
	s := newTestSim(1)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	// Deficit below 25 never triggers, regardless of randomness.
	for i := 0; i < 50; i++ {
		u := &model.User{
			ID: "u1", SoC: 90, BatteryCapacityKWh: 200, MaxRangeKm: 400,
			Status: model.UserIdle, VehicleType: model.VehicleSedan,
		}
		s.evaluateChargeNeed(u, now)
		if u.NeedsCharge {
			t.Fatal("user at 90% SoC should never seek a charge")
		}
	}
}

func TestTravelConsumesEnergyAndArrives(t *testing.T) {
	s := newTestSim(7)
	u := &model.User{
		ID: "u1", SoC: 80, BatteryCapacityKWh: 60, MaxRangeKm: 400,
		VehicleType:    model.VehicleSedan,
		Position:       model.Position{Lat: 30.6, Lng: 114.3},
		TravelSpeedKmh: 60,
	}
	dest := model.Position{Lat: 30.62, Lng: 114.32} // ~3 km
	s.StartTrip(u, dest)
	if u.Status != model.UserTraveling {
		t.Fatalf("status = %v, want traveling", u.Status)
	}

	startSoC := u.SoC
	for i := 0; i < 20 && u.Status == model.UserTraveling; i++ {
		s.Step(u, time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC), 15)
	}
	if u.Status != model.UserIdle {
		t.Fatalf("user never arrived, status %v", u.Status)
	}
	if u.SoC >= startSoC {
		t.Fatal("travel consumed no energy")
	}
	if u.Destination != nil {
		t.Fatal("destination should clear on arrival")
	}
}

func TestArrivalAtChargerWaits(t *testing.T) {
	s := newTestSim(3)
	u := &model.User{
		ID: "u1", SoC: 30, BatteryCapacityKWh: 60, MaxRangeKm: 400,
		VehicleType:    model.VehicleSedan,
		Position:       model.Position{Lat: 30.6, Lng: 114.3},
		TravelSpeedKmh: 60,
	}
	c := &model.Charger{ID: "c1", Position: model.Position{Lat: 30.605, Lng: 114.305}}
	s.RouteToCharger(u, c)
	if u.TargetCharger != "c1" || u.NeedsCharge {
		t.Fatal("routing should set target and clear the need flag")
	}
	for i := 0; i < 20 && u.Status == model.UserTraveling; i++ {
		s.Step(u, time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC), 15)
	}
	if u.Status != model.UserWaiting {
		t.Fatalf("status = %v, want waiting at charger", u.Status)
	}
}

func TestTravelingUserDecidesMidTrip(t *testing.T) {
	s := newTestSim(17)
	u := &model.User{
		ID: "u1", SoC: 15, BatteryCapacityKWh: 60, MaxRangeKm: 400,
		VehicleType:    model.VehicleSedan,
		Position:       model.Position{Lat: 30.6, Lng: 114.3},
		TravelSpeedKmh: 30,
	}
	s.StartTrip(u, model.Position{Lat: 31.0, Lng: 114.8}) // ~70 km, hours away
	s.Step(u, time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC), 15)
	if u.Status != model.UserTraveling {
		t.Fatalf("status = %v, want still traveling", u.Status)
	}
	if !u.NeedsCharge {
		t.Fatal("traveling user below the force floor must flag charge need")
	}

	// A user already heading to a charger keeps its cleared flag.
	routed := &model.User{
		ID: "u2", SoC: 15, BatteryCapacityKWh: 60, MaxRangeKm: 400,
		VehicleType:    model.VehicleSedan,
		Position:       model.Position{Lat: 30.6, Lng: 114.3},
		TravelSpeedKmh: 30,
	}
	c := &model.Charger{ID: "c1", Position: model.Position{Lat: 31.0, Lng: 114.8}}
	s.RouteToCharger(routed, c)
	s.Step(routed, time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC), 15)
	if routed.NeedsCharge {
		t.Fatal("user en route to a charger must not re-flag charge need")
	}
}

func TestPostChargeUserStillEvaluates(t *testing.T) {
	s := newTestSim(19)
	u := &model.User{
		ID: "u1", SoC: 15, BatteryCapacityKWh: 60, MaxRangeKm: 400,
		VehicleType:     model.VehicleSedan,
		Status:          model.UserPostCharge,
		PostChargeTicks: 3,
	}
	s.Step(u, time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC), 15)
	if u.Status != model.UserPostCharge {
		t.Fatalf("status = %v, want still resting", u.Status)
	}
	if !u.NeedsCharge {
		t.Fatal("post-charge user below the force floor must flag charge need")
	}
}

func TestPostChargeDampsChargeProbability(t *testing.T) {
	s := newTestSim(21)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	idle := &model.User{SoC: 45, Kind: model.KindPrivate, VehicleType: model.VehicleSedan,
		MaxRangeKm: 400, CurrentRangeKm: 180, Status: model.UserIdle}
	resting := &model.User{SoC: 45, Kind: model.KindPrivate, VehicleType: model.VehicleSedan,
		MaxRangeKm: 400, CurrentRangeKm: 180, Status: model.UserPostCharge}

	pIdle := s.chargeProbability(idle, now)
	pRest := s.chargeProbability(resting, now)
	want := pIdle * 0.1
	if pRest < want-1e-9 || pRest > want+1e-9 {
		t.Fatalf("post-charge probability = %f, want %f (10%% of idle)", pRest, want)
	}
}

func TestPostChargeClearsOverrides(t *testing.T) {
	s := newTestSim(5)
	u := &model.User{
		ID: "u1", SoC: 95, BatteryCapacityKWh: 60, MaxRangeKm: 400,
		VehicleType:     model.VehicleSedan,
		Status:          model.UserPostCharge,
		PostChargeTicks: 1,
		Manual:          true,
		ManualLocked:    true,
		ManualTarget:    95,
	}
	s.Step(u, time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC), 15)
	if u.Manual || u.ManualLocked || u.ManualTarget != 0 {
		t.Fatal("post-charge expiry must clear override flags")
	}
	if u.Status != model.UserTraveling {
		t.Fatalf("status = %v, want traveling to a fresh destination", u.Status)
	}
}

func TestPostChargeHoldByKind(t *testing.T) {
	s := newTestSim(11)
	taxi := &model.User{Kind: model.KindTaxi}
	private := &model.User{Kind: model.KindPrivate}
	for i := 0; i < 100; i++ {
		if h := s.PostChargeHold(taxi); h < 1 || h > 2 {
			t.Fatalf("taxi hold = %d, want 1..2", h)
		}
		if h := s.PostChargeHold(private); h < 2 || h > 5 {
			t.Fatalf("private hold = %d, want 2..5", h)
		}
	}
}

func TestIdleDrainLowersSoC(t *testing.T) {
	s := newTestSim(9)
	u := &model.User{
		ID: "u1", SoC: 50, BatteryCapacityKWh: 60, MaxRangeKm: 400,
		VehicleType: model.VehicleSUV, Status: model.UserIdle,
	}
	now := time.Date(2025, 7, 15, 18, 0, 0, 0, time.UTC) // summer rush hour
	start := u.SoC
	s.idleDrain(u, now, 60)
	if u.SoC >= start {
		t.Fatal("idle drain did not lower SoC")
	}
}

func TestChargeProbabilityShape(t *testing.T) {
	s := newTestSim(13)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	low := &model.User{SoC: 25, Kind: model.KindPrivate, VehicleType: model.VehicleSedan}
	high := &model.User{SoC: 78, Kind: model.KindPrivate, VehicleType: model.VehicleSedan}
	if s.chargeProbability(low, now) <= s.chargeProbability(high, now) {
		t.Fatal("lower SoC must yield higher charge probability")
	}
}
