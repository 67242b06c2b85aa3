// Package usersim advances individual users one tick at a time: route
// interpolation while traveling, idle battery drain, arrival detection and
// the stochastic charge-seeking decision.
package usersim

import (
	"math/rand"
	"time"

	"github.com/gridpulse/evsim/core/logger"
	"github.com/gridpulse/evsim/core/model"
)

const arrivalDistanceKm = 0.1

// Simulator steps users. The random source is injected so tests can seed it.
type Simulator struct {
	cfg Config
	log logger.Logger
	rng *rand.Rand
}

// New creates a Simulator.
func New(cfg Config, log logger.Logger, rng *rand.Rand) *Simulator {
	cfg.SetDefaults()
	return &Simulator{cfg: cfg, log: log, rng: rng}
}

// Step advances one user by dtMinutes. Charging and waiting users are
// owned by the charger model and are left untouched here.
func (s *Simulator) Step(u *model.User, now time.Time, dtMinutes float64) {
	switch u.Status {
	case model.UserCharging, model.UserWaiting:
		return
	case model.UserTraveling:
		s.travel(u, now, dtMinutes)
		if u.Status == model.UserTraveling && u.TargetCharger == "" {
			s.evaluateChargeNeed(u, now)
		}
	case model.UserPostCharge:
		s.idleDrain(u, now, dtMinutes)
		s.evaluateChargeNeed(u, now)
		u.PostChargeTicks--
		if u.PostChargeTicks <= 0 {
			s.finishPostCharge(u, now)
		}
	default:
		s.idleDrain(u, now, dtMinutes)
		s.evaluateChargeNeed(u, now)
	}
	u.ClampSoC()
}

// travel moves the user along its route and handles arrival.
func (s *Simulator) travel(u *model.User, now time.Time, dtMinutes float64) {
	if len(u.Route) == 0 {
		s.arrive(u, now)
		return
	}
	speed := u.TravelSpeedKmh
	if speed <= 0 {
		speed = 45
	}
	if u.Manual {
		speed *= 2 // manual users are modelled as heading straight over
	}
	remainingKm := speed * dtMinutes / 60
	for remainingKm > 0 && len(u.Route) > 0 {
		next := u.Route[0]
		segKm := u.Position.DistanceKm(next)
		if segKm <= remainingKm {
			u.Position = next
			u.Route = u.Route[1:]
			remainingKm -= segKm
			continue
		}
		frac := remainingKm / segKm
		u.Position.Lat += (next.Lat - u.Position.Lat) * frac
		u.Position.Lng += (next.Lng - u.Position.Lng) * frac
		remainingKm = 0
	}
	traveledKm := speed * dtMinutes / 60
	s.consumeTravelEnergy(u, now, traveledKm)

	u.TimeToDestMinutes -= dtMinutes
	destKm := 0.0
	if u.Destination != nil {
		destKm = u.Position.DistanceKm(*u.Destination)
	}
	if len(u.Route) == 0 || u.TimeToDestMinutes <= 0.1 || destKm < arrivalDistanceKm {
		s.arrive(u, now)
	}
}

// arrive transitions the user at its destination: waiting at a charger,
// idle anywhere else.
func (s *Simulator) arrive(u *model.User, now time.Time) {
	u.Route = nil
	u.TimeToDestMinutes = 0
	if u.Destination != nil {
		u.Position = *u.Destination
	}
	if u.TargetCharger != "" {
		u.Status = model.UserWaiting
		s.log.Debugf("user %s arrived at charger %s, waiting", u.ID, u.TargetCharger)
		return
	}
	u.Status = model.UserIdle
	u.Destination = nil
	if u.SoC < 70 {
		u.NeedsCharge = true
	}
}

func (s *Simulator) consumeTravelEnergy(u *model.User, now time.Time, km float64) {
	if km <= 0 || u.BatteryCapacityKWh <= 0 {
		return
	}
	speed := u.TravelSpeedKmh
	if speed <= 0 {
		speed = 45
	}
	perKm := s.cfg.TravelEnergyPerKm * (1 + speed/80)
	switch u.VehicleType {
	case model.VehicleSedan:
		perKm *= 1.2
	case model.VehicleSUV:
		perKm *= 1.5
	case model.VehicleTruck:
		perKm *= 1.8
	}
	switch u.Style {
	case model.StyleAggressive:
		perKm *= 1.3
	case model.StyleEco:
		perKm *= 0.9
	}
	perKm *= 1 + s.rng.Float64()*0.3 // road conditions
	perKm *= 1 + s.rng.Float64()*0.2 // weather
	hour := now.Hour()
	if (hour >= 7 && hour <= 9) || (hour >= 17 && hour <= 19) {
		perKm *= 1.1 + s.rng.Float64()*0.3 // congestion
	}
	energy := perKm * km
	u.SoC -= energy / u.BatteryCapacityKWh * 100
	u.ClampSoC()
}

// idleDrain applies parasitic consumption while parked.
func (s *Simulator) idleDrain(u *model.User, now time.Time, dtMinutes float64) {
	rate, ok := s.cfg.IdleDrainPerHour[u.VehicleType]
	if !ok {
		rate = 1.0
	}
	switch m := now.Month(); {
	case m >= time.June && m <= time.August:
		rate *= 2.2 // air conditioning season
	case m == time.December || m <= time.February:
		rate *= 2.5 // heating season
	default:
		rate *= 1.3
	}
	hour := now.Hour()
	switch {
	case hour == 6 || hour == 7 || hour == 8 || hour == 17 || hour == 18 || hour == 19:
		rate *= 1.6
	case hour >= 22 || hour <= 4:
		rate *= 0.8
	}
	rate *= 0.9 + s.rng.Float64()*0.9
	u.SoC -= rate * dtMinutes / 60
}

// finishPostCharge ends the post-charge hold: override flags clear and the
// user picks a fresh destination.
func (s *Simulator) finishPostCharge(u *model.User, now time.Time) {
	u.Manual = false
	u.ManualLocked = false
	u.ManualTarget = 0
	u.Status = model.UserIdle
	dest := s.pickDestination(u, now)
	s.StartTrip(u, dest)
}

// PostChargeHold returns the number of ticks a user of this kind rests
// after charging.
func (s *Simulator) PostChargeHold(u *model.User) int {
	switch u.Kind {
	case model.KindTaxi, model.KindRideHailing:
		return 1 + s.rng.Intn(2)
	case model.KindLogistics, model.KindDelivery:
		return 1 + s.rng.Intn(3)
	default:
		return 2 + s.rng.Intn(4)
	}
}
