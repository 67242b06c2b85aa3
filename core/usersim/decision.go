package usersim

import (
	"math"
	"time"

	"github.com/gridpulse/evsim/core/model"
)

// evaluateChargeNeed runs the stochastic charge-seeking decision for a
// user not already heading to or bound to a charger.
func (s *Simulator) evaluateChargeNeed(u *model.User, now time.Time) {
	if u.TargetCharger != "" || u.NeedsCharge {
		return
	}
	if u.SoC <= s.cfg.ForceChargeSoC {
		u.NeedsCharge = true
		return
	}
	if u.SoCDeficit() < s.cfg.MinChargeDeficit {
		return
	}
	p := s.chargeProbability(u, now)
	if s.rng.Float64() < p {
		u.NeedsCharge = true
	}
}

// chargeProbability is a sigmoid of SoC biased by user kind, profile,
// time of day and range anxiety.
func (s *Simulator) chargeProbability(u *model.User, now time.Time) float64 {
	p := 1 / (1 + math.Exp(s.cfg.SigmoidSlope*(u.SoC-s.cfg.SigmoidMidpoint)))
	p = clamp(p, 0.05, 0.95)

	switch {
	case u.SoC > 75:
		p *= 0.1
	case u.SoC > 60:
		p *= 0.3
	}

	switch u.Kind {
	case model.KindTaxi, model.KindRideHailing:
		p *= 1.3 // opportunistic toppers between fares
	case model.KindLogistics, model.KindDelivery:
		p *= 1.2
	}

	switch u.Profile {
	case model.ProfileAnxious:
		p *= 1.3
	case model.ProfileUrgent:
		p *= 1.4
	case model.ProfileEconomic:
		p *= 0.8
	}

	// Range anxiety kicks in when the remaining range gets uncomfortable.
	if u.MaxRangeKm > 0 && u.CurrentRangeKm < u.MaxRangeKm*0.25*(1+u.RangeAnxiety) {
		p *= 1 + u.RangeAnxiety
	}

	hour := now.Hour()
	if (hour >= 7 && hour <= 9) || (hour >= 17 && hour <= 19) {
		if u.Kind != model.KindPrivate {
			p *= 1.3
		}
	}

	if u.SoC > 20 && u.SoC <= 35 {
		p *= 1.5
	}
	if u.Status == model.UserPostCharge {
		p *= 0.1
	}
	return clamp(p, 0, 1)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
