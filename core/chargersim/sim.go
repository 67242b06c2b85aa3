// Package chargersim advances charging points one tick at a time: power
// delivery with an SoC-dependent taper, session completion with revenue
// accounting, queue admission and stochastic failure.
package chargersim

import (
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/gridpulse/evsim/core/logger"
	"github.com/gridpulse/evsim/core/model"
)

// Simulator steps chargers. The random source drives failure injection.
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

// StepResult is the outcome of advancing all chargers one tick.
type StepResult struct {
	// EVLoadKW is the total power drawn from the grid this tick.
	EVLoadKW float64
	// Completed holds sessions that ended this tick.
	Completed []model.ChargingSession
}

// Step advances every charger: delivers power to occupied ones, finishes
// sessions, admits queued users and injects failures.
func (s *Simulator) Step(chargers map[string]*model.Charger, users map[string]*model.User, now time.Time, dtMinutes, gridPrice float64) StepResult {
	var res StepResult
	dtHours := dtMinutes / 60

	for _, c := range chargers {
		s.stepFailure(c)
		if c.Status == model.ChargerFailure {
			continue
		}
		if c.Status == model.ChargerOccupied && c.CurrentUser != "" {
			if session, load, done := s.deliver(c, users[c.CurrentUser], now, dtHours, gridPrice); done {
				res.Completed = append(res.Completed, session)
				res.EVLoadKW += load
			} else {
				res.EVLoadKW += load
			}
		}
		if c.Status == model.ChargerAvailable && len(c.Queue) > 0 {
			s.admit(c, users, now)
		}
	}
	return res
}

// deliver charges the current user for one tick and ends the session when
// the target is reached or the type time cap expires. The returned load is
// the grid-side power in kW.
func (s *Simulator) deliver(c *model.Charger, u *model.User, now time.Time, dtHours, gridPrice float64) (model.ChargingSession, float64, bool) {
	if u == nil {
		// Orphaned session, release the charger.
		s.log.Warnf("charger %s occupied by unknown user %s, releasing", c.ID, c.CurrentUser)
		c.Status = model.ChargerAvailable
		c.CurrentUser = ""
		return model.ChargingSession{}, 0, false
	}

	powerLimit := c.MaxPowerKW
	if u.MaxChargingPowerKW > 0 && u.MaxChargingPowerKW < powerLimit {
		powerLimit = u.MaxChargingPowerKW
	}
	efficiency := u.ChargingEfficiency
	if efficiency <= 0 {
		efficiency = s.cfg.DefaultEfficiency
	}
	if u.Manual && u.PrefersFastCharger && (c.Type == model.ChargerFast || c.Type == model.ChargerSuperfast) {
		efficiency = min(s.cfg.MaxEfficiency, efficiency*s.cfg.ManualEfficiencyBoost)
	}

	actualPower := powerLimit * max(0.1, socTaper(u.SoC))
	powerToBattery := actualPower * efficiency

	needed := max(0, u.TargetSoC-u.SoC) / 100 * u.BatteryCapacityKWh
	batteryEnergy := min(needed, powerToBattery*dtHours)
	gridEnergy := batteryEnergy
	if efficiency > 0 {
		gridEnergy = batteryEnergy / efficiency
	}

	var loadKW float64
	if batteryEnergy > 0.01 {
		u.SoC = min(100, u.SoC+batteryEnergy/u.BatteryCapacityKWh*100)
		u.ClampSoC()
		if dtHours > 0 {
			loadKW = gridEnergy / dtHours
		}
		price := gridPrice * c.PriceMultiplier
		if u.Manual {
			price *= s.cfg.ManualPriceDiscount
		}
		c.DailyRevenue += gridEnergy * price
		c.DailyEnergyKWh += gridEnergy
	}

	durationMin := now.Sub(c.SessionStart).Minutes()
	maxMin := c.Type.MaxSessionMinutes()
	switch {
	case u.SoC >= u.TargetSoC-0.5:
		return s.endSession(c, u, now, durationMin, model.TargetReached), loadKW, true
	case durationMin >= maxMin-0.1:
		return s.endSession(c, u, now, durationMin, model.TimeLimitExceeded), loadKW, true
	}
	return model.ChargingSession{}, loadKW, false
}

func (s *Simulator) endSession(c *model.Charger, u *model.User, now time.Time, durationMin float64, reason model.TerminationReason) model.ChargingSession {
	session := model.ChargingSession{
		ID:              uuid.NewString(),
		UserID:          u.ID,
		ChargerID:       c.ID,
		StationID:       c.StationID,
		StartTime:       c.SessionStart,
		EndTime:         now,
		DurationMinutes: durationMin,
		InitialSoC:      u.InitialSoC,
		FinalSoC:        u.SoC,
		EnergyKWh:       c.DailyEnergyKWh - c.SessionBaseEnergy,
		Revenue:         c.DailyRevenue - c.SessionBaseRevenue,
		Reason:          reason,
		Manual:          u.Manual,
	}
	s.log.Infof("user %s finished charging at %s (%s), final SoC %.1f%%", u.ID, c.ID, reason, u.SoC)

	c.Status = model.ChargerAvailable
	c.CurrentUser = ""
	c.SessionBaseEnergy = c.DailyEnergyKWh
	c.SessionBaseRevenue = c.DailyRevenue

	u.Status = model.UserPostCharge
	u.TargetCharger = ""
	u.TargetSoC = 0
	u.InitialSoC = 0
	// Override flags survive until post-charge expires.
	return session
}

// admit starts a session for the queue head. Manual users are reordered to
// the front first.
func (s *Simulator) admit(c *model.Charger, users map[string]*model.User, now time.Time) {
	var manual, regular []string
	for _, id := range c.Queue {
		u, ok := users[id]
		if !ok || u.Status != model.UserWaiting {
			continue
		}
		if u.Manual {
			manual = append(manual, id)
		} else {
			regular = append(regular, id)
		}
	}
	c.Queue = append(manual, regular...)
	if len(c.Queue) == 0 {
		return
	}

	next := users[c.Queue[0]]
	c.Queue = c.Queue[1:]
	c.Status = model.ChargerOccupied
	c.CurrentUser = next.ID
	c.SessionStart = now
	c.SessionBaseEnergy = c.DailyEnergyKWh
	c.SessionBaseRevenue = c.DailyRevenue

	next.Status = model.UserCharging
	next.InitialSoC = next.SoC
	if next.Manual && next.ManualTarget > 0 {
		next.TargetSoC = next.ManualTarget
	} else {
		next.TargetSoC = min(s.cfg.TargetSoCDefault, next.SoC+s.cfg.TargetSoCStep)
	}
	s.log.Infof("user %s started charging at %s (target %.0f%%)", next.ID, c.ID, next.TargetSoC)
}

// stepFailure injects stochastic outages and counts down repairs.
func (s *Simulator) stepFailure(c *model.Charger) {
	if c.Status == model.ChargerFailure {
		c.FailureUntilRepair--
		if c.FailureUntilRepair <= 0 {
			c.Status = model.ChargerAvailable
			s.log.Infof("charger %s repaired", c.ID)
		}
		return
	}
	if s.cfg.FailureRate > 0 && c.Status == model.ChargerAvailable && s.rng.Float64() < s.cfg.FailureRate {
		c.Status = model.ChargerFailure
		c.FailureUntilRepair = s.cfg.RepairTicks
		s.log.Warnf("charger %s failed", c.ID)
	}
}

// socTaper models the charging power curve: full rate below 20% SoC,
// tapering progressively above.
func socTaper(soc float64) float64 {
	switch {
	case soc < 20:
		return 1.0
	case soc < 50:
		return 1.0 - (soc-20)/30*0.1
	case soc < 80:
		return 0.9 - (soc-50)/30*0.2
	default:
		return 0.7 - (soc-80)/20*0.5
	}
}
